package index

import "github.com/starford/ansuz/internal/models"

// PageIndex defines the interface for page indexing operations.
// Consumers should depend on this interface rather than the concrete
// *DB type to facilitate testing with mocks.
type PageIndex interface {
	IndexPage(path string, data []byte) (Outcome, error)
	UpdatePage(page models.Page, tags, links []string, tasks []models.Task) error
	DeletePage(path string) error
	DeleteFolder(folder string) error
	MoveFolder(oldFolder, newFolder string) error
	GetPage(path string) (*models.Page, error)
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	SearchPages(query string, limit int) ([]models.PageSummary, error)
	Tasks(q TasksQuery) ([]models.Task, error)
	LinkRelations(path string) (*models.LinkRelations, error)
	TagSummary() ([]models.TagCount, error)
	TaskTagSummary() ([]models.TagCount, error)
	Close() error
}

// Verify *DB satisfies PageIndex at compile time.
var _ PageIndex = (*DB)(nil)

// Outcome reports what IndexPage did with a page.
type Outcome int

const (
	// Unchanged means the stored checksum already covers this content
	// under the current schema version; no parse or write happened.
	Unchanged Outcome = iota
	// Updated means the page was parsed and its rows replaced.
	Updated
)
