// Package vaultservice coordinates storage and index operations for the
// active vault. The service owns its own connections: switching vaults
// swaps an explicit object held by the caller, never process-global
// state.
package vaultservice

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/pathcodec"
	"github.com/starford/ansuz/internal/storage"
)

// vault bundles the open handles of one vault.
type vault struct {
	root  string
	store storage.Provider
	db    *index.DB
}

// Service is the operation surface over the active vault. All methods
// are safe for concurrent use. With no active vault, reads return empty
// results and writes are no-ops.
type Service struct {
	mu                sync.Mutex
	logger            *slog.Logger
	rootName          string
	nonActionableTags []string

	vault *vault
}

// New creates a service with no active vault.
func New(logger *slog.Logger, rootName string, nonActionableTags []string) *Service {
	return &Service{
		logger:            logger,
		rootName:          rootName,
		nonActionableTags: nonActionableTags,
	}
}

// SetActiveVault closes any previously active vault and opens the one
// rooted at vaultDir, creating it if needed, then runs an initial sync.
// An empty vaultDir detaches the service.
func (s *Service) SetActiveVault(vaultDir, dbPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vault != nil {
		if err := s.vault.db.Close(); err != nil {
			s.logger.Warn("vault: close previous db", slog.String("error", err.Error()))
		}
		s.vault = nil
	}
	if vaultDir == "" {
		return nil
	}

	if err := os.MkdirAll(vaultDir, 0o755); err != nil {
		return fmt.Errorf("vault: create root: %w", err)
	}
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		return err
	}
	if dbPath == "" {
		dbPath = filepath.Join(vaultDir, ".ansuz.db")
	}
	db, err := index.Open(dbPath)
	if err != nil {
		return err
	}
	if err := index.Sync(db, store, s.logger); err != nil {
		s.logger.Warn("vault: initial sync failed", slog.String("error", err.Error()))
	}

	s.vault = &vault{root: vaultDir, store: store, db: db}
	s.logger.Info("vault: activated", slog.String("root", vaultDir), slog.String("db", dbPath))
	return nil
}

// ActiveVault returns the root of the active vault, or "".
func (s *Service) ActiveVault() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vault == nil {
		return ""
	}
	return s.vault.root
}

// Store exposes the active vault's storage provider for the watcher,
// or nil when no vault is active.
func (s *Service) Store() storage.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vault == nil {
		return nil
	}
	return s.vault.store
}

// DB exposes the active vault's index, or nil when no vault is active.
func (s *Service) DB() *index.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vault == nil {
		return nil
	}
	return s.vault.db
}

// Close releases the active vault's handles.
func (s *Service) Close() error {
	return s.SetActiveVault("", "")
}

// ResolveID converts a colon identifier to a page path using the
// configured root name for the empty identifier.
func (s *Service) ResolveID(id string) string {
	return pathcodec.IDToPath(id, s.rootName)
}

// ReadPage returns the raw content of a page.
func (s *Service) ReadPage(path string) ([]byte, error) {
	s.mu.Lock()
	v := s.vault
	s.mu.Unlock()
	if v == nil {
		return nil, nil
	}
	data, err := v.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// WritePage writes page content and brings the index up to date. After
// the index transaction commits, a best-effort policy hook links the
// page from its parent so new pages are reachable in the hierarchy.
func (s *Service) WritePage(path string, content []byte) error {
	s.mu.Lock()
	v := s.vault
	s.mu.Unlock()
	if v == nil {
		return nil
	}
	if err := s.writePage(v, path, content); err != nil {
		return err
	}
	s.ensureParentLink(v, path)
	return nil
}

func (s *Service) writePage(v *vault, path string, content []byte) error {
	if err := v.store.Write(path, content); err != nil {
		return err
	}
	if _, err := v.db.IndexPage(path, content); err != nil {
		return err
	}
	return nil
}

// ensureParentLink adds a link to path on its parent page, creating the
// parent if it does not exist. The parent write goes through writePage,
// not WritePage, so the hook never recurses past one level per call;
// the loop itself walks upward explicitly.
func (s *Service) ensureParentLink(v *vault, path string) {
	for {
		parent := parentPagePath(path)
		if parent == "" {
			return
		}
		childName := strings.TrimSuffix(filepath.Base(path), pathcodec.PageSuffix)

		data, err := v.store.Read(parent)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("vault: write-back read failed", slog.String("path", parent), slog.String("error", err.Error()))
				return
			}
			title := strings.TrimSuffix(filepath.Base(parent), pathcodec.PageSuffix)
			content := fmt.Sprintf("# %s\n\n+%s\n", title, childName)
			if err := s.writePage(v, parent, []byte(content)); err != nil {
				s.logger.Warn("vault: write-back create failed", slog.String("path", parent), slog.String("error", err.Error()))
				return
			}
			// The created parent may itself be unreachable; keep walking.
			path = parent
			continue
		}

		if linksTo(parent, string(data), path) {
			return
		}
		content := string(data)
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += "+" + childName + "\n"
		if err := s.writePage(v, parent, []byte(content)); err != nil {
			s.logger.Warn("vault: write-back update failed", slog.String("path", parent), slog.String("error", err.Error()))
		}
		return
	}
}

// linksTo reports whether the parent page content already references
// the child page.
func linksTo(parentPath, content, childPath string) bool {
	for _, target := range parser.Parse(parentPath, content).Links {
		if target == childPath {
			return true
		}
	}
	return false
}

// parentPagePath returns the root page of the folder above a page, or
// "" when the page sits directly under the vault root.
func parentPagePath(pagePath string) string {
	folder := path.Dir(pagePath)
	parentFolder := path.Dir(folder)
	if parentFolder == "/" || parentFolder == "." || parentFolder == folder {
		return ""
	}
	return parentFolder + "/" + path.Base(parentFolder) + pathcodec.PageSuffix
}

// DeletePage removes a page file and its index rows.
func (s *Service) DeletePage(path string) error {
	s.mu.Lock()
	v := s.vault
	s.mu.Unlock()
	if v == nil {
		return nil
	}
	if err := v.store.Delete(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return v.db.DeletePage(path)
}

// DeleteFolder removes a folder tree from disk and every nested page
// from the index.
func (s *Service) DeleteFolder(folder string) error {
	s.mu.Lock()
	v := s.vault
	s.mu.Unlock()
	if v == nil {
		return nil
	}
	if err := v.store.DeleteTree(folder); err != nil {
		return err
	}
	return v.db.DeleteFolder(folder)
}

// MoveFolder renames a folder on disk and rebases every indexed path
// under it.
func (s *Service) MoveFolder(oldFolder, newFolder string) error {
	s.mu.Lock()
	v := s.vault
	s.mu.Unlock()
	if v == nil {
		return nil
	}
	if err := v.store.MoveTree(oldFolder, newFolder); err != nil {
		return err
	}
	return v.db.MoveFolder(oldFolder, newFolder)
}

// SearchPages ranks indexed pages against a query.
func (s *Service) SearchPages(query string, limit int) ([]models.PageSummary, error) {
	s.mu.Lock()
	v := s.vault
	s.mu.Unlock()
	if v == nil {
		return nil, nil
	}
	return v.db.SearchPages(query, limit)
}

// Tasks queries the task forest. The configured non-actionable tags are
// applied when the caller does not override them.
func (s *Service) Tasks(q index.TasksQuery) ([]models.Task, error) {
	s.mu.Lock()
	v := s.vault
	s.mu.Unlock()
	if v == nil {
		return nil, nil
	}
	if len(q.NonActionableTags) == 0 {
		q.NonActionableTags = s.nonActionableTags
	}
	return v.db.Tasks(q)
}

// LinkRelations returns both link directions around a page.
func (s *Service) LinkRelations(path string) (*models.LinkRelations, error) {
	s.mu.Lock()
	v := s.vault
	s.mu.Unlock()
	if v == nil {
		return &models.LinkRelations{}, nil
	}
	return v.db.LinkRelations(path)
}

// TagSummary aggregates page tags.
func (s *Service) TagSummary() ([]models.TagCount, error) {
	s.mu.Lock()
	v := s.vault
	s.mu.Unlock()
	if v == nil {
		return nil, nil
	}
	return v.db.TagSummary()
}

// TaskTagSummary aggregates task tags.
func (s *Service) TaskTagSummary() ([]models.TagCount, error) {
	s.mu.Lock()
	v := s.vault
	s.mu.Unlock()
	if v == nil {
		return nil, nil
	}
	return v.db.TaskTagSummary()
}

// JournalToday ensures today's journal page exists and returns its
// path.
func (s *Service) JournalToday(now time.Time) (string, error) {
	s.mu.Lock()
	v := s.vault
	s.mu.Unlock()
	if v == nil {
		return "", apperr.ErrNoVault
	}
	path, err := v.store.EnsureJournalDay(now)
	if err != nil {
		return "", err
	}
	data, err := v.store.Read(path)
	if err != nil {
		return "", err
	}
	if _, err := v.db.IndexPage(path, data); err != nil {
		return "", err
	}
	return path, nil
}
