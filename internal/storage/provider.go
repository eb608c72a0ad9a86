// Package storage defines the vault file-system abstraction.
//
// Vault paths are absolute within the vault: they begin with "/" and
// use forward slashes regardless of platform, matching the paths the
// index stores.
package storage

import (
	"time"

	"github.com/starford/ansuz/internal/models"
)

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every page file under dir.
	List(dir string) ([]models.PageMeta, error)
	// Read returns the raw bytes of the page at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent folders.
	// The path must satisfy the folder-per-page layout.
	Write(path string, content []byte) error
	// Delete removes the page file at path.
	Delete(path string) error
	// DeleteTree removes a folder and everything under it.
	DeleteTree(folder string) error
	// MoveTree renames a folder, renaming its root page file to match
	// the new folder leaf.
	MoveTree(oldFolder, newFolder string) error
	// EnsureJournalDay creates the journal page for the given day if it
	// does not exist yet and returns its path.
	EnsureJournalDay(day time.Time) (string, error)
}
