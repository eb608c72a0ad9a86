package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/pathcodec"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// ValidatePagePath rejects paths that break the folder-per-page layout:
// a page file must sit in a folder bearing the same name, except for a
// single root-level page like /Vault.md.
func ValidatePagePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("storage: page path must begin with /: %s", path)
	}
	if !strings.HasSuffix(path, pathcodec.PageSuffix) {
		return fmt.Errorf("storage: page path must end with %s: %s", pathcodec.PageSuffix, path)
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for _, seg := range parts {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("storage: invalid path segment in %s", path)
		}
	}
	if len(parts) == 1 {
		return nil // root-level page
	}
	leaf := strings.TrimSuffix(parts[len(parts)-1], pathcodec.PageSuffix)
	if leaf != parts[len(parts)-2] {
		return fmt.Errorf("storage: page file %q must match its folder %q", parts[len(parts)-1], parts[len(parts)-2])
	}
	return nil
}

// safePath resolves a vault path against the root and rejects any
// result that escapes it (directory traversal).
func (f *FS) safePath(vaultPath string) (string, error) {
	rel := strings.TrimPrefix(vaultPath, "/")
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", vaultPath)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", vaultPath)
	}
	return abs, nil
}

// List walks dir and returns metadata for every page file.
func (f *FS) List(dir string) ([]models.PageMeta, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.PageMeta
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), pathcodec.PageSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, models.PageMeta{
			Path:      "/" + filepath.ToSlash(rel),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault page.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	if err := ValidatePagePath(path); err != nil {
		return err
	}
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ansuz-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a page file from the vault.
func (f *FS) Delete(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// DeleteTree removes a folder and everything below it.
func (f *FS) DeleteTree(folder string) error {
	abs, err := f.safePath(folder)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: refusing to delete vault root")
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("storage: delete tree %s: %w", folder, err)
	}
	return nil
}

// MoveTree renames a folder within the vault. The folder's root page
// file is renamed to the new leaf so the folder-per-page layout holds
// after the move.
func (f *FS) MoveTree(oldFolder, newFolder string) error {
	absOld, err := f.safePath(oldFolder)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newFolder)
	if err != nil {
		return err
	}
	if absOld == f.root || absNew == f.root {
		return fmt.Errorf("storage: refusing to move vault root")
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}

	oldLeaf := filepath.Base(absOld)
	newLeaf := filepath.Base(absNew)
	if oldLeaf == newLeaf {
		return nil
	}
	oldPage := filepath.Join(absNew, oldLeaf+pathcodec.PageSuffix)
	if _, statErr := os.Stat(oldPage); statErr != nil {
		return nil // folder has no root page
	}
	if err := os.Rename(oldPage, filepath.Join(absNew, newLeaf+pathcodec.PageSuffix)); err != nil {
		return fmt.Errorf("storage: rename root page: %w", err)
	}
	return nil
}

// EnsureJournalDay creates the journal page for a day if missing and
// returns its vault path, e.g. /Journal/2025/11/12/12.md.
func (f *FS) EnsureJournalDay(day time.Time) (string, error) {
	path := fmt.Sprintf("/Journal/%04d/%02d/%02d/%02d.md", day.Year(), int(day.Month()), day.Day(), day.Day())
	abs, err := f.safePath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err == nil {
		return path, nil
	}
	content := fmt.Sprintf("# %s\n\n", day.Format("Monday, 02 Jan 2006"))
	if err := f.Write(path, []byte(content)); err != nil {
		return "", err
	}
	return path, nil
}
