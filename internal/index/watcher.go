package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/pathcodec"
	"github.com/starford/ansuz/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the vault root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation.
//
// New directories created at runtime are added to the watch list. A
// removed or renamed directory cascades into a folder-prefix delete, so
// every nested page leaves the index together. Rename events fire on
// the OLD path only; a debounced reconciliation pass catches the pages
// reappearing under the new name.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name
			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			pagePath := "/" + filepath.ToSlash(rel)

			// New directories: start watching, index anything inside.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(db, store, vaultRoot, absPath, logger, cb)
					continue
				}
			}

			if !strings.HasSuffix(pagePath, pathcodec.PageSuffix) {
				// A vanished non-page path is a folder: cascade the
				// delete over its prefix and reconcile.
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if delErr := db.DeleteFolder(pagePath); delErr != nil {
						logger.Warn("watcher: folder delete failed", slog.String("path", pagePath), slog.String("error", delErr.Error()))
					} else {
						logger.Debug("watcher: folder deleted", slog.String("path", pagePath))
						if cb != nil {
							cb("deleted", pagePath)
						}
					}
					scheduleReconcile()
				}
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(pagePath)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", pagePath), slog.String("error", readErr.Error()))
					continue
				}
				outcome, idxErr := db.IndexPage(pagePath, data)
				if idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", pagePath), slog.String("error", idxErr.Error()))
					continue
				}
				if outcome == Unchanged {
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", pagePath), slog.String("op", kind))
				if cb != nil {
					cb(kind, pagePath)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeletePage(pagePath); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", pagePath), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", pagePath))
				if cb != nil {
					cb("deleted", pagePath)
				}

			case ev.Op&fsnotify.Rename != 0:
				if delErr := db.DeletePage(pagePath); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", pagePath), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("path", pagePath))
					if cb != nil {
						cb("deleted", pagePath)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile does a lightweight sync using batch lookups: index entries
// without a file on disk are removed, and on-disk pages are re-indexed
// through the checksum gate.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	indexed, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
	}

	for p := range indexed {
		if _, ok := disk[p]; !ok {
			if delErr := db.DeletePage(p); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				if cb != nil {
					cb("deleted", p)
				}
			}
		}
	}

	for p := range disk {
		data, readErr := store.Read(p)
		if readErr != nil {
			continue
		}
		outcome, idxErr := db.IndexPage(p, data)
		if idxErr != nil || outcome == Unchanged {
			continue
		}
		logger.Debug("reconcile: indexed", slog.String("path", p))
		if cb != nil {
			cb("created", p)
		}
	}
}

// indexNewDir indexes any page files found in a newly created directory.
func indexNewDir(db *DB, store storage.Provider, vaultRoot, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, pathcodec.PageSuffix) {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, path)
		if relErr != nil {
			return nil
		}
		pagePath := "/" + filepath.ToSlash(rel)
		data, readErr := store.Read(pagePath)
		if readErr != nil {
			return nil
		}
		if outcome, idxErr := db.IndexPage(pagePath, data); idxErr == nil && outcome == Updated {
			logger.Debug("watcher: indexed from new dir", slog.String("path", pagePath))
			if cb != nil {
				cb("created", pagePath)
			}
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
