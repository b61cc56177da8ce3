// Package watcher follows filesystem changes under the vault root and keeps
// the in-memory vault, the lexical index, and the entity graph current.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jakebiddle/notegraph/internal/graph"
	"github.com/jakebiddle/notegraph/internal/index"
	"github.com/jakebiddle/notegraph/internal/storage"
	"github.com/jakebiddle/notegraph/internal/vault"
)

// EventCallback is called after a watcher-driven change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watcher fans filesystem events out to the vault, index, and graph.
type Watcher struct {
	db     *index.DB
	store  storage.Provider
	vault  *vault.Store
	graph  *graph.Manager
	root   string
	logger *slog.Logger
	cb     EventCallback
}

// New creates a watcher. cb may be nil.
func New(db *index.DB, store storage.Provider, v *vault.Store, g *graph.Manager, root string, logger *slog.Logger, cb EventCallback) *Watcher {
	return &Watcher{db: db, store: store, vault: v, graph: g, root: root, logger: logger, cb: cb}
}

// Run starts an fsnotify watcher on the vault root and processes file
// change events until ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// entries whose files no longer exist on disk.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.root); err != nil {
		return err
	}

	w.logger.Info("watcher: started", slog.String("root", w.root))

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
			w.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			w.reconcileAfterRename()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories are added to the watch list and scanned.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(fw, absPath); addErr != nil {
						w.logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						w.logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					w.scanNewDir(absPath)
					continue
				}
			}

			// Only process .md files from here on.
			if !strings.HasSuffix(absPath, ".md") {
				continue
			}

			rel, relErr := filepath.Rel(w.root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				w.apply(kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				w.applyDelete(rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir). We drop the old entry
				// immediately and schedule a short reconciliation pass
				// to catch any stragglers.
				w.applyDelete(rel)
				scheduleReconcile()
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// apply routes a create/update to all consumers.
func (w *Watcher) apply(kind, rel string) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if err := index.IndexFile(w.db, rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if err := w.vault.Refresh(rel); err != nil {
		w.logger.Warn("watcher: vault refresh failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
	if kind == "created" {
		w.graph.OnCreated(rel)
	} else {
		w.graph.OnModified(rel)
	}
	w.logger.Debug("watcher: applied", slog.String("path", rel), slog.String("op", kind))
	if w.cb != nil {
		w.cb(kind, rel)
	}
}

func (w *Watcher) applyDelete(rel string) {
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.vault.Remove(rel)
	w.graph.OnDeleted(rel)
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	if w.cb != nil {
		w.cb("deleted", rel)
	}
}

// reconcileAfterRename does a lightweight sync using batch lookups:
// finds index entries without a corresponding file on disk and removes them,
// and finds on-disk files that are not indexed and indexes them.
func (w *Watcher) reconcileAfterRename() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			w.applyDelete(p)
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		w.apply("created", p)
	}
}

// scanNewDir applies any .md files found in a newly created directory.
func (w *Watcher) scanNewDir(dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		w.apply("created", filepath.ToSlash(rel))
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
