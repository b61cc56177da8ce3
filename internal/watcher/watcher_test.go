package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jakebiddle/notegraph/internal/graph"
	"github.com/jakebiddle/notegraph/internal/index"
	"github.com/jakebiddle/notegraph/internal/settings"
	"github.com/jakebiddle/notegraph/internal/storage"
	"github.com/jakebiddle/notegraph/internal/testutil"
	"github.com/jakebiddle/notegraph/internal/vault"
)

type watcherEnv struct {
	root  string
	store storage.Provider
	db    *index.DB
	vault *vault.Store
	graph *graph.Manager
}

func newWatcherEnv(t *testing.T) *watcherEnv {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	db, err := index.Open(filepath.Join(t.TempDir(), "watch-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	st := settings.NewStore(settings.Defaults())
	v := vault.New(store, st, testutil.Logger())
	if err := v.Load(); err != nil {
		t.Fatal(err)
	}
	gm := graph.NewManager(v, st, testutil.Logger())
	t.Cleanup(gm.Close)
	if err := gm.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	return &watcherEnv{root: root, store: store, db: db, vault: v, graph: gm}
}

func (e *watcherEnv) start(t *testing.T, cb EventCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	w := New(e.db, e.store, e.vault, e.graph, e.root, testutil.Logger(), cb)
	go func() { _ = w.Run(ctx) }()
	// Give the watcher time to register the root.
	time.Sleep(100 * time.Millisecond)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	e := newWatcherEnv(t)

	var mu sync.Mutex
	var events []string
	e.start(t, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	_ = os.WriteFile(filepath.Join(e.root, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := e.db.GetChecksum("new.md")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		_, ok := e.vault.Metadata("new.md")
		return ok
	}, "new file not in vault cache")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range events {
			if ev == "created:new.md" {
				return true
			}
		}
		return false
	}, "expected created:new.md callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	e := newWatcherEnv(t)
	e.start(t, nil)

	subDir := filepath.Join(e.root, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := e.db.GetChecksum("subdir/deep.md")
		return cs != ""
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesEverywhere(t *testing.T) {
	e := newWatcherEnv(t)

	_ = os.WriteFile(filepath.Join(e.root, "del.md"), []byte("# Delete Me"), 0o644)
	if err := index.Sync(e.db, e.store, testutil.Logger()); err != nil {
		t.Fatal(err)
	}
	if err := e.vault.Refresh("del.md"); err != nil {
		t.Fatal(err)
	}

	cs, _ := e.db.GetChecksum("del.md")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	e.start(t, nil)
	_ = os.Remove(filepath.Join(e.root, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := e.db.GetChecksum("del.md")
		return cs == ""
	}, "deleted file still in index")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		_, ok := e.vault.Metadata("del.md")
		return !ok
	}, "deleted file still in vault cache")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	e := newWatcherEnv(t)

	_ = os.WriteFile(filepath.Join(e.root, "old.md"), []byte("# Rename"), 0o644)
	if err := index.Sync(e.db, e.store, testutil.Logger()); err != nil {
		t.Fatal(err)
	}

	e.start(t, nil)
	_ = os.Rename(filepath.Join(e.root, "old.md"), filepath.Join(e.root, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := e.db.GetChecksum("old.md")
		newCS, _ := e.db.GetChecksum("renamed.md")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
