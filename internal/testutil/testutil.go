// Package testutil provides shared test helpers for setting up vaults,
// databases, and graph fixtures.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/jakebiddle/notegraph/internal/index"
	"github.com/jakebiddle/notegraph/internal/settings"
	"github.com/jakebiddle/notegraph/internal/storage"
	"github.com/jakebiddle/notegraph/internal/vault"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notegraph-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestVaultStore builds a loaded vault cache over the given files
// (path -> content) and returns it with its settings store.
func TestVaultStore(t *testing.T, files map[string]string) (*vault.Store, *settings.Store, storage.Provider) {
	t.Helper()
	_, store := TestVault(t)
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	st := settings.NewStore(settings.Defaults())
	v := vault.New(store, st, Logger())
	if err := v.Load(); err != nil {
		t.Fatal(err)
	}
	return v, st, store
}
