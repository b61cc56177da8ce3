package index

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jakebiddle/notegraph/internal/storage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpsertAndGetNote(t *testing.T) {
	db := openTestDB(t)

	row := NoteRow{
		Path:      "Characters/Arin.md",
		Title:     "Arin",
		Checksum:  "abc123",
		Tags:      []string{"hero", "wanderer"},
		UpdatedAt: time.Now().UTC(),
	}
	chunks := ChunkBody(row.Path, "# Arin\n\nA wandering hero.\n\n## History\n\nBorn in Valoria.")
	if err := db.UpsertNote(row, "body", chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetNote("Characters/Arin.md")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("note missing after upsert")
	}
	if got.Title != "Arin" || got.Checksum != "abc123" {
		t.Errorf("note = %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "hero" {
		t.Errorf("tags = %v", got.Tags)
	}

	cs, err := db.GetChecksum("Characters/Arin.md")
	if err != nil {
		t.Fatal(err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q", cs)
	}

	stored, err := db.Chunks("Characters/Arin.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != len(chunks) {
		t.Fatalf("chunks = %d, want %d", len(stored), len(chunks))
	}
	for i, c := range stored {
		if c.Position != i {
			t.Errorf("chunk %d position = %d", i, c.Position)
		}
	}
}

func TestUpsertReplacesChunks(t *testing.T) {
	db := openTestDB(t)

	row := NoteRow{Path: "n.md", Title: "N", Checksum: "v1", UpdatedAt: time.Now()}
	if err := db.UpsertNote(row, "b", ChunkBody("n.md", "# A\n\none\n\n# B\n\ntwo")); err != nil {
		t.Fatal(err)
	}
	row.Checksum = "v2"
	if err := db.UpsertNote(row, "b", ChunkBody("n.md", "just one section")); err != nil {
		t.Fatal(err)
	}

	chunks, err := db.Chunks("n.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1 after replace", len(chunks))
	}
}

func TestGetNoteMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetNote("nope.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
	cs, err := db.GetChecksum("nope.md")
	if err != nil || cs != "" {
		t.Errorf("checksum = %q, err = %v", cs, err)
	}
}

func TestDeleteNote(t *testing.T) {
	db := openTestDB(t)
	row := NoteRow{Path: "gone.md", Title: "Gone", Checksum: "x", UpdatedAt: time.Now()}
	if err := db.UpsertNote(row, "b", ChunkBody("gone.md", "text")); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteNote("gone.md"); err != nil {
		t.Fatal(err)
	}
	if got, _ := db.GetNote("gone.md"); got != nil {
		t.Error("note survived delete")
	}
	if chunks, _ := db.Chunks("gone.md"); len(chunks) != 0 {
		t.Errorf("chunks survived delete: %d", len(chunks))
	}
}

func TestListNotes(t *testing.T) {
	db := openTestDB(t)
	for _, p := range []string{"c.md", "a.md", "b.md"} {
		row := NoteRow{Path: p, Title: p, Checksum: p, UpdatedAt: time.Now()}
		if err := db.UpsertNote(row, "", nil); err != nil {
			t.Fatal(err)
		}
	}

	notes, total, err := db.ListNotes(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(notes) != 2 || notes[0].Path != "a.md" || notes[1].Path != "b.md" {
		t.Errorf("page = %+v", notes)
	}

	notes, _, err = db.ListNotes(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Path != "c.md" {
		t.Errorf("second page = %+v", notes)
	}
}

func TestSearch(t *testing.T) {
	db := openTestDB(t)

	fixtures := map[string]string{
		"Characters/Arin.md":  "# Arin\n\nA hero wandering the kingdom of Valoria.",
		"Kingdoms/Valoria.md": "# Valoria\n\nThe shining kingdom by the sea.",
		"Places/Sunhold.md":   "# Sunhold\n\nA quiet fishing town.",
	}
	for p, body := range fixtures {
		row := NoteRow{Path: p, Title: filepath.Base(p), Checksum: p, UpdatedAt: time.Now()}
		if err := db.UpsertNote(row, body, ChunkBody(p, body)); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := db.Search("kingdom", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) < 1 {
		t.Fatal("no hits for kingdom")
	}
	seen := make(map[string]bool)
	for _, h := range hits {
		seen[h.Path] = true
		if h.Score <= 0 {
			t.Errorf("hit %s score = %v", h.ChunkID, h.Score)
		}
		if h.ChunkID == "" {
			t.Error("hit missing chunk id")
		}
	}
	if seen["Places/Sunhold.md"] {
		t.Error("unrelated note matched")
	}

	hits, err = db.Search("zzzznothing", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %d, want 0", len(hits))
	}
}

func TestSyncIndexesAndPrunes(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Write("a.md", []byte("# A\n\nalpha")); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("b.md", []byte("# B\n\nbeta")); err != nil {
		t.Fatal(err)
	}

	if err := Sync(db, store, discard()); err != nil {
		t.Fatal(err)
	}
	paths, err := db.AllPaths()
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %d, want 2", len(paths))
	}

	// Remove one file from disk; a second sync prunes it.
	if err := store.Delete("b.md"); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, store, discard()); err != nil {
		t.Fatal(err)
	}
	paths, _ = db.AllPaths()
	if _, ok := paths["b.md"]; ok {
		t.Error("stale note not pruned")
	}
	if _, ok := paths["a.md"]; !ok {
		t.Error("live note missing")
	}
}

func TestChunkBody(t *testing.T) {
	body := "intro paragraph\n\n# First\n\nfirst section\n\n## Nested\n\nnested section"
	chunks := ChunkBody("n.md", body)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if chunks[0].Heading != "" || chunks[0].Text != "intro paragraph" {
		t.Errorf("chunk 0 = %+v", chunks[0])
	}
	if chunks[1].Heading != "First" {
		t.Errorf("chunk 1 heading = %q", chunks[1].Heading)
	}
	if chunks[2].Heading != "Nested" {
		t.Errorf("chunk 2 heading = %q", chunks[2].Heading)
	}
	if chunks[2].ID != "n.md#2" || chunks[2].Position != 2 {
		t.Errorf("chunk 2 id = %q position = %d", chunks[2].ID, chunks[2].Position)
	}
}

func TestChunkBodyEmpty(t *testing.T) {
	if chunks := ChunkBody("n.md", "   \n\n  "); len(chunks) != 0 {
		t.Errorf("chunks = %d, want 0", len(chunks))
	}
}
