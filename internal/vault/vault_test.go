package vault_test

import (
	"testing"

	"github.com/jakebiddle/notegraph/internal/settings"
	"github.com/jakebiddle/notegraph/internal/testutil"
)

func TestLoadAndMetadata(t *testing.T) {
	v, _, _ := testutil.TestVaultStore(t, map[string]string{
		"Characters/Arin.md": "---\ntitle: Arin\ntags:\n  - hero\n---\n\n# Arin\n\nSee [[Kingdoms/Valoria|the realm]].",
		"Kingdoms/Valoria.md": "# Valoria\n",
		"notes.txt":           "not markdown",
	})

	docs := v.ListDocuments()
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2 (non-markdown excluded)", len(docs))
	}

	meta, ok := v.Metadata("Characters/Arin.md")
	if !ok {
		t.Fatal("metadata missing")
	}
	if meta.Title != "Arin" {
		t.Errorf("title = %q", meta.Title)
	}
	if len(meta.Tags) != 1 || meta.Tags[0] != "hero" {
		t.Errorf("tags = %v", meta.Tags)
	}
	if len(meta.Links) != 1 || meta.Links[0].Target != "Kingdoms/Valoria" || meta.Links[0].Display != "the realm" {
		t.Errorf("links = %+v", meta.Links)
	}
	if meta.Checksum == "" {
		t.Error("checksum empty")
	}
}

func TestRefreshAndRemove(t *testing.T) {
	v, _, store := testutil.TestVaultStore(t, map[string]string{
		"a.md": "# One\n",
	})

	if err := store.Write("a.md", []byte("# Two\n")); err != nil {
		t.Fatal(err)
	}
	if err := v.Refresh("a.md"); err != nil {
		t.Fatal(err)
	}
	meta, _ := v.Metadata("a.md")
	if meta.Title != "Two" {
		t.Errorf("title after refresh = %q", meta.Title)
	}

	v.Remove("a.md")
	if _, ok := v.Metadata("a.md"); ok {
		t.Error("metadata survived remove")
	}

	// Refreshing a deleted file drops it and reports the read error.
	if err := store.Write("b.md", []byte("# B\n")); err != nil {
		t.Fatal(err)
	}
	if err := v.Refresh("b.md"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("b.md"); err != nil {
		t.Fatal(err)
	}
	if err := v.Refresh("b.md"); err == nil {
		t.Error("expected error refreshing missing file")
	}
	if _, ok := v.Metadata("b.md"); ok {
		t.Error("missing file still cached")
	}
}

func TestResolveLink(t *testing.T) {
	v, _, _ := testutil.TestVaultStore(t, map[string]string{
		"Characters/Arin.md": "# Arin\n",
		"Characters/Lira.md": "# Lira\n",
		"Kingdoms/Lira.md":   "# Lira of Kingdoms\n",
	})

	cases := []struct {
		candidate, source, want string
	}{
		// Exact path.
		{"Characters/Arin.md", "x.md", "Characters/Arin.md"},
		// Path with .md appended.
		{"Characters/Arin", "x.md", "Characters/Arin.md"},
		// Wikilink syntax with display text.
		{"[[Characters/Arin|The Wanderer]]", "x.md", "Characters/Arin.md"},
		// Basename, case-insensitive.
		{"arin", "x.md", "Characters/Arin.md"},
		// Ambiguous basename prefers the source directory.
		{"Lira", "Kingdoms/Valoria.md", "Kingdoms/Lira.md"},
		// Ambiguity without a directory hint resolves to the first sorted match.
		{"Lira", "x.md", "Characters/Lira.md"},
		// No match.
		{"Nobody", "x.md", ""},
		{"", "x.md", ""},
	}
	for _, tc := range cases {
		if got := v.ResolveLink(tc.candidate, tc.source); got != tc.want {
			t.Errorf("ResolveLink(%q, %q) = %q, want %q", tc.candidate, tc.source, got, tc.want)
		}
	}
}

func TestEligiblePrefixes(t *testing.T) {
	v, st, _ := testutil.TestVaultStore(t, map[string]string{
		"Lore/a.md":   "# A\n",
		"Drafts/b.md": "# B\n",
	})

	if !v.Eligible("Lore/a.md") || !v.Eligible("Drafts/b.md") {
		t.Fatal("everything should be eligible by default")
	}
	if v.Eligible("Lore/raw.txt") {
		t.Error("non-markdown eligible")
	}

	st.Update(func(s *settings.Settings) {
		s.IncludePrefixes = []string{"Lore/"}
	})
	if !v.Eligible("Lore/a.md") {
		t.Error("included prefix not eligible")
	}
	if v.Eligible("Drafts/b.md") {
		t.Error("path outside include prefixes eligible")
	}

	st.Update(func(s *settings.Settings) {
		s.IncludePrefixes = nil
		s.ExcludePrefixes = []string{"Drafts/"}
	})
	if v.Eligible("Drafts/b.md") {
		t.Error("excluded prefix eligible")
	}
	if !v.Eligible("Lore/a.md") {
		t.Error("non-excluded path not eligible")
	}
}
