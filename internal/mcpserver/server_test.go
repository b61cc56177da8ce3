package mcpserver

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jakebiddle/notegraph/internal/graph"
	"github.com/jakebiddle/notegraph/internal/index"
	"github.com/jakebiddle/notegraph/internal/noteservice"
	"github.com/jakebiddle/notegraph/internal/proposals"
	"github.com/jakebiddle/notegraph/internal/retriever"
	"github.com/jakebiddle/notegraph/internal/settings"
	"github.com/jakebiddle/notegraph/internal/storage"
	"github.com/jakebiddle/notegraph/internal/testutil"
	"github.com/jakebiddle/notegraph/internal/vault"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}

	db, err := index.Open(filepath.Join(t.TempDir(), "mcp-test.db"))
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

	aug := retriever.NewAugmenter(gm, st, db, store, testutil.Logger())
	svc := noteservice.NewService(store, db, v, gm, aug)
	props := proposals.NewStore(testutil.Logger())

	srv := New(svc, gm, props, st)
	return srv, store
}

// seedNote writes a note through the service so the index, vault cache, and
// graph all see it.
func seedNote(t *testing.T, srv *Server, path, content string) {
	t.Helper()
	if _, err := srv.svc.CreateNote(context.Background(), path, []byte(content)); err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "resolve_entities":
		result, err = srv.resolveEntities(ctx, req)
	case "expand_entities":
		result, err = srv.expandEntities(ctx, req)
	case "submit_relation_proposals":
		result, err = srv.submitRelationProposals(ctx, req)
	case "list_relation_proposals":
		result, err = srv.listRelationProposals(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestReadNote(t *testing.T) {
	srv, _ := testServer(t)
	seedNote(t, srv, "test.md", "# Test\nHello")

	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "test.md"})
	if text := resultText(r); !strings.Contains(text, "Hello") {
		t.Errorf("read result = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	seedNote(t, srv, "Characters/Arin.md", "# Arin\n\nArin wanders [[Kingdoms/Valoria]].")
	seedNote(t, srv, "Kingdoms/Valoria.md", "# Valoria\n\nThe shining kingdom.")

	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "Arin"})
	text := resultText(r)
	if r.IsError {
		t.Fatalf("search error: %q", text)
	}
	if !strings.Contains(text, "Characters/Arin.md") {
		t.Errorf("search result missing note: %q", text)
	}
	if !strings.Contains(text, `"entity_query_mode": true`) {
		t.Errorf("search result missing entity mode: %q", text)
	}
}

func TestResolveAndExpandEntities(t *testing.T) {
	srv, _ := testServer(t)
	seedNote(t, srv, "Characters/Arin.md", "# Arin\n\nSee [[Kingdoms/Valoria]].")
	seedNote(t, srv, "Kingdoms/Valoria.md", "# Valoria\n")

	r := callTool(t, srv, "resolve_entities", map[string]interface{}{"query": "where does Arin live"})
	text := resultText(r)
	if !strings.Contains(text, "Characters/Arin.md") {
		t.Errorf("resolve result = %q", text)
	}

	r = callTool(t, srv, "resolve_entities", map[string]interface{}{"query": "nothing known here"})
	if text := resultText(r); text != "no entities resolved" {
		t.Errorf("empty resolve = %q", text)
	}

	r = callTool(t, srv, "expand_entities", map[string]interface{}{
		"query":    "Arin",
		"max_hops": float64(1),
	})
	text = resultText(r)
	if !strings.Contains(text, "Kingdoms/Valoria.md") {
		t.Errorf("expand result missing linked note: %q", text)
	}
}

func TestSubmitAndListRelationProposals(t *testing.T) {
	srv, _ := testServer(t)

	payload := `[{"notePath":"Characters/Arin.md","predicate":"allied_with","targetPath":"Characters/Lira.md","confidence":85}]`
	r := callTool(t, srv, "submit_relation_proposals", map[string]interface{}{"proposals": payload})
	text := resultText(r)
	if !strings.Contains(text, "accepted 1 proposals (1 buffered)") {
		t.Errorf("submit result = %q", text)
	}
	if srv.props.Len() != 1 {
		t.Errorf("buffered = %d", srv.props.Len())
	}

	// Tool output with surrounding prose still yields the embedded array.
	wrapped := "Here are the relations I found:\n```json\n" + payload + "\n```\nDone."
	r = callTool(t, srv, "submit_relation_proposals", map[string]interface{}{"proposals": wrapped})
	if text := resultText(r); !strings.Contains(text, "accepted 1 proposals") {
		t.Errorf("wrapped submit result = %q", text)
	}

	r = callTool(t, srv, "list_relation_proposals", map[string]interface{}{})
	text = resultText(r)
	if !strings.Contains(text, "allied_with") {
		t.Errorf("list result = %q", text)
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, _ := testServer(t)
	seedNote(t, srv, "a.md", "links to [[b]]")
	seedNote(t, srv, "b.md", "# B\n")

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "b.md"})
	if text := resultText(r); text != "a.md" {
		t.Errorf("backlinks = %q, want a.md", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "a.md"})
	if text := resultText(r); text != "no backlinks found" {
		t.Errorf("no-backlink result = %q", text)
	}
}

func TestRelationFormatContract(t *testing.T) {
	c := RelationFormatContract()
	for _, want := range []string{"allied_with", "notePath", "targetPath", "confidence"} {
		if !strings.Contains(c, want) {
			t.Errorf("contract missing %q", want)
		}
	}
}
