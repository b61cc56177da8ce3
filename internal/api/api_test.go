package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/jakebiddle/notegraph/internal/graph"
	"github.com/jakebiddle/notegraph/internal/index"
	"github.com/jakebiddle/notegraph/internal/noteservice"
	"github.com/jakebiddle/notegraph/internal/proposals"
	"github.com/jakebiddle/notegraph/internal/relations"
	"github.com/jakebiddle/notegraph/internal/retriever"
	"github.com/jakebiddle/notegraph/internal/settings"
	"github.com/jakebiddle/notegraph/internal/storage"
	"github.com/jakebiddle/notegraph/internal/testutil"
	"github.com/jakebiddle/notegraph/internal/vault"
)

type env struct {
	router   http.Handler
	store    storage.Provider
	props    *proposals.Store
	st       *settings.Store
	rebuilds int
}

// testEnv wires the full stack behind the router: temp vault, SQLite index,
// metadata cache, graph manager, and relation services.
func testEnv(t *testing.T, authEnabled bool, token string) *env {
	t.Helper()

	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	db, err := index.Open(filepath.Join(t.TempDir(), "api-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
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
	rel := relations.NewService(v, store, st, testutil.Logger())

	e := &env{store: store, props: props, st: st}
	e.router = NewRouter(svc, gm, rel, props, st, authEnabled, token, nil, func() { e.rebuilds++ })
	return e
}

func (e *env) do(t *testing.T, method, path string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, val := range header {
		req.Header.Set(k, val)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	e := testEnv(t, true, "secret-token")

	w := e.do(t, http.MethodGet, "/notes", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}

	w = e.do(t, http.MethodGet, "/notes", nil, map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", w.Code)
	}

	w = e.do(t, http.MethodGet, "/notes", nil, map[string]string{"Authorization": "Bearer secret-token"})
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", w.Code)
	}
}

func TestNoteCRUD(t *testing.T) {
	e := testEnv(t, false, "")

	// Create.
	w := e.do(t, http.MethodPost, "/notes", map[string]string{
		"path":    "Characters/Arin.md",
		"content": "# Arin\n\nA wandering hero.",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	// Duplicate create conflicts.
	w = e.do(t, http.MethodPost, "/notes", map[string]string{
		"path":    "Characters/Arin.md",
		"content": "again",
	}, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", w.Code)
	}

	// Get.
	w = e.do(t, http.MethodGet, "/notes/Characters/Arin.md", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var detail struct {
		Path     string `json:"path"`
		Title    string `json:"title"`
		Checksum string `json:"checksum"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatal(err)
	}
	if detail.Title != "Arin" || detail.Checksum == "" {
		t.Errorf("detail = %+v", detail)
	}

	// Update with stale If-Match conflicts.
	w = e.do(t, http.MethodPut, "/notes/Characters/Arin.md",
		map[string]string{"content": "# Arin\n\nUpdated."},
		map[string]string{"If-Match": "stale"})
	if w.Code != http.StatusConflict {
		t.Errorf("stale update status = %d, want 409", w.Code)
	}

	// Update with the current checksum succeeds.
	w = e.do(t, http.MethodPut, "/notes/Characters/Arin.md",
		map[string]string{"content": "# Arin\n\nUpdated."},
		map[string]string{"If-Match": detail.Checksum})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}

	// Move.
	w = e.do(t, http.MethodPost, "/notes/move", map[string]string{
		"from": "Characters/Arin.md",
		"to":   "Heroes/Arin.md",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d, body = %s", w.Code, w.Body.String())
	}

	// List.
	w = e.do(t, http.MethodGet, "/notes", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatal(w.Code)
	}
	var list struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 {
		t.Errorf("total = %d, want 1", list.Total)
	}

	// Delete.
	w = e.do(t, http.MethodDelete, "/notes/Heroes/Arin.md", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/notes/Heroes/Arin.md", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", w.Code)
	}
}

func TestSearchAndEntities(t *testing.T) {
	e := testEnv(t, false, "")

	w := e.do(t, http.MethodPost, "/notes", map[string]string{
		"path":    "Characters/Arin.md",
		"content": "# Arin\n\nArin rules [[Kingdoms/Valoria]].",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatal(w.Body.String())
	}
	w = e.do(t, http.MethodPost, "/notes", map[string]string{
		"path":    "Kingdoms/Valoria.md",
		"content": "# Valoria\n\nThe shining kingdom.",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatal(w.Body.String())
	}

	w = e.do(t, http.MethodPost, "/graph/rebuild", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d", w.Code)
	}
	var status GraphStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if !status.Ready || status.Nodes < 2 {
		t.Errorf("status = %+v", status)
	}

	w = e.do(t, http.MethodGet, "/entities/resolve?q=Arin", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve status = %d", w.Code)
	}
	var resolved struct {
		Entities []struct {
			Path string `json:"path"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resolved); err != nil {
		t.Fatal(err)
	}
	if len(resolved.Entities) == 0 {
		t.Fatal("no entities resolved")
	}

	w = e.do(t, http.MethodGet, "/entities/edges/Characters/Arin.md", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("edges status = %d", w.Code)
	}

	w = e.do(t, http.MethodGet, "/entities/edges/Nobody.md", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown entity status = %d", w.Code)
	}

	w = e.do(t, http.MethodGet, "/search?q=Arin", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d, body = %s", w.Code, w.Body.String())
	}
	var result struct {
		EntityQueryMode bool `json:"entity_query_mode"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.EntityQueryMode {
		t.Error("entity query mode not set for entity query")
	}
}

func TestRebuildPublishesGraphEvent(t *testing.T) {
	e := testEnv(t, false, "")

	w := e.do(t, http.MethodPost, "/graph/rebuild", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d, body = %s", w.Code, w.Body.String())
	}
	if e.rebuilds != 1 {
		t.Errorf("rebuild notifications = %d, want 1", e.rebuilds)
	}

	w = e.do(t, http.MethodPost, "/graph/rebuild", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("second rebuild status = %d", w.Code)
	}
	if e.rebuilds != 2 {
		t.Errorf("rebuild notifications = %d, want 2", e.rebuilds)
	}
}

func TestRelationEndpoints(t *testing.T) {
	e := testEnv(t, false, "")

	for path, content := range map[string]string{
		"Characters/Arin.md": "# Arin\n",
		"Characters/Lira.md": "# Lira\n",
	} {
		w := e.do(t, http.MethodPost, "/notes", map[string]string{"path": path, "content": content}, nil)
		if w.Code != http.StatusCreated {
			t.Fatal(w.Body.String())
		}
	}

	// Seed the session buffer the way a tool submission would.
	n := e.props.IngestFromToolOutput("test", `[{"note_path":"Characters/Arin.md","predicate":"allied_with","target_path":"Characters/Lira.md","confidence":85}]`)
	if n != 1 {
		t.Fatalf("ingested = %d", n)
	}

	w := e.do(t, http.MethodGet, "/relations/batches?vault=false", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("batches status = %d, body = %s", w.Code, w.Body.String())
	}
	var batchResp struct {
		Batches []relations.DraftBatch `json:"batches"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &batchResp); err != nil {
		t.Fatal(err)
	}
	if len(batchResp.Batches) != 1 || len(batchResp.Batches[0].Rows) != 1 {
		t.Fatalf("batches = %+v", batchResp.Batches)
	}

	// Apply the drafted row.
	w = e.do(t, http.MethodPost, "/relations/apply", map[string]interface{}{
		"rows": batchResp.Batches[0].Rows,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("apply status = %d, body = %s", w.Code, w.Body.String())
	}
	var applied relations.ApplyResult
	if err := json.Unmarshal(w.Body.Bytes(), &applied); err != nil {
		t.Fatal(err)
	}
	if applied.UpdatedNotes != 1 || applied.WrittenRelations != 1 {
		t.Errorf("apply result = %+v", applied)
	}

	// Proposal buffer survives apply until cleared.
	w = e.do(t, http.MethodGet, "/proposals", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatal(w.Code)
	}
	w = e.do(t, http.MethodDelete, "/proposals", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("clear status = %d", w.Code)
	}
	if e.props.Len() != 0 {
		t.Errorf("proposals after clear = %d", e.props.Len())
	}
}

func TestSettingsPatch(t *testing.T) {
	e := testEnv(t, false, "")

	w := e.do(t, http.MethodGet, "/settings", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatal(w.Code)
	}

	w = e.do(t, http.MethodPatch, "/settings", map[string]interface{}{
		"graph_max_hops": 4,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}
	cur := e.st.Get()
	if cur.GraphMaxHops != 4 {
		t.Errorf("max hops = %d, want 4", cur.GraphMaxHops)
	}
	// Untouched fields survive the patch.
	if !cur.SemanticEnabled || cur.SemanticBatchSize != 25 {
		t.Errorf("settings = %+v", cur)
	}

	w = e.do(t, http.MethodPatch, "/settings", map[string]interface{}{
		"graph_max_hops": "not a number",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad patch status = %d, want 400", w.Code)
	}
}
