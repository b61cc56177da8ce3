package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jakebiddle/notegraph/internal/relations"
)

// RelationBatches handles GET /api/relations/batches. It builds draft
// batches from the vault frontmatter and the session proposal buffer.
func (h *Handler) RelationBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size, _ := strconv.Atoi(q.Get("batch_size"))
	includeVault := q.Get("vault") != "false"

	opts := relations.BuildOptions{
		IncludeVaultFrontmatter: includeVault,
		BatchSize:               size,
	}
	if h.props != nil {
		opts.Adapters = append(opts.Adapters, relations.NewStoreAdapter(h.props))
	}

	batches, err := h.rel.BuildDraftBatches(opts)
	if err != nil {
		slog.Error("build batches failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

// ApplyRelations handles POST /api/relations/apply.
func (h *Handler) ApplyRelations(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req ApplyRelationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Rows) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("rows are required"))
		return
	}
	result := h.rel.ApplyEditedBatch(req.Rows)
	writeJSON(w, http.StatusOK, result)
}

// ListProposals handles GET /api/proposals.
func (h *Handler) ListProposals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"proposals": h.props.All()})
}

// ClearProposals handles DELETE /api/proposals.
func (h *Handler) ClearProposals(w http.ResponseWriter, r *http.Request) {
	h.props.Clear()
	w.WriteHeader(http.StatusNoContent)
}
