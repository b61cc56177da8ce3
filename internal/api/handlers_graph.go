package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jakebiddle/notegraph/internal/settings"
)

// ResolveEntities handles GET /api/entities/resolve.
func (h *Handler) ResolveEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	resolved, err := h.graph.ResolveEntities(r.Context(), q)
	if err != nil {
		slog.Error("resolve entities failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": resolved})
}

// EntityEdges handles GET /api/entities/edges/*.
func (h *Handler) EntityEdges(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.graph.EnsureReady(r.Context()); err != nil {
		slog.Error("graph build failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	node := h.graph.GetNode(path)
	if node == nil {
		writeJSON(w, http.StatusNotFound, errorBody("entity not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"node":  node,
		"edges": h.graph.GetOutgoingEdges(path),
	})
}

// RebuildGraph handles POST /api/graph/rebuild.
func (h *Handler) RebuildGraph(w http.ResponseWriter, r *http.Request) {
	if err := h.graph.Rebuild(r.Context()); err != nil {
		slog.Error("graph rebuild failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if h.rebuilt != nil {
		h.rebuilt()
	}
	writeJSON(w, http.StatusOK, GraphStatusResponse{
		Ready: h.graph.Ready(),
		Nodes: h.graph.NodeCount(),
		Edges: h.graph.EdgeCount(),
	})
}

// GraphStatus handles GET /api/graph/status.
func (h *Handler) GraphStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GraphStatusResponse{
		Ready: h.graph.Ready(),
		Nodes: h.graph.NodeCount(),
		Edges: h.graph.EdgeCount(),
	})
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Get())
}

// UpdateSettings handles PATCH /api/settings. Only the fields present in
// the body are changed; a graph-affecting change invalidates the graph.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	var decodeErr error
	h.settings.Update(func(s *settings.Settings) {
		merged, err := json.Marshal(s)
		if err != nil {
			decodeErr = err
			return
		}
		var full map[string]json.RawMessage
		if err := json.Unmarshal(merged, &full); err != nil {
			decodeErr = err
			return
		}
		for k, v := range patch {
			full[k] = v
		}
		raw, err := json.Marshal(full)
		if err != nil {
			decodeErr = err
			return
		}
		decodeErr = json.Unmarshal(raw, s)
	})
	if decodeErr != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid settings value"))
		return
	}
	writeJSON(w, http.StatusOK, h.settings.Get())
}
