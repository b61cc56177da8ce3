package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jakebiddle/notegraph/internal/graph"
	"github.com/jakebiddle/notegraph/internal/noteservice"
	"github.com/jakebiddle/notegraph/internal/proposals"
	"github.com/jakebiddle/notegraph/internal/relations"
	"github.com/jakebiddle/notegraph/internal/settings"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// onGraphRebuilt, if non-nil, is invoked after an explicit graph rebuild.
func NewRouter(
	svc *noteservice.Service,
	gm *graph.Manager,
	rel *relations.Service,
	props *proposals.Store,
	st *settings.Store,
	authEnabled bool,
	token string,
	sseHandler http.Handler,
	onGraphRebuilt func(),
) chi.Router {
	h := NewHandler(svc, gm, rel, props, st)
	h.rebuilt = onGraphRebuilt

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/move", h.MoveNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Search (graph-augmented).
	r.Get("/search", h.Search)

	// Entity graph.
	r.Get("/entities/resolve", h.ResolveEntities)
	r.Get("/entities/edges/*", h.EntityEdges)
	r.Post("/graph/rebuild", h.RebuildGraph)
	r.Get("/graph/status", h.GraphStatus)

	// Relation batches.
	r.Get("/relations/batches", h.RelationBatches)
	r.Post("/relations/apply", h.ApplyRelations)

	// Session proposals.
	r.Get("/proposals", h.ListProposals)
	r.Delete("/proposals", h.ClearProposals)

	// Settings.
	r.Get("/settings", h.GetSettings)
	r.Patch("/settings", h.UpdateSettings)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
