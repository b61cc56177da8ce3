package api

import (
	"github.com/jakebiddle/notegraph/internal/noteservice"
	"github.com/jakebiddle/notegraph/internal/relations"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Content string `json:"content" example:"# Hello\nWorld" validate:"required"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent" validate:"required"`
}

// MoveNoteRequest is the request body for renaming a note.
type MoveNoteRequest struct {
	From string `json:"from" example:"notes/old.md" validate:"required"`
	To   string `json:"to" example:"notes/new.md" validate:"required"`
}

// ApplyRelationsRequest carries an edited batch back for persistence.
type ApplyRelationsRequest struct {
	Rows []relations.DraftRow `json:"rows" validate:"required"`
}

// GraphStatusResponse reports graph readiness and size.
type GraphStatusResponse struct {
	Ready bool `json:"ready"`
	Nodes int  `json:"nodes"`
	Edges int  `json:"edges"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}
