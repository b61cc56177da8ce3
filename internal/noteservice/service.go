// Package noteservice coordinates storage, the lexical index, the vault
// cache, and the entity graph behind one note-level API.
package noteservice

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jakebiddle/notegraph/internal/apperr"
	"github.com/jakebiddle/notegraph/internal/checksum"
	"github.com/jakebiddle/notegraph/internal/graph"
	"github.com/jakebiddle/notegraph/internal/index"
	"github.com/jakebiddle/notegraph/internal/parser"
	"github.com/jakebiddle/notegraph/internal/retriever"
	"github.com/jakebiddle/notegraph/internal/storage"
	"github.com/jakebiddle/notegraph/internal/vault"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Backlinks   []string       `json:"backlinks"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates storage, index, vault, and graph operations.
type Service struct {
	store     storage.Provider
	db        *index.DB
	vault     *vault.Store
	graph     *graph.Manager
	augmenter *retriever.Augmenter
}

// NewService creates a new note service.
func NewService(store storage.Provider, db *index.DB, v *vault.Store, g *graph.Manager, aug *retriever.Augmenter) *Service {
	return &Service{store: store, db: db, vault: v, graph: g, augmenter: aug}
}

// GetNote reads a note from storage, parses it, and enriches with backlinks.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildNoteDetail(path, data)
}

// CreateNote writes a new note and propagates it to the index, vault, and graph.
func (s *Service) CreateNote(_ context.Context, path string, content []byte) (*NoteDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.propagate(path, content); err != nil {
		return nil, err
	}
	s.graph.OnCreated(path)
	return s.buildNoteDetail(path, content)
}

// UpdateNote writes updated content with optimistic concurrency.
func (s *Service) UpdateNote(_ context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.propagate(path, content); err != nil {
		return nil, err
	}
	s.graph.OnModified(path)
	return s.buildNoteDetail(path, content)
}

// DeleteNote removes a note from storage, index, vault, and graph.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		return err
	}
	if err := s.db.DeleteNote(path); err != nil {
		return err
	}
	s.vault.Remove(path)
	s.graph.OnDeleted(path)
	return nil
}

// MoveNote renames a note; the graph keeps inbound display aliases attached
// to the entity under its new path.
func (s *Service) MoveNote(_ context.Context, oldPath, newPath string) (*NoteDetail, error) {
	if _, err := s.store.Read(newPath); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Move(oldPath, newPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	data, err := s.store.Read(newPath)
	if err != nil {
		return nil, err
	}
	if err := s.db.DeleteNote(oldPath); err != nil {
		return nil, err
	}
	s.vault.Remove(oldPath)
	if err := s.propagate(newPath, data); err != nil {
		return nil, err
	}
	s.graph.OnRenamed(oldPath, newPath)
	return s.buildNoteDetail(newPath, data)
}

// ListNotes returns paginated notes.
func (s *Service) ListNotes(_ context.Context, limit, offset int) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search runs the lexical search and augments the hits through the entity
// graph.
func (s *Service) Search(ctx context.Context, query string, limit int) (retriever.AugmentResult, error) {
	hits, err := s.db.Search(query, limit)
	if err != nil {
		return retriever.AugmentResult{}, err
	}
	base := make([]retriever.Document, len(hits))
	for i, h := range hits {
		base[i] = retriever.Document{
			ChunkID: h.ChunkID,
			Path:    h.Path,
			Title:   h.Title,
			Content: h.Snippet,
			Score:   h.Score,
		}
	}
	return s.augmenter.AugmentDocuments(ctx, query, base)
}

// Backlinks returns the paths of notes that link to the given target,
// derived from the graph's reciprocal backlink edges.
func (s *Service) Backlinks(ctx context.Context, target string) ([]string, error) {
	if err := s.graph.EnsureReady(ctx); err != nil {
		return nil, err
	}
	var out []string
	for _, e := range s.graph.GetOutgoingEdges(target) {
		if e.Relation == graph.RelBacklink {
			out = append(out, e.ToID)
		}
	}
	return out, nil
}

// propagate upserts the note into the index and refreshes the vault cache.
func (s *Service) propagate(path string, data []byte) error {
	if err := index.IndexFile(s.db, path, data); err != nil {
		return err
	}
	return s.vault.Refresh(path)
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(path string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.Backlinks(context.Background(), path)
	if err != nil {
		bl = nil
	}
	return &NoteDetail{
		Path:        path,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Backlinks:   nonNilSlice(bl),
		UpdatedAt:   time.Now(),
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
