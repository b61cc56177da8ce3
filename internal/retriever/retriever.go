// Package retriever augments lexical search results with documents reached
// through the entity graph.
package retriever

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/jakebiddle/notegraph/internal/graph"
	"github.com/jakebiddle/notegraph/internal/models"
	"github.com/jakebiddle/notegraph/internal/parser"
	"github.com/jakebiddle/notegraph/internal/settings"
)

// Document is one retrievable unit, lexical or graph-derived.
type Document struct {
	ChunkID        string                      `json:"chunk_id,omitempty"`
	Path           string                      `json:"path"`
	Title          string                      `json:"title,omitempty"`
	Content        string                      `json:"content"`
	Score          float64                     `json:"score"`
	EntityEvidence bool                        `json:"entity_evidence,omitempty"`
	Explanation    *graph.ExpansionExplanation `json:"explanation,omitempty"`
}

// AugmentResult is the merged document set plus query-mode diagnostics.
type AugmentResult struct {
	Documents         []Document             `json:"documents"`
	EntityQueryMode   bool                   `json:"entity_query_mode"`
	HasEntityEvidence bool                   `json:"has_entity_evidence"`
	ResolvedEntities  []graph.ResolvedEntity `json:"resolved_entities,omitempty"`
}

// ChunkSource serves a note's indexed chunks.
type ChunkSource interface {
	Chunks(path string) ([]models.Chunk, error)
}

// Reader reads raw note content, used when a note has no indexed chunks.
type Reader interface {
	Read(path string) ([]byte, error)
}

// Augmenter merges graph expansion hits into lexical result sets.
type Augmenter struct {
	graph    *graph.Manager
	settings *settings.Store
	chunks   ChunkSource
	reader   Reader
	logger   *slog.Logger
}

// NewAugmenter creates an augmenter.
func NewAugmenter(g *graph.Manager, st *settings.Store, chunks ChunkSource, reader Reader, logger *slog.Logger) *Augmenter {
	return &Augmenter{graph: g, settings: st, chunks: chunks, reader: reader, logger: logger}
}

// AugmentDocuments resolves entity mentions in the query, expands from them
// over the graph, and merges the hit documents into base. When graph
// retrieval is disabled or nothing resolves, base passes through unchanged.
func (a *Augmenter) AugmentDocuments(ctx context.Context, query string, base []Document) (AugmentResult, error) {
	cfg := a.settings.Get()
	if !cfg.GraphRetrievalEnabled {
		return AugmentResult{Documents: base}, nil
	}

	resolved, err := a.graph.ResolveEntities(ctx, query)
	if err != nil {
		// Resolution trouble degrades to passthrough, never fails retrieval.
		if a.logger != nil {
			a.logger.Warn("entity resolution failed, serving lexical results only", slog.String("error", err.Error()))
		}
		return AugmentResult{Documents: base}, nil
	}
	if len(resolved) == 0 {
		return AugmentResult{Documents: base}, nil
	}

	hits := a.graph.ExpandFromResolvedEntities(resolved, cfg.GraphMaxHops, cfg.GraphMaxDocs)
	graphDocs := a.hitDocuments(hits)

	merged := mergeDocuments(base, graphDocs)
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return identityKey(merged[i]) < identityKey(merged[j])
	})

	result := AugmentResult{
		Documents:        merged,
		EntityQueryMode:  true,
		ResolvedEntities: resolved,
	}
	for _, d := range merged {
		if d.EntityEvidence {
			result.HasEntityEvidence = true
			break
		}
	}
	return result, nil
}

// hitDocuments turns expansion hits into documents, preferring indexed
// chunks and falling back to raw note content.
func (a *Augmenter) hitDocuments(hits []graph.ExpansionHit) []Document {
	var out []Document
	for _, hit := range hits {
		content, chunkID, title := a.contentFor(hit.Path)
		if hit.Title != "" {
			title = hit.Title
		}
		if content == "" {
			continue
		}
		expl := hit.Explanation
		out = append(out, Document{
			ChunkID:        chunkID,
			Path:           hit.Path,
			Title:          title,
			Content:        content,
			Score:          hit.Score,
			EntityEvidence: true,
			Explanation:    &expl,
		})
	}
	return out
}

func (a *Augmenter) contentFor(path string) (content, chunkID, title string) {
	if a.chunks != nil {
		if chunks, err := a.chunks.Chunks(path); err == nil && len(chunks) > 0 {
			return chunks[0].Text, chunks[0].ID, chunks[0].Heading
		}
	}
	if a.reader == nil {
		return "", "", ""
	}
	data, err := a.reader.Read(path)
	if err != nil {
		if a.logger != nil {
			a.logger.Debug("graph hit unreadable", slog.String("path", path), slog.String("error", err.Error()))
		}
		return "", "", ""
	}
	res, err := parser.Parse(data)
	if err != nil {
		return strings.TrimSpace(string(data)), "", ""
	}
	return strings.TrimSpace(res.Body), "", res.Title
}

// mergeDocuments folds graph documents into base by identity. On collision
// the higher-scoring side supplies the content; entity evidence and
// explanations survive the merge either way.
func mergeDocuments(base, graphDocs []Document) []Document {
	byKey := make(map[string]int, len(base))
	out := make([]Document, 0, len(base)+len(graphDocs))
	for _, d := range base {
		byKey[identityKey(d)] = len(out)
		out = append(out, d)
	}
	for _, d := range graphDocs {
		key := identityKey(d)
		i, ok := byKey[key]
		if !ok {
			byKey[key] = len(out)
			out = append(out, d)
			continue
		}
		existing := out[i]
		winner := existing
		if d.Score > existing.Score {
			winner = d
		}
		winner.EntityEvidence = existing.EntityEvidence || d.EntityEvidence
		if d.Explanation != nil {
			winner.Explanation = d.Explanation
		} else if existing.Explanation != nil {
			winner.Explanation = existing.Explanation
		}
		out[i] = winner
	}
	return out
}

// identityKey identifies a document for merging: chunk id when present,
// then path, then title, then a content prefix.
func identityKey(d Document) string {
	if d.ChunkID != "" {
		return "chunk:" + d.ChunkID
	}
	if d.Path != "" {
		return "path:" + d.Path
	}
	if d.Title != "" {
		return "title:" + d.Title
	}
	content := d.Content
	if len(content) > 80 {
		content = content[:80]
	}
	return "content:" + content
}
