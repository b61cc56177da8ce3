// Package graph implements the in-memory entity graph index: one node per
// vault document, alias resolution, typed relation edges, and bounded
// multi-hop expansion with evidence.
package graph

import (
	"fmt"
	"time"
)

// RelationType classifies how two documents are connected.
type RelationType string

const (
	RelWikiLink             RelationType = "wiki_link"
	RelBacklink             RelationType = "backlink"
	RelSharedTag            RelationType = "shared_tag"
	RelFrontmatterReference RelationType = "frontmatter_reference"
	RelHeadingCooccurrence  RelationType = "heading_cooccurrence"
	RelSemanticFrontmatter  RelationType = "semantic_frontmatter"
)

// Edge confidences per extractor.
const (
	confWikiLink    = 0.95
	confBacklink    = 0.90
	confFrontmatter = 0.90
	confSharedTag   = 0.70
	confHeading     = 0.55
)

// relationWeight is the traversal weight of a relation type during
// expansion. Looser connections contribute less.
func relationWeight(rel RelationType) float64 {
	switch rel {
	case RelWikiLink:
		return 1.0
	case RelFrontmatterReference:
		return 0.95
	case RelSemanticFrontmatter:
		return 0.92
	case RelBacklink:
		return 0.90
	case RelSharedTag:
		return 0.70
	case RelHeadingCooccurrence:
		return 0.55
	default:
		return 0.50
	}
}

// clampConfidence bounds an edge confidence to [0.1, 1.0].
func clampConfidence(c float64) float64 {
	if c < 0.1 {
		return 0.1
	}
	if c > 1.0 {
		return 1.0
	}
	return c
}

// EntityNode is one document in the graph. The id is the document's
// canonical vault path and stays stable until rename or delete.
type EntityNode struct {
	ID            string              `json:"id"`
	CanonicalName string              `json:"canonical_name"`
	Aliases       map[string]struct{} `json:"-"`
	Tags          []string            `json:"tags,omitempty"`
	MTime         time.Time           `json:"mtime"`
}

// EvidenceRef records where an edge was observed.
type EvidenceRef struct {
	Path      string    `json:"path"`
	ChunkID   string    `json:"chunk_id,omitempty"`
	MTime     time.Time `json:"mtime"`
	Extractor string    `json:"extractor"`
}

func (e EvidenceRef) key() string {
	return e.Path + "\x00" + e.ChunkID + "\x00" + e.Extractor
}

// EntityEdge is a typed, directed relation between two nodes.
type EntityEdge struct {
	ID                string        `json:"id"`
	FromID            string        `json:"from_id"`
	ToID              string        `json:"to_id"`
	Relation          RelationType  `json:"relation"`
	Confidence        float64       `json:"confidence"`
	SemanticPredicate Predicate     `json:"semantic_predicate,omitempty"`
	Evidence          []EvidenceRef `json:"evidence,omitempty"`
}

// edgeID builds the deterministic composite edge key
// {fromId}|{relation}[:{predicate}]|{toId}.
func edgeID(from string, rel RelationType, pred Predicate, to string) string {
	if pred != "" {
		return fmt.Sprintf("%s|%s:%s|%s", from, rel, pred, to)
	}
	return fmt.Sprintf("%s|%s|%s", from, rel, to)
}

// ResolvedEntity is a ranked query-resolution result.
type ResolvedEntity struct {
	EntityID      string  `json:"entity_id"`
	CanonicalName string  `json:"canonical_name"`
	MatchedAlias  string  `json:"matched_alias"`
	Score         float64 `json:"score"`
}

// ExpansionExplanation describes why an expanded document was reached.
type ExpansionExplanation struct {
	MatchedEntities   []string       `json:"matched_entities"`
	RelationTypes     []RelationType `json:"relation_types"`
	HopDepth          int            `json:"hop_depth"`
	EvidenceCount     int            `json:"evidence_count"`
	RelationPaths     []string       `json:"relation_paths,omitempty"`
	EvidenceRefs      []EvidenceRef  `json:"evidence_refs,omitempty"`
	ScoreContribution float64        `json:"score_contribution"`
}

// ExpansionHit is one graph-reachable document with its accumulated score.
type ExpansionHit struct {
	Path        string               `json:"path"`
	Title       string               `json:"title"`
	Score       float64              `json:"score"`
	Explanation ExpansionExplanation `json:"explanation"`
}
