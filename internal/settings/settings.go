// Package settings holds the runtime-mutable configuration of the entity
// graph layer and notifies subscribers when it changes.
package settings

import (
	"slices"
	"sync"
)

// Settings is a snapshot of all graph-related runtime configuration.
type Settings struct {
	// AliasFields lists the frontmatter fields whose values become entity
	// aliases.
	AliasFields []string `json:"alias_fields" yaml:"alias_fields"`

	// SemanticEnabled gates the semantic relation extractor.
	SemanticEnabled bool `json:"semantic_enabled" yaml:"semantic_enabled"`
	// SemanticFields lists the frontmatter fields scanned for structured
	// relation records.
	SemanticFields []string `json:"semantic_fields" yaml:"semantic_fields"`
	// SemanticMinConfidence is the fallback confidence (fraction, 0..1)
	// for relation records that carry none.
	SemanticMinConfidence float64 `json:"semantic_min_confidence" yaml:"semantic_min_confidence"`
	// SemanticBatchSize is the page size for draft relation batches.
	SemanticBatchSize int `json:"semantic_batch_size" yaml:"semantic_batch_size"`

	// GraphRetrievalEnabled gates search-result augmentation.
	GraphRetrievalEnabled bool `json:"graph_retrieval_enabled" yaml:"graph_retrieval_enabled"`
	// GraphMaxHops bounds expansion depth.
	GraphMaxHops int `json:"graph_max_hops" yaml:"graph_max_hops"`
	// GraphMaxDocs bounds the number of expanded documents.
	GraphMaxDocs int `json:"graph_max_docs" yaml:"graph_max_docs"`

	// IncludePrefixes/ExcludePrefixes filter which vault paths are eligible
	// for indexing. Empty IncludePrefixes means everything is included.
	IncludePrefixes []string `json:"include_prefixes" yaml:"include_prefixes"`
	ExcludePrefixes []string `json:"exclude_prefixes" yaml:"exclude_prefixes"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		AliasFields:           []string{"aliases", "alias"},
		SemanticEnabled:       true,
		SemanticFields:        []string{"relations"},
		SemanticMinConfidence: 0.6,
		SemanticBatchSize:     25,
		GraphRetrievalEnabled: true,
		GraphMaxHops:          2,
		GraphMaxDocs:          24,
	}
}

// clone deep-copies the slice fields so snapshots never share backing arrays.
func (s Settings) clone() Settings {
	s.AliasFields = slices.Clone(s.AliasFields)
	s.SemanticFields = slices.Clone(s.SemanticFields)
	s.IncludePrefixes = slices.Clone(s.IncludePrefixes)
	s.ExcludePrefixes = slices.Clone(s.ExcludePrefixes)
	return s
}

// GraphConfigChanged reports whether a change between two snapshots affects
// the built graph (alias or semantic extraction configuration).
func GraphConfigChanged(old, cur Settings) bool {
	return !slices.Equal(old.AliasFields, cur.AliasFields) ||
		old.SemanticEnabled != cur.SemanticEnabled ||
		!slices.Equal(old.SemanticFields, cur.SemanticFields) ||
		old.SemanticMinConfidence != cur.SemanticMinConfidence ||
		!slices.Equal(old.IncludePrefixes, cur.IncludePrefixes) ||
		!slices.Equal(old.ExcludePrefixes, cur.ExcludePrefixes)
}

// Subscriber is called with the previous and new snapshot after every update.
type Subscriber func(old, cur Settings)

// Store is the process-wide settings holder. Reads return copies; updates
// run under an internal lock and notify subscribers synchronously.
type Store struct {
	mu     sync.RWMutex
	cur    Settings
	subs   map[int]Subscriber
	nextID int
}

// NewStore creates a Store seeded with the given settings.
func NewStore(initial Settings) *Store {
	return &Store{
		cur:  initial.clone(),
		subs: make(map[int]Subscriber),
	}
}

// Get returns the current settings snapshot.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur.clone()
}

// Update applies fn to a copy of the current settings, installs the result,
// and notifies subscribers. Subscribers run outside the lock.
func (st *Store) Update(fn func(*Settings)) {
	st.mu.Lock()
	old := st.cur.clone()
	next := st.cur.clone()
	fn(&next)
	st.cur = next.clone()
	subs := make([]Subscriber, 0, len(st.subs))
	for _, s := range st.subs {
		subs = append(subs, s)
	}
	st.mu.Unlock()

	for _, s := range subs {
		s(old, next)
	}
}

// Subscribe registers a subscriber and returns its unsubscribe function.
func (st *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	st.mu.Lock()
	id := st.nextID
	st.nextID++
	st.subs[id] = fn
	st.mu.Unlock()

	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}
