package graph

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jakebiddle/notegraph/internal/models"
	"github.com/jakebiddle/notegraph/internal/settings"
)

// Host is the document-store capability the graph consumes. Inclusion and
// exclusion filtering happens behind this interface; the graph only ever
// sees eligible documents.
type Host interface {
	// ListDocuments returns the paths of all eligible documents.
	ListDocuments() []string
	// Metadata returns the parsed metadata for one document.
	Metadata(path string) (*models.DocumentMeta, bool)
	// ResolveLink resolves a link candidate from sourcePath to a canonical
	// document path, or "" when nothing matches.
	ResolveLink(candidate, sourcePath string) string
}

// state is the complete derived graph: swapped atomically under the lock so
// readers always observe a consistent node/alias/edge set.
type state struct {
	nodes    map[string]*EntityNode
	aliases  map[string]map[string]struct{} // normalized alias -> entity ids
	edges    map[string]*EntityEdge
	outgoing map[string][]*EntityEdge // node id -> edges sorted by id
}

func emptyState() *state {
	return &state{
		nodes:    make(map[string]*EntityNode),
		aliases:  make(map[string]map[string]struct{}),
		edges:    make(map[string]*EntityEdge),
		outgoing: make(map[string][]*EntityEdge),
	}
}

// Manager owns the entity graph index. A single RWMutex guards all mutable
// state; rebuilds are coalesced so concurrent callers share one scan.
type Manager struct {
	host     Host
	settings *settings.Store
	logger   *slog.Logger

	mu          sync.RWMutex
	descriptors map[string]*descriptor
	st          *state
	ready       bool
	built       bool

	sf    singleflight.Group
	unsub func()
}

// NewManager creates a graph manager over the given host. It subscribes to
// settings changes and invalidates itself when alias or semantic
// configuration changes; call Close to release the subscription.
func NewManager(host Host, st *settings.Store, logger *slog.Logger) *Manager {
	m := &Manager{
		host:        host,
		settings:    st,
		logger:      logger,
		descriptors: make(map[string]*descriptor),
		st:          emptyState(),
	}
	m.unsub = st.Subscribe(func(old, cur settings.Settings) {
		if settings.GraphConfigChanged(old, cur) {
			m.logger.Info("graph: configuration changed, invalidating index")
			m.Invalidate()
		}
	})
	return m
}

// Close releases the settings subscription.
func (m *Manager) Close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

// Rebuild performs a full, idempotent reconstruction of the graph.
// Concurrent callers await the same in-flight rebuild.
func (m *Manager) Rebuild(ctx context.Context) error {
	_, err, _ := m.sf.Do("rebuild", func() (interface{}, error) {
		return nil, m.rebuild(ctx)
	})
	return err
}

func (m *Manager) rebuild(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			m.mu.Lock()
			m.ready = false
			m.mu.Unlock()
			m.logger.Error("graph: rebuild failed", slog.String("error", err.Error()))
		}
	}()

	cfg := m.settings.Get()
	paths := m.host.ListDocuments()
	sort.Strings(paths)

	descs := make(map[string]*descriptor, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		meta, ok := m.host.Metadata(p)
		if !ok {
			continue
		}
		desc, derr := buildDescriptor(meta, m.host, cfg)
		if derr != nil {
			m.logger.Warn("graph: descriptor build failed",
				slog.String("path", p), slog.String("error", derr.Error()))
			continue
		}
		descs[p] = desc
	}

	st := computeState(descs)

	m.mu.Lock()
	m.descriptors = descs
	m.st = st
	m.ready = true
	m.built = true
	m.mu.Unlock()

	m.logger.Info("graph: rebuilt",
		slog.Int("nodes", len(st.nodes)),
		slog.Int("edges", len(st.edges)))
	return nil
}

// EnsureReady triggers a rebuild only when the index is uninitialized.
func (m *Manager) EnsureReady(ctx context.Context) error {
	m.mu.RLock()
	ready := m.ready
	m.mu.RUnlock()
	if ready {
		return nil
	}
	return m.Rebuild(ctx)
}

// Invalidate marks the index uninitialized without clearing data. Stale
// reads remain possible until the next EnsureReady.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.ready = false
	m.mu.Unlock()
}

// Ready reports whether the index is initialized.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// GetNode returns the node for a document id, or nil.
func (m *Manager) GetNode(id string) *EntityNode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.nodes[id]
}

// GetOutgoingEdges returns the outgoing edges of a node in id order.
func (m *Manager) GetOutgoingEdges(id string) []*EntityEdge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*EntityEdge, len(m.st.outgoing[id]))
	copy(out, m.st.outgoing[id])
	return out
}

// NodeCount and EdgeCount expose index sizes for diagnostics.
func (m *Manager) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.st.nodes)
}

func (m *Manager) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.st.edges)
}
