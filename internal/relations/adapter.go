package relations

import (
	"github.com/jakebiddle/notegraph/internal/proposals"
)

// StoreAdapter exposes a session proposal buffer as a batch source.
type StoreAdapter struct {
	store *proposals.Store
}

// NewStoreAdapter wraps a proposal store.
func NewStoreAdapter(store *proposals.Store) *StoreAdapter {
	return &StoreAdapter{store: store}
}

func (a *StoreAdapter) ID() string { return "session-proposals" }

func (a *StoreAdapter) Proposals() []Proposal {
	buffered := a.store.All()
	out := make([]Proposal, 0, len(buffered))
	for _, p := range buffered {
		out = append(out, Proposal{
			NotePath:   p.NotePath,
			Predicate:  p.Predicate,
			TargetPath: p.TargetPath,
			Confidence: p.Confidence,
		})
	}
	return out
}
