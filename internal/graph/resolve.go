package graph

import (
	"context"
	"sort"
	"strings"
)

const (
	maxResolveResults = 8
	maxResolveTokens  = 18
	maxNgramLen       = 4
)

// ResolveEntities maps a free-text query to the canonical entities it names.
// It is alias-based and case-insensitive: candidates are the full normalized
// query plus every contiguous token n-gram (n = 1..4) over its first 18
// tokens, each looked up in the alias index. Multi-word matches dominate;
// ties break on phrase length. Triggers an initial build when the index is
// uninitialized.
func (m *Manager) ResolveEntities(ctx context.Context, query string) ([]ResolvedEntity, error) {
	if err := m.EnsureReady(ctx); err != nil {
		return nil, err
	}

	normalized := normalizeAlias(query)
	if normalized == "" {
		return nil, nil
	}

	candidates := resolveCandidates(normalized)

	m.mu.RLock()
	defer m.mu.RUnlock()

	best := make(map[string]ResolvedEntity)
	for _, cand := range candidates {
		ids, ok := m.st.aliases[cand]
		if !ok {
			continue
		}
		score := aliasScore(cand)
		for id := range ids {
			cur, seen := best[id]
			if seen && cur.Score >= score {
				continue
			}
			node := m.st.nodes[id]
			if node == nil {
				continue
			}
			best[id] = ResolvedEntity{
				EntityID:      id,
				CanonicalName: node.CanonicalName,
				MatchedAlias:  cand,
				Score:         score,
			}
		}
	}

	out := make([]ResolvedEntity, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EntityID < out[j].EntityID
	})
	if len(out) > maxResolveResults {
		out = out[:maxResolveResults]
	}
	return out, nil
}

// resolveCandidates generates the alias lookup terms for a normalized query.
func resolveCandidates(normalized string) []string {
	seen := map[string]struct{}{normalized: {}}
	out := []string{normalized}

	tokens := strings.Fields(normalized)
	if len(tokens) > maxResolveTokens {
		tokens = tokens[:maxResolveTokens]
	}
	for n := 1; n <= maxNgramLen; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			gram := strings.Join(tokens[i:i+n], " ")
			if _, dup := seen[gram]; dup {
				continue
			}
			seen[gram] = struct{}{}
			out = append(out, gram)
		}
	}
	return out
}

// aliasScore ranks a matched alias term: token count dominates, phrase
// length breaks ties.
func aliasScore(term string) float64 {
	tokens := len(strings.Fields(term))
	lengthBonus := float64(len(term)) / 4
	if lengthBonus > 10 {
		lengthBonus = 10
	}
	return float64(tokens)*10 + lengthBonus
}
