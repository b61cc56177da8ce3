package graph

import (
	"fmt"
	"sort"
)

const (
	maxHopsCeiling     = 4
	maxExpandedCeiling = 100
	maxRelationPaths   = 6
	maxEvidenceRefs    = 16
)

// hitAccumulator collects scores and explanations for one destination node
// across every path and seed that reaches it.
type hitAccumulator struct {
	score         float64
	hopDepth      int
	relationTypes map[RelationType]struct{}
	matchedSeeds  map[string]struct{}
	relationPaths []string
	evidence      []EvidenceRef
	evidenceSeen  map[string]struct{}
}

// traversalState is one BFS queue entry. The same node may be revisited at a
// different hop or from a different seed, but each (node, hop, seed) triple
// is traversed at most once.
type traversalState struct {
	node    string
	hop     int
	seed    string
	score   float64
	pathStr string
}

// ExpandFromResolvedEntities performs a bounded breadth-first expansion
// seeded at the resolved entities. Scores from multiple paths and seeds
// accumulate by summation; hop depth is the minimum seen. Seeds themselves
// are never returned. Reads already-built state and never blocks on a
// rebuild.
func (m *Manager) ExpandFromResolvedEntities(resolved []ResolvedEntity, maxHops, maxDocs int) []ExpansionHit {
	if len(resolved) == 0 {
		return nil
	}
	maxHops = clampInt(maxHops, 1, maxHopsCeiling)
	maxDocs = clampInt(maxDocs, 1, maxExpandedCeiling)

	m.mu.RLock()
	defer m.mu.RUnlock()

	seeds := make(map[string]string, len(resolved)) // id -> canonical name
	queue := make([]traversalState, 0, len(resolved))
	visited := make(map[string]struct{})

	for _, r := range resolved {
		node := m.st.nodes[r.EntityID]
		if node == nil {
			continue
		}
		if _, dup := seeds[r.EntityID]; dup {
			continue
		}
		seeds[r.EntityID] = node.CanonicalName
		queue = append(queue, traversalState{
			node:    r.EntityID,
			hop:     0,
			seed:    r.EntityID,
			score:   r.Score,
			pathStr: node.CanonicalName,
		})
	}

	hits := make(map[string]*hitAccumulator)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.hop >= maxHops {
			continue
		}

		for _, edge := range m.st.outgoing[cur.node] {
			nextHop := cur.hop + 1
			transition := cur.score * relationWeight(edge.Relation) * edge.Confidence / float64(nextHop)
			nextNode := m.st.nodes[edge.ToID]
			if nextNode == nil {
				continue
			}
			pathStr := fmt.Sprintf("%s -[%s]-> %s", cur.pathStr, edge.Relation, nextNode.CanonicalName)

			if _, isSeed := seeds[edge.ToID]; !isSeed {
				acc, ok := hits[edge.ToID]
				if !ok {
					acc = &hitAccumulator{
						hopDepth:      nextHop,
						relationTypes: make(map[RelationType]struct{}),
						matchedSeeds:  make(map[string]struct{}),
						evidenceSeen:  make(map[string]struct{}),
					}
					hits[edge.ToID] = acc
				}
				acc.score += transition
				if nextHop < acc.hopDepth {
					acc.hopDepth = nextHop
				}
				acc.relationTypes[edge.Relation] = struct{}{}
				acc.matchedSeeds[seeds[cur.seed]] = struct{}{}
				if len(acc.relationPaths) < maxRelationPaths {
					acc.relationPaths = append(acc.relationPaths, pathStr)
				}
				for _, ev := range edge.Evidence {
					if _, dup := acc.evidenceSeen[ev.key()]; dup {
						continue
					}
					acc.evidenceSeen[ev.key()] = struct{}{}
					// The ref list is capped but the count covers all evidence seen.
					if len(acc.evidence) < maxEvidenceRefs {
						acc.evidence = append(acc.evidence, ev)
					}
				}
			}

			visitKey := fmt.Sprintf("%s|%d|%s", edge.ToID, nextHop, cur.seed)
			if _, done := visited[visitKey]; done {
				continue
			}
			visited[visitKey] = struct{}{}
			queue = append(queue, traversalState{
				node:    edge.ToID,
				hop:     nextHop,
				seed:    cur.seed,
				score:   transition,
				pathStr: pathStr,
			})
		}
	}

	out := make([]ExpansionHit, 0, len(hits))
	for id, acc := range hits {
		node := m.st.nodes[id]
		if node == nil {
			continue
		}
		out = append(out, ExpansionHit{
			Path:  id,
			Title: node.CanonicalName,
			Score: acc.score,
			Explanation: ExpansionExplanation{
				MatchedEntities:   sortedKeys(acc.matchedSeeds),
				RelationTypes:     sortedRelations(acc.relationTypes),
				HopDepth:          acc.hopDepth,
				EvidenceCount:     len(acc.evidenceSeen),
				RelationPaths:     acc.relationPaths,
				EvidenceRefs:      acc.evidence,
				ScoreContribution: acc.score,
			},
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > maxDocs {
		out = out[:maxDocs]
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedRelations(m map[RelationType]struct{}) []RelationType {
	out := make([]RelationType, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
