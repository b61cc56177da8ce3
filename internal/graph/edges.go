package graph

import (
	"sort"
	"strings"
	"time"
)

// sharedGroupCap bounds pairwise shared-relation groups: a tag or heading
// shared by more than this many documents only connects the first members
// in path order.
const sharedGroupCap = 24

// computeState derives the complete node/alias/edge state from the current
// descriptors. Both the full rebuild and every incremental update go through
// this function, so the incremental edge set is by construction identical to
// a fresh rebuild's.
func computeState(descs map[string]*descriptor) *state {
	st := emptyState()

	// Nodes and own aliases.
	for _, d := range descs {
		node := &EntityNode{
			ID:            d.path,
			CanonicalName: d.name,
			Aliases:       make(map[string]struct{}, len(d.aliases)),
			Tags:          d.tags,
			MTime:         d.mtime,
		}
		for _, a := range d.aliases {
			node.Aliases[a] = struct{}{}
		}
		st.nodes[d.path] = node
	}

	// Inbound link display aliases attach to the target entity.
	for _, d := range descs {
		for _, c := range d.linkAliases {
			if node, ok := st.nodes[c.Target]; ok {
				node.Aliases[c.Alias] = struct{}{}
			}
		}
	}

	for id, node := range st.nodes {
		for a := range node.Aliases {
			ids, ok := st.aliases[a]
			if !ok {
				ids = make(map[string]struct{})
				st.aliases[a] = ids
			}
			ids[id] = struct{}{}
		}
	}

	buildDirectEdges(st, descs)
	buildSharedEdges(st, descs)

	// Outgoing index, deterministic order.
	for _, e := range st.edges {
		st.outgoing[e.FromID] = append(st.outgoing[e.FromID], e)
	}
	for _, edges := range st.outgoing {
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	}

	return st
}

// buildDirectEdges adds the single-document-sourced relations: wiki links
// with their reciprocal backlinks, frontmatter references, and semantic
// frontmatter relations.
func buildDirectEdges(st *state, descs map[string]*descriptor) {
	for _, d := range sortedDescriptors(descs) {
		for _, link := range d.links {
			addEdge(st, d.path, RelWikiLink, "", link.Target, confWikiLink,
				EvidenceRef{Path: d.path, MTime: d.mtime, Extractor: "wiki_link"})
			addEdge(st, link.Target, RelBacklink, "", d.path, confBacklink,
				EvidenceRef{Path: d.path, MTime: d.mtime, Extractor: "backlink"})
		}
		for _, ref := range d.fmRefs {
			addEdge(st, d.path, RelFrontmatterReference, "", ref, confFrontmatter,
				EvidenceRef{Path: d.path, MTime: d.mtime, Extractor: "frontmatter_reference"})
		}
		for _, rel := range d.semantic {
			addEdge(st, d.path, RelSemanticFrontmatter, rel.Predicate, rel.Target,
				clampConfidence(rel.Confidence),
				EvidenceRef{Path: d.path, MTime: d.mtime, Extractor: "semantic_frontmatter"})
		}
	}
}

// buildSharedEdges adds the pairwise relations computed across the whole
// corpus: shared tags and shared section headings.
func buildSharedEdges(st *state, descs map[string]*descriptor) {
	tagGroups := make(map[string][]string)
	headingGroups := make(map[string][]string)
	for _, d := range descs {
		for _, t := range d.tags {
			if n := strings.ToLower(strings.TrimSpace(t)); n != "" {
				tagGroups[n] = append(tagGroups[n], d.path)
			}
		}
		for _, h := range d.headings {
			if n := strings.ToLower(strings.TrimSpace(h)); n != "" {
				headingGroups[n] = append(headingGroups[n], d.path)
			}
		}
	}

	addGroup := func(members []string, rel RelationType, conf float64, extractor string) {
		if len(members) < 2 {
			return
		}
		sort.Strings(members)
		if len(members) > sharedGroupCap {
			members = members[:sharedGroupCap]
		}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				ma, _ := mtimeOf(descs, a)
				mb, _ := mtimeOf(descs, b)
				addEdge(st, a, rel, "", b, conf,
					EvidenceRef{Path: a, MTime: ma, Extractor: extractor},
					EvidenceRef{Path: b, MTime: mb, Extractor: extractor})
				addEdge(st, b, rel, "", a, conf,
					EvidenceRef{Path: b, MTime: mb, Extractor: extractor},
					EvidenceRef{Path: a, MTime: ma, Extractor: extractor})
			}
		}
	}

	for _, members := range tagGroups {
		addGroup(members, RelSharedTag, confSharedTag, "shared_tag")
	}
	for _, members := range headingGroups {
		addGroup(members, RelHeadingCooccurrence, confHeading, "heading_cooccurrence")
	}
}

// addEdge inserts or merges one edge. Self edges and edges touching unknown
// nodes are silently dropped; repeated extraction merges evidence instead of
// duplicating the edge, and a semantic edge keeps its highest confidence.
func addEdge(st *state, from string, rel RelationType, pred Predicate, to string, conf float64, evidence ...EvidenceRef) {
	if from == to {
		return
	}
	if _, ok := st.nodes[from]; !ok {
		return
	}
	if _, ok := st.nodes[to]; !ok {
		return
	}

	id := edgeID(from, rel, pred, to)
	edge, ok := st.edges[id]
	if !ok {
		edge = &EntityEdge{
			ID:                id,
			FromID:            from,
			ToID:              to,
			Relation:          rel,
			Confidence:        clampConfidence(conf),
			SemanticPredicate: pred,
		}
		st.edges[id] = edge
	} else if conf > edge.Confidence {
		edge.Confidence = clampConfidence(conf)
	}

	for _, ev := range evidence {
		dup := false
		for _, have := range edge.Evidence {
			if have.key() == ev.key() {
				dup = true
				break
			}
		}
		if !dup {
			edge.Evidence = append(edge.Evidence, ev)
		}
	}
}

func sortedDescriptors(descs map[string]*descriptor) []*descriptor {
	out := make([]*descriptor, 0, len(descs))
	for _, d := range descs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

func mtimeOf(descs map[string]*descriptor, path string) (time.Time, bool) {
	if d, found := descs[path]; found {
		return d.mtime, true
	}
	return time.Time{}, false
}
