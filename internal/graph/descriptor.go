package graph

import (
	"regexp"
	"strings"
	"time"

	"github.com/jakebiddle/notegraph/internal/models"
	"github.com/jakebiddle/notegraph/internal/settings"
)

// resolvedLink is an outgoing link whose target resolved to a known document.
type resolvedLink struct {
	Target  string
	Display string
}

// resolvedSemantic is a semantic relation whose target resolved.
type resolvedSemantic struct {
	Predicate  Predicate
	Target     string
	Confidence float64
}

// aliasContribution is a normalized alias this document contributes to
// another entity (the display text of an outgoing link names its target).
type aliasContribution struct {
	Target string
	Alias  string
}

// descriptor is everything the edge builder needs about one document. It is
// rebuilt whenever the document changes and removed when it goes away.
type descriptor struct {
	path        string
	name        string
	aliases     []string // normalized, own contributions only
	linkAliases []aliasContribution
	links       []resolvedLink
	fmRefs      []string
	semantic    []resolvedSemantic
	tags        []string
	headings    []string
	mtime       time.Time
}

var bracketRe = regexp.MustCompile(`[\[\]{}()<>|]`)

// normalizeAlias lowercases, strips bracket/brace characters, and collapses
// whitespace. Returns "" for strings that normalize away entirely.
func normalizeAlias(s string) string {
	s = strings.ToLower(s)
	s = bracketRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// buildDescriptor derives a document's graph contributions from its parsed
// metadata: aliases, resolved link targets, frontmatter references, and
// semantic relations. Unresolved or self-referential targets are dropped.
func buildDescriptor(meta *models.DocumentMeta, host Host, cfg settings.Settings) (*descriptor, error) {
	d := &descriptor{
		path:     meta.Path,
		name:     meta.Title,
		tags:     meta.Tags,
		headings: meta.Headings,
		mtime:    meta.ModTime,
	}

	aliasSet := make(map[string]struct{})
	addAlias := func(s string) {
		if n := normalizeAlias(s); n != "" {
			aliasSet[n] = struct{}{}
		}
	}
	addAlias(basename(meta.Path))
	addAlias(meta.Path)
	for _, field := range cfg.AliasFields {
		if v, ok := meta.Frontmatter[field]; ok {
			for _, s := range collectStrings(v) {
				addAlias(s)
			}
		}
	}

	// Outgoing links: resolve targets, drop self links, keep display text.
	for _, link := range meta.Links {
		target := host.ResolveLink(link.Target, meta.Path)
		if target == "" || target == meta.Path {
			continue
		}
		d.links = append(d.links, resolvedLink{Target: target, Display: link.Display})
		if n := normalizeAlias(link.Display); n != "" {
			d.linkAliases = append(d.linkAliases, aliasContribution{Target: target, Alias: n})
		}
	}

	// Frontmatter references.
	refSeen := make(map[string]struct{})
	for _, candidate := range ExtractFrontmatterRefCandidates(meta.Frontmatter) {
		target := host.ResolveLink(candidate, meta.Path)
		if target == "" || target == meta.Path {
			continue
		}
		if _, dup := refSeen[target]; dup {
			continue
		}
		refSeen[target] = struct{}{}
		d.fmRefs = append(d.fmRefs, target)
	}

	// Semantic relations.
	semCfg := SemanticConfig{
		Enabled:           cfg.SemanticEnabled,
		Fields:            cfg.SemanticFields,
		DefaultConfidence: cfg.SemanticMinConfidence,
	}
	for _, rel := range ExtractSemanticRelations(meta.Frontmatter, semCfg) {
		target := host.ResolveLink(rel.Target, meta.Path)
		if target == "" || target == meta.Path {
			continue
		}
		d.semantic = append(d.semantic, resolvedSemantic{
			Predicate:  rel.Predicate,
			Target:     target,
			Confidence: rel.Confidence,
		})
	}

	d.aliases = make([]string, 0, len(aliasSet))
	for a := range aliasSet {
		d.aliases = append(d.aliases, a)
	}
	return d, nil
}

func basename(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	return strings.TrimSuffix(p, ".md")
}
