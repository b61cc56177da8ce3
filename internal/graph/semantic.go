package graph

import (
	"strconv"
	"strings"
)

// SemanticRelation is a relation extracted from structured frontmatter,
// before its target has been resolved to a document.
type SemanticRelation struct {
	Predicate   Predicate
	Target      string
	Confidence  float64 // fraction in [0, 1]
	SourceField string
}

// SemanticConfig controls the semantic relation extractor.
type SemanticConfig struct {
	Enabled           bool
	Fields            []string
	DefaultConfidence float64 // fraction, used when a record carries none
}

// ExtractSemanticRelations reads semantic relations from a document's
// frontmatter: the configured relation fields (arrays of
// {predicate, target, confidence} records or predicate-keyed nests) plus the
// fixed convenience-key table. Duplicate (target, predicate) pairs keep the
// higher confidence. Returns nil when the extractor is disabled.
func ExtractSemanticRelations(fm map[string]interface{}, cfg SemanticConfig) []SemanticRelation {
	if !cfg.Enabled || len(fm) == 0 {
		return nil
	}

	var raw []SemanticRelation
	for _, field := range cfg.Fields {
		v, ok := fm[field]
		if !ok {
			continue
		}
		raw = append(raw, parseRelationValue(v, field, "", cfg)...)
	}

	// Convenience keys: a frontmatter field named for a predicate carries
	// targets directly.
	for key, pred := range frontmatterKeyPredicates {
		v, ok := fm[key]
		if !ok {
			continue
		}
		for _, target := range collectStrings(v) {
			raw = append(raw, SemanticRelation{
				Predicate:   pred,
				Target:      target,
				Confidence:  cfg.DefaultConfidence,
				SourceField: key,
			})
		}
	}

	// Higher confidence wins per (target, predicate).
	best := make(map[string]int, len(raw))
	var out []SemanticRelation
	for _, rel := range raw {
		if rel.Target == "" || rel.Predicate == "" {
			continue
		}
		key := rel.Target + "\x00" + string(rel.Predicate)
		if i, ok := best[key]; ok {
			if rel.Confidence > out[i].Confidence {
				out[i] = rel
			}
			continue
		}
		best[key] = len(out)
		out = append(out, rel)
	}
	return out
}

// parseRelationValue interprets one frontmatter value found under a relation
// field. pred carries an inherited predicate for nested string/array values.
func parseRelationValue(v interface{}, field string, pred Predicate, cfg SemanticConfig) []SemanticRelation {
	var out []SemanticRelation
	switch val := v.(type) {
	case []interface{}:
		for _, item := range val {
			out = append(out, parseRelationValue(item, field, pred, cfg)...)
		}
	case map[string]interface{}:
		if rel, ok := parseRelationRecord(val, field, cfg); ok {
			out = append(out, rel)
			return out
		}
		// Predicate-keyed nesting: {allied_with: ["[[X]]", ...]}.
		for k, nested := range val {
			if p, ok := NormalizePredicate(k); ok {
				out = append(out, parseRelationValue(nested, field, p, cfg)...)
			}
		}
	case string:
		if pred != "" {
			out = append(out, SemanticRelation{
				Predicate:   pred,
				Target:      val,
				Confidence:  cfg.DefaultConfidence,
				SourceField: field,
			})
		}
	}
	return out
}

// parseRelationRecord reads a {predicate, target, confidence} object.
// An unparsable predicate or missing target drops the record silently.
func parseRelationRecord(m map[string]interface{}, field string, cfg SemanticConfig) (SemanticRelation, bool) {
	rawPred := firstString(m, "predicate", "relation", "rel", "type")
	target := firstString(m, "target", "to", "object")
	if rawPred == "" || target == "" {
		return SemanticRelation{}, false
	}
	pred, ok := NormalizePredicate(rawPred)
	if !ok {
		return SemanticRelation{}, false
	}

	conf := cfg.DefaultConfidence
	for _, key := range []string{"confidence", "conf", "score"} {
		if v, ok := m[key]; ok {
			if c, ok := asFloat(v); ok {
				conf = NormalizeConfidence(c)
				break
			}
		}
	}

	return SemanticRelation{
		Predicate:   pred,
		Target:      target,
		Confidence:  conf,
		SourceField: field,
	}, true
}

// NormalizeConfidence interprets a raw confidence number: values ≤ 1 are a
// fraction, values above 1 a percentage.
func NormalizeConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		c /= 100
	}
	if c > 1 {
		c = 1
	}
	return c
}

// ExtractFrontmatterRefCandidates recursively walks every frontmatter value
// and returns link candidates: wiki-syntax links and plain path-like strings
// (containing a path separator or a Markdown extension).
func ExtractFrontmatterRefCandidates(fm map[string]interface{}) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range fm {
		for _, s := range collectStrings(v) {
			candidate := ""
			switch {
			case strings.Contains(s, "[["):
				candidate = s
			case strings.Contains(s, "/") || strings.HasSuffix(s, ".md"):
				candidate = s
			}
			if candidate == "" {
				continue
			}
			if _, dup := seen[candidate]; dup {
				continue
			}
			seen[candidate] = struct{}{}
			out = append(out, candidate)
		}
	}
	return out
}

// collectStrings gathers every string reachable from a frontmatter value
// (String | Array | Object).
func collectStrings(v interface{}) []string {
	var out []string
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s != "" {
			out = append(out, s)
		}
	case []interface{}:
		for _, item := range val {
			out = append(out, collectStrings(item)...)
		}
	case map[string]interface{}:
		for _, item := range val {
			out = append(out, collectStrings(item)...)
		}
	}
	return out
}

// firstString returns the first non-empty string value among the keys.
func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// asFloat converts YAML/JSON scalar representations to float64.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
