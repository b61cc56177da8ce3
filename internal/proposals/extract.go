package proposals

import "strings"

// Keys descended into while hunting for proposal objects.
var (
	proposalArrayKeys = []string{
		"semanticRelationProposals", "semantic_relations", "relationProposals",
		"relations", "proposals", "items",
	}
	proposalNestKeys = []string{"data", "result", "payload"}

	// toolCallMarkers indicate a rendered tool invocation followed by its
	// JSON payload somewhere in free text.
	toolCallMarkers = []string{
		"submitSemanticRelationProposals",
		"submit_relation_proposals",
		"tool_call",
		"tool_use",
	}
)

// collectProposalObjects walks an already-decoded value and gathers every
// proposal-shaped object: maps carrying a predicate-like, target-like, and
// source-path-like field. Known array and nest keys are descended into.
func collectProposalObjects(v interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	walkValue(v, &out)
	return out
}

func walkValue(v interface{}, out *[]map[string]interface{}) {
	switch val := v.(type) {
	case []interface{}:
		for _, item := range val {
			walkValue(item, out)
		}
	case map[string]interface{}:
		if isProposalShaped(val) {
			*out = append(*out, val)
			return
		}
		for _, k := range proposalArrayKeys {
			if nested, ok := val[k]; ok {
				walkValue(nested, out)
			}
		}
		for _, k := range proposalNestKeys {
			if nested, ok := val[k]; ok {
				walkValue(nested, out)
			}
		}
	}
}

// isProposalShaped checks for the three required field groups.
func isProposalShaped(m map[string]interface{}) bool {
	return firstStringField(m, "predicate", "relation", "rel") != "" &&
		firstStringField(m, "targetPath", "target_path", "target", "to") != "" &&
		firstStringField(m, "notePath", "note_path", "sourcePath", "source_path", "note", "from") != ""
}

// extractFromText pulls proposal objects out of arbitrary text. Strategies,
// in order: direct JSON parse, parse after un-escaping common escape
// sequences, balanced {...}/[...] fragment scan, and a tool-invocation
// marker scan that takes the first balanced payload after the marker.
// Whatever parses first wins; anything unparseable yields nothing.
func extractFromText(text string) []map[string]interface{} {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if v, ok := repairParse(text); ok {
		if objs := collectProposalObjects(v); len(objs) > 0 {
			return objs
		}
	}

	if unescaped := unescapeCommon(text); unescaped != text {
		if v, ok := repairParse(unescaped); ok {
			if objs := collectProposalObjects(v); len(objs) > 0 {
				return objs
			}
		}
	}

	var out []map[string]interface{}
	for _, frag := range balancedFragments(text) {
		if v, ok := repairParse(frag); ok {
			out = append(out, collectProposalObjects(v)...)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, marker := range toolCallMarkers {
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		rest := text[idx+len(marker):]
		if frag := firstBalancedFragment(rest); frag != "" {
			if v, ok := repairParse(frag); ok {
				if objs := collectProposalObjects(v); len(objs) > 0 {
					return objs
				}
			}
		}
	}
	return nil
}

// unescapeCommon reverses one level of common JSON string escaping so that
// payloads embedded as escaped strings can be parsed.
func unescapeCommon(s string) string {
	r := strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\n`, "\n", `\t`, "\t")
	return r.Replace(s)
}

// balancedFragments scans text for top-level balanced {...} and [...]
// fragments, tracking string-literal and escape state so braces inside
// strings do not confuse the balance.
func balancedFragments(text string) []string {
	var out []string
	i := 0
	for i < len(text) {
		c := text[i]
		if c != '{' && c != '[' {
			i++
			continue
		}
		frag, end := scanBalanced(text, i)
		if frag == "" {
			i++
			continue
		}
		out = append(out, frag)
		i = end
	}
	return out
}

// firstBalancedFragment returns the first balanced JSON payload in text.
func firstBalancedFragment(text string) string {
	for i := 0; i < len(text); i++ {
		if text[i] == '{' || text[i] == '[' {
			frag, _ := scanBalanced(text, i)
			return frag
		}
	}
	return ""
}

// scanBalanced returns the balanced fragment starting at start, and the
// index just past it. Returns "" when the fragment never closes.
func scanBalanced(text string, start int) (string, int) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return text[start : i+1], i + 1
			}
			if depth < 0 {
				return "", start
			}
		}
	}
	return "", start
}
