package mcpserver

import (
	"fmt"
	"strings"

	"github.com/jakebiddle/notegraph/internal/graph"
)

// RelationFormatContract describes the proposal format expected by the
// submit_relation_proposals tool, including the current predicate list.
func RelationFormatContract() string {
	preds := make([]string, 0)
	for _, p := range graph.Predicates() {
		preds = append(preds, "- `"+string(p)+"`")
	}

	return fmt.Sprintf(`# Relation Proposal Contract

Relation proposals describe a typed link between two notes. Submit them via
the `+"`submit_relation_proposals`"+` tool as a JSON array:

`+"```"+`json
[
  {
    "notePath": "Characters/Arin.md",
    "predicate": "ally_of",
    "targetPath": "Characters/Lira.md",
    "confidence": 85
  }
]
`+"```"+`

## Rules

1. **notePath** and **targetPath** are vault-relative paths ending with `+"`.md`"+`.
   Wiki-link syntax (`+"`[[Characters/Lira]]`"+`) is also accepted.
2. **predicate** must be one of the canonical predicates below. Common
   variants ("allied with", "child-of") are normalized automatically;
   unknown predicates are dropped.
3. **confidence** is 0-100. Fractions at or below 1 are treated as 0-1 and
   scaled. Omit when unknown.
4. Duplicate proposals for the same (notePath, predicate, targetPath) keep
   the higher confidence.

## Canonical predicates

%s
`, strings.Join(preds, "\n"))
}
