// Package proposals buffers semantic relation proposals harvested from
// tool and LLM output during a session. Ingestion is maximally tolerant:
// malformed JSON, partial escaping, and surrounding prose are all handled
// by best-effort fragment extraction, and anything that still fails to
// parse is dropped without error.
package proposals

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/jakebiddle/notegraph/internal/graph"
)

// Capacity is the maximum number of stored proposals; the oldest entries
// are evicted on overflow.
const Capacity = 2000

// Proposal is one normalized relation proposal.
type Proposal struct {
	NotePath   string          `json:"note_path"`
	Predicate  graph.Predicate `json:"predicate"`
	TargetPath string          `json:"target_path"`
	Confidence float64         `json:"confidence"` // 0..100, 0 = unset
	SourceTool string          `json:"source_tool,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

func (p Proposal) key() string {
	return p.NotePath + "\x00" + string(p.Predicate) + "\x00" + p.TargetPath
}

// Store is a session-scoped proposal buffer. Construct one per session and
// pass it by reference; there is no package-level instance.
type Store struct {
	mu     sync.Mutex
	list   []Proposal
	byKey  map[string]int
	logger *slog.Logger
}

// NewStore creates an empty proposal store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		byKey:  make(map[string]int),
		logger: logger,
	}
}

// IngestFromToolOutput extracts proposal-shaped objects from an arbitrary
// tool-output payload (a string of possibly-broken JSON, or an already
// decoded value) and stores them. Returns the number of proposals accepted
// (new or upgraded).
func (s *Store) IngestFromToolOutput(toolName string, payload interface{}) int {
	var values []map[string]interface{}
	switch v := payload.(type) {
	case string:
		values = extractFromText(v)
	case []byte:
		values = extractFromText(string(v))
	default:
		values = collectProposalObjects(v)
	}

	accepted := 0
	now := time.Now()
	for _, obj := range values {
		p, ok := normalizeProposal(obj)
		if !ok {
			continue
		}
		p.SourceTool = toolName
		p.ReceivedAt = now
		if s.add(p) {
			accepted++
		}
	}
	if accepted > 0 {
		s.logger.Debug("proposals: ingested",
			slog.String("tool", toolName), slog.Int("accepted", accepted))
	}
	return accepted
}

// All returns the stored proposals in arrival order.
func (s *Store) All() []Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Proposal, len(s.list))
	copy(out, s.list)
	return out
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = nil
	s.byKey = make(map[string]int)
}

// Len returns the number of stored proposals.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

// add deduplicates by (notePath, predicate, targetPath), keeping the higher
// confidence, and evicts the oldest entry when the store is full.
func (s *Store) add(p Proposal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.byKey[p.key()]; ok {
		if p.Confidence > s.list[i].Confidence {
			s.list[i] = p
			return true
		}
		return false
	}

	if len(s.list) >= Capacity {
		oldest := s.list[0]
		s.list = s.list[1:]
		delete(s.byKey, oldest.key())
		for k, i := range s.byKey {
			s.byKey[k] = i - 1
		}
	}

	s.byKey[p.key()] = len(s.list)
	s.list = append(s.list, p)
	return true
}

// normalizeProposal converts a proposal-shaped object into a Proposal:
// wiki-link wrapping is stripped, a .md suffix appended when absent, the
// predicate canonicalized, and confidence mapped onto the 0..100 scale.
func normalizeProposal(obj map[string]interface{}) (Proposal, bool) {
	rawPred := firstStringField(obj, "predicate", "relation", "rel")
	rawTarget := firstStringField(obj, "targetPath", "target_path", "target", "to")
	rawNote := firstStringField(obj, "notePath", "note_path", "sourcePath", "source_path", "note", "from")
	if rawPred == "" || rawTarget == "" || rawNote == "" {
		return Proposal{}, false
	}

	pred, ok := graph.NormalizePredicate(rawPred)
	if !ok {
		return Proposal{}, false
	}

	p := Proposal{
		NotePath:   normalizePath(rawNote),
		Predicate:  pred,
		TargetPath: normalizePath(rawTarget),
	}
	if p.NotePath == "" || p.TargetPath == "" {
		return Proposal{}, false
	}

	for _, key := range []string{"confidence", "conf", "score"} {
		if v, ok := obj[key]; ok {
			if f, ok := toFloat(v); ok {
				p.Confidence = normalizeConfidencePercent(f)
				break
			}
		}
	}
	return p, true
}

// normalizeConfidencePercent maps raw confidence onto 0..100: values at or
// below 1 are a fraction, larger values are clamped percentages.
func normalizeConfidencePercent(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f <= 1 {
		return f * 100
	}
	if f > 100 {
		return 100
	}
	return f
}

// normalizePath unwraps wiki-link syntax and ensures a Markdown extension.
func normalizePath(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "[[")
	s = strings.TrimSuffix(s, "]]")
	if i := strings.Index(s, "|"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasSuffix(strings.ToLower(s), ".md") {
		s += ".md"
	}
	return s
}

func firstStringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case string:
		var f float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(n)), &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// repairParse parses possibly-malformed JSON: direct parse first, then a
// jsonrepair pass for LLM output with missing quotes, trailing commas, and
// similar damage.
func repairParse(text string) (interface{}, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, true
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, false
	}
	return v, true
}
