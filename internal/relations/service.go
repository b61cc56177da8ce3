// Package relations builds human-editable batches of semantic relation
// rows from document frontmatter and proposal sources, and applies edited
// batches back into canonical structured frontmatter.
package relations

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/jakebiddle/notegraph/internal/graph"
	"github.com/jakebiddle/notegraph/internal/parser"
	"github.com/jakebiddle/notegraph/internal/settings"
	"github.com/jakebiddle/notegraph/internal/storage"
	"github.com/jakebiddle/notegraph/internal/vault"
)

// Batch size bounds; the configured size is clamped into this range.
const (
	minBatchSize     = 5
	maxBatchSize     = 200
	defaultBatchSize = 25
)

// VaultSource is the provenance tag for rows scanned from frontmatter.
const VaultSource = "vault-frontmatter"

// Proposal is one semantic relation candidate.
type Proposal struct {
	NotePath    string          `json:"note_path"`
	Predicate   graph.Predicate `json:"predicate"`
	TargetPath  string          `json:"target_path"`
	Confidence  float64         `json:"confidence"` // 0..100
	SourceField string          `json:"source_field,omitempty"`
}

// DraftRow is a proposal prepared for human review: it carries a stable row
// id and the label of the source it came from.
type DraftRow struct {
	ID             string          `json:"id"`
	NotePath       string          `json:"note_path"`
	Predicate      graph.Predicate `json:"predicate"`
	TargetPath     string          `json:"target_path"`
	Confidence     float64         `json:"confidence"`
	SourceField    string          `json:"source_field"`
	ProposalSource string          `json:"proposal_source"`
}

// DraftBatch is one fixed-size page of rows.
type DraftBatch struct {
	Index int        `json:"index"`
	Rows  []DraftRow `json:"rows"`
}

// Adapter supplies proposals from an external source.
type Adapter interface {
	// ID labels rows produced by this adapter.
	ID() string
	// Proposals returns the adapter's current proposals.
	Proposals() []Proposal
}

// BuildOptions controls draft batch construction.
type BuildOptions struct {
	// IncludeVaultFrontmatter scans every eligible document's frontmatter.
	IncludeVaultFrontmatter bool
	// Adapters are additional proposal sources.
	Adapters []Adapter
	// BatchSize overrides the configured page size when non-zero.
	BatchSize int
}

// RowStatus is the outcome of one edited row.
type RowStatus string

const (
	RowApplied RowStatus = "applied"
	RowSkipped RowStatus = "skipped"
	RowError   RowStatus = "error"
)

// RowResult reports the outcome of one row in an applied batch.
type RowResult struct {
	RowID  string    `json:"row_id"`
	Status RowStatus `json:"status"`
	Reason string    `json:"reason,omitempty"`
}

// ApplyResult aggregates an applied batch. Every input row is accounted for
// exactly once in Rows.
type ApplyResult struct {
	UpdatedNotes     int         `json:"updated_notes"`
	WrittenRelations int         `json:"written_relations"`
	SkippedRows      int         `json:"skipped_rows"`
	Rows             []RowResult `json:"rows"`
	Errors           []string    `json:"errors,omitempty"`
}

// Service builds and applies relation batches.
type Service struct {
	vault    *vault.Store
	fs       storage.Provider
	settings *settings.Store
	logger   *slog.Logger
}

// NewService creates a batch service.
func NewService(v *vault.Store, fs storage.Provider, st *settings.Store, logger *slog.Logger) *Service {
	return &Service{vault: v, fs: fs, settings: st, logger: logger}
}

// BuildDraftBatches collects rows from the vault frontmatter scan and from
// the given adapters, deduplicates by (notePath, predicate, targetPath)
// keeping the higher confidence, sorts deterministically, and paginates.
func (s *Service) BuildDraftBatches(opts BuildOptions) ([]DraftBatch, error) {
	cfg := s.settings.Get()

	var rows []DraftRow
	if opts.IncludeVaultFrontmatter {
		rows = append(rows, s.scanVault(cfg)...)
	}
	for _, adapter := range opts.Adapters {
		for _, p := range adapter.Proposals() {
			conf := p.Confidence
			if conf == 0 {
				conf = cfg.SemanticMinConfidence * 100
			}
			sourceField := p.SourceField
			if sourceField == "" {
				sourceField = relationField(cfg)
			}
			rows = append(rows, DraftRow{
				ID:             uuid.NewString(),
				NotePath:       p.NotePath,
				Predicate:      p.Predicate,
				TargetPath:     p.TargetPath,
				Confidence:     conf,
				SourceField:    sourceField,
				ProposalSource: adapter.ID(),
			})
		}
	}

	rows = dedupeRows(rows)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].NotePath != rows[j].NotePath {
			return rows[i].NotePath < rows[j].NotePath
		}
		if rows[i].Predicate != rows[j].Predicate {
			return rows[i].Predicate < rows[j].Predicate
		}
		return rows[i].TargetPath < rows[j].TargetPath
	})

	size := opts.BatchSize
	if size == 0 {
		size = cfg.SemanticBatchSize
	}
	if size == 0 {
		size = defaultBatchSize
	}
	if size < minBatchSize {
		size = minBatchSize
	}
	if size > maxBatchSize {
		size = maxBatchSize
	}

	var batches []DraftBatch
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, DraftBatch{Index: len(batches), Rows: rows[start:end]})
	}
	return batches, nil
}

// scanVault extracts relation rows from every eligible document's
// frontmatter. The extractor runs with defaults regardless of the semantic
// enable flag: batch review is explicitly user-initiated.
func (s *Service) scanVault(cfg settings.Settings) []DraftRow {
	semCfg := graph.SemanticConfig{
		Enabled:           true,
		Fields:            cfg.SemanticFields,
		DefaultConfidence: cfg.SemanticMinConfidence,
	}

	var rows []DraftRow
	for _, p := range s.vault.ListDocuments() {
		meta, ok := s.vault.Metadata(p)
		if !ok {
			continue
		}
		for _, rel := range graph.ExtractSemanticRelations(meta.Frontmatter, semCfg) {
			target := s.vault.ResolveLink(rel.Target, p)
			if target == "" {
				target = CanonicalTargetPath(rel.Target)
			}
			if target == "" {
				continue
			}
			rows = append(rows, DraftRow{
				ID:             uuid.NewString(),
				NotePath:       p,
				Predicate:      rel.Predicate,
				TargetPath:     target,
				Confidence:     rel.Confidence * 100,
				SourceField:    rel.SourceField,
				ProposalSource: VaultSource,
			})
		}
	}
	return rows
}

func dedupeRows(rows []DraftRow) []DraftRow {
	best := make(map[string]int, len(rows))
	var out []DraftRow
	for _, r := range rows {
		key := r.NotePath + "\x00" + string(r.Predicate) + "\x00" + CanonicalTargetPath(r.TargetPath)
		if i, ok := best[key]; ok {
			if r.Confidence > out[i].Confidence {
				out[i] = r
			}
			continue
		}
		best[key] = len(out)
		out = append(out, r)
	}
	return out
}

// CanonicalTargetPath unwraps wiki-link syntax and ensures a .md suffix, so
// differently spelled targets merge under one key.
func CanonicalTargetPath(raw string) string {
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

// relationField is the canonical frontmatter field relations persist into.
func relationField(cfg settings.Settings) string {
	if len(cfg.SemanticFields) > 0 {
		return cfg.SemanticFields[0]
	}
	return "relations"
}

// validateRow checks an edited row before persistence.
func validateRow(r DraftRow) error {
	return validation.Errors{
		"note_path":    validation.Validate(r.NotePath, validation.Required),
		"target_path":  validation.Validate(r.TargetPath, validation.Required),
		"source_field": validation.Validate(r.SourceField, validation.Required),
		"predicate": validation.Validate(string(r.Predicate), validation.Required,
			validation.By(func(interface{}) error {
				if !graph.ValidPredicate(r.Predicate) {
					return fmt.Errorf("unknown predicate %q", r.Predicate)
				}
				return nil
			})),
		"confidence": validation.Validate(r.Confidence, validation.Min(0.0), validation.Max(100.0)),
	}.Filter()
}

// ApplyEditedBatch persists edited rows into their target notes' canonical
// relation frontmatter. Invalid rows are skipped with a reason; a missing
// note or a write failure yields error rows for that note only and never
// blocks the rest of the batch.
func (s *Service) ApplyEditedBatch(rows []DraftRow) ApplyResult {
	cfg := s.settings.Get()
	field := relationField(cfg)

	result := ApplyResult{Rows: make([]RowResult, 0, len(rows))}
	byNote := make(map[string][]DraftRow)
	var noteOrder []string

	for _, r := range rows {
		if err := validateRow(r); err != nil {
			result.Rows = append(result.Rows, RowResult{
				RowID:  r.ID,
				Status: RowSkipped,
				Reason: err.Error(),
			})
			result.SkippedRows++
			continue
		}
		if _, ok := byNote[r.NotePath]; !ok {
			noteOrder = append(noteOrder, r.NotePath)
		}
		byNote[r.NotePath] = append(byNote[r.NotePath], r)
	}
	sort.Strings(noteOrder)

	for _, notePath := range noteOrder {
		noteRows := byNote[notePath]
		if err := s.applyToNote(notePath, field, noteRows); err != nil {
			msg := fmt.Sprintf("%s: %v", notePath, err)
			result.Errors = append(result.Errors, msg)
			for _, r := range noteRows {
				result.Rows = append(result.Rows, RowResult{
					RowID:  r.ID,
					Status: RowError,
					Reason: err.Error(),
				})
			}
			continue
		}
		result.UpdatedNotes++
		result.WrittenRelations += len(noteRows)
		for _, r := range noteRows {
			result.Rows = append(result.Rows, RowResult{RowID: r.ID, Status: RowApplied})
		}
	}

	return result
}

// applyToNote merges the rows' relation records into the note's existing
// relation field and writes the note back.
func (s *Service) applyToNote(notePath, field string, rows []DraftRow) error {
	data, err := s.fs.Read(notePath)
	if err != nil {
		return fmt.Errorf("note not found")
	}
	res, err := parser.Parse(data)
	if err != nil {
		return fmt.Errorf("parse note: %w", err)
	}

	fm := res.Frontmatter
	if fm == nil {
		fm = make(map[string]interface{})
	}

	// Existing records first, keyed by (predicate, canonical target), then
	// the edited rows overwrite or extend.
	merged := make(map[string]map[string]interface{})
	var order []string
	put := func(pred graph.Predicate, target string, confidence float64) {
		key := string(pred) + "\x00" + CanonicalTargetPath(target)
		if _, ok := merged[key]; !ok {
			order = append(order, key)
		}
		merged[key] = map[string]interface{}{
			"predicate":  string(pred),
			"target":     target,
			"confidence": confidence,
		}
	}

	if existing, ok := fm[field].([]interface{}); ok {
		for _, item := range existing {
			rec, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			rawPred := firstRecordString(rec, "predicate", "relation")
			target := firstRecordString(rec, "target", "to")
			if rawPred == "" || target == "" {
				continue
			}
			pred, ok := graph.NormalizePredicate(rawPred)
			if !ok {
				continue
			}
			conf := 0.0
			if v, ok := rec["confidence"]; ok {
				if f, ok := recordFloat(v); ok {
					conf = f
				}
			}
			put(pred, target, conf)
		}
	}

	for _, r := range rows {
		put(r.Predicate, r.TargetPath, r.Confidence)
	}

	out := make([]interface{}, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	fm[field] = out

	content, err := parser.Compose(fm, res.Body)
	if err != nil {
		return fmt.Errorf("compose note: %w", err)
	}
	if err := s.fs.Write(notePath, content); err != nil {
		return fmt.Errorf("write note: %w", err)
	}
	return nil
}

func firstRecordString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func recordFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
