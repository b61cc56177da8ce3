// Package vault maintains an in-memory view of the parsed Markdown corpus:
// per-document metadata (links, tags, headings, frontmatter) and link-target
// resolution. It is the document-store side the entity graph builds from.
package vault

import (
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jakebiddle/notegraph/internal/checksum"
	"github.com/jakebiddle/notegraph/internal/models"
	"github.com/jakebiddle/notegraph/internal/parser"
	"github.com/jakebiddle/notegraph/internal/settings"
	"github.com/jakebiddle/notegraph/internal/storage"
)

// Store caches parsed metadata for every eligible vault document.
type Store struct {
	fs       storage.Provider
	settings *settings.Store
	logger   *slog.Logger

	mu     sync.RWMutex
	docs   map[string]*models.DocumentMeta
	byBase map[string][]string // lowercase basename without .md -> paths
}

// New creates a vault store over the given file provider.
func New(fs storage.Provider, st *settings.Store, logger *slog.Logger) *Store {
	return &Store{
		fs:       fs,
		settings: st,
		logger:   logger,
		docs:     make(map[string]*models.DocumentMeta),
		byBase:   make(map[string][]string),
	}
}

// Load scans the whole vault and rebuilds the metadata cache. Unparseable
// documents are logged and skipped.
func (v *Store) Load() error {
	metas, err := v.fs.List("")
	if err != nil {
		return err
	}

	docs := make(map[string]*models.DocumentMeta, len(metas))
	for _, m := range metas {
		if !v.Eligible(m.Path) {
			continue
		}
		doc, err := v.parseOne(m.Path)
		if err != nil {
			v.logger.Warn("vault: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		doc.ModTime = m.UpdatedAt
		docs[m.Path] = doc
	}

	v.mu.Lock()
	v.docs = docs
	v.rebuildBaseIndexLocked()
	v.mu.Unlock()
	return nil
}

// Refresh re-parses a single document, or drops it from the cache when the
// backing file is gone or no longer eligible.
func (v *Store) Refresh(p string) error {
	if !v.Eligible(p) {
		v.Remove(p)
		return nil
	}
	doc, err := v.parseOne(p)
	if err != nil {
		v.Remove(p)
		return err
	}

	v.mu.Lock()
	v.docs[p] = doc
	v.rebuildBaseIndexLocked()
	v.mu.Unlock()
	return nil
}

// Remove drops a document from the cache.
func (v *Store) Remove(p string) {
	v.mu.Lock()
	if _, ok := v.docs[p]; ok {
		delete(v.docs, p)
		v.rebuildBaseIndexLocked()
	}
	v.mu.Unlock()
}

// ListDocuments returns the paths of every cached eligible document.
func (v *Store) ListDocuments() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.docs))
	for p := range v.docs {
		out = append(out, p)
	}
	return out
}

// Metadata returns the cached parsed metadata for a document.
func (v *Store) Metadata(p string) (*models.DocumentMeta, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	doc, ok := v.docs[p]
	return doc, ok
}

// Read returns the raw bytes of a vault file.
func (v *Store) Read(p string) ([]byte, error) {
	return v.fs.Read(p)
}

// Eligible applies the configured include/exclude prefix filters.
func (v *Store) Eligible(p string) bool {
	if !strings.HasSuffix(p, ".md") {
		return false
	}
	cfg := v.settings.Get()
	for _, pre := range cfg.ExcludePrefixes {
		if pre != "" && strings.HasPrefix(p, pre) {
			return false
		}
	}
	if len(cfg.IncludePrefixes) == 0 {
		return true
	}
	for _, pre := range cfg.IncludePrefixes {
		if strings.HasPrefix(p, pre) {
			return true
		}
	}
	return false
}

// ResolveLink resolves a link candidate (wikilink inner text or a plain
// path/title) from sourcePath to a canonical document path. Returns "" when
// nothing matches. Resolution order: exact path, path with .md appended,
// basename match (case-insensitive).
func (v *Store) ResolveLink(candidate, sourcePath string) string {
	target, _ := parser.SplitWikilink(strings.Trim(candidate, "[]"))
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	target = strings.TrimPrefix(path.Clean(strings.ReplaceAll(target, "\\", "/")), "./")

	v.mu.RLock()
	defer v.mu.RUnlock()

	if _, ok := v.docs[target]; ok {
		return target
	}
	if _, ok := v.docs[target+".md"]; ok {
		return target + ".md"
	}

	base := strings.ToLower(strings.TrimSuffix(path.Base(target), ".md"))
	if matches := v.byBase[base]; len(matches) > 0 {
		// Prefer a match in the source document's directory.
		srcDir := path.Dir(sourcePath)
		for _, m := range matches {
			if path.Dir(m) == srcDir {
				return m
			}
		}
		return matches[0]
	}
	return ""
}

func (v *Store) parseOne(p string) (*models.DocumentMeta, error) {
	data, err := v.fs.Read(p)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(p), ".md")
	}
	return &models.DocumentMeta{
		Path:        p,
		Title:       title,
		Links:       res.Links,
		Tags:        res.Tags,
		Headings:    res.Headings,
		Frontmatter: res.Frontmatter,
		Checksum:    checksum.Sum(data),
		ModTime:     time.Now(),
	}, nil
}

func (v *Store) rebuildBaseIndexLocked() {
	byBase := make(map[string][]string, len(v.docs))
	for p := range v.docs {
		base := strings.ToLower(strings.TrimSuffix(path.Base(p), ".md"))
		byBase[base] = append(byBase[base], p)
	}
	// Deterministic order for ambiguous basenames.
	for _, paths := range byBase {
		slices.Sort(paths)
	}
	v.byBase = byBase
}
