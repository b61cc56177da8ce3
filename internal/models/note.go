// Package models defines the domain types shared across notegraph packages.
package models

import "time"

// LinkRef is an outgoing wikilink with its optional display text.
// For [[target|alias]] the Display carries "alias"; otherwise it is empty.
type LinkRef struct {
	Target  string `json:"target"`
	Display string `json:"display,omitempty"`
}

// Note represents a parsed Markdown file in the vault.
type Note struct {
	Path        string                 `json:"path"`
	Content     []byte                 `json:"-"`
	Body        string                 `json:"body"`
	Frontmatter map[string]interface{} `json:"frontmatter,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Links       []LinkRef              `json:"links,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Headings    []string               `json:"headings,omitempty"`
	Checksum    string                 `json:"checksum"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentMeta is the parsed metadata the entity graph consumes for one
// eligible document. It is owned by the vault store and rebuilt whenever the
// backing file changes.
type DocumentMeta struct {
	Path        string
	Title       string
	Links       []LinkRef
	Tags        []string
	Headings    []string
	Frontmatter map[string]interface{}
	Checksum    string
	ModTime     time.Time
}

// Chunk is one retrievable snippet of a note, produced by the chunker and
// stored in the lexical index. IDs are stable across re-chunking as long as
// the chunk order is unchanged ("path#position").
type Chunk struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Position int    `json:"position"`
	Heading  string `json:"heading,omitempty"`
	Text     string `json:"text"`
}
