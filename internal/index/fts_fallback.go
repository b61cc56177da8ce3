//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses a LIKE fallback over the chunks table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _, _, _ string) error {
	// Chunk text is already stored in the chunks table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search over chunks (fallback when FTS5 is
// not compiled in). Scores are ordinal since LIKE has no relevance rank.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT c.id, c.path, n.title, substr(c.text, 1, 200)
		FROM chunks c
		JOIN notes n ON n.path = c.path
		WHERE n.title LIKE ? OR c.heading LIKE ? OR c.text LIKE ?
		ORDER BY c.path, c.position
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		r.Score = 1.0 / float64(len(out)+1)
		out = append(out, r)
	}
	return out, rows.Err()
}
