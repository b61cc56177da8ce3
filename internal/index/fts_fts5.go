//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			chunk_id UNINDEXED,
			path UNINDEXED,
			title,
			heading,
			text,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, chunkID, path, title, heading, text string) error {
	_, _ = tx.Exec(`DELETE FROM chunks_fts WHERE chunk_id = ?`, chunkID)
	_, err := tx.Exec(`INSERT INTO chunks_fts (chunk_id, path, title, heading, text) VALUES (?, ?, ?, ?, ?)`,
		chunkID, path, title, heading, text)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM chunks_fts WHERE path = ?`, path)
}

// Search performs an FTS5 search over chunks. The score is derived from
// bm25 rank, mapped so that higher means a better match.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT chunk_id,
		       path,
		       title,
		       snippet(chunks_fts, 4, '<b>', '</b>', '...', 64),
		       bm25(chunks_fts)
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			rank float64
		)
		if err := rows.Scan(&r.ChunkID, &r.Path, &r.Title, &r.Snippet, &rank); err != nil {
			return nil, err
		}
		// bm25 is negative with lower meaning better.
		r.Score = -rank
		if r.Score < 0 {
			r.Score = 0
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
