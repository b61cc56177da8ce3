package index

import (
	"fmt"
	"strings"

	"github.com/jakebiddle/notegraph/internal/models"
)

// maxChunkRunes caps a single chunk; oversized sections are split on
// paragraph boundaries.
const maxChunkRunes = 2000

// ChunkBody splits a note body into heading-delimited chunks with stable
// ids of the form "path#position".
func ChunkBody(path, body string) []models.Chunk {
	var (
		out     []models.Chunk
		heading string
		buf     []string
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if text == "" {
			return
		}
		for _, part := range splitOversized(text) {
			out = append(out, models.Chunk{
				ID:       fmt.Sprintf("%s#%d", path, len(out)),
				Path:     path,
				Position: len(out),
				Heading:  heading,
				Text:     part,
			})
		}
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			if h := strings.TrimSpace(strings.TrimLeft(trimmed, "#")); h != "" {
				flush()
				heading = h
				continue
			}
		}
		buf = append(buf, line)
	}
	flush()
	return out
}

// splitOversized breaks text on blank lines so no part exceeds the chunk cap.
func splitOversized(text string) []string {
	if len([]rune(text)) <= maxChunkRunes {
		return []string{text}
	}
	var (
		parts []string
		cur   []string
		size  int
	)
	for _, para := range strings.Split(text, "\n\n") {
		n := len([]rune(para))
		if size > 0 && size+n > maxChunkRunes {
			parts = append(parts, strings.TrimSpace(strings.Join(cur, "\n\n")))
			cur = cur[:0]
			size = 0
		}
		cur = append(cur, para)
		size += n
	}
	if len(cur) > 0 {
		parts = append(parts, strings.TrimSpace(strings.Join(cur, "\n\n")))
	}
	return parts
}
