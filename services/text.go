package services

import (
	"fmt"
	"strings"
)

// TextChunk is one window produced by ChunkText
type TextChunk struct {
	Index int    // emission order, stored as chunk_index
	Start int    // rune offset of the window in the source text
	Text  string // trimmed window content
}

// NormalizeText cleans extracted PDF text before chunking.
// Invalid UTF-8 and control characters other than tab, newline and carriage
// return are dropped, every whitespace run becomes a single space and the
// result is trimmed. Safe for any input, including "".
func NormalizeText(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.Map(func(r rune) rune {
		if isUnsafeControl(r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

func isUnsafeControl(r rune) bool {
	switch {
	case r <= 0x08:
		return true
	case r == 0x0B, r == 0x0C:
		return true
	case r >= 0x0E && r <= 0x1F:
		return true
	case r == 0x7F:
		return true
	}
	return false
}

// ChunkText splits text into windows of size runes whose starts are
// size-overlap apart. Windows that are blank after trimming are skipped but
// still advance the cursor.
func ChunkText(text string, size, overlap int) ([]TextChunk, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunkConfig, size, overlap)
	}

	runes := []rune(text)
	step := size - overlap
	chunks := make([]TextChunk, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		trimmed := strings.TrimSpace(string(runes[start:end]))
		if trimmed == "" {
			continue
		}
		chunks = append(chunks, TextChunk{
			Index: len(chunks),
			Start: start,
			Text:  trimmed,
		})
	}

	return chunks, nil
}

// chunkTexts returns just the chunk contents, in order
func chunkTexts(chunks []TextChunk) []string {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return texts
}
