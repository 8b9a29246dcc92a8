package chunker

import (
	"strings"
	"unicode/utf8"
)

// WindowChunker groups consecutive sentences into size-bounded chunks.
type WindowChunker struct {
	WindowSize   int
	MinChunkSize int
	MaxChunkSize int
}

// Chunk walks the sentences in non-overlapping windows. A window shorter than
// MinChunkSize is dropped and one longer than MaxChunkSize is split on word
// boundaries.
func (w WindowChunker) Chunk(sentences []string) []string {
	size := w.WindowSize
	if size < 1 {
		size = 1
	}

	var chunks []string
	for i := 0; i < len(sentences); i += size {
		end := min(i+size, len(sentences))
		text := strings.Join(sentences[i:end], " ")
		n := utf8.RuneCountInString(text)
		switch {
		case n > w.MaxChunkSize:
			chunks = append(chunks, SplitOversized(text, w.MaxChunkSize)...)
		case n >= w.MinChunkSize:
			chunks = append(chunks, text)
		}
	}
	return chunks
}

// SplitOversized packs the words of text greedily into pieces of at most limit
// characters. A single word longer than limit is cut at rune boundaries.
func SplitOversized(text string, limit int) []string {
	var (
		pieces  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if curLen > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		wordLen := utf8.RuneCountInString(word)
		if curLen > 0 && curLen+1+wordLen <= limit {
			current.WriteByte(' ')
			current.WriteString(word)
			curLen += 1 + wordLen
			continue
		}
		flush()
		for wordLen > limit {
			runes := []rune(word)
			pieces = append(pieces, string(runes[:limit]))
			word = string(runes[limit:])
			wordLen -= limit
		}
		if wordLen > 0 {
			current.WriteString(word)
			curLen = wordLen
		}
	}
	flush()
	return pieces
}
