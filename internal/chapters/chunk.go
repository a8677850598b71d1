package chapters

import (
	"strings"
	"unicode/utf8"
)

// Chunk splits text into whitespace-delimited chunks of at most maxChars
// characters, counted as runes. Tokens are never split; a single token longer
// than maxChars becomes its own oversized chunk. Empty input yields no chunks.
func Chunk(text string, maxChars int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var (
		chunks  []string
		current []string
		length  int
	)

	for _, word := range words {
		n := utf8.RuneCountInString(word)
		// +1 accounts for the joining space.
		if len(current) > 0 && length+n+1 > maxChars {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			length = 0
		}
		current = append(current, word)
		length += n + 1
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}
