package chapters

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_Empty(t *testing.T) {
	assert.Empty(t, Chunk("", 100))
	assert.Empty(t, Chunk(" \n\t  ", 100))
}

func TestChunk_SingleChunk(t *testing.T) {
	assert.Equal(t, []string{"catch the wave"}, Chunk("  catch   the\nwave ", 100))
}

func TestChunk_SplitsOnWordBoundaries(t *testing.T) {
	chunks := Chunk("aaa bbb ccc ddd", 8)

	assert.Equal(t, []string{"aaa bbb", "ccc ddd"}, chunks)
}

func TestChunk_OversizedToken(t *testing.T) {
	chunks := Chunk("hi supercalifragilistic yo", 6)

	assert.Equal(t, []string{"hi", "supercalifragilistic", "yo"}, chunks)
}

func TestChunk_CountsCharactersNotBytes(t *testing.T) {
	// Each word is three characters but six bytes.
	chunks := Chunk("äöü éèê ñõã", 8)

	assert.Equal(t, []string{"äöü éèê", "ñõã"}, chunks)
}

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("paddle out and wait ", 200)
	assert.Equal(t, Chunk(text, 120), Chunk(text, 120))
}

// Joining chunks with single spaces reproduces the word sequence, and no
// chunk exceeds the budget when the budget exceeds every word.
func TestChunk_LosslessAndBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	alphabet := "abcdefghijklmnopqrstuvwxyz"

	for trial := range 200 {
		var words []string
		longest := 0
		for range rng.IntN(300) {
			n := 1 + rng.IntN(12)
			var sb strings.Builder
			for range n {
				sb.WriteByte(alphabet[rng.IntN(len(alphabet))])
			}
			words = append(words, sb.String())
			longest = max(longest, n)
		}
		seps := []string{" ", "  ", "\n", "\t "}
		var text strings.Builder
		for i, w := range words {
			if i > 0 {
				text.WriteString(seps[rng.IntN(len(seps))])
			}
			text.WriteString(w)
		}

		budget := longest + 1 + rng.IntN(80)
		chunks := Chunk(text.String(), budget)

		require.Equal(t, strings.Join(words, " "), strings.Join(chunks, " "), "trial %d", trial)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), budget, "trial %d", trial)
			assert.NotEmpty(t, c)
		}
	}
}
