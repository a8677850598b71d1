// Package demo is a model-free inference backend. It answers chapter prompts
// with well-formed JSON derived from the prompt itself so the whole pipeline
// can run without credentials.
package demo

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
	"github.com/chaptermark/chaptermark-server/internal/inference"
)

var (
	countPattern    = regexp.MustCompile(`Create (\d+) chapters`)
	durationPattern = regexp.MustCompile(`Duration: (\d+) seconds`)
	samplePattern   = regexp.MustCompile(`(?s)Transcript Sample:\n(.*?)\n\n`)
	summaryPattern  = regexp.MustCompile(`(?s)Transcript: (.*?)\.\.\.\n`)
)

const titleWords = 4

// Backend loads demo engines. Every model identifier is accepted.
type Backend struct{}

// New returns a demo backend.
func New() *Backend { return &Backend{} }

// Load returns the demo engine.
func (*Backend) Load(_ context.Context, _ string, _ inference.LoadConfig) (inference.Engine, error) {
	return engine{}, nil
}

type engine struct{}

type chapterDoc struct {
	Chapters []chapters.Chapter `json:"chapters"`
}

func (engine) Complete(ctx context.Context, prompt string, _ inference.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if m := summaryPattern.FindStringSubmatch(prompt); m != nil {
		return summarize(m[1]), nil
	}

	count := 3
	if m := countPattern.FindStringSubmatch(prompt); m != nil {
		count, _ = strconv.Atoi(m[1])
	}
	duration := 0
	if m := durationPattern.FindStringSubmatch(prompt); m != nil {
		duration, _ = strconv.Atoi(m[1])
	}
	var words []string
	if m := samplePattern.FindStringSubmatch(prompt); m != nil {
		words = strings.Fields(m[1])
	}

	doc := chapterDoc{Chapters: make([]chapters.Chapter, 0, count)}
	for i := range count {
		doc.Chapters = append(doc.Chapters, chapters.Chapter{
			Timestamp: chapters.FormatTimestamp(i * duration / count),
			Title:     title(words, i, count),
		})
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return "```json\n" + string(out) + "\n```", nil
}

// title names segment i of count after the first words of that slice of
// the transcript sample.
func title(words []string, i, count int) string {
	start := i * len(words) / count
	end := min(start+titleWords, (i+1)*len(words)/count)
	if start >= end {
		return fmt.Sprintf("Part %d", i+1)
	}
	return capitalize(strings.Join(words[start:end], " "))
}

func summarize(prefix string) string {
	words := strings.Fields(prefix)
	if len(words) > 12 {
		words = words[:12]
	}
	if len(words) == 0 {
		return ""
	}
	return "The video opens with " + strings.Join(words, " ") + " and continues through several related topics."
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
