package chapters

import (
	"fmt"
	"strings"
)

const (
	modelCadence  = 180
	modelMinCount = 3
	modelMaxCount = 8

	// SampleChars bounds the transcript sample embedded in a chapter prompt.
	SampleChars = 3000
)

// SystemPrompt is sent alongside every chapter prompt.
const SystemPrompt = "You are a video chapter generator. Always respond with valid JSON only."

// schemaExample is the literal target shape shown to the model.
const schemaExample = `{"chapters":[{"timestamp":"HH:MM:SS","title":"..."}]}`

// PromptInput holds everything a chapter prompt embeds.
type PromptInput struct {
	Title            string
	DurationSeconds  int
	Summary          string
	TranscriptSample string
}

// TargetCount returns how many chapters to ask the model for:
// one per three minutes, between three and eight.
func TargetCount(durationSeconds int) int {
	return clamp(durationSeconds/modelCadence, modelMinCount, modelMaxCount)
}

// TranscriptSample returns the first chunk of text within SampleChars.
func TranscriptSample(text string) string {
	chunks := Chunk(text, SampleChars)
	if len(chunks) == 0 {
		return ""
	}
	return chunks[0]
}

// BuildPrompt assembles the chapter generation request. The output depends
// only on its input.
func BuildPrompt(in PromptInput) string {
	n := TargetCount(in.DurationSeconds)
	d := max(in.DurationSeconds, 0)

	var b strings.Builder
	fmt.Fprintf(&b, "Create %d chapters for this video.\n\n", n)
	fmt.Fprintf(&b, "Video: %q\n", in.Title)
	fmt.Fprintf(&b, "Duration: %d seconds (%d:%02d)\n", d, d/60, d%60)
	fmt.Fprintf(&b, "Content Summary: %s\n\n", in.Summary)
	b.WriteString("Transcript Sample:\n")
	b.WriteString(in.TranscriptSample)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Create %d chapters that divide the video logically. Each chapter must:\n", n)
	b.WriteString("- Have a timestamp in HH:MM:SS format, starting at 00:00:00\n")
	fmt.Fprintf(&b, "- Have a timestamp no later than %s, strictly increasing\n", FormatTimestamp(d))
	b.WriteString("- Have a short descriptive title based on the transcript\n\n")
	b.WriteString("Return ONLY a JSON object, with no other text, in this exact format:\n")
	b.WriteString(schemaExample)
	b.WriteString("\n")

	return b.String()
}

// BuildSummaryPrompt assembles the short-summary request for long
// transcripts.
func BuildSummaryPrompt(transcriptPrefix, title string) string {
	return fmt.Sprintf(`Briefly summarize the main topics and structure of this video transcript in 2-3 sentences:

Title: %s
Transcript: %s...

Summary:`, title, transcriptPrefix)
}
