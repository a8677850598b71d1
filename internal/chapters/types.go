// Package chapters turns transcripts and model output into validated,
// monotonic chapter lists, and synthesizes fallback chapters when the model
// path fails.
package chapters

// Source records which path produced a Result.
type Source string

const (
	// SourceModel marks chapters extracted from a model response.
	SourceModel Source = "model"
	// SourceFallback marks chapters synthesized from duration alone.
	SourceFallback Source = "fallback"
)

// TranscriptInput is the acquired media text and metadata.
type TranscriptInput struct {
	Text            string `json:"text" validate:"required"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"durationSeconds" validate:"gte=0"`
}

// Candidate is an untrusted chapter as extracted from model output.
type Candidate struct {
	RawTimestamp string
	Title        string
}

// Chapter is a validated marker. Timestamp is always HH:MM:SS.
type Chapter struct {
	Timestamp string `json:"timestamp"`
	Title     string `json:"title"`
}

// Seconds returns the chapter offset in seconds.
func (c Chapter) Seconds() int {
	secs, _ := ParseTimestamp(c.Timestamp)
	return secs
}

// Result is the pipeline outcome for one request.
// It is built once and not modified afterwards.
type Result struct {
	Chapters    []Chapter `json:"chapters"`
	Source      Source    `json:"source"`
	ModelID     string    `json:"modelId,omitempty"`
	TargetCount int       `json:"targetCount,omitzero"`
	Summary     string    `json:"summary,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// IsFallback reports whether the chapters came from the fallback generator.
func (r *Result) IsFallback() bool {
	return r.Source == SourceFallback
}
