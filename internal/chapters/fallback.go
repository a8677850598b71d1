package chapters

// fallbackTitles are cycled in order when synthesizing fallback chapters.
var fallbackTitles = []string{
	"Introduction",
	"Main Content",
	"Key Discussion",
	"Advanced Topics",
	"Conclusion",
}

const (
	fallbackCadence  = 240
	fallbackMinCount = 3
	fallbackMaxCount = 6
)

// FallbackCount returns how many fallback chapters a duration gets:
// one per four minutes, between three and six.
func FallbackCount(durationSeconds int) int {
	return clamp(durationSeconds/fallbackCadence, fallbackMinCount, fallbackMaxCount)
}

// Fallback returns evenly spaced generic chapters for a duration. It never
// calls a model and never fails. Offsets that would repeat (durations shorter
// than the chapter count) are collapsed so the result stays strictly
// increasing; a zero duration yields a single chapter at 00:00:00.
func Fallback(durationSeconds int) []Chapter {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	count := FallbackCount(durationSeconds)

	out := make([]Chapter, 0, count)
	prev := -1
	for i := range count {
		secs := i * durationSeconds / count
		if secs <= prev {
			continue
		}
		out = append(out, Chapter{
			Timestamp: FormatTimestamp(secs),
			Title:     fallbackTitles[len(out)%len(fallbackTitles)],
		})
		prev = secs
	}
	return out
}

// FallbackResult wraps Fallback chapters in a Result tagged with the reason.
func FallbackResult(durationSeconds int, modelID, reason string) *Result {
	return &Result{
		Chapters: Fallback(durationSeconds),
		Source:   SourceFallback,
		ModelID:  modelID,
		Reason:   reason,
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
