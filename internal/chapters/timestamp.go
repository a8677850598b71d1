package chapters

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
)

// ErrInvalidTimestamp is returned by ParseTimestamp for malformed input.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// MaxTimestampSeconds bounds parsed offsets so arithmetic on them cannot
// overflow.
const MaxTimestampSeconds = math.MaxInt32

// ParseTimestamp converts "HH:MM:SS" or "MM:SS" into total seconds.
// Fields must be unsigned decimal integers; a minutes or seconds field of 60
// or more is accepted arithmetically.
func ParseTimestamp(ts string) (int, error) {
	fields := strings.Split(strings.TrimSpace(ts), ":")

	switch len(fields) {
	case 2:
		fields = append([]string{"0"}, fields...)
	case 3:
	default:
		return 0, fmt.Errorf("%w: %q needs two or three fields", ErrInvalidTimestamp, ts)
	}

	var total int
	for _, f := range fields {
		n, err := parseField(f)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, ts, err)
		}
		if total > (MaxTimestampSeconds-n)/60 {
			return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidTimestamp, ts)
		}
		total = total*60 + n
	}
	return total, nil
}

func parseField(f string) (int, error) {
	f = strings.TrimSpace(f)
	if f == "" {
		return 0, errors.New("empty field")
	}
	for _, r := range f {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-numeric field %q", f)
		}
	}
	n, err := strconv.Atoi(f)
	if err != nil || n > MaxTimestampSeconds {
		return 0, fmt.Errorf("field %q is out of range", f)
	}
	return n, nil
}

// FormatTimestamp renders seconds as HH:MM:SS. Negative input renders as zero.
func FormatTimestamp(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// Normalize validates candidates in input order and returns canonical
// chapters. Candidates with malformed timestamps, non-increasing offsets, or
// offsets past durationSeconds (when known) are dropped. The first surviving
// chapter always starts at 00:00:00. Returns a validation error when nothing
// survives.
func Normalize(candidates []Candidate, durationSeconds int) ([]Chapter, error) {
	out := make([]Chapter, 0, len(candidates))
	prev := -1

	for i, c := range candidates {
		secs, err := ParseTimestamp(c.RawTimestamp)
		if err != nil || secs < 0 {
			continue
		}
		if len(out) > 0 && secs <= prev {
			continue
		}
		if durationSeconds > 0 && secs > durationSeconds {
			continue
		}

		out = append(out, Chapter{
			Timestamp: FormatTimestamp(secs),
			Title:     cleanTitle(c.Title, i),
		})
		prev = secs
	}

	if len(out) == 0 {
		return nil, domainerrors.Validationf("no valid chapters among %d candidates", len(candidates))
	}

	out[0].Timestamp = FormatTimestamp(0)
	return out, nil
}

// ToCandidates converts chapters back into candidates, e.g. to re-run
// Normalize over stored output.
func ToCandidates(chs []Chapter) []Candidate {
	cands := make([]Candidate, len(chs))
	for i, ch := range chs {
		cands[i] = Candidate{RawTimestamp: ch.Timestamp, Title: ch.Title}
	}
	return cands
}

func cleanTitle(title string, index int) string {
	title = strings.Join(strings.Fields(norm.NFC.String(title)), " ")
	if title == "" {
		return placeholderTitle(index)
	}
	return title
}

func placeholderTitle(index int) string {
	return fmt.Sprintf("Chapter %d", index+1)
}
