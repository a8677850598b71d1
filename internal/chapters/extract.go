package chapters

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
	"strings"

	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
)

const jsonFence = "```json"

// ExtractJSON pulls the JSON payload out of a free-form model response.
// In order it tries: the contents of a ```json fenced block; the span from the
// first '{' to the last '}' (or first '[' to last ']' when an array opens
// first). Returns a JSON parse failure when neither is present.
func ExtractJSON(raw string) (string, error) {
	if start := strings.Index(raw, jsonFence); start >= 0 {
		body := raw[start+len(jsonFence):]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		if body = strings.TrimSpace(body); body != "" {
			return body, nil
		}
	}

	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")

	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if s, ok := span(raw, arrStart, "]"); ok {
			return s, nil
		}
	}
	if objStart >= 0 {
		if s, ok := span(raw, objStart, "}"); ok {
			return s, nil
		}
	}

	return "", domainerrors.JSONParseFailure("model response contains no JSON object or array")
}

func span(raw string, start int, closer string) (string, bool) {
	end := strings.LastIndex(raw, closer)
	if end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// DecodeCandidates parses extracted JSON into chapter candidates. Both
// {"chapters":[...]} and a bare array are accepted. Entries without a title
// get "Chapter N"; entries without a timestamp get an evenly spaced offset
// across durationSeconds.
func DecodeCandidates(text string, durationSeconds int) ([]Candidate, error) {
	var doc any
	err := json.Unmarshal([]byte(text), &doc,
		jsontext.AllowDuplicateNames(true),
		jsontext.AllowInvalidUTF8(true),
	)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeJSONParseFailure, "model response is not valid JSON")
	}

	var entries []any
	switch v := doc.(type) {
	case map[string]any:
		list, ok := v["chapters"].([]any)
		if !ok {
			return nil, domainerrors.SchemaValidationFailure(`response object has no "chapters" array`)
		}
		entries = list
	case []any:
		entries = v
	default:
		return nil, domainerrors.SchemaValidationFailure("response is neither an object nor an array")
	}

	if len(entries) == 0 {
		return nil, domainerrors.SchemaValidationFailure("response contains no chapters")
	}

	count := len(entries)
	cands := make([]Candidate, count)
	for i, entry := range entries {
		var ts, title string
		switch e := entry.(type) {
		case map[string]any:
			ts = timestampField(e)
			title = stringField(e, "title", "name", "chapter")
		case string:
			title = e
		}

		if ts == "" {
			ts = FormatTimestamp(i * max(durationSeconds, 0) / count)
		}
		if strings.TrimSpace(title) == "" {
			title = placeholderTitle(i)
		}
		cands[i] = Candidate{RawTimestamp: ts, Title: title}
	}

	return cands, nil
}

func timestampField(e map[string]any) string {
	for _, key := range []string{"timestamp", "time", "start"} {
		switch v := e[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			if v >= 0 && v <= MaxTimestampSeconds {
				return FormatTimestamp(int(v))
			}
		}
	}
	return ""
}

func stringField(e map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := e[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
