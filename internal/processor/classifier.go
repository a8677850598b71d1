// Package processor turns files dropped into the inbox into chapter jobs and
// writes each result next to its transcript.
package processor

import (
	"path/filepath"
	"strings"

	"github.com/chaptermark/chaptermark-server/internal/acquire"
)

// Output suffixes written next to a processed transcript.
const (
	OutputSuffix = ".chapters.json"
	ErrorSuffix  = ".chapters.error.json"
)

// FileType represents the type of file detected by the classifier.
type FileType int

const (
	// FileTypeTranscript is a .json or .txt transcript.
	FileTypeTranscript FileType = iota
	// FileTypeAudio is audio that may complete a plain-text transcript.
	FileTypeAudio
	// FileTypeOutput is a result this package wrote.
	FileTypeOutput
	// FileTypeIgnored is everything else.
	FileTypeIgnored
)

// String returns the string representation of a FileType.
func (ft FileType) String() string {
	switch ft {
	case FileTypeTranscript:
		return "transcript"
	case FileTypeAudio:
		return "audio"
	case FileTypeOutput:
		return "output"
	case FileTypeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// classifyFile determines the type of file based on its name. Matching is
// case-insensitive. Result files are recognized before transcripts because
// they also end in .json.
func classifyFile(path string) FileType {
	if path == "" {
		return FileTypeIgnored
	}

	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, OutputSuffix) || strings.HasSuffix(name, ErrorSuffix) {
		return FileTypeOutput
	}

	if acquire.IsAudio(path) {
		return FileTypeAudio
	}

	switch filepath.Ext(name) {
	case ".json", ".txt":
		return FileTypeTranscript
	}

	return FileTypeIgnored
}

// stem strips the extension from path.
func stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// OutputPath returns where the chapters for transcript are written.
func OutputPath(transcript string) string {
	return stem(transcript) + OutputSuffix
}

// ErrorPath returns where a failure for transcript is recorded.
func ErrorPath(transcript string) string {
	return stem(transcript) + ErrorSuffix
}
