package acquire

import (
	"context"
	"encoding/json/v2"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/simonhull/audiometa"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
)

// AudioExtensions are probed, in order, for a sibling audio file next to a
// plain-text transcript.
var AudioExtensions = []string{".m4b", ".m4a", ".mp3", ".flac", ".ogg", ".opus"}

// AudioInfo is the metadata read from an audio file.
type AudioInfo struct {
	Path     string
	Title    string
	Duration time.Duration
	// Chapters already embedded in the file, normalized.
	Chapters []chapters.Chapter
}

// DurationSeconds rounds the duration to whole seconds.
func (a AudioInfo) DurationSeconds() int {
	return int(math.Round(a.Duration.Seconds()))
}

// ProbeFunc reads audio metadata. Replaced in tests.
type ProbeFunc func(ctx context.Context, path string) (AudioInfo, error)

// File reads transcripts from disk. A ".json" reference holds
// {"text","title","durationSeconds"}; any other reference is plain text whose
// duration and title come from a sibling audio file (or AudioPath) when one
// exists.
type File struct {
	// AudioPath overrides sibling discovery.
	AudioPath string
	Probe     ProbeFunc
}

// NewFile returns a File source that probes audio with audiometa.
func NewFile(audioPath string) *File {
	return &File{AudioPath: audioPath, Probe: ProbeAudio}
}

type transcriptFile struct {
	Text            string `json:"text"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"durationSeconds"`
	AudioPath       string `json:"audioPath"`
}

// Acquire reads the transcript at path.
func (f *File) Acquire(ctx context.Context, path string) (chapters.TranscriptInput, error) {
	if err := ctx.Err(); err != nil {
		return chapters.TranscriptInput{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return chapters.TranscriptInput{}, domainerrors.DownloadFailuref("transcript %s not found", path)
		}
		return chapters.TranscriptInput{}, domainerrors.Wrapf(err, domainerrors.CodeDownloadFailure, "read transcript %s", path)
	}

	var in chapters.TranscriptInput
	audioPath := f.AudioPath

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var tf transcriptFile
		if err := json.Unmarshal(data, &tf); err != nil {
			return chapters.TranscriptInput{}, domainerrors.Wrapf(err, domainerrors.CodeDownloadFailure, "decode transcript %s", path)
		}
		in = chapters.TranscriptInput{Text: tf.Text, Title: tf.Title, DurationSeconds: tf.DurationSeconds}
		if audioPath == "" && tf.AudioPath != "" {
			audioPath = tf.AudioPath
			if !filepath.IsAbs(audioPath) {
				audioPath = filepath.Join(filepath.Dir(path), audioPath)
			}
		}
	} else {
		in = chapters.TranscriptInput{Text: string(data)}
		if audioPath == "" {
			audioPath = SiblingAudio(path)
		}
	}

	if err := checkTranscript(in); err != nil {
		return chapters.TranscriptInput{}, err
	}

	if audioPath != "" && f.Probe != nil {
		info, err := f.Probe(ctx, audioPath)
		if err != nil {
			return chapters.TranscriptInput{}, domainerrors.Wrapf(err, domainerrors.CodeDownloadFailure, "read audio metadata %s", audioPath)
		}
		if in.DurationSeconds == 0 {
			in.DurationSeconds = info.DurationSeconds()
		}
		if in.Title == "" {
			in.Title = info.Title
		}
	}

	if in.Title == "" {
		in.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return in, nil
}

// SiblingAudio returns the first audio file sharing path's base name, or "".
func SiblingAudio(path string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range AudioExtensions {
		candidate := base + ext
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
	}
	return ""
}

// IsAudio reports whether path has a known audio extension.
func IsAudio(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ProbeAudio reads duration, title and embedded chapters with audiometa.
func ProbeAudio(ctx context.Context, path string) (AudioInfo, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer file.Close()

	info := AudioInfo{
		Path:     path,
		Title:    strings.TrimSpace(file.Tags.Title),
		Duration: file.Audio.Duration,
	}

	if len(file.Chapters) > 0 {
		cands := make([]chapters.Candidate, len(file.Chapters))
		for i, ch := range file.Chapters {
			cands[i] = chapters.Candidate{
				RawTimestamp: chapters.FormatTimestamp(int(ch.StartTime.Seconds())),
				Title:        ch.Title,
			}
		}
		// Embedded chapters that do not survive normalization are ignored.
		if chs, err := chapters.Normalize(cands, info.DurationSeconds()); err == nil {
			info.Chapters = chs
		}
	}

	return info, nil
}
