package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fakeProbe(info AudioInfo, err error) (ProbeFunc, *[]string) {
	var calls []string
	return func(_ context.Context, path string) (AudioInfo, error) {
		calls = append(calls, path)
		return info, err
	}, &calls
}

func TestInline(t *testing.T) {
	in := Inline{Text: "hello there", Title: "Hi", DurationSeconds: 30}

	got, err := in.Acquire(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, chapters.TranscriptInput{Text: "hello there", Title: "Hi", DurationSeconds: 30}, got)

	_, err = Inline{Text: "  \n"}.Acquire(context.Background(), "")
	assert.ErrorIs(t, err, domainerrors.ErrTranscriptEmpty)
}

func TestFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "surf.json",
		`{"text":"paddle out and wait","title":"Surf Basics","durationSeconds":900}`)

	probe, calls := fakeProbe(AudioInfo{}, nil)
	src := &File{Probe: probe}

	got, err := src.Acquire(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "paddle out and wait", got.Text)
	assert.Equal(t, "Surf Basics", got.Title)
	assert.Equal(t, 900, got.DurationSeconds)
	assert.Empty(t, *calls, "no audio reference means no probe")
}

func TestFile_JSONWithAudioPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "talk.json", `{"text":"words","audioPath":"talk.m4b"}`)

	probe, calls := fakeProbe(AudioInfo{Title: "The Talk", Duration: 1234500 * time.Millisecond}, nil)
	src := &File{Probe: probe}

	got, err := src.Acquire(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "The Talk", got.Title)
	assert.Equal(t, 1235, got.DurationSeconds)
	assert.Equal(t, []string{filepath.Join(dir, "talk.m4b")}, *calls)
}

func TestFile_TextWithSiblingAudio(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "episode.txt", "welcome to the show")
	audio := writeFile(t, dir, "episode.mp3", "not really audio")

	probe, calls := fakeProbe(AudioInfo{Title: "Episode One", Duration: 10 * time.Minute}, nil)
	src := &File{Probe: probe}

	got, err := src.Acquire(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "welcome to the show", got.Text)
	assert.Equal(t, "Episode One", got.Title)
	assert.Equal(t, 600, got.DurationSeconds)
	assert.Equal(t, []string{audio}, *calls)
}

func TestFile_TextWithoutAudioUsesFilename(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "my lecture.txt", "some words")

	probe, calls := fakeProbe(AudioInfo{}, nil)
	got, err := (&File{Probe: probe}).Acquire(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "my lecture", got.Title)
	assert.Zero(t, got.DurationSeconds)
	assert.Empty(t, *calls)
}

func TestFile_ExplicitAudioPathWins(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "text")
	writeFile(t, dir, "a.mp3", "x")

	probe, calls := fakeProbe(AudioInfo{Duration: time.Minute}, nil)
	src := &File{AudioPath: "/elsewhere/b.m4b", Probe: probe}

	_, err := src.Acquire(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/elsewhere/b.m4b"}, *calls)
}

func TestFile_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := (&File{}).Acquire(context.Background(), filepath.Join(dir, "nope.json"))
		assert.ErrorIs(t, err, domainerrors.ErrDownloadFailure)
	})

	t.Run("bad json", func(t *testing.T) {
		path := writeFile(t, dir, "bad.json", `{"text":`)
		_, err := (&File{}).Acquire(context.Background(), path)
		assert.ErrorIs(t, err, domainerrors.ErrDownloadFailure)
	})

	t.Run("empty text", func(t *testing.T) {
		path := writeFile(t, dir, "empty.txt", "   \n\t")
		_, err := (&File{}).Acquire(context.Background(), path)
		assert.ErrorIs(t, err, domainerrors.ErrTranscriptEmpty)
	})

	t.Run("probe failure", func(t *testing.T) {
		path := writeFile(t, dir, "p.txt", "words")
		probe, _ := fakeProbe(AudioInfo{}, errors.New("unsupported format"))
		_, err := (&File{AudioPath: "x.ogg", Probe: probe}).Acquire(context.Background(), path)
		assert.ErrorIs(t, err, domainerrors.ErrDownloadFailure)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := (&File{}).Acquire(ctx, "anything")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsAudio(t *testing.T) {
	assert.True(t, IsAudio("book.M4B"))
	assert.True(t, IsAudio("/x/y.mp3"))
	assert.False(t, IsAudio("notes.txt"))
	assert.False(t, IsAudio("noext"))
}

func TestAudioInfo_DurationSeconds(t *testing.T) {
	assert.Equal(t, 90, AudioInfo{Duration: 90 * time.Second}.DurationSeconds())
	assert.Equal(t, 91, AudioInfo{Duration: 90600 * time.Millisecond}.DurationSeconds())
}
