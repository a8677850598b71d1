package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFile(t *testing.T) {
	tests := []struct {
		path string
		want FileType
	}{
		{"/inbox/talk.json", FileTypeTranscript},
		{"/inbox/talk.TXT", FileTypeTranscript},
		{"/inbox/talk.m4b", FileTypeAudio},
		{"/inbox/talk.mp3", FileTypeAudio},
		{"/inbox/talk.chapters.json", FileTypeOutput},
		{"/inbox/talk.CHAPTERS.JSON", FileTypeOutput},
		{"/inbox/talk.chapters.error.json", FileTypeOutput},
		{"/inbox/cover.jpg", FileTypeIgnored},
		{"/inbox/notes", FileTypeIgnored},
		{"", FileTypeIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyFile(tt.path))
		})
	}
}

func TestFileType_String(t *testing.T) {
	assert.Equal(t, "transcript", FileTypeTranscript.String())
	assert.Equal(t, "audio", FileTypeAudio.String())
	assert.Equal(t, "output", FileTypeOutput.String())
	assert.Equal(t, "ignored", FileTypeIgnored.String())
	assert.Equal(t, "unknown", FileType(99).String())
}

func TestOutputPaths(t *testing.T) {
	assert.Equal(t, "/inbox/talk.chapters.json", OutputPath("/inbox/talk.json"))
	assert.Equal(t, "/inbox/talk.chapters.json", OutputPath("/inbox/talk.txt"))
	assert.Equal(t, "/inbox/talk.chapters.error.json", ErrorPath("/inbox/talk.txt"))
}
