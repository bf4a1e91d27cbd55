package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifacts(t *testing.T) {
	e := NewEngine("/usr/bin/ffmpeg", "/usr/bin/ffprobe", t.TempDir())
	assert.Equal(t, []string{"/usr/bin/ffmpeg", "/usr/bin/ffprobe"}, e.Artifacts())
}

func TestTranscode_EmptyInput(t *testing.T) {
	e := NewEngine("ffmpeg", "ffprobe", t.TempDir())
	_, err := e.Transcode(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTranscode_CleansUpOnFailure(t *testing.T) {
	workDir := t.TempDir()
	// A binary that cannot exist; the exec fails after the input file is
	// materialized, and cleanup must still remove it.
	e := NewEngine(filepath.Join(workDir, "no-such-ffmpeg"), "ffprobe", workDir)

	_, err := e.Transcode(context.Background(), []byte("not really audio"))
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(workDir, inputName))
	assert.True(t, os.IsNotExist(statErr), "input temporary should be removed after failure")
	_, statErr = os.Stat(filepath.Join(workDir, outputName))
	assert.True(t, os.IsNotExist(statErr), "output temporary should be removed after failure")
}

func TestVerify_RejectsNonFFmpegBinary(t *testing.T) {
	// `true` exits 0 but prints nothing, so identification fails.
	e := NewEngine("true", "ffprobe", t.TempDir())
	err := e.Verify(context.Background())
	assert.ErrorIs(t, err, ErrBadBinary)
}

func TestVerify_MissingBinary(t *testing.T) {
	e := NewEngine(filepath.Join(t.TempDir(), "absent"), "ffprobe", t.TempDir())
	assert.Error(t, e.Verify(context.Background()))
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\nb\nc\n", "c"},
		{"only", "only"},
		{"line\n\n  \n", "line"},
		{"", "no diagnostic output"},
	}
	for _, tt := range tests {
		if got := lastLine(tt.in); got != tt.want {
			t.Errorf("lastLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
