package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://en.wiktionary.org/w/api.php", cfg.APIBaseURL)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://fr.wiktionary.org/w/api.php")
	t.Setenv("OUTPUT_DIR", "/tmp/audio")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://fr.wiktionary.org/w/api.php", cfg.APIBaseURL)
	assert.Equal(t, "/tmp/audio", cfg.OutputDir)
	assert.Equal(t, int64(5), int64(cfg.HTTPTimeout.Seconds()))
}

func TestLoad_InvalidTimeout(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT_SECONDS", "soon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("HTTP_TIMEOUT_SECONDS", "-3")
	_, err = Load()
	assert.Error(t, err)
}
