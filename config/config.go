package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIBaseURL  string
	DataDir     string
	OutputDir   string
	FFmpegPath  string
	FFprobePath string
	HTTPTimeout time.Duration
}

func Load() (*Config, error) {
	timeoutSeconds, err := strconv.Atoi(getEnv("HTTP_TIMEOUT_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT_SECONDS: %w", err)
	}
	if timeoutSeconds <= 0 {
		return nil, fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive")
	}

	return &Config{
		APIBaseURL:  getEnv("API_BASE_URL", "https://en.wiktionary.org/w/api.php"),
		DataDir:     getEnv("DATA_DIR", ""),
		OutputDir:   getEnv("OUTPUT_DIR", "."),
		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
		HTTPTimeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
