// Package ffmpeg adapts an ffmpeg installation to the engine port. The engine
// owns one working directory with fixed temporary names; it is not safe for
// concurrent transcodes and relies on the session loop to serialize calls.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"wikiaudio/internal/infrastructure/logger"
	"wikiaudio/internal/port"
)

var (
	ErrEmptyInput  = errors.New("empty input payload")
	ErrEmptyOutput = errors.New("engine produced no output")
	ErrBadBinary   = errors.New("binary did not identify as ffmpeg")
)

// Fixed temporary names inside the working directory.
const (
	inputName  = "input.bin"
	outputName = "output.wav"
	warmupName = "warmup.wav"
)

type Engine struct {
	ffmpegPath  string
	ffprobePath string
	workDir     string
}

// NewEngine builds an engine around the given binaries. workDir is created on
// Load, not here.
func NewEngine(ffmpegPath, ffprobePath, workDir string) *Engine {
	return &Engine{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		workDir:     workDir,
	}
}

// Artifacts lists the binaries the session pre-flights before loading.
func (e *Engine) Artifacts() []string {
	return []string{e.ffmpegPath, e.ffprobePath}
}

// Verify runs each binary in isolation and checks that it identifies itself,
// so a broken installation fails fast instead of surfacing as a confusing
// error inside the first transcode.
func (e *Engine) Verify(ctx context.Context) error {
	if err := identify(ctx, e.ffmpegPath, "ffmpeg version"); err != nil {
		return err
	}
	return identify(ctx, e.ffprobePath, "ffprobe version")
}

func identify(ctx context.Context, binary, banner string) error {
	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return fmt.Errorf("run %s -version: %w", binary, err)
	}
	if !strings.HasPrefix(string(out), banner) {
		return ErrBadBinary
	}
	return nil
}

// Load creates the working directory and runs a silent warm-up encode through
// the exact output codec path, proving the WAV pipeline works end to end.
func (e *Engine) Load(ctx context.Context) error {
	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	warmupPath := filepath.Join(e.workDir, warmupName)
	args := []string{
		"-f", "lavfi",
		"-i", "anullsrc=r=48000:cl=mono",
		"-t", "0.1",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		"-y", warmupPath,
	}
	if err := e.run(ctx, args); err != nil {
		return fmt.Errorf("warm-up encode: %w", err)
	}
	if err := os.Remove(warmupPath); err != nil {
		logger.Warn.Printf("remove warm-up artifact: %v", err)
	}
	return nil
}

// Transcode materializes input under the fixed temporary name, applies the
// fixed normalization (video stripped, one channel, 48 kHz, 16-bit signed PCM,
// WAV container, overwrite) and reads the result back. Both temporaries are
// removed best-effort on every path.
func (e *Engine) Transcode(ctx context.Context, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, ErrEmptyInput
	}

	inputPath := filepath.Join(e.workDir, inputName)
	outputPath := filepath.Join(e.workDir, outputName)
	defer e.cleanup(inputPath, outputPath)

	if err := os.WriteFile(inputPath, input, 0o644); err != nil {
		return nil, fmt.Errorf("materialize input: %w", err)
	}

	args := []string{
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "48000",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		"-y", outputPath,
	}
	if err := e.run(ctx, args); err != nil {
		return nil, fmt.Errorf("transcode: %w", err)
	}

	out, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	return out, nil
}

// cleanup removes the fixed temporaries so failed jobs never leave state
// behind for the next one. Failures are logged, never surfaced.
func (e *Engine) cleanup(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn.Printf("cleanup %s: %v", p, err)
		}
	}
}

func (e *Engine) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

// lastLine picks the final non-empty stderr line, which is where ffmpeg puts
// the actual failure reason.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no diagnostic output"
}

var _ port.Engine = (*Engine)(nil)
