package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CaptureConfig describes how the microphone is recorded.
type CaptureConfig struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
}

// Capturer records a bounded utterance to a file.
type Capturer interface {
	Record(ctx context.Context, window time.Duration) (string, error)
	Available() error
}

// FFMPEGCapture records the microphone into a temporary wav file.
type FFMPEGCapture struct {
	cfg    CaptureConfig
	tmpDir string
}

func NewFFMPEGCapture(cfg CaptureConfig, tmpDir string) *FFMPEGCapture {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &FFMPEGCapture{cfg: cfg, tmpDir: tmpDir}
}

func (c *FFMPEGCapture) Available() error {
	_, err := exec.LookPath(c.cfg.Command)
	return err
}

// Record captures audio for window and returns the file path. The caller
// removes the file.
func (c *FFMPEGCapture) Record(ctx context.Context, window time.Duration) (string, error) {
	out, err := os.CreateTemp(c.tmpDir, "utterance-*.wav")
	if err != nil {
		return "", fmt.Errorf("create utterance file: %w", err)
	}
	path := out.Name()
	_ = out.Close()

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.cfg.InputFormat,
		"-i", c.cfg.InputDevice,
		"-t", strconv.FormatFloat(window.Seconds(), 'f', 2, 64),
		"-ac", "1",
		"-ar", strconv.Itoa(c.cfg.SampleRate),
		"-y", path,
	}

	cmd := exec.CommandContext(ctx, c.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("ffmpeg capture failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return path, nil
}
