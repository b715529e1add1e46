package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var ErrUnplayable = errors.New("audio file is not playable")

// Handle is a running playback.
type Handle interface {
	// Wait blocks until playback ends. A nil error means the track finished.
	Wait() error
	Stop() error
}

type Player interface {
	Play(ctx context.Context, path string) (Handle, error)
}

// CommandPlayer plays files through an external program such as ffplay or
// mpg123. The path is appended as the last argument.
type CommandPlayer struct {
	command string
	args    []string
	startup time.Duration
}

func NewCommandPlayer(commandLine string) *CommandPlayer {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		fields = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "error"}
	}
	return &CommandPlayer{
		command: fields[0],
		args:    fields[1:],
		startup: 200 * time.Millisecond,
	}
}

func (p *CommandPlayer) Play(ctx context.Context, path string) (Handle, error) {
	if err := checkPlayable(path); err != nil {
		return nil, err
	}

	args := append(append([]string{}, p.args...), path)
	cmd := exec.CommandContext(ctx, p.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", p.command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("%s exited before playback started: %w: %s", p.command, err, trimmed(&stderr))
		}
		return &finishedHandle{}, nil
	case <-time.After(p.startup):
	}

	return &commandHandle{
		process: cmd.Process,
		stderr:  &stderr,
		waitErr: waitErr,
	}, nil
}

func checkPlayable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 3)
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("%w: %v", ErrUnplayable, err)
	}
	return nil
}

type commandHandle struct {
	process *os.Process
	stderr  *bytes.Buffer
	waitErr <-chan error

	mu       sync.Mutex
	stopped  bool
	done     bool
	finalErr error
}

func (h *commandHandle) Wait() error {
	err, ok := <-h.waitErr

	h.mu.Lock()
	defer h.mu.Unlock()
	if !ok {
		return h.finalErr
	}
	h.done = true
	if h.stopped {
		h.finalErr = nil
		return nil
	}
	if err != nil {
		h.finalErr = fmt.Errorf("player exited: %w: %s", err, trimmed(h.stderr))
	}
	return h.finalErr
}

func (h *commandHandle) Stop() error {
	h.mu.Lock()
	if h.stopped || h.done {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	h.mu.Unlock()

	if err := h.process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return h.process.Kill()
	}

	go func() {
		time.Sleep(time.Second)
		_ = h.process.Kill()
	}()
	return nil
}

type finishedHandle struct{}

func (finishedHandle) Wait() error { return nil }
func (finishedHandle) Stop() error { return nil }

func trimmed(b *bytes.Buffer) string {
	if b == nil {
		return ""
	}
	return strings.TrimSpace(b.String())
}
