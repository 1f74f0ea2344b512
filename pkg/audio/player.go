package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// DefaultPlayCommand returns an ALSA aplay invocation reading raw mono 16-bit
// PCM at sampleRate from stdin.
func DefaultPlayCommand(sampleRate int) []string {
	return []string{"aplay", "-q", "-f", "S16_LE", "-r", strconv.Itoa(sampleRate), "-c", "1", "-t", "raw"}
}

// CommandPlayer streams PCM to a long-running external playback process via
// its stdin. It is the output sink of a [Mixer].
type CommandPlayer struct {
	sampleRate int

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	failed  bool
	closed  bool
	written int64
}

// StartCommandPlayer launches command and returns a player writing to it.
// The process is killed when ctx is cancelled.
func StartCommandPlayer(ctx context.Context, command []string, sampleRate int) (*CommandPlayer, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("audio: play command must not be empty")
	}
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("audio: play stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio: start %s: %w", command[0], err)
	}
	return &CommandPlayer{sampleRate: sampleRate, cmd: cmd, stdin: stdin}, nil
}

// SampleRate returns the rate the playback process expects.
func (p *CommandPlayer) SampleRate() int { return p.sampleRate }

// Play writes one chunk of mono PCM at [CommandPlayer.SampleRate]. Write
// failures are logged once; later chunks are dropped.
func (p *CommandPlayer) Play(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.failed {
		return
	}
	n, err := p.stdin.Write(chunk)
	p.written += int64(n)
	if err != nil {
		p.failed = true
		slog.Error("audio: playback write failed, output muted", "err", err)
	}
}

// Written returns the number of PCM bytes handed to the playback process.
func (p *CommandPlayer) Written() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// Close closes the process stdin and waits for it to exit.
func (p *CommandPlayer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	_ = p.stdin.Close()
	if err := p.cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("audio: playback process: %w", err)
	}
	return nil
}
