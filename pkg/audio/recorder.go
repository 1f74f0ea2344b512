package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// ErrCaptureTimeout is returned when the recording command did not finish
// within the segment duration plus a grace period.
var ErrCaptureTimeout = errors.New("audio: capture timed out")

const captureGrace = 2 * time.Second

// DefaultRecordCommand returns an ALSA arecord invocation that writes raw
// 16-bit little-endian PCM of duration d to stdout.
func DefaultRecordCommand(sampleRate, channels int, d time.Duration) []string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return []string{
		"arecord", "-q",
		"-f", "S16_LE",
		"-r", strconv.Itoa(sampleRate),
		"-c", strconv.Itoa(channels),
		"-t", "raw",
		"-d", strconv.Itoa(secs),
	}
}

// CommandRecorder captures segments by running an external command that
// writes raw PCM to stdout and exits.
type CommandRecorder struct {
	command    []string
	sampleRate int
	channels   int
	duration   time.Duration
	noiseFloor float64
	now        func() time.Time
}

var _ Recorder = (*CommandRecorder)(nil)

// RecorderOption configures a [CommandRecorder].
type RecorderOption func(*CommandRecorder)

// WithNoiseFloor makes Capture return [ErrSilence] for segments whose RMS
// level is below floor (0..1).
func WithNoiseFloor(floor float64) RecorderOption {
	return func(r *CommandRecorder) { r.noiseFloor = floor }
}

// WithRecorderClock overrides the time source used to stamp segments.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *CommandRecorder) { r.now = now }
}

// NewCommandRecorder returns a recorder running command for each segment.
// duration is the expected segment length and bounds how long Capture waits.
func NewCommandRecorder(command []string, sampleRate, channels int, duration time.Duration, opts ...RecorderOption) (*CommandRecorder, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("audio: record command must not be empty")
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("audio: invalid record format %d Hz / %d ch", sampleRate, channels)
	}
	if duration <= 0 {
		return nil, errors.New("audio: segment duration must be positive")
	}
	r := &CommandRecorder{
		command:    command,
		sampleRate: sampleRate,
		channels:   channels,
		duration:   duration,
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// SegmentDuration returns the configured segment length.
func (r *CommandRecorder) SegmentDuration() time.Duration { return r.duration }

// Capture runs the record command once and returns its output as a segment.
func (r *CommandRecorder) Capture(ctx context.Context) (Segment, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.duration+captureGrace)
	defer cancel()

	started := r.now()
	out, err := exec.CommandContext(runCtx, r.command[0], r.command[1:]...).Output()
	if err != nil {
		if ctx.Err() != nil {
			return Segment{}, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return Segment{}, ErrCaptureTimeout
		}
		return Segment{}, fmt.Errorf("audio: run %s: %w", r.command[0], err)
	}

	seg := Segment{
		PCM:        out,
		SampleRate: r.sampleRate,
		Channels:   r.channels,
		StartedAt:  started,
		EndedAt:    r.now(),
	}
	if len(out) == 0 {
		return seg, ErrSilence
	}
	if r.noiseFloor > 0 && RMS(Samples(out, r.channels)) < r.noiseFloor {
		return seg, ErrSilence
	}
	return seg, nil
}
