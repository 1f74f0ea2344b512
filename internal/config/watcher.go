package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] stats the config file.
const DefaultWatchInterval = 5 * time.Second

// Watcher polls a config file and hands every valid edit that changes the
// effective configuration to a callback. The file's modification time and
// size are compared first and its SHA-256 only when they moved, so an
// untouched file costs one stat per interval. Polling also works on
// bind-mounted files where inotify events never arrive.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu      sync.Mutex
	current *Config
	stamp   fileStamp
	lastErr error
	reloads int

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// fileStamp identifies one version of the file on disk.
type fileStamp struct {
	mtime time.Time
	size  int64
	hash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values keep
// [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path and starts polling it. The initial load must
// succeed. onChange runs on the polling goroutine with the previous and the
// new config; it is not called for edits that leave the effective config
// unchanged (comments, reordering, explicit defaults).
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, stamp, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.stamp = stamp

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Err returns the error of the last reload attempt, or nil once a valid
// version has been read again.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Reloads returns how many times onChange has been called.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Stop ends polling and waits for an in-progress callback to return. Safe
// to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Watcher) poll() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.fail(err)
		return
	}

	w.mu.Lock()
	prev := w.stamp
	w.mu.Unlock()
	if info.ModTime().Equal(prev.mtime) && info.Size() == prev.size {
		return
	}

	cfg, stamp, err := w.read()
	if err != nil {
		// Remember the broken version so it is not re-parsed every tick.
		w.mu.Lock()
		w.stamp.mtime, w.stamp.size = info.ModTime(), info.Size()
		w.mu.Unlock()
		w.fail(err)
		return
	}

	w.mu.Lock()
	w.stamp = stamp
	w.lastErr = nil
	if stamp.hash == prev.hash {
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = cfg
	diff := Diff(old, cfg)
	if diff.Changed() {
		w.reloads++
	}
	w.mu.Unlock()

	if !diff.Changed() {
		slog.Debug("config watcher: file changed without effect", "path", w.path)
		return
	}
	slog.Info("config watcher: configuration changed",
		"path", w.path,
		"cooldowns", diff.CooldownsChanged,
		"presence", diff.PresenceChanged,
		"phrases", diff.PhrasesChanged,
		"voices", diff.VoicesChanged,
		"restart_required", diff.RestartRequired,
	)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// fail records err and logs it unless the same error was already reported.
func (w *Watcher) fail(err error) {
	w.mu.Lock()
	repeated := w.lastErr != nil && w.lastErr.Error() == err.Error()
	w.lastErr = err
	w.mu.Unlock()
	if !repeated {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
	}
}

func (w *Watcher) read() (*Config, fileStamp, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileStamp{}, err
	}
	return cfg, fileStamp{
		mtime: info.ModTime(),
		size:  info.Size(),
		hash:  sha256.Sum256(data),
	}, nil
}
