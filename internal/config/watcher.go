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

// DefaultWatchInterval is how often a [Watcher] looks at the file.
const DefaultWatchInterval = 5 * time.Second

// ReloadFunc receives every accepted config change together with its [Diff].
type ReloadFunc func(old, new *Config, diff ConfigDiff)

// fileStamp identifies one version of the config file. The mtime gates the
// read; the digest decides whether the content actually changed.
type fileStamp struct {
	mtime  time.Time
	digest [sha256.Size]byte
}

// Watcher keeps the gateway's view of a config file current. Edits that fail
// to parse or validate are logged and ignored; the last good config stays in
// effect.
type Watcher struct {
	path     string
	interval time.Duration
	reload   ReloadFunc
	log      *slog.Logger

	mu      sync.Mutex
	current *Config
	stamp   fileStamp

	stop     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithLogger sets the logger used for reload diagnostics. Defaults to
// [slog.Default].
func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// WithInterval sets the polling interval. Zero or negative keeps
// [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path and starts watching it. The file must be valid at
// this point; later invalid edits are skipped. reload may be nil.
func NewWatcher(path string, reload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		reload:   reload,
		log:      slog.Default(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, stamp, err := readStamped(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.stamp = cfg, stamp

	go w.run()
	return w, nil
}

// Current returns the config in effect.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends the watch. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *Watcher) run() {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			w.poll()
		}
	}
}

// poll applies the file if it changed since the last accepted version.
func (w *Watcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn("config: stat watched file", "path", w.path, "err", err)
		return
	}
	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.stamp.mtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	next, stamp, err := readStamped(w.path)
	if err != nil {
		w.log.Warn("config: edit rejected, keeping current config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	sameContent := stamp.digest == w.stamp.digest
	w.stamp = stamp
	prev := w.current
	if !sameContent {
		w.current = next
	}
	w.mu.Unlock()
	if sameContent {
		return
	}

	diff := Diff(prev, next)
	w.log.Info("config: applied edit",
		"path", w.path,
		"log_level_changed", diff.LogLevelChanged,
		"behavior_changed", diff.BehaviorChanged,
		"session_defaults_changed", diff.SessionDefaultsChanged,
	)
	// Outside the lock: reload may call Current.
	if w.reload != nil {
		w.reload(prev, next, diff)
	}
}

// readStamped loads and validates the file at path from a single read.
func readStamped(path string) (*Config, fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileStamp{}, err
	}
	return cfg, fileStamp{mtime: info.ModTime(), digest: sha256.Sum256(data)}, nil
}
