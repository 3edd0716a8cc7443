package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/dshills/evbus/internal/log"
)

// DefaultDebounce is how long Watch waits after the last file event before
// reloading.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc is called after every reload attempt. On success cfg is the new
// configuration and changed lists the sections that differ from the previous
// one. On failure cfg is the configuration still in effect and err says why
// the file was rejected.
type ReloadFunc func(cfg *Config, changed []string, err error)

// Holder owns the current configuration and replaces it when the file on
// disk changes. A file that fails to load or validate never replaces a
// working configuration.
type Holder struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	mu      sync.RWMutex
	current *Config

	listenersMu sync.Mutex
	listeners   []ReloadFunc
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithDebounce sets the debounce interval used by Watch.
func WithDebounce(d time.Duration) HolderOption {
	return func(h *Holder) {
		if d > 0 {
			h.debounce = d
		}
	}
}

// WithLogger sets the holder's logger.
func WithLogger(l zerolog.Logger) HolderOption {
	return func(h *Holder) {
		h.logger = l
	}
}

// NewHolder creates a holder for the file at path with cfg in effect.
func NewHolder(path string, cfg *Config, opts ...HolderOption) *Holder {
	h := &Holder{
		path:     path,
		debounce: DefaultDebounce,
		logger:   log.WithComponent("config"),
		current:  cfg,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Path returns the watched file path.
func (h *Holder) Path() string {
	return h.path
}

// Get returns the configuration in effect.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers fn to be called after every reload attempt.
func (h *Holder) OnReload(fn ReloadFunc) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload loads the file and swaps it in if it is valid. On error the
// previous configuration stays in effect.
func (h *Holder) Reload() error {
	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(log.FieldPath, h.path).
			Str(log.FieldOutcome, "failed").
			Msg("config reload rejected")
		h.notify(h.Get(), nil, err)
		return err
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	changed := next.Diff(prev)
	h.logger.Info().
		Str(log.FieldPath, h.path).
		Strs(log.FieldChanged, changed).
		Str(log.FieldOutcome, "applied").
		Msg("config reloaded")
	h.notify(next, changed, nil)
	return nil
}

func (h *Holder) notify(cfg *Config, changed []string, err error) {
	h.listenersMu.Lock()
	listeners := append([]ReloadFunc(nil), h.listeners...)
	h.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(cfg, changed, err)
	}
}

// Watch reloads the configuration whenever the file changes until ctx is
// done. It watches the parent directory so editors that replace the file
// by renaming are seen too. Watch blocks and returns nil when ctx ends.
func (h *Holder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	base := filepath.Base(h.path)

	h.logger.Info().Str(log.FieldPath, h.path).Msg("watching config file")

	timer := time.NewTimer(h.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(log.FieldPath, h.path).Msg("config watcher stopped")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().Str(log.FieldPath, ev.Name).Str("op", ev.Op.String()).Msg("config file changed")
			timer.Reset(h.debounce)

		case <-timer.C:
			_ = h.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error().Err(err).Msg("config watcher error")
		}
	}
}
