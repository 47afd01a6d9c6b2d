package rules

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeCallback receives the freshly loaded rule set after the watched file
// changes and passes validation.
type ChangeCallback func(rules RuleSet)

// WatcherConfig holds configuration for a rule file watcher.
type WatcherConfig struct {
	Path               string
	StabilityThreshold time.Duration
	Logger             zerolog.Logger
	OnChange           ChangeCallback
}

// Watcher monitors a rule file and reloads it on change. Rapid successive
// writes are debounced; a file that fails validation leaves the previous rule
// set active.
type Watcher struct {
	watcher            *fsnotify.Watcher
	path               string
	stabilityThreshold time.Duration
	logger             zerolog.Logger
	onChange           ChangeCallback

	done          chan struct{}
	stopOnce      sync.Once
	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a rule file watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("rule file path is required")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("change callback is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if cfg.StabilityThreshold == 0 {
		cfg.StabilityThreshold = 100 * time.Millisecond
	}

	return &Watcher{
		watcher:            watcher,
		path:               cfg.Path,
		stabilityThreshold: cfg.StabilityThreshold,
		logger:             cfg.Logger.With().Str("component", "rule-watcher").Logger(),
		onChange:           cfg.OnChange,
		done:               make(chan struct{}),
	}, nil
}

// Start loads the rule file once, delivers it to the callback, and begins
// watching for changes.
func (w *Watcher) Start() error {
	rules, err := Load(w.path)
	if err != nil {
		return err
	}
	w.onChange(rules)

	// Watch the directory: editors replace files by rename, which drops a
	// watch placed on the file itself.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch rule file: %w", err)
	}

	go w.eventLoop()

	w.logger.Info().Str("path", w.path).Msg("Rule watcher started")
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.stabilityThreshold, func() {
		select {
		case <-w.done:
			return
		default:
			w.reload()
		}
	})
}

func (w *Watcher) reload() {
	rules, err := Load(w.path)
	if err != nil {
		w.logger.Error().
			Err(err).
			Str("path", w.path).
			Msg("Rule reload failed, keeping previous rules")
		return
	}

	w.onChange(rules)
	w.logger.Info().
		Str("path", w.path).
		Int("allow", len(rules.Allow)).
		Int("deny", len(rules.Deny)).
		Msg("Rules reloaded")
}
