// Package watcher runs the pipeline for recordings dropped into a directory.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/lexiqai/meeting-summarizer/internal/audio"
)

// DefaultDebounce is how long a file must stay unchanged before it is handled
const DefaultDebounce = 500 * time.Millisecond

// EventHandler processes one settled file
type EventHandler func(ctx context.Context, path string) error

// Watcher monitors a directory and hands settled audio files to a handler
// one at a time
type Watcher struct {
	dir      string
	debounce time.Duration
	handler  EventHandler
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
}

// New creates a watcher on dir. A debounce of zero uses DefaultDebounce.
func New(dir string, debounce time.Duration, handler EventHandler, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		handler:  handler,
		logger:   logger,
		watcher:  fw,
	}, nil
}

// Start blocks until ctx is done, waiting for the file being handled to
// finish before returning
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info().
		Str("dir", w.dir).
		Dur("debounce", w.debounce).
		Msg("File watcher started")

	queue := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for path := range queue {
			w.handle(ctx, path)
		}
	}()

	stop := func() {
		close(queue)
		<-done
		w.logger.Info().Msg("File watcher stopped")
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(max(w.debounce/4, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stop()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				stop()
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.wanted(event.Name) {
				w.logger.Debug().Str("path", event.Name).Msg("Ignoring unsupported file")
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				stop()
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.debounce {
					continue
				}
				delete(pending, path)
				select {
				case queue <- path:
				case <-ctx.Done():
					stop()
					return ctx.Err()
				}
			}
		}
	}
}

// Stop closes the file watcher
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	w.logger.Info().Str("path", path).Msg("New recording detected")
	if err := w.handler(ctx, path); err != nil {
		w.logger.Error().Err(err).Str("path", path).Msg("Failed to process recording")
	}
}

// wanted reports whether path is a visible, supported audio file
func (w *Watcher) wanted(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return audio.IsSupported(path)
}
