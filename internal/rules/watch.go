package rules

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"buddy/internal/metrics"
)

// Watch reloads the rules file whenever it changes, until ctx is done.
// onReload, if set, receives the result of every reload attempt.
func (e *Engine) Watch(ctx context.Context, onReload func(err error)) error {
	if e.path == "" {
		return errors.New("no rules file configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rules watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(e.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch rules directory: %w", err)
	}

	target := filepath.Clean(e.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				err := e.Reload()
				if err != nil {
					metrics.RuleReloads.WithLabelValues("error").Inc()
					e.logger.Error().Err(err).Str("path", e.path).Msg("rules reload failed, keeping previous rules")
				} else {
					metrics.RuleReloads.WithLabelValues("ok").Inc()
				}
				if onReload != nil {
					onReload(err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.logger.Warn().Err(err).Msg("rules watcher error")
			}
		}
	}()
	return nil
}
