package localfiles

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
)

var _ driven.WatchableSource = (*Source)(nil)

// Watch blocks watching the source directory and invokes onChange with
// the changed path whenever a supported file is created, written or
// renamed. Returns when ctx is cancelled.
func (s *Source) Watch(ctx context.Context, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !allowedSuffixes[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			onChange(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching %s: %w", s.dir, err)
		}
	}
}
