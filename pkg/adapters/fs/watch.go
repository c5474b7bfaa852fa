package fs

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/mpospelov/chewy/pkg/core"
)

// Watch streams document changes of an index until ctx is done. The channel
// is closed when watching stops.
func (s *Store) Watch(ctx context.Context, index string) (<-chan core.Event, error) {
	ok, err := s.IndexExists(ctx, index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrIndexNotFound, index)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Join(s.indexDir(index), docsDir)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch index %s: %w", index, err)
	}

	events := make(chan core.Event)
	s.addWatcher(1)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(events)
		defer s.addWatcher(-1)
		defer watcher.Close()
		return s.watchLoop(ctx, index, watcher, events)
	}, lifecycle.WithErrorHandler(func(err error) {
		s.handleWatchError(fmt.Errorf("watcher panic: %w", err))
	}))

	return events, nil
}

func (s *Store) watchLoop(ctx context.Context, index string, watcher *fsnotify.Watcher, events chan<- core.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			e, ok := mapEvent(index, event)
			if !ok {
				continue
			}
			if s.config.Logger != nil {
				s.config.Logger.Debug("document event", "index", index, "id", e.ID, "type", e.Type)
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return nil
			}

		case wErr, ok := <-watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			s.handleWatchError(wErr)
		}
	}
}

func (s *Store) handleWatchError(err error) {
	if s.config.Logger != nil {
		s.config.Logger.Error("fsnotify error", "error", err)
	}
	if s.config.ErrorHandler != nil {
		s.config.ErrorHandler(err)
	}
}

// mapEvent converts a filesystem event on a document file. Temp files of
// atomic writes are ignored; their rename shows up as a Create.
func mapEvent(index string, event fsnotify.Event) (core.Event, bool) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, TempFilePrefix) || filepath.Ext(name) != docExt {
		return core.Event{}, false
	}
	id, err := url.PathUnescape(strings.TrimSuffix(name, docExt))
	if err != nil {
		return core.Event{}, false
	}

	var t core.EventType
	switch {
	case event.Has(fsnotify.Create):
		t = core.EventCreate
	case event.Has(fsnotify.Write):
		t = core.EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		t = core.EventDelete
	default:
		return core.Event{}, false
	}
	return core.Event{Type: t, Index: index, ID: id, Timestamp: time.Now().Unix()}, true
}
