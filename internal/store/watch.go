package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/fsnotify/fsnotify"
)

// Watch streams events as they are persisted into sessionID. Metadata lands
// by rename, so each Create of a metadata name is one finished event. The
// channel closes when ctx is done or the watcher fails.
func (s *Store) Watch(ctx context.Context, sessionID string) (<-chan EventRecord, error) {
	if _, err := s.readSessionFile(sessionID); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: creating watcher: %v", ErrStorage, err)
	}
	if err := fsw.Add(s.sessionDir(sessionID)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("%w: watching session %s: %v", ErrStorage, sessionID, err)
	}

	out := make(chan EventRecord, 16)
	go func() {
		defer close(out)
		defer fsw.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) {
					continue
				}
				name := filepath.Base(ev.Name)
				if !domain.IsMetadataName(name) {
					continue
				}
				rec, err := s.readRecord(sessionID, name)
				if err != nil {
					s.logger.Warn("watch: unreadable event", "session", sessionID, "file", name, "error", err)
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				s.logger.Warn("watch error", "session", sessionID, "error", err)
			}
		}
	}()
	return out, nil
}
