package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/alexanderramin/clicktrail/internal/domain"
)

// StartSession creates a new session directory and opens it for writes.
// Session ids have second precision; a start within the same second as an
// existing session is pushed forward until the directory name is free.
func (s *Store) StartSession(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.clock().UTC().Truncate(time.Second)
	var id string
	for {
		id = domain.NewSessionID(started, s.machineID)
		err := os.Mkdir(s.sessionDir(id), 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return domain.Session{}, fmt.Errorf("%w: creating session %s: %v", ErrStorage, id, err)
		}
		started = started.Add(time.Second)
	}

	meta := sessionFile{ID: id, MachineID: s.machineID, StartedAt: started}
	if err := s.writeSessionFile(meta); err != nil {
		_ = os.Remove(s.sessionDir(id))
		return domain.Session{}, err
	}

	s.open[id] = &openSession{session: meta, reserved: make(map[string]bool)}
	s.logger.Info("session started", "session", id)
	return meta.toDomain(0), nil
}

// EndSession seals an open session. It waits for writes that already hold a
// key to land, then records the end time. Later writes fail with
// ErrSessionSealed.
func (s *Store) EndSession(ctx context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	open, ok := s.open[id]
	if ok {
		delete(s.open, id)
	}
	s.mu.Unlock()
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %s", ErrSessionSealed, id)
	}

	open.writes.Wait()

	ended := s.clock().UTC()
	meta := open.session
	meta.EndedAt = &ended
	if err := s.writeSessionFile(meta); err != nil {
		return domain.Session{}, err
	}

	count, err := s.countEvents(id)
	if err != nil {
		return domain.Session{}, err
	}
	s.logger.Info("session sealed", "session", id, "events", count)
	return meta.toDomain(count), nil
}

// Session loads one session with its event count.
func (s *Store) Session(ctx context.Context, id string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	meta, err := s.readSessionFile(id)
	if err != nil {
		return domain.Session{}, err
	}
	count, err := s.countEvents(id)
	if err != nil {
		return domain.Session{}, err
	}
	return meta.toDomain(count), nil
}

// EnumerateSessions lists every session under the data root, oldest first.
// Directories that are not sessions are skipped.
func (s *Store) EnumerateSessions(ctx context.Context) ([]domain.Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: reading data root: %v", ErrStorage, err)
	}

	sessions := make([]domain.Session, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		session, err := s.Session(ctx, entry.Name())
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].StartedAt.Equal(sessions[j].StartedAt) {
			return sessions[i].StartedAt.Before(sessions[j].StartedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

func (s *Store) writeSessionFile(meta sessionFile) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding session %s: %v", ErrStorage, meta.ID, err)
	}
	if err := writeFileAtomic(filepath.Join(s.sessionDir(meta.ID), sessionFileName), data); err != nil {
		return fmt.Errorf("%w: writing session %s: %v", ErrStorage, meta.ID, err)
	}
	return nil
}

// readSessionFile loads session.json. Sessions written without one fall back
// to the start time and machine id encoded in the directory name.
func (s *Store) readSessionFile(id string) (sessionFile, error) {
	dir := s.sessionDir(id)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return sessionFile{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	data, err := os.ReadFile(filepath.Join(dir, sessionFileName))
	if errors.Is(err, os.ErrNotExist) {
		started, machine, perr := domain.ParseSessionID(id)
		if perr != nil {
			return sessionFile{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return sessionFile{ID: id, MachineID: machine, StartedAt: started}, nil
	}
	if err != nil {
		return sessionFile{}, fmt.Errorf("%w: reading session %s: %v", ErrStorage, id, err)
	}

	var meta sessionFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return sessionFile{}, fmt.Errorf("%w: decoding session %s: %v", ErrStorage, id, err)
	}
	if meta.ID == "" {
		meta.ID = id
	}
	return meta, nil
}

func (s *Store) countEvents(id string) (int, error) {
	entries, err := os.ReadDir(s.sessionDir(id))
	if err != nil {
		return 0, fmt.Errorf("%w: reading session %s: %v", ErrStorage, id, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && domain.IsMetadataName(e.Name()) {
			n++
		}
	}
	return n, nil
}

func (f sessionFile) toDomain(events int) domain.Session {
	return domain.Session{
		ID:         f.ID,
		MachineID:  f.MachineID,
		StartedAt:  f.StartedAt,
		EndedAt:    f.EndedAt,
		EventCount: events,
	}
}
