package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/hashicorp/go-multierror"
)

// EventRecord is one persisted event and the paths of its images. A path is
// empty when that image is absent.
type EventRecord struct {
	Key        domain.ArtifactKey
	Event      domain.ClickEvent
	BeforePath string
	AfterPath  string
}

// Write persists an event into an open session: before image, after image,
// then metadata. Nil images are skipped. The returned key is unique within
// the session even when timestamps collide.
func (s *Store) Write(ctx context.Context, sessionID string, event domain.ClickEvent, before, after []byte) (domain.ArtifactKey, error) {
	if event.ID == "" {
		return domain.ArtifactKey{}, fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	}
	if err := ctx.Err(); err != nil {
		return domain.ArtifactKey{}, err
	}

	key, open, err := s.reserve(sessionID, event)
	if err != nil {
		return domain.ArtifactKey{}, err
	}
	defer open.writes.Done()

	dir := s.sessionDir(sessionID)
	if before != nil {
		if err := writeFileAtomic(filepath.Join(dir, key.BeforeName()), before); err != nil {
			return domain.ArtifactKey{}, fmt.Errorf("%w: writing %s: %v", ErrStorage, key.BeforeName(), err)
		}
	}
	if after != nil {
		if err := writeFileAtomic(filepath.Join(dir, key.AfterName()), after); err != nil {
			return domain.ArtifactKey{}, fmt.Errorf("%w: writing %s: %v", ErrStorage, key.AfterName(), err)
		}
	}

	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return domain.ArtifactKey{}, fmt.Errorf("%w: encoding event %s: %v", ErrStorage, event.ID, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, key.MetadataName()), data); err != nil {
		return domain.ArtifactKey{}, fmt.Errorf("%w: writing %s: %v", ErrStorage, key.MetadataName(), err)
	}

	if before == nil || after == nil {
		s.logger.Warn("event stored without all images", "key", key.String(), "before", before != nil, "after", after != nil)
	}
	return key, nil
}

// reserve claims a unique key in an open session and registers the write so
// EndSession waits for it.
func (s *Store) reserve(sessionID string, event domain.ClickEvent) (domain.ArtifactKey, *openSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open, ok := s.open[sessionID]
	if !ok {
		return domain.ArtifactKey{}, nil, fmt.Errorf("%w: %s", ErrSessionSealed, sessionID)
	}

	key := domain.NewArtifactKey(sessionID, event.Timestamp)
	for open.reserved[key.Prefix()] {
		key = key.Next()
	}
	open.reserved[key.Prefix()] = true
	open.writes.Add(1)
	return key, open, nil
}

// ListEvents returns every event of a session ordered by key.
func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]EventRecord, error) {
	dir := s.sessionDir(sessionID)
	if _, err := s.readSessionFile(sessionID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading session %s: %v", ErrStorage, sessionID, err)
	}

	records := make([]EventRecord, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !domain.IsMetadataName(entry.Name()) {
			continue
		}
		rec, err := s.readRecord(sessionID, entry.Name())
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Key.Less(records[j].Key) })
	return records, nil
}

func (s *Store) readRecord(sessionID, metadataName string) (EventRecord, error) {
	key, err := domain.ParseArtifactKey(sessionID, metadataName)
	if err != nil {
		return EventRecord{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	dir := s.sessionDir(sessionID)
	data, err := os.ReadFile(filepath.Join(dir, metadataName))
	if err != nil {
		return EventRecord{}, fmt.Errorf("%w: reading %s: %v", ErrStorage, metadataName, err)
	}
	var event domain.ClickEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return EventRecord{}, fmt.Errorf("%w: decoding %s: %v", ErrStorage, metadataName, err)
	}

	rec := EventRecord{Key: key, Event: event}
	if p := filepath.Join(dir, key.BeforeName()); fileExists(p) {
		rec.BeforePath = p
	}
	if p := filepath.Join(dir, key.AfterName()); fileExists(p) {
		rec.AfterPath = p
	}
	return rec, nil
}

// Verify checks that every event in the session has both images, a readable
// metadata file with an id, and that no image is orphaned. All problems are
// reported together, wrapped in ErrIntegrity.
func (s *Store) Verify(ctx context.Context, sessionID string) error {
	if _, err := s.readSessionFile(sessionID); err != nil {
		return err
	}
	entries, err := os.ReadDir(s.sessionDir(sessionID))
	if err != nil {
		return fmt.Errorf("%w: reading session %s: %v", ErrStorage, sessionID, err)
	}

	var problems *multierror.Error
	prefixes := make(map[string]bool)
	var images []string

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		switch {
		case entry.IsDir(), name == sessionFileName, strings.HasPrefix(name, "."):
			continue
		case domain.IsMetadataName(name):
			rec, err := s.readRecord(sessionID, name)
			if err != nil {
				problems = multierror.Append(problems, err)
				continue
			}
			prefixes[rec.Key.Prefix()] = true
			if rec.Event.ID == "" {
				problems = multierror.Append(problems, fmt.Errorf("%s: missing event id", name))
			}
			if rec.BeforePath == "" {
				problems = multierror.Append(problems, fmt.Errorf("%s: missing before image", rec.Key.Prefix()))
			}
			if rec.AfterPath == "" {
				problems = multierror.Append(problems, fmt.Errorf("%s: missing after image", rec.Key.Prefix()))
			}
		case strings.HasSuffix(name, ".png"):
			images = append(images, name)
		}
	}

	for _, name := range images {
		prefix := strings.TrimSuffix(strings.TrimSuffix(name, "_before.png"), "_after.png")
		if !prefixes[prefix] {
			problems = multierror.Append(problems, fmt.Errorf("%s: image without metadata", name))
		}
	}

	if err := problems.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: session %s: %w", ErrIntegrity, sessionID, err)
	}
	return nil
}
