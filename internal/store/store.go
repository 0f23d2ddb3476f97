// Package store persists monitoring sessions on the local filesystem.
//
// Layout:
//
//	<root>/machine-id
//	<root>/<session-id>/session.json
//	<root>/<session-id>/<event-ts>_metadata.json
//	<root>/<session-id>/<event-ts>_before.png
//	<root>/<session-id>/<event-ts>_after.png
//
// Images are written before metadata and every file goes through a temp file
// and rename, so a visible metadata file is always complete.
package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStorage wraps any filesystem failure.
	ErrStorage = errors.New("storage failure")

	// ErrSessionSealed is returned for writes to a session that is sealed
	// or was not opened by this store.
	ErrSessionSealed = errors.New("session is sealed or not open")

	ErrSessionNotFound = errors.New("session not found")

	// ErrIntegrity marks a session whose artifacts are incomplete.
	ErrIntegrity = errors.New("session integrity check failed")

	ErrInvalidEvent = errors.New("invalid event")
)

const (
	sessionFileName   = "session.json"
	machineIDFileName = "machine-id"
)

// Store is a filesystem session store. It is safe for concurrent use.
type Store struct {
	root      string
	machineID string
	logger    *slog.Logger
	clock     func() time.Time

	mu   sync.Mutex
	open map[string]*openSession
}

type openSession struct {
	session  sessionFile
	reserved map[string]bool
	writes   sync.WaitGroup
}

// sessionFile is the on-disk form of session.json.
type sessionFile struct {
	ID        string     `json:"id"`
	MachineID string     `json:"machineId"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// Open prepares root and loads, or creates, the persistent machine id.
func Open(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty data root", ErrStorage)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating data root: %v", ErrStorage, err)
	}

	s := &Store{
		root:   root,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  time.Now,
		open:   make(map[string]*openSession),
	}
	for _, opt := range opts {
		opt(s)
	}

	id, err := loadMachineID(root)
	if err != nil {
		return nil, err
	}
	s.machineID = id
	return s, nil
}

func (s *Store) Root() string      { return s.root }
func (s *Store) MachineID() string { return s.machineID }

func (s *Store) sessionDir(id string) string {
	return filepath.Join(s.root, id)
}

func loadMachineID(root string) (string, error) {
	path := filepath.Join(root, machineIDFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: reading machine id: %v", ErrStorage, err)
	}

	id := uuid.NewString()
	if err := writeFileAtomic(path, []byte(id+"\n")); err != nil {
		return "", fmt.Errorf("%w: writing machine id: %v", ErrStorage, err)
	}
	return id, nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir, name := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
