package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexanderramin/clicktrail/internal/domain"
)

// fakeClock advances only when the detector sleeps.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return ctx.Err()
}

// seqSource returns frame(tick) for successive calls.
type seqSource struct {
	mu    sync.Mutex
	tick  int
	frame func(tick int) ([]byte, error)
}

func (s *seqSource) Capture(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tick
	s.tick++
	return s.frame(t)
}

// slowSource wraps a seqSource and advances clock by latency on every capture.
type slowSource struct {
	*seqSource
	clock   *fakeClock
	latency time.Duration
}

func (s *slowSource) Capture(ctx context.Context) ([]byte, error) {
	s.clock.now = s.clock.now.Add(s.latency)
	return s.seqSource.Capture(ctx)
}

// blockingSource hangs until its context is done.
type blockingSource struct{}

func (blockingSource) Capture(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *seqSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// settlesAfter returns distinct frames before tick k and one fixed frame from k on.
func settlesAfter(k int) func(int) ([]byte, error) {
	return func(tick int) ([]byte, error) {
		if tick < k {
			return []byte(fmt.Sprintf("frame-%d", tick)), nil
		}
		return []byte("settled"), nil
	}
}

func neverSettles(tick int) ([]byte, error) {
	return []byte(fmt.Sprintf("frame-%d", tick)), nil
}

type fakeContext struct {
	app        domain.AppDescriptor
	appErr     error
	element    *domain.UIElementDescriptor
	elementErr error
	windows    []domain.WindowDescriptor
	windowsErr error
	apps       []domain.AppDescriptor
	appsErr    error
}

func (f *fakeContext) ActiveApp(context.Context) (domain.AppDescriptor, error) {
	return f.app, f.appErr
}

func (f *fakeContext) ElementAt(context.Context, domain.Point) (*domain.UIElementDescriptor, error) {
	return f.element, f.elementErr
}

func (f *fakeContext) Windows(context.Context) ([]domain.WindowDescriptor, error) {
	return f.windows, f.windowsErr
}

func (f *fakeContext) RunningApps(context.Context) ([]domain.AppDescriptor, error) {
	return f.apps, f.appsErr
}

type written struct {
	sessionID string
	event     domain.ClickEvent
	before    []byte
	after     []byte
}

// memStore is an in-memory SessionStore.
type memStore struct {
	mu       sync.Mutex
	open     string
	sealed   map[string]bool
	writes   []written
	writeErr error
	seq      int
}

func newMemStore() *memStore {
	return &memStore{sealed: map[string]bool{}}
}

func (m *memStore) StartSession(context.Context) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.open = fmt.Sprintf("session-%d", m.seq)
	return domain.Session{ID: m.open, StartedAt: time.Now()}, nil
}

func (m *memStore) EndSession(_ context.Context, id string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.open {
		return domain.Session{}, errors.New("not open")
	}
	m.sealed[id] = true
	m.open = ""
	now := time.Now()
	return domain.Session{ID: id, EndedAt: &now}, nil
}

func (m *memStore) Write(_ context.Context, sessionID string, ev domain.ClickEvent, before, after []byte) (domain.ArtifactKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return domain.ArtifactKey{}, m.writeErr
	}
	if m.sealed[sessionID] {
		return domain.ArtifactKey{}, errors.New("sealed")
	}
	m.writes = append(m.writes, written{sessionID: sessionID, event: ev, before: before, after: after})
	return domain.NewArtifactKey(sessionID, ev.Timestamp), nil
}

func (m *memStore) written() []written {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]written(nil), m.writes...)
}

// prefixAnnotator marks images by prefixing bytes.
type prefixAnnotator struct{}

func (prefixAnnotator) Annotate(image []byte, _ domain.Point) ([]byte, error) {
	return append([]byte("marked:"), image...), nil
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []EventOutcome
}

func (o *recordingObserver) OnEvent(e EventOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, e)
}

func (o *recordingObserver) all() []EventOutcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]EventOutcome(nil), o.outcomes...)
}
