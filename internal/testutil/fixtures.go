package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/alexanderramin/clicktrail/internal/store"
	"github.com/google/uuid"
)

// ReportOption customizes a report built by NewTestReport.
type ReportOption func(*domain.UsageReport)

func WithEntries(entries ...domain.AppUsageEntry) ReportOption {
	return func(r *domain.UsageReport) {
		r.Entries = entries
	}
}

func WithCreatedAt(t time.Time) ReportOption {
	return func(r *domain.UsageReport) {
		r.CreatedAt = t
	}
}

func WithModel(provider, model string) ReportOption {
	return func(r *domain.UsageReport) {
		r.Provider = provider
		r.Model = model
	}
}

func NewTestReport(sessionID string, opts ...ReportOption) *domain.UsageReport {
	r := &domain.UsageReport{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Provider:   "openai",
		Model:      "gpt-test",
		ChunkSize:  10,
		EventCount: 3,
		ChunkCount: 1,
		Entries: []domain.AppUsageEntry{
			{AppName: "Safari", SecondsUsed: 20, Chunks: []int{0}},
			{AppName: "Mail", SecondsUsed: 5, Chunks: []int{0}},
		},
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewTestEvent returns a click event in app at the given time.
func NewTestEvent(app string, at time.Time) domain.ClickEvent {
	return domain.ClickEvent{
		ID:          uuid.New().String(),
		Timestamp:   at,
		Position:    domain.Point{X: 100, Y: 200},
		ActiveApp:   domain.AppDescriptor{Name: app, PID: 1},
		Windows:     []domain.WindowDescriptor{},
		RunningApps: []domain.AppDescriptor{},
		Modifiers:   []string{},
	}
}

// PNG encodes a solid w x h image.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 80, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

// SeedSession opens a session in st, writes n events spaced 5s apart
// alternating between the given apps, and seals it.
func SeedSession(t *testing.T, st *store.Store, n int, apps ...string) domain.Session {
	t.Helper()
	if len(apps) == 0 {
		apps = []string{"Safari"}
	}
	ctx := context.Background()
	sess, err := st.StartSession(ctx)
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}
	img := PNG(t, 8, 8)
	base := sess.StartedAt
	for i := 0; i < n; i++ {
		ev := NewTestEvent(apps[i%len(apps)], base.Add(time.Duration(i)*5*time.Second))
		if _, err := st.Write(ctx, sess.ID, ev, img, img); err != nil {
			t.Fatalf("writing event %d: %v", i, err)
		}
	}
	sealed, err := st.EndSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ending session: %v", err)
	}
	if sealed.EventCount != n {
		t.Fatalf("seeded %d events, store counted %d", n, sealed.EventCount)
	}
	return sealed
}
