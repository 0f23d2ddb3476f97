// Package capture turns clicks into recorded events: it takes the baseline
// screenshot, gathers UI context, waits for the screen to settle and hands the
// finished event to a session store.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/alexanderramin/clicktrail/internal/domain"
)

var (
	// ErrCaptureFailure indicates a screenshot or context fetch failed.
	ErrCaptureFailure = errors.New("capture failed")

	// ErrInvalidTransition indicates a monitoring command was issued in a
	// state that does not accept it.
	ErrInvalidTransition = errors.New("invalid monitoring state transition")
)

// ScreenshotSource returns a full-screen raster image as encoded bytes.
type ScreenshotSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// ContextProvider reports the desktop state around a click.
type ContextProvider interface {
	ActiveApp(ctx context.Context) (domain.AppDescriptor, error)
	ElementAt(ctx context.Context, p domain.Point) (*domain.UIElementDescriptor, error)
	Windows(ctx context.Context) ([]domain.WindowDescriptor, error)
	RunningApps(ctx context.Context) ([]domain.AppDescriptor, error)
}

// Annotator stamps a click marker onto an encoded image.
type Annotator interface {
	Annotate(image []byte, p domain.Point) ([]byte, error)
}

// EventSink persists a finished event into the named session.
type EventSink interface {
	Write(ctx context.Context, sessionID string, event domain.ClickEvent, before, after []byte) (domain.ArtifactKey, error)
}

// SessionStore opens and seals sessions in addition to accepting events.
type SessionStore interface {
	EventSink
	StartSession(ctx context.Context) (domain.Session, error)
	EndSession(ctx context.Context, sessionID string) (domain.Session, error)
}

// Click is one mouse click reported by the listener.
type Click struct {
	Position  domain.Point `json:"position"`
	Modifiers []string     `json:"modifiers"`
	At        time.Time    `json:"at"`
}

// EventOutcome describes what happened to one click.
type EventOutcome struct {
	Recorded      bool
	Reason        string
	Stable        bool
	StabilityWait time.Duration
	FieldFailures int
}

// Observer receives one outcome per handled click, for logging and metrics.
type Observer interface {
	OnEvent(outcome EventOutcome)
}

// NoopObserver discards all outcomes.
type NoopObserver struct{}

func (NoopObserver) OnEvent(EventOutcome) {}

// Drop reasons reported in EventOutcome.Reason.
const (
	ReasonRecorded     = "recorded"
	ReasonNoActiveApp  = "no_active_app"
	ReasonSessionEnded = "session_ended"
	ReasonStorage      = "storage"
)
