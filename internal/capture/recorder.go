package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// RecorderOptions wires a Recorder. Annotator, Observer, Logger, Clock and
// NewID are optional.
type RecorderOptions struct {
	Screens   ScreenshotSource
	Context   ContextProvider
	Detector  *Detector
	Sink      EventSink
	Annotator Annotator
	Observer  Observer
	Logger    *slog.Logger
	Clock     func() time.Time
	NewID     func() string
}

// Recorder captures, settles and persists click events. It performs no
// network access.
type Recorder struct {
	screens   ScreenshotSource
	provider  ContextProvider
	detector  *Detector
	sink      EventSink
	annotator Annotator
	observer  Observer
	logger    *slog.Logger
	clock     func() time.Time
	newID     func() string
}

func NewRecorder(opts RecorderOptions) (*Recorder, error) {
	if opts.Screens == nil {
		return nil, errors.New("recorder requires a screenshot source")
	}
	if opts.Context == nil {
		return nil, errors.New("recorder requires a context provider")
	}
	if opts.Detector == nil {
		return nil, errors.New("recorder requires a stability detector")
	}
	if opts.Sink == nil {
		return nil, errors.New("recorder requires an event sink")
	}

	r := &Recorder{
		screens:   opts.Screens,
		provider:  opts.Context,
		detector:  opts.Detector,
		sink:      opts.Sink,
		annotator: opts.Annotator,
		observer:  opts.Observer,
		logger:    opts.Logger,
		clock:     opts.Clock,
		newID:     opts.NewID,
	}
	if r.observer == nil {
		r.observer = NoopObserver{}
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.newID == nil {
		r.newID = func() string { return uuid.New().String() }
	}
	return r, nil
}

// Pending holds the synchronous part of a click: the baseline image and the
// context gathered at click time.
type Pending struct {
	click       Click
	at          time.Time
	before      []byte
	app         domain.AppDescriptor
	element     *domain.UIElementDescriptor
	windows     []domain.WindowDescriptor
	runningApps []domain.AppDescriptor
	failures    int
}

// Begin captures the baseline screenshot and the click context. It fails only
// when the active application cannot be determined; every other capture
// problem is logged and the affected field left empty.
func (r *Recorder) Begin(ctx context.Context, click Click) (*Pending, error) {
	p := &Pending{click: click, at: click.At}
	if p.at.IsZero() {
		p.at = r.clock()
	}

	var fieldErrs *multierror.Error

	before, err := r.screens.Capture(ctx)
	if err != nil {
		fieldErrs = multierror.Append(fieldErrs, fmt.Errorf("baseline screenshot: %w", err))
	} else {
		p.before = before
	}

	app, err := r.provider.ActiveApp(ctx)
	if err != nil {
		r.logger.Warn("click dropped: active application unavailable", "error", err, "x", click.Position.X, "y", click.Position.Y)
		r.observer.OnEvent(EventOutcome{Reason: ReasonNoActiveApp, FieldFailures: errorCount(fieldErrs)})
		return nil, fmt.Errorf("%w: active app: %v", ErrCaptureFailure, err)
	}
	p.app = app

	if el, err := r.provider.ElementAt(ctx, click.Position); err != nil {
		fieldErrs = multierror.Append(fieldErrs, fmt.Errorf("clicked element: %w", err))
	} else if el != nil && !el.IsEmpty() {
		p.element = el
	}

	if windows, err := r.provider.Windows(ctx); err != nil {
		fieldErrs = multierror.Append(fieldErrs, fmt.Errorf("windows: %w", err))
	} else {
		p.windows = make([]domain.WindowDescriptor, 0, len(windows))
		for _, w := range windows {
			if !w.Bounds.IsFinite() {
				fieldErrs = multierror.Append(fieldErrs, fmt.Errorf("window %q: non-finite bounds", domain.CoalesceStr(w.Title, w.OwnerName)))
				continue
			}
			p.windows = append(p.windows, w)
		}
	}

	if apps, err := r.provider.RunningApps(ctx); err != nil {
		fieldErrs = multierror.Append(fieldErrs, fmt.Errorf("running apps: %w", err))
	} else {
		p.runningApps = apps
	}

	if err := fieldErrs.ErrorOrNil(); err != nil {
		p.failures = errorCount(fieldErrs)
		r.logger.Warn("partial click context", "app", app.Name, "failures", p.failures, "error", err)
	}
	return p, nil
}

// Complete waits for the screen to settle, builds the event, annotates the
// baseline and writes everything to sessionID. A cancelled ctx drops the event
// without writing.
func (r *Recorder) Complete(ctx context.Context, sessionID string, p *Pending) (domain.ArtifactKey, error) {
	settled, err := r.detector.Wait(ctx, r.screens, p.before)
	if err != nil {
		r.logger.Info("click dropped: session ended during stability wait", "session", sessionID, "app", p.app.Name)
		r.observer.OnEvent(EventOutcome{Reason: ReasonSessionEnded, FieldFailures: p.failures})
		return domain.ArtifactKey{}, err
	}
	if !settled.Stable {
		r.logger.Debug("stability timeout, using last frame",
			"session", sessionID, "samples", settled.Samples, "failures", settled.Failures, "elapsed_ms", settled.Elapsed.Milliseconds())
	}

	event := domain.ClickEvent{
		ID:             r.newID(),
		Timestamp:      p.at.UTC(),
		Position:       p.click.Position,
		ActiveApp:      p.app,
		ClickedElement: p.element,
		Windows:        nonNil(p.windows),
		RunningApps:    nonNil(p.runningApps),
		Modifiers:      nonNil(p.click.Modifiers),
	}

	before := p.before
	if r.annotator != nil && before != nil {
		marked, err := r.annotator.Annotate(before, p.click.Position)
		if err != nil {
			r.logger.Warn("click marker failed, keeping plain baseline", "error", err)
			p.failures++
		} else {
			before = marked
		}
	}

	if err := ctx.Err(); err != nil {
		r.observer.OnEvent(EventOutcome{Reason: ReasonSessionEnded, StabilityWait: settled.Elapsed, FieldFailures: p.failures})
		return domain.ArtifactKey{}, err
	}

	key, err := r.sink.Write(ctx, sessionID, event, before, settled.Image)
	if err != nil {
		r.logger.Error("click not persisted", "session", sessionID, "event", event.ID, "error", err)
		r.observer.OnEvent(EventOutcome{Reason: ReasonStorage, Stable: settled.Stable, StabilityWait: settled.Elapsed, FieldFailures: p.failures})
		return domain.ArtifactKey{}, err
	}

	r.logger.Debug("click recorded", "key", key.String(), "app", event.ActiveApp.Name, "stable", settled.Stable)
	r.observer.OnEvent(EventOutcome{
		Recorded:      true,
		Reason:        ReasonRecorded,
		Stable:        settled.Stable,
		StabilityWait: settled.Elapsed,
		FieldFailures: p.failures,
	})
	return key, nil
}

// Record runs Begin and Complete back to back.
func (r *Recorder) Record(ctx context.Context, sessionID string, click Click) (domain.ArtifactKey, error) {
	p, err := r.Begin(ctx, click)
	if err != nil {
		return domain.ArtifactKey{}, err
	}
	return r.Complete(ctx, sessionID, p)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func errorCount(errs *multierror.Error) int {
	if errs == nil {
		return 0
	}
	return len(errs.Errors)
}
