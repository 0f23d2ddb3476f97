package capture

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorderFixture struct {
	recorder *Recorder
	store    *memStore
	context  *fakeContext
	source   *seqSource
	observer *recordingObserver
}

func newRecorderFixture(t *testing.T, annotate bool) *recorderFixture {
	t.Helper()
	clock := newFakeClock()
	detector, err := NewDetector(DefaultStabilityConfig(), WithClock(clock.Now), WithSleeper(clock.Sleep))
	require.NoError(t, err)

	f := &recorderFixture{
		store: newMemStore(),
		context: &fakeContext{
			app:     domain.AppDescriptor{Name: "Safari", BundleID: "com.apple.Safari", PID: 501},
			element: &domain.UIElementDescriptor{Role: "AXButton", Title: "Reload"},
			windows: []domain.WindowDescriptor{{Title: "GitHub", OwnerName: "Safari"}},
			apps:    []domain.AppDescriptor{{Name: "Safari", PID: 501}, {Name: "Slack", PID: 777}},
		},
		source: &seqSource{frame: func(tick int) ([]byte, error) {
			if tick == 0 {
				return []byte("before"), nil
			}
			return []byte("after"), nil
		}},
		observer: &recordingObserver{},
	}

	opts := RecorderOptions{
		Screens:  f.source,
		Context:  f.context,
		Detector: detector,
		Sink:     f.store,
		Observer: f.observer,
		Clock:    clock.Now,
		NewID:    func() string { return "evt-1" },
	}
	if annotate {
		opts.Annotator = prefixAnnotator{}
	}
	f.recorder, err = NewRecorder(opts)
	require.NoError(t, err)
	return f
}

func TestNewRecorder_RequiresCollaborators(t *testing.T) {
	_, err := NewRecorder(RecorderOptions{})
	assert.Error(t, err)
}

func TestRecorder_Record_PersistsEvent(t *testing.T) {
	f := newRecorderFixture(t, true)
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

	key, err := f.recorder.Record(context.Background(), "s1", Click{
		Position:  domain.Point{X: 100, Y: 200},
		Modifiers: []string{"cmd", "shift"},
		At:        at,
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", key.SessionID)

	writes := f.store.written()
	require.Len(t, writes, 1)
	w := writes[0]

	assert.Equal(t, "evt-1", w.event.ID)
	assert.True(t, w.event.Timestamp.Equal(at))
	assert.Equal(t, domain.Point{X: 100, Y: 200}, w.event.Position)
	assert.Equal(t, "Safari", w.event.ActiveApp.Name)
	assert.Equal(t, "Reload", w.event.ClickedElement.Title)
	assert.Len(t, w.event.RunningApps, 2)
	assert.Equal(t, []string{"cmd", "shift"}, w.event.Modifiers)

	assert.Equal(t, []byte("marked:before"), w.before, "baseline is annotated")
	assert.Equal(t, []byte("after"), w.after, "after image is never annotated")

	outcomes := f.observer.all()
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Recorded)
	assert.True(t, outcomes[0].Stable)
}

func TestRecorder_Record_AnnotatorDisabledPassesBaseline(t *testing.T) {
	f := newRecorderFixture(t, false)

	_, err := f.recorder.Record(context.Background(), "s1", Click{Position: domain.Point{X: 1, Y: 1}})
	require.NoError(t, err)

	assert.Equal(t, []byte("before"), f.store.written()[0].before)
}

func TestRecorder_Record_ActiveAppFailureDropsEvent(t *testing.T) {
	f := newRecorderFixture(t, false)
	f.context.appErr = errors.New("accessibility denied")

	_, err := f.recorder.Record(context.Background(), "s1", Click{})

	assert.ErrorIs(t, err, ErrCaptureFailure)
	assert.Empty(t, f.store.written())
	outcomes := f.observer.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonNoActiveApp, outcomes[0].Reason)
}

func TestRecorder_Record_OptionalContextFailuresTolerated(t *testing.T) {
	f := newRecorderFixture(t, false)
	f.context.elementErr = errors.New("no element")
	f.context.windowsErr = errors.New("no windows")
	f.context.appsErr = errors.New("no apps")

	_, err := f.recorder.Record(context.Background(), "s1", Click{})
	require.NoError(t, err)

	w := f.store.written()[0]
	assert.Nil(t, w.event.ClickedElement)
	assert.Empty(t, w.event.Windows)
	assert.NotNil(t, w.event.Windows, "empty lists serialize as [] not null")
	assert.Empty(t, w.event.RunningApps)
	assert.Equal(t, 3, f.observer.all()[0].FieldFailures)
}

func TestRecorder_Record_NonFiniteWindowDropped(t *testing.T) {
	f := newRecorderFixture(t, false)
	f.context.windows = []domain.WindowDescriptor{
		{Title: "Broken", OwnerName: "Finder", Bounds: domain.Rect{X: math.NaN(), Width: math.Inf(1)}},
		{Title: "GitHub", OwnerName: "Safari", Bounds: domain.Rect{Width: 800, Height: 600}},
	}

	_, err := f.recorder.Record(context.Background(), "s1", Click{})
	require.NoError(t, err)

	w := f.store.written()[0]
	require.Len(t, w.event.Windows, 1)
	assert.Equal(t, "GitHub", w.event.Windows[0].Title)
	assert.Equal(t, 1, f.observer.all()[0].FieldFailures)
}

func TestRecorder_Record_EmptyElementOmitted(t *testing.T) {
	f := newRecorderFixture(t, false)
	f.context.element = &domain.UIElementDescriptor{}

	_, err := f.recorder.Record(context.Background(), "s1", Click{})
	require.NoError(t, err)

	assert.Nil(t, f.store.written()[0].event.ClickedElement)
}

func TestRecorder_Record_BaselineFailureStoresAbsentBefore(t *testing.T) {
	f := newRecorderFixture(t, true)
	f.source.frame = func(tick int) ([]byte, error) {
		if tick == 0 {
			return nil, errors.New("screen recording denied")
		}
		return []byte("after"), nil
	}

	_, err := f.recorder.Record(context.Background(), "s1", Click{})
	require.NoError(t, err)

	w := f.store.written()[0]
	assert.Nil(t, w.before)
	assert.Equal(t, []byte("after"), w.after)
}

func TestRecorder_Complete_CancelledContextDropsEvent(t *testing.T) {
	f := newRecorderFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())

	p, err := f.recorder.Begin(ctx, Click{})
	require.NoError(t, err)

	cancel()
	_, err = f.recorder.Complete(ctx, "s1", p)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.written())
	assert.Equal(t, ReasonSessionEnded, f.observer.all()[0].Reason)
}

func TestRecorder_Complete_StorageFailureReported(t *testing.T) {
	f := newRecorderFixture(t, false)
	f.store.writeErr = errors.New("disk full")

	_, err := f.recorder.Record(context.Background(), "s1", Click{})

	assert.Error(t, err)
	assert.Equal(t, ReasonStorage, f.observer.all()[0].Reason)
}
