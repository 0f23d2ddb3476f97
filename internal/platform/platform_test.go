package platform

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/clicktrail/internal/capture"
	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptRunner answers by subcommand, the last non-numeric argv element.
type scriptRunner struct {
	replies map[string]string
	fail    map[string]error
	calls   [][]string
}

func (r *scriptRunner) run(_ context.Context, argv []string) ([]byte, error) {
	r.calls = append(r.calls, argv)
	key := argv[len(argv)-1]
	if len(argv) >= 3 && argv[len(argv)-3] == "element-at" {
		key = "element-at"
	}
	if err, ok := r.fail[key]; ok {
		return nil, err
	}
	return []byte(r.replies[key]), nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestScreenshot_ReturnsImage(t *testing.T) {
	img := pngBytes(t)
	src := NewCommandScreenshotSource([]string{"shot"}, time.Second).WithRunner(func(context.Context, []string) ([]byte, error) {
		return img, nil
	})

	got, err := src.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestScreenshot_Failures(t *testing.T) {
	_, err := NewCommandScreenshotSource(nil, time.Second).Capture(context.Background())
	assert.ErrorIs(t, err, capture.ErrCaptureFailure)
	assert.ErrorIs(t, err, ErrNotConfigured)

	failing := NewCommandScreenshotSource([]string{"shot"}, time.Second).WithRunner(func(context.Context, []string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})
	_, err = failing.Capture(context.Background())
	assert.ErrorIs(t, err, capture.ErrCaptureFailure)

	garbage := NewCommandScreenshotSource([]string{"shot"}, time.Second).WithRunner(func(context.Context, []string) ([]byte, error) {
		return []byte("not an image"), nil
	})
	_, err = garbage.Capture(context.Background())
	assert.ErrorIs(t, err, capture.ErrCaptureFailure)
}

func TestScreenshot_TimeoutBoundsRunner(t *testing.T) {
	src := NewCommandScreenshotSource([]string{"shot"}, 10*time.Millisecond).WithRunner(func(ctx context.Context, _ []string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := src.Capture(context.Background())
	assert.ErrorIs(t, err, capture.ErrCaptureFailure)
}

func TestContextProvider_DecodesHelperOutput(t *testing.T) {
	r := &scriptRunner{replies: map[string]string{
		"active-app":   `{"name":"Safari","bundleId":"com.apple.Safari","pid":42}`,
		"element-at":   `{"role":"AXButton","title":"Reload"}`,
		"windows":      `[{"title":"Docs","ownerName":"Safari","bounds":[[0,0],[1440,900]],"layer":0}]`,
		"running-apps": `[{"name":"Safari","pid":42},{"name":"Finder","pid":7}]`,
	}}
	p := NewCommandContextProvider([]string{"helper", "--json"}, time.Second).WithRunner(r.run)
	ctx := context.Background()

	app, err := p.ActiveApp(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AppDescriptor{Name: "Safari", BundleID: "com.apple.Safari", PID: 42}, app)

	el, err := p.ElementAt(ctx, domain.Point{X: 120.5, Y: 33})
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "Reload", el.Title)
	assert.Contains(t, r.calls, []string{"helper", "--json", "element-at", "120.5", "33"})

	windows, err := p.Windows(ctx)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 1440.0, windows[0].Bounds.Width)

	apps, err := p.RunningApps(ctx)
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestContextProvider_NullElement(t *testing.T) {
	r := &scriptRunner{replies: map[string]string{"element-at": "null\n"}}
	p := NewCommandContextProvider([]string{"helper"}, time.Second).WithRunner(r.run)

	el, err := p.ElementAt(context.Background(), domain.Point{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Nil(t, el)
}

func TestContextProvider_Failures(t *testing.T) {
	r := &scriptRunner{
		replies: map[string]string{"active-app": `{"pid":1}`, "windows": "{broken"},
		fail:    map[string]error{"running-apps": errors.New("exit status 2")},
	}
	p := NewCommandContextProvider([]string{"helper"}, time.Second).WithRunner(r.run)
	ctx := context.Background()

	_, err := p.ActiveApp(ctx)
	assert.ErrorIs(t, err, capture.ErrCaptureFailure)

	_, err = p.Windows(ctx)
	assert.ErrorIs(t, err, capture.ErrCaptureFailure)

	_, err = p.RunningApps(ctx)
	assert.ErrorIs(t, err, capture.ErrCaptureFailure)

	_, err = NewCommandContextProvider(nil, 0).ActiveApp(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLineClickSource_DecodesAndSkips(t *testing.T) {
	input := strings.Join([]string{
		`{"x":10,"y":20,"modifiers":["cmd"],"at":"2026-03-04T09:30:00Z"}`,
		`garbage`,
		`{"x":5}`,
		``,
		`{"x":1.5,"y":2.5}`,
	}, "\n")
	src := NewLineClickSource(strings.NewReader(input), nil)
	fixed := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	src.clock = func() time.Time { return fixed }

	var got []capture.Click
	require.NoError(t, src.Run(context.Background(), func(c capture.Click) { got = append(got, c) }))

	require.Len(t, got, 2)
	assert.Equal(t, domain.Point{X: 10, Y: 20}, got[0].Position)
	assert.Equal(t, []string{"cmd"}, got[0].Modifiers)
	assert.Equal(t, time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC), got[0].At.UTC())
	assert.Equal(t, fixed, got[1].At)
	assert.Empty(t, got[1].Modifiers)
}

func TestLineClickSource_StopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewLineClickSource(pr, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, func(capture.Click) {}) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestExecRunner(t *testing.T) {
	out, err := ExecRunner(context.Background(), []string{"sh", "-c", "printf hello"})
	if errors.Is(err, ErrNotConfigured) {
		t.Fatal("unexpected ErrNotConfigured")
	}
	if err != nil {
		t.Skipf("sh unavailable: %v", err)
	}
	assert.Equal(t, "hello", string(out))

	_, err = ExecRunner(context.Background(), []string{"sh", "-c", "echo boom >&2; exit 3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
