package platform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	// Registered for DecodeConfig.
	_ "image/jpeg"
	_ "image/png"

	"github.com/alexanderramin/clicktrail/internal/capture"
)

// CommandScreenshotSource captures the screen by running a command that
// writes one encoded image to stdout.
type CommandScreenshotSource struct {
	argv    []string
	timeout time.Duration
	run     Runner
}

var _ capture.ScreenshotSource = (*CommandScreenshotSource)(nil)

func NewCommandScreenshotSource(argv []string, timeout time.Duration) *CommandScreenshotSource {
	return &CommandScreenshotSource{argv: argv, timeout: timeout, run: ExecRunner}
}

// WithRunner swaps the process runner, for tests.
func (s *CommandScreenshotSource) WithRunner(run Runner) *CommandScreenshotSource {
	s.run = run
	return s
}

func (s *CommandScreenshotSource) Capture(ctx context.Context) ([]byte, error) {
	if len(s.argv) == 0 {
		return nil, fmt.Errorf("%w: screenshot: %w", capture.ErrCaptureFailure, ErrNotConfigured)
	}
	out, err := runWithTimeout(ctx, s.run, s.timeout, s.argv)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: screenshot: %v", capture.ErrCaptureFailure, err)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(out)); err != nil {
		return nil, fmt.Errorf("%w: screenshot output is not an image (%d bytes): %v", capture.ErrCaptureFailure, len(out), err)
	}
	return out, nil
}
