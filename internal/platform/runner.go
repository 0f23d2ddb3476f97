// Package platform adapts external desktop helpers to the capture ports.
// Screenshots and UI context come from configured commands, so the same
// binary runs against screencapture on macOS, grim on Wayland, or a custom
// accessibility helper.
package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrNotConfigured is returned when a helper command is empty.
var ErrNotConfigured = errors.New("platform helper not configured")

// Runner executes argv and returns its stdout.
type Runner func(ctx context.Context, argv []string) ([]byte, error)

// ExecRunner runs argv as a child process. Stderr is folded into the error
// on failure.
func ExecRunner(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, ErrNotConfigured
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return nil, fmt.Errorf("%s: %w", argv[0], err)
	}
	return stdout.Bytes(), nil
}

// runWithTimeout bounds one helper invocation.
func runWithTimeout(ctx context.Context, run Runner, timeout time.Duration, argv []string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return run(ctx, argv)
}
