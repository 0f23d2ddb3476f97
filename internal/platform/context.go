package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alexanderramin/clicktrail/internal/capture"
	"github.com/alexanderramin/clicktrail/internal/domain"
)

// CommandContextProvider queries a helper executable for desktop context.
// The helper takes one subcommand per query and prints JSON:
//
//	helper active-app          -> {"name":..,"bundleId":..,"pid":..}
//	helper element-at X Y      -> {"role":..,"title":..} or null
//	helper windows             -> [{"title":..,"ownerName":..,"bounds":[[x,y],[w,h]],"layer":0}]
//	helper running-apps        -> [{"name":..,"pid":..}]
type CommandContextProvider struct {
	argv    []string
	timeout time.Duration
	run     Runner
}

var _ capture.ContextProvider = (*CommandContextProvider)(nil)

func NewCommandContextProvider(argv []string, timeout time.Duration) *CommandContextProvider {
	return &CommandContextProvider{argv: argv, timeout: timeout, run: ExecRunner}
}

func (p *CommandContextProvider) WithRunner(run Runner) *CommandContextProvider {
	p.run = run
	return p
}

func (p *CommandContextProvider) ActiveApp(ctx context.Context) (domain.AppDescriptor, error) {
	var app domain.AppDescriptor
	if err := p.query(ctx, &app, "active-app"); err != nil {
		return domain.AppDescriptor{}, err
	}
	if app.Name == "" {
		return domain.AppDescriptor{}, fmt.Errorf("%w: active-app returned no name", capture.ErrCaptureFailure)
	}
	return app, nil
}

func (p *CommandContextProvider) ElementAt(ctx context.Context, pt domain.Point) (*domain.UIElementDescriptor, error) {
	var el *domain.UIElementDescriptor
	x := strconv.FormatFloat(pt.X, 'f', -1, 64)
	y := strconv.FormatFloat(pt.Y, 'f', -1, 64)
	if err := p.query(ctx, &el, "element-at", x, y); err != nil {
		return nil, err
	}
	return el, nil
}

func (p *CommandContextProvider) Windows(ctx context.Context) ([]domain.WindowDescriptor, error) {
	var windows []domain.WindowDescriptor
	if err := p.query(ctx, &windows, "windows"); err != nil {
		return nil, err
	}
	return windows, nil
}

func (p *CommandContextProvider) RunningApps(ctx context.Context) ([]domain.AppDescriptor, error) {
	var apps []domain.AppDescriptor
	if err := p.query(ctx, &apps, "running-apps"); err != nil {
		return nil, err
	}
	return apps, nil
}

func (p *CommandContextProvider) query(ctx context.Context, into any, args ...string) error {
	if len(p.argv) == 0 {
		return fmt.Errorf("%w: context helper: %w", capture.ErrCaptureFailure, ErrNotConfigured)
	}
	argv := append(append([]string(nil), p.argv...), args...)
	out, err := runWithTimeout(ctx, p.run, p.timeout, argv)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", capture.ErrCaptureFailure, args[0], err)
	}
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return fmt.Errorf("%w: %s: empty output", capture.ErrCaptureFailure, args[0])
	}
	if err := json.Unmarshal(out, into); err != nil {
		return fmt.Errorf("%w: %s: decoding output: %v", capture.ErrCaptureFailure, args[0], err)
	}
	return nil
}
