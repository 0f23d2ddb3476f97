package capture

import (
	"context"
	"crypto/sha256"
	"errors"
	"time"
)

// Fingerprint is the SHA-256 digest of a screenshot's raw bytes.
type Fingerprint [sha256.Size]byte

func FingerprintOf(image []byte) Fingerprint {
	return sha256.Sum256(image)
}

// IsStable reports whether history holds at least window samples and the most
// recent window of them are identical.
func IsStable(history []Fingerprint, window int) bool {
	if window <= 0 || len(history) < window {
		return false
	}
	recent := history[len(history)-window:]
	for _, fp := range recent[1:] {
		if fp != recent[0] {
			return false
		}
	}
	return true
}

// StabilityConfig tunes the settle detection.
type StabilityConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Window   int
}

// DefaultStabilityConfig requires three identical frames sampled 100ms apart,
// giving up after one second.
func DefaultStabilityConfig() StabilityConfig {
	return StabilityConfig{
		Interval: 100 * time.Millisecond,
		Timeout:  time.Second,
		Window:   3,
	}
}

// StabilityResult is the outcome of one settle wait. Image is never nil when
// the wait was not cancelled.
type StabilityResult struct {
	Image    []byte
	Stable   bool
	Samples  int
	Failures int
	Elapsed  time.Duration
}

// Detector polls a screenshot source until the screen stops changing.
type Detector struct {
	cfg   StabilityConfig
	clock func() time.Time
	sleep func(context.Context, time.Duration) error
}

// DetectorOption customises a Detector.
type DetectorOption func(*Detector)

// WithClock replaces the wall clock, for tests.
func WithClock(clock func() time.Time) DetectorOption {
	return func(d *Detector) { d.clock = clock }
}

// WithSleeper replaces the interval sleep, for tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) DetectorOption {
	return func(d *Detector) { d.sleep = sleep }
}

func NewDetector(cfg StabilityConfig, opts ...DetectorOption) (*Detector, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("stability interval must be positive")
	}
	if cfg.Timeout < cfg.Interval {
		return nil, errors.New("stability timeout must be at least one interval")
	}
	if cfg.Window < 2 {
		return nil, errors.New("stability window must hold at least two samples")
	}
	d := &Detector{cfg: cfg, clock: time.Now, sleep: defaultSleeper}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Wait samples src until the last Window frames are identical or Timeout has
// elapsed since the first sample. Samples are taken on a fixed schedule of
// Interval ticks from the first one, so slow captures do not stretch the
// cadence; a tick that has already passed when the previous capture returns
// is skipped. Each capture is bounded by the time left before Timeout, and
// the sample at the Timeout tick itself by one Interval.
//
// On timeout the last captured frame is returned with Stable=false; if no
// frame could be captured at all, baseline is returned instead. Capture
// errors skip the tick. Only cancellation of ctx produces an error.
func (d *Detector) Wait(ctx context.Context, src ScreenshotSource, baseline []byte) (StabilityResult, error) {
	var res StabilityResult
	history := make([]Fingerprint, 0, d.cfg.Window)
	start := d.clock()
	deadline := start.Add(d.cfg.Timeout)

	for tick := 0; ; {
		if err := ctx.Err(); err != nil {
			return StabilityResult{}, err
		}

		img, err := d.capture(ctx, src, deadline)
		switch {
		case err != nil && ctx.Err() != nil:
			return StabilityResult{}, ctx.Err()
		case err != nil:
			res.Failures++
		default:
			res.Samples++
			res.Image = img
			history = append(history, FingerprintOf(img))
			if len(history) > d.cfg.Window {
				history = history[1:]
			}
			if IsStable(history, d.cfg.Window) {
				res.Stable = true
				res.Elapsed = d.clock().Sub(start)
				return res, nil
			}
		}

		now := d.clock()
		tick = nextTick(tick, now.Sub(start), d.cfg.Interval)
		next := start.Add(time.Duration(tick) * d.cfg.Interval)
		if next.After(deadline) {
			break
		}
		if wait := next.Sub(now); wait > 0 {
			if err := d.sleep(ctx, wait); err != nil {
				return StabilityResult{}, err
			}
		}
	}

	res.Elapsed = d.clock().Sub(start)
	if res.Image == nil {
		res.Image = baseline
	}
	return res, nil
}

func (d *Detector) capture(ctx context.Context, src ScreenshotSource, deadline time.Time) ([]byte, error) {
	budget := deadline.Sub(d.clock())
	if budget < d.cfg.Interval {
		budget = d.cfg.Interval
	}
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	return src.Capture(cctx)
}

// nextTick returns the first tick after tick that has not yet passed at
// elapsed. A tick landing exactly on elapsed is still due.
func nextTick(tick int, elapsed, interval time.Duration) int {
	next := tick + 1
	if due := int((elapsed + interval - 1) / interval); due > next {
		next = due
	}
	return next
}

func defaultSleeper(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
