package platform

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alexanderramin/clicktrail/internal/capture"
	"github.com/alexanderramin/clicktrail/internal/domain"
)

// clickLine is one JSON line from a click listener.
type clickLine struct {
	X         *float64  `json:"x"`
	Y         *float64  `json:"y"`
	Modifiers []string  `json:"modifiers"`
	At        time.Time `json:"at"`
}

// LineClickSource reads clicks as JSON lines, e.g. from a global mouse hook
// piped into stdin. Malformed lines are logged and skipped.
type LineClickSource struct {
	r      io.Reader
	logger *slog.Logger
	clock  func() time.Time
}

func NewLineClickSource(r io.Reader, logger *slog.Logger) *LineClickSource {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LineClickSource{r: r, logger: logger, clock: time.Now}
}

// Run calls handle for every decoded click until EOF or ctx is done. The
// click time is taken on receipt when the line carries none.
func (s *LineClickSource) Run(ctx context.Context, handle func(capture.Click)) error {
	lines := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.r)
		sc.Buffer(make([]byte, 0, 4096), 1<<20)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					if err != nil {
						return fmt.Errorf("reading clicks: %w", err)
					}
				default:
				}
				return nil
			}
			n++
			click, err := s.decode(line)
			if err != nil {
				s.logger.Warn("skipping click line", "line", n, "error", err)
				continue
			}
			handle(click)
		}
	}
}

func (s *LineClickSource) decode(line []byte) (capture.Click, error) {
	var raw clickLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return capture.Click{}, err
	}
	if raw.X == nil || raw.Y == nil {
		return capture.Click{}, fmt.Errorf("missing x or y")
	}
	at := raw.At
	if at.IsZero() {
		at = s.clock()
	}
	mods := raw.Modifiers
	if mods == nil {
		mods = []string{}
	}
	return capture.Click{Position: domain.Point{X: *raw.X, Y: *raw.Y}, Modifiers: mods, At: at}, nil
}
