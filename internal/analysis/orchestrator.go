package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/alexanderramin/clicktrail/internal/llm"
	"github.com/alexanderramin/clicktrail/internal/store"
)

// EventSource lists a session's events in key order.
type EventSource interface {
	ListEvents(ctx context.Context, sessionID string) ([]store.EventRecord, error)
}

// Orchestrator drives one LLM call per chunk of events and aggregates the
// answers. Chunks run strictly one after another.
type Orchestrator struct {
	events   EventSource
	client   llm.Client
	logger   *slog.Logger
	readFile func(string) ([]byte, error)
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithImageReader replaces os.ReadFile for loading stored screenshots.
func WithImageReader(read func(string) ([]byte, error)) Option {
	return func(o *Orchestrator) { o.readFile = read }
}

func NewOrchestrator(events EventSource, client llm.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		events:   events,
		client:   client,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Model reports the provider and model the orchestrator sends chunks to.
func (o *Orchestrator) Model() (llm.Provider, string) {
	return o.client.Provider(), o.client.Model()
}

// Start runs the analysis in the background and streams its events. The
// channel always ends with exactly one terminal event and is then closed.
// Callers must drain it.
func (o *Orchestrator) Start(ctx context.Context, sessionID string, opts Options) <-chan Event {
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		emit := func(ev Event) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}
		result, err := o.run(ctx, sessionID, opts, emit)
		switch {
		case err == nil:
			ch <- Event{Kind: EventDone, Progress: 1, Result: &result}
		case ctx.Err() != nil:
			ch <- Event{Kind: EventCancelled, Err: ctx.Err()}
		default:
			ch <- Event{Kind: EventFailed, Err: err}
		}
	}()
	return ch
}

// Run is the synchronous form of Start. emit may be nil.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, opts Options, emit func(Event)) (Result, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	return o.run(ctx, sessionID, opts, emit)
}

func (o *Orchestrator) run(ctx context.Context, sessionID string, opts Options, emit func(Event)) (res Result, err error) {
	phase := PhaseIdle
	enter := func(p Phase, chunk int) {
		o.logger.Debug("analysis phase", "session", sessionID, "from", phase, "to", p, "chunk", chunk)
		phase = p
		emit(Event{Kind: EventPhase, Phase: p, Chunk: chunk})
	}
	defer func() {
		if err != nil {
			failedIn := phase
			enter(PhaseFailed, -1)
			o.logger.Warn("analysis failed", "session", sessionID, "phase", failedIn, "error", err)
		}
	}()

	enter(PhaseScanning, -1)
	records, err := o.events.ListEvents(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("listing events for %s: %w", sessionID, err)
	}
	if len(records) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoEventsFound, sessionID)
	}

	enter(PhaseChunking, -1)
	chunks := Chunk(records, opts.chunkSize())
	emit(Event{Kind: EventLog, Log: fmt.Sprintf("Analyzing %d events in %d chunks with %s/%s", len(records), len(chunks), o.client.Provider(), o.client.Model())})

	var accumulated []domain.AppUsageEntry
	var prev *store.EventRecord

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		enter(PhaseBuild, i)
		prompt := BuildPrompt(chunk, prev, i, len(chunks))
		images, err := o.loadImages(chunk, opts.IncludeAfter, emit)
		if err != nil {
			return Result{}, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		emit(Event{Kind: EventLog, Chunk: i, Log: fmt.Sprintf("Chunk %d/%d prompt:\n%s", i+1, len(chunks), prompt)})

		enter(PhaseSend, i)
		resp, err := o.client.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: SystemPrompt,
			UserText:     prompt,
			Images:       images,
			Schema:       UsageSchema(),
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			return Result{}, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		emit(Event{Kind: EventLog, Chunk: i, Log: fmt.Sprintf("Chunk %d/%d response (%dms):\n%s", i+1, len(chunks), resp.LatencyMs, resp.Content)})

		enter(PhaseParse, i)
		payload, err := llm.DecodeStructured(resp.Content, validateUsage)
		if err != nil {
			return Result{}, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}

		enter(PhaseAccumulate, i)
		for _, a := range payload.Apps {
			accumulated = append(accumulated, domain.AppUsageEntry{AppName: a.AppName, SecondsUsed: a.SecondsUsed, Chunks: []int{i}})
			emit(Event{Kind: EventLog, Chunk: i, Log: fmt.Sprintf("  %s: %.1fs", a.AppName, a.SecondsUsed)})
		}

		prev = &chunk[len(chunk)-1]
		emit(Event{Kind: EventProgress, Chunk: i, Progress: float64(i+1) / float64(len(chunks))})
	}

	enter(PhaseAggregating, -1)
	entries := domain.Aggregate(accumulated)
	emit(Event{Kind: EventLog, Log: fmt.Sprintf("Total: %d apps, %.1fs", len(entries), domain.TotalSeconds(entries))})

	enter(PhaseDone, -1)
	o.logger.Info("analysis complete", "session", sessionID, "events", len(records), "chunks", len(chunks), "apps", len(entries))
	return Result{SessionID: sessionID, Entries: entries, Chunks: len(chunks), Events: len(records)}, nil
}

// loadImages prepares the wire images for a chunk. Every event must have a
// usable before image; a missing one fails the run with store.ErrIntegrity.
// After images are optional and skipped with a log line when unusable.
func (o *Orchestrator) loadImages(chunk []store.EventRecord, includeAfter bool, emit func(Event)) ([]llm.ImagePart, error) {
	var parts []llm.ImagePart
	load := func(n int, kind, path string) error {
		if path == "" {
			return errors.New("file missing")
		}
		data, err := o.readFile(path)
		if err == nil {
			data, err = PrepareImage(data)
		}
		if err != nil {
			return err
		}
		parts = append(parts, llm.ImagePart{
			Caption:   fmt.Sprintf("Event %d, screen %s the click:", n, kind),
			MediaType: "image/jpeg",
			Data:      data,
		})
		return nil
	}

	for i, rec := range chunk {
		if err := load(i+1, "before", rec.BeforePath); err != nil {
			return nil, fmt.Errorf("%w: %s: before image: %v", store.ErrIntegrity, rec.Key.Prefix(), err)
		}
		if !includeAfter {
			continue
		}
		if err := load(i+1, "after", rec.AfterPath); err != nil {
			o.logger.Warn("skipping screenshot", "event", rec.Key.Prefix(), "kind", "after", "error", err)
			emit(Event{Kind: EventLog, Log: fmt.Sprintf("Event %d: after image unusable: %v", i+1, err)})
		}
	}
	return parts, nil
}

// Chunk splits records into consecutive slices of at most size elements.
func Chunk(records []store.EventRecord, size int) [][]store.EventRecord {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]store.EventRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
