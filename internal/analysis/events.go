// Package analysis turns a recorded session into per-application usage by
// sending the events, chunk by chunk, to a vision-capable LLM.
package analysis

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/clicktrail/internal/domain"
)

// ErrNoEventsFound is returned when a session has no recorded events.
var ErrNoEventsFound = errors.New("no events found in session")

// Phase is the orchestrator's position in a run.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseScanning    Phase = "scanning"
	PhaseChunking    Phase = "chunking"
	PhaseBuild       Phase = "build"
	PhaseSend        Phase = "send"
	PhaseParse       Phase = "parse"
	PhaseAccumulate  Phase = "accumulate"
	PhaseAggregating Phase = "aggregating"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// EventKind tags an Event.
type EventKind int

const (
	EventProgress EventKind = iota
	EventLog
	EventPhase
	EventDone
	EventFailed
	EventCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventLog:
		return "log"
	case EventPhase:
		return "phase"
	case EventDone:
		return "done"
	case EventFailed:
		return "failed"
	case EventCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one item on a run's stream. Only the field matching Kind is set.
// Done, Failed and Cancelled are terminal; the stream closes after them.
type Event struct {
	Kind     EventKind
	Progress float64
	Log      string
	Phase    Phase
	Chunk    int
	Result   *Result
	Err      error
}

func (e Event) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventFailed || e.Kind == EventCancelled
}

// Result is the aggregated usage of one successful run.
type Result struct {
	SessionID string
	Entries   []domain.AppUsageEntry
	Chunks    int
	Events    int
}

// Options tune one run.
type Options struct {
	// ChunkSize is the number of events per LLM call. Zero means
	// DefaultChunkSize.
	ChunkSize int
	// IncludeAfter attaches each event's after image as well as its before
	// image.
	IncludeAfter bool
}

const DefaultChunkSize = 10

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}
