package domain

import (
	"errors"
	"time"
)

// UsageReport is a stored analysis result for one session.
type UsageReport struct {
	ID           string
	SessionID    string
	Provider     string
	Model        string
	ChunkSize    int
	IncludeAfter bool
	EventCount   int
	ChunkCount   int
	Entries      []AppUsageEntry
	CreatedAt    time.Time
}

// TotalSeconds is the attributed time across all entries.
func (r UsageReport) TotalSeconds() float64 {
	return TotalSeconds(r.Entries)
}

func (r UsageReport) Validate() error {
	if r.SessionID == "" {
		return errors.New("report: session id is required")
	}
	if r.Provider == "" || r.Model == "" {
		return errors.New("report: provider and model are required")
	}
	for _, e := range r.Entries {
		if e.AppName == "" {
			return errors.New("report: entry with empty app name")
		}
		if e.SecondsUsed < 0 {
			return errors.New("report: entry with negative seconds")
		}
	}
	return nil
}
