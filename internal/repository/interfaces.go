// Package repository persists analysis reports in SQLite.
package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/clicktrail/internal/domain"
)

// ReportSummary is a report row without its entries, for listings.
type ReportSummary struct {
	ID           string
	SessionID    string
	Provider     string
	Model        string
	EventCount   int
	ChunkCount   int
	EntryCount   int
	TotalSeconds float64
	CreatedAt    time.Time
}

type ReportRepo interface {
	Create(ctx context.Context, r *domain.UsageReport) error
	GetByID(ctx context.Context, id string) (*domain.UsageReport, error)
	// LatestForSession returns the newest report for a session.
	LatestForSession(ctx context.Context, sessionID string) (*domain.UsageReport, error)
	// List returns summaries newest first. An empty sessionID lists all.
	List(ctx context.Context, sessionID string) ([]ReportSummary, error)
	Delete(ctx context.Context, id string) error
}
