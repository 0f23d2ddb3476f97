// Package service composes the analysis orchestrator with report persistence.
package service

import (
	"context"

	"github.com/alexanderramin/clicktrail/internal/analysis"
	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/alexanderramin/clicktrail/internal/repository"
)

type AnalysisService interface {
	// AnalyzeSession runs a full analysis of the session and stores the
	// resulting report. sink receives every orchestrator event followed by
	// exactly one terminal event; it may be nil.
	AnalyzeSession(ctx context.Context, sessionID string, opts analysis.Options, sink func(analysis.Event)) (*domain.UsageReport, error)
}

type ReportService interface {
	List(ctx context.Context, sessionID string) ([]repository.ReportSummary, error)
	Get(ctx context.Context, id string) (*domain.UsageReport, error)
	Latest(ctx context.Context, sessionID string) (*domain.UsageReport, error)
	Delete(ctx context.Context, id string) error
}
