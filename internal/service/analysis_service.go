package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/clicktrail/internal/analysis"
	"github.com/alexanderramin/clicktrail/internal/db"
	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/alexanderramin/clicktrail/internal/llm"
	"github.com/alexanderramin/clicktrail/internal/repository"
	"github.com/google/uuid"
)

// Analyzer is the part of analysis.Orchestrator the service drives.
type Analyzer interface {
	Run(ctx context.Context, sessionID string, opts analysis.Options, emit func(analysis.Event)) (analysis.Result, error)
	Model() (llm.Provider, string)
}

type analysisService struct {
	analyzer Analyzer
	uow      db.UnitOfWork
	observer UseCaseObserver
	now      func() time.Time
}

func NewAnalysisService(analyzer Analyzer, uow db.UnitOfWork, observers ...UseCaseObserver) AnalysisService {
	return &analysisService{
		analyzer: analyzer,
		uow:      uow,
		observer: useCaseObserverOrNoop(observers),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *analysisService) AnalyzeSession(ctx context.Context, sessionID string, opts analysis.Options, sink func(analysis.Event)) (report *domain.UsageReport, err error) {
	if sink == nil {
		sink = func(analysis.Event) {}
	}
	provider, model := s.analyzer.Model()
	startedAt := time.Now()
	fields := map[string]any{
		"session":  sessionID,
		"provider": string(provider),
		"model":    model,
	}
	defer func() {
		s.observer.ObserveUseCase(ctx, UseCaseEvent{
			Name:      "analyze-session",
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
			Success:   err == nil,
			Err:       err,
			Fields:    fields,
		})
	}()
	defer func() {
		switch {
		case err == nil:
		case ctx.Err() != nil:
			sink(analysis.Event{Kind: analysis.EventCancelled, Err: ctx.Err()})
		default:
			sink(analysis.Event{Kind: analysis.EventFailed, Err: err})
		}
	}()

	result, err := s.analyzer.Run(ctx, sessionID, opts, sink)
	if err != nil {
		return nil, err
	}
	fields["events"] = result.Events
	fields["chunks"] = result.Chunks
	fields["entries"] = len(result.Entries)

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = analysis.DefaultChunkSize
	}
	report = &domain.UsageReport{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		Provider:     string(provider),
		Model:        model,
		ChunkSize:    chunkSize,
		IncludeAfter: opts.IncludeAfter,
		EventCount:   result.Events,
		ChunkCount:   result.Chunks,
		Entries:      result.Entries,
		CreatedAt:    s.now(),
	}
	if err = report.Validate(); err != nil {
		return nil, err
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLiteReportRepo(tx).Create(ctx, report)
	})
	if err != nil {
		return nil, fmt.Errorf("storing report: %w", err)
	}
	fields["report"] = report.ID

	sink(analysis.Event{Kind: analysis.EventDone, Progress: 1, Result: &result})
	return report, nil
}
