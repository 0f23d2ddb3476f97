package service

import (
	"context"

	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/alexanderramin/clicktrail/internal/repository"
)

type reportService struct {
	reports repository.ReportRepo
}

func NewReportService(reports repository.ReportRepo) ReportService {
	return &reportService{reports: reports}
}

func (s *reportService) List(ctx context.Context, sessionID string) ([]repository.ReportSummary, error) {
	return s.reports.List(ctx, sessionID)
}

func (s *reportService) Get(ctx context.Context, id string) (*domain.UsageReport, error) {
	return s.reports.GetByID(ctx, id)
}

func (s *reportService) Latest(ctx context.Context, sessionID string) (*domain.UsageReport, error) {
	return s.reports.LatestForSession(ctx, sessionID)
}

func (s *reportService) Delete(ctx context.Context, id string) error {
	return s.reports.Delete(ctx, id)
}
