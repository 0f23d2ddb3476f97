package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/clicktrail/internal/db"
	"github.com/alexanderramin/clicktrail/internal/domain"
)

// SQLiteReportRepo implements ReportRepo. Create writes the report row and its
// entries; callers wanting atomicity run it on a tx from a UnitOfWork.
type SQLiteReportRepo struct {
	db db.DBTX
}

func NewSQLiteReportRepo(db db.DBTX) *SQLiteReportRepo {
	return &SQLiteReportRepo{db: db}
}

var _ ReportRepo = (*SQLiteReportRepo)(nil)

func (r *SQLiteReportRepo) Create(ctx context.Context, rep *domain.UsageReport) error {
	query := `INSERT INTO usage_reports (id, session_id, provider, model, chunk_size, include_after,
		event_count, chunk_count, total_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		rep.ID,
		rep.SessionID,
		rep.Provider,
		rep.Model,
		rep.ChunkSize,
		boolToInt(rep.IncludeAfter),
		rep.EventCount,
		rep.ChunkCount,
		rep.TotalSeconds(),
		rep.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting usage report: %w", err)
	}

	for i, e := range rep.Entries {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO usage_report_entries (report_id, position, app_name, seconds_used, chunks)
			VALUES (?, ?, ?, ?, ?)`,
			rep.ID, i, e.AppName, e.SecondsUsed, formatChunks(e.Chunks))
		if err != nil {
			return fmt.Errorf("inserting usage report entry %d: %w", i, err)
		}
	}
	return nil
}

const reportColumns = `id, session_id, provider, model, chunk_size, include_after, event_count, chunk_count, created_at`

func (r *SQLiteReportRepo) GetByID(ctx context.Context, id string) (*domain.UsageReport, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM usage_reports WHERE id = ?`, id)
	return r.loadReport(ctx, row)
}

func (r *SQLiteReportRepo) LatestForSession(ctx context.Context, sessionID string) (*domain.UsageReport, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM usage_reports
		WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, sessionID)
	return r.loadReport(ctx, row)
}

func (r *SQLiteReportRepo) List(ctx context.Context, sessionID string) ([]ReportSummary, error) {
	query := `SELECT r.id, r.session_id, r.provider, r.model, r.event_count, r.chunk_count,
			COALESCE(r.total_seconds, 0), r.created_at,
			(SELECT COUNT(*) FROM usage_report_entries e WHERE e.report_id = r.id)
		FROM usage_reports r
		WHERE (? = '' OR r.session_id = ?)
		ORDER BY r.created_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, query, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing usage reports: %w", err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var s ReportSummary
		var createdAt string
		if err := rows.Scan(&s.ID, &s.SessionID, &s.Provider, &s.Model, &s.EventCount, &s.ChunkCount,
			&s.TotalSeconds, &createdAt, &s.EntryCount); err != nil {
			return nil, fmt.Errorf("scanning usage report row: %w", err)
		}
		if s.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage reports: %w", err)
	}
	return out, nil
}

func (r *SQLiteReportRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM usage_reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting usage report: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("usage report %s: %w", id, ErrNotFound)
	}
	return nil
}

// loadReport scans a report row and then its entries in position order.
func (r *SQLiteReportRepo) loadReport(ctx context.Context, row *sql.Row) (*domain.UsageReport, error) {
	var rep domain.UsageReport
	var includeAfter int
	var createdAt string

	err := row.Scan(&rep.ID, &rep.SessionID, &rep.Provider, &rep.Model, &rep.ChunkSize,
		&includeAfter, &rep.EventCount, &rep.ChunkCount, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("usage report: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning usage report: %w", err)
	}
	rep.IncludeAfter = intToBool(includeAfter)
	if rep.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	entries, err := r.entries(ctx, rep.ID)
	if err != nil {
		return nil, err
	}
	rep.Entries = entries
	return &rep, nil
}

func (r *SQLiteReportRepo) entries(ctx context.Context, reportID string) ([]domain.AppUsageEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT app_name, seconds_used, chunks
		FROM usage_report_entries WHERE report_id = ? ORDER BY position`, reportID)
	if err != nil {
		return nil, fmt.Errorf("listing usage report entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.AppUsageEntry{}
	for rows.Next() {
		var e domain.AppUsageEntry
		var chunks string
		if err := rows.Scan(&e.AppName, &e.SecondsUsed, &chunks); err != nil {
			return nil, fmt.Errorf("scanning usage report entry: %w", err)
		}
		if e.Chunks, err = parseChunks(chunks); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage report entries: %w", err)
	}
	return entries, nil
}
