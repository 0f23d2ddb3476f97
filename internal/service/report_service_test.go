package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/alexanderramin/clicktrail/internal/repository"
	"github.com/alexanderramin/clicktrail/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportService_ListGetDelete(t *testing.T) {
	repo := repository.NewSQLiteReportRepo(testutil.NewTestDB(t))
	svc := NewReportService(repo)
	ctx := context.Background()

	a := testutil.NewTestReport("s1")
	b := testutil.NewTestReport("s2")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)

	require.NoError(t, svc.Delete(ctx, a.ID))
	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLogUseCaseObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogUseCaseObserver(slog.New(slog.NewTextHandler(&buf, nil)))

	obs.ObserveUseCase(context.Background(), UseCaseEvent{Name: "analyze-session", Success: true, Fields: map[string]any{"session": "s1"}})
	obs.ObserveUseCase(context.Background(), UseCaseEvent{Name: "analyze-session", Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "use_case=analyze-session")
	assert.Contains(t, out, "session=s1")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "error=boom")

	assert.IsType(t, NoopUseCaseObserver{}, NewLogUseCaseObserver(nil))
}

func TestUseCaseObserverOrNoop_FansOut(t *testing.T) {
	a, b := &recordingUseCases{}, &recordingUseCases{}
	obs := useCaseObserverOrNoop([]UseCaseObserver{nil, a, b})
	obs.ObserveUseCase(context.Background(), UseCaseEvent{Name: "x"})

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Same(t, a, useCaseObserverOrNoop([]UseCaseObserver{a}))
	assert.IsType(t, NoopUseCaseObserver{}, useCaseObserverOrNoop(nil))
}
