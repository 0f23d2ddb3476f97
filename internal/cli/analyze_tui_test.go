package cli

import (
	"errors"
	"testing"

	"github.com/alexanderramin/clicktrail/internal/analysis"
	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/alexanderramin/clicktrail/internal/teatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeModel_TracksPhasesAndLogs(t *testing.T) {
	d := teatest.New(t, newAnalyzeModel("20260101T120000Z-abc", "gpt-test", nil), teatest.WithSize(100, 30))

	d.Send(analysisEventMsg{ev: analysis.Event{Kind: analysis.EventPhase, Phase: analysis.PhaseSend, Chunk: 1}})
	d.Send(analysisEventMsg{ev: analysis.Event{Kind: analysis.EventLog, Log: "chunk 2: 10 events\nprompt sent"}})
	d.Send(analysisEventMsg{ev: analysis.Event{Kind: analysis.EventProgress, Progress: 0.5}})

	view := stripANSI(d.View())
	assert.Contains(t, view, "ANALYZING 20260101T120000Z-abc")
	assert.Contains(t, view, "send (chunk 2)")
	assert.Contains(t, view, "prompt sent")
	assert.False(t, d.Quitting)
}

func TestAnalyzeModel_CancelCallsCancelOnce(t *testing.T) {
	calls := 0
	d := teatest.New(t, newAnalyzeModel("s1", "m", func() { calls++ }))

	d.PressCtrlC()
	d.PressKey('q')
	assert.Equal(t, 1, calls)
	assert.Contains(t, stripANSI(d.View()), "cancelling")
	assert.False(t, d.Quitting, "the program waits for the run to finish")

	d.Send(analysisEventMsg{ev: analysis.Event{Kind: analysis.EventCancelled}})
	d.Send(analysisFinishedMsg{err: errors.New("context canceled")})
	assert.True(t, d.Quitting)
}

func TestAnalyzeModel_FinishQuitsWithReport(t *testing.T) {
	d := teatest.New(t, newAnalyzeModel("s1", "m", nil))
	report := &domain.UsageReport{ID: "r1", SessionID: "s1"}

	d.Send(analysisEventMsg{ev: analysis.Event{Kind: analysis.EventDone}})
	d.Send(analysisFinishedMsg{report: report})

	require.True(t, d.Quitting)
	m, ok := d.Model.(analyzeModel)
	require.True(t, ok)
	assert.True(t, m.finished)
	assert.Same(t, report, m.report)
	assert.NoError(t, m.err)
	assert.Equal(t, analysis.PhaseDone, m.phase)
}

func TestAnalyzeModel_FailureIsLogged(t *testing.T) {
	d := teatest.New(t, newAnalyzeModel("s1", "m", nil))
	d.Send(analysisEventMsg{ev: analysis.Event{Kind: analysis.EventFailed, Err: errors.New("llm api request failed: 500")}})

	view := stripANSI(d.View())
	assert.Contains(t, view, "failed: llm api request failed: 500")
}
