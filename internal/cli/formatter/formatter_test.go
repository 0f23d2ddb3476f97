package formatter

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/alexanderramin/clicktrail/internal/repository"
	"github.com/alexanderramin/clicktrail/internal/store"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0s"},
		{-3, "0s"},
		{12.5, "12.5s"},
		{42, "42s"},
		{245, "4m 05s"},
		{3725, "1h 02m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSeconds(tt.in), "FormatSeconds(%v)", tt.in)
	}
}

func TestHumanTimestampFrom(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "Just now", HumanTimestampFrom(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", HumanTimestampFrom(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", HumanTimestampFrom(now.Add(-3*time.Hour), now))
	assert.Contains(t, HumanTimestampFrom(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), now), "2024")
}

func TestRenderTable_AlignsStyledCells(t *testing.T) {
	out := stripANSI(RenderTable(
		[]string{"APP", "TIME"},
		[][]string{{StyleGreen.Render("Safari"), "1m"}, {"Mail", "12m"}},
		1,
	))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Len(t, lines, 4)
	assert.Equal(t, "Safari    1m", lines[2])
	assert.Equal(t, "Mail     12m", lines[3])
}

func TestRenderShare_Clamps(t *testing.T) {
	assert.Contains(t, stripANSI(RenderShare(1.7, 10)), "100%")
	assert.Contains(t, stripANSI(RenderShare(-1, 10)), "  0%")
	assert.Equal(t, "[█████░░░░░]  50%", stripANSI(RenderShare(0.5, 10)))
}

func TestFormatUsage(t *testing.T) {
	out := stripANSI(FormatUsage([]domain.AppUsageEntry{
		{AppName: "github.com", SecondsUsed: 90, Chunks: []int{0, 1}},
		{AppName: "Terminal", SecondsUsed: 30, Chunks: []int{1}},
	}))

	assert.Contains(t, out, "github.com")
	assert.Contains(t, out, "1m 30s")
	assert.Contains(t, out, " 75%")
	assert.Contains(t, out, "1,2")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "2m 00s")

	assert.Contains(t, stripANSI(FormatUsage(nil)), "No usage attributed")
}

func TestFormatReport(t *testing.T) {
	out := stripANSI(FormatReport(&domain.UsageReport{
		ID:           "0123456789abcdef",
		SessionID:    "2026-03-04T09-30-00Z_m1",
		Provider:     "openai",
		Model:        "gpt-test",
		ChunkSize:    10,
		IncludeAfter: true,
		EventCount:   14,
		ChunkCount:   2,
		Entries:      []domain.AppUsageEntry{{AppName: "Safari", SecondsUsed: 20}},
		CreatedAt:    time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}))

	assert.Contains(t, out, "USAGE REPORT 01234567")
	assert.Contains(t, out, "openai / gpt-test")
	assert.Contains(t, out, "14 events in 2 chunk(s) of 10")
	assert.Contains(t, out, "with after images")
	assert.Contains(t, out, "Safari")
}

func TestFormatReportList(t *testing.T) {
	out := stripANSI(FormatReportList([]repository.ReportSummary{{
		ID: "abcdef0123", SessionID: "s1", Provider: "hf-router", Model: "qwen",
		EventCount: 3, EntryCount: 2, TotalSeconds: 61, CreatedAt: time.Now(),
	}}))
	assert.Contains(t, out, "abcdef01")
	assert.Contains(t, out, "hf-router/qwen")
	assert.Contains(t, out, "1m 01s")

	assert.Contains(t, stripANSI(FormatReportList(nil)), "No reports stored")
}

func TestFormatSessionViews(t *testing.T) {
	start := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	sessions := []domain.Session{
		{ID: "2026-03-04T09-30-00Z_m1", MachineID: "m1", StartedAt: start, EndedAt: &end, EventCount: 4},
		{ID: "2026-03-04T10-00-00Z_m1", MachineID: "m1", StartedAt: start.Add(30 * time.Minute)},
	}
	list := stripANSI(FormatSessionList(sessions))
	assert.Contains(t, list, "1m30s")
	assert.Contains(t, list, "sealed")
	assert.Contains(t, list, "recording")

	detail := stripANSI(FormatSessionDetail(sessions[0], []store.EventRecord{{
		Event: domain.ClickEvent{
			Timestamp:      start.Add(time.Second),
			Position:       domain.Point{X: 12, Y: 34},
			ActiveApp:      domain.AppDescriptor{Name: "Safari"},
			ClickedElement: &domain.UIElementDescriptor{Role: "AXButton", Title: "Reload"},
		},
		AfterPath: "x_after.png",
	}}))
	assert.Contains(t, detail, "SESSION 2026-03-04T09-30-00Z_M1")
	assert.Contains(t, detail, `AXButton "Reload"`)
	assert.Contains(t, detail, "12,34")
}

func TestFormatVerify(t *testing.T) {
	assert.Contains(t, stripANSI(FormatVerify("s1", nil)), "consistent")

	var merr *multierror.Error
	merr = multierror.Append(merr, errors.New("missing before image"), errors.New("orphan image x.png"))
	out := stripANSI(FormatVerify("s1", merr))
	assert.Contains(t, out, "2 problem(s)")
	assert.Contains(t, out, "orphan image x.png")

	assert.Contains(t, stripANSI(FormatVerify("s1", errors.New("session not found"))), "session not found")
}
