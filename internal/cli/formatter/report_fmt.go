package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/alexanderramin/clicktrail/internal/repository"
)

const shareWidth = 20

// FormatUsage renders aggregated usage, one row per app with its share of the
// total.
func FormatUsage(entries []domain.AppUsageEntry) string {
	if len(entries) == 0 {
		return Dim("No usage attributed.") + "\n"
	}
	total := domain.TotalSeconds(entries)
	headers := []string{"APP", "TIME", "SHARE", "CHUNKS"}
	rows := make([][]string, 0, len(entries)+1)
	for _, e := range entries {
		share := 0.0
		if total > 0 {
			share = e.SecondsUsed / total
		}
		rows = append(rows, []string{
			e.AppName,
			FormatSeconds(e.SecondsUsed),
			RenderShare(share, shareWidth),
			Dim(chunkList(e.Chunks)),
		})
	}
	rows = append(rows, []string{Bold("Total"), Bold(FormatSeconds(total)), "", ""})
	return RenderTable(headers, rows, 1)
}

func chunkList(chunks []int) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = strconv.Itoa(c + 1)
	}
	return strings.Join(parts, ",")
}

// FormatReport renders a stored report inside a box.
func FormatReport(r *domain.UsageReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", Dim("Session:"), r.SessionID)
	fmt.Fprintf(&b, "%s %s / %s\n", Dim("Model:"), r.Provider, r.Model)
	fmt.Fprintf(&b, "%s %d events in %d chunk(s) of %d", Dim("Input:"), r.EventCount, r.ChunkCount, r.ChunkSize)
	if r.IncludeAfter {
		b.WriteString(Dim(", with after images"))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n\n", Dim("Created:"), r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	b.WriteString(strings.TrimRight(FormatUsage(r.Entries), "\n"))
	return RenderBox("Usage report "+shortID(r.ID), b.String()) + "\n"
}

func FormatReportList(reports []repository.ReportSummary) string {
	if len(reports) == 0 {
		return Dim("No reports stored.") + "\n"
	}
	headers := []string{"REPORT", "SESSION", "MODEL", "EVENTS", "APPS", "TOTAL", "CREATED"}
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			TruncID(r.ID),
			r.SessionID,
			r.Provider + "/" + r.Model,
			strconv.Itoa(r.EventCount),
			strconv.Itoa(r.EntryCount),
			FormatSeconds(r.TotalSeconds),
			HumanTimestamp(r.CreatedAt),
		})
	}
	return RenderTable(headers, rows, 3, 4, 5)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
