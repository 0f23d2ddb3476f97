package formatter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/alexanderramin/clicktrail/internal/store"
	"github.com/hashicorp/go-multierror"
)

func FormatSessionList(sessions []domain.Session) string {
	if len(sessions) == 0 {
		return Dim("No sessions recorded yet.") + "\n"
	}
	headers := []string{"SESSION", "STARTED", "DURATION", "EVENTS", "STATE"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.ID,
			HumanTimestamp(s.StartedAt),
			Span(s.StartedAt, s.EndedAt),
			strconv.Itoa(s.EventCount),
			SessionState(s.Sealed()),
		})
	}
	return RenderTable(headers, rows, 3)
}

// FormatSessionDetail renders a session header followed by one line per
// event.
func FormatSessionDetail(s domain.Session, events []store.EventRecord) string {
	var b strings.Builder
	b.WriteString(Header("Session " + s.ID))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", Dim("Machine:"), s.MachineID)
	fmt.Fprintf(&b, "%s %s\n", Dim("Started:"), s.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "%s %s\n", Dim("Duration:"), Span(s.StartedAt, s.EndedAt))
	fmt.Fprintf(&b, "%s %s\n\n", Dim("State:"), SessionState(s.Sealed()))

	if len(events) == 0 {
		b.WriteString(Dim("No events.") + "\n")
		return b.String()
	}

	headers := []string{"TIME", "APP", "POSITION", "ELEMENT", "AFTER"}
	rows := make([][]string, 0, len(events))
	for _, rec := range events {
		rows = append(rows, []string{
			rec.Event.Timestamp.Local().Format("15:04:05.000"),
			rec.Event.ActiveApp.Name,
			fmt.Sprintf("%.0f,%.0f", rec.Event.Position.X, rec.Event.Position.Y),
			elementLabel(rec.Event.ClickedElement),
			CheckMark(rec.AfterPath != "", ""),
		})
	}
	b.WriteString(RenderTable(headers, rows))
	return b.String()
}

func elementLabel(el *domain.UIElementDescriptor) string {
	if el == nil {
		return Dim("-")
	}
	label := domain.CoalesceStr(el.Title, el.Label, el.Description, el.Value)
	if el.Role != "" && label != "" {
		label = el.Role + " " + strconv.Quote(label)
	} else if label == "" {
		label = el.Role
	}
	if len(label) > 40 {
		label = label[:37] + "..."
	}
	return label
}

// FormatVerify renders the outcome of a store integrity check.
func FormatVerify(sessionID string, err error) string {
	if err == nil {
		return CheckMark(true, fmt.Sprintf("session %s is consistent", sessionID)) + "\n"
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return CheckMark(false, err.Error()) + "\n"
	}
	var b strings.Builder
	b.WriteString(CheckMark(false, fmt.Sprintf("session %s: %d problem(s)", sessionID, len(merr.Errors))))
	b.WriteString("\n")
	for _, e := range merr.Errors {
		fmt.Fprintf(&b, "  %s %s\n", StyleRed.Render("•"), e.Error())
	}
	return b.String()
}
