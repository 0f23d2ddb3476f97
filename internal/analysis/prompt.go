package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alexanderramin/clicktrail/internal/llm"
	"github.com/alexanderramin/clicktrail/internal/store"
)

// SystemPrompt is sent unchanged with every chunk so each call applies the
// same attribution rules.
const SystemPrompt = `You analyze a user's computer activity from a sequence of mouse clicks.
Each click comes with its timestamp, the active application, the UI element that was clicked, the open windows, and a screenshot taken just before the click.

Estimate how many seconds the user spent in each application during these events.
Use the elapsed time between consecutive events as the main evidence. Attribute each gap to the application the user was working in.

Browser rule: when the active application is a web browser (Safari, Chrome, Firefox, Edge, Arc, Brave, Opera or similar), do not report the browser's name. Report the website's domain instead, for example "github.com" or "docs.google.com", inferred from the URL bar, the window title or recognizable site layout in the screenshot. Use the bare registrable domain without scheme, path or "www.".

Use exactly the same appName spelling for the same application or domain every time.
Return only a JSON object of the form {"apps":[{"appName":"...","secondsUsed":0}]}.`

// UsageSchema is the structured response contract.
func UsageSchema() *llm.JSONSchema {
	return &llm.JSONSchema{
		Name: "app_usage",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"apps"},
			"properties": map[string]any{
				"apps": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []string{"appName", "secondsUsed"},
						"properties": map[string]any{
							"appName":     map[string]any{"type": "string"},
							"secondsUsed": map[string]any{"type": "number"},
						},
					},
				},
			},
		},
	}
}

type usagePayload struct {
	Apps []struct {
		AppName     string  `json:"appName"`
		SecondsUsed float64 `json:"secondsUsed"`
	} `json:"apps"`
}

func validateUsage(p usagePayload) error {
	if p.Apps == nil {
		return errors.New("missing apps array")
	}
	for i, a := range p.Apps {
		if strings.TrimSpace(a.AppName) == "" {
			return fmt.Errorf("apps[%d]: empty appName", i)
		}
		if math.IsNaN(a.SecondsUsed) || math.IsInf(a.SecondsUsed, 0) || a.SecondsUsed < 0 {
			return fmt.Errorf("apps[%d] %q: secondsUsed must be a non-negative number", i, a.AppName)
		}
	}
	return nil
}

// BuildPrompt describes one chunk of events. prev is the last event of the
// preceding chunk, or nil for the first chunk.
func BuildPrompt(chunk []store.EventRecord, prev *store.EventRecord, index, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chunk %d of %d, %d events.\n", index+1, total, len(chunk))

	for i, rec := range chunk {
		ev := rec.Event
		ts := ev.Timestamp.UTC()
		fmt.Fprintf(&b, "\nEvent %d\n", i+1)
		fmt.Fprintf(&b, "- time: %s (epoch %.3f)\n", ts.Format("Mon 2006-01-02 15:04:05.000 UTC"), float64(ts.UnixMilli())/1000)

		switch {
		case i > 0:
			fmt.Fprintf(&b, "- since previous event: %s\n", formatGap(ts.Sub(chunk[i-1].Event.Timestamp)))
		case prev != nil:
			fmt.Fprintf(&b, "- since previous event (last event of the previous chunk): %s\n", formatGap(ts.Sub(prev.Event.Timestamp)))
		default:
			b.WriteString("- since previous event: none, first event of the session\n")
		}

		app := ev.ActiveApp.Name
		if ev.ActiveApp.BundleID != "" {
			app += " (" + ev.ActiveApp.BundleID + ")"
		}
		fmt.Fprintf(&b, "- active app: %s\n", app)
		fmt.Fprintf(&b, "- click position: (%.0f, %.0f)\n", ev.Position.X, ev.Position.Y)

		if el := ev.ClickedElement; el != nil {
			var parts []string
			for _, f := range []struct{ k, v string }{
				{"role", el.Role}, {"title", el.Title}, {"label", el.Label},
				{"description", el.Description}, {"value", el.Value}, {"type", el.ElementType},
			} {
				if f.v != "" {
					parts = append(parts, fmt.Sprintf("%s=%q", f.k, f.v))
				}
			}
			fmt.Fprintf(&b, "- clicked element: %s\n", strings.Join(parts, ", "))
		}
		if len(ev.Modifiers) > 0 {
			fmt.Fprintf(&b, "- modifier keys: %s\n", strings.Join(ev.Modifiers, "+"))
		}
		if names := ev.WindowNames(); len(names) > 0 {
			fmt.Fprintf(&b, "- open windows: %s\n", strings.Join(names, "; "))
		}
	}
	return b.String()
}

func formatGap(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
