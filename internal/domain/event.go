package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Point is a click position in screen coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type AppDescriptor struct {
	Name     string `json:"name"`
	BundleID string `json:"bundleId,omitempty"`
	PID      int    `json:"pid"`
}

// UIElementDescriptor describes the accessibility element under the cursor.
// Every field is optional; many elements expose none of them.
type UIElementDescriptor struct {
	Role        string `json:"role,omitempty"`
	Title       string `json:"title,omitempty"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value,omitempty"`
	ElementType string `json:"elementType,omitempty"`
}

// IsEmpty reports whether the element carries no information at all.
func (e UIElementDescriptor) IsEmpty() bool {
	return e == UIElementDescriptor{}
}

type WindowDescriptor struct {
	Title     string `json:"title,omitempty"`
	OwnerName string `json:"ownerName"`
	BundleID  string `json:"bundleId,omitempty"`
	Bounds    Rect   `json:"bounds"`
	Layer     int    `json:"layer"`
}

// Rect is a window frame. It serializes as [[x,y],[width,height]].
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsFinite reports whether every component is a finite number.
func (r Rect) IsFinite() bool {
	return finite(r.X) && finite(r.Y) && finite(r.Width) && finite(r.Height)
}

// MarshalJSON writes non-finite components as 0, since JSON has no NaN or Inf.
func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([2][2]float64{
		{orZero(r.X), orZero(r.Y)},
		{orZero(r.Width), orZero(r.Height)},
	})
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func orZero(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return v
}

func (r *Rect) UnmarshalJSON(data []byte) error {
	var pair [][]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding bounds: %w", err)
	}
	if len(pair) != 2 || len(pair[0]) != 2 || len(pair[1]) != 2 {
		return fmt.Errorf("decoding bounds: want [[x,y],[width,height]], got %s", string(data))
	}
	*r = Rect{X: pair[0][0], Y: pair[0][1], Width: pair[1][0], Height: pair[1][1]}
	return nil
}

// ClickEvent is one recorded click with its context. It is built once by the
// recorder and never modified afterwards.
type ClickEvent struct {
	ID             string               `json:"id"`
	Timestamp      time.Time            `json:"timestamp"`
	Position       Point                `json:"position"`
	ActiveApp      AppDescriptor        `json:"activeApp"`
	ClickedElement *UIElementDescriptor `json:"clickedElement,omitempty"`
	Windows        []WindowDescriptor   `json:"windows"`
	RunningApps    []AppDescriptor      `json:"runningApps"`
	Modifiers      []string             `json:"modifiers"`
}

// WindowNames returns the display names of the visible windows, preferring the
// window title and falling back to the owning application.
func (e ClickEvent) WindowNames() []string {
	names := make([]string, 0, len(e.Windows))
	for _, w := range e.Windows {
		name := CoalesceStr(w.Title, w.OwnerName)
		if name == "" {
			continue
		}
		if w.Title != "" && w.OwnerName != "" && w.Title != w.OwnerName {
			name = w.OwnerName + " - " + w.Title
		}
		names = append(names, name)
	}
	return names
}
