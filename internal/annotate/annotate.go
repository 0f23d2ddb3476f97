// Package annotate burns a click marker into screenshots.
package annotate

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/fogleman/gg"

	// Screenshot sources may hand back JPEG as well as PNG.
	_ "image/jpeg"
)

const (
	Radius      = 20.0
	StrokeWidth = 3.0
)

var ErrDecode = errors.New("annotate: cannot decode image")

// Marker draws a red circle with an X-cross through the click point. Scale
// converts screen points to image pixels, for high-density displays.
type Marker struct {
	Enabled bool
	Scale   float64
}

func NewMarker(enabled bool) *Marker {
	return &Marker{Enabled: enabled, Scale: 1}
}

// Annotate returns a PNG copy of img with the marker drawn at p. The input
// slice is never modified. A disabled marker returns img unchanged.
func (m *Marker) Annotate(img []byte, p domain.Point) ([]byte, error) {
	if !m.Enabled {
		return img, nil
	}

	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	scale := m.Scale
	if scale <= 0 {
		scale = 1
	}
	x, y := p.X*scale, p.Y*scale

	dc := gg.NewContextForImage(src)
	dc.SetRGB(1, 0, 0)
	dc.SetLineWidth(StrokeWidth)

	dc.DrawCircle(x, y, Radius)
	dc.Stroke()

	// The cross spans the circle's inscribed square.
	arm := Radius / 1.41421356
	dc.DrawLine(x-arm, y-arm, x+arm, y+arm)
	dc.DrawLine(x-arm, y+arm, x+arm, y-arm)
	dc.Stroke()

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("annotate: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
