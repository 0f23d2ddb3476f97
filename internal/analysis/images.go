package analysis

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Stored screenshots are PNG.
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	MaxImageEdge = 1920
	JPEGQuality  = 70
)

// PrepareImage downsizes a screenshot so its longest edge is at most
// MaxImageEdge and re-encodes it as JPEG. Stored files are never touched;
// this copy only goes on the wire.
func PrepareImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}

	out := src
	b := src.Bounds()
	if w, h := b.Dx(), b.Dy(); w > MaxImageEdge || h > MaxImageEdge {
		nw, nh := fitWithin(w, h, MaxImageEdge)
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales w x h so the longer side equals edge, keeping the aspect
// ratio and never rounding a side to zero.
func fitWithin(w, h, edge int) (int, int) {
	if w >= h {
		nh := h * edge / w
		return edge, max(nh, 1)
	}
	nw := w * edge / h
	return max(nw, 1), edge
}
