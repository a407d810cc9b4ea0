package geometry

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r2"
)

// Corner identifies a resize handle.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

// Corners lists every corner in hit-test priority order.
var Corners = []Corner{BottomRight, BottomLeft, TopRight, TopLeft}

func (c Corner) right() bool  { return c == TopRight || c == BottomRight }
func (c Corner) bottom() bool { return c == BottomLeft || c == BottomRight }

// Opposite returns the diagonally opposite corner.
func (c Corner) Opposite() Corner {
	switch c {
	case TopLeft:
		return BottomRight
	case TopRight:
		return BottomLeft
	case BottomLeft:
		return TopRight
	default:
		return TopLeft
	}
}

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return fmt.Sprintf("Corner(%d)", int(c))
	}
}

// ParseCorner parses the names produced by String.
func ParseCorner(s string) (Corner, error) {
	for _, c := range Corners {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown corner %q", s)
}

// DefaultMinSize is the smallest width or height a resize can produce.
const DefaultMinSize = 1.0

// ResizeRect drags corner c of r by (dx, dy) while the opposite corner stays
// put. Width and height never drop below minSize, so the rectangle cannot
// collapse or flip past the fixed corner.
func ResizeRect(r OverlayRect, c Corner, dx, dy, minSize float64) OverlayRect {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	fixed := r.Corner(c.Opposite())

	out := r
	if c.right() {
		out.Width = max(minSize, r.Width+dx)
		out.X = fixed.X
	} else {
		out.Width = max(minSize, r.Width-dx)
		out.X = fixed.X - out.Width
	}
	if c.bottom() {
		out.Height = max(minSize, r.Height+dy)
		out.Y = fixed.Y
	} else {
		out.Height = max(minSize, r.Height-dy)
		out.Y = fixed.Y - out.Height
	}
	return out
}

// HitCorner returns the corner whose square handle of side handleSize,
// centred on the corner, contains p.
func HitCorner(r OverlayRect, p Point, handleSize float64) (Corner, bool) {
	if handleSize <= 0 {
		return 0, false
	}
	size := r2.Point{X: handleSize, Y: handleSize}
	for _, c := range Corners {
		handle := r2.RectFromCenterSize(r.Corner(c).r2(), size)
		if handle.ContainsPoint(p.r2()) {
			return c, true
		}
	}
	return 0, false
}
