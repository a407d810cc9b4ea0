// Package geometry maps rectangles between the on-screen rendering of a PDF
// page and the page's own coordinate space.
//
// Screen space has its origin at the top-left of the viewing container and
// grows downwards, in pixels. PDF space has its origin at the bottom-left of
// the page and grows upwards, in points.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// ErrInvalidGeometry is returned when page dimensions cannot define a scale.
var ErrInvalidGeometry = errors.New("invalid page geometry")

// Point is a screen-space position in pixels.
type Point struct {
	X, Y float64
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

func (p Point) r2() r2.Point { return r2.Point{X: p.X, Y: p.Y} }

// PageGeometry relates a page's size in points to its rendered size in
// pixels. It is only valid for the page it was measured on.
type PageGeometry struct {
	WidthPoints          float64
	HeightPoints         float64
	RenderedWidthPixels  float64
	RenderedHeightPixels float64
}

// Scale returns pixels per point. The rendered aspect ratio is assumed to
// match the page's, so only the width is used.
func (g PageGeometry) Scale() float64 {
	return g.RenderedWidthPixels / g.WidthPoints
}

// Validate reports ErrInvalidGeometry when no finite, positive scale exists.
func (g PageGeometry) Validate() error {
	switch {
	case !positive(g.WidthPoints):
		return fmt.Errorf("%w: page width %v", ErrInvalidGeometry, g.WidthPoints)
	case !positive(g.HeightPoints):
		return fmt.Errorf("%w: page height %v", ErrInvalidGeometry, g.HeightPoints)
	case !positive(g.RenderedWidthPixels):
		return fmt.Errorf("%w: rendered width %v", ErrInvalidGeometry, g.RenderedWidthPixels)
	}
	if s := g.Scale(); !positive(s) {
		return fmt.Errorf("%w: scale %v", ErrInvalidGeometry, s)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// OverlayRect is a screen-space rectangle anchored at its top-left corner.
type OverlayRect struct {
	X, Y          float64
	Width, Height float64
}

// Origin returns the top-left corner.
func (r OverlayRect) Origin() Point { return Point{r.X, r.Y} }

// Corner returns the position of corner c.
func (r OverlayRect) Corner(c Corner) Point {
	p := r.Origin()
	if c.right() {
		p.X += r.Width
	}
	if c.bottom() {
		p.Y += r.Height
	}
	return p
}

// Bounds returns the rectangle as an r2.Rect.
func (r OverlayRect) Bounds() r2.Rect {
	return r2.RectFromPoints(r.Origin().r2(), r.Corner(BottomRight).r2())
}

// Contains reports whether p lies inside r, edges included.
func (r OverlayRect) Contains(p Point) bool {
	return r.Bounds().ContainsPoint(p.r2())
}

// PlacementRect is a PDF-space rectangle anchored at its bottom-left corner.
type PlacementRect struct {
	X, Y          float64
	Width, Height float64
}

// Translate returns p moved by (dx, dy) points.
func (p PlacementRect) Translate(dx, dy float64) PlacementRect {
	p.X += dx
	p.Y += dy
	return p
}

func (p PlacementRect) String() string {
	return fmt.Sprintf("[%g %g %g %g]", p.X, p.Y, p.Width, p.Height)
}

// ToPdfSpace converts an overlay rectangle, measured in the same space as
// offset (the page's top-left corner on screen), into page points.
func ToPdfSpace(r OverlayRect, offset Point, g PageGeometry) (PlacementRect, error) {
	if err := g.Validate(); err != nil {
		return PlacementRect{}, err
	}
	s := g.Scale()
	return PlacementRect{
		X:      (r.X - offset.X) / s,
		Y:      g.HeightPoints - (r.Y-offset.Y)/s - r.Height/s,
		Width:  r.Width / s,
		Height: r.Height / s,
	}, nil
}

// ToScreenSpace is the inverse of ToPdfSpace.
func ToScreenSpace(p PlacementRect, offset Point, g PageGeometry) (OverlayRect, error) {
	if err := g.Validate(); err != nil {
		return OverlayRect{}, err
	}
	s := g.Scale()
	return OverlayRect{
		X:      p.X*s + offset.X,
		Y:      (g.HeightPoints-p.Y-p.Height)*s + offset.Y,
		Width:  p.Width * s,
		Height: p.Height * s,
	}, nil
}
