package geometry

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResizeKeepsOppositeCorner(t *testing.T) {
	start := OverlayRect{X: 100, Y: 100, Width: 80, Height: 40}
	deltas := []Point{{X: 10, Y: 5}, {X: -25, Y: -12}, {X: 300, Y: -300}, {X: -500, Y: 500}}

	for _, c := range Corners {
		for _, d := range deltas {
			got := ResizeRect(start, c, d.X, d.Y, DefaultMinSize)
			fixed := c.Opposite()
			if diff := cmp.Diff(start.Corner(fixed), got.Corner(fixed)); diff != "" {
				t.Errorf("%s by %v moved %s (-want +got):\n%s", c, d, fixed, diff)
			}
			if got.Width < DefaultMinSize || got.Height < DefaultMinSize {
				t.Errorf("%s by %v produced degenerate rect %v", c, d, got)
			}
		}
	}
}

func TestResizeRect(t *testing.T) {
	start := OverlayRect{X: 10, Y: 20, Width: 100, Height: 50}
	tests := []struct {
		name    string
		corner  Corner
		dx, dy  float64
		minSize float64
		want    OverlayRect
	}{
		{"grow bottom-right", BottomRight, 10, 5, 1, OverlayRect{X: 10, Y: 20, Width: 110, Height: 55}},
		{"grow top-left", TopLeft, -10, -5, 1, OverlayRect{X: 0, Y: 15, Width: 110, Height: 55}},
		{"shrink top-right", TopRight, -20, 10, 1, OverlayRect{X: 10, Y: 30, Width: 80, Height: 40}},
		{"shrink bottom-left", BottomLeft, 30, -10, 1, OverlayRect{X: 40, Y: 20, Width: 70, Height: 40}},
		{"clamp bottom-right", BottomRight, -200, -200, 1, OverlayRect{X: 10, Y: 20, Width: 1, Height: 1}},
		{"clamp top-left", TopLeft, 500, 500, 1, OverlayRect{X: 109, Y: 69, Width: 1, Height: 1}},
		{"custom minimum", BottomRight, -95, 0, 20, OverlayRect{X: 10, Y: 20, Width: 20, Height: 50}},
		{"zero minimum uses default", TopRight, -100, 0, 0, OverlayRect{X: 10, Y: 20, Width: 1, Height: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResizeRect(start, tt.corner, tt.dx, tt.dy, tt.minSize)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ResizeRect mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHitCorner(t *testing.T) {
	r := OverlayRect{X: 100, Y: 100, Width: 80, Height: 40}
	tests := []struct {
		name   string
		p      Point
		corner Corner
		hit    bool
	}{
		{"top-left", Point{X: 102, Y: 98}, TopLeft, true},
		{"top-right", Point{X: 180, Y: 100}, TopRight, true},
		{"bottom-left", Point{X: 96, Y: 144}, BottomLeft, true},
		{"bottom-right edge", Point{X: 185, Y: 145}, BottomRight, true},
		{"body", Point{X: 140, Y: 120}, 0, false},
		{"outside", Point{X: 300, Y: 300}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := HitCorner(r, tt.p, 10)
			if ok != tt.hit || (ok && c != tt.corner) {
				t.Errorf("HitCorner(%v) = %s, %v; want %s, %v", tt.p, c, ok, tt.corner, tt.hit)
			}
		})
	}

	if _, ok := HitCorner(r, r.Origin(), 0); ok {
		t.Error("Expected no hit with zero handle size")
	}
}

func TestContains(t *testing.T) {
	r := OverlayRect{X: 10, Y: 10, Width: 20, Height: 20}
	if !r.Contains(Point{X: 10, Y: 30}) || !r.Contains(Point{X: 20, Y: 20}) {
		t.Error("Expected edge and interior points to be contained")
	}
	if r.Contains(Point{X: 9.99, Y: 20}) || r.Contains(Point{X: 20, Y: 30.01}) {
		t.Error("Expected outside points not to be contained")
	}
}

func TestCornerNames(t *testing.T) {
	for _, c := range Corners {
		parsed, err := ParseCorner(c.String())
		if err != nil || parsed != c {
			t.Errorf("ParseCorner(%q) = %v, %v", c.String(), parsed, err)
		}
		if c.Opposite().Opposite() != c {
			t.Errorf("Opposite is not an involution for %s", c)
		}
	}
	if _, err := ParseCorner("middle"); err == nil {
		t.Error("Expected error for unknown corner")
	}
}
