package interaction

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/georgepadayatti/signpad/geometry"
	"github.com/georgepadayatti/signpad/overlay"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	overlay    *overlay.Overlay
	target     *Dispatcher
	controller *Controller
	commits    int
	commitErr  error
}

// newFixture builds a controller over an editable 100x50 overlay at (100, 100).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 200, 100))))
	asset, err := overlay.NewAsset(buf.Bytes())
	require.NoError(t, err)

	f := &fixture{overlay: overlay.New(overlay.Options{}), target: NewDispatcher()}
	require.NoError(t, f.overlay.Create(asset, geometry.Point{X: 100, Y: 100}, asset.DefaultSize()))
	f.controller = NewController(f.overlay, f.target, func() error {
		f.commits++
		if f.commitErr == nil {
			f.overlay.Finalize()
		}
		return f.commitErr
	}, Options{})
	return f
}

func (f *fixture) listeners() int {
	return f.target.Count(PointerMoveEvent) + f.target.Count(PointerUpEvent)
}

func TestDrag(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.controller.PointerDown(geometry.Point{X: 150, Y: 120})
	require.NoError(t, err)
	if outcome != DragStarted || f.controller.State() != Dragging {
		t.Fatalf("Expected drag, got %s in %s", outcome, f.controller.State())
	}
	if f.listeners() != 2 {
		t.Fatalf("Expected 2 gesture listeners, got %d", f.listeners())
	}

	f.target.Dispatch(PointerMoveEvent, geometry.Point{X: 155, Y: 130})
	f.target.Dispatch(PointerMoveEvent, geometry.Point{X: 160, Y: 140})
	want := geometry.OverlayRect{X: 110, Y: 120, Width: 100, Height: 50}
	if diff := cmp.Diff(want, f.overlay.Rect()); diff != "" {
		t.Errorf("Rect mismatch (-want +got):\n%s", diff)
	}

	f.target.Dispatch(PointerUpEvent, geometry.Point{X: 160, Y: 140})
	if f.controller.State() != Idle {
		t.Errorf("Expected idle after pointer up, got %s", f.controller.State())
	}
	if f.listeners() != 0 {
		t.Errorf("Expected listeners released, %d remain", f.listeners())
	}

	// Moves after release have no effect.
	f.target.Dispatch(PointerMoveEvent, geometry.Point{X: 0, Y: 0})
	if diff := cmp.Diff(want, f.overlay.Rect()); diff != "" {
		t.Errorf("Rect changed after release (-want +got):\n%s", diff)
	}
}

func TestResize(t *testing.T) {
	tests := []struct {
		name   string
		down   geometry.Point
		move   geometry.Point
		corner geometry.Corner
		want   geometry.OverlayRect
	}{
		{"bottom-right", geometry.Point{X: 201, Y: 151}, geometry.Point{X: 221, Y: 161}, geometry.BottomRight,
			geometry.OverlayRect{X: 100, Y: 100, Width: 120, Height: 60}},
		{"top-left", geometry.Point{X: 99, Y: 99}, geometry.Point{X: 89, Y: 94}, geometry.TopLeft,
			geometry.OverlayRect{X: 90, Y: 95, Width: 110, Height: 55}},
		{"top-right collapses to minimum", geometry.Point{X: 200, Y: 100}, geometry.Point{X: 0, Y: 500}, geometry.TopRight,
			geometry.OverlayRect{X: 100, Y: 149, Width: 1, Height: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			outcome, err := f.controller.PointerDown(tt.down)
			require.NoError(t, err)
			if outcome != ResizeStarted {
				t.Fatalf("Expected resize, got %s", outcome)
			}
			corner, ok := f.controller.ResizeCorner()
			if !ok || corner != tt.corner {
				t.Fatalf("Expected corner %s, got %s (ok=%v)", tt.corner, corner, ok)
			}

			f.target.Dispatch(PointerMoveEvent, tt.move)
			if diff := cmp.Diff(tt.want, f.overlay.Rect()); diff != "" {
				t.Errorf("Rect mismatch (-want +got):\n%s", diff)
			}
			f.target.Dispatch(PointerUpEvent, tt.move)
			if _, ok := f.controller.ResizeCorner(); ok {
				t.Error("Expected no resize corner after release")
			}
			if f.listeners() != 0 {
				t.Errorf("Expected listeners released, %d remain", f.listeners())
			}
		})
	}
}

func TestPointerDownOutsideCommits(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.controller.PointerDown(geometry.Point{X: 10, Y: 10})
	require.NoError(t, err)
	if outcome != Committed || f.commits != 1 {
		t.Fatalf("Expected one commit, got %s with %d commits", outcome, f.commits)
	}
	if f.listeners() != 0 {
		t.Errorf("Expected no gesture listeners, got %d", f.listeners())
	}

	// The overlay is finalized now, so further presses do nothing.
	outcome, err = f.controller.PointerDown(geometry.Point{X: 10, Y: 10})
	require.NoError(t, err)
	if outcome != Ignored || f.commits != 1 {
		t.Errorf("Expected ignored press, got %s with %d commits", outcome, f.commits)
	}
}

func TestCommitErrorIsReturned(t *testing.T) {
	f := newFixture(t)
	f.commitErr = errors.New("embed failed")

	outcome, err := f.controller.PointerDown(geometry.Point{X: 500, Y: 500})
	if outcome != Committed || !errors.Is(err, f.commitErr) {
		t.Fatalf("Expected commit error, got %s, %v", outcome, err)
	}
	if !f.overlay.Editable() {
		t.Error("Expected overlay to stay editable after a failed commit")
	}

	// Retried on the next outside press.
	_, _ = f.controller.PointerDown(geometry.Point{X: 500, Y: 500})
	if f.commits != 2 {
		t.Errorf("Expected 2 commit attempts, got %d", f.commits)
	}
}

func TestPointerDownIgnored(t *testing.T) {
	t.Run("hidden overlay", func(t *testing.T) {
		f := newFixture(t)
		f.overlay.Discard()
		outcome, err := f.controller.PointerDown(geometry.Point{X: 10, Y: 10})
		require.NoError(t, err)
		if outcome != Ignored || f.commits != 0 {
			t.Errorf("Expected ignored press, got %s with %d commits", outcome, f.commits)
		}
	})

	t.Run("gesture running", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.controller.PointerDown(geometry.Point{X: 150, Y: 120})
		require.NoError(t, err)
		outcome, err := f.controller.PointerDown(geometry.Point{X: 10, Y: 10})
		require.NoError(t, err)
		if outcome != Ignored || f.commits != 0 {
			t.Errorf("Expected ignored press, got %s with %d commits", outcome, f.commits)
		}
		if f.listeners() != 2 {
			t.Errorf("Expected 2 listeners from the first gesture, got %d", f.listeners())
		}
	})

	t.Run("nil commit", func(t *testing.T) {
		f := newFixture(t)
		c := NewController(f.overlay, f.target, nil, Options{})
		outcome, err := c.PointerDown(geometry.Point{X: 10, Y: 10})
		require.NoError(t, err)
		if outcome != Ignored {
			t.Errorf("Expected ignored press, got %s", outcome)
		}
	})
}

func TestGestureAbortedWhenOverlayDiscarded(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.PointerDown(geometry.Point{X: 150, Y: 120})
	require.NoError(t, err)

	f.overlay.Discard()
	err = f.controller.PointerMove(geometry.Point{X: 160, Y: 130})
	if !errors.Is(err, overlay.ErrNotEditable) {
		t.Fatalf("Expected ErrNotEditable, got %v", err)
	}
	if f.controller.State() != Idle {
		t.Errorf("Expected idle, got %s", f.controller.State())
	}
	if f.listeners() != 0 {
		t.Errorf("Expected listeners released, %d remain", f.listeners())
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.PointerDown(geometry.Point{X: 201, Y: 151})
	require.NoError(t, err)

	f.controller.Cancel()
	f.controller.Cancel()
	f.target.Dispatch(PointerUpEvent, geometry.Point{})

	if f.controller.State() != Idle || f.listeners() != 0 {
		t.Errorf("Expected idle with no listeners, got %s with %d", f.controller.State(), f.listeners())
	}
}

func TestGestureReleaseOnce(t *testing.T) {
	calls := 0
	g := &gesture{removers: []func(){func() { calls++ }}}
	g.release()
	g.release()
	if calls != 1 {
		t.Errorf("Expected remover to run once, ran %d times", calls)
	}
}

func TestStrings(t *testing.T) {
	for _, tc := range []struct{ got, want string }{
		{Idle.String(), "idle"},
		{Resizing.String(), "resizing"},
		{State(9).String(), "State(9)"},
		{DragStarted.String(), "drag-started"},
		{Outcome(9).String(), "Outcome(9)"},
		{PointerUpEvent.String(), "pointerup"},
	} {
		if tc.got != tc.want {
			t.Errorf("got %q, want %q", tc.got, tc.want)
		}
	}
}
