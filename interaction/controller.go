// Package interaction turns pointer events into drag, resize and commit
// actions on a signature overlay.
package interaction

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/georgepadayatti/signpad/geometry"
)

// State is the controller's gesture state.
type State int

const (
	Idle State = iota
	Dragging
	Resizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome says what a pointer-down did.
type Outcome int

const (
	// Ignored: no editable overlay, or a gesture is already running.
	Ignored Outcome = iota
	DragStarted
	ResizeStarted
	// Committed: the press was outside the overlay and the commit callback
	// ran. Its error, if any, is returned alongside.
	Committed
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case DragStarted:
		return "drag-started"
	case ResizeStarted:
		return "resize-started"
	case Committed:
		return "committed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Overlay is the part of the signature overlay the controller drives.
type Overlay interface {
	Editable() bool
	Rect() geometry.OverlayRect
	MoveTo(x, y float64) error
	ResizeFromBase(c geometry.Corner, base geometry.OverlayRect, dx, dy float64) error
}

// CommitFunc is called for a press outside an editable overlay.
type CommitFunc func() error

// DefaultHandleSize is the side of a corner handle in pixels.
const DefaultHandleSize = 10.0

// Options configures a Controller.
type Options struct {
	// HandleSize is the side of the square hit area centred on each corner.
	HandleSize float64
	Logger     *slog.Logger
}

// Controller runs one gesture at a time over an overlay. Move and up events
// for a gesture arrive through listeners it registers on the pointer target
// when the gesture starts and removes when it ends.
type Controller struct {
	mu      sync.Mutex
	overlay Overlay
	target  PointerTarget
	commit  CommitFunc
	opts    Options

	state   State
	gesture *gesture
}

// NewController creates an idle controller.
func NewController(ov Overlay, target PointerTarget, commit CommitFunc, opts Options) *Controller {
	if opts.HandleSize <= 0 {
		opts.HandleSize = DefaultHandleSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{overlay: ov, target: target, commit: commit, opts: opts}
}

// State returns the current gesture state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ResizeCorner returns the dragged corner while resizing.
func (c *Controller) ResizeCorner() (geometry.Corner, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Resizing {
		return 0, false
	}
	return c.gesture.corner, true
}

// PointerDown handles a press at p. A corner handle starts a resize and
// takes precedence over the body; the body starts a drag; anything else
// while the overlay is editable commits it.
func (c *Controller) PointerDown(p geometry.Point) (Outcome, error) {
	c.mu.Lock()
	if c.state != Idle || !c.overlay.Editable() {
		c.mu.Unlock()
		return Ignored, nil
	}

	rect := c.overlay.Rect()
	if corner, ok := geometry.HitCorner(rect, p, c.opts.HandleSize); ok {
		c.begin(&gesture{kind: Resizing, corner: corner, start: p, base: rect})
		c.mu.Unlock()
		c.opts.Logger.Debug("resize started", slog.String("corner", corner.String()))
		return ResizeStarted, nil
	}
	if rect.Contains(p) {
		c.begin(&gesture{kind: Dragging, offset: p.Sub(rect.Origin())})
		c.mu.Unlock()
		c.opts.Logger.Debug("drag started")
		return DragStarted, nil
	}
	c.mu.Unlock()

	// The commit may take a while; it runs unlocked so moves during it are
	// rejected by the overlay rather than queued here.
	if c.commit == nil {
		return Ignored, nil
	}
	return Committed, c.commit()
}

// PointerMove repositions or resizes the overlay for the running gesture.
// Drags place the overlay absolutely from the pointer so rounding never
// accumulates.
func (c *Controller) PointerMove(p geometry.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch c.state {
	case Dragging:
		origin := p.Sub(c.gesture.offset)
		err = c.overlay.MoveTo(origin.X, origin.Y)
	case Resizing:
		d := p.Sub(c.gesture.start)
		err = c.overlay.ResizeFromBase(c.gesture.corner, c.gesture.base, d.X, d.Y)
	default:
		return nil
	}
	if err != nil {
		state := c.state
		c.end()
		return fmt.Errorf("%s aborted: %w", state, err)
	}
	return nil
}

// PointerUp ends any gesture.
func (c *Controller) PointerUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.end()
}

// Cancel ends any gesture without further changes to the overlay.
func (c *Controller) Cancel() {
	c.PointerUp()
}

// begin must be called with c.mu held.
func (c *Controller) begin(g *gesture) {
	c.gesture = g
	c.state = g.kind
	if c.target == nil {
		return
	}
	g.removers = append(g.removers,
		c.target.Listen(PointerMoveEvent, func(p geometry.Point) {
			if err := c.PointerMove(p); err != nil {
				c.opts.Logger.Warn("gesture aborted", slog.Any("error", err))
			}
		}),
		c.target.Listen(PointerUpEvent, func(geometry.Point) { c.PointerUp() }),
	)
}

// end must be called with c.mu held.
func (c *Controller) end() {
	if c.gesture != nil {
		c.gesture.release()
		c.gesture = nil
	}
	c.state = Idle
}

// gesture owns the listeners registered for one press-move-release cycle.
type gesture struct {
	kind   State
	corner geometry.Corner
	start  geometry.Point
	base   geometry.OverlayRect
	offset geometry.Point

	removers []func()
	once     sync.Once
}

// release removes the gesture's listeners. Only the first call has effect.
func (g *gesture) release() {
	g.once.Do(func() {
		for _, remove := range g.removers {
			remove()
		}
		g.removers = nil
	})
}
