// Package overlay holds the state of the on-screen signature before it is
// committed into the document.
package overlay

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/georgepadayatti/signpad/geometry"
	"github.com/georgepadayatti/signpad/pdf/images"
)

// Common errors
var (
	ErrNotEditable = errors.New("signature overlay is not editable")
	ErrImageDecode = errors.New("signature image cannot be decoded")
	ErrNoAsset     = errors.New("no signature asset")
)

// State is the selection state of an overlay.
type State int

const (
	// Hidden: nothing captured, or the capture was discarded.
	Hidden State = iota
	// Editable: visible with handles, can be dragged and resized.
	Editable
	// Finalized: committed into the document and removed from screen.
	Finalized
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Editable:
		return "editable"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Asset is a captured signature image. It is immutable once created.
type Asset struct {
	image         []byte
	NaturalWidth  int
	NaturalHeight int
}

// NewAsset copies img and reads its pixel dimensions.
func NewAsset(img []byte) (*Asset, error) {
	w, h, err := images.GetImageDimensions(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	return &Asset{image: bytes.Clone(img), NaturalWidth: w, NaturalHeight: h}, nil
}

// Image returns the encoded image. Callers must not modify it.
func (a *Asset) Image() []byte { return a.image }

// DefaultSize is half the natural size, which is how a fresh capture is
// first shown.
func (a *Asset) DefaultSize() Size {
	return Size{Width: float64(a.NaturalWidth) / 2, Height: float64(a.NaturalHeight) / 2}
}

// Size is a screen-space size in pixels.
type Size struct {
	Width, Height float64
}

// Options configures an Overlay.
type Options struct {
	// MinSize bounds width and height during resizes. Zero means
	// geometry.DefaultMinSize.
	MinSize float64
}

// Overlay tracks one signature on screen. It is not safe for concurrent
// use; the session serialises access.
type Overlay struct {
	opts  Options
	state State
	asset *Asset
	rect  geometry.OverlayRect
}

// New returns a hidden overlay.
func New(opts Options) *Overlay {
	if opts.MinSize <= 0 {
		opts.MinSize = geometry.DefaultMinSize
	}
	return &Overlay{opts: opts}
}

// Create shows asset at pos with the given size and makes it editable. Any
// previous uncommitted asset and rectangle are dropped; on a finalized
// overlay it starts a fresh signature.
func (o *Overlay) Create(asset *Asset, pos geometry.Point, size Size) error {
	if asset == nil {
		return ErrNoAsset
	}
	o.asset = asset
	o.rect = geometry.OverlayRect{
		X:      pos.X,
		Y:      pos.Y,
		Width:  max(o.opts.MinSize, size.Width),
		Height: max(o.opts.MinSize, size.Height),
	}
	o.state = Editable
	return nil
}

// MoveTo places the top-left corner at (x, y). Positions outside the page
// are allowed.
func (o *Overlay) MoveTo(x, y float64) error {
	if o.state != Editable {
		return fmt.Errorf("%w: move in state %s", ErrNotEditable, o.state)
	}
	o.rect.X, o.rect.Y = x, y
	return nil
}

// MoveBy shifts the overlay by (dx, dy).
func (o *Overlay) MoveBy(dx, dy float64) error {
	return o.MoveTo(o.rect.X+dx, o.rect.Y+dy)
}

// ResizeFrom drags corner c by (dx, dy), keeping the opposite corner fixed.
func (o *Overlay) ResizeFrom(c geometry.Corner, dx, dy float64) error {
	return o.ResizeFromBase(c, o.rect, dx, dy)
}

// ResizeFromBase applies a total drag of (dx, dy) to base, the rectangle
// captured when the gesture started. Applying totals rather than
// increments keeps a long gesture from drifting.
func (o *Overlay) ResizeFromBase(c geometry.Corner, base geometry.OverlayRect, dx, dy float64) error {
	if o.state != Editable {
		return fmt.Errorf("%w: resize in state %s", ErrNotEditable, o.state)
	}
	o.rect = geometry.ResizeRect(base, c, dx, dy, o.opts.MinSize)
	return nil
}

// Discard drops the asset and hides the overlay. It does nothing once the
// overlay is finalized.
func (o *Overlay) Discard() {
	if o.state == Finalized {
		return
	}
	o.asset = nil
	o.rect = geometry.OverlayRect{}
	o.state = Hidden
}

// Finalize marks an editable overlay as committed and reports whether the
// transition happened. Calling it when hidden or already finalized is a
// no-op returning false.
func (o *Overlay) Finalize() bool {
	if o.state != Editable {
		return false
	}
	o.asset = nil
	o.state = Finalized
	return true
}

// Rect returns the current screen rectangle.
func (o *Overlay) Rect() geometry.OverlayRect { return o.rect }

// Asset returns the current asset, nil when hidden or finalized.
func (o *Overlay) Asset() *Asset { return o.asset }

// State returns the selection state.
func (o *Overlay) State() State { return o.state }

// Editable reports whether the overlay can be moved or resized.
func (o *Overlay) Editable() bool { return o.state == Editable }
