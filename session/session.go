// Package session ties a loaded document, a signature pad and a document
// viewer to one signature overlay, and commits the overlay into the
// document.
//
// The session keeps two copies of the document: the bytes as loaded and the
// bytes after the most recent commit. A failed commit changes neither the
// overlay nor the current bytes. RemoveSignature reverts to the loaded
// bytes, dropping every committed signature at once.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/georgepadayatti/signpad/geometry"
	"github.com/georgepadayatti/signpad/interaction"
	"github.com/georgepadayatti/signpad/overlay"
	"github.com/georgepadayatti/signpad/stamp"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrNoDocument          = errors.New("no document loaded")
	ErrEmptySignature      = errors.New("signature pad is empty")
	ErrElementNotFound     = errors.New("required element not found")
	ErrGeometryUnavailable = errors.New("page geometry unavailable")
	ErrCommitInProgress    = errors.New("commit already in progress")
)

// EmptySignatureWarning is logged when saving a blank pad.
const EmptySignatureWarning = "Signature Pad is empty!"

// Pad is a signature capture surface.
type Pad interface {
	IsEmpty() bool
	ExportPNG() ([]byte, error)
	Clear()
}

// Viewer reports what the document viewer currently shows. Pages are
// numbered from 1. RenderedSize and ContainerOffset return false while the
// viewer cannot answer, e.g. before the page is rendered.
type Viewer interface {
	CurrentPage() int
	RenderedSize(page int) (width, height float64, ok bool)
	ContainerOffset() (geometry.Point, bool)
}

// Editor embeds an image into a page. *stamp.Editor implements it.
type Editor interface {
	EmbedImage(ctx context.Context, doc []byte, pageIndex int, img []byte, p geometry.PlacementRect) ([]byte, error)
}

// Snapshot holds the loaded document and its current, possibly signed,
// version. Both are always loadable documents.
type Snapshot struct {
	Original []byte
	Current  []byte
}

// Config configures a Session.
type Config struct {
	// DefaultPosition is where a new capture appears.
	DefaultPosition geometry.Point
	// DefaultSize is the initial overlay size. Zero uses half the captured
	// image's natural size.
	DefaultSize overlay.Size
	// MinSize is the smallest overlay width or height in pixels.
	MinSize float64
	// HandleSize is the side of a corner resize handle in pixels.
	HandleSize float64
	// DownloadSuffix is appended to the uploaded base name.
	DownloadSuffix string
	// ClampPageIndex commits to the last page when the viewer reports a
	// page past the end. Otherwise such commits fail.
	ClampPageIndex bool
	// Target receives gesture listeners. Nil uses a private Dispatcher.
	Target interaction.PointerTarget
}

// DefaultConfig returns the defaults used for zero Config fields.
func DefaultConfig() Config {
	return Config{
		DefaultPosition: geometry.Point{X: 100, Y: 100},
		MinSize:         geometry.DefaultMinSize,
		HandleSize:      interaction.DefaultHandleSize,
		DownloadSuffix:  "_signed",
		ClampPageIndex:  true,
	}
}

// Session is safe for concurrent use, though it is usually driven from a
// single event loop.
type Session struct {
	mu     sync.Mutex
	id     uuid.UUID
	editor Editor
	viewer Viewer
	cfg    Config
	logger *slog.Logger

	snapshot  *Snapshot
	name      string
	pageCount int
	page      int

	geomPage int
	geom     *geometry.PageGeometry

	overlay    *overlay.Overlay
	pad        Pad
	committing bool
	signed     bool

	controller *interaction.Controller
}

// New creates a session with no document loaded.
func New(editor Editor, viewer Viewer, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	def := DefaultConfig()
	if cfg.MinSize <= 0 {
		cfg.MinSize = def.MinSize
	}
	if cfg.HandleSize <= 0 {
		cfg.HandleSize = def.HandleSize
	}
	if cfg.DownloadSuffix == "" {
		cfg.DownloadSuffix = def.DownloadSuffix
	}
	if cfg.Target == nil {
		cfg.Target = interaction.NewDispatcher()
	}

	id := uuid.New()
	s := &Session{
		id:      id,
		editor:  editor,
		viewer:  viewer,
		cfg:     cfg,
		logger:  logger.With(slog.String("session", id.String())),
		page:    1,
		overlay: overlay.New(overlay.Options{MinSize: cfg.MinSize}),
	}
	s.controller = interaction.NewController(guardedOverlay{s}, cfg.Target, func() error {
		return s.Commit(context.Background())
	}, interaction.Options{HandleSize: cfg.HandleSize, Logger: s.logger})
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// Controller returns the pointer controller bound to this session's
// overlay. A press outside the overlay commits it.
func (s *Session) Controller() *interaction.Controller { return s.controller }

// Load replaces the session's document. Any overlay is discarded and the
// page resets to 1.
func (s *Session) Load(name string, doc []byte) error {
	count, err := stamp.PageCount(doc)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: document has no pages", stamp.ErrDocumentDecode)
	}

	s.mu.Lock()
	if s.committing {
		s.mu.Unlock()
		return ErrCommitInProgress
	}
	doc = bytes.Clone(doc)
	s.snapshot = &Snapshot{Original: doc, Current: doc}
	s.name = name
	s.pageCount = count
	s.page = 1
	s.signed = false
	s.geom = nil
	s.overlay = overlay.New(overlay.Options{MinSize: s.cfg.MinSize})
	s.mu.Unlock()

	s.controller.Cancel()
	s.logger.Info("document loaded", slog.String("name", name), slog.Int("pages", count), slog.Int("bytes", len(doc)))
	return nil
}

// SetPage records that the viewer now shows page n. Cached geometry is
// dropped. An editable overlay stays where it is on screen and is placed on
// the new page when committed.
func (s *Session) SetPage(n int) {
	s.mu.Lock()
	changed := n != s.page
	if changed {
		s.page = n
		s.geom = nil
	}
	s.mu.Unlock()

	if changed {
		s.controller.Cancel()
		s.logger.Debug("page changed", slog.Int("page", n))
	}
}

// Page returns the current 1-based page number.
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// InvalidateGeometry drops cached page geometry, e.g. after a zoom.
func (s *Session) InvalidateGeometry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geom = nil
}

// MountPad attaches the capture surface once it is ready for input.
func (s *Session) MountPad(pad Pad) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pad = pad
}

// ClearPad wipes the pad's strokes.
func (s *Session) ClearPad() error {
	s.mu.Lock()
	pad := s.pad
	s.mu.Unlock()
	if pad == nil {
		return fmt.Errorf("%w: signature pad not mounted", ErrElementNotFound)
	}
	pad.Clear()
	return nil
}

// ClosePad clears and detaches the pad. Closing an unmounted pad is a
// no-op.
func (s *Session) ClosePad() {
	s.mu.Lock()
	pad := s.pad
	s.pad = nil
	s.mu.Unlock()
	if pad != nil {
		pad.Clear()
	}
}

// SaveSignature turns the pad's drawing into a new editable overlay,
// replacing any uncommitted one. A blank pad is logged and reported as
// ErrEmptySignature without changing anything.
func (s *Session) SaveSignature() error {
	s.mu.Lock()
	pad := s.pad
	switch {
	case s.snapshot == nil:
		s.mu.Unlock()
		return ErrNoDocument
	case s.committing:
		s.mu.Unlock()
		return ErrCommitInProgress
	case pad == nil:
		s.mu.Unlock()
		return fmt.Errorf("%w: signature pad not mounted", ErrElementNotFound)
	}
	s.mu.Unlock()

	if pad.IsEmpty() {
		s.logger.Warn(EmptySignatureWarning)
		return ErrEmptySignature
	}
	png, err := pad.ExportPNG()
	if err != nil {
		return fmt.Errorf("export signature: %w", err)
	}
	asset, err := overlay.NewAsset(png)
	if err != nil {
		return err
	}
	size := s.cfg.DefaultSize
	if size.Width <= 0 || size.Height <= 0 {
		size = asset.DefaultSize()
	}

	s.controller.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committing {
		return ErrCommitInProgress
	}
	if err := s.overlay.Create(asset, s.cfg.DefaultPosition, size); err != nil {
		return err
	}
	s.logger.Debug("signature captured",
		slog.Int("width", asset.NaturalWidth),
		slog.Int("height", asset.NaturalHeight))
	return nil
}

// Place moves and resizes the editable overlay to r.
func (s *Session) Place(r geometry.OverlayRect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committing {
		return ErrCommitInProgress
	}
	if err := s.overlay.MoveTo(r.X, r.Y); err != nil {
		return err
	}
	cur := s.overlay.Rect()
	return s.overlay.ResizeFrom(geometry.BottomRight, r.Width-cur.Width, r.Height-cur.Height)
}

// DiscardSignature throws away the uncommitted overlay and its image. The
// document bytes are not touched and a finalized overlay is left alone.
func (s *Session) DiscardSignature() error {
	s.mu.Lock()
	committing := s.committing
	s.mu.Unlock()
	if committing {
		return ErrCommitInProgress
	}

	s.controller.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committing {
		return ErrCommitInProgress
	}
	if s.overlay.State() == overlay.Editable {
		s.overlay.Discard()
		s.logger.Debug("signature discarded")
	}
	return nil
}

// Overlay returns the overlay's rectangle and state.
func (s *Session) Overlay() (geometry.OverlayRect, overlay.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.Rect(), s.overlay.State()
}

// Commit embeds the editable overlay into the current page. Without an
// editable overlay it does nothing. On failure the overlay stays editable
// and the document bytes are unchanged.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	if s.snapshot == nil {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if s.committing {
		s.mu.Unlock()
		return ErrCommitInProgress
	}
	if !s.overlay.Editable() {
		s.mu.Unlock()
		return nil
	}
	job, err := s.prepareCommit()
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("commit aborted", slog.Any("error", err))
		return err
	}
	s.committing = true
	s.mu.Unlock()

	out, err := s.editor.EmbedImage(ctx, job.doc, job.pageIndex, job.image, job.placement)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.committing = false
	if err != nil {
		s.logger.Warn("commit failed", slog.Int("page", job.pageIndex+1), slog.Any("error", err))
		return fmt.Errorf("commit signature: %w", err)
	}
	s.snapshot.Current = out
	s.signed = true
	s.overlay.Finalize()
	s.logger.Info("signature committed",
		slog.Int("page", job.pageIndex+1),
		slog.String("placement", job.placement.String()),
		slog.Int("bytes", len(out)))
	return nil
}

type commitJob struct {
	doc       []byte
	pageIndex int
	image     []byte
	placement geometry.PlacementRect
}

// prepareCommit must be called with s.mu held.
func (s *Session) prepareCommit() (commitJob, error) {
	if page := s.viewer.CurrentPage(); page != s.page {
		s.page = page
		s.geom = nil
	}
	offset, ok := s.viewer.ContainerOffset()
	if !ok {
		return commitJob{}, fmt.Errorf("%w: document container", ErrElementNotFound)
	}
	idx, err := s.pageIndex()
	if err != nil {
		return commitJob{}, err
	}
	g, err := s.pageGeometry(idx + 1)
	if err != nil {
		return commitJob{}, err
	}
	placement, err := geometry.ToPdfSpace(s.overlay.Rect(), offset, g)
	if err != nil {
		return commitJob{}, err
	}
	return commitJob{
		doc:       s.snapshot.Current,
		pageIndex: idx,
		image:     s.overlay.Asset().Image(),
		placement: placement,
	}, nil
}

// pageIndex converts the viewer's page number into a page index, clamping
// it into range when configured to.
func (s *Session) pageIndex() (int, error) {
	idx := s.page - 1
	if idx >= 0 && idx < s.pageCount {
		return idx, nil
	}
	if !s.cfg.ClampPageIndex {
		return 0, &stamp.PageRangeError{Index: idx, Count: s.pageCount}
	}
	clamped := min(max(idx, 0), s.pageCount-1)
	s.logger.Warn("page out of range, clamped",
		slog.Int("page", s.page),
		slog.Int("pages", s.pageCount),
		slog.Int("using", clamped+1))
	return clamped, nil
}

// pageGeometry returns the geometry of 1-based page, measuring it if the
// cache holds another page. Must be called with s.mu held.
func (s *Session) pageGeometry(page int) (geometry.PageGeometry, error) {
	if s.geom != nil && s.geomPage == page {
		return *s.geom, nil
	}
	rw, rh, ok := s.viewer.RenderedSize(page)
	if !ok {
		return geometry.PageGeometry{}, fmt.Errorf("%w: page %d not rendered", ErrGeometryUnavailable, page)
	}
	w, h, err := stamp.PageSize(s.snapshot.Current, page-1)
	if err != nil {
		return geometry.PageGeometry{}, err
	}
	g := geometry.PageGeometry{
		WidthPoints:          w,
		HeightPoints:         h,
		RenderedWidthPixels:  rw,
		RenderedHeightPixels: rh,
	}
	if err := g.Validate(); err != nil {
		return geometry.PageGeometry{}, err
	}
	s.geom, s.geomPage = &g, page
	return g, nil
}

// RemoveSignature reverts the document to the bytes it was loaded with.
func (s *Session) RemoveSignature() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return ErrNoDocument
	}
	if s.committing {
		return ErrCommitInProgress
	}
	s.snapshot.Current = s.snapshot.Original
	s.signed = false
	s.logger.Info("signatures removed")
	return nil
}

// Signed reports whether the current bytes carry a committed signature.
func (s *Session) Signed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signed
}

// Bytes returns a copy of the current document, or nil before Load.
func (s *Session) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil
	}
	return bytes.Clone(s.snapshot.Current)
}

// Snapshot returns copies of the loaded and current documents.
func (s *Session) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return Snapshot{}, ErrNoDocument
	}
	return Snapshot{
		Original: bytes.Clone(s.snapshot.Original),
		Current:  bytes.Clone(s.snapshot.Current),
	}, nil
}

// DownloadName returns the file name to offer the current bytes under.
func (s *Session) DownloadName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return downloadName(s.name, s.cfg.DownloadSuffix)
}

// guardedOverlay gives the controller locked access to the session's
// overlay and makes it read-only while a commit is running.
type guardedOverlay struct{ s *Session }

func (g guardedOverlay) Editable() bool {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	return !g.s.committing && g.s.overlay.Editable()
}

func (g guardedOverlay) Rect() geometry.OverlayRect {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	return g.s.overlay.Rect()
}

func (g guardedOverlay) MoveTo(x, y float64) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if g.s.committing {
		return ErrCommitInProgress
	}
	return g.s.overlay.MoveTo(x, y)
}

func (g guardedOverlay) ResizeFromBase(c geometry.Corner, base geometry.OverlayRect, dx, dy float64) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if g.s.committing {
		return ErrCommitInProgress
	}
	return g.s.overlay.ResizeFromBase(c, base, dx, dy)
}
