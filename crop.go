package retouch

import (
	"image"
	"image/color"
	"math"
)

// CropState is a phase of an interactive crop.
type CropState int

const (
	CropIdle CropState = iota
	CropSelecting
	CropSelected
	CropApplied
	CropCancelled
)

func (s CropState) String() string {
	switch s {
	case CropIdle:
		return "idle"
	case CropSelecting:
		return "selecting"
	case CropSelected:
		return "selected"
	case CropApplied:
		return "applied"
	case CropCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PointerKind identifies a pointer event.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
	// PointerLeave is sent when the pointer exits the surface; it ends a
	// drag like PointerUp.
	PointerLeave
)

// PointerEvent is one pointer sample in buffer pixel coordinates.
type PointerEvent struct {
	Kind PointerKind
	X, Y float64
}

// Point returns the event position truncated to whole pixels.
func (e PointerEvent) Point() image.Point {
	return image.Pt(int(math.Floor(e.X)), int(math.Floor(e.Y)))
}

// Overlay styling for the live crop preview.
const (
	overlayDim     = 0.3
	overlayDash    = 5
	overlayOutline = 2
)

var overlayColor = color.NRGBA{R: 0xff, A: 0xff}

// Cropper turns a stream of pointer events over a w×h buffer into a crop
// rectangle. A Cropper starts in CropSelecting and returns to CropIdle once
// applied or cancelled; the release func passed to NewCropper runs exactly
// once at that point.
type Cropper struct {
	width, height int

	state    CropState
	dragging bool
	anchor   image.Point
	rect     Rect

	release func()
}

// NewCropper begins a crop over a w×h buffer.
func NewCropper(w, h int, release func()) *Cropper {
	return &Cropper{width: w, height: h, state: CropSelecting, release: release}
}

// State returns the current phase.
func (c *Cropper) State() CropState { return c.state }

// Rect returns the current selection. It is empty until a drag covers area.
func (c *Cropper) Rect() Rect { return c.rect }

// Active reports whether the crop has not yet been applied or cancelled.
func (c *Cropper) Active() bool {
	return c.state == CropSelecting || c.state == CropSelected
}

// CanApply reports whether Apply would commit a crop.
func (c *Cropper) CanApply() bool {
	return c.state == CropSelected && !c.rect.Empty()
}

// Handle advances the state machine by one pointer event. Events after the
// crop has finished are ignored.
func (c *Cropper) Handle(ev PointerEvent) {
	if !c.Active() {
		return
	}
	p := c.clamp(ev.Point())
	switch ev.Kind {
	case PointerDown:
		c.state = CropSelecting
		c.dragging = true
		c.anchor = p
		c.rect = Rect{X: p.X, Y: p.Y}
	case PointerMove:
		if c.dragging {
			c.rect = RectFromPoints(c.anchor, p)
		}
	case PointerUp, PointerLeave:
		if !c.dragging {
			return
		}
		c.dragging = false
		if !c.rect.Empty() {
			c.state = CropSelected
		}
	}
}

// Apply crops b to the selected rectangle and ends the crop. Without a
// selection it returns ErrEmptySelection and the crop stays open.
func (c *Cropper) Apply(b *Buffer) (*Buffer, error) {
	if !c.Active() {
		return nil, ErrNotCropping
	}
	if !c.CanApply() {
		return nil, ErrEmptySelection
	}
	out, err := Crop(b, c.rect)
	if err != nil {
		return nil, err
	}
	c.finish(CropApplied)
	return out, nil
}

// Cancel discards the selection and ends the crop.
func (c *Cropper) Cancel() {
	if c.Active() {
		c.finish(CropCancelled)
	}
}

func (c *Cropper) finish(terminal CropState) {
	Logger().Debug("crop finished", "state", terminal, "rect", c.rect)
	c.dragging = false
	c.rect = Rect{}
	c.state = CropIdle
	if c.release != nil {
		c.release()
		c.release = nil
	}
}

func (c *Cropper) clamp(p image.Point) image.Point {
	return image.Pt(min(max(p.X, 0), c.width), min(max(p.Y, 0), c.height))
}

// Overlay renders the live crop preview: a copy of src dimmed outside the
// selection with a dashed outline around it. src is not modified.
func (c *Cropper) Overlay(src *Buffer) *image.NRGBA {
	dst := src.Clone()
	r := c.rect
	if r.Empty() || !c.Active() {
		return dst.Image()
	}
	sel := r.Rectangle()
	black := color.NRGBA{A: 0xff}
	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			if image.Pt(x, y).In(sel) {
				continue
			}
			i := (y*dst.Width + x) * 4
			blendOver(dst.Pix[i:i+4], black, overlayDim)
		}
	}
	drawDashedRect(dst, sel, overlayColor)
	return dst.Image()
}

// drawDashedRect strokes the border of r with alternating dashes.
func drawDashedRect(b *Buffer, r image.Rectangle, c color.NRGBA) {
	dashed := func(i int) bool { return (i/overlayDash)%2 == 0 }
	for t := 0; t < overlayOutline; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if dashed(x - r.Min.X) {
				b.Set(x, r.Min.Y+t, c)
				b.Set(x, r.Max.Y-1-t, c)
			}
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			if dashed(y - r.Min.Y) {
				b.Set(r.Min.X+t, y, c)
				b.Set(r.Max.X-1-t, y, c)
			}
		}
	}
}
