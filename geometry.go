package retouch

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Background is painted under rotated content where the source does not reach.
var Background = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Rect is an axis-aligned region in buffer pixel coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// RectFromPoints returns the normalized rectangle spanned by two corners,
// whichever direction the drag went.
func RectFromPoints(a, b image.Point) Rect {
	return Rect{
		X:      min(a.X, b.X),
		Y:      min(a.Y, b.Y),
		Width:  abs(b.X - a.X),
		Height: abs(b.Y - a.Y),
	}
}

// Empty reports whether the rect has no area and cannot be committed.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Within reports whether r lies fully inside a w×h buffer.
func (r Rect) Within(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.Width <= w && r.Y+r.Height <= h
}

// Rectangle converts r to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Rotate turns the buffer clockwise by degrees about its centre and returns a
// new buffer sized to the rotated bounding box:
//
//	newW = |cos θ|·w + |sin θ|·h
//	newH = |sin θ|·w + |cos θ|·h
//
// Quarter turns are exact pixel permutations. Other angles are resampled
// bilinearly over a white background.
func Rotate(b *Buffer, degrees float64) *Buffer {
	if b.Empty() {
		return b.Clone()
	}
	norm := math.Mod(degrees, 360)
	if norm < 0 {
		norm += 360
	}
	switch norm {
	case 0:
		return b.Clone()
	case 90:
		return rotate90CW(b)
	case 180:
		return rotate180(b)
	case 270:
		return rotate270CW(b)
	}

	sin, cos := math.Sincos(degrees * math.Pi / 180)
	w, h := float64(b.Width), float64(b.Height)
	newW := max(int(math.Round(math.Abs(cos)*w+math.Abs(sin)*h)), 1)
	newH := max(int(math.Round(math.Abs(sin)*w+math.Abs(cos)*h)), 1)

	dst := NewBuffer(newW, newH)
	dst.Fill(Background)

	cx, cy := float64(newW)/2, float64(newH)/2
	s2d := f64.Aff3{
		cos, -sin, cx - (cos*w/2 - sin*h/2),
		sin, cos, cy - (sin*w/2 + cos*h/2),
	}
	xdraw.BiLinear.Transform(dst.Image(), s2d, b.Image(), b.Bounds(), xdraw.Over, nil)
	return dst
}

// FlipHorizontal mirrors the buffer's columns in place and returns it.
// Applying it twice restores the original content.
func FlipHorizontal(b *Buffer) *Buffer {
	mirrorColumns(b)
	return b
}

// Resize scales src uniformly to floor(w·scale)×floor(h·scale), never below
// one pixel per side. Callers pass the pristine source so repeated resizes do
// not compound. A non-positive scale returns a copy.
func Resize(src *Buffer, scale float64) *Buffer {
	if scale <= 0 || src.Empty() {
		return src.Clone()
	}
	w := max(int(math.Floor(float64(src.Width)*scale)), 1)
	h := max(int(math.Floor(float64(src.Height)*scale)), 1)
	return lanczosResize(src, w, h)
}

// ResizePercent is Resize with a percentage (e.g. 50 for half size).
func ResizePercent(src *Buffer, percent int) *Buffer {
	return Resize(src, float64(percent)/100)
}

// Crop extracts r into a new buffer of exactly r.Width×r.Height.
// Empty or out-of-bounds rects are rejected with ErrEmptySelection.
func Crop(b *Buffer, r Rect) (*Buffer, error) {
	if r.Empty() {
		return nil, ErrEmptySelection
	}
	if !r.Within(b.Width, b.Height) {
		return nil, fmt.Errorf("%w: %v outside %dx%d", ErrEmptySelection, r, b.Width, b.Height)
	}
	return bufferFromNRGBA(imaging.Crop(b.Image(), r.Rectangle())), nil
}

// FitWithin returns display dimensions that fit w×h inside maxW×maxH while
// preserving the aspect ratio. Images that already fit are unchanged.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	fw, fh := float64(w), float64(h)
	if fw > float64(maxW) {
		fh = fh * float64(maxW) / fw
		fw = float64(maxW)
	}
	if fh > float64(maxH) {
		fw = fw * float64(maxH) / fh
		fh = float64(maxH)
	}
	return int(fw), int(fh)
}

// PreviewWidth is the thumbnail width used for batch listings.
const PreviewWidth = 150

// Preview returns a thumbnail maxWidth pixels wide with proportional height.
func Preview(b *Buffer, maxWidth int) *Buffer {
	if b.Empty() || maxWidth <= 0 {
		return b.Clone()
	}
	h := max(int(math.Round(float64(b.Height)*float64(maxWidth)/float64(b.Width))), 1)
	return lanczosResize(b, maxWidth, h)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
