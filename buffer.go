package retouch

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
)

// Buffer is a width×height grid of non-premultiplied RGBA8 samples stored
// row-major with no padding. len(Pix) == Width*Height*4 always holds for
// buffers produced by this package.
//
// Transforms that change dimensions return a new Buffer; the caller replaces
// its reference and must not keep using the old one.
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewBuffer allocates a zeroed (transparent black) buffer.
func NewBuffer(w, h int) *Buffer {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Buffer{Width: w, Height: h, Pix: make([]uint8, w*h*4)}
}

// NewBufferFrom copies any image into a new buffer, un-premultiplying alpha
// where needed.
func NewBufferFrom(img image.Image) *Buffer {
	return bufferFromNRGBA(toNRGBA(img))
}

// bufferFromNRGBA adopts the pixels of a tightly packed NRGBA image without
// copying. Images with padding or a non-zero origin are repacked.
func bufferFromNRGBA(img *image.NRGBA) *Buffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if b.Min == (image.Point{}) && img.Stride == w*4 && len(img.Pix) == w*h*4 {
		return &Buffer{Width: w, Height: h, Pix: img.Pix}
	}
	out := NewBuffer(w, h)
	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(out.Pix[y*w*4:(y+1)*w*4], src[:w*4])
	}
	return out
}

// Image returns an *image.NRGBA view that shares the buffer's pixels.
// Drawing into the view mutates the buffer.
func (b *Buffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Bounds returns the buffer rectangle anchored at the origin.
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Valid reports whether the pixel slice matches the dimensions.
func (b *Buffer) Valid() bool {
	return b != nil && b.Width >= 0 && b.Height >= 0 && len(b.Pix) == b.Width*b.Height*4
}

// Empty reports whether the buffer has no pixels.
func (b *Buffer) Empty() bool {
	return b.Width == 0 || b.Height == 0
}

// At returns the sample at (x, y). Out of range coordinates yield the zero color.
func (b *Buffer) At(x, y int) color.NRGBA {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.NRGBA{}
	}
	i := (y*b.Width + x) * 4
	return color.NRGBA{R: b.Pix[i], G: b.Pix[i+1], B: b.Pix[i+2], A: b.Pix[i+3]}
}

// Set writes the sample at (x, y). Out of range coordinates are ignored.
func (b *Buffer) Set(x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	i := (y*b.Width + x) * 4
	b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3] = c.R, c.G, c.B, c.A
}

// Fill paints every sample with c.
func (b *Buffer) Fill(c color.NRGBA) {
	for i := 0; i < len(b.Pix); i += 4 {
		b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}

// Equal reports whether both buffers have the same dimensions and samples.
func (b *Buffer) Equal(o *Buffer) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.Width == o.Width && b.Height == o.Height && bytes.Equal(b.Pix, o.Pix)
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%dx%d)", b.Width, b.Height)
}
