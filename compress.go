package retouch

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
)

// DefaultQuality is the quality factor applied to new batch entries.
const DefaultQuality = 0.7

// ValidQuality reports whether q is a usable quality factor in (0, 1].
func ValidQuality(q float64) bool {
	return q > 0 && q <= 1 && !math.IsNaN(q)
}

// jpegQuality maps a quality factor in (0, 1] onto the encoder's 1..100 scale.
func jpegQuality(q float64) int {
	return min(max(int(math.Round(q*100)), 1), 100)
}

// Compress re-encodes b as a baseline JPEG at quality q. Size grows with q
// overall, but adjacent qualities can differ by a few bytes either way.
func Compress(b *Buffer, q float64) ([]byte, error) {
	if !ValidQuality(q) {
		return nil, fmt.Errorf("compress at %v: %w", q, ErrInvalidQuality)
	}
	if b.Empty() {
		return nil, fmt.Errorf("compress: %w", ErrNoImage)
	}
	var buf bytes.Buffer
	if err := encodeJPEG(&buf, b, jpegQuality(q)); err != nil {
		return nil, fmt.Errorf("retouch: jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeJPEG writes b as JPEG. Opaque buffers are handed to the encoder as
// RGBA, which skips its per-pixel premultiply.
func encodeJPEG(w io.Writer, b *Buffer, quality int) error {
	img := b.Image()
	if isOpaque(b.Pix) {
		rgba := &image.RGBA{
			Pix:    img.Pix,
			Stride: img.Stride,
			Rect:   img.Rect,
		}
		return jpeg.Encode(w, rgba, &jpeg.Options{Quality: quality})
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}
