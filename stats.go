package retouch

import (
	"fmt"
	"math"
)

// ImageStats summarizes a buffer's tonal content.
type ImageStats struct {
	Width, Height int

	// Opaque is false when any pixel has alpha below 255.
	Opaque bool

	// Grayscale is true when every pixel has R == G == B.
	Grayscale bool

	// MeanBrightness is the average luminance (0-255).
	MeanBrightness float64

	// Contrast is the standard deviation of luminance.
	Contrast float64

	// Entropy of the luminance histogram in bits (0-8).
	Entropy float64

	// EdgeDensity is the fraction of sampled pixels on a Sobel edge (0-1).
	EdgeDensity float64
}

func (s ImageStats) String() string {
	return fmt.Sprintf("%dx%d brightness %.1f contrast %.1f entropy %.2f edges %.1f%%",
		s.Width, s.Height, s.MeanBrightness, s.Contrast, s.Entropy, s.EdgeDensity*100)
}

// edgeThreshold is the Sobel magnitude above which a pixel counts as an edge.
const edgeThreshold = 30.0

// Analyze computes ImageStats for b. An empty buffer yields only its
// dimensions.
func Analyze(b *Buffer) ImageStats {
	st := ImageStats{Width: b.Width, Height: b.Height}
	if b.Empty() {
		return st
	}

	lum := luminance(b)
	var hist [256]float64
	var sum float64
	gray := true
	for i, l := range lum {
		sum += l
		hist[int(l+0.5)]++
		p := b.Pix[i*4 : i*4+3]
		if p[0] != p[1] || p[1] != p[2] {
			gray = false
		}
	}
	n := float64(len(lum))
	st.Opaque = isOpaque(b.Pix)
	st.Grayscale = gray
	st.MeanBrightness = sum / n

	var variance float64
	for _, l := range lum {
		d := l - st.MeanBrightness
		variance += d * d
	}
	st.Contrast = math.Sqrt(variance / n)

	for _, c := range hist {
		if c > 0 {
			p := c / n
			st.Entropy -= p * math.Log2(p)
		}
	}
	st.EdgeDensity = edgeDensity(lum, b.Width, b.Height)
	return st
}

// edgeDensity samples at most ~200×200 interior pixels.
func edgeDensity(lum []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	stepX := max(1, w/200)
	stepY := max(1, h/200)
	at := func(x, y int) float64 { return lum[y*w+x] }

	var edges, total int
	for y := 1; y < h-1; y += stepY {
		for x := 1; x < w-1; x += stepX {
			gx := at(x+1, y-1) - at(x-1, y-1) +
				2*at(x+1, y) - 2*at(x-1, y) +
				at(x+1, y+1) - at(x-1, y+1)
			gy := at(x-1, y+1) - at(x-1, y-1) +
				2*at(x, y+1) - 2*at(x, y-1) +
				at(x+1, y+1) - at(x+1, y-1)
			if math.Hypot(gx, gy) > edgeThreshold {
				edges++
			}
			total++
		}
	}
	return float64(edges) / float64(total)
}
