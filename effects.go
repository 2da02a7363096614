package retouch

import "math"

// sharpen applies an unsharp mask against a 1-2-1 blur. strength is clamped
// to [0, 1]; zero returns a copy.
func sharpen(b *Buffer, strength float64) *Buffer {
	strength = math.Min(strength, 1)
	if strength <= 0 || b.Width < 3 || b.Height < 3 {
		return b.Clone()
	}
	soft := convolve(b, []float64{0.25, 0.5, 0.25})
	amount := 1 + strength*1.5

	out := NewBuffer(b.Width, b.Height)
	parallelDo(0, b.Height, func(y int) {
		row := y * b.Width * 4
		for i := row; i < row+b.Width*4; i += 4 {
			for c := range 3 {
				v := float64(b.Pix[i+c])
				out.Pix[i+c] = clampF(v + amount*(v-float64(soft.Pix[i+c])))
			}
			out.Pix[i+3] = b.Pix[i+3]
		}
	})
	return out
}

// blur applies a Gaussian of the given sigma.
func blur(b *Buffer, sigma float64) *Buffer {
	if sigma <= 0 || b.Empty() {
		return b.Clone()
	}
	radius := int(math.Ceil(sigma * 3))
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return convolve(b, kernel)
}

// convolve runs an odd-length normalized kernel horizontally then
// vertically over all four channels. Samples past the border repeat the
// edge pixel.
func convolve(b *Buffer, kernel []float64) *Buffer {
	w, h := b.Width, b.Height
	r := len(kernel) / 2

	pass := func(src, dst *Buffer, n, lines int, at func(line, i int) int) {
		parallelDo(0, lines, func(line int) {
			for i := range n {
				var acc [4]float64
				for k, wt := range kernel {
					off := at(line, min(max(i+k-r, 0), n-1))
					for c := range 4 {
						acc[c] += float64(src.Pix[off+c]) * wt
					}
				}
				off := at(line, i)
				for c := range 4 {
					dst.Pix[off+c] = clampF(acc[c])
				}
			}
		})
	}

	tmp := NewBuffer(w, h)
	pass(b, tmp, w, h, func(y, x int) int { return (y*w + x) * 4 })
	out := NewBuffer(w, h)
	pass(tmp, out, h, w, func(x, y int) int { return (y*w + x) * 4 })
	return out
}
