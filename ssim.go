package retouch

import (
	"math"
)

// SSIM constants from Wang et al.
const (
	ssimK1 = 0.01
	ssimK2 = 0.03
	ssimL  = 255.0
	ssimC1 = (ssimK1 * ssimL) * (ssimK1 * ssimL)
	ssimC2 = (ssimK2 * ssimL) * (ssimK2 * ssimL)

	ssimWindow = 8
	ssimMaxDim = 512
)

// SSIM returns the structural similarity of two buffers on BT.601 luminance,
// from 0 (unrelated) to 1 (identical). b is resampled to a's size when the
// dimensions differ, and both are box-downsampled to at most 512px per side.
func SSIM(a, b *Buffer) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}
	if a.Width != b.Width || a.Height != b.Height {
		b = lanczosResize(b, a.Width, a.Height)
	}

	w, h := a.Width, a.Height
	if w > ssimMaxDim || h > ssimMaxDim {
		scale := float64(ssimMaxDim) / float64(max(w, h))
		w = max(ssimWindow, int(math.Round(float64(w)*scale)))
		h = max(ssimWindow, int(math.Round(float64(h)*scale)))
		a = boxDownsample(a, w, h)
		b = boxDownsample(b, w, h)
	}

	la, lb := luminance(a), luminance(b)
	if w < ssimWindow || h < ssimWindow {
		return ssimStats(la, lb, nil)
	}
	return windowedSSIM(la, lb, w, h)
}

// windowedSSIM averages SSIM over every 8×8 Gaussian-weighted window.
func windowedSSIM(la, lb []float64, w, h int) float64 {
	kernel := gaussianKernel(ssimWindow, 1.5)

	rows := h - ssimWindow + 1
	cols := w - ssimWindow + 1
	rowSums := make([]float64, rows)

	parallelDo(0, rows, func(r int) {
		wa := make([]float64, ssimWindow*ssimWindow)
		wb := make([]float64, ssimWindow*ssimWindow)
		var sum float64
		for c := 0; c < cols; c++ {
			k := 0
			for y := r; y < r+ssimWindow; y++ {
				for x := c; x < c+ssimWindow; x++ {
					wa[k] = la[y*w+x]
					wb[k] = lb[y*w+x]
					k++
				}
			}
			sum += ssimStats(wa, wb, kernel)
		}
		rowSums[r] = sum
	})

	var total float64
	for _, s := range rowSums {
		total += s
	}
	return total / float64(rows*cols)
}

// ssimStats computes SSIM over two equally sized samples. A nil weights
// slice weighs every sample equally.
func ssimStats(a, b, weights []float64) float64 {
	n := len(a)
	if n == 0 {
		return 1
	}
	weight := func(i int) float64 {
		if weights == nil {
			return 1 / float64(n)
		}
		return weights[i]
	}

	var muA, muB float64
	for i := range a {
		muA += a[i] * weight(i)
		muB += b[i] * weight(i)
	}
	var sigAA, sigBB, sigAB float64
	for i := range a {
		da, db := a[i]-muA, b[i]-muB
		sigAA += da * da * weight(i)
		sigBB += db * db * weight(i)
		sigAB += da * db * weight(i)
	}

	num := (2*muA*muB + ssimC1) * (2*sigAB + ssimC2)
	den := (muA*muA + muB*muB + ssimC1) * (sigAA + sigBB + ssimC2)
	return num / den
}

func luminance(b *Buffer) []float64 {
	lum := make([]float64, b.Width*b.Height)
	for i := range lum {
		p := b.Pix[i*4 : i*4+3]
		lum[i] = 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
	}
	return lum
}

// gaussianKernel returns a normalized size×size Gaussian kernel.
func gaussianKernel(size int, sigma float64) []float64 {
	kernel := make([]float64, size*size)
	half := size / 2
	var sum float64
	i := 0
	for y := -half; y < size-half; y++ {
		for x := -half; x < size-half; x++ {
			v := math.Exp(-float64(x*x+y*y) / (2 * sigma * sigma))
			kernel[i] = v
			sum += v
			i++
		}
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// boxDownsample averages source blocks into a dstW×dstH buffer.
func boxDownsample(src *Buffer, dstW, dstH int) *Buffer {
	dst := NewBuffer(dstW, dstH)
	if src.Empty() || dst.Empty() {
		return dst
	}
	xRatio := float64(src.Width) / float64(dstW)
	yRatio := float64(src.Height) / float64(dstH)

	span := func(d int, ratio float64, limit int) (int, int) {
		lo := int(float64(d) * ratio)
		hi := min(int(float64(d+1)*ratio), limit)
		if lo >= hi {
			lo = max(hi-1, 0)
		}
		return lo, hi
	}

	for dy := 0; dy < dstH; dy++ {
		sy0, sy1 := span(dy, yRatio, src.Height)
		for dx := 0; dx < dstW; dx++ {
			sx0, sx1 := span(dx, xRatio, src.Width)
			var acc [4]float64
			var n float64
			for sy := sy0; sy < sy1; sy++ {
				for sx := sx0; sx < sx1; sx++ {
					off := (sy*src.Width + sx) * 4
					for c := range acc {
						acc[c] += float64(src.Pix[off+c])
					}
					n++
				}
			}
			if n == 0 {
				continue
			}
			off := (dy*dstW + dx) * 4
			for c := range acc {
				dst.Pix[off+c] = clampF(acc[c] / n)
			}
		}
	}
	return dst
}
