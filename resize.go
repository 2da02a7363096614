package retouch

import (
	"image"
	"math"
	"runtime"
	"sync"
)

// lanczosResize resamples src to dstW×dstH with a two-pass separable
// Lanczos-3 filter, interpolating in premultiplied alpha.
func lanczosResize(src *Buffer, dstW, dstH int) *Buffer {
	if src.Empty() || dstW <= 0 || dstH <= 0 {
		return NewBuffer(max(dstW, 0), max(dstH, 0))
	}
	if src.Width == dstW && src.Height == dstH {
		return src.Clone()
	}
	tmp := resizeH(src.Image(), dstW)
	return bufferFromNRGBA(resizeV(tmp, dstH))
}

const lanczosA = 3.0 // Lanczos-3 kernel support

func lanczosKernel(x float64) float64 {
	if x == 0 {
		return 1.0
	}
	if x < 0 {
		x = -x
	}
	if x >= lanczosA {
		return 0.0
	}
	xpi := x * math.Pi
	return (lanczosA * math.Sin(xpi) * math.Sin(xpi/lanczosA)) / (xpi * xpi)
}

type tap struct {
	index  int
	weight float64
}

// lanczosTaps precomputes normalized filter taps for each destination
// coordinate along one axis.
func lanczosTaps(srcLen, dstLen int) [][]tap {
	ratio := float64(srcLen) / float64(dstLen)
	support := lanczosA
	if ratio > 1 {
		support = lanczosA * ratio
	}
	scale := math.Max(ratio, 1.0)

	taps := make([][]tap, dstLen)
	for d := 0; d < dstLen; d++ {
		center := (float64(d)+0.5)*ratio - 0.5
		lo := max(int(math.Ceil(center-support)), 0)
		hi := min(int(math.Floor(center+support)), srcLen-1)

		var wsum float64
		entries := make([]tap, 0, hi-lo+1)
		for s := lo; s <= hi; s++ {
			w := lanczosKernel((float64(s) - center) / scale)
			if w != 0 {
				wsum += w
				entries = append(entries, tap{s, w})
			}
		}
		if wsum != 0 {
			for i := range entries {
				entries[i].weight /= wsum
			}
		}
		taps[d] = entries
	}
	return taps
}

// accumulate folds the weighted samples at the given byte offsets into
// dst[off:off+4].
func accumulate(dst []uint8, off int, pix []uint8, taps []tap, offset func(i int) int) {
	var r, g, b, a float64
	for _, t := range taps {
		o := offset(t.index)
		aw := float64(pix[o+3]) * t.weight
		r += float64(pix[o]) * aw
		g += float64(pix[o+1]) * aw
		b += float64(pix[o+2]) * aw
		a += aw
	}
	if a != 0 {
		inv := 1.0 / a
		dst[off] = clampF(r * inv)
		dst[off+1] = clampF(g * inv)
		dst[off+2] = clampF(b * inv)
		dst[off+3] = clampF(a)
	}
}

// resizeH performs the horizontal pass; rows run in parallel.
func resizeH(src *image.NRGBA, dstW int) *image.NRGBA {
	srcW, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, dstW, h))
	taps := lanczosTaps(srcW, dstW)

	parallelDo(0, h, func(y int) {
		row := y * src.Stride
		for dx := 0; dx < dstW; dx++ {
			accumulate(dst.Pix, y*dst.Stride+dx*4, src.Pix, taps[dx], func(i int) int { return row + i*4 })
		}
	})
	return dst
}

// resizeV performs the vertical pass; columns run in parallel.
func resizeV(src *image.NRGBA, dstH int) *image.NRGBA {
	w, srcH := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, dstH))
	taps := lanczosTaps(srcH, dstH)

	parallelDo(0, w, func(x int) {
		col := x * 4
		for dy := 0; dy < dstH; dy++ {
			accumulate(dst.Pix, dy*dst.Stride+col, src.Pix, taps[dy], func(i int) int { return i*src.Stride + col })
		}
	})
	return dst
}

// parallelDo executes fn(i) for i in [start, stop) across multiple goroutines.
func parallelDo(start, stop int, fn func(i int)) {
	count := stop - start
	if count <= 0 {
		return
	}

	procs := min(runtime.GOMAXPROCS(0), count)
	if procs <= 1 {
		for i := start; i < stop; i++ {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	batchSize := (count + procs - 1) / procs

	for p := 0; p < procs; p++ {
		from := start + p*batchSize
		to := min(from+batchSize, stop)
		if from >= to {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := from; i < to; i++ {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
