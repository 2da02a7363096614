package retouch

import (
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Filter names a one-shot colour filter.
type Filter string

const (
	Grayscale    Filter = "grayscale"
	Brighten     Filter = "brighten"
	Darken       Filter = "darken"
	ContrastMore Filter = "contrast-more"
	ContrastLess Filter = "contrast-less"
	Sepia        Filter = "sepia"
	Vintage      Filter = "vintage"
	Cool         Filter = "cool"
	Warm         Filter = "warm"
	Sharpen      Filter = "sharpen"
	Blur         Filter = "blur"
)

// Filters lists every supported filter in menu order.
func Filters() []Filter {
	return []Filter{
		Grayscale, Brighten, Darken, ContrastMore, ContrastLess,
		Sepia, Vintage, Cool, Warm, Sharpen, Blur,
	}
}

// Label is the operation-log label recorded when the filter is applied.
func (f Filter) Label() string {
	switch f {
	case Grayscale:
		return "Grayscale"
	case Brighten:
		return "Brighten"
	case Darken:
		return "Darken"
	case ContrastMore:
		return "More Contrast"
	case ContrastLess:
		return "Less Contrast"
	case Sepia, Vintage, Cool, Warm:
		return string(f) + " filter"
	case Sharpen:
		return "Sharpen"
	case Blur:
		return "Blur"
	default:
		return string(f)
	}
}

// Valid reports whether f is a known filter.
func (f Filter) Valid() bool {
	for _, k := range Filters() {
		if k == f {
			return true
		}
	}
	return false
}

const (
	filterStep       = 20  // brighten/darken delta and contrast-more/less C
	sharpenStrength  = 0.3 // unsharp mask strength for Sharpen
	blurSigma        = 1.5 // Gaussian sigma for Blur
	neutralMidpoint  = 128.0
	maxAdjustment    = 100
	minAdjustment    = -100
	exposureStopBase = 2.0
)

// ContrastFactor maps a contrast amount C to the linear factor
// 259*(C+255) / (255*(259-C)).
func ContrastFactor(c float64) float64 {
	return (259 * (c + 255)) / (255 * (259 - c))
}

// ApplyFilter returns a new buffer with f applied. Dimensions are preserved.
// Unknown filters return an unmodified copy.
func ApplyFilter(b *Buffer, f Filter) *Buffer {
	switch f {
	case Sharpen:
		return sharpen(b, sharpenStrength)
	case Blur:
		return blur(b, blurSigma)
	}
	fn := pixelFunc(f)
	if fn == nil {
		return b.Clone()
	}
	return mapPixels(b, fn)
}

// mapPixels runs fn over every sample in parallel and returns the result.
func mapPixels(b *Buffer, fn func(color.NRGBA) color.NRGBA) *Buffer {
	if b.Empty() {
		return NewBuffer(b.Width, b.Height)
	}
	return bufferFromNRGBA(imaging.AdjustFunc(b.Image(), fn))
}

func pixelFunc(f Filter) func(color.NRGBA) color.NRGBA {
	switch f {
	case Grayscale:
		return func(c color.NRGBA) color.NRGBA {
			avg := clampF((float64(c.R) + float64(c.G) + float64(c.B)) / 3)
			return color.NRGBA{R: avg, G: avg, B: avg, A: c.A}
		}
	case Brighten:
		return shiftFunc(filterStep, filterStep, filterStep)
	case Darken:
		return shiftFunc(-filterStep, -filterStep, -filterStep)
	case ContrastMore:
		return contrastFunc(ContrastFactor(filterStep))
	case ContrastLess:
		return contrastFunc(ContrastFactor(-filterStep))
	case Sepia:
		return func(c color.NRGBA) color.NRGBA {
			r, g, b := float64(c.R), float64(c.G), float64(c.B)
			return color.NRGBA{
				R: clampF(0.393*r + 0.769*g + 0.189*b),
				G: clampF(0.349*r + 0.686*g + 0.168*b),
				B: clampF(0.272*r + 0.534*g + 0.131*b),
				A: c.A,
			}
		}
	case Vintage:
		return shiftFunc(30, 20, -10)
	case Cool:
		return shiftFunc(-10, 10, 20)
	case Warm:
		return shiftFunc(20, 10, -10)
	}
	return nil
}

func shiftFunc(dr, dg, db float64) func(color.NRGBA) color.NRGBA {
	return func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clampF(float64(c.R) + dr),
			G: clampF(float64(c.G) + dg),
			B: clampF(float64(c.B) + db),
			A: c.A,
		}
	}
}

func contrastFunc(factor float64) func(color.NRGBA) color.NRGBA {
	return func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: contrastChannel(c.R, factor),
			G: contrastChannel(c.G, factor),
			B: contrastChannel(c.B, factor),
			A: c.A,
		}
	}
}

func contrastChannel(v uint8, factor float64) uint8 {
	return clampF(factor*(float64(v)-neutralMidpoint) + neutralMidpoint)
}

// saturate pushes each channel away from (or toward) the pixel's luma.
func saturate(c color.NRGBA, factor float64) color.NRGBA {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	gray := 0.299*r + 0.587*g + 0.114*b
	return color.NRGBA{
		R: clampF(gray + factor*(r-gray)),
		G: clampF(gray + factor*(g-gray)),
		B: clampF(gray + factor*(b-gray)),
		A: c.A,
	}
}

// Adjustments are the manual slider values. Each field is in [-100, 100];
// zero is neutral.
type Adjustments struct {
	Brightness int `json:"brightness" yaml:"brightness"`
	Contrast   int `json:"contrast" yaml:"contrast"`
	Saturation int `json:"saturation" yaml:"saturation"`
	Exposure   int `json:"exposure" yaml:"exposure"`
}

// Clamp returns a copy with every field limited to [-100, 100].
func (a Adjustments) Clamp() Adjustments {
	return Adjustments{
		Brightness: clampAdjust(a.Brightness),
		Contrast:   clampAdjust(a.Contrast),
		Saturation: clampAdjust(a.Saturation),
		Exposure:   clampAdjust(a.Exposure),
	}
}

// IsNeutral reports whether applying a would leave the buffer unchanged.
func (a Adjustments) IsNeutral() bool {
	return a.Clamp() == Adjustments{}
}

func clampAdjust(v int) int {
	if v > maxAdjustment {
		return maxAdjustment
	}
	if v < minAdjustment {
		return minAdjustment
	}
	return v
}

// ApplyAdjustments applies brightness, contrast, saturation and exposure in a
// single pass. The steps run in that fixed order per pixel, each reading the
// rounded and clamped output of the previous one.
func ApplyAdjustments(b *Buffer, adj Adjustments) *Buffer {
	adj = adj.Clamp()
	brightness := float64(adj.Brightness)
	contrast := ContrastFactor(float64(adj.Contrast))
	saturation := 1 + float64(adj.Saturation)/100
	exposure := math.Pow(exposureStopBase, float64(adj.Exposure)/100)
	shift := shiftFunc(brightness, brightness, brightness)
	stretch := contrastFunc(contrast)

	return mapPixels(b, func(c color.NRGBA) color.NRGBA {
		c = shift(c)
		c = stretch(c)
		c = saturate(c, saturation)
		return color.NRGBA{
			R: clampF(float64(c.R) * exposure),
			G: clampF(float64(c.G) * exposure),
			B: clampF(float64(c.B) * exposure),
			A: c.A,
		}
	})
}
