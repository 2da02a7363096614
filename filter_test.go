package retouch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrayscaleScenario(t *testing.T) {
	b := NewBuffer(2, 2)
	b.Set(0, 0, px(255, 0, 0, 255))
	b.Set(1, 0, px(0, 255, 0, 255))
	b.Set(0, 1, px(0, 0, 255, 255))
	b.Set(1, 1, px(255, 255, 255, 255))

	out := ApplyFilter(b, Grayscale)
	assert.Equal(t, []uint8{
		85, 85, 85, 255, 85, 85, 85, 255,
		85, 85, 85, 255, 255, 255, 255, 255,
	}, out.Pix)
	// The input is untouched.
	assert.Equal(t, px(255, 0, 0, 255), b.At(0, 0))
}

func TestFiltersPreserveDimensions(t *testing.T) {
	src := makeTestBuffer(37, 21)
	for _, f := range Filters() {
		t.Run(string(f), func(t *testing.T) {
			out := ApplyFilter(src, f)
			assert.Equal(t, src.Width, out.Width)
			assert.Equal(t, src.Height, out.Height)
			assert.True(t, out.Valid())
		})
	}
}

func TestFilterPixelMath(t *testing.T) {
	in := px(100, 150, 200, 255)
	tests := []struct {
		f    Filter
		want [3]uint8
	}{
		{Brighten, [3]uint8{120, 170, 220}},
		{Darken, [3]uint8{80, 130, 180}},
		{Vintage, [3]uint8{130, 170, 190}},
		{Cool, [3]uint8{90, 160, 220}},
		{Warm, [3]uint8{120, 160, 190}},
		// 0.393*100+0.769*150+0.189*200 = 192.45
		// 0.349*100+0.686*150+0.168*200 = 171.4
		// 0.272*100+0.534*150+0.131*200 = 133.5
		{Sepia, [3]uint8{192, 171, 134}},
	}
	for _, tt := range tests {
		t.Run(string(tt.f), func(t *testing.T) {
			out := ApplyFilter(makeSolidBuffer(1, 1, in), tt.f).At(0, 0)
			assert.Equal(t, tt.want, [3]uint8{out.R, out.G, out.B})
			assert.Equal(t, uint8(255), out.A)
		})
	}
}

func TestFilterClampsChannels(t *testing.T) {
	out := ApplyFilter(makeSolidBuffer(1, 1, px(250, 5, 255, 255)), Brighten).At(0, 0)
	assert.Equal(t, px(255, 25, 255, 255), out)
	out = ApplyFilter(makeSolidBuffer(1, 1, px(10, 5, 255, 255)), Darken).At(0, 0)
	assert.Equal(t, px(0, 0, 235, 255), out)
}

func TestContrastFactor(t *testing.T) {
	assert.InDelta(t, 1.0, ContrastFactor(0), 1e-12)
	assert.InDelta(t, 259.0*275/(255*239), ContrastFactor(20), 1e-12)
	assert.Less(t, ContrastFactor(-20), 1.0)
}

func TestContrastFilters(t *testing.T) {
	in := makeSolidBuffer(1, 1, px(200, 128, 50, 255))
	more := ApplyFilter(in, ContrastMore).At(0, 0)
	less := ApplyFilter(in, ContrastLess).At(0, 0)

	assert.Greater(t, more.R, uint8(200))
	assert.Equal(t, uint8(128), more.G)
	assert.Less(t, more.B, uint8(50))

	assert.Less(t, less.R, uint8(200))
	assert.Equal(t, uint8(128), less.G)
	assert.Greater(t, less.B, uint8(50))
}

func TestFilterKeepsAlpha(t *testing.T) {
	in := makeSolidBuffer(2, 2, px(10, 20, 30, 77))
	for _, f := range []Filter{Grayscale, Sepia, Brighten, ContrastMore} {
		assert.Equal(t, uint8(77), ApplyFilter(in, f).At(1, 1).A, f)
	}
}

func TestFilterLabels(t *testing.T) {
	assert.Equal(t, "Grayscale", Grayscale.Label())
	assert.Equal(t, "More Contrast", ContrastMore.Label())
	assert.Equal(t, "Less Contrast", ContrastLess.Label())
	assert.Equal(t, "sepia filter", Sepia.Label())
	assert.Equal(t, "warm filter", Warm.Label())
	assert.True(t, Blur.Valid())
	assert.False(t, Filter("neon").Valid())
}

func TestUnknownFilterCopies(t *testing.T) {
	src := makeTestBuffer(3, 3)
	out := ApplyFilter(src, Filter("neon"))
	require.True(t, out.Equal(src))
	out.Pix[0]++
	assert.False(t, out.Equal(src))
}

func TestAdjustmentsNeutral(t *testing.T) {
	src := makeTestBuffer(16, 16)
	assert.True(t, Adjustments{}.IsNeutral())
	assert.True(t, ApplyAdjustments(src, Adjustments{}).Equal(src))
}

func TestAdjustmentsClamp(t *testing.T) {
	a := Adjustments{Brightness: 250, Contrast: -300, Saturation: 50, Exposure: 101}.Clamp()
	assert.Equal(t, Adjustments{Brightness: 100, Contrast: -100, Saturation: 50, Exposure: 100}, a)
}

func TestAdjustmentsOrder(t *testing.T) {
	in := makeSolidBuffer(1, 1, px(100, 150, 200, 255))
	adj := Adjustments{Brightness: 20, Contrast: 20}
	got := ApplyAdjustments(in, adj).At(0, 0)

	// Brightness first, then contrast on the brightened value.
	f := ContrastFactor(20)
	want := clampF(f*(120-128) + 128)
	assert.Equal(t, want, got.R)

	// Contrast first would land elsewhere.
	swapped := clampF(f*(100-128)+128) + 20
	assert.NotEqual(t, swapped, got.R)
}

func TestAdjustmentsSaturation(t *testing.T) {
	in := makeSolidBuffer(1, 1, px(200, 100, 50, 255))
	desat := ApplyAdjustments(in, Adjustments{Saturation: -100}).At(0, 0)
	// 0.299*200 + 0.587*100 + 0.114*50 = 124.2
	assert.Equal(t, px(124, 124, 124, 255), desat)
}

func TestAdjustmentsExposureClamped(t *testing.T) {
	in := makeSolidBuffer(1, 1, px(200, 100, 0, 255))
	got := ApplyAdjustments(in, Adjustments{Exposure: 100}).At(0, 0)
	assert.Equal(t, px(255, 200, 0, 255), got)

	got = ApplyAdjustments(in, Adjustments{Exposure: -100}).At(0, 0)
	assert.Equal(t, px(100, 50, 0, 255), got)
}
