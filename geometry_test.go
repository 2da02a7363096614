package retouch

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectFromPoints(t *testing.T) {
	want := Rect{X: 2, Y: 3, Width: 5, Height: 4}
	corners := [][2]image.Point{
		{{2, 3}, {7, 7}},
		{{7, 7}, {2, 3}},
		{{7, 3}, {2, 7}},
		{{2, 7}, {7, 3}},
	}
	for _, c := range corners {
		assert.Equal(t, want, RectFromPoints(c[0], c[1]))
	}
	assert.True(t, RectFromPoints(image.Pt(4, 4), image.Pt(4, 9)).Empty())
}

func TestRectWithin(t *testing.T) {
	assert.True(t, Rect{X: 0, Y: 0, Width: 10, Height: 5}.Within(10, 5))
	assert.False(t, Rect{X: 1, Y: 0, Width: 10, Height: 5}.Within(10, 5))
	assert.False(t, Rect{X: -1, Y: 0, Width: 2, Height: 2}.Within(10, 5))
}

func TestFlipHorizontalInvolution(t *testing.T) {
	src := makeTestBuffer(7, 5)
	b := src.Clone()
	FlipHorizontal(b)
	assert.False(t, b.Equal(src))
	assert.Equal(t, src.At(0, 2), b.At(6, 2))
	FlipHorizontal(b)
	assert.True(t, b.Equal(src))
}

func TestRotateQuarterTurns(t *testing.T) {
	src := makeTestBuffer(30, 20)
	b := src
	for range 4 {
		b = Rotate(b, 90)
	}
	assert.Equal(t, src.Width, b.Width)
	assert.Equal(t, src.Height, b.Height)
	assert.True(t, b.Equal(src))
}

func TestRotate90Mapping(t *testing.T) {
	b := NewBuffer(3, 2)
	b.Set(0, 0, px(1, 0, 0, 255)) // top-left
	b.Set(2, 1, px(2, 0, 0, 255)) // bottom-right

	r := Rotate(b, 90)
	require.Equal(t, 2, r.Width)
	require.Equal(t, 3, r.Height)
	// Clockwise: top-left lands top-right.
	assert.Equal(t, uint8(1), r.At(1, 0).R)
	assert.Equal(t, uint8(2), r.At(0, 2).R)

	l := Rotate(b, -90)
	assert.Equal(t, uint8(1), l.At(0, 2).R)
}

func TestRotateArbitraryBoundingBox(t *testing.T) {
	src := makeSolidBuffer(100, 50, px(0, 0, 0, 255))
	r := Rotate(src, 45)
	// |cos 45|*100 + |sin 45|*50 ≈ 106.07
	assert.InDelta(t, 106, r.Width, 1)
	assert.InDelta(t, 106, r.Height, 1)
	// Corners fall outside the rotated source and stay white.
	assert.Equal(t, Background, r.At(0, 0))
	// The centre is source content.
	c := r.At(r.Width/2, r.Height/2)
	assert.Equal(t, uint8(0), c.R)
}

func TestRotate180(t *testing.T) {
	src := makeTestBuffer(5, 3)
	r := Rotate(src, 180)
	assert.Equal(t, src.At(0, 0), r.At(4, 2))
	assert.True(t, Rotate(r, 180).Equal(src))
}

func TestResizeFloors(t *testing.T) {
	src := makeTestBuffer(101, 51)
	out := Resize(src, 0.5)
	assert.Equal(t, 50, out.Width)
	assert.Equal(t, 25, out.Height)

	tiny := Resize(src, 0.001)
	assert.Equal(t, 1, tiny.Width)
	assert.Equal(t, 1, tiny.Height)
}

func TestResizeIsNotCumulative(t *testing.T) {
	orig := makeTestBuffer(200, 100)
	// Each call starts from the original.
	_ = ResizePercent(orig, 50)
	second := ResizePercent(orig, 80)
	direct := ResizePercent(orig, 80)
	assert.Equal(t, 160, second.Width)
	assert.True(t, second.Equal(direct))
}

func TestCrop(t *testing.T) {
	src := makeTestBuffer(20, 10)
	out, err := Crop(src, Rect{X: 5, Y: 2, Width: 8, Height: 6})
	require.NoError(t, err)
	assert.Equal(t, 8, out.Width)
	assert.Equal(t, 6, out.Height)
	assert.Equal(t, src.At(5, 2), out.At(0, 0))
	assert.Equal(t, src.At(12, 7), out.At(7, 5))
}

func TestCropRejects(t *testing.T) {
	src := makeTestBuffer(20, 10)
	_, err := Crop(src, Rect{X: 1, Y: 1, Width: 0, Height: 5})
	assert.ErrorIs(t, err, ErrEmptySelection)
	_, err = Crop(src, Rect{X: 15, Y: 0, Width: 10, Height: 5})
	assert.ErrorIs(t, err, ErrEmptySelection)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, ww, wh int
	}{
		{400, 300, 400, 300},
		{1600, 600, 800, 300},
		{600, 1200, 300, 600},
		{1000, 1000, 600, 600},
	}
	for _, tt := range tests {
		w, h := FitWithin(tt.w, tt.h, 800, 600)
		assert.Equal(t, tt.ww, w)
		assert.Equal(t, tt.wh, h)
	}
}

func TestPreview(t *testing.T) {
	src := makeTestBuffer(600, 300)
	p := Preview(src, PreviewWidth)
	assert.Equal(t, 150, p.Width)
	assert.Equal(t, 75, p.Height)
	// Same resampler as Resize.
	assert.True(t, p.Equal(Resize(src, 0.25)))

	tall := Preview(makeTestBuffer(10, 100), PreviewWidth)
	assert.Equal(t, 150, tall.Width)
	assert.Equal(t, 1500, tall.Height)

	thin := Preview(makeTestBuffer(1000, 2), PreviewWidth)
	assert.Equal(t, 1, thin.Height)
}
