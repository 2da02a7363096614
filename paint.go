package retouch

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// BrushSettings configures a freehand stroke.
type BrushSettings struct {
	Color   color.NRGBA
	Size    int     // stroke width in pixels
	Opacity float64 // 0..1
}

// DefaultBrush is a 5px opaque red brush.
func DefaultBrush() BrushSettings {
	return BrushSettings{Color: color.NRGBA{R: 0xff, A: 0xff}, Size: 5, Opacity: 1}
}

// TextSettings configures a text overlay.
type TextSettings struct {
	Text     string
	FontSize float64
	Color    color.NRGBA
}

// DefaultFontSize is used when TextSettings.FontSize is not positive.
const DefaultFontSize = 48

// Stroke paints each polyline in paths onto b with round caps and joins.
// Overlapping parts of one call are covered once, so opacity does not
// compound along the stroke.
func Stroke(b *Buffer, s BrushSettings, paths ...[]image.Point) {
	if b.Empty() || s.Size <= 0 || s.Opacity <= 0 {
		return
	}
	opacity := min(s.Opacity, 1)
	mask := make([]bool, b.Width*b.Height)
	r := max(s.Size/2, 0)

	stamp := func(cx, cy int) {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dx*dx+dy*dy > r*r {
					continue
				}
				x, y := cx+dx, cy+dy
				if x >= 0 && y >= 0 && x < b.Width && y < b.Height {
					mask[y*b.Width+x] = true
				}
			}
		}
	}

	for _, path := range paths {
		switch len(path) {
		case 0:
			continue
		case 1:
			stamp(path[0].X, path[0].Y)
		}
		for i := 1; i < len(path); i++ {
			walkLine(path[i-1], path[i], stamp)
		}
	}

	alpha := float64(s.Color.A) / 255 * opacity
	for i, hit := range mask {
		if hit {
			blendOver(b.Pix[i*4:i*4+4], s.Color, alpha)
		}
	}
}

// walkLine visits every point of the Bresenham line from a to b.
func walkLine(a, b image.Point, visit func(x, y int)) {
	x0, y0, x1, y1 := a.X, a.Y, b.X, b.Y
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		visit(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// blendOver composites c with coverage alpha over the NRGBA sample px.
func blendOver(px []uint8, c color.NRGBA, alpha float64) {
	da := float64(px[3]) / 255
	oa := alpha + da*(1-alpha)
	if oa == 0 {
		px[0], px[1], px[2], px[3] = 0, 0, 0, 0
		return
	}
	mix := func(src, dst uint8) uint8 {
		return clampF((float64(src)*alpha + float64(dst)*da*(1-alpha)) / oa)
	}
	px[0] = mix(c.R, px[0])
	px[1] = mix(c.G, px[1])
	px[2] = mix(c.B, px[2])
	px[3] = clampF(oa * 255)
}

var (
	regularOnce sync.Once
	regularFont *opentype.Font
	regularErr  error
)

func defaultFont() (*opentype.Font, error) {
	regularOnce.Do(func() {
		regularFont, regularErr = opentype.Parse(goregular.TTF)
	})
	return regularFont, regularErr
}

// DrawText renders s.Text horizontally centred with its baseline on the
// buffer's vertical centre. Empty text is a no-op.
func DrawText(b *Buffer, s TextSettings) error {
	if s.Text == "" || b.Empty() {
		return nil
	}
	size := s.FontSize
	if size <= 0 {
		size = DefaultFontSize
	}

	f, err := defaultFont()
	if err != nil {
		return fmt.Errorf("retouch: parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("retouch: font face: %w", err)
	}
	defer func() {
		_ = face.Close()
	}()

	width := font.MeasureString(face, s.Text)
	x := fixed.I(b.Width)/2 - width/2
	y := fixed.I(b.Height / 2)

	d := &font.Drawer{
		Dst:  b.Image(),
		Src:  image.NewUniform(s.Color),
		Face: face,
		Dot:  fixed.Point26_6{X: x, Y: y},
	}
	d.DrawString(s.Text)
	return nil
}

// BrushStroke turns pointer events into brush polylines. Points are only
// recorded while the pointer is held down.
type BrushStroke struct {
	paths   [][]image.Point
	drawing bool
}

// Handle consumes one pointer event.
func (s *BrushStroke) Handle(ev PointerEvent) {
	p := ev.Point()
	switch ev.Kind {
	case PointerDown:
		s.drawing = true
		s.paths = append(s.paths, []image.Point{p})
	case PointerMove:
		if s.drawing {
			last := len(s.paths) - 1
			s.paths[last] = append(s.paths[last], p)
		}
	case PointerUp, PointerLeave:
		s.drawing = false
	}
}

// Paths returns the recorded polylines.
func (s *BrushStroke) Paths() [][]image.Point {
	return s.paths
}
