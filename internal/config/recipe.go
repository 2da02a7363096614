package config

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/shamspias/retouch"
)

// Recipe step operations.
const (
	OpFilter      = "filter"
	OpAdjust      = "adjust"
	OpRotate      = "rotate"
	OpFlip        = "flip"
	OpResize      = "resize"
	OpCrop        = "crop"
	OpAutoEnhance = "auto-enhance"
	OpUpscale     = "upscale"
	OpBrush       = "brush"
	OpText        = "text"
	OpReset       = "reset"
)

// Recipe is an ordered list of edit steps replayed against a session.
//
//	steps:
//	  - op: filter
//	    filter: sepia
//	  - op: rotate
//	    degrees: 90
//	  - op: crop
//	    rect: {x: 10, y: 10, width: 200, height: 100}
//	  - op: text
//	    text: hello
//	    color: "#00ff00"
type Recipe struct {
	Steps []Step `yaml:"steps"`
}

// Step is one recipe entry. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	Filter  retouch.Filter      `yaml:"filter,omitempty"`
	Adjust  retouch.Adjustments `yaml:"adjust,omitempty"`
	Degrees float64             `yaml:"degrees,omitempty"`
	Percent int                 `yaml:"percent,omitempty"`
	Rect    retouch.Rect        `yaml:"rect,omitempty"`

	// Brush and text.
	Color    string   `yaml:"color,omitempty"`
	Size     int      `yaml:"size,omitempty"`
	Opacity  float64  `yaml:"opacity,omitempty"`
	Points   [][2]int `yaml:"points,omitempty"`
	Text     string   `yaml:"text,omitempty"`
	FontSize float64  `yaml:"font_size,omitempty"`
}

// LoadRecipe reads a YAML recipe file.
func LoadRecipe(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read recipe %q: %w", path, err)
	}
	return ParseRecipe(data)
}

// ParseRecipe decodes YAML recipe bytes.
func ParseRecipe(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("config: parse recipe: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks every step's op and parameters.
func (r *Recipe) Validate() error {
	for i, s := range r.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("config: step %d: %w", i+1, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.Op {
	case OpFilter:
		if !s.Filter.Valid() {
			return fmt.Errorf("unknown filter %q", s.Filter)
		}
	case OpResize:
		if s.Percent <= 0 {
			return fmt.Errorf("resize percent must be positive, got %d", s.Percent)
		}
	case OpCrop:
		if s.Rect.Empty() {
			return retouch.ErrEmptySelection
		}
	case OpBrush, OpText:
		if s.Color != "" {
			if _, err := ParseColor(s.Color); err != nil {
				return err
			}
		}
	case OpAdjust, OpRotate, OpFlip, OpAutoEnhance, OpUpscale, OpReset:
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	return nil
}

// ParseColor parses a "#rrggbb" or "#rgb" colour into an opaque NRGBA.
func ParseColor(s string) (color.NRGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("config: colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// Apply runs every step against s in order and stops at the first failure.
func (r *Recipe) Apply(ctx context.Context, s *retouch.Session) error {
	for i, step := range r.Steps {
		if err := step.apply(ctx, s); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	return nil
}

func (s Step) apply(ctx context.Context, sess *retouch.Session) error {
	switch s.Op {
	case OpFilter:
		return sess.ApplyFilter(s.Filter)
	case OpAdjust:
		return sess.Adjust(s.Adjust)
	case OpRotate:
		return sess.Rotate(s.Degrees)
	case OpFlip:
		return sess.Flip()
	case OpResize:
		return sess.Resize(s.Percent)
	case OpCrop:
		return cropTo(sess, s.Rect)
	case OpAutoEnhance:
		return sess.AutoEnhance(ctx)
	case OpUpscale:
		return sess.Upscale(ctx)
	case OpBrush:
		brush := retouch.DefaultBrush()
		if s.Color != "" {
			c, err := ParseColor(s.Color)
			if err != nil {
				return err
			}
			brush.Color = c
		}
		if s.Size > 0 {
			brush.Size = s.Size
		}
		if s.Opacity > 0 {
			brush.Opacity = s.Opacity
		}
		path := make([]image.Point, len(s.Points))
		for i, p := range s.Points {
			path[i] = image.Pt(p[0], p[1])
		}
		return sess.Paint(brush, path)
	case OpText:
		text := retouch.TextSettings{
			Text:     s.Text,
			FontSize: s.FontSize,
			Color:    color.NRGBA{R: 0xff, A: 0xff},
		}
		if s.Color != "" {
			c, err := ParseColor(s.Color)
			if err != nil {
				return err
			}
			text.Color = c
		}
		return sess.AddText(text)
	case OpReset:
		return sess.Reset()
	}
	return fmt.Errorf("unknown op %q", s.Op)
}

// cropTo drives the session's crop mode with a single drag across r. A rect
// reaching past the image is refused rather than clamped.
func cropTo(sess *retouch.Session, r retouch.Rect) error {
	if !sess.Loaded() {
		return retouch.ErrNoImage
	}
	if w, h := sess.Size(); !r.Within(w, h) {
		return fmt.Errorf("crop %v outside %dx%d: %w", r, w, h, retouch.ErrEmptySelection)
	}
	if err := sess.StartCrop(); err != nil {
		return err
	}
	events := []retouch.PointerEvent{
		{Kind: retouch.PointerDown, X: float64(r.X), Y: float64(r.Y)},
		{Kind: retouch.PointerMove, X: float64(r.X + r.Width), Y: float64(r.Y + r.Height)},
		{Kind: retouch.PointerUp, X: float64(r.X + r.Width), Y: float64(r.Y + r.Height)},
	}
	for _, ev := range events {
		if err := sess.HandlePointer(ev); err != nil {
			return err
		}
	}
	if err := sess.ApplyCrop(); err != nil {
		_ = sess.CancelCrop()
		return err
	}
	return nil
}
