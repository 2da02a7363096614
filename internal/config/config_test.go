package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shamspias/retouch"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.InDelta(t, 0.7, cfg.Quality, 1e-9)
	assert.Equal(t, time.Second, cfg.EnhanceUnit)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "retouch.yaml", `
premium: true
quality: 0.5
workers: 3
history: hist.parquet
log_level: debug
enhance_unit: 250ms
`)
	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)
	assert.True(t, cfg.Premium)
	assert.InDelta(t, 0.5, cfg.Quality, 1e-9)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "hist.parquet", cfg.History)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.EnhanceUnit)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "retouch.yaml", "quality: 0.5\n")
	t.Setenv(EnvQuality, "0.9")
	t.Setenv(EnvPremium, "true")
	t.Setenv(EnvEnhanceUnit, "0s")

	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, cfg.Quality, 1e-9)
	assert.True(t, cfg.Premium)
	assert.Zero(t, cfg.EnhanceUnit)
}

func TestLoadDotEnv(t *testing.T) {
	env := writeFile(t, "test.env", "RETOUCH_WORKERS=7\n")
	t.Setenv(EnvWorkers, "") // registers cleanup
	require.NoError(t, os.Unsetenv(EnvWorkers))

	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Workers)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing yaml", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnvFile(t))
		assert.Error(t, err)
	})
	t.Run("bad env value", func(t *testing.T) {
		t.Setenv(EnvWorkers, "many")
		_, err := Load("", noEnvFile(t))
		assert.Error(t, err)
	})
	t.Run("quality out of range", func(t *testing.T) {
		t.Setenv(EnvQuality, "1.5")
		_, err := Load("", noEnvFile(t))
		assert.ErrorIs(t, err, retouch.ErrInvalidQuality)
	})
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#00ff80")
	require.NoError(t, err)
	assert.Equal(t, uint8(0), c.R)
	assert.Equal(t, uint8(255), c.G)
	assert.Equal(t, uint8(128), c.B)
	assert.Equal(t, uint8(255), c.A)

	_, err = ParseColor("green")
	assert.Error(t, err)
}

func TestParseRecipe(t *testing.T) {
	r, err := ParseRecipe([]byte(`
steps:
  - op: filter
    filter: sepia
  - op: rotate
    degrees: 90
  - op: crop
    rect: {x: 1, y: 1, width: 4, height: 2}
  - op: brush
    color: "#0000ff"
    points: [[0, 0], [3, 3]]
`))
	require.NoError(t, err)
	require.Len(t, r.Steps, 4)
	assert.Equal(t, retouch.Sepia, r.Steps[0].Filter)
	assert.Equal(t, retouch.Rect{X: 1, Y: 1, Width: 4, Height: 2}, r.Steps[2].Rect)
	assert.Equal(t, [][2]int{{0, 0}, {3, 3}}, r.Steps[3].Points)
}

func TestParseRecipeRejectsBadSteps(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown op":     "steps: [{op: melt}]",
		"unknown filter": "steps: [{op: filter, filter: neon}]",
		"empty crop":     "steps: [{op: crop}]",
		"bad resize":     "steps: [{op: resize, percent: 0}]",
		"bad colour":     "steps: [{op: text, text: hi, color: purple}]",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRecipe([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestRecipeApply(t *testing.T) {
	b := retouch.NewBuffer(8, 6)
	b.Fill(retouch.Background)
	s := retouch.NewSession(retouch.SessionOptions{
		Premium:  true,
		Enhancer: &retouch.Enhancer{Waiter: retouch.NoDelay},
	})
	require.NoError(t, s.LoadBuffer(b, "test.png"))

	r := &Recipe{Steps: []Step{
		{Op: OpFilter, Filter: retouch.Grayscale},
		{Op: OpRotate, Degrees: 90},
		{Op: OpCrop, Rect: retouch.Rect{X: 1, Y: 1, Width: 4, Height: 3}},
		{Op: OpAutoEnhance},
		{Op: OpUpscale},
		{Op: OpBrush, Color: "#ff0000", Points: [][2]int{{0, 0}, {2, 2}}},
	}}
	require.NoError(t, r.Apply(t.Context(), s))

	assert.Equal(t, []string{
		"Grayscale", "Rotate Right", "Crop", "AI Auto-Enhance", "AI Upscale", "Brush Tool",
	}, s.Operations())
	w := s.Working()
	assert.Equal(t, 8, w.Width)
	assert.Equal(t, 6, w.Height)
}

func TestRecipeApplyStopsAtPermissionDenied(t *testing.T) {
	b := retouch.NewBuffer(4, 4)
	s := retouch.NewSession(retouch.SessionOptions{Enhancer: &retouch.Enhancer{Waiter: retouch.NoDelay}})
	require.NoError(t, s.LoadBuffer(b, "x.png"))

	r := &Recipe{Steps: []Step{{Op: OpFlip}, {Op: OpUpscale}, {Op: OpFlip}}}
	err := r.Apply(t.Context(), s)
	assert.ErrorIs(t, err, retouch.ErrPermissionDenied)
	assert.Equal(t, []string{"Flip Horizontal"}, s.Operations())
}

func TestRecipeCropOutsideImage(t *testing.T) {
	s := retouch.NewSession(retouch.SessionOptions{})
	require.NoError(t, s.LoadBuffer(retouch.NewBuffer(10, 8), "x.png"))

	r := &Recipe{Steps: []Step{{Op: OpCrop, Rect: retouch.Rect{X: 4, Y: 2, Width: 10, Height: 4}}}}
	err := r.Apply(t.Context(), s)
	assert.ErrorIs(t, err, retouch.ErrEmptySelection)
	assert.Empty(t, s.Operations())
	assert.False(t, s.Cropping())
	w, h := s.Size()
	assert.Equal(t, 10, w)
	assert.Equal(t, 8, h)

	r.Steps[0].Rect = retouch.Rect{X: 4, Y: 2, Width: 6, Height: 6}
	require.NoError(t, r.Apply(t.Context(), s))
	w, h = s.Size()
	assert.Equal(t, 6, w)
	assert.Equal(t, 6, h)
}
