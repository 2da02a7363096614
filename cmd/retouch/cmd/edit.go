package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shamspias/retouch"
	"github.com/shamspias/retouch/internal/config"
)

// Display bounds used by --describe.
const (
	displayWidth  = 800
	displayHeight = 600
)

func newEditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <input>",
		Short: "Apply edits to one image and export it as PNG",
		Long: `Edit loads an image, applies the requested operations and writes
edited_image.png to the output directory.

Without --recipe, flag operations run in this order: filters, adjustments,
rotate, flip, resize, crop, auto-enhance, upscale, text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f := cmd.Flags()

			s := retouch.NewSession(retouch.SessionOptions{
				Premium:  a.cfg.Premium,
				Enhancer: a.cfg.Enhancer(),
				History:  a.recorder(),
			})
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()
			if err := s.Load(ctx, in, filepath.Base(args[0])); err != nil {
				return err
			}

			steps, err := editSteps(cmd)
			if err != nil {
				return err
			}
			if err := steps.Apply(ctx, s); err != nil {
				return err
			}

			if describe, _ := f.GetBool("describe"); describe {
				w := s.Working()
				dw, dh := s.DisplaySize(displayWidth, displayHeight)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d (display %dx%d)\n", s.Name(), w.Width, w.Height, dw, dh)
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", retouch.Analyze(w))
				for i, op := range s.Operations() {
					fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, op)
				}
			}

			dir, _ := f.GetString("out-dir")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			tmp, err := os.CreateTemp(dir, ".retouch-*.png")
			if err != nil {
				return err
			}
			defer os.Remove(tmp.Name())
			name, err := s.Download(ctx, tmp)
			if cerr := tmp.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			out := filepath.Join(dir, name)
			if err := os.Rename(tmp.Name(), out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("out-dir", "o", ".", "Directory for "+retouch.DownloadName)
	f.String("recipe", "", "YAML recipe file; replaces the operation flags")
	f.StringSlice("filter", nil, "Filters to apply in order ("+filterNames()+")")
	f.Int("brightness", 0, "Brightness adjustment [-100, 100]")
	f.Int("contrast", 0, "Contrast adjustment [-100, 100]")
	f.Int("saturation", 0, "Saturation adjustment [-100, 100]")
	f.Int("exposure", 0, "Exposure adjustment [-100, 100]")
	f.Float64("rotate", 0, "Rotate clockwise by degrees")
	f.Bool("flip", false, "Flip horizontally")
	f.Int("resize", 0, "Resize to a percentage of the original")
	f.String("crop", "", "Crop rectangle x,y,width,height")
	f.Bool("auto-enhance", false, "Run auto-enhance")
	f.Bool("upscale", false, "Upscale 2x (premium)")
	f.String("text", "", "Overlay centred text (premium)")
	f.String("text-color", "#ff0000", "Text colour")
	f.Float64("font-size", retouch.DefaultFontSize, "Text size in points")
	f.Bool("describe", false, "Print dimensions, image statistics and the operation log")
	return cmd
}

func filterNames() string {
	names := make([]string, 0, len(retouch.Filters()))
	for _, f := range retouch.Filters() {
		names = append(names, string(f))
	}
	return strings.Join(names, "|")
}

// editSteps turns the edit flags (or --recipe) into a recipe.
func editSteps(cmd *cobra.Command) (*config.Recipe, error) {
	f := cmd.Flags()
	if path, _ := f.GetString("recipe"); path != "" {
		return config.LoadRecipe(path)
	}

	var r config.Recipe
	filters, _ := f.GetStringSlice("filter")
	for _, name := range filters {
		r.Steps = append(r.Steps, config.Step{Op: config.OpFilter, Filter: retouch.Filter(strings.ToLower(name))})
	}

	var adj retouch.Adjustments
	adj.Brightness, _ = f.GetInt("brightness")
	adj.Contrast, _ = f.GetInt("contrast")
	adj.Saturation, _ = f.GetInt("saturation")
	adj.Exposure, _ = f.GetInt("exposure")
	if !adj.IsNeutral() {
		r.Steps = append(r.Steps, config.Step{Op: config.OpAdjust, Adjust: adj})
	}

	if deg, _ := f.GetFloat64("rotate"); deg != 0 {
		r.Steps = append(r.Steps, config.Step{Op: config.OpRotate, Degrees: deg})
	}
	if flip, _ := f.GetBool("flip"); flip {
		r.Steps = append(r.Steps, config.Step{Op: config.OpFlip})
	}
	if pct, _ := f.GetInt("resize"); pct != 0 {
		r.Steps = append(r.Steps, config.Step{Op: config.OpResize, Percent: pct})
	}
	if s, _ := f.GetString("crop"); s != "" {
		rect, err := parseRect(s)
		if err != nil {
			return nil, err
		}
		r.Steps = append(r.Steps, config.Step{Op: config.OpCrop, Rect: rect})
	}
	if on, _ := f.GetBool("auto-enhance"); on {
		r.Steps = append(r.Steps, config.Step{Op: config.OpAutoEnhance})
	}
	if on, _ := f.GetBool("upscale"); on {
		r.Steps = append(r.Steps, config.Step{Op: config.OpUpscale})
	}
	if text, _ := f.GetString("text"); text != "" {
		color, _ := f.GetString("text-color")
		size, _ := f.GetFloat64("font-size")
		r.Steps = append(r.Steps, config.Step{Op: config.OpText, Text: text, Color: color, FontSize: size})
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// parseRect parses "x,y,width,height".
func parseRect(s string) (retouch.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return retouch.Rect{}, fmt.Errorf("crop %q: want x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return retouch.Rect{}, fmt.Errorf("crop %q: %w", s, err)
		}
		v[i] = n
	}
	r := retouch.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if r.Empty() || r.X < 0 || r.Y < 0 {
		return retouch.Rect{}, fmt.Errorf("crop %q: %w", s, retouch.ErrEmptySelection)
	}
	return r, nil
}
