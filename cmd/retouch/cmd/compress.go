package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shamspias/retouch"
)

func newCompressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress <input>",
		Short: "Re-encode one image as JPEG at a quality factor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			q := a.cfg.Quality
			if f.Changed("quality") {
				q, _ = f.GetFloat64("quality")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			src, err := retouch.Decode(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			out, err := retouch.Compress(src, q)
			if err != nil {
				return err
			}

			dir, _ := f.GetString("out-dir")
			dst := filepath.Join(dir, retouch.JPEGName(args[0]))
			if abs(dst) == abs(args[0]) {
				return fmt.Errorf("refusing to overwrite input %s", args[0])
			}
			if err := os.WriteFile(dst, out, 0o644); err != nil {
				return err
			}

			score := 0.0
			if dec, err := retouch.Decode(bytes.NewReader(out)); err == nil {
				score = retouch.SSIM(src, dec)
			}
			entry := retouch.BatchEntry{
				Name:           filepath.Base(dst),
				Quality:        q,
				OriginalSize:   int64(len(data)),
				CompressedSize: int64(len(out)),
				SSIM:           score,
				Width:          src.Width,
				Height:         src.Height,
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry)
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64P("quality", "q", retouch.DefaultQuality, "Quality factor in (0, 1]")
	f.StringP("out-dir", "o", ".", "Output directory")
	return cmd
}

func abs(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return p
}
