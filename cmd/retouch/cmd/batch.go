package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shamspias/retouch"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Compress up to 20 JPEG files into " + retouch.ArchiveName,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f := cmd.Flags()
			q := a.cfg.Quality
			if f.Changed("quality") {
				q, _ = f.GetFloat64("quality")
			}
			if !retouch.ValidQuality(q) {
				return fmt.Errorf("quality %v: %w", q, retouch.ErrInvalidQuality)
			}

			uploads := make([]retouch.Upload, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				uploads = append(uploads, retouch.Upload{Name: filepath.Base(path), Data: data})
			}

			progress, _ := f.GetBool("progress")
			b := retouch.NewBatch(retouch.BatchOptions{
				Workers:        a.cfg.Workers,
				DefaultQuality: q,
				OnItem: func(completed, total int) {
					if progress {
						fmt.Fprintf(cmd.ErrOrStderr(), "\r%d/%d", completed, total)
					}
				},
			})
			res, err := b.Add(ctx, uploads)
			if progress {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, name := range res.Excluded {
				fmt.Fprintf(w, "skipped %s: not a JPEG\n", name)
			}
			for name, err := range res.Failed {
				fmt.Fprintf(w, "failed %s: %v\n", name, err)
			}
			for _, e := range b.Entries() {
				fmt.Fprintln(w, e)
			}
			if b.Len() == 0 {
				return retouch.ErrNoEntries
			}

			out, _ := f.GetString("output")
			file, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := b.WriteArchive(file); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintln(w, b.Summary())
			fmt.Fprintln(w, out)
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64P("quality", "q", retouch.DefaultQuality, "Quality factor in (0, 1]")
	f.StringP("output", "o", retouch.ArchiveName, "Archive path")
	f.Bool("progress", false, "Report progress on stderr")
	return cmd
}
