package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shamspias/retouch/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.History == "" {
				return errors.New("no history file configured (use --history or RETOUCH_HISTORY)")
			}
			entries, err := history.NewStore(a.cfg.History).List(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(w, "%s  %s  %s\n", e.CreatedAt().Format(time.RFC3339), e.ImageName, strings.Join(e.Operations, ", "))
			}
			return nil
		},
	}
}
