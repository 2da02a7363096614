// Package cmd implements the retouch CLI commands.
package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shamspias/retouch"
	"github.com/shamspias/retouch/internal/config"
	"github.com/shamspias/retouch/internal/history"
	"github.com/shamspias/retouch/internal/logging"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	cfg     config.Config
	logOut  io.WriteCloser
	version string
}

// NewRoot builds the command tree.
func NewRoot(version string) *cobra.Command {
	a := &app{version: version}
	cmd := &cobra.Command{
		Use:           "retouch",
		Short:         "Edit images and compress JPEG batches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logOut != nil {
				_ = a.logOut.Close()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("log-file", "", "Write logs to a rotated file instead of stderr")
	pf.Bool("log-json", false, "Log as JSON")
	pf.Bool("premium", false, "Unlock premium operations (upscale, brush, text)")
	pf.String("history", "", "Parquet file recording downloads")

	cmd.AddCommand(
		newEditCmd(a),
		newCompressCmd(a),
		newBatchCmd(a),
		newHistoryCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-file") {
		cfg.LogFile, _ = flags.GetString("log-file")
	}
	if flags.Changed("log-json") {
		cfg.LogJSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("premium") {
		cfg.Premium, _ = flags.GetBool("premium")
	}
	if flags.Changed("history") {
		cfg.History, _ = flags.GetString("history")
	}
	a.cfg = cfg

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		a.logOut = logging.FileWriter(cfg.LogFile)
		out = a.logOut
	}
	level, ok := logging.ParseLevel(cfg.LogLevel)
	logger := logging.Logger(out, cfg.LogJSON, level)
	slog.SetDefault(logger)
	retouch.SetLogger(logger)
	if !ok {
		slog.Warn("Invalid log level, defaulting to INFO", "level", cfg.LogLevel)
	}
	return nil
}

// recorder returns the configured history recorder, or nil.
func (a *app) recorder() retouch.HistoryRecorder {
	if a.cfg.History == "" {
		return nil
	}
	return history.NewStore(a.cfg.History)
}
