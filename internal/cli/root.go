// Package cli implements the gatewaytail command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed log formats.
var ValidFormats = []string{"text", "json"}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewRootCommand creates the root command for gatewaytail.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gatewaytail",
		Short: "Feed gateway frames through a dispatch router",
		Long: `gatewaytail routes raw gateway frames through the dispatch router,
keeping a guild cache up to date and printing the messages and readiness
markers the router delivers.

Frames come either from a newline-delimited file (replay) or from a live
websocket (tail).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return exitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			if _, ok := logLevels[strings.ToLower(opts.LogLevel)]; !ok {
				return exitError(ExitCommandError, fmt.Sprintf("invalid log level %q", opts.LogLevel), nil)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "log format (json|text)")

	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTailCommand(opts))

	return cmd
}

// logger builds the slog logger described by the global flags.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: logLevels[strings.ToLower(o.LogLevel)]}
	if o.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
