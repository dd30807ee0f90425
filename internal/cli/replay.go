package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// maxFrameSize caps a single NDJSON line. Guild snapshots of large guilds
// run to several megabytes.
const maxFrameSize = 16 << 20

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	FilterOptions
	Strict bool
}

// ReplayResult summarizes one replay run.
type ReplayResult struct {
	Frames   int
	Rejected int
	Filtered int
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Replay newline-delimited gateway frames",
		Long: `Replay reads one raw gateway frame per line and routes each through the
dispatch router under the configured session. Use "-" to read stdin.

Frames the router rejects are logged and skipped. With --strict the first
rejected frame stops the replay. --tag and --guild limit which dispatch
frames are routed.

Examples:
  gatewaytail replay capture.ndjson
  gatewaytail replay --strict --config tail.yaml capture.ndjson
  gatewaytail replay --tag GUILD_CREATE,MESSAGE_CREATE --guild 1234 capture.ndjson
  cat capture.ndjson | gatewaytail replay -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "stop at the first rejected frame")
	opts.addFlags(cmd)

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command, path string) error {
	cfg, err := Load(opts.ConfigPath)
	if err != nil {
		return exitError(ExitCommandError, "failed to load config", err)
	}

	var src io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return exitError(ExitCommandError, "failed to open frames", err)
		}
		defer f.Close()
		src = f
	}

	log := opts.logger(cmd.ErrOrStderr())
	a, err := newApp(cfg, log, cmd.OutOrStdout())
	if err != nil {
		return exitError(ExitCommandError, "failed to start router", err)
	}
	a.filter = opts.discriminator()

	var res ReplayResult
	err = a.run(cmd.Context(), func(ctx context.Context) error {
		return replayFrames(ctx, a, src, opts.Strict, log, &res)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d frames, %d rejected", res.Frames, res.Rejected)
	if res.Filtered > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d filtered", res.Filtered)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

func replayFrames(ctx context.Context, a *app, src io.Reader, strict bool, log *slog.Logger, res *ReplayResult) error {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64<<10), maxFrameSize)

	line := 0
	for sc.Scan() {
		line++
		frame := bytes.TrimSpace(sc.Bytes())
		if len(frame) == 0 {
			continue
		}
		res.Frames++
		routed, err := a.process(ctx, frame)
		if !routed {
			res.Filtered++
		}
		if err != nil {
			res.Rejected++
			if strict {
				return exitError(ExitFailure, fmt.Sprintf("frame on line %d rejected", line), err)
			}
			log.Warn("frame rejected", slog.Int("line", line), slog.Any("error", err))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return exitError(ExitCommandError, "failed to read frames", err)
	}
	return nil
}
