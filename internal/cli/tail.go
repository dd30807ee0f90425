package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// TailOptions holds flags for the tail command.
type TailOptions struct {
	*RootOptions
	FilterOptions
	URL   string
	Token string
}

// NewTailCommand creates the tail command.
func NewTailCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TailOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Route frames from a live websocket",
		Long: `Tail dials a websocket that pushes raw gateway frames, one per text
message, and routes each through the dispatch router until the server closes
the connection or the process is interrupted.

The gateway URL comes from --url, or from "url" in the config file, or from
GATEWAYTAIL_URL.

Examples:
  gatewaytail tail --url ws://localhost:8080/gateway
  gatewaytail tail --config tail.yaml --log-level debug
  gatewaytail tail --url ws://localhost:8080/gateway --guild 1234`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "websocket URL to read frames from")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token sent on the upgrade request")
	opts.addFlags(cmd)

	return cmd
}

func runTail(opts *TailOptions, cmd *cobra.Command) error {
	cfg, err := Load(opts.ConfigPath)
	if err != nil {
		return exitError(ExitCommandError, "failed to load config", err)
	}
	if opts.URL != "" {
		cfg.URL = opts.URL
	}
	if cfg.URL == "" {
		return exitError(ExitCommandError, "no gateway url: set --url or url in config", nil)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return exitError(ExitCommandError, "failed to dial gateway", err)
	}
	defer conn.Close()

	log := opts.logger(cmd.ErrOrStderr()).With(slog.String("url", cfg.URL))
	a, err := newApp(cfg, log, cmd.OutOrStdout())
	if err != nil {
		return exitError(ExitCommandError, "failed to start router", err)
	}
	a.filter = opts.discriminator()

	log.Info("tailing gateway")
	err = a.run(ctx, func(ctx context.Context) error {
		return tailFrames(ctx, a, conn, log)
	})
	if err != nil {
		return exitError(ExitFailure, "gateway stream failed", err)
	}
	return nil
}

func tailFrames(ctx context.Context, a *app, conn *websocket.Conn, log *slog.Logger) error {
	unblock := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer unblock()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		routed, err := a.process(ctx, data)
		if err != nil {
			log.Warn("frame rejected", slog.Any("error", err))
		}
		if !routed {
			log.Debug("frame filtered")
		}
	}
}

