package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bjaus/gateway/dispatch"
)

// shutdownGrace bounds how long a command waits for running handlers once
// its frame source is exhausted.
const shutdownGrace = 5 * time.Second

// app is one router with one session, printing what the session receives.
type app struct {
	router  *dispatch.Router
	session *dispatch.Session
	filter  dispatch.Discriminator
	log     *slog.Logger

	mu  sync.Mutex
	out io.Writer
}

func newApp(cfg *Config, log *slog.Logger, out io.Writer) (*app, error) {
	dispatch.SetPresenceCache(cfg.Session.Presences)

	ropts := []dispatch.Option{dispatch.WithLogger(log)}
	if cfg.Fetch.BaseURL != "" {
		ropts = append(ropts, dispatch.WithFetcher(NewHTTPFetcher(cfg.Fetch)))
	}
	ropts = append(ropts,
		dispatch.WithOnFetchError(func(_ context.Context, guildID string, err error, dropped int) {
			log.Warn("guild fetch failed", slog.String("guild", guildID), slog.Int("dropped", dropped), slog.Any("error", err))
		}),
	)

	sopts := []dispatch.SessionOption{
		dispatch.WithSessionID(cfg.Session.ID),
		dispatch.WithErrorBuffer(cfg.Session.ErrorBuffer),
		dispatch.WithQuiescence(cfg.Session.Quiescence),
		dispatch.WithShardCount(cfg.Session.Shards),
		dispatch.WithSessionLogger(log),
	}
	if len(cfg.Session.Capabilities) > 0 {
		mask, err := dispatch.From(cfg.Session.Capabilities)
		if err != nil {
			return nil, err
		}
		sopts = append(sopts, dispatch.WithMask(mask))
	}

	a := &app{
		router:  dispatch.New(ropts...),
		session: dispatch.NewSession(sopts...),
		log:     log,
		out:     out,
	}
	if err := a.router.Connect(a.session); err != nil {
		return nil, err
	}
	if err := a.subscribe(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) subscribe() error {
	id := a.session.ID()
	for _, tag := range []string{dispatch.TagMessageCreate, dispatch.TagDirectMessageCreate} {
		if _, err := dispatch.On(a.router, id, tag, a.printMessage); err != nil {
			return err
		}
	}
	_, err := dispatch.On(a.router, id, dispatch.TagSessionReady,
		func(_ context.Context, _ *dispatch.Session, r dispatch.SessionReady) error {
			a.printf("-- session %s ready (%d large guilds)\n", r.SessionID, len(r.LargeGuilds))
			return nil
		})
	return err
}

func (a *app) printMessage(_ context.Context, _ *dispatch.Session, m dispatch.Message) error {
	where := m.ChannelID
	if m.GuildID != "" {
		if g, ok := a.router.Cache().Guild(m.GuildID); ok {
			if c, ok := g.Channel(m.ChannelID); ok && c.Name != "" {
				where = c.Name
			}
		}
	}
	a.printf("#%s <%s> %s\n", where, m.Author.Username, m.Content)
	return nil
}

// process routes one raw frame and reports whether the filter let it
// through. Frames that fail to parse go to the router, which rejects them.
func (a *app) process(ctx context.Context, frame []byte) (bool, error) {
	if a.filter != nil {
		if view, err := dispatch.JSONInspector().Inspect(frame); err == nil && !a.filter.Match(view) {
			return false, nil
		}
	}
	return true, a.router.Process(ctx, a.session.ID(), frame)
}

func (a *app) printf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

// run drives feed to completion while logging session errors, then shuts
// the router down and reports any errors raised by the last handlers.
func (a *app) run(ctx context.Context, feed func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return feed(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case err := <-a.session.Errors():
				a.logError(err)
			case <-gctx.Done():
				return nil
			}
		}
	})
	err := g.Wait()

	sctx, scancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer scancel()
	if serr := a.router.Shutdown(sctx); serr != nil {
		a.log.Warn("handlers still running at shutdown", slog.Any("error", serr))
	}
	for {
		select {
		case e := <-a.session.Errors():
			a.logError(e)
		default:
			return err
		}
	}
}

func (a *app) logError(err error) {
	a.log.Error("session error", slog.String("session", a.session.ID()), slog.Any("error", err))
}
