package dispatch_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bjaus/gateway/dispatch"
)

func Example() {
	r := dispatch.New()

	mask, err := dispatch.From([]string{"guilds", "guild_messages"})
	if err != nil {
		log.Fatal(err)
	}
	s := dispatch.NewSession(dispatch.WithSessionID("main"), dispatch.WithMask(mask))
	if err := r.Connect(s); err != nil {
		log.Fatal(err)
	}

	_, err = dispatch.On(r, s.ID(), dispatch.TagMessageCreate,
		func(ctx context.Context, s *dispatch.Session, m dispatch.Message) error {
			fmt.Printf("%s says: %s\n", m.Author.Username, m.Content)
			return nil
		})
	if err != nil {
		log.Fatal(err)
	}

	frame := []byte(`{"op":0,"s":1,"t":"MESSAGE_CREATE","d":{"id":"m1","channel_id":"c1","author":{"id":"u1","username":"ann"},"content":"hello"}}`)
	if err := r.Process(context.Background(), s.ID(), frame); err != nil {
		log.Fatal(err)
	}

	// Shutdown waits for running handlers.
	_ = r.Shutdown(context.Background())

	// Output:
	// ann says: hello
}

func ExampleSelectVariant() {
	for _, c := range [][2]int{{0, 1}, {0, 2}, {1, 1}, {3, 5}} {
		fmt.Printf("mentions=%d clients=%d -> %s\n", c[0], c[1], dispatch.SelectVariant(c[0], c[1]))
	}

	// Output:
	// mentions=0 clients=1 -> cache/single
	// mentions=0 clients=2 -> cache/multi
	// mentions=1 clients=1 -> handler/single
	// mentions=3 clients=5 -> handler/multi
}

func ExampleFrom() {
	m, err := dispatch.From([]string{"guild_voice_states", "guilds"})
	if err != nil {
		log.Fatal(err)
	}
	m = m.Allow(dispatch.CapGuildBans)

	for name := range m.Names() {
		fmt.Println(name)
	}

	// Output:
	// guilds
	// guild_bans
	// guild_voice_states
}

func ExampleFilterSessions() {
	guilds, _ := dispatch.From([]string{"guilds"})
	messages, _ := dispatch.From([]string{"guild_messages"})
	sessions := []*dispatch.Session{
		dispatch.NewSession(dispatch.WithSessionID("a"), dispatch.WithMask(messages)),
		dispatch.NewSession(dispatch.WithSessionID("b"), dispatch.WithMask(guilds)),
		dispatch.NewSession(dispatch.WithSessionID("c")),
	}

	for s := range dispatch.FilterSessions(sessions, dispatch.CapGuilds) {
		fmt.Println(s.ID())
	}
	fmt.Println("canonical:", dispatch.FirstSession(sessions, dispatch.CapGuilds).ID())

	// Output:
	// b
	// c
	// canonical: b
}

func Example_hooks() {
	r := dispatch.New(
		dispatch.WithOnDispatch(func(ctx context.Context, sessionID, tag string, v dispatch.Variant) {
			fmt.Printf("dispatching %s via %s\n", tag, v)
		}),
		dispatch.WithOnSuccess(func(ctx context.Context, sessionID, tag string, v dispatch.Variant, d time.Duration) {
			fmt.Printf("metric: %s.success\n", tag)
		}),
		dispatch.WithOnUnknownTag(func(ctx context.Context, sessionID, tag string) {
			fmt.Println("skipping unknown tag:", tag)
		}),
	)
	defer r.Shutdown(context.Background())

	s := dispatch.NewSession(dispatch.WithSessionID("main"))
	_ = r.Connect(s)

	_ = r.Dispatch(context.Background(), "main", dispatch.TagGuildCreate, []byte(`{"id":"g1","name":"home"}`))
	_ = r.Dispatch(context.Background(), "main", "SOMETHING_NEW", []byte(`{}`))

	g, _ := r.Cache().Guild("g1")
	fmt.Println("cached:", g.Name)

	// Output:
	// dispatching GUILD_CREATE via cache/single
	// metric: GUILD_CREATE.success
	// skipping unknown tag: SOMETHING_NEW
	// cached: home
}

func Example_missingGuild() {
	fetcher := dispatch.FetcherFunc(func(ctx context.Context, id string) (*dispatch.Guild, error) {
		return &dispatch.Guild{ID: id, Name: "fetched", Channels: []dispatch.Channel{{ID: "c1"}}}, nil
	})
	r := dispatch.New(dispatch.WithFetcher(fetcher))

	s := dispatch.NewSession(dispatch.WithSessionID("main"))
	_ = r.Connect(s)

	done := make(chan struct{})
	_, _ = dispatch.On(r, "main", dispatch.TagMessageCreate,
		func(ctx context.Context, s *dispatch.Session, m dispatch.Message) error {
			g, _ := r.Cache().Guild(m.GuildID)
			fmt.Printf("%s arrived once %s was cached\n", m.Content, g.Name)
			close(done)
			return nil
		})

	_ = r.Dispatch(context.Background(), "main", dispatch.TagMessageCreate,
		[]byte(`{"id":"m1","channel_id":"c1","guild_id":"g1","content":"hi"}`))
	<-done
	_ = r.Shutdown(context.Background())

	// Output:
	// hi arrived once fetched was cached
}

func ExampleReadiness() {
	r := dispatch.New()
	s := dispatch.NewSession(
		dispatch.WithSessionID("main"),
		dispatch.WithQuiescence(10*time.Millisecond),
	)
	_ = r.Connect(s)

	_ = r.Dispatch(context.Background(), "main", dispatch.TagReady,
		[]byte(`{"user":{"id":"bot"},"guilds":[{"id":"g1"},{"id":"g2"}]}`))
	fmt.Println("pending:", s.Readiness().Pending())

	_ = r.Dispatch(context.Background(), "main", dispatch.TagGuildCreate, []byte(`{"id":"g1"}`))
	_ = r.Dispatch(context.Background(), "main", dispatch.TagGuildCreate, []byte(`{"id":"g2","large":true}`))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.WaitUntilReady(ctx); err != nil {
		log.Fatal(err)
	}
	fmt.Println("ready, large guilds:", s.Readiness().LargeGuilds())
	_ = r.Shutdown(context.Background())

	// Output:
	// pending: 2
	// ready, large guilds: [g2]
}
