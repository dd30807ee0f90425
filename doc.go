// Package dispatch is the event-ingestion core of a client for a push-based
// gateway. It routes decoded gateway events to cache mutations and user
// handlers for any number of sessions sharing one process.
//
// # Quick Start
//
// Create a router, attach a session, register a handler, and feed it the
// frames the transport reads:
//
//	r := dispatch.New(dispatch.WithFetcher(restClient))
//	defer r.Shutdown(context.Background())
//
//	mask, _ := dispatch.From([]string{"guilds", "guild_messages"})
//	s := dispatch.NewSession(dispatch.WithMask(mask))
//	_ = r.Connect(s)
//
//	dispatch.On(r, s.ID(), dispatch.TagMessageCreate,
//	    func(ctx context.Context, s *dispatch.Session, m dispatch.Message) error {
//	        fmt.Println(m.Content)
//	        return nil
//	    })
//
//	for frame := range transport.Frames() {
//	    _ = r.Process(ctx, s.ID(), frame)
//	}
//
// # Variants
//
// Every tag has four interchangeable implementations. Which one is installed
// depends on two live counters kept per tag:
//
//   - mentions: connected sessions with at least one handler for the tag
//   - clients: connected sessions subscribed to the tag's capability
//
// With no handlers the cache-only variants run and no handler payload is
// built. With two or more subscribed sessions the multi-session variants
// run, which let only the canonical session mutate shared cache state so an
// aggregate observed by several sessions is updated once. For guild-scoped
// events the canonical session is the first connected one that has seen the
// guild and subscribes to the tag (see Event.CanonicalFor). A guild leaves
// the cache on GUILD_DELETE only once no session still sees it. Counters change only on Connect,
// Disconnect, Register and Unregister; the dispatch table is updated for the
// touched tags only.
//
// # Capabilities
//
// A Mask declares which capability categories a session wants:
//
//	m, err := dispatch.From([]string{"guilds", "guild_members"})
//	m = m.Allow(dispatch.CapGuildVoiceStates).Deny(dispatch.CapGuildMembers)
//
// From(-1) (or AllCapabilities) selects everything that is not globally
// disabled. While SetPresenceCache(false) is in effect the presence
// capability is cleared from every mask built.
//
// # Missing guilds
//
// Events can reference a guild the cache does not hold yet. Those events are
// parked in the SyncQueue: the first one starts a single fetch through the
// configured Fetcher, later ones queue behind it, and all of them replay in
// arrival order once the guild is cached. Some events replay only when the
// channel or role they name still exists in the fetched guild (ReplayIf).
// When the fetch fails the queued events are dropped and the failure is
// reported once.
//
// # Readiness
//
// After a handshake the gateway streams one snapshot per guild. A session is
// ready once the expected snapshots arrived and the stream stayed quiet for
// the quiescence window (WithQuiescence):
//
//	if err := s.WaitUntilReady(ctx); err != nil {
//	    return err
//	}
//
// Handlers registered for TagSessionReady receive a SessionReady payload at
// that point.
//
// # Hooks
//
// Hooks provide observability without coupling to a logging or metrics
// system:
//
//	r := dispatch.New(
//	    dispatch.WithOnSuccess(func(ctx context.Context, sessionID, tag string, v dispatch.Variant, d time.Duration) {
//	        metrics.Timing("dispatch.success", d, "tag:"+tag)
//	    }),
//	    dispatch.WithOnSwitch(func(tag string, from, to dispatch.Variant) {
//	        logger.Debug("variant switched", "tag", tag, "to", to)
//	    }),
//	)
//
// # Error Handling
//
// Processing errors never stop the router. Malformed payloads
// (*DecodeError), failing handlers (*HandlerError) and failed guild fetches
// (*FetchError) are delivered on the owning session's Errors channel and to
// the matching hook. Unknown tags are ignored. Registration mistakes, such
// as a typed handler whose payload type does not match the tag, fail
// immediately.
//
// # Thread Safety
//
// Router is safe for concurrent use. Each handler invocation runs on its own
// goroutine so a slow handler never stalls ingestion; cache mutations run
// on the goroutine that called Dispatch, in arrival order.
package dispatch
