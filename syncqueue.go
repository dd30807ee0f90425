//go:generate go run go.uber.org/mock/mockgen -source=syncqueue.go -destination=mock_fetcher_test.go -package=dispatch -self_package=github.com/bjaus/gateway/dispatch

package dispatch

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads a guild the cache does not hold. Implementations report
// ErrNotFound or ErrForbidden (possibly wrapped) for guilds that cannot be
// loaded.
type Fetcher interface {
	FetchGuild(ctx context.Context, guildID string) (*Guild, error)
}

// FetcherFunc is a function adapter for Fetcher.
type FetcherFunc func(ctx context.Context, guildID string) (*Guild, error)

// FetchGuild implements the Fetcher interface.
func (f FetcherFunc) FetchGuild(ctx context.Context, guildID string) (*Guild, error) {
	return f(ctx, guildID)
}

// Replay describes how a queued event is rerun once its guild arrives.
type Replay struct {
	Tag string

	// Check, when set, must hold against the fetched guild for the event
	// to be replayed. It confirms that a sub-resource the event names
	// still exists.
	Check func(g *Guild, extra any) bool
	Extra any
}

// ReplayFull reruns the full dispatch for tag.
func ReplayFull(tag string) Replay {
	return Replay{Tag: tag}
}

// ReplayIf reruns tag only if check(fetched, extra) holds.
func ReplayIf(tag string, check func(g *Guild, extra any) bool, extra any) Replay {
	return Replay{Tag: tag, Check: check, Extra: extra}
}

// allows reports whether the event may be replayed against g.
func (r Replay) allows(g *Guild) bool {
	return r.Check == nil || r.Check(g, r.Extra)
}

// HasChannel is a Replay check confirming extra (a channel id) exists in
// the fetched guild.
func HasChannel(g *Guild, extra any) bool {
	id, _ := extra.(string)
	_, ok := g.Channel(id)
	return ok
}

// HasRole is a Replay check confirming extra (a role id) exists in the
// fetched guild.
func HasRole(g *Guild, extra any) bool {
	id, _ := extra.(string)
	_, ok := g.Role(id)
	return ok
}

// QueuedEvent is one event waiting for its guild.
type QueuedEvent struct {
	Session *Session
	Payload json.RawMessage
	Replay  Replay
}

type syncEntry struct {
	events []QueuedEvent
}

// SyncQueue holds events whose guild is not cached yet. The first event for
// a guild starts exactly one fetch; events arriving while it runs queue
// behind it and all of them replay in arrival order once it resolves.
type SyncQueue struct {
	mu      sync.Mutex
	entries map[string]*syncEntry
	flight  singleflight.Group

	fetcher Fetcher
	spawn   func(func(ctx context.Context))

	// base bounds every shared fetch. A caller's own ctx only ends its
	// wait, never the fetch other callers joined.
	base context.Context

	// resolved is called with the fetched guild before any replay so the
	// guild is cached by the time queued events run.
	resolved func(ctx context.Context, g *Guild)
	replay   func(ctx context.Context, g *Guild, ev QueuedEvent)
	failed   func(ctx context.Context, guildID string, err error, events []QueuedEvent)
}

// Enqueue queues an event for guildID, starting a fetch if none is
// outstanding. It reports whether a fetch was started.
func (q *SyncQueue) Enqueue(guildID string, s *Session, payload json.RawMessage, replay Replay) bool {
	q.mu.Lock()
	entry, ok := q.entries[guildID]
	if !ok {
		entry = &syncEntry{}
		q.entries[guildID] = entry
	}
	entry.events = append(entry.events, QueuedEvent{Session: s, Payload: payload, Replay: replay})
	q.mu.Unlock()

	if ok {
		return false
	}
	q.spawn(func(ctx context.Context) { q.resolve(ctx, guildID) })
	return true
}

// Pending reports how many events wait for guildID and whether an entry
// exists at all.
func (q *SyncQueue) Pending(guildID string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[guildID]
	if !ok {
		return 0, false
	}
	return len(entry.events), true
}

// Fetch loads a guild, sharing any fetch already in flight for the id.
// Cancelling ctx stops this caller waiting; the fetch itself runs until
// it finishes or the queue's base context ends.
func (q *SyncQueue) Fetch(ctx context.Context, guildID string) (*Guild, error) {
	if q.fetcher == nil {
		return nil, &FetchError{GuildID: guildID, Err: ErrNoFetcher}
	}
	ch := q.flight.DoChan(guildID, func() (any, error) {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		if q.base != nil {
			stop := context.AfterFunc(q.base, cancel)
			defer stop()
		}
		return q.fetcher.FetchGuild(fctx, guildID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, &FetchError{GuildID: guildID, Err: res.Err}
		}
		g, _ := res.Val.(*Guild)
		if g == nil {
			return nil, &FetchError{GuildID: guildID, Err: ErrNotFound}
		}
		return g.Clone(), nil
	case <-ctx.Done():
		return nil, &FetchError{GuildID: guildID, Err: ctx.Err()}
	}
}

func (q *SyncQueue) resolve(ctx context.Context, guildID string) {
	g, err := q.Fetch(ctx, guildID)
	if err != nil {
		q.mu.Lock()
		entry := q.entries[guildID]
		delete(q.entries, guildID)
		q.mu.Unlock()
		if entry != nil {
			q.failed(ctx, guildID, err, entry.events)
		}
		return
	}

	q.resolved(ctx, g)

	// Events that queue up while earlier ones replay are drained in the
	// same pass so arrival order holds.
	for {
		q.mu.Lock()
		entry := q.entries[guildID]
		if entry == nil || len(entry.events) == 0 {
			delete(q.entries, guildID)
			q.mu.Unlock()
			return
		}
		events := entry.events
		entry.events = nil
		q.mu.Unlock()

		for _, ev := range events {
			if ev.Replay.allows(g) {
				q.replay(ctx, g, ev)
			}
		}
	}
}
