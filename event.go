package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/tidwall/gjson"
)

// Event is one decoded envelope on its way through a variant.
type Event struct {
	Tag     string
	Session *Session
	Payload json.RawMessage
	Variant Variant

	// Replayed is set when the event is rerun by the sync queue after its
	// guild was fetched.
	Replayed bool

	router   *Router
	sessions []*Session
}

// Cache returns the router's cache.
func (e *Event) Cache() Cache { return e.router.cache }

// Field reads a single payload field without decoding the whole payload.
func (e *Event) Field(path string) gjson.Result {
	return gjson.GetBytes(e.Payload, path)
}

// Canonical reports whether this event's session should mutate shared
// cache state. It is CanonicalFor with no guild.
func (e *Event) Canonical() bool {
	return e.CanonicalFor("")
}

// CanonicalFor reports whether this event's session should mutate the
// cached state of guildID. Single-session variants always mutate.
// Multi-session variants leave it to the first connected session that
// observes the guild and subscribes to the tag's capability, or to this
// session when no such session exists. An empty guildID considers every
// connected session.
func (e *Event) CanonicalFor(guildID string) bool {
	if !e.Variant.Multi() {
		return true
	}
	candidates := e.sessions
	if guildID != "" {
		candidates = e.router.observed.filter(guildID, e.sessions)
	}
	return IsCanonical(candidates, CapabilityOf(e.Tag), e.Session)
}

func (e *Event) observe(guildID string) {
	e.router.observed.add(guildID, e.Session.id)
}

// unobserve returns how many sessions still observe guildID.
func (e *Event) unobserve(guildID string) int {
	return e.router.observed.remove(guildID, e.Session.id)
}

// HasGuild reports whether guild id is cached and no earlier event for it
// is still waiting on a fetch. Replayed events ignore the queue.
func (e *Event) HasGuild(id string) bool {
	if !e.Replayed {
		if _, waiting := e.router.queue.Pending(id); waiting {
			return false
		}
	}
	return e.router.cache.HasGuild(id)
}

// Defer parks the event until guild id has been fetched. A replayed event
// whose guild vanished again is stale and dropped.
func (e *Event) Defer(ctx context.Context, guildID string, replay Replay) {
	if e.Replayed {
		e.router.log.Debug("dropping stale replay",
			slog.String("tag", e.Tag),
			slog.String("guild", guildID),
		)
		return
	}
	if replay.Tag == "" {
		replay.Tag = e.Tag
	}
	e.router.queue.Enqueue(guildID, e.Session, e.Payload, replay)
	e.router.callOnDefer(ctx, e.Session.id, e.Tag, guildID)
}

// Emit schedules this session's handlers for the event's tag with payload.
// It is a no-op under cache-only variants.
func (e *Event) Emit(ctx context.Context, payload any) {
	if !e.Variant.Handlers() {
		return
	}
	e.router.emit(ctx, e.Session, e.Tag, payload)
}
