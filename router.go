package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// tableEntry is the dispatch table's view of one tag.
type tableEntry struct {
	fn      VariantFunc
	variant Variant
}

// Router routes gateway events from any number of sessions to the variant
// installed for their tag.
//
// Usage:
//  1. Create a router with New
//  2. Create sessions with NewSession and attach them with Connect
//  3. Register handlers with Register or On
//  4. Feed events with Dispatch (decoded) or Process (raw frames)
//  5. Stop with Shutdown
//
// Every method is safe for concurrent use. Registration, Connect and
// Disconnect serialize on one lock; Dispatch only takes it for reading.
type Router struct {
	mu       sync.RWMutex
	parsers  map[string]*parser
	table    map[string]tableEntry
	sessions map[string]*Session
	order    []*Session // connect order; replaced, never mutated in place
	ledger   *ledger
	observed *observers

	cache   Cache
	fetcher Fetcher
	queue   *SyncQueue
	hooks   hooks
	log     *slog.Logger
	builtin bool

	ctx    context.Context
	cancel context.CancelFunc

	taskMu sync.Mutex
	tasks  sync.WaitGroup
	active int // running tasks, guarded by taskMu
	closed atomic.Bool
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.log = l
	}
}

// WithCache replaces the default in-memory cache.
func WithCache(c Cache) Option {
	return func(r *Router) {
		r.cache = c
	}
}

// WithFetcher sets the collaborator used to load guilds missing from the
// cache. Without one, events for missing guilds are dropped with a
// FetchError.
func WithFetcher(f Fetcher) Option {
	return func(r *Router) {
		r.fetcher = f
	}
}

// WithoutBuiltinParsers leaves the dispatch table empty so every tag is
// registered by the caller.
func WithoutBuiltinParsers() Option {
	return func(r *Router) {
		r.builtin = false
	}
}

// New creates a Router with the given options.
//
// Example:
//
//	r := dispatch.New(
//	    dispatch.WithFetcher(restClient),
//	    dispatch.WithOnHandlerError(func(ctx context.Context, sessionID, tag string, err error) {
//	        logger.Error("handler failed", "tag", tag, "error", err)
//	    }),
//	)
//	defer r.Shutdown(context.Background())
func New(opts ...Option) *Router {
	r := &Router{
		parsers:  make(map[string]*parser),
		table:    make(map[string]tableEntry),
		sessions: make(map[string]*Session),
		ledger:   newLedger(),
		observed: newObservers(),
		builtin:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.cache == nil {
		r.cache = NewMemoryCache()
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.queue = &SyncQueue{
		entries:  make(map[string]*syncEntry),
		fetcher:  r.fetcher,
		base:     r.ctx,
		spawn:    func(fn func(context.Context)) { r.spawn(r.ctx, fn) },
		resolved: func(_ context.Context, g *Guild) { r.cache.PutGuild(g) },
		replay:   r.replay,
		failed:   r.fetchFailed,
	}
	if r.builtin {
		for tag, v := range builtinParsers() {
			// Built-in tags are unique; registration cannot fail here.
			_ = r.RegisterParser(tag, v)
		}
	}
	return r
}

// RegisterParser installs the variants for tag. The record starts with
// counters reflecting the sessions and handlers already known, which for a
// fresh router means the cache-only single-session variant.
func (r *Router) RegisterParser(tag string, v Variants) error {
	if tag == "" || !v.complete() {
		return fmt.Errorf("%w: %q", ErrIncompleteVariants, tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return ErrRouterClosed
	}
	if _, ok := r.parsers[tag]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateParser, tag)
	}

	p := newParser(tag, v)
	for sessionID, tags := range r.ledger.entries {
		for _, reg := range tags[tag] {
			if !p.accepts(reg.payload) {
				return fmt.Errorf("%w: session %s handler for %s takes %s, parser emits %s",
					ErrHandlerType, sessionID, tag, reg.payload, v.Event)
			}
		}
	}
	for _, s := range r.order {
		if s.Wants(p.capability) {
			p.clients++
		}
		if r.ledger.has(s.id, tag) {
			p.mentions++
		}
	}
	p.OnCounterChanged()
	r.parsers[tag] = p
	r.table[tag] = tableEntry{fn: p.installed(), variant: p.selected}
	return nil
}

// Connect attaches a session. Connecting a session twice is a no-op.
func (r *Router) Connect(s *Session) error {
	if s == nil {
		return fmt.Errorf("%w: nil session", ErrUnknownSession)
	}

	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		return ErrRouterClosed
	}
	if cur, ok := r.sessions[s.id]; ok {
		r.mu.Unlock()
		if cur == s {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrSessionExists, s.id)
	}

	r.sessions[s.id] = s
	r.order = append(slices.Clone(r.order), s)
	for tag, p := range r.parsers {
		touched := false
		if s.Wants(p.capability) {
			p.clients++
			touched = true
		}
		if r.ledger.has(s.id, tag) {
			p.mentions++
			touched = true
		}
		if touched {
			r.touch(p)
		}
	}
	r.mu.Unlock()

	r.log.Debug("session connected", slog.String("session", s.id))
	s.watch.Do(func() { go r.watchReady(s) })
	return nil
}

// Disconnect detaches a session, undoing exactly what Connect counted. The
// session's handlers stay registered for a later reconnect. Events already
// queued behind guild fetches still replay against it.
func (r *Router) Disconnect(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	delete(r.sessions, sessionID)
	r.order = slices.DeleteFunc(slices.Clone(r.order), func(x *Session) bool { return x == s })
	r.observed.drop(sessionID)

	for tag, p := range r.parsers {
		touched := false
		if s.Wants(p.capability) {
			p.clients--
			touched = true
		}
		if r.ledger.has(sessionID, tag) {
			p.mentions--
			touched = true
		}
		if touched {
			r.touch(p)
		}
	}
	r.log.Debug("session disconnected", slog.String("session", sessionID))
	return nil
}

// Forget disconnects the session if needed and drops its handlers.
func (r *Router) Forget(sessionID string) {
	_ = r.Disconnect(sessionID)
	r.mu.Lock()
	r.ledger.forget(sessionID)
	r.mu.Unlock()
}

// touch must be called with mu held after a parser's counters changed.
func (r *Router) touch(p *parser) {
	from := p.selected
	if !p.OnCounterChanged() {
		return
	}
	r.table[p.tag] = tableEntry{fn: p.installed(), variant: p.selected}
	r.log.Debug("variant switched",
		slog.String("tag", p.tag),
		slog.String("from", from.String()),
		slog.String("to", p.selected.String()),
	)
	r.callOnSwitch(p.tag, from, p.selected)
}

// Register adds h for tag on a session. Handlers may be registered before
// the session connects.
func (r *Router) Register(sessionID, tag string, h Handler) (HandlerID, error) {
	return r.register(sessionID, tag, h, nil)
}

// On registers a typed handler. The payload type must match the event type
// the tag's parser emits, or be an interface it implements; a mismatch
// fails immediately with ErrHandlerType.
//
// This is a package-level function (not a method) because methods cannot
// have type parameters.
//
// Example:
//
//	dispatch.On(r, session.ID(), dispatch.TagMessageCreate,
//	    func(ctx context.Context, s *dispatch.Session, m dispatch.Message) error {
//	        return nil
//	    })
func On[T any](r *Router, sessionID, tag string, fn func(ctx context.Context, s *Session, payload T) error) (HandlerID, error) {
	if fn == nil {
		return "", ErrNilHandler
	}
	return r.register(sessionID, tag, typed[T]{fn: fn}, reflect.TypeFor[T]())
}

func (r *Router) register(sessionID, tag string, h Handler, payload reflect.Type) (HandlerID, error) {
	if h == nil {
		return "", ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return "", ErrRouterClosed
	}

	p := r.parsers[tag]
	if p != nil && !p.accepts(payload) {
		return "", fmt.Errorf("%w: %s handler takes %s, parser emits %s",
			ErrHandlerType, tag, payload, p.variants.Event)
	}

	reg := registration{id: HandlerID(uuid.NewString()), handler: h, payload: payload}
	if r.ledger.add(sessionID, tag, reg) && p != nil {
		if _, connected := r.sessions[sessionID]; connected {
			p.mentions++
			r.touch(p)
		}
	}
	return reg.id, nil
}

// Unregister removes a handler added with Register or On.
func (r *Router) Unregister(sessionID, tag string, id HandlerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	found, emptied := r.ledger.remove(sessionID, tag, id)
	if !found {
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, id)
	}
	if !emptied {
		return nil
	}
	if p := r.parsers[tag]; p != nil {
		if _, connected := r.sessions[sessionID]; connected {
			p.mentions--
			r.touch(p)
		}
	}
	return nil
}

// Installed returns the variant currently installed for tag.
func (r *Router) Installed(tag string) (Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.table[tag]
	return e.variant, ok
}

// Counters returns a tag's listening sessions (mentions) and subscribed
// sessions (clients).
func (r *Router) Counters(tag string) (mentions, clients int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[tag]
	if !ok {
		return 0, 0, false
	}
	return p.mentions, p.clients, true
}

// Tags returns the registered tags, sorted.
func (r *Router) Tags() []string {
	r.mu.RLock()
	tags := lo.Keys(r.parsers)
	r.mu.RUnlock()
	slices.Sort(tags)
	return tags
}

// Session looks up a connected session.
func (r *Router) Session(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Sessions returns the connected sessions in connect order.
func (r *Router) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Cache returns the router's cache.
func (r *Router) Cache() Cache { return r.cache }

// FetchGuild loads a guild through the fetcher, sharing a fetch the sync
// queue may already have in flight, and caches the result.
func (r *Router) FetchGuild(ctx context.Context, guildID string) (*Guild, error) {
	g, err := r.queue.Fetch(ctx, guildID)
	if err != nil {
		return nil, err
	}
	r.cache.PutGuild(g)
	return g, nil
}

// Dispatch routes one decoded event. Unknown tags are ignored. Decode
// failures are returned and also delivered on the session's error channel.
func (r *Router) Dispatch(ctx context.Context, sessionID, tag string, payload json.RawMessage) error {
	if r.closed.Load() {
		return ErrRouterClosed
	}

	r.mu.RLock()
	s, connected := r.sessions[sessionID]
	entry, known := r.table[tag]
	sessions := r.order
	r.mu.RUnlock()

	if !connected {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	ctx = r.callOnParse(ctx, sessionID, tag)

	if !known {
		r.log.Debug("ignoring unknown tag", slog.String("session", sessionID), slog.String("tag", tag))
		r.callOnUnknownTag(ctx, sessionID, tag)
		return nil
	}

	ev := &Event{
		Tag:      tag,
		Session:  s,
		Payload:  payload,
		Variant:  entry.variant,
		router:   r,
		sessions: sessions,
	}
	return r.run(ctx, ev, entry.fn)
}

// Process decodes a raw gateway frame and dispatches it. Frames that are
// not dispatch frames (heartbeats, hellos, acks) are ignored.
func (r *Router) Process(ctx context.Context, sessionID string, raw []byte) error {
	env, err := ParseEnvelope(raw)
	if err != nil {
		return err
	}
	if !env.IsDispatch() {
		if env.SessionLost() {
			r.log.Info("gateway requested reconnect",
				slog.String("session", sessionID),
				slog.Bool("resumable", env.Resumable),
			)
		}
		return nil
	}
	return r.Dispatch(ctx, sessionID, env.Tag, env.Payload)
}

func (r *Router) run(ctx context.Context, ev *Event, fn VariantFunc) error {
	r.callOnDispatch(ctx, ev)

	start := time.Now()
	err := safeRun(ctx, ev, fn)
	duration := time.Since(start)

	if err == nil {
		r.callOnSuccess(ctx, ev, duration)
		return nil
	}

	var de *DecodeError
	if errors.As(err, &de) {
		r.log.Warn("payload decode failed",
			slog.String("session", ev.Session.id),
			slog.String("tag", ev.Tag),
			slog.Any("error", err),
		)
		r.callOnDecodeError(ctx, ev.Session.id, ev.Tag, err)
	}
	ev.Session.report(err)
	r.callOnFailure(ctx, ev, err, duration)
	return err
}

// safeRun turns a panicking variant into a DecodeError; variants only panic
// on payloads that violate their schema.
func safeRun(ctx context.Context, ev *Event, fn VariantFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &DecodeError{Tag: ev.Tag, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	return fn(ctx, ev)
}

// emit schedules every handler the session registered for tag.
func (r *Router) emit(ctx context.Context, s *Session, tag string, payload any) {
	r.mu.RLock()
	regs := r.ledger.handlers(s.id, tag)
	r.mu.RUnlock()

	for _, reg := range regs {
		r.spawn(ctx, func(ctx context.Context) {
			r.invoke(ctx, s, tag, reg, payload)
		})
	}
}

func (r *Router) invoke(ctx context.Context, s *Session, tag string, reg registration, payload any) {
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		return reg.handler.Handle(ctx, s, payload)
	}()
	if err == nil {
		return
	}
	herr := &HandlerError{Tag: tag, SessionID: s.id, Err: err}
	s.report(herr)
	r.callOnHandlerError(ctx, s.id, tag, herr)
}

// spawn runs fn as an independent unit of work. fn's context keeps the
// values of parent but is cancelled by Shutdown rather than by parent.
// Once the router is closed, new work is accepted only while earlier tasks
// are still running.
func (r *Router) spawn(parent context.Context, fn func(context.Context)) {
	r.taskMu.Lock()
	if r.closed.Load() && r.active == 0 {
		r.taskMu.Unlock()
		return
	}
	r.active++
	r.tasks.Add(1)
	r.taskMu.Unlock()

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(r.ctx, cancel)
	go func() {
		defer r.finish()
		defer cancel()
		defer stop()
		fn(ctx)
	}()
}

func (r *Router) finish() {
	r.taskMu.Lock()
	r.active--
	r.taskMu.Unlock()
	r.tasks.Done()
}

func (r *Router) replay(ctx context.Context, _ *Guild, qe QueuedEvent) {
	r.mu.RLock()
	entry, known := r.table[qe.Replay.Tag]
	sessions := r.order
	r.mu.RUnlock()
	if !known {
		return
	}

	ev := &Event{
		Tag:      qe.Replay.Tag,
		Session:  qe.Session,
		Payload:  qe.Payload,
		Variant:  entry.variant,
		Replayed: true,
		router:   r,
		sessions: sessions,
	}
	// Failures are reported to the session inside run.
	_ = r.run(ctx, ev, entry.fn)
}

func (r *Router) fetchFailed(ctx context.Context, guildID string, err error, events []QueuedEvent) {
	r.log.Error("guild fetch failed",
		slog.String("guild", guildID),
		slog.Int("dropped", len(events)),
		slog.Any("error", err),
	)
	if len(events) > 0 {
		events[0].Session.report(err)
	}
	r.callOnFetchError(ctx, guildID, err, len(events))
}

func (r *Router) watchReady(s *Session) {
	if err := s.ready.WaitUntilReady(r.ctx); err != nil {
		return
	}
	large := s.ready.LargeGuilds()
	r.log.Info("session ready", slog.String("session", s.id), slog.Int("large_guilds", len(large)))
	r.callOnReady(r.ctx, s.id, large)
	r.emit(r.ctx, s, TagSessionReady, SessionReady{SessionID: s.id, LargeGuilds: large})
}

// Shutdown stops accepting events and waits for running handlers and guild
// fetches to finish or for ctx to end, whichever comes first.
func (r *Router) Shutdown(ctx context.Context) error {
	r.taskMu.Lock()
	r.closed.Store(true)
	r.taskMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.tasks.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	r.cancel()
	return err
}
