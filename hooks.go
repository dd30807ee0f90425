package dispatch

import (
	"context"
	"time"
)

// OnParseFunc is called once a frame's tag is known, before the tag is
// looked up. Use this to enrich the context with logging fields or trace
// spans. The returned context is used for the rest of the dispatch.
type OnParseFunc func(ctx context.Context, sessionID, tag string) context.Context

// OnDispatchFunc is called just before the installed variant runs.
type OnDispatchFunc func(ctx context.Context, sessionID, tag string, v Variant)

// OnSuccessFunc is called after the variant completes successfully.
type OnSuccessFunc func(ctx context.Context, sessionID, tag string, v Variant, duration time.Duration)

// OnFailureFunc is called after the variant fails.
type OnFailureFunc func(ctx context.Context, sessionID, tag string, err error, duration time.Duration)

// OnUnknownTagFunc is called for tags without a parser. Such events are
// ignored.
type OnUnknownTagFunc func(ctx context.Context, sessionID, tag string)

// OnDecodeErrorFunc is called when a payload does not decode.
type OnDecodeErrorFunc func(ctx context.Context, sessionID, tag string, err error)

// OnHandlerErrorFunc is called when a user handler fails or panics.
type OnHandlerErrorFunc func(ctx context.Context, sessionID, tag string, err error)

// OnDeferFunc is called when an event is queued behind a guild fetch.
type OnDeferFunc func(ctx context.Context, sessionID, tag, guildID string)

// OnFetchErrorFunc is called when a guild fetch fails. dropped is the
// number of queued events discarded with it.
type OnFetchErrorFunc func(ctx context.Context, guildID string, err error, dropped int)

// OnReadyFunc is called once per session when its startup burst settles.
type OnReadyFunc func(ctx context.Context, sessionID string, largeGuilds []string)

// OnSwitchFunc is called when a tag's installed variant changes. It runs
// while the router's registration lock is held and must not call back into
// the router.
type OnSwitchFunc func(tag string, from, to Variant)

// hooks holds all configured hook functions.
type hooks struct {
	onParse        []OnParseFunc
	onDispatch     []OnDispatchFunc
	onSuccess      []OnSuccessFunc
	onFailure      []OnFailureFunc
	onUnknownTag   []OnUnknownTagFunc
	onDecodeError  []OnDecodeErrorFunc
	onHandlerError []OnHandlerErrorFunc
	onDefer        []OnDeferFunc
	onFetchError   []OnFetchErrorFunc
	onReady        []OnReadyFunc
	onSwitch       []OnSwitchFunc
}

// WithOnParse adds a hook called once a frame's tag is known.
// Multiple hooks are called in order, with context chaining through each.
//
// Example:
//
//	dispatch.WithOnParse(func(ctx context.Context, sessionID, tag string) context.Context {
//	    return logx.WithCtx(ctx, slog.String("tag", tag))
//	})
func WithOnParse(fn OnParseFunc) Option {
	return func(r *Router) {
		r.hooks.onParse = append(r.hooks.onParse, fn)
	}
}

// WithOnDispatch adds a hook called just before the variant executes.
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(r *Router) {
		r.hooks.onDispatch = append(r.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after the variant completes successfully.
//
// Example:
//
//	dispatch.WithOnSuccess(func(ctx context.Context, sessionID, tag string, v dispatch.Variant, d time.Duration) {
//	    metrics.Timing("dispatch.success", d, "tag:"+tag, "variant:"+v.String())
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(r *Router) {
		r.hooks.onSuccess = append(r.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after the variant fails.
func WithOnFailure(fn OnFailureFunc) Option {
	return func(r *Router) {
		r.hooks.onFailure = append(r.hooks.onFailure, fn)
	}
}

// WithOnUnknownTag adds a hook called for tags without a parser.
func WithOnUnknownTag(fn OnUnknownTagFunc) Option {
	return func(r *Router) {
		r.hooks.onUnknownTag = append(r.hooks.onUnknownTag, fn)
	}
}

// WithOnDecodeError adds a hook called when a payload fails to decode.
// The error is also delivered on the session's error channel.
func WithOnDecodeError(fn OnDecodeErrorFunc) Option {
	return func(r *Router) {
		r.hooks.onDecodeError = append(r.hooks.onDecodeError, fn)
	}
}

// WithOnHandlerError adds a hook called when a user handler fails.
// The error is also delivered on the owning session's error channel.
//
// Example:
//
//	dispatch.WithOnHandlerError(func(ctx context.Context, sessionID, tag string, err error) {
//	    logger.Error("handler failed", "session", sessionID, "tag", tag, "error", err)
//	})
func WithOnHandlerError(fn OnHandlerErrorFunc) Option {
	return func(r *Router) {
		r.hooks.onHandlerError = append(r.hooks.onHandlerError, fn)
	}
}

// WithOnDefer adds a hook called when an event waits for a guild fetch.
func WithOnDefer(fn OnDeferFunc) Option {
	return func(r *Router) {
		r.hooks.onDefer = append(r.hooks.onDefer, fn)
	}
}

// WithOnFetchError adds a hook called when a guild fetch fails.
func WithOnFetchError(fn OnFetchErrorFunc) Option {
	return func(r *Router) {
		r.hooks.onFetchError = append(r.hooks.onFetchError, fn)
	}
}

// WithOnReady adds a hook called when a session finishes startup.
func WithOnReady(fn OnReadyFunc) Option {
	return func(r *Router) {
		r.hooks.onReady = append(r.hooks.onReady, fn)
	}
}

// WithOnSwitch adds a hook called when a tag's installed variant changes.
func WithOnSwitch(fn OnSwitchFunc) Option {
	return func(r *Router) {
		r.hooks.onSwitch = append(r.hooks.onSwitch, fn)
	}
}

func (r *Router) callOnParse(ctx context.Context, sessionID, tag string) context.Context {
	for _, fn := range r.hooks.onParse {
		ctx = fn(ctx, sessionID, tag)
	}
	return ctx
}

func (r *Router) callOnDispatch(ctx context.Context, ev *Event) {
	for _, fn := range r.hooks.onDispatch {
		fn(ctx, ev.Session.id, ev.Tag, ev.Variant)
	}
}

func (r *Router) callOnSuccess(ctx context.Context, ev *Event, d time.Duration) {
	for _, fn := range r.hooks.onSuccess {
		fn(ctx, ev.Session.id, ev.Tag, ev.Variant, d)
	}
}

func (r *Router) callOnFailure(ctx context.Context, ev *Event, err error, d time.Duration) {
	for _, fn := range r.hooks.onFailure {
		fn(ctx, ev.Session.id, ev.Tag, err, d)
	}
}

func (r *Router) callOnUnknownTag(ctx context.Context, sessionID, tag string) {
	for _, fn := range r.hooks.onUnknownTag {
		fn(ctx, sessionID, tag)
	}
}

func (r *Router) callOnDecodeError(ctx context.Context, sessionID, tag string, err error) {
	for _, fn := range r.hooks.onDecodeError {
		fn(ctx, sessionID, tag, err)
	}
}

func (r *Router) callOnHandlerError(ctx context.Context, sessionID, tag string, err error) {
	for _, fn := range r.hooks.onHandlerError {
		fn(ctx, sessionID, tag, err)
	}
}

func (r *Router) callOnDefer(ctx context.Context, sessionID, tag, guildID string) {
	for _, fn := range r.hooks.onDefer {
		fn(ctx, sessionID, tag, guildID)
	}
}

func (r *Router) callOnFetchError(ctx context.Context, guildID string, err error, dropped int) {
	for _, fn := range r.hooks.onFetchError {
		fn(ctx, guildID, err, dropped)
	}
}

func (r *Router) callOnReady(ctx context.Context, sessionID string, large []string) {
	for _, fn := range r.hooks.onReady {
		fn(ctx, sessionID, large)
	}
}

func (r *Router) callOnSwitch(tag string, from, to Variant) {
	for _, fn := range r.hooks.onSwitch {
		fn(tag, from, to)
	}
}
