package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/samber/lo"
)

// Handler receives events for one session.
type Handler interface {
	Handle(ctx context.Context, s *Session, payload any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, s *Session, payload any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, s *Session, payload any) error {
	return f(ctx, s, payload)
}

// HandlerID identifies one registration. Pass it to Unregister.
type HandlerID string

type registration struct {
	id      HandlerID
	handler Handler
	payload reflect.Type
}

// ledger records user handlers per session and tag. Sessions are referenced
// by id only; a disconnected session's handlers stay recorded so a
// reconnect restores them.
type ledger struct {
	entries map[string]map[string][]registration
}

func newLedger() *ledger {
	return &ledger{entries: make(map[string]map[string][]registration)}
}

// add appends reg and reports whether the slot was empty before.
func (l *ledger) add(sessionID, tag string, reg registration) bool {
	tags, ok := l.entries[sessionID]
	if !ok {
		tags = make(map[string][]registration)
		l.entries[sessionID] = tags
	}
	was := len(tags[tag])
	tags[tag] = append(tags[tag], reg)
	return was == 0
}

// remove drops the registration with id. It reports whether it was found
// and whether the slot is empty afterwards.
func (l *ledger) remove(sessionID, tag string, id HandlerID) (found, emptied bool) {
	tags, ok := l.entries[sessionID]
	if !ok {
		return false, false
	}
	regs := tags[tag]
	_, i, ok := lo.FindIndexOf(regs, func(r registration) bool { return r.id == id })
	if !ok {
		return false, false
	}
	regs = slices.Delete(slices.Clone(regs), i, i+1)
	if len(regs) > 0 {
		tags[tag] = regs
		return true, false
	}
	delete(tags, tag)
	if len(tags) == 0 {
		delete(l.entries, sessionID)
	}
	return true, true
}

// handlers returns the registrations for a slot in registration order. The
// returned slice must not be modified.
func (l *ledger) handlers(sessionID, tag string) []registration {
	return l.entries[sessionID][tag]
}

func (l *ledger) has(sessionID, tag string) bool {
	return len(l.entries[sessionID][tag]) > 0
}

// tags returns the tags with at least one handler for the session.
func (l *ledger) tags(sessionID string) []string {
	return lo.Keys(l.entries[sessionID])
}

func (l *ledger) forget(sessionID string) {
	delete(l.entries, sessionID)
}

// typed adapts a typed handler function to Handler.
type typed[T any] struct {
	fn func(ctx context.Context, s *Session, payload T) error
}

func (h typed[T]) Handle(ctx context.Context, s *Session, payload any) error {
	v, ok := payload.(T)
	if !ok {
		return fmt.Errorf("%w: got %T", ErrHandlerType, payload)
	}
	return h.fn(ctx, s, v)
}
