package dispatch

import (
	"context"
	"reflect"
)

// Variant identifies one of the four interchangeable implementations a tag
// can have installed.
type Variant uint8

const (
	// VariantCacheSingle updates the cache and skips handlers. Installed
	// while nobody listens and at most one session subscribes.
	VariantCacheSingle Variant = iota
	// VariantCacheMulti updates the cache from the canonical session only.
	VariantCacheMulti
	// VariantHandlerSingle updates the cache and schedules handlers.
	VariantHandlerSingle
	// VariantHandlerMulti updates the cache from the canonical session and
	// schedules the receiving session's handlers.
	VariantHandlerMulti
)

func (v Variant) String() string {
	switch v {
	case VariantCacheSingle:
		return "cache/single"
	case VariantCacheMulti:
		return "cache/multi"
	case VariantHandlerSingle:
		return "handler/single"
	case VariantHandlerMulti:
		return "handler/multi"
	default:
		return "unknown"
	}
}

// Handlers reports whether the variant schedules user handlers.
func (v Variant) Handlers() bool {
	return v == VariantHandlerSingle || v == VariantHandlerMulti
}

// Multi reports whether the variant guards shared state against being
// mutated once per session.
func (v Variant) Multi() bool {
	return v == VariantCacheMulti || v == VariantHandlerMulti
}

// SelectVariant maps a tag's counters to the variant that must be
// installed: handlers only run when someone listens, and shared state is
// only guarded when more than one session subscribes.
func SelectVariant(mentions, clients int) Variant {
	switch {
	case mentions == 0 && clients < 2:
		return VariantCacheSingle
	case mentions == 0:
		return VariantCacheMulti
	case clients < 2:
		return VariantHandlerSingle
	default:
		return VariantHandlerMulti
	}
}

// VariantFunc processes one event.
type VariantFunc func(ctx context.Context, ev *Event) error

// Variants is the full set of implementations for one tag.
type Variants struct {
	CacheSingle   VariantFunc
	CacheMulti    VariantFunc
	HandlerSingle VariantFunc
	HandlerMulti  VariantFunc

	// Event is the type handed to handlers. Typed handlers registered with
	// On are checked against it. Nil disables the check.
	Event reflect.Type
}

func (v Variants) get(which Variant) VariantFunc {
	switch which {
	case VariantCacheMulti:
		return v.CacheMulti
	case VariantHandlerSingle:
		return v.HandlerSingle
	case VariantHandlerMulti:
		return v.HandlerMulti
	default:
		return v.CacheSingle
	}
}

func (v Variants) complete() bool {
	return v.CacheSingle != nil && v.CacheMulti != nil && v.HandlerSingle != nil && v.HandlerMulti != nil
}

// Uniform returns Variants that run fn for every selection. Useful for tags
// whose handling does not depend on who listens.
func Uniform(fn VariantFunc, event reflect.Type) Variants {
	return Variants{CacheSingle: fn, CacheMulti: fn, HandlerSingle: fn, HandlerMulti: fn, Event: event}
}

// parser is the per-tag selection strategy.
type parser struct {
	tag        string
	capability Capability
	variants   Variants

	mentions int
	clients  int
	selected Variant
}

func newParser(tag string, v Variants) *parser {
	return &parser{
		tag:        tag,
		capability: CapabilityOf(tag),
		variants:   v,
		selected:   VariantCacheSingle,
	}
}

// Select returns the variant the counters call for.
func (p *parser) Select() Variant {
	return SelectVariant(p.mentions, p.clients)
}

// OnCounterChanged recomputes the selection and reports whether it changed.
func (p *parser) OnCounterChanged() bool {
	next := p.Select()
	if next == p.selected {
		return false
	}
	p.selected = next
	return true
}

func (p *parser) installed() VariantFunc {
	return p.variants.get(p.selected)
}

// accepts reports whether a handler for payload type t may be attached.
func (p *parser) accepts(t reflect.Type) bool {
	want := p.variants.Event
	if want == nil || t == nil {
		return true
	}
	if want == t {
		return true
	}
	return t.Kind() == reflect.Interface && want.Implements(t)
}
