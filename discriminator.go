package dispatch

import "slices"

// Discriminator classifies a raw frame from a few cheap field checks,
// before any full decoding.
type Discriminator interface {
	Match(v View) bool
}

// MatchFunc is a Discriminator built from a predicate over a View.
type MatchFunc func(v View) bool

// Match implements Discriminator.
func (m MatchFunc) Match(v View) bool { return m(v) }

// HasFields matches frames carrying every path. With no paths it matches
// any frame.
func HasFields(paths ...string) Discriminator {
	return MatchFunc(func(v View) bool {
		return !slices.ContainsFunc(paths, func(p string) bool { return !v.HasField(p) })
	})
}

// FieldEquals matches when path holds the string value.
func FieldEquals(path, value string) Discriminator {
	return FieldIn(path, value)
}

// FieldIn matches when path holds one of values. Numbers never match.
func FieldIn(path string, values ...string) Discriminator {
	return MatchFunc(func(v View) bool {
		s, ok := v.GetString(path)
		return ok && slices.Contains(values, s)
	})
}

// FieldIntEquals matches when path holds the number value, as opcodes do.
func FieldIntEquals(path string, value int64) Discriminator {
	return MatchFunc(func(v View) bool {
		n, ok := v.GetInt(path)
		return ok && n == value
	})
}

// And matches when every d matches; an empty And matches anything.
func And(ds ...Discriminator) Discriminator {
	return MatchFunc(func(v View) bool {
		return !slices.ContainsFunc(ds, func(d Discriminator) bool { return !d.Match(v) })
	})
}

// Or matches when some d matches; an empty Or matches nothing.
func Or(ds ...Discriminator) Discriminator {
	return MatchFunc(func(v View) bool {
		return slices.ContainsFunc(ds, func(d Discriminator) bool { return d.Match(v) })
	})
}

// Not inverts d.
func Not(d Discriminator) Discriminator {
	return MatchFunc(func(v View) bool { return !d.Match(v) })
}
