package dispatch

import "iter"

// FilterSessions yields, in order, the sessions that want c. The sequence
// is lazy and can be ranged over any number of times.
func FilterSessions(sessions []*Session, c Capability) iter.Seq[*Session] {
	return func(yield func(*Session) bool) {
		for _, s := range sessions {
			if s.Wants(c) && !yield(s) {
				return
			}
		}
	}
}

// FirstSession returns the first session that wants c, or nil.
func FirstSession(sessions []*Session, c Capability) *Session {
	for s := range FilterSessions(sessions, c) {
		return s
	}
	return nil
}

// FirstSessionOrFallback is FirstSession returning fallback when no session
// wants c.
func FirstSessionOrFallback(sessions []*Session, c Capability, fallback *Session) *Session {
	if s := FirstSession(sessions, c); s != nil {
		return s
	}
	return fallback
}

// IsCanonical reports whether s is the session responsible for mutating
// shared cache state for events gated by c. When several sessions observe
// the same aggregate only the canonical one applies the change.
func IsCanonical(sessions []*Session, c Capability, s *Session) bool {
	return FirstSessionOrFallback(sessions, c, s) == s
}
