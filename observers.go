package dispatch

import (
	"sync"

	"github.com/samber/lo"
)

// observers tracks which sessions see each guild. Sessions are held by id
// so a disconnected session never pins memory here.
type observers struct {
	mu     sync.RWMutex
	guilds map[string]map[string]struct{}
}

func newObservers() *observers {
	return &observers{guilds: make(map[string]map[string]struct{})}
}

func (o *observers) add(guildID, sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	set, ok := o.guilds[guildID]
	if !ok {
		set = make(map[string]struct{})
		o.guilds[guildID] = set
	}
	set[sessionID] = struct{}{}
}

// remove stops sessionID observing guildID and returns how many sessions
// still do.
func (o *observers) remove(guildID, sessionID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	set := o.guilds[guildID]
	delete(set, sessionID)
	if len(set) == 0 {
		delete(o.guilds, guildID)
		return 0
	}
	return len(set)
}

// drop forgets sessionID across every guild.
func (o *observers) drop(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, set := range o.guilds {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(o.guilds, id)
		}
	}
}

// observes reports whether sessionID sees guildID.
func (o *observers) observes(guildID, sessionID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.guilds[guildID][sessionID]
	return ok
}

// filter returns the sessions observing guildID, keeping their order.
func (o *observers) filter(guildID string, sessions []*Session) []*Session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	set := o.guilds[guildID]
	return lo.Filter(sessions, func(s *Session, _ int) bool {
		_, ok := set[s.id]
		return ok
	})
}
