package dispatch

import (
	"sync"

	"github.com/samber/lo"
)

// Cache stores the aggregates and actors the router mutates. All methods
// are synchronous and never fail; absence is reported through the boolean.
//
// Values handed out by Guild, User and Self are copies. Mutations go through
// PutGuild and UpdateGuild.
type Cache interface {
	Guild(id string) (*Guild, bool)
	HasGuild(id string) bool
	PutGuild(g *Guild)
	// UpdateGuild applies fn to the cached guild in place and reports
	// whether the guild was present.
	UpdateGuild(id string, fn func(g *Guild)) bool
	DeleteGuild(id string) (*Guild, bool)
	GuildIDs() []string

	User(id string) (*User, bool)
	PutUser(u *User)

	// Self is the account a session is logged in as.
	Self(sessionID string) (*User, bool)
	PutSelf(sessionID string, u *User)
}

// NewMemoryCache returns a map-backed Cache safe for concurrent use.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		guilds: make(map[string]*Guild),
		users:  make(map[string]User),
		self:   make(map[string]User),
	}
}

// MemoryCache is the default Cache.
type MemoryCache struct {
	mu     sync.RWMutex
	guilds map[string]*Guild
	users  map[string]User
	self   map[string]User
}

var _ Cache = (*MemoryCache)(nil)

func (c *MemoryCache) Guild(id string) (*Guild, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.guilds[id]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

func (c *MemoryCache) HasGuild(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.guilds[id]
	return ok
}

func (c *MemoryCache) PutGuild(g *Guild) {
	if g == nil || g.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guilds[g.ID] = g.Clone()
}

func (c *MemoryCache) UpdateGuild(id string, fn func(g *Guild)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.guilds[id]
	if !ok {
		return false
	}
	fn(g)
	return true
}

func (c *MemoryCache) DeleteGuild(id string) (*Guild, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.guilds[id]
	if !ok {
		return nil, false
	}
	delete(c.guilds, id)
	return g, true
}

func (c *MemoryCache) GuildIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Keys(c.guilds)
}

func (c *MemoryCache) User(id string) (*User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[id]
	if !ok {
		return nil, false
	}
	return &u, true
}

func (c *MemoryCache) PutUser(u *User) {
	if u == nil || u.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = *u
}

func (c *MemoryCache) Self(sessionID string) (*User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.self[sessionID]
	if !ok {
		return nil, false
	}
	return &u, true
}

func (c *MemoryCache) PutSelf(sessionID string, u *User) {
	if u == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.self[sessionID] = *u
	c.users[u.ID] = *u
}
