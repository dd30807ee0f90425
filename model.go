package dispatch

import (
	"slices"

	"github.com/samber/lo"
)

// User is a gateway account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Role is a guild permission role.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Position    int    `json:"position"`
	Permissions string `json:"permissions,omitempty"`
}

// Channel is a guild or direct-message channel.
type Channel struct {
	ID       string `json:"id"`
	GuildID  string `json:"guild_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Type     int    `json:"type"`
	Position int    `json:"position,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

// Member is a user's membership in a guild.
type Member struct {
	GuildID string   `json:"guild_id,omitempty"`
	User    User     `json:"user"`
	Nick    string   `json:"nick,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}

// VoiceState is a user's connection to a voice channel. An empty ChannelID
// means the user left voice.
type VoiceState struct {
	GuildID   string `json:"guild_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

// Presence is a user's online status inside a guild.
type Presence struct {
	GuildID string `json:"guild_id,omitempty"`
	User    User   `json:"user"`
	Status  string `json:"status"`
}

// Guild is the aggregate that owns channels, roles, members, voice states
// and presences.
type Guild struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	OwnerID     string       `json:"owner_id,omitempty"`
	Large       bool         `json:"large,omitempty"`
	MemberCount int          `json:"member_count,omitempty"`
	Unavailable bool         `json:"unavailable,omitempty"`
	Channels    []Channel    `json:"channels,omitempty"`
	Roles       []Role       `json:"roles,omitempty"`
	Members     []Member     `json:"members,omitempty"`
	VoiceStates []VoiceState `json:"voice_states,omitempty"`
	Presences   []Presence   `json:"presences,omitempty"`
}

// Clone returns a deep copy of g.
func (g *Guild) Clone() *Guild {
	if g == nil {
		return nil
	}
	c := *g
	c.Channels = slices.Clone(g.Channels)
	c.Roles = slices.Clone(g.Roles)
	c.Members = slices.Clone(g.Members)
	for i := range c.Members {
		c.Members[i].Roles = slices.Clone(c.Members[i].Roles)
	}
	c.VoiceStates = slices.Clone(g.VoiceStates)
	c.Presences = slices.Clone(g.Presences)
	return &c
}

// Channel looks up a channel by id.
func (g *Guild) Channel(id string) (Channel, bool) {
	return lo.Find(g.Channels, func(c Channel) bool { return c.ID == id })
}

// Role looks up a role by id.
func (g *Guild) Role(id string) (Role, bool) {
	return lo.Find(g.Roles, func(r Role) bool { return r.ID == id })
}

// Member looks up a member by user id.
func (g *Guild) Member(userID string) (Member, bool) {
	return lo.Find(g.Members, func(m Member) bool { return m.User.ID == userID })
}

// VoiceState looks up a user's voice state.
func (g *Guild) VoiceState(userID string) (VoiceState, bool) {
	return lo.Find(g.VoiceStates, func(v VoiceState) bool { return v.UserID == userID })
}

func (g *Guild) setChannel(c Channel) {
	g.Channels = upsert(g.Channels, c, func(x Channel) bool { return x.ID == c.ID })
}

func (g *Guild) removeChannel(id string) {
	g.Channels = lo.Reject(g.Channels, func(c Channel, _ int) bool { return c.ID == id })
}

func (g *Guild) setRole(r Role) {
	g.Roles = upsert(g.Roles, r, func(x Role) bool { return x.ID == r.ID })
}

func (g *Guild) removeRole(id string) {
	g.Roles = lo.Reject(g.Roles, func(r Role, _ int) bool { return r.ID == id })
}

func (g *Guild) setMember(m Member) {
	g.Members = upsert(g.Members, m, func(x Member) bool { return x.User.ID == m.User.ID })
}

func (g *Guild) removeMember(userID string) bool {
	n := len(g.Members)
	g.Members = lo.Reject(g.Members, func(m Member, _ int) bool { return m.User.ID == userID })
	return len(g.Members) != n
}

func (g *Guild) setVoiceState(v VoiceState) {
	if v.ChannelID == "" {
		g.VoiceStates = lo.Reject(g.VoiceStates, func(x VoiceState, _ int) bool { return x.UserID == v.UserID })
		return
	}
	g.VoiceStates = upsert(g.VoiceStates, v, func(x VoiceState) bool { return x.UserID == v.UserID })
}

func (g *Guild) setPresence(p Presence) {
	g.Presences = upsert(g.Presences, p, func(x Presence) bool { return x.User.ID == p.User.ID })
}

func upsert[T any](items []T, v T, match func(T) bool) []T {
	if _, i, ok := lo.FindIndexOf(items, match); ok {
		items[i] = v
		return items
	}
	return append(items, v)
}

// Message is a chat message.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Author    User   `json:"author"`
	Content   string `json:"content"`
}

// Emoji identifies a reaction emoji.
type Emoji struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Reaction is a single user's reaction to a message.
type Reaction struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Emoji     Emoji  `json:"emoji"`
}

// Typing reports a user starting to type.
type Typing struct {
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
}

// Ban reports a user banned from a guild.
type Ban struct {
	GuildID string `json:"guild_id"`
	User    User   `json:"user"`
}

// RoleEvent carries a role together with its guild.
type RoleEvent struct {
	GuildID string `json:"guild_id"`
	Role    Role   `json:"role"`
}

// Ready is the handshake acknowledgement. Guilds lists the stubs whose
// snapshots will follow.
type Ready struct {
	SessionID string  `json:"session_id"`
	User      User    `json:"user"`
	Guilds    []Guild `json:"guilds"`
	Shard     []int   `json:"shard,omitempty"`
}

// SessionReady is delivered to SESSION_READY handlers once the initial
// burst of guild snapshots has settled.
type SessionReady struct {
	SessionID   string
	LargeGuilds []string
}

// Update pairs the cached value before an update with the value after it.
// Cached is false when nothing was cached before.
type Update[T any] struct {
	Before T
	After  T
	Cached bool
}
