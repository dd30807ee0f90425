package dispatch

import (
	"fmt"
	"iter"
	"math"
	"math/bits"
	"sync/atomic"
)

// Capability names one subscription category a session can ask the gateway
// to deliver. The value is the bit position inside a Mask.
type Capability uint8

const (
	CapGuilds Capability = iota
	CapGuildMembers
	CapGuildBans
	CapGuildEmojis
	CapGuildIntegrations
	CapGuildWebhooks
	CapGuildInvites
	CapGuildVoiceStates
	CapGuildPresences
	CapGuildMessages
	CapGuildMessageReactions
	CapGuildMessageTyping
	CapDirectMessages
	CapDirectMessageReactions
	CapDirectMessageTyping

	capabilityCount
)

// CapAlways is the pseudo capability of tags every session receives
// regardless of its mask.
const CapAlways Capability = 0xff

var capabilityNames = [capabilityCount]string{
	CapGuilds:                 "guilds",
	CapGuildMembers:           "guild_members",
	CapGuildBans:              "guild_bans",
	CapGuildEmojis:            "guild_emojis",
	CapGuildIntegrations:      "guild_integrations",
	CapGuildWebhooks:          "guild_webhooks",
	CapGuildInvites:           "guild_invites",
	CapGuildVoiceStates:       "guild_voice_states",
	CapGuildPresences:         "guild_presences",
	CapGuildMessages:          "guild_messages",
	CapGuildMessageReactions:  "guild_message_reactions",
	CapGuildMessageTyping:     "guild_message_typing",
	CapDirectMessages:         "direct_messages",
	CapDirectMessageReactions: "direct_message_reactions",
	CapDirectMessageTyping:    "direct_message_typing",
}

// capabilityTags maps each capability to the event tags it gates.
var capabilityTags = [capabilityCount][]string{
	CapGuilds: {
		TagGuildCreate, TagGuildUpdate, TagGuildDelete,
		TagGuildRoleCreate, TagGuildRoleUpdate, TagGuildRoleDelete,
		TagChannelCreate, TagChannelUpdate, TagChannelDelete,
	},
	CapGuildMembers:           {TagGuildMemberAdd, TagGuildMemberUpdate, TagGuildMemberRemove},
	CapGuildBans:              {TagGuildBanAdd, TagGuildBanRemove},
	CapGuildEmojis:            {TagGuildEmojisUpdate},
	CapGuildIntegrations:      {TagGuildIntegrationsUpdate},
	CapGuildWebhooks:          {TagWebhooksUpdate},
	CapGuildInvites:           {TagInviteCreate, TagInviteDelete},
	CapGuildVoiceStates:       {TagVoiceStateUpdate},
	CapGuildPresences:         {TagPresenceUpdate},
	CapGuildMessages:          {TagMessageCreate, TagMessageUpdate, TagMessageDelete},
	CapGuildMessageReactions:  {TagMessageReactionAdd, TagMessageReactionRemove},
	CapGuildMessageTyping:     {TagTypingStart},
	CapDirectMessages:         {TagDirectMessageCreate},
	CapDirectMessageReactions: {TagDirectMessageReactionAdd},
	CapDirectMessageTyping:    {TagDirectTypingStart},
}

// alwaysTags are delivered to every session.
var alwaysTags = []string{TagReady, TagUserUpdate}

var tagCapability = func() map[string]Capability {
	m := make(map[string]Capability)
	for c, tags := range capabilityTags {
		for _, t := range tags {
			m[t] = Capability(c)
		}
	}
	for _, t := range alwaysTags {
		m[t] = CapAlways
	}
	return m
}()

// String returns the capability's wire name.
func (c Capability) String() string {
	if c == CapAlways {
		return "always"
	}
	if c >= capabilityCount {
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
	return capabilityNames[c]
}

// ParseCapability resolves a capability by name.
func ParseCapability(name string) (Capability, error) {
	for i, n := range capabilityNames {
		if n == name {
			return Capability(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
}

// CapabilityOf reports the capability gating tag. Tags that are not gated
// by any capability report CapAlways.
func CapabilityOf(tag string) Capability {
	if c, ok := tagCapability[tag]; ok {
		return c
	}
	return CapAlways
}

var presenceCache atomic.Bool

func init() {
	presenceCache.Store(true)
}

// SetPresenceCache toggles the process-wide presence cache. While disabled,
// every Mask built afterwards has CapGuildPresences cleared.
func SetPresenceCache(enabled bool) {
	presenceCache.Store(enabled)
}

// PresenceCacheEnabled reports the process-wide presence cache flag.
func PresenceCacheEnabled() bool {
	return presenceCache.Load()
}

const allBits = uint32(1)<<capabilityCount - 1

// Mask is an immutable set of capabilities.
type Mask struct {
	bits uint32
}

func newMask(b uint32) Mask {
	b &= allBits
	if !presenceCache.Load() {
		b &^= 1 << CapGuildPresences
	}
	return Mask{bits: b}
}

// AllCapabilities returns every capability that is not globally disabled.
func AllCapabilities() Mask {
	return newMask(allBits)
}

// From builds a Mask. It accepts a raw bit value (negative means every
// capability, unknown bits are ignored, values past 32 bits are rejected), a Mask, a single Capability, a []Capability, or a []string
// of capability names.
func From(v any) (Mask, error) {
	switch x := v.(type) {
	case Mask:
		return newMask(x.bits), nil
	case int:
		return fromInt(int64(x))
	case int64:
		return fromInt(x)
	case uint32:
		return newMask(x), nil
	case Capability:
		if x >= capabilityCount {
			return Mask{}, fmt.Errorf("%w: %s", ErrUnknownCapability, x)
		}
		return newMask(1 << x), nil
	case []Capability:
		var b uint32
		for _, c := range x {
			if c >= capabilityCount {
				return Mask{}, fmt.Errorf("%w: %s", ErrUnknownCapability, c)
			}
			b |= 1 << c
		}
		return newMask(b), nil
	case []string:
		var b uint32
		for _, name := range x {
			c, err := ParseCapability(name)
			if err != nil {
				return Mask{}, err
			}
			b |= 1 << c
		}
		return newMask(b), nil
	default:
		return Mask{}, fmt.Errorf("%w: %T", ErrMaskType, v)
	}
}

// fromInt rejects values a uint32 cannot hold rather than truncating them.
func fromInt(v int64) (Mask, error) {
	switch {
	case v < 0:
		return AllCapabilities(), nil
	case v > math.MaxUint32:
		return Mask{}, fmt.Errorf("%w: %d overflows 32 bits", ErrMaskType, v)
	}
	return newMask(uint32(v)), nil
}

// Bits returns the raw bit value.
func (m Mask) Bits() uint32 { return m.bits }

// Has reports whether c is set. CapAlways is always set.
func (m Mask) Has(c Capability) bool {
	if c == CapAlways {
		return true
	}
	if c >= capabilityCount {
		return false
	}
	return m.bits&(1<<c) != 0
}

// Allow returns a copy of m with c set.
func (m Mask) Allow(c Capability) Mask {
	if c >= capabilityCount {
		return m
	}
	return newMask(m.bits | 1<<c)
}

// Deny returns a copy of m with c cleared.
func (m Mask) Deny(c Capability) Mask {
	if !m.Has(c) || c == CapAlways {
		return m
	}
	return Mask{bits: m.bits &^ (1 << c)}
}

// Len returns the number of capabilities set.
func (m Mask) Len() int { return bits.OnesCount32(m.bits) }

// Capabilities yields the set capabilities in bit order.
func (m Mask) Capabilities() iter.Seq[Capability] {
	return func(yield func(Capability) bool) {
		for c := Capability(0); c < capabilityCount; c++ {
			if m.Has(c) && !yield(c) {
				return
			}
		}
	}
}

// Names yields the names of the set capabilities in bit order.
func (m Mask) Names() iter.Seq[string] {
	return func(yield func(string) bool) {
		for c := range m.Capabilities() {
			if !yield(c.String()) {
				return
			}
		}
	}
}

// EventTags yields every tag gated by a set capability, followed by the
// tags delivered regardless of the mask.
func (m Mask) EventTags() iter.Seq[string] {
	return func(yield func(string) bool) {
		for c := range m.Capabilities() {
			for _, t := range capabilityTags[c] {
				if !yield(t) {
					return
				}
			}
		}
		for _, t := range alwaysTags {
			if !yield(t) {
				return
			}
		}
	}
}

func (m Mask) String() string {
	return fmt.Sprintf("Mask(%#x)", m.bits)
}
