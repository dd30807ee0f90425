package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
)

var errMissingID = errors.New("missing id")

// builtin describes one tag: which guild it belongs to, how a deferred
// event replays, and how it changes the cache.
type builtin[T, O any] struct {
	// validate rejects payloads that cannot be routed at all.
	validate func(v T) error
	// guild returns the guild the event needs cached, "" for none.
	guild func(v T) string
	// owner returns the guild whose state the event carries for tags that
	// never wait on a fetch.
	owner func(v T) string
	// replay describes how a deferred event reruns. The default reruns the
	// full dispatch.
	replay func(tag string, v T) Replay
	// apply changes the cache when mutate is set and builds the handler
	// payload when observe is set. Returning false suppresses handlers.
	apply func(ev *Event, v T, mutate, observe bool) (O, bool)
}

func (b builtin[T, O]) variants() Variants {
	return Variants{
		CacheSingle:   b.variant(false, false),
		CacheMulti:    b.variant(false, true),
		HandlerSingle: b.variant(true, false),
		HandlerMulti:  b.variant(true, true),
		Event:         reflect.TypeFor[O](),
	}
}

func (b builtin[T, O]) variant(observe, multi bool) VariantFunc {
	return func(ctx context.Context, ev *Event) error {
		var v T
		if err := json.Unmarshal(ev.Payload, &v); err != nil {
			return decodeErr(ev.Tag, err)
		}
		if b.validate != nil {
			if err := b.validate(v); err != nil {
				return decodeErr(ev.Tag, err)
			}
		}

		var scope string
		switch {
		case b.guild != nil:
			scope = b.guild(v)
			if scope != "" && !ev.HasGuild(scope) {
				replay := ReplayFull(ev.Tag)
				if b.replay != nil {
					replay = b.replay(ev.Tag, v)
				}
				ev.Defer(ctx, scope, replay)
				return nil
			}
		case b.owner != nil:
			scope = b.owner(v)
		}
		if scope != "" {
			ev.observe(scope)
		}

		mutate := !multi || ev.CanonicalFor(scope)
		out, ok := b.apply(ev, v, mutate, observe)
		if observe && ok {
			ev.Emit(ctx, out)
		}
		return nil
	}
}

func requireID(id string) error {
	if id == "" {
		return errMissingID
	}
	return nil
}

type roleDelete struct {
	GuildID string `json:"guild_id"`
	RoleID  string `json:"role_id"`
}

type memberRemove struct {
	GuildID string `json:"guild_id"`
	User    User   `json:"user"`
}

// builtinParsers returns the variants New installs by default.
func builtinParsers() map[string]Variants {
	return map[string]Variants{
		TagReady:               readyParser.variants(),
		TagUserUpdate:          userUpdateParser.variants(),
		TagGuildCreate:         guildCreateParser.variants(),
		TagGuildUpdate:         guildUpdateParser.variants(),
		TagGuildDelete:         guildDeleteParser.variants(),
		TagChannelCreate:       channelCreateParser.variants(),
		TagChannelUpdate:       channelUpdateParser.variants(),
		TagChannelDelete:       channelDeleteParser.variants(),
		TagGuildRoleCreate:     roleCreateParser.variants(),
		TagGuildRoleUpdate:     roleUpdateParser.variants(),
		TagGuildRoleDelete:     roleDeleteParser.variants(),
		TagGuildMemberAdd:      memberAddParser.variants(),
		TagGuildMemberRemove:   memberRemoveParser.variants(),
		TagGuildBanAdd:         banAddParser.variants(),
		TagVoiceStateUpdate:    voiceStateParser.variants(),
		TagPresenceUpdate:      presenceParser.variants(),
		TagMessageCreate:       messageCreateParser.variants(),
		TagDirectMessageCreate: directMessageParser.variants(),
		TagMessageReactionAdd:  reactionAddParser.variants(),
		TagTypingStart:         typingParser.variants(),
	}
}

var readyParser = builtin[Ready, Ready]{
	apply: func(ev *Event, v Ready, _, _ bool) (Ready, bool) {
		// Self and readiness belong to the receiving session alone.
		ev.Cache().PutSelf(ev.Session.ID(), &v.User)
		ev.Session.Readiness().OnHandshake(len(v.Guilds))
		return v, true
	},
}

var userUpdateParser = builtin[User, Update[User]]{
	validate: func(v User) error { return requireID(v.ID) },
	apply: func(ev *Event, v User, _, observe bool) (Update[User], bool) {
		var out Update[User]
		if observe {
			if before, ok := ev.Cache().Self(ev.Session.ID()); ok {
				out.Before, out.Cached = *before, true
			}
			out.After = v
		}
		ev.Cache().PutSelf(ev.Session.ID(), &v)
		return out, true
	},
}

var guildCreateParser = builtin[Guild, Guild]{
	validate: func(v Guild) error { return requireID(v.ID) },
	owner:    func(v Guild) string { return v.ID },
	apply: func(ev *Event, v Guild, mutate, _ bool) (Guild, bool) {
		ev.Session.Readiness().OnGuildSnapshot(&v)
		if v.Unavailable {
			return v, false
		}
		if mutate {
			ev.Cache().PutGuild(&v)
		}
		return v, true
	},
}

// mergeGuild copies the top-level fields of an update onto g, keeping its
// sub-resources.
func mergeGuild(g *Guild, v Guild) {
	g.Name = v.Name
	g.OwnerID = v.OwnerID
	g.Large = v.Large
	g.Unavailable = v.Unavailable
	if v.MemberCount > 0 {
		g.MemberCount = v.MemberCount
	}
}

var guildUpdateParser = builtin[Guild, Update[Guild]]{
	validate: func(v Guild) error { return requireID(v.ID) },
	guild:    func(v Guild) string { return v.ID },
	apply: func(ev *Event, v Guild, mutate, observe bool) (Update[Guild], bool) {
		var out Update[Guild]
		if !mutate && !observe {
			return out, false
		}
		ev.Cache().UpdateGuild(v.ID, func(g *Guild) {
			if observe {
				out.Before, out.Cached = *g.Clone(), true
			}
			if mutate {
				mergeGuild(g, v)
			}
		})
		if observe {
			after := out.Before.Clone()
			mergeGuild(after, v)
			if !out.Cached {
				after = &v
			}
			out.After = *after
		}
		return out, true
	},
}

var guildDeleteParser = builtin[Guild, Guild]{
	validate: func(v Guild) error { return requireID(v.ID) },
	owner:    func(v Guild) string { return v.ID },
	apply: func(ev *Event, v Guild, mutate, observe bool) (Guild, bool) {
		out := v
		if observe {
			if g, ok := ev.Cache().Guild(v.ID); ok {
				out = *g
				out.Unavailable = v.Unavailable
			}
		}
		switch {
		case v.Unavailable:
			// An outage keeps the guild cached until it comes back.
			if mutate {
				ev.Cache().UpdateGuild(v.ID, func(g *Guild) { g.Unavailable = true })
			}
		case ev.unobserve(v.ID) == 0:
			ev.Cache().DeleteGuild(v.ID)
		}
		return out, true
	},
}

var channelCreateParser = builtin[Channel, Channel]{
	validate: func(v Channel) error { return requireID(v.ID) },
	guild:    func(v Channel) string { return v.GuildID },
	apply: func(ev *Event, v Channel, mutate, _ bool) (Channel, bool) {
		if mutate && v.GuildID != "" {
			ev.Cache().UpdateGuild(v.GuildID, func(g *Guild) { g.setChannel(v) })
		}
		return v, true
	},
}

var channelUpdateParser = builtin[Channel, Update[Channel]]{
	validate: func(v Channel) error { return requireID(v.ID) },
	guild:    func(v Channel) string { return v.GuildID },
	replay: func(tag string, v Channel) Replay {
		return ReplayIf(tag, HasChannel, v.ID)
	},
	apply: func(ev *Event, v Channel, mutate, observe bool) (Update[Channel], bool) {
		out := Update[Channel]{After: v}
		if v.GuildID == "" {
			return out, true
		}
		ev.Cache().UpdateGuild(v.GuildID, func(g *Guild) {
			if observe {
				out.Before, out.Cached = g.Channel(v.ID)
			}
			if mutate {
				g.setChannel(v)
			}
		})
		return out, true
	},
}

var channelDeleteParser = builtin[Channel, Channel]{
	validate: func(v Channel) error { return requireID(v.ID) },
	guild:    func(v Channel) string { return v.GuildID },
	apply: func(ev *Event, v Channel, mutate, observe bool) (Channel, bool) {
		out := v
		if v.GuildID == "" {
			return out, true
		}
		ev.Cache().UpdateGuild(v.GuildID, func(g *Guild) {
			if c, ok := g.Channel(v.ID); ok && observe {
				out = c
			}
			if mutate {
				g.removeChannel(v.ID)
			}
		})
		return out, true
	},
}

var roleCreateParser = builtin[RoleEvent, RoleEvent]{
	validate: func(v RoleEvent) error { return requireID(v.Role.ID) },
	guild:    func(v RoleEvent) string { return v.GuildID },
	apply: func(ev *Event, v RoleEvent, mutate, _ bool) (RoleEvent, bool) {
		if mutate {
			ev.Cache().UpdateGuild(v.GuildID, func(g *Guild) { g.setRole(v.Role) })
		}
		return v, true
	},
}

var roleUpdateParser = builtin[RoleEvent, Update[RoleEvent]]{
	validate: func(v RoleEvent) error { return requireID(v.Role.ID) },
	guild:    func(v RoleEvent) string { return v.GuildID },
	replay: func(tag string, v RoleEvent) Replay {
		return ReplayIf(tag, HasRole, v.Role.ID)
	},
	apply: func(ev *Event, v RoleEvent, mutate, observe bool) (Update[RoleEvent], bool) {
		out := Update[RoleEvent]{After: v}
		ev.Cache().UpdateGuild(v.GuildID, func(g *Guild) {
			if observe {
				if r, ok := g.Role(v.Role.ID); ok {
					out.Before, out.Cached = RoleEvent{GuildID: v.GuildID, Role: r}, true
				}
			}
			if mutate {
				g.setRole(v.Role)
			}
		})
		return out, true
	},
}

var roleDeleteParser = builtin[roleDelete, RoleEvent]{
	validate: func(v roleDelete) error { return requireID(v.RoleID) },
	guild:    func(v roleDelete) string { return v.GuildID },
	apply: func(ev *Event, v roleDelete, mutate, observe bool) (RoleEvent, bool) {
		out := RoleEvent{GuildID: v.GuildID, Role: Role{ID: v.RoleID}}
		ev.Cache().UpdateGuild(v.GuildID, func(g *Guild) {
			if r, ok := g.Role(v.RoleID); ok && observe {
				out.Role = r
			}
			if mutate {
				g.removeRole(v.RoleID)
			}
		})
		return out, true
	},
}

var memberAddParser = builtin[Member, Member]{
	validate: func(v Member) error { return requireID(v.User.ID) },
	guild:    func(v Member) string { return v.GuildID },
	apply: func(ev *Event, v Member, mutate, _ bool) (Member, bool) {
		if mutate {
			ev.Cache().UpdateGuild(v.GuildID, func(g *Guild) {
				if _, ok := g.Member(v.User.ID); !ok {
					g.MemberCount++
				}
				g.setMember(v)
			})
			ev.Cache().PutUser(&v.User)
		}
		return v, true
	},
}

var memberRemoveParser = builtin[memberRemove, Member]{
	validate: func(v memberRemove) error { return requireID(v.User.ID) },
	guild:    func(v memberRemove) string { return v.GuildID },
	apply: func(ev *Event, v memberRemove, mutate, observe bool) (Member, bool) {
		out := Member{GuildID: v.GuildID, User: v.User}
		ev.Cache().UpdateGuild(v.GuildID, func(g *Guild) {
			if m, ok := g.Member(v.User.ID); ok && observe {
				out = m
				out.GuildID = v.GuildID
			}
			if mutate && g.removeMember(v.User.ID) && g.MemberCount > 0 {
				g.MemberCount--
			}
		})
		return out, true
	},
}

var banAddParser = builtin[Ban, Ban]{
	validate: func(v Ban) error { return requireID(v.User.ID) },
	guild:    func(v Ban) string { return v.GuildID },
	apply: func(_ *Event, v Ban, _, _ bool) (Ban, bool) {
		return v, true
	},
}

var voiceStateParser = builtin[VoiceState, Update[VoiceState]]{
	validate: func(v VoiceState) error { return requireID(v.UserID) },
	guild:    func(v VoiceState) string { return v.GuildID },
	apply: func(ev *Event, v VoiceState, mutate, observe bool) (Update[VoiceState], bool) {
		out := Update[VoiceState]{After: v}
		if v.GuildID == "" {
			return out, true
		}
		ev.Cache().UpdateGuild(v.GuildID, func(g *Guild) {
			if observe {
				out.Before, out.Cached = g.VoiceState(v.UserID)
			}
			if mutate {
				g.setVoiceState(v)
			}
		})
		return out, true
	},
}

var presenceParser = builtin[Presence, Presence]{
	validate: func(v Presence) error { return requireID(v.User.ID) },
	guild:    func(v Presence) string { return v.GuildID },
	apply: func(ev *Event, v Presence, mutate, _ bool) (Presence, bool) {
		if mutate && v.GuildID != "" && PresenceCacheEnabled() {
			ev.Cache().UpdateGuild(v.GuildID, func(g *Guild) { g.setPresence(v) })
		}
		return v, true
	},
}

var messageCreateParser = builtin[Message, Message]{
	validate: func(v Message) error { return requireID(v.ChannelID) },
	guild:    func(v Message) string { return v.GuildID },
	replay: func(tag string, v Message) Replay {
		return ReplayIf(tag, HasChannel, v.ChannelID)
	},
	apply: func(ev *Event, v Message, mutate, _ bool) (Message, bool) {
		if mutate && v.Author.ID != "" {
			ev.Cache().PutUser(&v.Author)
		}
		return v, true
	},
}

var directMessageParser = builtin[Message, Message]{
	validate: func(v Message) error { return requireID(v.ChannelID) },
	apply:    messageCreateParser.apply,
}

var reactionAddParser = builtin[Reaction, Reaction]{
	validate: func(v Reaction) error { return requireID(v.MessageID) },
	guild:    func(v Reaction) string { return v.GuildID },
	replay: func(tag string, v Reaction) Replay {
		return ReplayIf(tag, HasChannel, v.ChannelID)
	},
	apply: func(_ *Event, v Reaction, _, _ bool) (Reaction, bool) {
		return v, true
	},
}

var typingParser = builtin[Typing, Typing]{
	validate: func(v Typing) error { return requireID(v.ChannelID) },
	guild:    func(v Typing) string { return v.GuildID },
	replay: func(tag string, v Typing) Replay {
		return ReplayIf(tag, HasChannel, v.ChannelID)
	},
	apply: func(_ *Event, v Typing, _, _ bool) (Typing, bool) {
		return v, true
	},
}
