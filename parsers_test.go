package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ParsersSuite struct {
	suite.Suite
	router  *Router
	session *Session
}

func TestParsersSuite(t *testing.T) {
	suite.Run(t, new(ParsersSuite))
}

func (s *ParsersSuite) SetupTest() {
	SetPresenceCache(true)
	s.router = newTestRouter(s.T())
	s.session = newTestSession(s.T(), "s1")
	s.Require().NoError(s.router.Connect(s.session))
	s.router.Cache().PutGuild(&Guild{
		ID:          "g1",
		Name:        "home",
		MemberCount: 2,
		Channels:    []Channel{{ID: "c1", GuildID: "g1", Name: "general"}},
		Roles:       []Role{{ID: "r1", Name: "mod", Position: 1}},
		Members: []Member{
			{User: User{ID: "u1"}, Nick: "one"},
			{User: User{ID: "u2"}},
		},
	})
}

func (s *ParsersSuite) TearDownTest() {
	SetPresenceCache(true)
}

func (s *ParsersSuite) dispatch(tag, payload string) {
	s.T().Helper()
	s.Require().NoError(s.router.Dispatch(context.Background(), "s1", tag, raw("%s", payload)))
}

func (s *ParsersSuite) guild() *Guild {
	g, ok := s.router.Cache().Guild("g1")
	s.Require().True(ok)
	return g
}

func (s *ParsersSuite) TestGuildCreate() {
	got := receive[Guild](s.T(), s.router, "s1", TagGuildCreate)

	s.dispatch(TagGuildCreate, `{"id":"g2","name":"new","channels":[{"id":"c9"}]}`)

	s.Assert().Equal("new", await(s.T(), got).Name)
	g, ok := s.router.Cache().Guild("g2")
	s.Require().True(ok)
	s.Assert().Len(g.Channels, 1)
}

func (s *ParsersSuite) TestGuildCreateUnavailable() {
	got := receive[Guild](s.T(), s.router, "s1", TagGuildCreate)

	s.dispatch(TagGuildCreate, `{"id":"g3","unavailable":true}`)
	s.dispatch(TagGuildCreate, `{"id":"g4"}`)

	s.Assert().Equal("g4", await(s.T(), got).ID, "unavailable snapshot has no handler call")
	s.Assert().False(s.router.Cache().HasGuild("g3"))
}

func (s *ParsersSuite) TestGuildUpdate() {
	got := receive[Update[Guild]](s.T(), s.router, "s1", TagGuildUpdate)

	s.dispatch(TagGuildUpdate, `{"id":"g1","name":"renamed","owner_id":"u1"}`)

	upd := await(s.T(), got)
	s.Assert().True(upd.Cached)
	s.Assert().Equal("home", upd.Before.Name)
	s.Assert().Equal("renamed", upd.After.Name)
	s.Assert().Len(upd.After.Channels, 1, "sub-resources survive a top-level update")

	g := s.guild()
	s.Assert().Equal("renamed", g.Name)
	s.Assert().Equal("u1", g.OwnerID)
	s.Assert().Equal(2, g.MemberCount)
	s.Assert().Len(g.Roles, 1)
}

func (s *ParsersSuite) TestGuildDeleteOutage() {
	s.dispatch(TagGuildDelete, `{"id":"g1","unavailable":true}`)

	s.Assert().True(s.guild().Unavailable)
}

func (s *ParsersSuite) TestGuildDelete() {
	got := receive[Guild](s.T(), s.router, "s1", TagGuildDelete)

	s.dispatch(TagGuildDelete, `{"id":"g1"}`)

	s.Assert().Equal("home", await(s.T(), got).Name, "handler sees the last cached state")
	s.Assert().False(s.router.Cache().HasGuild("g1"))
}

func (s *ParsersSuite) TestChannelLifecycle() {
	updates := receive[Update[Channel]](s.T(), s.router, "s1", TagChannelUpdate)
	deletes := receive[Channel](s.T(), s.router, "s1", TagChannelDelete)

	s.dispatch(TagChannelCreate, `{"id":"c2","guild_id":"g1","name":"random"}`)
	_, ok := s.guild().Channel("c2")
	s.Assert().True(ok)

	s.dispatch(TagChannelUpdate, `{"id":"c1","guild_id":"g1","name":"lobby"}`)
	upd := await(s.T(), updates)
	s.Assert().True(upd.Cached)
	s.Assert().Equal("general", upd.Before.Name)
	s.Assert().Equal("lobby", upd.After.Name)
	c, _ := s.guild().Channel("c1")
	s.Assert().Equal("lobby", c.Name)

	s.dispatch(TagChannelDelete, `{"id":"c2","guild_id":"g1"}`)
	s.Assert().Equal("random", await(s.T(), deletes).Name)
	_, ok = s.guild().Channel("c2")
	s.Assert().False(ok)
}

func (s *ParsersSuite) TestChannelWithoutGuild() {
	got := receive[Channel](s.T(), s.router, "s1", TagChannelCreate)

	s.dispatch(TagChannelCreate, `{"id":"dm1","type":1}`)

	s.Assert().Equal("dm1", await(s.T(), got).ID)
}

func (s *ParsersSuite) TestRoleLifecycle() {
	updates := receive[Update[RoleEvent]](s.T(), s.router, "s1", TagGuildRoleUpdate)
	deletes := receive[RoleEvent](s.T(), s.router, "s1", TagGuildRoleDelete)

	s.dispatch(TagGuildRoleCreate, `{"guild_id":"g1","role":{"id":"r2","name":"member"}}`)
	s.Assert().Len(s.guild().Roles, 2)

	s.dispatch(TagGuildRoleUpdate, `{"guild_id":"g1","role":{"id":"r1","name":"admin","position":5}}`)
	upd := await(s.T(), updates)
	s.Assert().Equal("mod", upd.Before.Role.Name)
	s.Assert().Equal("admin", upd.After.Role.Name)

	s.dispatch(TagGuildRoleDelete, `{"guild_id":"g1","role_id":"r1"}`)
	s.Assert().Equal("admin", await(s.T(), deletes).Role.Name)
	_, ok := s.guild().Role("r1")
	s.Assert().False(ok)
}

func (s *ParsersSuite) TestMembers() {
	removed := receive[Member](s.T(), s.router, "s1", TagGuildMemberRemove)

	s.dispatch(TagGuildMemberAdd, `{"guild_id":"g1","user":{"id":"u3","username":"three"}}`)
	s.dispatch(TagGuildMemberAdd, `{"guild_id":"g1","user":{"id":"u3","username":"three"},"nick":"again"}`)
	g := s.guild()
	s.Assert().Equal(3, g.MemberCount, "repeated join counts once")
	m, _ := g.Member("u3")
	s.Assert().Equal("again", m.Nick)
	_, ok := s.router.Cache().User("u3")
	s.Assert().True(ok)

	s.dispatch(TagGuildMemberRemove, `{"guild_id":"g1","user":{"id":"u1"}}`)
	left := await(s.T(), removed)
	s.Assert().Equal("one", left.Nick)
	s.Assert().Equal("g1", left.GuildID)
	s.Assert().Equal(2, s.guild().MemberCount)

	s.dispatch(TagGuildMemberRemove, `{"guild_id":"g1","user":{"id":"nobody"}}`)
	s.Assert().Equal(2, s.guild().MemberCount)
}

func (s *ParsersSuite) TestVoiceState() {
	got := receive[Update[VoiceState]](s.T(), s.router, "s1", TagVoiceStateUpdate)

	s.dispatch(TagVoiceStateUpdate, `{"guild_id":"g1","user_id":"u1","channel_id":"v1"}`)
	first := await(s.T(), got)
	s.Assert().False(first.Cached)
	s.Assert().Equal("v1", first.After.ChannelID)

	s.dispatch(TagVoiceStateUpdate, `{"guild_id":"g1","user_id":"u1"}`)
	second := await(s.T(), got)
	s.Assert().True(second.Cached)
	s.Assert().Equal("v1", second.Before.ChannelID)
	s.Assert().Empty(s.guild().VoiceStates)
}

func (s *ParsersSuite) TestPresence() {
	s.dispatch(TagPresenceUpdate, `{"guild_id":"g1","user":{"id":"u1"},"status":"online"}`)
	s.Assert().Len(s.guild().Presences, 1)

	SetPresenceCache(false)
	s.dispatch(TagPresenceUpdate, `{"guild_id":"g1","user":{"id":"u2"},"status":"idle"}`)
	s.Assert().Len(s.guild().Presences, 1)
}

func (s *ParsersSuite) TestReadyAndUserUpdate() {
	got := receive[Update[User]](s.T(), s.router, "s1", TagUserUpdate)

	s.dispatch(TagReady, `{"session_id":"x","user":{"id":"bot","username":"old"},"guilds":[{"id":"g1"}]}`)
	s.Assert().Equal(1, s.session.Readiness().Pending())

	s.dispatch(TagUserUpdate, `{"id":"bot","username":"new"}`)
	upd := await(s.T(), got)
	s.Assert().True(upd.Cached)
	s.Assert().Equal("old", upd.Before.Username)
	s.Assert().Equal("new", upd.After.Username)

	self, _ := s.router.Cache().Self("s1")
	s.Assert().Equal("new", self.Username)
}

func (s *ParsersSuite) TestDirectMessageNeverDefers() {
	got := receive[Message](s.T(), s.router, "s1", TagDirectMessageCreate)

	s.dispatch(TagDirectMessageCreate, `{"id":"m1","channel_id":"dm","guild_id":"unknown","author":{"id":"u7"}}`)

	s.Assert().Equal("m1", await(s.T(), got).ID)
	_, ok := s.router.Cache().User("u7")
	s.Assert().True(ok)
}

func (s *ParsersSuite) TestBanAndReactionAndTyping() {
	bans := receive[Ban](s.T(), s.router, "s1", TagGuildBanAdd)
	reactions := receive[Reaction](s.T(), s.router, "s1", TagMessageReactionAdd)
	typing := receive[Typing](s.T(), s.router, "s1", TagTypingStart)

	s.dispatch(TagGuildBanAdd, `{"guild_id":"g1","user":{"id":"u2"}}`)
	s.dispatch(TagMessageReactionAdd, `{"guild_id":"g1","channel_id":"c1","message_id":"m1","user_id":"u1","emoji":{"name":"+1"}}`)
	s.dispatch(TagTypingStart, `{"guild_id":"g1","channel_id":"c1","user_id":"u1","timestamp":1700000000}`)

	s.Assert().Equal("u2", await(s.T(), bans).User.ID)
	s.Assert().Equal("+1", await(s.T(), reactions).Emoji.Name)
	s.Assert().Equal(int64(1700000000), await(s.T(), typing).Timestamp)
}

func (s *ParsersSuite) TestCacheOnlySkipsHandlers() {
	s.dispatch(TagChannelCreate, `{"id":"c5","guild_id":"g1"}`)

	v, _ := s.router.Installed(TagChannelCreate)
	s.Assert().Equal(VariantCacheSingle, v)
	_, ok := s.guild().Channel("c5")
	s.Assert().True(ok, "cache-only variants still mutate")
}
