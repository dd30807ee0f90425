package dispatch

// Event tags understood by the capability table. Tags outside this list are
// still dispatched when a parser is registered for them; they are simply
// not gated by any capability.
const (
	TagReady      = "READY"
	TagUserUpdate = "USER_UPDATE"

	TagGuildCreate     = "GUILD_CREATE"
	TagGuildUpdate     = "GUILD_UPDATE"
	TagGuildDelete     = "GUILD_DELETE"
	TagGuildRoleCreate = "GUILD_ROLE_CREATE"
	TagGuildRoleUpdate = "GUILD_ROLE_UPDATE"
	TagGuildRoleDelete = "GUILD_ROLE_DELETE"
	TagChannelCreate   = "CHANNEL_CREATE"
	TagChannelUpdate   = "CHANNEL_UPDATE"
	TagChannelDelete   = "CHANNEL_DELETE"

	TagGuildMemberAdd    = "GUILD_MEMBER_ADD"
	TagGuildMemberUpdate = "GUILD_MEMBER_UPDATE"
	TagGuildMemberRemove = "GUILD_MEMBER_REMOVE"

	TagGuildBanAdd    = "GUILD_BAN_ADD"
	TagGuildBanRemove = "GUILD_BAN_REMOVE"

	TagGuildEmojisUpdate       = "GUILD_EMOJIS_UPDATE"
	TagGuildIntegrationsUpdate = "GUILD_INTEGRATIONS_UPDATE"
	TagWebhooksUpdate          = "WEBHOOKS_UPDATE"
	TagInviteCreate            = "INVITE_CREATE"
	TagInviteDelete            = "INVITE_DELETE"

	TagVoiceStateUpdate = "VOICE_STATE_UPDATE"
	TagPresenceUpdate   = "PRESENCE_UPDATE"

	TagMessageCreate         = "MESSAGE_CREATE"
	TagMessageUpdate         = "MESSAGE_UPDATE"
	TagMessageDelete         = "MESSAGE_DELETE"
	TagMessageReactionAdd    = "MESSAGE_REACTION_ADD"
	TagMessageReactionRemove = "MESSAGE_REACTION_REMOVE"
	TagTypingStart           = "TYPING_START"

	TagDirectMessageCreate      = "DIRECT_MESSAGE_CREATE"
	TagDirectMessageReactionAdd = "DIRECT_MESSAGE_REACTION_ADD"
	TagDirectTypingStart        = "DIRECT_TYPING_START"

	// TagSessionReady is synthesized by the router once a session's
	// readiness tracker settles. It never arrives from the gateway.
	TagSessionReady = "SESSION_READY"
)
