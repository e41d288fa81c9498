package members

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS clan_members (
	guild_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,

	display_name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'Member',
	profile_background TEXT NOT NULL DEFAULT 'hellforge',

	joined_at %TIMESTAMPTZ% NOT NULL,
	updated_at %TIMESTAMPTZ% NOT NULL,

	PRIMARY KEY(guild_id, user_id)
);
`, `
CREATE INDEX IF NOT EXISTS clan_members_guild_status_idx ON clan_members(guild_id, status);
`, `
CREATE TABLE IF NOT EXISTS clan_member_stats (
	guild_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	stat_key TEXT NOT NULL,

	text_value TEXT,
	num_value BIGINT,

	updated_at %TIMESTAMPTZ% NOT NULL,

	PRIMARY KEY(guild_id, user_id, stat_key),
	FOREIGN KEY(guild_id, user_id) REFERENCES clan_members(guild_id, user_id) ON DELETE CASCADE
);
`, `
CREATE INDEX IF NOT EXISTS clan_member_stats_leaderboard_idx ON clan_member_stats(guild_id, stat_key, num_value);
`}
