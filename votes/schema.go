package votes

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS clan_votes (
	id %SERIAL_PK%,
	guild_id BIGINT NOT NULL,

	title TEXT NOT NULL,
	description TEXT,
	options %JSON% NOT NULL,
	eligible_role_id BIGINT NOT NULL,

	created_by BIGINT NOT NULL,
	ends_at %TIMESTAMPTZ% NOT NULL,
	is_anonymous BOOLEAN NOT NULL DEFAULT TRUE,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at %TIMESTAMPTZ% NOT NULL
);
`, `
CREATE INDEX IF NOT EXISTS clan_votes_guild_active_idx ON clan_votes(guild_id, is_active);
`, `
CREATE TABLE IF NOT EXISTS clan_vote_responses (
	guild_id BIGINT NOT NULL,
	vote_id BIGINT NOT NULL REFERENCES clan_votes(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL,

	selected_option INT NOT NULL,
	responded_at %TIMESTAMPTZ% NOT NULL,

	PRIMARY KEY(vote_id, user_id)
);
`}
