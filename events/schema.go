package events

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS clan_events (
	id %SERIAL_PK%,
	guild_id BIGINT NOT NULL,

	name TEXT NOT NULL,
	description TEXT,
	starts_at %TIMESTAMPTZ% NOT NULL,

	created_by BIGINT NOT NULL,
	created_at %TIMESTAMPTZ% NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,

	reminded_at %TIMESTAMPTZ%
);
`, `
CREATE INDEX IF NOT EXISTS clan_events_guild_starts_at_idx ON clan_events(guild_id, starts_at);
`, `
ALTER TABLE clan_events ADD COLUMN reminded_at %TIMESTAMPTZ%;
`}
