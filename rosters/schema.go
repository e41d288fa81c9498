package rosters

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS clan_rosters (
	id %SERIAL_PK%,
	guild_id BIGINT NOT NULL,
	event_id BIGINT NOT NULL REFERENCES clan_events(id) ON DELETE CASCADE,

	name TEXT NOT NULL,
	room_count INT NOT NULL,
	per_room INT NOT NULL,
	roster_data %JSON% NOT NULL,

	created_by BIGINT NOT NULL,
	created_at %TIMESTAMPTZ% NOT NULL
);
`, `
CREATE INDEX IF NOT EXISTS clan_rosters_guild_event_idx ON clan_rosters(guild_id, event_id);
`}
