package rsvp

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS clan_rsvps (
	guild_id BIGINT NOT NULL,
	event_id BIGINT NOT NULL REFERENCES clan_events(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL,

	response TEXT NOT NULL CHECK (response IN ('Yes', 'No', 'Maybe')),
	notes TEXT,
	responded_at %TIMESTAMPTZ% NOT NULL,
	response_seq BIGINT NOT NULL DEFAULT 0,

	PRIMARY KEY(event_id, user_id)
);
`, `
CREATE INDEX IF NOT EXISTS clan_rsvps_guild_event_idx ON clan_rsvps(guild_id, event_id);
`}
