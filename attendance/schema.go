package attendance

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS clan_attendance (
	guild_id BIGINT NOT NULL,
	event_id BIGINT NOT NULL REFERENCES clan_events(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL,

	attended BOOLEAN NOT NULL,
	marked_by BIGINT NOT NULL,
	marked_at %TIMESTAMPTZ% NOT NULL,

	PRIMARY KEY(event_id, user_id)
);
`, `
CREATE INDEX IF NOT EXISTS clan_attendance_guild_user_idx ON clan_attendance(guild_id, user_id);
`}
