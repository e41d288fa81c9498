package guilds

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS guild_configs (
	guild_id BIGINT PRIMARY KEY,

	reminder_channel_id BIGINT,
	timezone TEXT NOT NULL,

	created_at %TIMESTAMPTZ% NOT NULL,
	updated_at %TIMESTAMPTZ% NOT NULL
);
`, `
CREATE INDEX IF NOT EXISTS guild_configs_reminder_channel_idx ON guild_configs(reminder_channel_id);
`}
