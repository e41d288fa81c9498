package common

import (
	"os"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/clanbot/clanbot/common/config"
	"github.com/joho/godotenv"
)

// Config is resolved once at startup and passed to whatever needs it
type Config struct {
	BotToken string
	DBDriver Dialect
	DBDSN    string
	Redis    string

	OfficerRoles []string

	ReminderInterval time.Duration
	ReminderLead     time.Duration
	ReminderWindow   time.Duration

	SessionTTL time.Duration
	DMInterval time.Duration

	BGWorkerHTTPAddr string
	LogFile          string
	SentryDSN        string
	DevGuild         string
	Debug            bool
}

type ConfigOptions struct {
	botToken         *config.ConfigOption
	dbDriver         *config.ConfigOption
	dbDSN            *config.ConfigOption
	redis            *config.ConfigOption
	officerRoles     *config.ConfigOption
	reminderInterval *config.ConfigOption
	reminderLead     *config.ConfigOption
	reminderWindow   *config.ConfigOption
	sessionTTL       *config.ConfigOption
	dmInterval       *config.ConfigOption
	bgworkerAddr     *config.ConfigOption
	logFile          *config.ConfigOption
	sentryDSN        *config.ConfigOption
	devGuild         *config.ConfigOption
	debug            *config.ConfigOption
}

// RegisterOptions registers every option the bot reads on m
func RegisterOptions(m *config.ConfigManager) *ConfigOptions {
	return &ConfigOptions{
		botToken:         m.RegisterOption("clanbot.bot_token", "Discord bot token, required", ""),
		dbDriver:         m.RegisterOption("clanbot.db_driver", "Database driver, postgres or sqlite3", "postgres"),
		dbDSN:            m.RegisterOption("clanbot.db_dsn", "Database connection string, required", ""),
		redis:            m.RegisterOption("clanbot.redis", "Redis address, interactive sessions are kept in memory if empty", ""),
		officerRoles:     m.RegisterOption("clanbot.officer_roles", "Comma separated role names treated as officers", "Officer,Leader"),
		reminderInterval: m.RegisterOption("clanbot.reminder_interval", "How often upcoming events are scanned for reminders", 10*time.Minute),
		reminderLead:     m.RegisterOption("clanbot.reminder_lead", "How long before an event the reminder is sent", time.Hour),
		reminderWindow:   m.RegisterOption("clanbot.reminder_window", "Tolerance around the reminder lead time", 5*time.Minute),
		sessionTTL:       m.RegisterOption("clanbot.session_ttl", "How long an interactive menu stays usable", 5*time.Minute),
		dmInterval:       m.RegisterOption("clanbot.dm_interval", "Minimum delay between direct messages in a batch", 250*time.Millisecond),
		bgworkerAddr:     m.RegisterOption("clanbot.bgworker_http_addr", "Listen address for the metrics and health endpoints", "localhost:5004"),
		logFile:          m.RegisterOption("clanbot.log_file", "Also write logs to this file (rotated)", ""),
		sentryDSN:        m.RegisterOption("clanbot.sentry_dsn", "Sentry credentials for sentry logging hook", ""),
		devGuild:         m.RegisterOption("clanbot.dev_guild", "Register slash commands in this guild only", ""),
		debug:            m.RegisterOption("clanbot.debug", "Enable debug logging", false),
	}
}

// LoadConfig loads the options from the manager's sources and validates the required ones
func LoadConfig(m *config.ConfigManager, opts *ConfigOptions) (*Config, error) {
	m.Load()

	dialect, err := ParseDialect(opts.dbDriver.GetString())
	if err != nil {
		return nil, err
	}

	conf := &Config{
		BotToken:         strings.TrimSpace(opts.botToken.GetString()),
		DBDriver:         dialect,
		DBDSN:            strings.TrimSpace(opts.dbDSN.GetString()),
		Redis:            opts.redis.GetString(),
		OfficerRoles:     splitList(opts.officerRoles.GetString()),
		ReminderInterval: opts.reminderInterval.GetDuration(),
		ReminderLead:     opts.reminderLead.GetDuration(),
		ReminderWindow:   opts.reminderWindow.GetDuration(),
		SessionTTL:       opts.sessionTTL.GetDuration(),
		DMInterval:       opts.dmInterval.GetDuration(),
		BGWorkerHTTPAddr: opts.bgworkerAddr.GetString(),
		LogFile:          opts.logFile.GetString(),
		SentryDSN:        opts.sentryDSN.GetString(),
		DevGuild:         opts.devGuild.GetString(),
		Debug:            opts.debug.GetBool(),
	}

	if conf.DBDSN == "" {
		return nil, errors.NewPlain("clanbot.db_dsn (CLANBOT_DB_DSN) is required")
	}

	if conf.ReminderInterval <= 0 || conf.ReminderLead <= 0 || conf.ReminderWindow <= 0 {
		return nil, errors.NewPlain("reminder interval, lead and window must be positive")
	}

	if conf.SessionTTL <= 0 {
		conf.SessionTTL = 5 * time.Minute
	}

	return conf, nil
}

// RequireBotToken returns an error if no token was configured, only the commands that connect to discord need one
func (c *Config) RequireBotToken() error {
	if c.BotToken == "" {
		return errors.NewPlain("clanbot.bot_token (CLANBOT_BOT_TOKEN) is required")
	}
	return nil
}

// LoadEnvFiles loads .env style files into the environment, missing files are ignored
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !os.IsNotExist(errors.Cause(err)) {
			return errors.WithMessage(err, f)
		}
	}

	return nil
}

func splitList(s string) []string {
	var result []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}
