package guilds

import (
	"context"
	"strconv"
	"time"

	"github.com/clanbot/clanbot/common"
	"github.com/jmoiron/sqlx"
	"github.com/karlseguin/ccache"
	"github.com/volatiletech/null/v8"
)

const (
	DefaultTimezone = "UTC"

	provisionedCacheDuration = time.Hour
	configCacheDuration      = time.Minute
)

// GuildConfig is the per guild configuration row
type GuildConfig struct {
	GuildID           int64      `db:"guild_id"`
	ReminderChannelID null.Int64 `db:"reminder_channel_id"`
	Timezone          string     `db:"timezone"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Location returns the guild's timezone, falling back to UTC if the stored one can't be loaded
func (g *GuildConfig) Location() *time.Location {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Store owns the guild_configs table, it's also the schema provisioner: Ensure is called before every guild
// interaction and only touches the database the first time it sees a guild
type Store struct {
	DB  *sqlx.DB
	Now func() time.Time

	provisioned *ccache.Cache
	configs     *ccache.Cache
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		DB:          db,
		Now:         time.Now,
		provisioned: ccache.New(ccache.Configure().MaxSize(10000)),
		configs:     ccache.New(ccache.Configure().MaxSize(10000)),
	}
}

func cacheKey(guildID int64) string {
	return strconv.FormatInt(guildID, 10)
}

// Ensure creates the guild's default configuration if it doesn't exist yet, it's idempotent
func (s *Store) Ensure(ctx context.Context, guildID int64) error {
	key := cacheKey(guildID)
	if item := s.provisioned.Get(key); item != nil && !item.Expired() {
		return nil
	}

	now := s.Now().UTC()
	const q = `INSERT INTO guild_configs (guild_id, timezone, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (guild_id) DO NOTHING`

	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(q), guildID, DefaultTimezone, now, now)
	if err != nil {
		return common.StoreErr("ensure guild", err)
	}

	s.provisioned.Set(key, true, provisionedCacheDuration)
	return nil
}

// Get returns the guild's configuration, cached for a short while
func (s *Store) Get(ctx context.Context, guildID int64) (*GuildConfig, error) {
	item, err := s.configs.Fetch(cacheKey(guildID), configCacheDuration, func() (interface{}, error) {
		return s.getUncached(ctx, guildID)
	})
	if err != nil {
		return nil, err
	}

	return item.Value().(*GuildConfig), nil
}

func (s *Store) getUncached(ctx context.Context, guildID int64) (*GuildConfig, error) {
	if err := s.Ensure(ctx, guildID); err != nil {
		return nil, err
	}

	var conf GuildConfig
	err := s.DB.GetContext(ctx, &conf, s.DB.Rebind(`SELECT guild_id, reminder_channel_id, timezone, created_at, updated_at
FROM guild_configs WHERE guild_id = ?`), guildID)
	if err != nil {
		return nil, common.WrapStoreErr("get guild config", err, "guild", guildID)
	}

	return &conf, nil
}

// Location is shorthand for the guild's configured timezone
func (s *Store) Location(ctx context.Context, guildID int64) (*time.Location, error) {
	conf, err := s.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return conf.Location(), nil
}

// SetReminderChannel sets where event reminders are posted, 0 disables reminders
func (s *Store) SetReminderChannel(ctx context.Context, guildID, channelID int64) error {
	if err := s.Ensure(ctx, guildID); err != nil {
		return err
	}

	channel := null.NewInt64(channelID, channelID != 0)
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(`UPDATE guild_configs SET reminder_channel_id = ?, updated_at = ? WHERE guild_id = ?`),
		channel, s.Now().UTC(), guildID)
	if err != nil {
		return common.StoreErr("set reminder channel", err)
	}

	s.configs.Delete(cacheKey(guildID))
	return nil
}

// SetTimezone validates and stores the guild's timezone, returns the resolved IANA name
func (s *Store) SetTimezone(ctx context.Context, guildID int64, name string) (string, error) {
	loc, err := ResolveTimezone(name)
	if err != nil {
		return "", err
	}

	if err := s.Ensure(ctx, guildID); err != nil {
		return "", err
	}

	_, err = s.DB.ExecContext(ctx, s.DB.Rebind(`UPDATE guild_configs SET timezone = ?, updated_at = ? WHERE guild_id = ?`),
		loc.String(), s.Now().UTC(), guildID)
	if err != nil {
		return "", common.StoreErr("set timezone", err)
	}

	s.configs.Delete(cacheKey(guildID))
	return loc.String(), nil
}

// ListReminderTargets returns every guild that has a reminder channel set
func (s *Store) ListReminderTargets(ctx context.Context) ([]*GuildConfig, error) {
	var result []*GuildConfig
	err := s.DB.SelectContext(ctx, &result, `SELECT guild_id, reminder_channel_id, timezone, created_at, updated_at
FROM guild_configs WHERE reminder_channel_id IS NOT NULL ORDER BY guild_id`)
	if err != nil {
		return nil, common.StoreErr("list reminder targets", err)
	}

	return result, nil
}
