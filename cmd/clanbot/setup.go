package main

import (
	"github.com/clanbot/clanbot/attendance"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/common/config"
	"github.com/clanbot/clanbot/events"
	"github.com/clanbot/clanbot/guilds"
	"github.com/clanbot/clanbot/members"
	"github.com/clanbot/clanbot/reminders"
	"github.com/clanbot/clanbot/rosters"
	"github.com/clanbot/clanbot/rsvp"
	"github.com/clanbot/clanbot/sessions"
	"github.com/clanbot/clanbot/votes"
	"github.com/mediocregopher/radix/v3"
	"github.com/sirupsen/logrus"
)

var logger = common.GetFixedPrefixLogger("main")

// loadConfig reads .env, the environment and, if a redis address is configured, the clanbot_config hash in redis
func loadConfig() (*common.Config, error) {
	if err := common.LoadEnvFiles(".env"); err != nil {
		return nil, err
	}

	manager := config.NewConfigManager()
	manager.AddSource(&config.EnvSource{})
	opts := common.RegisterOptions(manager)

	conf, err := common.LoadConfig(manager, opts)
	if err != nil || conf.Redis == "" {
		return conf, err
	}

	pool, err := radix.NewPool("tcp", conf.Redis, 1)
	if err != nil {
		logrus.WithError(err).Warn("Failed connecting to redis for config overrides, using env only")
		return conf, nil
	}
	defer pool.Close()

	manager.AddSource(&config.RedisConfigStore{Pool: pool})
	return common.LoadConfig(manager, opts)
}

// stores are shared between the plugins, a plugin never owns another plugin's tables
type stores struct {
	guilds     *guilds.Store
	members    *members.Store
	events     *events.Store
	rsvps      *rsvp.Store
	attendance *attendance.Marker
	rosters    *rosters.Store
	votes      *votes.Store
	sessions   sessions.Store
}

func newStores(core *common.Core) *stores {
	s := &stores{
		guilds:  guilds.NewStore(core.DB),
		members: members.NewStore(core.DB),
		events:  events.NewStore(core.DB),
		rsvps:   rsvp.NewStore(core.DB),
		rosters: rosters.NewStore(core.DB),
		votes:   votes.NewStore(core.DB),
	}
	s.attendance = attendance.NewMarker(core.DB, s.rsvps, s.events)

	if core.Redis != nil {
		s.sessions = sessions.NewRedisStore(core.Redis, core.Conf.SessionTTL)
	} else {
		s.sessions = sessions.NewMemoryStore(core.Conf.SessionTTL)
	}

	return s
}

// buildPlugins registers the plugins in table dependency order, schemas are initialized in the same order
func buildPlugins(core *common.Core, s *stores, session bot.Session) *common.PluginSet {
	conf := core.Conf
	dms := bot.NewDMSender(session, conf.DMInterval)

	plugins := &common.PluginSet{}
	plugins.Register(guilds.NewPlugin(s.guilds))
	plugins.Register(members.NewPlugin(s.members, s.sessions, dms, s.attendance))
	plugins.Register(events.NewPlugin(s.events, s.guilds, s.rsvps))
	plugins.Register(rsvp.NewPlugin(s.rsvps, s.events, s.members, dms))
	plugins.Register(attendance.NewPlugin(s.attendance, s.sessions))
	plugins.Register(rosters.NewPlugin(s.rosters, s.events, s.rsvps))
	plugins.Register(votes.NewPlugin(s.votes, s.sessions))

	scanner := reminders.NewScanner(s.guilds, s.events, s.rsvps, session, conf.ReminderLead, conf.ReminderWindow)
	plugins.Register(reminders.NewPlugin(scanner, conf.ReminderInterval))

	return plugins
}
