package main

import (
	"context"
	"testing"
	"time"

	"github.com/clanbot/clanbot/bot/bottest"
	"github.com/clanbot/clanbot/commands"
	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/common/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCore(t *testing.T) *common.Core {
	return &common.Core{
		Conf: &common.Config{
			ReminderInterval: 10 * time.Minute,
			ReminderLead:     time.Hour,
			ReminderWindow:   5 * time.Minute,
			SessionTTL:       time.Minute,
		},
		DB:      testutils.OpenSQLite(t),
		Dialect: common.DialectSQLite,
	}
}

func TestBuildPlugins(t *testing.T) {
	core := testCore(t)
	s := newStores(core)
	plugins := buildPlugins(core, s, bottest.New())

	var names []string
	for _, schema := range plugins.Schemas() {
		names = append(names, schema.Name)
	}
	assert.Equal(t, []string{"guilds", "members", "events", "rsvp", "attendance", "rosters", "votes"}, names)

	// twice, the second run only finds existing tables
	require.NoError(t, initSchemas(core, plugins))
	require.NoError(t, initSchemas(core, plugins))

	exists, err := core.Schemas().TableExists(context.Background(), "clan_vote_responses")
	require.NoError(t, err)
	assert.True(t, exists)

	system := commands.NewSystem(bottest.New(), nil, s.guilds)
	system.AddProviders(plugins)

	subcommands := make(map[string][]string)
	for _, cmd := range system.ApplicationCommands() {
		subcommands[cmd.Name] = nil
		for _, opt := range cmd.Options {
			subcommands[cmd.Name] = append(subcommands[cmd.Name], opt.Name)
		}
	}

	assert.Len(t, subcommands, 8)
	assert.ElementsMatch(t, []string{"create", "list", "view", "edit", "delete", "sendrsvp", "rsvps"}, subcommands["event"])
	assert.ElementsMatch(t, []string{"create", "results", "close", "list"}, subcommands["vote"])
	assert.Contains(t, subcommands, "calendar")
	assert.Contains(t, subcommands, "profile")
}
