package members

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/bot/bottest"
	"github.com/clanbot/clanbot/commands"
	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/common/testutils"
	"github.com/clanbot/clanbot/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuild = int64(1)

func newTestStore(t *testing.T) *Store {
	db := testutils.OpenSQLite(t, testutils.Schema("members", DBSchemas))
	s := NewStore(db)

	// members join one minute apart so ordering by join date is deterministic
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s.Now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	return s
}

func addMembers(t *testing.T, s *Store, names ...string) {
	for i, name := range names {
		_, err := s.EnsureMember(context.Background(), testGuild, int64(i+1), name)
		require.NoError(t, err)
	}
}

func TestEnsureMember(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := s.EnsureMember(ctx, testGuild, 10, "Ada")
	require.NoError(t, err)
	assert.Equal(t, StatusMember, m.Status)
	assert.Equal(t, DefaultBackground, m.Background)
	joined := m.JoinedAt

	// a repeat call refreshes the name but keeps the rest
	_, err = s.SetStatus(ctx, testGuild, []int64{10}, StatusOfficer)
	require.NoError(t, err)

	m, err = s.EnsureMember(ctx, testGuild, 10, "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", m.DisplayName)
	assert.Equal(t, StatusOfficer, m.Status)
	assert.True(t, joined.Equal(m.JoinedAt))

	_, err = s.Get(ctx, 2, 10)
	assert.True(t, common.IsNotFound(err))
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addMembers(t, s, "a", "b", "c", "d")

	_, err := s.SetStatus(ctx, testGuild, []int64{2}, StatusAlumni)
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, testGuild, []int64{3}, StatusLeader)
	require.NoError(t, err)

	cases := []struct {
		filter Filter
		want   []int64
	}{
		{FilterAll, []int64{1, 2, 3, 4}},
		{FilterCurrent, []int64{1, 3, 4}},
		{FilterAlumni, []int64{2}},
		{Filter(StatusLeader), []int64{3}},
	}

	for _, c := range cases {
		t.Run(string(c.filter), func(t *testing.T) {
			list, err := s.List(ctx, testGuild, c.filter)
			require.NoError(t, err)

			ids := make([]int64, 0, len(list))
			for _, v := range list {
				ids = append(ids, v.UserID)
			}
			assert.Equal(t, c.want, ids)
		})
	}

	ids, err := s.CurrentMemberIDs(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4}, ids)

	_, err = ParseFilter("nobody")
	var verr *common.ValidationError
	assert.ErrorAs(t, err, &verr)

	f, err := ParseFilter("OFFICER")
	require.NoError(t, err)
	assert.Equal(t, Filter(StatusOfficer), f)
}

func TestSetStatusRejectsUnknown(t *testing.T) {
	s := newTestStore(t)
	addMembers(t, s, "a")

	_, err := s.SetStatus(context.Background(), testGuild, []int64{1}, "Overlord")
	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)

	m, err := s.Get(context.Background(), testGuild, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusMember, m.Status)
}

func TestUpdateStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addMembers(t, s, "a")

	err := s.UpdateStats(ctx, testGuild, 1, "combat", map[string]string{
		"combat_rating": "1,250,000",
		"resonance":     "420",
	})
	require.NoError(t, err)

	err = s.UpdateStats(ctx, testGuild, 1, "basic", map[string]string{"character_name": "Zul"})
	require.NoError(t, err)

	m, err := s.Get(ctx, testGuild, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1250000), m.StatNum("combat_rating"))
	assert.Equal(t, "1,250,000", m.StatDisplay("combat_rating"))
	assert.Equal(t, "Zul", m.StatDisplay("character_name"))

	// one bad value and nothing is written
	err = s.UpdateStats(ctx, testGuild, 1, "combat", map[string]string{
		"combat_rating": "2000000",
		"resonance":     "lots",
	})
	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)

	m, err = s.Get(ctx, testGuild, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1250000), m.StatNum("combat_rating"))
	assert.Equal(t, int64(420), m.StatNum("resonance"))

	// empty values clear the stat
	require.NoError(t, s.UpdateStats(ctx, testGuild, 1, "combat", map[string]string{"resonance": ""}))
	m, err = s.Get(ctx, testGuild, 1)
	require.NoError(t, err)
	assert.Equal(t, "", m.StatDisplay("resonance"))
	assert.Equal(t, int64(1250000), m.StatNum("combat_rating"))

	err = s.UpdateStats(ctx, testGuild, 1, "combat", map[string]string{"strength": "5"})
	assert.ErrorAs(t, err, &verr)

	err = s.UpdateStats(ctx, testGuild, 1, "combat", map[string]string{"life": "1000000000001"})
	assert.ErrorAs(t, err, &verr)

	err = s.UpdateStats(ctx, testGuild, 99, "combat", map[string]string{"life": "5"})
	assert.True(t, common.IsNotFound(err))
}

func TestSetBackground(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addMembers(t, s, "a")

	require.NoError(t, s.SetBackground(ctx, testGuild, 1, "westmarch"))
	m, err := s.Get(ctx, testGuild, 1)
	require.NoError(t, err)
	assert.Equal(t, "westmarch", m.Background)

	var verr *common.ValidationError
	assert.ErrorAs(t, s.SetBackground(ctx, testGuild, 1, "the moon"), &verr)
	assert.True(t, common.IsNotFound(s.SetBackground(ctx, testGuild, 5, "library")))
}

func TestLeaderboard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	names := make([]string, 12)
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	addMembers(t, s, names...)

	for i := range names {
		userID := int64(i + 1)
		err := s.UpdateStats(ctx, testGuild, userID, "combat", map[string]string{"combat_rating": common.FormatInt(userID * 100)})
		require.NoError(t, err)
	}

	// alumni are left out
	_, err := s.SetStatus(ctx, testGuild, []int64{12}, StatusAlumni)
	require.NoError(t, err)

	lb, err := s.Leaderboard(ctx, testGuild, "combat_rating", 1)
	require.NoError(t, err)
	assert.Equal(t, 11, lb.Total)
	assert.Equal(t, 2, lb.Pages)
	require.Len(t, lb.Entries, LeaderboardPageSize)
	assert.Equal(t, int64(11), lb.Entries[0].UserID)
	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, int64(1100), lb.Entries[0].Value)

	lb, err = s.Leaderboard(ctx, testGuild, "combat_rating", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, lb.Page)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, int64(1), lb.Entries[0].UserID)
	assert.Equal(t, 11, lb.Entries[0].Rank)

	_, err = s.Leaderboard(ctx, testGuild, "character_name", 1)
	var verr *common.ValidationError
	assert.ErrorAs(t, err, &verr)

	lb, err = s.Leaderboard(ctx, testGuild, "vitality", 1)
	require.NoError(t, err)
	assert.Empty(t, lb.Entries)
	assert.Equal(t, 1, lb.Pages)
}

func TestStatCategoriesFitModals(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range StatCategories {
		assert.LessOrEqual(t, len(c.Stats), 5, c.Key)
		for _, s := range c.Stats {
			assert.False(t, seen[s.Key], "duplicate stat %s", s.Key)
			seen[s.Key] = true
		}
	}
}

type fakeAttendance struct{}

func (fakeAttendance) AttendanceSummary(ctx context.Context, guildID, userID int64) (string, error) {
	return "3/4 events (75%)", nil
}

func newTestPlugin(t *testing.T) (*Plugin, *bottest.Session) {
	session := bottest.New()
	p := NewPlugin(newTestStore(t), sessions.NewMemoryStore(time.Minute), bot.NewDMSender(session, 0), fakeAttendance{})
	return p, session
}

func componentData(authorID int64, officer bool, customID string, values ...string) *commands.Data {
	return &commands.Data{
		Ctx:       context.Background(),
		GuildID:   testGuild,
		AuthorID:  authorID,
		Author:    &discordgo.User{ID: bot.FormatID(authorID), Username: "officer"},
		IsOfficer: officer,
		CustomID:  bot.ParseCustomID(customID),
		Values:    values,
	}
}

func TestPromoteFlow(t *testing.T) {
	p, _ := newTestPlugin(t)
	ctx := context.Background()
	addMembers(t, p.Store, "a", "b", "c")

	resp, err := p.memberSelectCmd(sessionKindPromote)(componentData(1, true, ""))
	require.NoError(t, err)

	menu := resp.(*commands.Response).Components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	assert.Len(t, menu.Options, 3)

	customID := bot.ParseCustomID(menu.CustomID)
	require.Equal(t, prefixMemberSelect, customID.Prefix)

	// another officer can't continue the flow
	_, err = p.handleMemberSelect(componentData(2, true, menu.CustomID, "2", "3"))
	var permErr *common.PermissionError
	require.ErrorAs(t, err, &permErr)

	resp, err = p.handleMemberSelect(componentData(1, true, menu.CustomID, "2", "3"))
	require.NoError(t, err)
	statusMenu := resp.(*commands.Response).Components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)

	resp, err = p.handleStatusSelect(componentData(1, true, statusMenu.CustomID, "Officer"))
	require.NoError(t, err)
	assert.Contains(t, resp.(*commands.Response).Content, "2 member(s)")

	officers, err := p.Store.List(ctx, testGuild, Filter(StatusOfficer))
	require.NoError(t, err)
	assert.Len(t, officers, 2)

	// the session is gone once the flow finishes
	_, err = p.handleStatusSelect(componentData(1, true, statusMenu.CustomID, "Leader"))
	assert.True(t, common.IsNotFound(err))
}

func TestRequestEditReportsFailures(t *testing.T) {
	p, session := newTestPlugin(t)
	addMembers(t, p.Store, "a", "b", "c")
	session.FailDMs["2"] = true

	resp, err := p.memberSelectCmd(sessionKindRequestEdit)(componentData(1, true, ""))
	require.NoError(t, err)
	menu := resp.(*commands.Response).Components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)

	resp, err = p.handleMemberSelect(componentData(1, true, menu.CustomID, "1", "2", "3"))
	require.NoError(t, err)

	content := resp.(*commands.Response).Content
	assert.Contains(t, content, "2 of 3")
	assert.Contains(t, content, "<@2>")
	assert.Len(t, session.MessagesTo("dm-1"), 1)
	assert.Len(t, session.MessagesTo("dm-3"), 1)
}

func TestProfileEditPermissions(t *testing.T) {
	p, _ := newTestPlugin(t)
	addMembers(t, p.Store, "a", "b")

	_, err := p.handleProfileEdit(componentData(2, false, bot.CustomID(prefixProfileEdit, 1, "combat")))
	var permErr *common.PermissionError
	require.ErrorAs(t, err, &permErr)

	resp, err := p.handleProfileEdit(componentData(1, false, bot.CustomID(prefixProfileEdit, 1, "combat")))
	require.NoError(t, err)
	modal := resp.(*discordgo.InteractionResponse)
	assert.Equal(t, discordgo.InteractionResponseModal, modal.Type)
	assert.Len(t, modal.Data.Components, 5)

	data := componentData(1, false, bot.CustomID(prefixProfileStats, 1, "combat"))
	data.Fields = map[string]string{"combat_rating": "9,001"}
	_, err = p.handleStatsSubmit(data)
	require.NoError(t, err)

	m, err := p.Store.Get(context.Background(), testGuild, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(9001), m.StatNum("combat_rating"))
}

func TestManifestEmbed(t *testing.T) {
	p, _ := newTestPlugin(t)
	addMembers(t, p.Store, "a", "b")

	list, err := p.Store.List(context.Background(), testGuild, FilterAll)
	require.NoError(t, err)

	embed := manifestEmbed(FilterAll, list)
	require.Len(t, embed.Fields, 1)
	assert.Contains(t, embed.Fields[0].Name, "Member (2)")
	assert.Contains(t, embed.Description, "2/100 current")

	embed = manifestEmbed(FilterAlumni, nil)
	assert.Contains(t, embed.Description, "No alumni members")
}
