package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/commands"
	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/common/testutils"
	"github.com/clanbot/clanbot/events"
	"github.com/clanbot/clanbot/members"
	"github.com/clanbot/clanbot/rsvp"
	"github.com/clanbot/clanbot/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGuild   = int64(1)
	testOfficer = int64(99)
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	marker *Marker
	events *events.Store
	rsvps  *rsvp.Store
}

func newFixture(t *testing.T) *fixture {
	db := testutils.OpenSQLite(t,
		testutils.Schema("members", members.DBSchemas),
		testutils.Schema("events", events.DBSchemas),
		testutils.Schema("rsvp", rsvp.DBSchemas),
		testutils.Schema("attendance", DBSchemas))

	n := 0
	eventStore := events.NewStore(db)
	// every event is created a minute after the previous one
	eventStore.Now = func() time.Time {
		n++
		return testNow.Add(time.Duration(n) * time.Minute)
	}

	rsvpStore := rsvp.NewStore(db)
	rsvpStore.Now = func() time.Time { return testNow }

	marker := NewMarker(db, rsvpStore, eventStore)
	marker.Now = func() time.Time { return testNow }

	return &fixture{marker: marker, events: eventStore, rsvps: rsvpStore}
}

// eventWithRSVPs creates an event and records a response for each user
func (f *fixture) eventWithRSVPs(t *testing.T, name string, responses map[int64]rsvp.Response) int64 {
	ctx := context.Background()
	id, err := f.events.Create(ctx, testGuild, name, "", testNow.Add(24*time.Hour), testOfficer)
	require.NoError(t, err)

	for userID, r := range responses {
		require.NoError(t, f.rsvps.Upsert(ctx, testGuild, id, userID, r, ""))
	}
	return id
}

func TestMarkIgnoresNonResponders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eventID := f.eventWithRSVPs(t, "raid", map[int64]rsvp.Response{
		1: rsvp.ResponseYes,
		2: rsvp.ResponseYes,
		3: rsvp.ResponseNo,
	})

	result, err := f.marker.Mark(ctx, testGuild, eventID, []int64{1, 3, 4}, testOfficer)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attended)
	assert.Equal(t, 1, result.Absent)
	assert.Equal(t, []int64{4}, result.Ignored)

	attended, absent, err := f.marker.ForEvent(ctx, testGuild, eventID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, attended)
	assert.Equal(t, []int64{2}, absent)

	stats, err := f.marker.Stats(ctx, testGuild, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestMarkIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eventID := f.eventWithRSVPs(t, "raid", map[int64]rsvp.Response{1: rsvp.ResponseYes, 2: rsvp.ResponseMaybe})

	for i := 0; i < 2; i++ {
		_, err := f.marker.Mark(ctx, testGuild, eventID, []int64{1}, testOfficer)
		require.NoError(t, err)
	}

	var count int
	require.NoError(t, f.marker.DB.Get(&count, "SELECT COUNT(*) FROM clan_attendance"))
	assert.Equal(t, 2, count)

	type mark struct {
		UserID   int64     `db:"user_id"`
		Attended bool      `db:"attended"`
		MarkedBy int64     `db:"marked_by"`
		MarkedAt time.Time `db:"marked_at"`
	}
	marks := func() []mark {
		var result []mark
		require.NoError(t, f.marker.DB.Select(&result, "SELECT user_id, attended, marked_by, marked_at FROM clan_attendance ORDER BY user_id"))
		return result
	}
	before := marks()

	// a later run by another officer with the same selection keeps the original marks
	f.marker.Now = func() time.Time { return testNow.Add(time.Hour) }
	_, err := f.marker.Mark(ctx, testGuild, eventID, []int64{1}, testOfficer+1)
	require.NoError(t, err)
	assert.Equal(t, before, marks())

	// marking again replaces the marks that changed
	_, err = f.marker.Mark(ctx, testGuild, eventID, []int64{1, 2}, testOfficer+1)
	require.NoError(t, err)

	after := marks()
	require.Len(t, after, 2)
	assert.Equal(t, before[0], after[0])
	assert.True(t, after[1].Attended)
	assert.Equal(t, testOfficer+1, after[1].MarkedBy)
	assert.True(t, testNow.Add(time.Hour).Equal(after[1].MarkedAt), after[1].MarkedAt)

	_, err = f.marker.Mark(ctx, testGuild, eventID, []int64{2}, testOfficer)
	require.NoError(t, err)

	attended, absent, err := f.marker.ForEvent(ctx, testGuild, eventID)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, attended)
	assert.Equal(t, []int64{1}, absent)
}

func TestMarkUnknownEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.marker.Mark(ctx, testGuild, 42, []int64{1}, testOfficer)
	assert.True(t, common.IsNotFound(err))

	eventID := f.eventWithRSVPs(t, "raid", nil)
	_, err = f.marker.Mark(ctx, 2, eventID, []int64{1}, testOfficer)
	assert.True(t, common.IsNotFound(err))

	// no responses, nothing to mark
	result, err := f.marker.Mark(ctx, testGuild, eventID, []int64{1}, testOfficer)
	require.NoError(t, err)
	assert.Zero(t, result.Attended+result.Absent)
	assert.Equal(t, []int64{1}, result.Ignored)
}

func TestStatsAndRecent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []int64
	for i, name := range []string{"one", "two", "three", "four", "five", "six"} {
		id := f.eventWithRSVPs(t, name, map[int64]rsvp.Response{7: rsvp.ResponseYes})
		attended := []int64{}
		if i%2 == 0 {
			attended = append(attended, 7)
		}
		_, err := f.marker.Mark(ctx, testGuild, id, attended, testOfficer)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	stats, err := f.marker.Stats(ctx, testGuild, 7)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 3, stats.Attended)
	assert.InDelta(t, 50.0, stats.Percentage(), 0.001)

	recent, err := f.marker.Recent(ctx, testGuild, 7, RecentLimit)
	require.NoError(t, err)
	require.Len(t, recent, RecentLimit)
	assert.Equal(t, ids[5], recent[0].EventID)
	assert.Equal(t, "six", recent[0].EventName)
	assert.False(t, recent[0].Attended)
	assert.Equal(t, ids[1], recent[4].EventID)

	summary, err := f.marker.AttendanceSummary(ctx, testGuild, 7)
	require.NoError(t, err)
	assert.Contains(t, summary, "3/6 events (50%)")

	summary, err = f.marker.AttendanceSummary(ctx, testGuild, 8)
	require.NoError(t, err)
	assert.Equal(t, "No events marked yet.", summary)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.Equal(t, 0.0, Percentage(3, 0))
	assert.InDelta(t, 75.0, Percentage(3, 4), 0.001)
	assert.InDelta(t, 100.0, Percentage(4, 4), 0.001)
}

func TestMarkFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := sessions.NewMemoryStore(time.Minute)
	p := NewPlugin(f.marker, store)

	eventID := f.eventWithRSVPs(t, "raid", map[int64]rsvp.Response{
		1: rsvp.ResponseYes,
		2: rsvp.ResponseYes,
		3: rsvp.ResponseMaybe,
	})

	data := &commands.Data{Ctx: ctx, GuildID: testGuild, AuthorID: testOfficer, IsOfficer: true}
	data.Options = testutils.IntOptions("id", eventID)

	resp, err := p.cmdMark(data)
	require.NoError(t, err)
	r := resp.(*commands.Response)
	assert.Contains(t, r.Content, "2 of 3 selected")

	customID := testutils.FindSelectMenu(t, r.Components).CustomID
	sessionID := bot.ParseCustomID(customID).Arg(0)

	// another officer can't continue the flow
	other := &commands.Data{Ctx: ctx, GuildID: testGuild, AuthorID: 5, CustomID: bot.ParseCustomID(customID), Values: []string{"1"}}
	_, err = p.handleSelect(other)
	assert.Error(t, err)

	data.CustomID = bot.ParseCustomID(customID)
	data.Values = []string{"1", "3"}
	resp, err = p.handleSelect(data)
	require.NoError(t, err)
	assert.True(t, resp.(*commands.Response).Update)

	data.CustomID = bot.ParseCustomID(bot.CustomID(prefixConfirm, sessionID))
	resp, err = p.handleConfirm(data)
	require.NoError(t, err)
	assert.Contains(t, resp.(*commands.Response).Content, "2 attended, 1 absent")

	attended, absent, err := f.marker.ForEvent(ctx, testGuild, eventID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, attended)
	assert.Equal(t, []int64{2}, absent)

	// the session is gone once confirmed
	_, err = p.handleConfirm(data)
	assert.True(t, common.IsNotFound(err))
}

func TestMarkFlowKeepsSelectionsOnOtherPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := NewPlugin(f.marker, sessions.NewMemoryStore(time.Minute))

	eventID, err := f.events.Create(ctx, testGuild, "raid", "", testNow.Add(24*time.Hour), testOfficer)
	require.NoError(t, err)

	// responses are listed in the order they were recorded
	var all []int64
	for userID := int64(1); userID <= 30; userID++ {
		require.NoError(t, f.rsvps.Upsert(ctx, testGuild, eventID, userID, rsvp.ResponseYes, ""))
		all = append(all, userID)
	}

	data := &commands.Data{Ctx: ctx, GuildID: testGuild, AuthorID: testOfficer, IsOfficer: true}
	data.Options = testutils.IntOptions("id", eventID)

	resp, err := p.cmdMark(data)
	require.NoError(t, err)
	r := resp.(*commands.Response)
	assert.Contains(t, r.Content, "30 of 30 selected")
	assert.Contains(t, r.Content, "Page 1 of 2")

	menu := testutils.FindSelectMenu(t, r.Components)
	require.Len(t, menu.Options, maxSelectOptions)
	sessionID := bot.ParseCustomID(menu.CustomID).Arg(0)

	// uncheck user 1, everyone else on the first page stays checked
	var values []string
	for _, opt := range menu.Options[1:] {
		values = append(values, opt.Value)
	}
	data.CustomID = bot.ParseCustomID(menu.CustomID)
	data.Values = values
	resp, err = p.handleSelect(data)
	require.NoError(t, err)
	assert.Contains(t, resp.(*commands.Response).Content, "29 of 30 selected")

	data.CustomID = bot.ParseCustomID(bot.CustomID(prefixPage, sessionID, 1))
	data.Values = nil
	resp, err = p.handlePage(data)
	require.NoError(t, err)
	r = resp.(*commands.Response)
	assert.Contains(t, r.Content, "Page 2 of 2")

	menu = testutils.FindSelectMenu(t, r.Components)
	require.Len(t, menu.Options, 5)
	for _, opt := range menu.Options {
		assert.True(t, opt.Default, opt.Value)
	}

	buttons := testutils.FindButtons(r.Components)
	require.Len(t, buttons, 3)
	assert.False(t, buttons[0].Disabled)
	assert.True(t, buttons[1].Disabled)

	// pages past the end are clamped to the last one
	data.CustomID = bot.ParseCustomID(bot.CustomID(prefixPage, sessionID, 7))
	resp, err = p.handlePage(data)
	require.NoError(t, err)
	assert.Contains(t, resp.(*commands.Response).Content, "Page 2 of 2")

	data.CustomID = bot.ParseCustomID(bot.CustomID(prefixConfirm, sessionID))
	resp, err = p.handleConfirm(data)
	require.NoError(t, err)
	assert.Contains(t, resp.(*commands.Response).Content, "29 attended, 1 absent")

	attended, absent, err := f.marker.ForEvent(ctx, testGuild, eventID)
	require.NoError(t, err)
	assert.ElementsMatch(t, all[1:], attended)
	assert.Equal(t, []int64{1}, absent)
}
