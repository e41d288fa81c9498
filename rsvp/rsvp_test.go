package rsvp

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
	"github.com/clanbot/clanbot/events"
	"github.com/clanbot/clanbot/members"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

const testGuild = int64(1)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// ticking returns a clock that advances one second on every call
func ticking() func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return testNow.Add(time.Duration(n) * time.Second)
	}
}

type fixture struct {
	db      *sqlx.DB
	store   *Store
	events  *events.Store
	members *members.Store
}

func newFixture(t *testing.T) *fixture {
	db := testutils.OpenSQLite(t,
		testutils.Schema("members", members.DBSchemas),
		testutils.Schema("events", events.DBSchemas),
		testutils.Schema("rsvp", DBSchemas))

	f := &fixture{
		db:      db,
		store:   NewStore(db),
		events:  events.NewStore(db),
		members: members.NewStore(db),
	}
	f.store.Now = ticking()
	f.events.Now = func() time.Time { return testNow }
	return f
}

func (f *fixture) createEvent(t *testing.T, name string) int64 {
	id, err := f.events.Create(context.Background(), testGuild, name, "", testNow.Add(2*time.Hour), 99)
	require.NoError(t, err)
	return id
}

func TestUpsertTwiceKeepsOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eventID := f.createEvent(t, "Clan War")

	require.NoError(t, f.store.Upsert(ctx, testGuild, eventID, 5, ResponseYes, "first"))
	require.NoError(t, f.store.Upsert(ctx, testGuild, eventID, 5, ResponseMaybe, "second"))

	rsvps, err := f.store.ListForEvent(ctx, testGuild, eventID)
	require.NoError(t, err)
	require.Len(t, rsvps, 1)
	assert.Equal(t, ResponseMaybe, rsvps[0].Response)
	assert.Equal(t, null.StringFrom("second"), rsvps[0].Notes)
	assert.True(t, rsvps[0].RespondedAt.Equal(testNow.Add(2*time.Second)), "responded_at is refreshed")

	// empty notes clear the previous note
	require.NoError(t, f.store.Upsert(ctx, testGuild, eventID, 5, ResponseNo, ""))
	rsvps, err = f.store.ListForEvent(ctx, testGuild, eventID)
	require.NoError(t, err)
	assert.False(t, rsvps[0].Notes.Valid)
}

func TestUpsertValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eventID := f.createEvent(t, "Clan War")

	var verr *common.ValidationError
	assert.ErrorAs(t, f.store.Upsert(ctx, testGuild, eventID, 5, "Perhaps", ""), &verr)

	// unknown, deleted and other guilds' events
	assert.True(t, common.IsNotFound(f.store.Upsert(ctx, testGuild, eventID+1, 5, ResponseYes, "")))
	assert.True(t, common.IsNotFound(f.store.Upsert(ctx, 2, eventID, 5, ResponseYes, "")))

	require.NoError(t, f.events.Deactivate(ctx, testGuild, eventID))
	assert.True(t, common.IsNotFound(f.store.Upsert(ctx, testGuild, eventID, 5, ResponseYes, "")))

	var count int
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM clan_rsvps"))
	assert.Equal(t, 0, count)

	r, err := ParseResponse("maybe")
	require.NoError(t, err)
	assert.Equal(t, ResponseMaybe, r)
}

func TestListForEventOrderAndNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eventID := f.createEvent(t, "Clan War")

	_, err := f.members.EnsureMember(ctx, testGuild, 30, "Cecil")
	require.NoError(t, err)

	require.NoError(t, f.store.Upsert(ctx, testGuild, eventID, 30, ResponseYes, ""))
	require.NoError(t, f.store.Upsert(ctx, testGuild, eventID, 10, ResponseNo, ""))
	require.NoError(t, f.store.Upsert(ctx, testGuild, eventID, 20, ResponseYes, ""))

	rsvps, err := f.store.ListForEvent(ctx, testGuild, eventID)
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 10, 20}, UserIDs(rsvps))
	assert.Equal(t, "Cecil", DisplayName(rsvps[0]))
	assert.Equal(t, "<@10>", DisplayName(rsvps[1]))

	yes := Filter(rsvps, ResponseYes)
	assert.Equal(t, []int64{30, 20}, UserIDs(yes))

	counts := Counts(rsvps)
	assert.Equal(t, events.RSVPCounts{Yes: 2, No: 1}, counts)

	stored, err := f.store.CountsForEvent(ctx, testGuild, eventID)
	require.NoError(t, err)
	assert.Equal(t, counts, *stored)
}

func TestListForEventOrderWithinOneSecond(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eventID := f.createEvent(t, "Clan War")

	clock := testNow
	f.store.Now = func() time.Time { return clock }

	clock = testNow.Add(100 * time.Millisecond)
	require.NoError(t, f.store.Upsert(ctx, testGuild, eventID, 300, ResponseYes, ""))
	clock = testNow.Add(400 * time.Millisecond)
	require.NoError(t, f.store.Upsert(ctx, testGuild, eventID, 200, ResponseYes, ""))

	// identical timestamps keep the order they were recorded in
	require.NoError(t, f.store.Upsert(ctx, testGuild, eventID, 250, ResponseYes, ""))
	require.NoError(t, f.store.Upsert(ctx, testGuild, eventID, 150, ResponseYes, ""))

	rsvps, err := f.store.ListForEvent(ctx, testGuild, eventID)
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200, 250, 150}, UserIDs(rsvps))
	assert.True(t, rsvps[0].RespondedAt.Equal(testNow.Add(100*time.Millisecond)))

	// responding again moves the user to the back
	require.NoError(t, f.store.Upsert(ctx, testGuild, eventID, 300, ResponseYes, "late"))
	rsvps, err = f.store.ListForEvent(ctx, testGuild, eventID)
	require.NoError(t, err)
	assert.Equal(t, []int64{200, 250, 150, 300}, UserIDs(rsvps))
}

func TestResponseFieldOverflow(t *testing.T) {
	var rsvps []*RSVP
	for i := 0; i < 200; i++ {
		rsvps = append(rsvps, &RSVP{UserID: int64(100000 + i), DisplayName: null.StringFrom("a rather long display name")})
	}

	field := ResponseField(rsvps, "Going")
	assert.Equal(t, "Going (200)", field.Name)
	assert.LessOrEqual(t, len([]rune(field.Value)), 1024)
	assert.Contains(t, field.Value, "more")

	assert.Equal(t, "None", ResponseField(nil, "Maybe").Value)
}

func newTestPlugin(t *testing.T) (*Plugin, *fixture, *bottest.Session) {
	f := newFixture(t)
	session := bottest.New()
	return NewPlugin(f.store, f.events, f.members, bot.NewDMSender(session, 0)), f, session
}

func TestButtonFromDM(t *testing.T) {
	p, f, _ := newTestPlugin(t)
	eventID := f.createEvent(t, "Clan War")

	// direct messages have no guild, the custom id carries it
	data := &commands.Data{
		Ctx:      context.Background(),
		AuthorID: 5,
		CustomID: bot.ParseCustomID(bot.CustomID(events.RSVPButtonPrefix, testGuild, eventID, "Yes")),
	}

	resp, err := p.handleButton(data)
	require.NoError(t, err)
	assert.Contains(t, resp.(string), "going to **Clan War**")

	// maybe asks for a note first
	data.CustomID = bot.ParseCustomID(bot.CustomID(events.RSVPButtonPrefix, testGuild, eventID, "Maybe"))
	resp, err = p.handleButton(data)
	require.NoError(t, err)
	modal := resp.(*discordgo.InteractionResponse)
	require.Equal(t, discordgo.InteractionResponseModal, modal.Type)

	data.CustomID = bot.ParseCustomID(modal.Data.CustomID)
	data.Fields = map[string]string{"notes": "might be late"}
	_, err = p.handleNoteSubmit(data)
	require.NoError(t, err)

	rsvps, err := f.store.ListForEvent(context.Background(), testGuild, eventID)
	require.NoError(t, err)
	require.Len(t, rsvps, 1)
	assert.Equal(t, ResponseMaybe, rsvps[0].Response)
	assert.Equal(t, "might be late", rsvps[0].Notes.String)

	// a button for another guild's event clicked inside a guild
	data.GuildID = 2
	data.CustomID = bot.ParseCustomID(bot.CustomID(events.RSVPButtonPrefix, testGuild, eventID, "Yes"))
	_, err = p.handleButton(data)
	assert.True(t, common.IsNotFound(err))
}

func TestSendRSVPSummarizesFailures(t *testing.T) {
	p, f, session := newTestPlugin(t)
	ctx := context.Background()
	eventID := f.createEvent(t, "Clan War")

	for i := int64(1); i <= 3; i++ {
		_, err := f.members.EnsureMember(ctx, testGuild, i, "m")
		require.NoError(t, err)
	}
	_, err := f.members.EnsureMember(ctx, testGuild, 4, "alumnus")
	require.NoError(t, err)
	_, err = f.members.SetStatus(ctx, testGuild, []int64{4}, members.StatusAlumni)
	require.NoError(t, err)

	session.FailDMs["2"] = true

	data := &commands.Data{
		Ctx:      ctx,
		GuildID:  testGuild,
		AuthorID: 99,
		Options: map[string]*discordgo.ApplicationCommandInteractionDataOption{
			"id": {Name: "id", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(eventID)},
		},
	}

	resp, err := p.cmdSendRSVP(data)
	require.NoError(t, err)
	assert.Contains(t, resp.(string), "2 of 3")
	assert.Contains(t, resp.(string), "direct messages disabled")

	sent := session.MessagesTo("dm-1")
	require.Len(t, sent, 1)
	assert.Len(t, sent[0].Components, 1)
	assert.Empty(t, session.MessagesTo("dm-4"))
}
