package commands

import (
	"context"
	"testing"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot/bottest"
	"github.com/clanbot/clanbot/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOfficers struct {
	officer bool
}

func (f *fakeOfficers) IsOfficer(guildID string, member *discordgo.Member) (bool, error) {
	return f.officer, nil
}

type fakeProvisioner struct {
	ensured []int64
}

func (f *fakeProvisioner) Ensure(ctx context.Context, guildID int64) error {
	f.ensured = append(f.ensured, guildID)
	return nil
}

func newTestSystem(officer bool) (*System, *bottest.Session, *fakeProvisioner) {
	sess := bottest.New()
	prov := &fakeProvisioner{}
	return NewSystem(sess, &fakeOfficers{officer: officer}, prov), sess, prov
}

func commandInteraction(name string, sub string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	data := discordgo.ApplicationCommandInteractionData{Name: name, Options: opts}
	if sub != "" {
		data.Options = []*discordgo.ApplicationCommandInteractionDataOption{{
			Name:    sub,
			Type:    discordgo.ApplicationCommandOptionSubCommand,
			Options: opts,
		}}
	}

	return &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "100",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "200", Username: "tester"}},
		Data:    data,
	}
}

func TestSubcommandDispatch(t *testing.T) {
	sys, sess, prov := newTestSystem(false)

	var gotID int64
	sys.AddCommands(&Command{
		Name:        "event",
		Description: "Events",
		SubCommands: []*SubCommand{{
			Name:    "view",
			Options: []*discordgo.ApplicationCommandOption{IntOption("id", "Event id", true)},
			RunFunc: func(data *Data) (interface{}, error) {
				gotID = data.Int("id")
				assert.Equal(t, int64(200), data.AuthorID)
				return "ok", nil
			},
		}},
	})

	// merged into the existing command
	sys.AddCommands(&Command{
		Name: "event",
		SubCommands: []*SubCommand{{
			Name:    "rsvps",
			RunFunc: func(data *Data) (interface{}, error) { return "rsvps", nil },
		}},
	})

	sys.HandleInteraction(commandInteraction("event", "view", &discordgo.ApplicationCommandInteractionDataOption{
		Name: "id", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(12),
	}))

	assert.Equal(t, int64(12), gotID)
	assert.Equal(t, []int64{100}, prov.ensured)

	resp := sess.LastResponse()
	require.NotNil(t, resp)
	assert.Equal(t, "ok", resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)

	cmds := sys.ApplicationCommands()
	require.Len(t, cmds, 1)
	assert.Len(t, cmds[0].Options, 2)
}

func TestOfficerOnlyNeverRuns(t *testing.T) {
	sys, sess, _ := newTestSystem(false)

	ran := false
	sys.AddCommands(&Command{
		Name:        "danger",
		OfficerOnly: true,
		RunFunc: func(data *Data) (interface{}, error) {
			ran = true
			return nil, nil
		},
	})

	sys.HandleInteraction(commandInteraction("danger", ""))
	assert.False(t, ran)
	assert.Contains(t, sess.LastResponse().Data.Content, "officers only")
}

func TestComponentAndModalRouting(t *testing.T) {
	sys, sess, _ := newTestSystem(true)

	sys.AddComponentHandlers(&ComponentHandler{
		Prefix: "btn",
		RunFunc: func(data *Data) (interface{}, error) {
			assert.True(t, data.IsOfficer)
			return &Response{Content: "clicked " + data.CustomID.Arg(0), Update: true}, nil
		},
	})
	sys.AddModalHandlers(&ComponentHandler{
		Prefix: "form",
		RunFunc: func(data *Data) (interface{}, error) {
			return nil, common.NewValidationError("name", "too long")
		},
	})

	sys.HandleInteraction(&discordgo.Interaction{
		Type:    discordgo.InteractionMessageComponent,
		GuildID: "100",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "200"}},
		Data:    discordgo.MessageComponentInteractionData{CustomID: "btn:7"},
	})

	resp := sess.LastResponse()
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Equal(t, "clicked 7", resp.Data.Content)

	sys.HandleInteraction(&discordgo.Interaction{
		Type:    discordgo.InteractionModalSubmit,
		GuildID: "100",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "200"}},
		Data:    discordgo.ModalSubmitInteractionData{CustomID: "form"},
	})
	assert.Equal(t, "Invalid input: name: too long", sess.LastResponse().Data.Content)

	// unknown prefix, e.g. a menu from before a restart
	sys.HandleInteraction(&discordgo.Interaction{
		Type:    discordgo.InteractionMessageComponent,
		GuildID: "100",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "200"}},
		Data:    discordgo.MessageComponentInteractionData{CustomID: "gone:1"},
	})
	assert.Equal(t, inactiveMenuMessage, sess.LastResponse().Data.Content)
}

func TestDeferredCommand(t *testing.T) {
	sys, sess, _ := newTestSystem(true)

	sys.AddCommands(&Command{
		Name: "event",
		SubCommands: []*SubCommand{{
			Name:     "sendrsvp",
			Deferred: true,
			RunFunc: func(data *Data) (interface{}, error) {
				_, hasDeadline := data.Context().Deadline()
				assert.True(t, hasDeadline)
				return "Sent to 3 members.", nil
			},
		}, {
			Name:     "broken",
			Deferred: true,
			RunFunc: func(data *Data) (interface{}, error) {
				return nil, common.NewNotFound("event", 5)
			},
		}},
	})

	sys.HandleInteraction(commandInteraction("event", "sendrsvp"))
	require.Len(t, sess.Responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, sess.Responses[0].Type)
	require.Len(t, sess.Edits, 1)
	assert.Equal(t, "Sent to 3 members.", *sess.Edits[0].Content)

	sys.HandleInteraction(commandInteraction("event", "broken"))
	require.Len(t, sess.Edits, 2)
	assert.Equal(t, "Unknown event (5)", *sess.Edits[1].Content)
	assert.Empty(t, *sess.Edits[1].Components)
}

func TestPanicRecovered(t *testing.T) {
	sys, sess, _ := newTestSystem(false)
	sys.AddCommands(&Command{
		Name: "boom",
		RunFunc: func(data *Data) (interface{}, error) {
			panic("oh no")
		},
	})

	sys.HandleInteraction(commandInteraction("boom", ""))
	assert.Equal(t, genericErrorMessage, sess.LastResponse().Data.Content)
}

func TestHumanizeError(t *testing.T) {
	cases := []struct {
		err        error
		msg        string
		unexpected bool
	}{
		{common.NewNotFound("event", 3), "Unknown event (3)", false},
		{errors.WithMessage(common.NewValidationError("date", "must be in the future"), "create"), "Invalid input: date: must be in the future", false},
		{&common.InsufficientCandidatesError{Needed: 3, Have: 2}, "Not enough confirmed attendees: need 3, have 2 (short by 1)", false},
		{common.StoreErr("get", errors.New("conn refused")), genericErrorMessage, true},
		{errors.New("random"), genericErrorMessage, true},
	}

	for _, c := range cases {
		msg, unexpected := HumanizeError(c.err)
		assert.Equal(t, c.msg, msg)
		assert.Equal(t, c.unexpected, unexpected, c.msg)
	}
}
