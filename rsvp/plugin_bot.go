package rsvp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/commands"
	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/events"
	"github.com/clanbot/clanbot/members"
)

var logger = common.GetPluginLogger(&Plugin{})

const (
	prefixNoteModal = "rsvp_note"

	// embed field values can be at most 1024 characters
	maxFieldLength = 990
)

type Plugin struct {
	Store   *Store
	Events  *events.Store
	Members *members.Store
	DMs     *bot.DMSender
}

func NewPlugin(store *Store, eventStore *events.Store, memberStore *members.Store, dms *bot.DMSender) *Plugin {
	return &Plugin{
		Store:   store,
		Events:  eventStore,
		Members: memberStore,
		DMs:     dms,
	}
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "RSVP",
		SysName:  "rsvp",
		Category: common.PluginCategoryEvents,
	}
}

func (p *Plugin) DBSchemas() []string {
	return DBSchemas
}

var _ commands.CommandProvider = (*Plugin)(nil)

func (p *Plugin) AddCommands(system *commands.System) {
	system.AddCommands(&commands.Command{
		Name: "event",
		SubCommands: []*commands.SubCommand{
			{
				Name:        "sendrsvp",
				Description: "Sends the RSVP prompt for an event to every current member",
				OfficerOnly: true,
				Deferred:    true,
				Options: []*discordgo.ApplicationCommandOption{
					commands.IntOption("id", "Event id", true),
				},
				RunFunc: p.cmdSendRSVP,
			},
			{
				Name:        "rsvps",
				Description: "Shows who responded to an event",
				Options: []*discordgo.ApplicationCommandOption{
					commands.IntOption("id", "Event id", true),
				},
				RunFunc: p.cmdListRSVPs,
			},
		},
	})

	system.AddComponentHandlers(&commands.ComponentHandler{
		Prefix:  events.RSVPButtonPrefix,
		RunFunc: p.handleButton,
	})

	system.AddModalHandlers(&commands.ComponentHandler{
		Prefix:  prefixNoteModal,
		RunFunc: p.handleNoteSubmit,
	})
}

// parseButton decodes "<prefix>:<guild>:<event>:<response>", the guild comes from the custom id since the
// buttons are also sent in direct messages
func parseButton(data *commands.Data) (guildID, eventID int64, response Response, err error) {
	guildID, err = data.CustomID.Int64(0)
	if err != nil {
		return
	}

	eventID, err = data.CustomID.Int64(1)
	if err != nil {
		return
	}

	response, err = ParseResponse(data.CustomID.Arg(2))
	return
}

func (p *Plugin) handleButton(data *commands.Data) (interface{}, error) {
	guildID, eventID, response, err := parseButton(data)
	if err != nil {
		return nil, err
	}

	if data.GuildID != 0 && data.GuildID != guildID {
		return nil, common.NewNotFound("event", eventID)
	}

	ev, err := p.Events.Get(data.Context(), guildID, eventID)
	if err != nil {
		return nil, err
	}

	if response == ResponseYes {
		return p.respond(data, guildID, ev, response, "")
	}

	return bot.Modal(bot.CustomID(prefixNoteModal, guildID, eventID, response), common.CutStringShort(string(response)+": "+ev.Name, 45),
		discordgo.TextInput{
			CustomID:    "notes",
			Label:       "Note (optional)",
			Style:       discordgo.TextInputParagraph,
			Placeholder: "Arriving late, need a carry...",
			MaxLength:   MaxNotesLength,
		}), nil
}

func (p *Plugin) handleNoteSubmit(data *commands.Data) (interface{}, error) {
	guildID, eventID, response, err := parseButton(data)
	if err != nil {
		return nil, err
	}

	ev, err := p.Events.Get(data.Context(), guildID, eventID)
	if err != nil {
		return nil, err
	}

	return p.respond(data, guildID, ev, response, data.Fields["notes"])
}

func (p *Plugin) respond(data *commands.Data, guildID int64, ev *events.Event, response Response, notes string) (interface{}, error) {
	err := p.Store.Upsert(data.Context(), guildID, ev.ID, data.AuthorID, response, notes)
	if err != nil {
		return nil, err
	}

	data.Logger().WithField("event", ev.ID).WithField("response", response).Debug("rsvp")

	switch response {
	case ResponseYes:
		return fmt.Sprintf("✅ You're going to **%s** %s.", ev.Name, common.DiscordTimestamp(ev.StartsAt, "R")), nil
	case ResponseMaybe:
		return fmt.Sprintf("❓ You might attend **%s**.", ev.Name), nil
	}
	return fmt.Sprintf("❌ You're not going to **%s**.", ev.Name), nil
}

func (p *Plugin) cmdSendRSVP(data *commands.Data) (interface{}, error) {
	ev, err := p.Events.Get(data.Context(), data.GuildID, data.Int("id"))
	if err != nil {
		return nil, err
	}

	userIDs, err := p.Members.CurrentMemberIDs(data.Context(), data.GuildID)
	if err != nil {
		return nil, err
	}

	embed := events.EventEmbed(ev, nil)
	embed.Author = &discordgo.MessageEmbedAuthor{Name: "You're invited, please respond"}

	report := p.DMs.SendAll(data.Context(), userIDs, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: events.RSVPComponents(ev),
	})

	data.Logger().WithField("event", ev.ID).Infof("sent rsvp prompts, %d sent, %d failed", report.Sent, len(report.Failed))
	return bot.FormatDeliveryReport("the RSVP prompt for **"+ev.Name+"**", report), nil
}

func (p *Plugin) cmdListRSVPs(data *commands.Data) (interface{}, error) {
	ev, err := p.Events.Get(data.Context(), data.GuildID, data.Int("id"))
	if err != nil {
		return nil, err
	}

	rsvps, err := p.Store.ListForEvent(data.Context(), data.GuildID, ev.ID)
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title:  "Responses for " + ev.Name,
		Color:  bot.EmbedColor,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Event ID: %d, %d responses", ev.ID, len(rsvps))},
		Fields: []*discordgo.MessageEmbedField{
			ResponseField(Filter(rsvps, ResponseYes), "✅ Going"),
			ResponseField(Filter(rsvps, ResponseMaybe), "❓ Maybe"),
			ResponseField(Filter(rsvps, ResponseNo), "❌ Not going"),
		},
	}

	return embed, nil
}

// DisplayName is the member's registered name or a mention if they never registered
func DisplayName(r *RSVP) string {
	if r.DisplayName.Valid && r.DisplayName.String != "" {
		return r.DisplayName.String
	}
	return bot.MentionUser(r.UserID)
}

// ResponseField lists the responders in a single embed field, cutting off with a count when it runs out of room
func ResponseField(rsvps []*RSVP, name string) *discordgo.MessageEmbedField {
	field := &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("%s (%d)", name, len(rsvps)),
		Inline: true,
	}

	var b strings.Builder
	shown := 0
	for _, v := range rsvps {
		line := "• " + DisplayName(v)
		if v.Notes.Valid {
			line += ": *" + common.CutStringShort(v.Notes.String, 60) + "*"
		}
		line += "\n"

		if utf8.RuneCountInString(b.String())+utf8.RuneCountInString(line) > maxFieldLength {
			break
		}
		b.WriteString(line)
		shown++
	}

	if shown < len(rsvps) {
		b.WriteString(fmt.Sprintf("+ %d more", len(rsvps)-shown))
	}

	if b.Len() == 0 {
		b.WriteString("None")
	}

	field.Value = b.String()
	return field
}
