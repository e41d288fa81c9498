package rosters

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/commands"
	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/events"
	"github.com/clanbot/clanbot/rsvp"
)

const prefixCreateModal = "roster_create"

type Plugin struct {
	Store  *Store
	Events *events.Store
	RSVPs  *rsvp.Store
}

func NewPlugin(store *Store, eventStore *events.Store, rsvps *rsvp.Store) *Plugin {
	return &Plugin{
		Store:  store,
		Events: eventStore,
		RSVPs:  rsvps,
	}
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Rosters",
		SysName:  "rosters",
		Category: common.PluginCategoryEvents,
	}
}

func (p *Plugin) DBSchemas() []string {
	return DBSchemas
}

var _ commands.CommandProvider = (*Plugin)(nil)

func (p *Plugin) AddCommands(system *commands.System) {
	system.AddCommands(&commands.Command{
		Name:        "roster",
		Description: "Split an event's attendees into rooms",
		SubCommands: []*commands.SubCommand{
			{
				Name:        "create",
				Description: "Creates a roster from the members going to an event",
				OfficerOnly: true,
				Options: []*discordgo.ApplicationCommandOption{
					commands.IntOption("event", "Event id", true),
				},
				RunFunc: p.cmdCreate,
			},
			{
				Name:        "view",
				Description: "Shows a roster",
				Options: []*discordgo.ApplicationCommandOption{
					commands.IntOption("id", "Roster id", true),
				},
				RunFunc: p.cmdView,
			},
			{
				Name:        "list",
				Description: "Lists the rosters of an event",
				Options: []*discordgo.ApplicationCommandOption{
					commands.IntOption("event", "Event id", true),
				},
				RunFunc: p.cmdList,
			},
		},
	})

	system.AddModalHandlers(&commands.ComponentHandler{
		Prefix:      prefixCreateModal,
		OfficerOnly: true,
		RunFunc:     p.handleCreateSubmit,
	})
}

func (p *Plugin) cmdCreate(data *commands.Data) (interface{}, error) {
	ev, err := p.Events.Get(data.Context(), data.GuildID, data.Int("event"))
	if err != nil {
		return nil, err
	}

	counts, err := p.RSVPs.CountsForEvent(data.Context(), data.GuildID, ev.ID)
	if err != nil {
		return nil, err
	}

	if counts.Yes == 0 {
		return fmt.Sprintf("Nobody has confirmed they're going to **%s** yet.", ev.Name), nil
	}

	return bot.Modal(bot.CustomID(prefixCreateModal, ev.ID), common.CutStringShort("Roster: "+ev.Name, 45),
		discordgo.TextInput{
			CustomID:    "name",
			Label:       "Roster name",
			Style:       discordgo.TextInputShort,
			Placeholder: "Enter roster name...",
			Required:    true,
			MaxLength:   MaxNameLength,
		},
		discordgo.TextInput{
			CustomID:    "rooms",
			Label:       "Number of rooms",
			Style:       discordgo.TextInputShort,
			Placeholder: fmt.Sprintf("1 to %d", MaxRooms),
			Required:    true,
			MaxLength:   2,
		},
		discordgo.TextInput{
			CustomID:    "per_room",
			Label:       fmt.Sprintf("Members per room (%d going)", counts.Yes),
			Style:       discordgo.TextInputShort,
			Placeholder: fmt.Sprintf("1 to %d", MaxPerRoom),
			Required:    true,
			MaxLength:   3,
		}), nil
}

func parseCount(field, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, common.NewValidationErrorf(field, "%q is not a number", value)
	}
	return n, nil
}

func (p *Plugin) handleCreateSubmit(data *commands.Data) (interface{}, error) {
	eventID, err := data.CustomID.Int64(0)
	if err != nil {
		return nil, err
	}

	ev, err := p.Events.Get(data.Context(), data.GuildID, eventID)
	if err != nil {
		return nil, err
	}

	rooms, err := parseCount("rooms", data.Fields["rooms"])
	if err != nil {
		return nil, err
	}

	perRoom, err := parseCount("per room", data.Fields["per_room"])
	if err != nil {
		return nil, err
	}

	rsvps, err := p.RSVPs.ListForEvent(data.Context(), data.GuildID, ev.ID)
	if err != nil {
		return nil, err
	}

	layout, err := Partition(Candidates(rsvp.Filter(rsvps, rsvp.ResponseYes)), rooms, perRoom)
	if err != nil {
		return nil, err
	}

	id, err := p.Store.Create(data.Context(), data.GuildID, ev.ID, data.Fields["name"], layout, data.AuthorID)
	if err != nil {
		return nil, err
	}

	data.Logger().WithField("event", ev.ID).WithField("roster", id).Info("created roster")

	r, err := p.Store.Get(data.Context(), data.GuildID, id)
	if err != nil {
		return nil, err
	}
	return RosterEmbed(r, ev), nil
}

// Candidates turns the responses into roster candidates, order is kept
func Candidates(rsvps []*rsvp.RSVP) []*Candidate {
	result := make([]*Candidate, 0, len(rsvps))
	for _, v := range rsvps {
		result = append(result, &Candidate{Username: rsvp.DisplayName(v), UserID: v.UserID})
	}
	return result
}

func (p *Plugin) cmdView(data *commands.Data) (interface{}, error) {
	r, err := p.Store.Get(data.Context(), data.GuildID, data.Int("id"))
	if err != nil {
		return nil, err
	}

	// the event may have been deleted since
	ev, err := p.Events.Get(data.Context(), data.GuildID, r.EventID)
	if err != nil && !common.IsNotFound(err) {
		return nil, err
	}

	return RosterEmbed(r, ev), nil
}

func (p *Plugin) cmdList(data *commands.Data) (interface{}, error) {
	ev, err := p.Events.Get(data.Context(), data.GuildID, data.Int("event"))
	if err != nil {
		return nil, err
	}

	rosters, err := p.Store.ListForEvent(data.Context(), data.GuildID, ev.ID)
	if err != nil {
		return nil, err
	}

	if len(rosters) == 0 {
		return fmt.Sprintf("**%s** has no rosters yet.", ev.Name), nil
	}

	var b strings.Builder
	for _, v := range rosters {
		b.WriteString(fmt.Sprintf("`#%d` **%s**: %d rooms of %d, %s\n", v.ID, v.Name, v.RoomCount, v.PerRoom, common.DiscordTimestamp(v.CreatedAt, "R")))
	}

	return &discordgo.MessageEmbed{
		Title:       "Rosters for " + ev.Name,
		Description: b.String(),
		Color:       bot.EmbedColor,
	}, nil
}

// RosterEmbed renders a roster with a field per room, ev is optional
func RosterEmbed(r *Roster, ev *events.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "📋 " + r.Name,
		Color: bot.EmbedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Roster ID: %d • %d rooms • %d members each", r.ID, len(r.Layout.Rooms), r.Layout.MembersPerRoom),
		},
	}

	if ev != nil {
		embed.Description = "Event: **" + ev.Name + "** " + common.DiscordTimestamp(ev.StartsAt, "f")
	}

	for _, room := range r.Layout.Rooms {
		lines := make([]string, 0, len(room.Members))
		for _, m := range room.Members {
			lines = append(lines, "• "+m.Username)
		}

		value := strings.Join(lines, "\n")
		if value == "" {
			value = "Empty"
		}

		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("🏠 Room %d", room.Number),
			Value:  common.CutStringShort(value, 1024),
			Inline: true,
		})
	}

	return embed
}
