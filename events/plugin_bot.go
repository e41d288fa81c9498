package events

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/commands"
	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/guilds"
)

var logger = common.GetPluginLogger(&Plugin{})

const (
	// RSVPButtonPrefix is handled by the rsvp plugin, buttons are "rsvp:<guild>:<event>:<response>" so they also
	// work when sent in direct messages
	RSVPButtonPrefix = "rsvp"

	RSVPYes   = "Yes"
	RSVPNo    = "No"
	RSVPMaybe = "Maybe"

	prefixCreateModal = "event_create"
	prefixEditModal   = "event_edit"
	prefixCalendar    = "calendar"
)

// RSVPCounter provides the response counts shown on event messages
type RSVPCounter interface {
	CountsForEvent(ctx context.Context, guildID, eventID int64) (*RSVPCounts, error)
}

type Plugin struct {
	Store  *Store
	Guilds *guilds.Store
	RSVPs  RSVPCounter
}

func NewPlugin(store *Store, guildStore *guilds.Store, rsvps RSVPCounter) *Plugin {
	return &Plugin{
		Store:  store,
		Guilds: guildStore,
		RSVPs:  rsvps,
	}
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Events",
		SysName:  "events",
		Category: common.PluginCategoryEvents,
	}
}

func (p *Plugin) DBSchemas() []string {
	return DBSchemas
}

var _ commands.CommandProvider = (*Plugin)(nil)

func (p *Plugin) AddCommands(system *commands.System) {
	idOpt := func() *discordgo.ApplicationCommandOption {
		return commands.IntOption("id", "Event id", true)
	}

	system.AddCommands(&commands.Command{
		Name:        "event",
		Description: "Clan events",
		SubCommands: []*commands.SubCommand{
			{
				Name:        "create",
				Description: "Schedule a new event",
				OfficerOnly: true,
				RunFunc:     p.cmdCreate,
			},
			{
				Name:        "list",
				Description: "Lists upcoming events",
				Options: []*discordgo.ApplicationCommandOption{
					commands.IntOption("days", fmt.Sprintf("How many days ahead to look, default %d", DefaultListDays), false),
				},
				RunFunc: p.cmdList,
			},
			{
				Name:        "view",
				Description: "Shows an event",
				Options:     []*discordgo.ApplicationCommandOption{idOpt()},
				RunFunc:     p.cmdView,
			},
			{
				Name:        "edit",
				Description: "Edit or reschedule an event",
				OfficerOnly: true,
				Options:     []*discordgo.ApplicationCommandOption{idOpt()},
				RunFunc:     p.cmdEdit,
			},
			{
				Name:        "delete",
				Description: "Cancels an event",
				OfficerOnly: true,
				Options:     []*discordgo.ApplicationCommandOption{idOpt()},
				RunFunc:     p.cmdDelete,
			},
		},
	}, &commands.Command{
		Name:        "calendar",
		Description: "Shows the event calendar for a month",
		Options: []*discordgo.ApplicationCommandOption{
			commands.StringOption("month", "Month to show as YYYY-MM, the current one if left empty", false),
		},
		RunFunc: p.cmdCalendar,
	})

	system.AddModalHandlers(
		&commands.ComponentHandler{Prefix: prefixCreateModal, OfficerOnly: true, RunFunc: p.handleCreateSubmit},
		&commands.ComponentHandler{Prefix: prefixEditModal, OfficerOnly: true, RunFunc: p.handleEditSubmit},
	)

	system.AddComponentHandlers(
		&commands.ComponentHandler{Prefix: prefixCalendar, RunFunc: p.handleCalendarPage},
	)
}

func eventInputs(loc *time.Location, now time.Time, ev *Event) []discordgo.TextInput {
	inputs := []discordgo.TextInput{
		{
			CustomID:  "name",
			Label:     "Name",
			Style:     discordgo.TextInputShort,
			Required:  true,
			MaxLength: MaxNameLength,
		},
		{
			CustomID:  "description",
			Label:     "Description",
			Style:     discordgo.TextInputParagraph,
			MaxLength: MaxDescriptionLength,
		},
		{
			CustomID:    "when",
			Label:       fmt.Sprintf("Date (YYYY-MM-DD HH:MM, %s)", common.CutStringShort(loc.String(), 15)),
			Style:       discordgo.TextInputShort,
			Required:    true,
			Placeholder: now.In(loc).Add(24 * time.Hour).Format(DateLayout),
			MaxLength:   50,
		},
	}

	if ev != nil {
		inputs[0].Value = ev.Name
		inputs[1].Value = ev.Description.String
		inputs[2].Value = ev.StartsAt.In(loc).Format(DateLayout)
	}

	return inputs
}

func (p *Plugin) cmdCreate(data *commands.Data) (interface{}, error) {
	loc, err := p.Guilds.Location(data.Context(), data.GuildID)
	if err != nil {
		return nil, err
	}

	return bot.Modal(prefixCreateModal, "New event", eventInputs(loc, p.Store.Now(), nil)...), nil
}

func (p *Plugin) handleCreateSubmit(data *commands.Data) (interface{}, error) {
	loc, err := p.Guilds.Location(data.Context(), data.GuildID)
	if err != nil {
		return nil, err
	}

	startsAt, err := ParseWhen(data.Fields["when"], loc, p.Store.Now())
	if err != nil {
		return nil, err
	}

	id, err := p.Store.Create(data.Context(), data.GuildID, data.Fields["name"], data.Fields["description"], startsAt, data.AuthorID)
	if err != nil {
		return nil, err
	}

	data.Logger().WithField("event", id).Info("created event")
	return p.eventResponse(data.Context(), data.GuildID, id)
}

func (p *Plugin) eventResponse(ctx context.Context, guildID, id int64) (*commands.Response, error) {
	ev, err := p.Store.Get(ctx, guildID, id)
	if err != nil {
		return nil, err
	}

	var counts *RSVPCounts
	if p.RSVPs != nil {
		counts, err = p.RSVPs.CountsForEvent(ctx, guildID, id)
		if err != nil {
			return nil, err
		}
	}

	return &commands.Response{
		Embeds:     []*discordgo.MessageEmbed{EventEmbed(ev, counts)},
		Components: RSVPComponents(ev),
	}, nil
}

// EventEmbed renders an event, counts is optional
func EventEmbed(ev *Event, counts *RSVPCounts) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Name,
		Description: ev.Description.String,
		Color:       bot.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "When",
				Value:  common.DiscordTimestamp(ev.StartsAt, "F") + " (" + common.DiscordTimestamp(ev.StartsAt, "R") + ")",
				Inline: true,
			},
			{
				Name:   "Created by",
				Value:  bot.MentionUser(ev.CreatedBy),
				Inline: true,
			},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Event ID: " + strconv.FormatInt(ev.ID, 10)},
		Timestamp: ev.StartsAt.UTC().Format(time.RFC3339),
	}

	if counts != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Responses",
			Value: fmt.Sprintf("✅ %d going, ❓ %d maybe, ❌ %d not going", counts.Yes, counts.Maybe, counts.No),
		})
	}

	return embed
}

// RSVPComponents are the response buttons attached to event messages
func RSVPComponents(ev *Event) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Going",
				Style:    discordgo.SuccessButton,
				CustomID: bot.CustomID(RSVPButtonPrefix, ev.GuildID, ev.ID, RSVPYes),
			},
			discordgo.Button{
				Label:    "Maybe",
				Style:    discordgo.SecondaryButton,
				CustomID: bot.CustomID(RSVPButtonPrefix, ev.GuildID, ev.ID, RSVPMaybe),
			},
			discordgo.Button{
				Label:    "Not going",
				Style:    discordgo.DangerButton,
				CustomID: bot.CustomID(RSVPButtonPrefix, ev.GuildID, ev.ID, RSVPNo),
			},
		}},
	}
}

func (p *Plugin) cmdList(data *commands.Data) (interface{}, error) {
	days := DefaultListDays
	if data.Has("days") {
		days = int(data.Int("days"))
	}

	evs, err := p.Store.ListUpcoming(data.Context(), data.GuildID, days)
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Upcoming events (next %d days)", days),
		Color: bot.EmbedColor,
	}

	if len(evs) == 0 {
		embed.Description = "No events scheduled."
		return embed, nil
	}

	var b strings.Builder
	for _, ev := range evs {
		line := fmt.Sprintf("`#%d` **%s** %s (%s)\n", ev.ID, ev.Name, common.DiscordTimestamp(ev.StartsAt, "f"), common.DiscordTimestamp(ev.StartsAt, "R"))
		if b.Len()+len(line) > 4000 {
			b.WriteString("...")
			break
		}
		b.WriteString(line)
	}
	embed.Description = b.String()

	return embed, nil
}

func (p *Plugin) cmdView(data *commands.Data) (interface{}, error) {
	return p.eventResponse(data.Context(), data.GuildID, data.Int("id"))
}

func (p *Plugin) cmdEdit(data *commands.Data) (interface{}, error) {
	ev, err := p.Store.Get(data.Context(), data.GuildID, data.Int("id"))
	if err != nil {
		return nil, err
	}

	loc, err := p.Guilds.Location(data.Context(), data.GuildID)
	if err != nil {
		return nil, err
	}

	return bot.Modal(bot.CustomID(prefixEditModal, ev.ID), "Edit event", eventInputs(loc, p.Store.Now(), ev)...), nil
}

func (p *Plugin) handleEditSubmit(data *commands.Data) (interface{}, error) {
	id, err := data.CustomID.Int64(0)
	if err != nil {
		return nil, err
	}

	ev, err := p.Store.Get(data.Context(), data.GuildID, id)
	if err != nil {
		return nil, err
	}

	loc, err := p.Guilds.Location(data.Context(), data.GuildID)
	if err != nil {
		return nil, err
	}

	name := data.Fields["name"]
	desc := data.Fields["description"]
	update := EventUpdate{Name: &name, Description: &desc}

	// an unchanged date is kept even if it's already in the past
	when := strings.TrimSpace(data.Fields["when"])
	if when != ev.StartsAt.In(loc).Format(DateLayout) {
		startsAt, err := ParseWhen(when, loc, p.Store.Now())
		if err != nil {
			return nil, err
		}
		update.StartsAt = &startsAt
	}

	_, err = p.Store.Update(data.Context(), data.GuildID, id, update)
	if err != nil {
		return nil, err
	}

	resp, err := p.eventResponse(data.Context(), data.GuildID, id)
	if err != nil {
		return nil, err
	}
	resp.Content = "Event updated."
	return resp, nil
}

func (p *Plugin) cmdDelete(data *commands.Data) (interface{}, error) {
	id := data.Int("id")
	ev, err := p.Store.Get(data.Context(), data.GuildID, id)
	if err != nil {
		return nil, err
	}

	if err := p.Store.Deactivate(data.Context(), data.GuildID, id); err != nil {
		return nil, err
	}

	data.Logger().WithField("event", id).Info("deleted event")
	return fmt.Sprintf("Cancelled **%s** (#%d).", ev.Name, ev.ID), nil
}

func (p *Plugin) cmdCalendar(data *commands.Data) (interface{}, error) {
	loc, err := p.Guilds.Location(data.Context(), data.GuildID)
	if err != nil {
		return nil, err
	}

	now := p.Store.Now().In(loc)
	year, month := now.Year(), now.Month()
	if data.Has("month") {
		t, err := time.Parse("2006-01", strings.TrimSpace(data.Str("month")))
		if err != nil {
			return nil, common.NewValidationError("month", "use the format YYYY-MM, for example "+now.Format("2006-01"))
		}
		year, month = t.Year(), t.Month()
	}

	return p.calendarResponse(data.Context(), data.GuildID, year, month, loc, false)
}

func (p *Plugin) handleCalendarPage(data *commands.Data) (interface{}, error) {
	year, err := strconv.Atoi(data.CustomID.Arg(0))
	if err != nil {
		return nil, common.NewValidationError("year", "invalid year")
	}
	month, err := strconv.Atoi(data.CustomID.Arg(1))
	if err != nil || month < 1 || month > 12 {
		return nil, common.NewValidationError("month", "invalid month")
	}

	loc, err := p.Guilds.Location(data.Context(), data.GuildID)
	if err != nil {
		return nil, err
	}

	return p.calendarResponse(data.Context(), data.GuildID, year, time.Month(month), loc, true)
}

func (p *Plugin) calendarResponse(ctx context.Context, guildID int64, year int, month time.Month, loc *time.Location, update bool) (*commands.Response, error) {
	start, end := MonthBounds(year, month, loc)
	evs, err := p.Store.ListRange(ctx, guildID, start, end)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("```\n")
	b.WriteString(RenderMonth(year, month, loc, evs))
	b.WriteString("\n```\n")

	if len(evs) == 0 {
		b.WriteString("No events this month.")
	}
	for i, ev := range evs {
		if i >= 20 {
			b.WriteString(fmt.Sprintf("... and %d more", len(evs)-i))
			break
		}
		b.WriteString(fmt.Sprintf("`#%d` %s **%s**\n", ev.ID, common.DiscordTimestamp(ev.StartsAt, "f"), ev.Name))
	}

	prev := start.AddDate(0, -1, 0)
	next := end

	return &commands.Response{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Event calendar",
			Description: b.String(),
			Color:       bot.EmbedColor,
			Footer:      &discordgo.MessageEmbedFooter{Text: "Times in the grid are in " + loc.String()},
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "◀ " + prev.Month().String(),
					Style:    discordgo.SecondaryButton,
					CustomID: bot.CustomID(prefixCalendar, prev.Year(), int(prev.Month())),
				},
				discordgo.Button{
					Label:    next.Month().String() + " ▶",
					Style:    discordgo.SecondaryButton,
					CustomID: bot.CustomID(prefixCalendar, next.Year(), int(next.Month())),
				},
			}},
		},
		Update: update,
	}, nil
}
