package attendance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/commands"
	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/events"
	"github.com/clanbot/clanbot/members"
	"github.com/clanbot/clanbot/rsvp"
	"github.com/clanbot/clanbot/sessions"
)

var logger = common.GetPluginLogger(&Plugin{})

const (
	prefixSelect  = "att_sel"
	prefixConfirm = "att_ok"
	prefixPage    = "att_page"

	sessionKind = "attendance"

	maxSelectOptions = 25
)

type Plugin struct {
	Marker   *Marker
	Sessions sessions.Store
}

func NewPlugin(marker *Marker, sessionStore sessions.Store) *Plugin {
	return &Plugin{
		Marker:   marker,
		Sessions: sessionStore,
	}
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Attendance",
		SysName:  "attendance",
		Category: common.PluginCategoryEvents,
	}
}

func (p *Plugin) DBSchemas() []string {
	return DBSchemas
}

var (
	_ commands.CommandProvider     = (*Plugin)(nil)
	_ members.AttendanceSummarizer = (*Marker)(nil)
)

func (p *Plugin) AddCommands(system *commands.System) {
	system.AddCommands(&commands.Command{
		Name:        "attendance",
		Description: "Event attendance",
		SubCommands: []*commands.SubCommand{
			{
				Name:        "mark",
				Description: "Marks who attended an event",
				OfficerOnly: true,
				Options: []*discordgo.ApplicationCommandOption{
					commands.IntOption("id", "Event id", true),
				},
				RunFunc: p.cmdMark,
			},
			{
				Name:        "view",
				Description: "Shows the attendance record of a member",
				Options: []*discordgo.ApplicationCommandOption{
					commands.UserOption("user", "Member to show, defaults to you", false),
				},
				RunFunc: p.cmdView,
			},
			{
				Name:        "event",
				Description: "Shows who attended an event",
				Options: []*discordgo.ApplicationCommandOption{
					commands.IntOption("id", "Event id", true),
				},
				RunFunc: p.cmdEvent,
			},
		},
	})

	system.AddComponentHandlers(
		&commands.ComponentHandler{Prefix: prefixSelect, OfficerOnly: true, RunFunc: p.handleSelect},
		&commands.ComponentHandler{Prefix: prefixConfirm, OfficerOnly: true, RunFunc: p.handleConfirm},
		&commands.ComponentHandler{Prefix: prefixPage, OfficerOnly: true, RunFunc: p.handlePage},
	)
}

// cmdMark starts the marking flow, everyone that responded Yes is preselected
func (p *Plugin) cmdMark(data *commands.Data) (interface{}, error) {
	ev, err := p.Marker.Events.Get(data.Context(), data.GuildID, data.Int("id"))
	if err != nil {
		return nil, err
	}

	rsvps, err := p.Marker.RSVPs.ListForEvent(data.Context(), data.GuildID, ev.ID)
	if err != nil {
		return nil, err
	}

	if len(rsvps) == 0 {
		return fmt.Sprintf("No one has responded to **%s**, there is nobody to mark.", ev.Name), nil
	}

	sess := sessions.New(sessionKind, data.GuildID, data.AuthorID)
	sess.SetInt("event", ev.ID)
	sess.IDs = rsvp.UserIDs(rsvp.Filter(rsvps, rsvp.ResponseYes))
	if err := p.Sessions.Put(data.Context(), sess); err != nil {
		return nil, err
	}

	return markResponse(ev, rsvps, sess, false), nil
}

// menuPage returns the responders shown on page, the page is clamped to the valid range
func menuPage(rsvps []*rsvp.RSVP, page int) ([]*rsvp.RSVP, int, int) {
	pages := (len(rsvps) + maxSelectOptions - 1) / maxSelectOptions
	if pages < 1 {
		pages = 1
	}
	if page >= pages {
		page = pages - 1
	}
	if page < 0 {
		page = 0
	}

	start := page * maxSelectOptions
	end := start + maxSelectOptions
	if end > len(rsvps) {
		end = len(rsvps)
	}
	return rsvps[start:end], page, pages
}

func markResponse(ev *events.Event, rsvps []*rsvp.RSVP, sess *sessions.Session, update bool) *commands.Response {
	visible, page, pages := menuPage(rsvps, int(sess.Int("page")))

	options := make([]discordgo.SelectMenuOption, 0, len(visible))
	for _, v := range visible {
		options = append(options, discordgo.SelectMenuOption{
			Label:       common.CutStringShort(rsvp.DisplayName(v), 100),
			Value:       strconv.FormatInt(v.UserID, 10),
			Description: "Responded " + string(v.Response),
			Default:     common.ContainsInt64Slice(sess.IDs, v.UserID),
		})
	}

	content := fmt.Sprintf("Select who attended **%s**, then press confirm.\n%d of %d selected.", ev.Name, len(sess.IDs), len(rsvps))
	if pages > 1 {
		content += fmt.Sprintf("\nPage %d of %d, selections on other pages are kept.", page+1, pages)
	}

	buttons := []discordgo.MessageComponent{}
	if pages > 1 {
		buttons = append(buttons,
			discordgo.Button{
				Label:    "Previous",
				Style:    discordgo.SecondaryButton,
				CustomID: bot.CustomID(prefixPage, sess.ID, page-1),
				Disabled: page == 0,
			},
			discordgo.Button{
				Label:    "Next",
				Style:    discordgo.SecondaryButton,
				CustomID: bot.CustomID(prefixPage, sess.ID, page+1),
				Disabled: page == pages-1,
			})
	}
	buttons = append(buttons, discordgo.Button{
		Label:    "Confirm",
		Style:    discordgo.SuccessButton,
		CustomID: bot.CustomID(prefixConfirm, sess.ID),
	})

	minValues := 0
	return &commands.Response{
		Content:   content,
		Ephemeral: true,
		Update:    update,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    bot.CustomID(prefixSelect, sess.ID),
					Placeholder: "Attendees",
					MinValues:   &minValues,
					MaxValues:   len(options),
					Options:     options,
				},
			}},
			discordgo.ActionsRow{Components: buttons},
		},
	}
}

// loadMarkFlow loads the session of a marking flow along with the event and its current responders
func (p *Plugin) loadMarkFlow(data *commands.Data) (*sessions.Session, *events.Event, []*rsvp.RSVP, error) {
	sess, err := sessions.Load(data.Context(), p.Sessions, data.CustomID.Arg(0), sessionKind, data.AuthorID)
	if err != nil {
		return nil, nil, nil, err
	}

	ev, err := p.Marker.Events.Get(data.Context(), data.GuildID, sess.Int("event"))
	if err != nil {
		return nil, nil, nil, err
	}

	rsvps, err := p.Marker.RSVPs.ListForEvent(data.Context(), data.GuildID, ev.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	return sess, ev, rsvps, nil
}

// handleSelect replaces the selection of the visible page, users on other pages keep their state
func (p *Plugin) handleSelect(data *commands.Data) (interface{}, error) {
	sess, ev, rsvps, err := p.loadMarkFlow(data)
	if err != nil {
		return nil, err
	}

	visible, _, _ := menuPage(rsvps, int(sess.Int("page")))
	visibleIDs := rsvp.UserIDs(visible)

	selected := make([]int64, 0, len(sess.IDs))
	for _, id := range sess.IDs {
		if !common.ContainsInt64Slice(visibleIDs, id) {
			selected = append(selected, id)
		}
	}
	for _, id := range data.ValueIDs() {
		if common.ContainsInt64Slice(visibleIDs, id) && !common.ContainsInt64Slice(selected, id) {
			selected = append(selected, id)
		}
	}

	sess.IDs = selected
	if err := p.Sessions.Put(data.Context(), sess); err != nil {
		return nil, err
	}

	return markResponse(ev, rsvps, sess, true), nil
}

func (p *Plugin) handlePage(data *commands.Data) (interface{}, error) {
	sess, ev, rsvps, err := p.loadMarkFlow(data)
	if err != nil {
		return nil, err
	}

	page, err := data.CustomID.Int64(1)
	if err != nil {
		return nil, err
	}

	_, clamped, _ := menuPage(rsvps, int(page))
	sess.SetInt("page", int64(clamped))
	if err := p.Sessions.Put(data.Context(), sess); err != nil {
		return nil, err
	}

	return markResponse(ev, rsvps, sess, true), nil
}

func (p *Plugin) handleConfirm(data *commands.Data) (interface{}, error) {
	sess, err := sessions.Load(data.Context(), p.Sessions, data.CustomID.Arg(0), sessionKind, data.AuthorID)
	if err != nil {
		return nil, err
	}

	eventID := sess.Int("event")
	result, err := p.Marker.Mark(data.Context(), data.GuildID, eventID, sess.IDs, data.AuthorID)
	if err != nil {
		return nil, err
	}

	if err := p.Sessions.Delete(data.Context(), sess.ID); err != nil {
		logger.WithError(err).WithField("guild", data.GuildID).Error("failed deleting session")
	}

	data.Logger().WithField("event", eventID).Infof("marked attendance, %d attended, %d absent", result.Attended, result.Absent)

	content := fmt.Sprintf("Attendance saved: %d attended, %d absent.", result.Attended, result.Absent)
	if len(result.Ignored) > 0 {
		content += fmt.Sprintf("\nIgnored %d user(s) that never responded to the event.", len(result.Ignored))
	}
	return &commands.Response{Content: content, Update: true}, nil
}

func (p *Plugin) cmdView(data *commands.Data) (interface{}, error) {
	userID := data.AuthorID
	name := data.DisplayName()
	if data.Has("user") {
		user, member := data.ResolvedMember("user")
		if user != nil {
			userID = bot.MustParseID(user.ID)
			name = commands.MemberDisplayName(user, member)
		}
	}

	stats, err := p.Marker.Stats(data.Context(), data.GuildID, userID)
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title: "Attendance of " + name,
		Color: bot.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Attended", Value: strconv.Itoa(stats.Attended), Inline: true},
			{Name: "Marked events", Value: strconv.Itoa(stats.Total), Inline: true},
			{Name: "Rate", Value: fmt.Sprintf("%.1f%%", stats.Percentage()), Inline: true},
		},
	}

	recent, err := p.Marker.Recent(data.Context(), data.GuildID, userID, RecentLimit)
	if err != nil {
		return nil, err
	}

	if len(recent) > 0 {
		lines := make([]string, 0, len(recent))
		for _, v := range recent {
			mark := "❌"
			if v.Attended {
				mark = "✅"
			}
			lines = append(lines, fmt.Sprintf("%s **%s** %s", mark, v.EventName, common.DiscordTimestamp(v.StartsAt, "d")))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Recent events", Value: strings.Join(lines, "\n")})
	}

	return embed, nil
}

func (p *Plugin) cmdEvent(data *commands.Data) (interface{}, error) {
	ev, err := p.Marker.Events.Get(data.Context(), data.GuildID, data.Int("id"))
	if err != nil {
		return nil, err
	}

	attended, absent, err := p.Marker.ForEvent(data.Context(), data.GuildID, ev.ID)
	if err != nil {
		return nil, err
	}

	if len(attended)+len(absent) == 0 {
		return fmt.Sprintf("Attendance for **%s** has not been marked yet.", ev.Name), nil
	}

	return &discordgo.MessageEmbed{
		Title: "Attendance for " + ev.Name,
		Color: bot.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			mentionField("✅ Attended", attended),
			mentionField("❌ Absent", absent),
		},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Event ID: %d", ev.ID)},
	}, nil
}

func mentionField(name string, userIDs []int64) *discordgo.MessageEmbedField {
	field := &discordgo.MessageEmbedField{Name: fmt.Sprintf("%s (%d)", name, len(userIDs)), Inline: true}

	var b strings.Builder
	for i, v := range userIDs {
		line := bot.MentionUser(v) + "\n"
		if b.Len()+len(line) > 990 {
			b.WriteString(fmt.Sprintf("+ %d more", len(userIDs)-i))
			break
		}
		b.WriteString(line)
	}

	if b.Len() == 0 {
		b.WriteString("None")
	}
	field.Value = b.String()
	return field
}
