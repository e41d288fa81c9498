package members

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/commands"
	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/sessions"
	"github.com/jedib0t/go-pretty/table"
)

var logger = common.GetPluginLogger(&Plugin{})

const (
	prefixProfileEdit    = "profile_edit"
	prefixProfileStats   = "profile_stats"
	prefixProfileBG      = "profile_bg"
	prefixLeaderboard    = "clan_lb"
	prefixLeaderboardSel = "clan_lbstat"
	prefixMemberSelect   = "clan_members"
	prefixStatusSelect   = "clan_status"

	sessionKindPromote     = "promote"
	sessionKindDemote      = "demote"
	sessionKindRequestEdit = "requestedit"

	// most options a select menu can hold
	maxSelectOptions = 25
	manifestGroupMax = 15
)

// AttendanceSummarizer renders a member's attendance record for their profile
type AttendanceSummarizer interface {
	AttendanceSummary(ctx context.Context, guildID, userID int64) (string, error)
}

type Plugin struct {
	Store      *Store
	Sessions   sessions.Store
	DMs        *bot.DMSender
	Attendance AttendanceSummarizer
}

func NewPlugin(store *Store, sessionStore sessions.Store, dms *bot.DMSender, attendance AttendanceSummarizer) *Plugin {
	return &Plugin{
		Store:      store,
		Sessions:   sessionStore,
		DMs:        dms,
		Attendance: attendance,
	}
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Members",
		SysName:  "members",
		Category: common.PluginCategoryMembers,
	}
}

func (p *Plugin) DBSchemas() []string {
	return DBSchemas
}

var _ commands.CommandProvider = (*Plugin)(nil)

func (p *Plugin) AddCommands(system *commands.System) {
	statChoices := make([]string, 0)
	for _, v := range NumericStats() {
		statChoices = append(statChoices, v.Key)
	}

	system.AddCommands(&commands.Command{
		Name:        "profile",
		Description: "Shows a clan member's profile",
		Options: []*discordgo.ApplicationCommandOption{
			commands.UserOption("user", "Whose profile to show, yours if left empty", false),
		},
		RunFunc: p.cmdProfile,
	}, &commands.Command{
		Name:        "clan",
		Description: "Clan member management",
		SubCommands: []*commands.SubCommand{
			{
				Name:        "manifest",
				Description: "Lists the clan's members",
				Options: []*discordgo.ApplicationCommandOption{
					commands.ChoiceOption("filter", "Which members to list", false, FilterChoices...),
				},
				RunFunc: p.cmdManifest,
			},
			{
				Name:        "leaderboard",
				Description: "Ranks current members by a stat",
				Options: []*discordgo.ApplicationCommandOption{
					commands.ChoiceOption("stat", "Stat to rank by", true, statChoices...),
				},
				RunFunc: p.cmdLeaderboard,
			},
			{
				Name:        "promote",
				Description: "Change the status of members",
				OfficerOnly: true,
				RunFunc:     p.memberSelectCmd(sessionKindPromote),
			},
			{
				Name:        "demote",
				Description: "Demote officers back to members",
				OfficerOnly: true,
				RunFunc:     p.memberSelectCmd(sessionKindDemote),
			},
			{
				Name:        "requestedit",
				Description: "Ask members to update their profile stats",
				OfficerOnly: true,
				RunFunc:     p.memberSelectCmd(sessionKindRequestEdit),
			},
		},
	})

	system.AddComponentHandlers(
		&commands.ComponentHandler{Prefix: prefixProfileEdit, RunFunc: p.handleProfileEdit},
		&commands.ComponentHandler{Prefix: prefixProfileBG, RunFunc: p.handleBackground},
		&commands.ComponentHandler{Prefix: prefixLeaderboard, RunFunc: p.handleLeaderboardPage},
		&commands.ComponentHandler{Prefix: prefixLeaderboardSel, RunFunc: p.handleLeaderboardStat},
		&commands.ComponentHandler{Prefix: prefixMemberSelect, OfficerOnly: true, RunFunc: p.handleMemberSelect, Deferred: true},
		&commands.ComponentHandler{Prefix: prefixStatusSelect, OfficerOnly: true, RunFunc: p.handleStatusSelect},
	)

	system.AddModalHandlers(
		&commands.ComponentHandler{Prefix: prefixProfileStats, RunFunc: p.handleStatsSubmit},
	)
}

func (p *Plugin) cmdProfile(data *commands.Data) (interface{}, error) {
	userID := data.AuthorID
	name := data.DisplayName()
	if data.Has("user") {
		user, member := data.ResolvedMember("user")
		if user == nil {
			return nil, common.NewNotFound("user", data.Str("user"))
		}
		if user.Bot {
			return "Bots don't have clan profiles.", nil
		}

		userID = bot.MustParseID(user.ID)
		name = commands.MemberDisplayName(user, member)
	}

	m, err := p.Store.EnsureMember(data.Context(), data.GuildID, userID, name)
	if err != nil {
		return nil, err
	}

	embed, err := p.profileEmbed(data.Context(), m)
	if err != nil {
		return nil, err
	}

	resp := &commands.Response{Embeds: []*discordgo.MessageEmbed{embed}}
	if userID == data.AuthorID || data.IsOfficer {
		resp.Components = profileComponents(m)
	}
	return resp, nil
}

func (p *Plugin) profileEmbed(ctx context.Context, m *Member) (*discordgo.MessageEmbed, error) {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %s", m.Status.Emoji(), m.DisplayName),
		Description: fmt.Sprintf("**Status:** %s\n**Member since:** %s", m.Status, common.DiscordTimestamp(m.JoinedAt, "D")),
		Color:       bot.EmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Background: " + BackgroundLabel(m.Background)},
	}

	for _, cat := range StatCategories {
		lines := make([]string, 0, len(cat.Stats))
		for _, stat := range cat.Stats {
			v := m.StatDisplay(stat.Key)
			if v == "" {
				v = "-"
			}
			lines = append(lines, fmt.Sprintf("**%s:** %s", stat.Label, v))
		}

		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   cat.Name,
			Value:  strings.Join(lines, "\n"),
			Inline: true,
		})
	}

	if p.Attendance != nil {
		summary, err := p.Attendance.AttendanceSummary(ctx, m.GuildID, m.UserID)
		if err != nil {
			return nil, err
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Attendance", Value: summary})
	}

	return embed, nil
}

func profileComponents(m *Member) []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, len(StatCategories))
	for _, cat := range StatCategories {
		buttons = append(buttons, discordgo.Button{
			Label:    "Edit " + cat.Name,
			Style:    discordgo.SecondaryButton,
			CustomID: bot.CustomID(prefixProfileEdit, m.UserID, cat.Key),
		})
	}

	options := make([]discordgo.SelectMenuOption, 0, len(Backgrounds))
	for _, v := range Backgrounds {
		options = append(options, discordgo.SelectMenuOption{
			Label:   BackgroundLabel(v),
			Value:   v,
			Default: v == m.Background,
		})
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    bot.CustomID(prefixProfileBG, m.UserID),
				Placeholder: "Profile background",
				Options:     options,
			},
		}},
	}
}

// profileTarget returns the user a profile component acts on, only the owner and officers may edit a profile
func profileTarget(data *commands.Data) (int64, error) {
	userID, err := data.CustomID.Int64(0)
	if err != nil {
		return 0, err
	}

	if userID != data.AuthorID && !data.IsOfficer {
		return 0, common.NewOfficerOnlyError("edit someone else's profile")
	}
	return userID, nil
}

func (p *Plugin) handleProfileEdit(data *commands.Data) (interface{}, error) {
	userID, err := profileTarget(data)
	if err != nil {
		return nil, err
	}

	cat := FindCategory(data.CustomID.Arg(1))
	if cat == nil {
		return nil, common.NewNotFound("stat category", data.CustomID.Arg(1))
	}

	m, err := p.Store.Get(data.Context(), data.GuildID, userID)
	if err != nil {
		return nil, err
	}

	inputs := make([]discordgo.TextInput, 0, len(cat.Stats))
	for _, stat := range cat.Stats {
		input := discordgo.TextInput{
			CustomID:  stat.Key,
			Label:     stat.Label,
			Style:     discordgo.TextInputShort,
			Value:     m.StatDisplay(stat.Key),
			MaxLength: 100,
		}
		if stat.Numeric {
			input.Placeholder = "1,250,000"
			input.MaxLength = 20
		}
		inputs = append(inputs, input)
	}

	return bot.Modal(bot.CustomID(prefixProfileStats, userID, cat.Key), "Edit "+cat.Name, inputs...), nil
}

func (p *Plugin) handleStatsSubmit(data *commands.Data) (interface{}, error) {
	userID, err := profileTarget(data)
	if err != nil {
		return nil, err
	}

	err = p.Store.UpdateStats(data.Context(), data.GuildID, userID, data.CustomID.Arg(1), data.Fields)
	if err != nil {
		return nil, err
	}

	m, err := p.Store.Get(data.Context(), data.GuildID, userID)
	if err != nil {
		return nil, err
	}

	embed, err := p.profileEmbed(data.Context(), m)
	if err != nil {
		return nil, err
	}

	return &commands.Response{
		Content:   "Profile updated.",
		Embeds:    []*discordgo.MessageEmbed{embed},
		Ephemeral: true,
	}, nil
}

func (p *Plugin) handleBackground(data *commands.Data) (interface{}, error) {
	userID, err := profileTarget(data)
	if err != nil {
		return nil, err
	}

	if len(data.Values) < 1 {
		return nil, common.NewValidationError("background", "nothing selected")
	}

	err = p.Store.SetBackground(data.Context(), data.GuildID, userID, data.Values[0])
	if err != nil {
		return nil, err
	}

	m, err := p.Store.Get(data.Context(), data.GuildID, userID)
	if err != nil {
		return nil, err
	}

	embed, err := p.profileEmbed(data.Context(), m)
	if err != nil {
		return nil, err
	}

	return &commands.Response{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: profileComponents(m),
		Update:     true,
	}, nil
}

func (p *Plugin) cmdManifest(data *commands.Data) (interface{}, error) {
	filter, err := ParseFilter(data.Str("filter"))
	if err != nil {
		return nil, err
	}

	members, err := p.Store.List(data.Context(), data.GuildID, filter)
	if err != nil {
		return nil, err
	}

	return manifestEmbed(filter, members), nil
}

func manifestEmbed(filter Filter, members []*Member) *discordgo.MessageEmbed {
	title := strings.ToUpper(string(filter[:1])) + string(filter[1:])
	embed := &discordgo.MessageEmbed{
		Title: "Clan Manifest - " + title + " Members",
		Color: bot.EmbedColor,
	}

	if len(members) == 0 {
		embed.Description = fmt.Sprintf("No %s members found.", filter)
		return embed
	}

	current := 0
	groups := make(map[Status][]*Member)
	for _, m := range members {
		groups[m.Status] = append(groups[m.Status], m)
		if m.Status.Current() {
			current++
		}
	}

	embed.Description = fmt.Sprintf("Total: %d members", len(members))
	if filter == FilterAll || filter == FilterCurrent {
		embed.Description += fmt.Sprintf(" (%d/%d current)", current, MaxCurrentMembers)
	}

	for _, status := range Statuses {
		group := groups[status]
		if len(group) == 0 {
			continue
		}

		rows := make([]table.Row, 0, manifestGroupMax)
		for i, m := range group {
			if i >= manifestGroupMax {
				break
			}

			cr := m.StatDisplay("combat_rating")
			if cr == "" {
				cr = "-"
			}
			rows = append(rows, table.Row{common.CutStringShort(m.DisplayName, 20), cr})
		}

		value := bot.CodeTable(table.Row{"Name", "CR"}, rows)
		if len(group) > manifestGroupMax {
			value += fmt.Sprintf("... and %d more", len(group)-manifestGroupMax)
		}

		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%s %s (%d)", status.Emoji(), status, len(group)),
			Value: value,
		})
	}

	return embed
}

func (p *Plugin) cmdLeaderboard(data *commands.Data) (interface{}, error) {
	return p.leaderboardResponse(data.Context(), data.GuildID, data.Str("stat"), 1, false)
}

func (p *Plugin) handleLeaderboardPage(data *commands.Data) (interface{}, error) {
	page, err := strconv.Atoi(data.CustomID.Arg(1))
	if err != nil {
		return nil, errors.WithMessage(err, "leaderboard page")
	}

	return p.leaderboardResponse(data.Context(), data.GuildID, data.CustomID.Arg(0), page, true)
}

func (p *Plugin) handleLeaderboardStat(data *commands.Data) (interface{}, error) {
	if len(data.Values) < 1 {
		return nil, common.NewValidationError("stat", "nothing selected")
	}

	return p.leaderboardResponse(data.Context(), data.GuildID, data.Values[0], 1, true)
}

func (p *Plugin) leaderboardResponse(ctx context.Context, guildID int64, statKey string, page int, update bool) (interface{}, error) {
	lb, err := p.Store.Leaderboard(ctx, guildID, statKey, page)
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title:  "Leaderboard - " + lb.Stat.Label,
		Color:  bot.EmbedColor,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d", lb.Page, lb.Pages)},
	}

	if len(lb.Entries) == 0 {
		embed.Description = "No one has set their " + lb.Stat.Label + " yet."
	} else {
		rows := make([]table.Row, 0, len(lb.Entries))
		for _, v := range lb.Entries {
			rows = append(rows, table.Row{"#" + strconv.Itoa(v.Rank), common.CutStringShort(v.DisplayName, 20), common.FormatInt(v.Value)})
		}
		embed.Description = bot.CodeTable(table.Row{"Rank", "Name", lb.Stat.Label}, rows)
	}

	statOptions := make([]discordgo.SelectMenuOption, 0)
	for _, v := range NumericStats() {
		statOptions = append(statOptions, discordgo.SelectMenuOption{Label: v.Label, Value: v.Key, Default: v.Key == lb.Stat.Key})
	}

	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Previous",
				Style:    discordgo.SecondaryButton,
				CustomID: bot.CustomID(prefixLeaderboard, lb.Stat.Key, lb.Page-1),
				Disabled: lb.Page <= 1,
			},
			discordgo.Button{
				Label:    "Next",
				Style:    discordgo.SecondaryButton,
				CustomID: bot.CustomID(prefixLeaderboard, lb.Stat.Key, lb.Page+1),
				Disabled: lb.Page >= lb.Pages,
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    prefixLeaderboardSel,
				Placeholder: "Rank by",
				Options:     statOptions,
			},
		}},
	}

	return &commands.Response{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
		Update:     update,
	}, nil
}

// memberSelectCmd starts one of the member selection flows, the selection is kept in a session owned by the
// officer who started it
func (p *Plugin) memberSelectCmd(kind string) commands.RunFunc {
	return func(data *commands.Data) (interface{}, error) {
		filter := FilterCurrent
		if kind == sessionKindDemote {
			filter = Filter(StatusOfficer)
		}

		members, err := p.Store.List(data.Context(), data.GuildID, filter)
		if err != nil {
			return nil, err
		}

		if len(members) == 0 {
			if kind == sessionKindDemote {
				return "There are no officers to demote.", nil
			}
			return "There are no current members.", nil
		}

		sess := sessions.New(kind, data.GuildID, data.AuthorID)
		if err := p.Sessions.Put(data.Context(), sess); err != nil {
			return nil, err
		}

		options := make([]discordgo.SelectMenuOption, 0, maxSelectOptions)
		for i, m := range members {
			if i >= maxSelectOptions {
				break
			}
			options = append(options, discordgo.SelectMenuOption{
				Label:       common.CutStringShort(m.DisplayName, 100),
				Value:       strconv.FormatInt(m.UserID, 10),
				Description: "Status: " + string(m.Status),
			})
		}

		minValues := 1
		content := map[string]string{
			sessionKindPromote:     "Select the members whose status you want to change.",
			sessionKindDemote:      "Select the officers to demote to Member.",
			sessionKindRequestEdit: "Select the members to ask for a stats update.",
		}[kind]
		if len(members) > maxSelectOptions {
			content += fmt.Sprintf("\nOnly the first %d members are listed.", maxSelectOptions)
		}

		return &commands.Response{
			Content:   content,
			Ephemeral: true,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						MenuType:    discordgo.StringSelectMenu,
						CustomID:    bot.CustomID(prefixMemberSelect, sess.ID),
						Placeholder: "Members",
						MinValues:   &minValues,
						MaxValues:   len(options),
						Options:     options,
					},
				}},
			},
		}, nil
	}
}

func (p *Plugin) handleMemberSelect(data *commands.Data) (interface{}, error) {
	sess, err := p.Sessions.Get(data.Context(), data.CustomID.Arg(0))
	if err != nil {
		return nil, err
	}

	// the kind decides the next step, so load it again with the owner check
	sess, err = sessions.Load(data.Context(), p.Sessions, sess.ID, sess.Kind, data.AuthorID)
	if err != nil {
		return nil, err
	}

	selected := data.ValueIDs()
	if len(selected) == 0 {
		return nil, common.NewValidationError("members", "nothing selected")
	}

	switch sess.Kind {
	case sessionKindPromote:
		sess.IDs = selected
		if err := p.Sessions.Put(data.Context(), sess); err != nil {
			return nil, err
		}

		options := make([]discordgo.SelectMenuOption, 0, len(Statuses))
		for _, v := range Statuses {
			options = append(options, discordgo.SelectMenuOption{Label: v.Emoji() + " " + string(v), Value: string(v)})
		}

		return &commands.Response{
			Content: fmt.Sprintf("Choose the new status for %d member(s).", len(selected)),
			Update:  true,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						MenuType:    discordgo.StringSelectMenu,
						CustomID:    bot.CustomID(prefixStatusSelect, sess.ID),
						Placeholder: "New status",
						Options:     options,
					},
				}},
			},
		}, nil
	case sessionKindDemote:
		p.deleteSession(data, sess.ID)
		n, err := p.Store.SetStatus(data.Context(), data.GuildID, selected, StatusMember)
		if err != nil {
			return nil, err
		}
		return &commands.Response{Content: fmt.Sprintf("Demoted %d member(s) to Member.", n), Update: true}, nil
	case sessionKindRequestEdit:
		p.deleteSession(data, sess.ID)
		report := p.DMs.SendAll(data.Context(), selected, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Stats update request",
				Description: "An officer has asked you to update your clan member stats.\nUse the `/profile` command in the server to update them.",
				Color:       bot.EmbedColor,
				Footer:      &discordgo.MessageEmbedFooter{Text: "Requested by " + data.DisplayName()},
			}},
		})
		return &commands.Response{Content: bot.FormatDeliveryReport("the update request", report), Update: true}, nil
	}

	return nil, common.NewNotFound("menu", nil)
}

func (p *Plugin) handleStatusSelect(data *commands.Data) (interface{}, error) {
	sess, err := sessions.Load(data.Context(), p.Sessions, data.CustomID.Arg(0), sessionKindPromote, data.AuthorID)
	if err != nil {
		return nil, err
	}

	if len(data.Values) < 1 {
		return nil, common.NewValidationError("status", "nothing selected")
	}

	status, err := ParseStatus(data.Values[0])
	if err != nil {
		return nil, err
	}

	n, err := p.Store.SetStatus(data.Context(), data.GuildID, sess.IDs, status)
	if err != nil {
		return nil, err
	}

	p.deleteSession(data, sess.ID)
	return &commands.Response{Content: fmt.Sprintf("Set the status of %d member(s) to %s.", n, status), Update: true}, nil
}

func (p *Plugin) deleteSession(data *commands.Data, id string) {
	if err := p.Sessions.Delete(data.Context(), id); err != nil {
		logger.WithError(err).WithField("guild", data.GuildID).Error("failed deleting session")
	}
}
