package votes

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/commands"
	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/sessions"
)

var logger = common.GetPluginLogger(&Plugin{})

const (
	prefixCreateModal = "vote_create"
	prefixRoleSelect  = "vote_role"
	prefixCast        = "vote_cast"
	prefixResults     = "vote_results"

	sessionKind = "vote_create"

	buttonsPerRow = 5
	resultBarSize = 10
)

type Plugin struct {
	Store    *Store
	Sessions sessions.Store
}

func NewPlugin(store *Store, sessionStore sessions.Store) *Plugin {
	return &Plugin{
		Store:    store,
		Sessions: sessionStore,
	}
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Votes",
		SysName:  "votes",
		Category: common.PluginCategoryGovernance,
	}
}

func (p *Plugin) DBSchemas() []string {
	return DBSchemas
}

var _ commands.CommandProvider = (*Plugin)(nil)

func (p *Plugin) AddCommands(system *commands.System) {
	system.AddCommands(&commands.Command{
		Name:        "vote",
		Description: "Anonymous votes",
		SubCommands: []*commands.SubCommand{
			{
				Name:        "create",
				Description: "Starts an anonymous vote for the members of a role",
				OfficerOnly: true,
				RunFunc:     p.cmdCreate,
			},
			{
				Name:        "results",
				Description: "Shows the results of a vote",
				Options: []*discordgo.ApplicationCommandOption{
					commands.IntOption("id", "Vote id", true),
				},
				RunFunc: p.cmdResults,
			},
			{
				Name:        "close",
				Description: "Stops a vote from accepting responses",
				OfficerOnly: true,
				Options: []*discordgo.ApplicationCommandOption{
					commands.IntOption("id", "Vote id", true),
				},
				RunFunc: p.cmdClose,
			},
			{
				Name:        "list",
				Description: "Lists the open votes",
				RunFunc:     p.cmdList,
			},
		},
	})

	system.AddModalHandlers(&commands.ComponentHandler{Prefix: prefixCreateModal, OfficerOnly: true, RunFunc: p.handleCreateSubmit})
	system.AddComponentHandlers(
		&commands.ComponentHandler{Prefix: prefixRoleSelect, OfficerOnly: true, RunFunc: p.handleRoleSelect},
		&commands.ComponentHandler{Prefix: prefixCast, RunFunc: p.handleCast},
		&commands.ComponentHandler{Prefix: prefixResults, RunFunc: p.handleResults},
	)
}

func (p *Plugin) cmdCreate(data *commands.Data) (interface{}, error) {
	return bot.Modal(prefixCreateModal, "Create anonymous vote",
		discordgo.TextInput{
			CustomID:    "title",
			Label:       "Vote title",
			Style:       discordgo.TextInputShort,
			Placeholder: "Enter the voting question...",
			Required:    true,
			MaxLength:   MaxTitleLength,
		},
		discordgo.TextInput{
			CustomID:    "description",
			Label:       "Description (optional)",
			Style:       discordgo.TextInputParagraph,
			Placeholder: "Additional details about the vote...",
			MaxLength:   MaxDescriptionLength,
		},
		discordgo.TextInput{
			CustomID:    "options",
			Label:       fmt.Sprintf("Options (one per line, max %d)", MaxOptions),
			Style:       discordgo.TextInputParagraph,
			Placeholder: "Option 1\nOption 2\nOption 3",
			Required:    true,
			MaxLength:   1000,
		},
		discordgo.TextInput{
			CustomID:    "hours",
			Label:       "Duration in hours",
			Style:       discordgo.TextInputShort,
			Placeholder: fmt.Sprintf("%d to %d, e.g. 24", MinDurationHours, MaxDurationHours),
			Required:    true,
			MaxLength:   3,
		}), nil
}

// handleCreateSubmit validates the form and asks for the eligible role, the form is kept in a session until then
func (p *Plugin) handleCreateSubmit(data *commands.Data) (interface{}, error) {
	nv, err := ParseNewVote(data.Fields["title"], data.Fields["description"], data.Fields["options"], data.Fields["hours"])
	if err != nil {
		return nil, err
	}

	sess := sessions.New(sessionKind, data.GuildID, data.AuthorID)
	sess.Set("title", nv.Title)
	sess.Set("description", nv.Description)
	sess.Set("options", strings.Join(nv.Options, "\n"))
	sess.SetInt("hours", int64(nv.Duration.Hours()))
	if err := p.Sessions.Put(data.Context(), sess); err != nil {
		return nil, err
	}

	return &commands.Response{
		Ephemeral: true,
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "👥 Select the eligible role",
			Description: "Choose which role can take part in **" + nv.Title + "**.",
			Color:       bot.EmbedColor,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.RoleSelectMenu,
					CustomID:    bot.CustomID(prefixRoleSelect, sess.ID),
					Placeholder: "Select a role to vote...",
				},
			}},
		},
	}, nil
}

func (p *Plugin) handleRoleSelect(data *commands.Data) (interface{}, error) {
	sess, err := sessions.Load(data.Context(), p.Sessions, data.CustomID.Arg(0), sessionKind, data.AuthorID)
	if err != nil {
		return nil, err
	}

	roles := data.ValueIDs()
	if len(roles) != 1 {
		return nil, common.NewValidationError("role", "select exactly one role")
	}

	nv, err := ParseNewVote(sess.Get("title"), sess.Get("description"), sess.Get("options"), strconv.FormatInt(sess.Int("hours"), 10))
	if err != nil {
		return nil, err
	}
	nv.EligibleRoleID = roles[0]
	nv.CreatedBy = data.AuthorID

	v, err := p.Store.Create(data.Context(), data.GuildID, nv)
	if err != nil {
		return nil, err
	}

	if err := p.Sessions.Delete(data.Context(), sess.ID); err != nil {
		logger.WithError(err).WithField("guild", data.GuildID).Error("failed deleting session")
	}

	data.Logger().WithField("vote", v.ID).Info("created vote")

	_, err = data.Session.ChannelMessageSendComplex(bot.FormatID(data.ChannelID), VoteMessage(v))
	if err != nil {
		return nil, err
	}

	return &commands.Response{Content: fmt.Sprintf("Vote #%d created.", v.ID), Update: true}, nil
}

// VoteMessage is the public message members vote from
func VoteMessage(v *Vote) *discordgo.MessageSend {
	embed := &discordgo.MessageEmbed{
		Title:       "🗳️ " + v.Title,
		Description: v.Description.String,
		Color:       bot.EmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Vote ID: %d • Anonymous voting", v.ID)},
	}

	lines := make([]string, 0, len(v.Options))
	for i, o := range v.Options {
		lines = append(lines, fmt.Sprintf("**%d.** %s", i+1, o))
	}

	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Options", Value: strings.Join(lines, "\n")},
		{Name: "Ends", Value: common.DiscordTimestamp(v.EndsAt, "R"), Inline: true},
		{Name: "👥 Eligible voters", Value: bot.MentionRole(v.EligibleRoleID), Inline: true},
	}

	return &discordgo.MessageSend{
		Content:    bot.MentionRole(v.EligibleRoleID) + " - New vote available!",
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: VoteComponents(v),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Roles: []string{bot.FormatID(v.EligibleRoleID)},
		},
	}
}

// VoteComponents has a button per option and a results button
func VoteComponents(v *Vote) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for i, o := range v.Options {
		row = append(row, discordgo.Button{
			Label:    common.CutStringShort(fmt.Sprintf("%d. %s", i+1, o), 80),
			Style:    discordgo.SecondaryButton,
			CustomID: bot.CustomID(prefixCast, v.ID, i),
		})

		if len(row) == buttonsPerRow {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}

	rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Results",
			Style:    discordgo.PrimaryButton,
			CustomID: bot.CustomID(prefixResults, v.ID),
			Emoji:    &discordgo.ComponentEmoji{Name: "📊"},
		},
	}})

	return rows
}

// eligible returns true if the member has the vote's role, the guild id is the @everyone role
func eligible(data *commands.Data, v *Vote) bool {
	if v.EligibleRoleID == data.GuildID {
		return data.Member != nil
	}
	return bot.HasRole(data.Member, v.EligibleRoleID)
}

func (p *Plugin) handleCast(data *commands.Data) (interface{}, error) {
	voteID, err := data.CustomID.Int64(0)
	if err != nil {
		return nil, err
	}

	option, err := data.CustomID.Int64(1)
	if err != nil {
		return nil, err
	}

	v, err := p.Store.Get(data.Context(), data.GuildID, voteID)
	if err != nil {
		return nil, err
	}

	if !eligible(data, v) {
		return nil, &common.PermissionError{Action: "vote", Reason: "you need the " + bot.MentionRole(v.EligibleRoleID) + " role"}
	}

	err = p.Store.Cast(data.Context(), data.GuildID, voteID, data.AuthorID, int(option), p.Store.Now())
	if err != nil {
		return nil, err
	}

	return fmt.Sprintf("✅ Your anonymous vote for **%s** has been recorded. You can change it until the vote ends.", v.Options[option]), nil
}

func (p *Plugin) handleResults(data *commands.Data) (interface{}, error) {
	voteID, err := data.CustomID.Int64(0)
	if err != nil {
		return nil, err
	}

	tally, err := p.Store.Results(data.Context(), data.GuildID, voteID)
	if err != nil {
		return nil, err
	}

	return commands.EphemeralEmbed(ResultsEmbed(tally, p.Store.Now())), nil
}

func (p *Plugin) cmdResults(data *commands.Data) (interface{}, error) {
	tally, err := p.Store.Results(data.Context(), data.GuildID, data.Int("id"))
	if err != nil {
		return nil, err
	}

	return ResultsEmbed(tally, p.Store.Now()), nil
}

func (p *Plugin) cmdClose(data *commands.Data) (interface{}, error) {
	id := data.Int("id")
	if err := p.Store.Close(data.Context(), data.GuildID, id); err != nil {
		return nil, err
	}

	tally, err := p.Store.Results(data.Context(), data.GuildID, id)
	if err != nil {
		return nil, err
	}

	data.Logger().WithField("vote", id).Info("closed vote")
	return ResultsEmbed(tally, p.Store.Now()), nil
}

func (p *Plugin) cmdList(data *commands.Data) (interface{}, error) {
	open, err := p.Store.ListOpen(data.Context(), data.GuildID)
	if err != nil {
		return nil, err
	}

	if len(open) == 0 {
		return "There are no open votes.", nil
	}

	var b strings.Builder
	for _, v := range open {
		b.WriteString(fmt.Sprintf("`#%d` **%s**, ends %s\n", v.ID, v.Title, common.DiscordTimestamp(v.EndsAt, "R")))
	}

	return &discordgo.MessageEmbed{
		Title:       "Open votes",
		Description: b.String(),
		Color:       bot.EmbedColor,
	}, nil
}

// ResultsEmbed renders the tally with a bar per option
func ResultsEmbed(t *Tally, now time.Time) *discordgo.MessageEmbed {
	var b strings.Builder
	for i, o := range t.Vote.Options {
		pct := t.Percentage(i)
		filled := int(pct / 100 * resultBarSize)
		bar := strings.Repeat("█", filled) + strings.Repeat("░", resultBarSize-filled)
		b.WriteString(fmt.Sprintf("**%d. %s**\n%s %d votes (%.1f%%)\n\n", i+1, o, bar, t.Counts[i], pct))
	}

	status := "Open, ends " + common.DiscordTimestamp(t.Vote.EndsAt, "R")
	if !t.Vote.Open(now) {
		status = "Closed"
	}

	return &discordgo.MessageEmbed{
		Title:       "📊 Vote results: " + t.Vote.Title,
		Description: b.String(),
		Color:       bot.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: status},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Vote ID: %d • Total votes: %d", t.Vote.ID, t.Total)},
	}
}
