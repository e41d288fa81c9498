package guilds

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/commands"
	"github.com/clanbot/clanbot/common"
)

type Plugin struct {
	Store *Store
}

func NewPlugin(store *Store) *Plugin {
	return &Plugin{Store: store}
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Guild Config",
		SysName:  "guilds",
		Category: common.PluginCategoryCore,
	}
}

func (p *Plugin) DBSchemas() []string {
	return DBSchemas
}

var _ commands.CommandProvider = (*Plugin)(nil)

func (p *Plugin) AddCommands(system *commands.System) {
	system.AddCommands(&commands.Command{
		Name:        "clanconfig",
		Description: "Clan bot settings for this server",
		SubCommands: []*commands.SubCommand{
			{
				Name:        "reminders",
				Description: "Set the channel event reminders are posted in",
				OfficerOnly: true,
				Options: []*discordgo.ApplicationCommandOption{
					commands.ChannelOption("channel", "Reminder channel, leave empty to disable reminders", false),
				},
				RunFunc: p.cmdSetReminderChannel,
			},
			{
				Name:        "timezone",
				Description: "Set the timezone event dates are entered in",
				OfficerOnly: true,
				Options: []*discordgo.ApplicationCommandOption{
					commands.StringOption("name", "For example Europe/Berlin, America/New_York or CET", true),
				},
				RunFunc: p.cmdSetTimezone,
			},
			{
				Name:        "show",
				Description: "Show the current settings",
				RunFunc:     p.cmdShow,
			},
		},
	})
}

func (p *Plugin) cmdSetReminderChannel(data *commands.Data) (interface{}, error) {
	channelID := data.ID("channel")
	err := p.Store.SetReminderChannel(data.Context(), data.GuildID, channelID)
	if err != nil {
		return nil, err
	}

	if channelID == 0 {
		return "Event reminders disabled.", nil
	}

	return "Event reminders will be posted in " + bot.MentionChannel(channelID) + ".", nil
}

func (p *Plugin) cmdSetTimezone(data *commands.Data) (interface{}, error) {
	name, err := p.Store.SetTimezone(data.Context(), data.GuildID, data.Str("name"))
	if err != nil {
		return nil, err
	}

	loc, _ := time.LoadLocation(name)
	return fmt.Sprintf("Timezone set to `%s`, it's currently %s there. Event dates are now entered in this timezone.",
		name, p.Store.Now().In(loc).Format("2006-01-02 15:04")), nil
}

func (p *Plugin) cmdShow(data *commands.Data) (interface{}, error) {
	conf, err := p.Store.Get(data.Context(), data.GuildID)
	if err != nil {
		return nil, err
	}

	reminders := "disabled"
	if conf.ReminderChannelID.Valid {
		reminders = bot.MentionChannel(conf.ReminderChannelID.Int64)
	}

	return &discordgo.MessageEmbed{
		Title: "Clan settings",
		Color: bot.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reminder channel", Value: reminders, Inline: true},
			{Name: "Timezone", Value: conf.Timezone, Inline: true},
		},
	}, nil
}
