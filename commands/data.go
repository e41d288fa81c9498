package commands

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/sirupsen/logrus"
)

// Data is the context handed to every handler
type Data struct {
	Ctx         context.Context
	Session     bot.Session
	Interaction *discordgo.Interaction

	GuildID   int64
	ChannelID int64
	AuthorID  int64
	Author    *discordgo.User
	Member    *discordgo.Member
	IsOfficer bool

	// Slash commands
	CommandName string
	SubCommand  string
	Options     map[string]*discordgo.ApplicationCommandInteractionDataOption

	// Components and modals
	CustomID bot.ParsedCustomID
	Values   []string
	Fields   map[string]string
}

func (d *Data) Context() context.Context {
	return d.Ctx
}

func (d *Data) Logger() *logrus.Entry {
	l := logger.WithField("guild", d.GuildID).WithField("user", d.AuthorID)
	if d.CommandName != "" {
		l = l.WithField("cmd", d.CommandName+" "+d.SubCommand)
	}
	if d.CustomID.Raw != "" {
		l = l.WithField("custom_id", d.CustomID.Raw)
	}
	return l
}

// Has returns true if the option was provided
func (d *Data) Has(name string) bool {
	_, ok := d.Options[name]
	return ok
}

// Str returns the raw string value of an option, user/channel/role options are returned as their id
func (d *Data) Str(name string) string {
	if opt, ok := d.Options[name]; ok {
		if s, ok := opt.Value.(string); ok {
			return s
		}
	}
	return ""
}

func (d *Data) Int(name string) int64 {
	opt, ok := d.Options[name]
	if !ok {
		return 0
	}

	switch t := opt.Value.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}

// ID returns the snowflake value of a user, channel or role option
func (d *Data) ID(name string) int64 {
	return bot.MustParseID(d.Str(name))
}

// ValueIDs parses the selected values of a select menu as ids, values that aren't ids are skipped
func (d *Data) ValueIDs() []int64 {
	result := make([]int64, 0, len(d.Values))
	for _, v := range d.Values {
		if id, err := bot.ParseID(v); err == nil {
			result = append(result, id)
		}
	}
	return result
}

// DisplayName is the author's nickname if they have one, otherwise their global or user name
func (d *Data) DisplayName() string {
	if d.Member != nil && d.Member.Nick != "" {
		return d.Member.Nick
	}
	if d.Author == nil {
		return ""
	}
	if d.Author.GlobalName != "" {
		return d.Author.GlobalName
	}
	return d.Author.Username
}

// ResolvedMember returns the resolved member and user of a user option
func (d *Data) ResolvedMember(name string) (*discordgo.User, *discordgo.Member) {
	id := d.Str(name)
	if id == "" || d.Interaction == nil || d.Interaction.Type != discordgo.InteractionApplicationCommand {
		return nil, nil
	}

	resolved := d.Interaction.ApplicationCommandData().Resolved
	if resolved == nil {
		return nil, nil
	}

	user := resolved.Users[id]
	member := resolved.Members[id]
	return user, member
}

// MemberDisplayName picks the best display name for a user/member pair
func MemberDisplayName(user *discordgo.User, member *discordgo.Member) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user == nil {
		return ""
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}
