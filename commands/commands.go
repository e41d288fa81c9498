package commands

import (
	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var logger = common.GetFixedPrefixLogger("commands")

var (
	metricsCommandsRan = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clanbot_commands_total",
		Help: "Slash commands ran",
	}, []string{"name"})

	metricsInteractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clanbot_interactions_total",
		Help: "Interactions handled, by type",
	}, []string{"type"})

	metricsCommandErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clanbot_command_errors_total",
		Help: "Commands and interactions that failed with an unexpected error",
	})
)

// RunFunc is what every command, component and modal handler implements,
// the returned value is turned into the interaction response (see Respond)
type RunFunc func(data *Data) (interface{}, error)

// Command is a top level slash command, it either has a RunFunc or a set of subcommands
type Command struct {
	Name        string
	Description string
	Options     []*discordgo.ApplicationCommandOption
	OfficerOnly bool
	RunFunc     RunFunc

	SubCommands []*SubCommand
}

type SubCommand struct {
	Name        string
	Description string
	Options     []*discordgo.ApplicationCommandOption
	OfficerOnly bool
	RunFunc     RunFunc

	// Deferred acknowledges the interaction before running, for handlers that may take longer than discord
	// allows for a response. The result is edited into the deferred reply, which is always ephemeral
	Deferred bool
}

// ComponentHandler handles button/select interactions and modal submissions whose custom id starts with Prefix
type ComponentHandler struct {
	Prefix      string
	OfficerOnly bool
	RunFunc     RunFunc
	Deferred    bool
}

// CommandProvider is implemented by plugins that add commands and interaction handlers
type CommandProvider interface {
	AddCommands(system *System)
}

// ApplicationCommand converts the command into the form discord expects when registering it
func (c *Command) ApplicationCommand() *discordgo.ApplicationCommand {
	dmPermission := false
	cmd := &discordgo.ApplicationCommand{
		Name:         c.Name,
		Description:  c.Description,
		Options:      c.Options,
		DMPermission: &dmPermission,
	}

	for _, sub := range c.SubCommands {
		cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        sub.Name,
			Description: sub.Description,
			Options:     sub.Options,
		})
	}

	return cmd
}

// Option helpers, they keep the command definitions short

func IntOption(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: name, Description: desc, Required: required}
}

func StringOption(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: name, Description: desc, Required: required}
}

func UserOption(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionUser, Name: name, Description: desc, Required: required}
}

func ChannelOption(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         name,
		Description:  desc,
		Required:     required,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}
}

// ChoiceOption is a string option restricted to choices, each choice's name and value are the same
func ChoiceOption(name, desc string, required bool, choices ...string) *discordgo.ApplicationCommandOption {
	opt := StringOption(name, desc, required)
	for _, v := range choices {
		opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{Name: v, Value: v})
	}
	return opt
}
