package commands

import (
	"context"
	"runtime/debug"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/common"
)

const (
	DefaultTimeout  = 10 * time.Second
	DeferredTimeout = 10 * time.Minute

	inactiveMenuMessage = "This menu is no longer active, run the command again."
)

// OfficerChecker resolves the officer status of the member running an interaction
type OfficerChecker interface {
	IsOfficer(guildID string, member *discordgo.Member) (bool, error)
}

// Provisioner makes sure a guild's defaults exist, it's called before every guild interaction
type Provisioner interface {
	Ensure(ctx context.Context, guildID int64) error
}

// System routes interactions to the registered commands and component handlers
type System struct {
	Session     bot.Session
	Officers    OfficerChecker
	Provisioner Provisioner
	Timeout     time.Duration

	DeferredTimeout time.Duration

	commands     map[string]*Command
	commandOrder []string
	components   map[string]*ComponentHandler
	modals       map[string]*ComponentHandler
}

func NewSystem(session bot.Session, officers OfficerChecker, provisioner Provisioner) *System {
	return &System{
		Session:         session,
		Officers:        officers,
		Provisioner:     provisioner,
		Timeout:         DefaultTimeout,
		DeferredTimeout: DeferredTimeout,

		commands:   make(map[string]*Command),
		components: make(map[string]*ComponentHandler),
		modals:     make(map[string]*ComponentHandler),
	}
}

// AddCommands registers commands, subcommands of a command with a name that's already registered are merged into it
func (s *System) AddCommands(cmds ...*Command) {
	for _, cmd := range cmds {
		if existing, ok := s.commands[cmd.Name]; ok {
			existing.SubCommands = append(existing.SubCommands, cmd.SubCommands...)
			continue
		}

		s.commands[cmd.Name] = cmd
		s.commandOrder = append(s.commandOrder, cmd.Name)
	}
}

func (s *System) AddComponentHandlers(handlers ...*ComponentHandler) {
	for _, h := range handlers {
		if _, ok := s.components[h.Prefix]; ok {
			panic("component handler registered twice: " + h.Prefix)
		}
		s.components[h.Prefix] = h
	}
}

func (s *System) AddModalHandlers(handlers ...*ComponentHandler) {
	for _, h := range handlers {
		if _, ok := s.modals[h.Prefix]; ok {
			panic("modal handler registered twice: " + h.Prefix)
		}
		s.modals[h.Prefix] = h
	}
}

// AddProviders calls AddCommands on every plugin that implements CommandProvider
func (s *System) AddProviders(plugins *common.PluginSet) {
	for _, p := range plugins.Plugins {
		if provider, ok := p.(CommandProvider); ok {
			provider.AddCommands(s)
		}
	}
}

// ApplicationCommands returns the registered commands in registration order
func (s *System) ApplicationCommands() []*discordgo.ApplicationCommand {
	result := make([]*discordgo.ApplicationCommand, 0, len(s.commandOrder))
	for _, name := range s.commandOrder {
		result = append(result, s.commands[name].ApplicationCommand())
	}
	return result
}

// RegisterApplicationCommands overwrites the slash commands registered with discord,
// globally if guildID is empty
func (s *System) RegisterApplicationCommands(appID, guildID string) error {
	cmds := s.ApplicationCommands()
	_, err := s.Session.ApplicationCommandBulkOverwrite(appID, guildID, cmds)
	if err != nil {
		return errors.WithMessage(err, "bulk overwrite commands")
	}

	logger.Infof("Registered %d slash commands (guild: %q)", len(cmds), guildID)
	return nil
}

// HandleInteractionCreate is the discordgo event handler
func (s *System) HandleInteractionCreate(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	s.HandleInteraction(ic.Interaction)
}

// HandleInteraction runs the handler for an interaction and sends the response
func (s *System) HandleInteraction(i *discordgo.Interaction) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	data := &Data{
		Ctx:         ctx,
		Session:     s.Session,
		Interaction: i,
		GuildID:     bot.MustParseID(i.GuildID),
		ChannelID:   bot.MustParseID(i.ChannelID),
		Member:      i.Member,
	}

	if i.Member != nil && i.Member.User != nil {
		data.Author = i.Member.User
	} else {
		data.Author = i.User
	}
	if data.Author != nil {
		data.AuthorID = bot.MustParseID(data.Author.ID)
	}

	var h handler

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		metricsInteractions.With(map[string]string{"type": "command"}).Inc()
		h = s.findCommand(data, i.ApplicationCommandData())
	case discordgo.InteractionMessageComponent:
		metricsInteractions.With(map[string]string{"type": "component"}).Inc()
		mcd := i.MessageComponentData()
		data.CustomID = bot.ParseCustomID(mcd.CustomID)
		data.Values = mcd.Values
		if c, ok := s.components[data.CustomID.Prefix]; ok {
			h = handler{run: c.RunFunc, officerOnly: c.OfficerOnly, deferred: c.Deferred}
		}
	case discordgo.InteractionModalSubmit:
		metricsInteractions.With(map[string]string{"type": "modal"}).Inc()
		msd := i.ModalSubmitData()
		data.CustomID = bot.ParseCustomID(msd.CustomID)
		data.Fields = bot.ModalValues(msd)
		if c, ok := s.modals[data.CustomID.Prefix]; ok {
			h = handler{run: c.RunFunc, officerOnly: c.OfficerOnly, deferred: c.Deferred}
		}
	default:
		return
	}

	if h.run == nil {
		s.respond(i, errorResponse(inactiveMenuMessage))
		return
	}

	if h.deferred {
		s.handleDeferred(data, h)
		return
	}

	resp, err := s.runHandler(data, h.run, h.officerOnly)
	if err != nil {
		s.respond(i, errorResponse(s.errorMessage(data, err)))
		return
	}

	ir := toInteractionResponse(resp)
	if ir == nil {
		ir = errorResponse("Done.")
	}
	s.respond(i, ir)
}

type handler struct {
	run         RunFunc
	officerOnly bool
	deferred    bool
}

// handleDeferred acknowledges the interaction, runs the handler with the longer deferred timeout and edits the
// result into the acknowledged reply
func (s *System) handleDeferred(data *Data, h handler) {
	i := data.Interaction

	ack := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}
	if i.Type == discordgo.InteractionMessageComponent {
		ack = &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	}

	if err := s.Session.InteractionRespond(i, ack); err != nil {
		logger.WithError(err).WithField("guild", i.GuildID).Error("failed deferring interaction")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.DeferredTimeout)
	defer cancel()
	data.Ctx = ctx

	var edit *discordgo.WebhookEdit
	resp, err := s.runHandler(data, h.run, h.officerOnly)
	if err != nil {
		msg := s.errorMessage(data, err)
		edit = &discordgo.WebhookEdit{
			Content:    &msg,
			Embeds:     &[]*discordgo.MessageEmbed{},
			Components: &[]discordgo.MessageComponent{},
		}
	} else {
		edit = toWebhookEdit(resp)
	}

	_, err = s.Session.InteractionResponseEdit(i, edit)
	if err != nil {
		logger.WithError(err).WithField("guild", i.GuildID).Error("failed editing deferred response")
	}
}

func (s *System) errorMessage(data *Data, err error) string {
	msg, unexpected := HumanizeError(err)
	if unexpected {
		metricsCommandErrors.Inc()
		data.Logger().WithError(err).Error("interaction handler returned an error")
	}
	return msg
}

func (s *System) findCommand(data *Data, acd discordgo.ApplicationCommandInteractionData) handler {
	cmd, ok := s.commands[acd.Name]
	if !ok {
		return handler{}
	}

	data.CommandName = cmd.Name
	metricsCommandsRan.With(map[string]string{"name": cmd.Name}).Inc()

	if len(cmd.SubCommands) == 0 {
		data.Options = optionMap(acd.Options)
		return handler{run: cmd.RunFunc, officerOnly: cmd.OfficerOnly}
	}

	if len(acd.Options) == 0 {
		return handler{}
	}

	subOpt := acd.Options[0]
	for _, sub := range cmd.SubCommands {
		if sub.Name == subOpt.Name {
			data.SubCommand = sub.Name
			data.Options = optionMap(subOpt.Options)
			return handler{run: sub.RunFunc, officerOnly: sub.OfficerOnly || cmd.OfficerOnly, deferred: sub.Deferred}
		}
	}

	return handler{}
}

func (s *System) runHandler(data *Data, run RunFunc, officerOnly bool) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			data.Logger().WithField("stck", string(debug.Stack())).Errorf("recovered from panic in handler: %v", r)
			resp = nil
			err = errors.Errorf("panic: %v", r)
		}
	}()

	if data.GuildID != 0 {
		if s.Provisioner != nil {
			if err = s.Provisioner.Ensure(data.Ctx, data.GuildID); err != nil {
				return nil, err
			}
		}

		if s.Officers != nil && data.Member != nil {
			data.IsOfficer, err = s.Officers.IsOfficer(bot.FormatID(data.GuildID), data.Member)
			if err != nil {
				return nil, err
			}
		}
	}

	if officerOnly && !data.IsOfficer {
		return nil, common.NewOfficerOnlyError("use this")
	}

	return run(data)
}

func (s *System) respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	err := s.Session.InteractionRespond(i, resp)
	if err != nil {
		logger.WithError(err).WithField("guild", i.GuildID).Error("failed responding to interaction")
	}
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	result := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, v := range opts {
		result[v.Name] = v
	}
	return result
}
