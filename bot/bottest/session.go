// Package bottest provides an in-memory bot.Session for tests
package bottest

import (
	"strconv"
	"sync"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

type SentMessage struct {
	ChannelID string
	Message   *discordgo.MessageSend
}

// Session records everything sent through it
type Session struct {
	mu sync.Mutex

	Responses []*discordgo.InteractionResponse
	Edits     []*discordgo.WebhookEdit
	Messages  []*SentMessage
	Roles     map[string][]*discordgo.Role
	Commands  map[string][]*discordgo.ApplicationCommand

	// FailDMs makes UserChannelCreate fail for these user ids
	FailDMs map[string]bool
	// FailChannels makes message sends to these channels fail
	FailChannels map[string]bool
}

func New() *Session {
	return &Session{
		Roles:        make(map[string][]*discordgo.Role),
		Commands:     make(map[string][]*discordgo.ApplicationCommand),
		FailDMs:      make(map[string]bool),
		FailChannels: make(map[string]bool),
	}
}

func (s *Session) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Responses = append(s.Responses, resp)
	return nil
}

func (s *Session) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Edits = append(s.Edits, newresp)
	return &discordgo.Message{ID: "edited"}, nil
}

func (s *Session) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailChannels[channelID] {
		return nil, errors.Errorf("unknown channel %s", channelID)
	}

	s.Messages = append(s.Messages, &SentMessage{ChannelID: channelID, Message: data})
	return &discordgo.Message{
		ID:        strconv.Itoa(len(s.Messages)),
		ChannelID: channelID,
		Content:   data.Content,
		Embeds:    data.Embeds,
	}, nil
}

func (s *Session) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
}

func (s *Session) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDMs[recipientID] {
		return nil, &discordgo.RESTError{Message: &discordgo.APIErrorMessage{
			Code:    discordgo.ErrCodeCannotSendMessagesToThisUser,
			Message: "Cannot send messages to this user",
		}}
	}

	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (s *Session) GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Roles[guildID], nil
}

func (s *Session) ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Commands[guildID] = commands
	return commands, nil
}

// LastResponse returns the last interaction response or nil
func (s *Session) LastResponse() *discordgo.InteractionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.Responses) == 0 {
		return nil
	}
	return s.Responses[len(s.Responses)-1]
}

// MessagesTo returns the messages sent to channelID
func (s *Session) MessagesTo(channelID string) []*discordgo.MessageSend {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*discordgo.MessageSend
	for _, v := range s.Messages {
		if v.ChannelID == channelID {
			result = append(result, v.Message)
		}
	}
	return result
}
