package commands

import (
	"strings"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/common"
)

const genericErrorMessage = "Something went wrong when running this command, either discord or the bot may be having issues."

// Response gives a handler full control over the reply
type Response struct {
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
	Ephemeral  bool

	// Update edits the message the component is attached to instead of sending a new one
	Update bool
}

// EphemeralEmbed is an embed only shown to the invoker
func EphemeralEmbed(embed *discordgo.MessageEmbed) *Response {
	return &Response{Embeds: []*discordgo.MessageEmbed{embed}, Ephemeral: true}
}

// toInteractionResponse converts a handler return value:
// string is an ephemeral text reply, an embed is a public reply, *Response and
// *discordgo.InteractionResponse are sent as is
func toInteractionResponse(v interface{}) *discordgo.InteractionResponse {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: t,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		}
	case *discordgo.MessageEmbed:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{t},
			},
		}
	case *Response:
		respType := discordgo.InteractionResponseChannelMessageWithSource
		if t.Update {
			respType = discordgo.InteractionResponseUpdateMessage
		}

		data := &discordgo.InteractionResponseData{
			Content:    t.Content,
			Embeds:     t.Embeds,
			Components: t.Components,
		}
		if t.Ephemeral {
			data.Flags = discordgo.MessageFlagsEphemeral
		}
		if t.Update && data.Components == nil {
			// clear the old components so an inert menu isn't left around
			data.Components = []discordgo.MessageComponent{}
		}

		return &discordgo.InteractionResponse{Type: respType, Data: data}
	case *discordgo.InteractionResponse:
		return t
	}

	logger.Errorf("unknown response type %T", v)
	return nil
}

// toWebhookEdit converts a handler return value into an edit of a deferred reply
func toWebhookEdit(v interface{}) *discordgo.WebhookEdit {
	content := "Done."
	embeds := []*discordgo.MessageEmbed{}
	components := []discordgo.MessageComponent{}

	ir := toInteractionResponse(v)
	if ir != nil && ir.Data != nil {
		content = ir.Data.Content
		if ir.Data.Embeds != nil {
			embeds = ir.Data.Embeds
		}
		if ir.Data.Components != nil {
			components = ir.Data.Components
		}
	}

	return &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}
}

// HumanizeError turns an error into a message for the user, unexpected is true for errors that should be logged
func HumanizeError(err error) (msg string, unexpected bool) {
	var validationErr *common.ValidationError
	var notFoundErr *common.NotFoundError
	var permErr *common.PermissionError
	var candidatesErr *common.InsufficientCandidatesError
	var deliveryErr *common.DeliveryError
	var storeErr *common.StoreError
	var restErr *discordgo.RESTError

	switch {
	case errors.As(err, &validationErr):
		return "Invalid input: " + validationErr.Error(), false
	case errors.As(err, &notFoundErr):
		return upperFirst(notFoundErr.Error()), false
	case errors.As(err, &permErr):
		return upperFirst(permErr.Error()) + ".", false
	case errors.As(err, &candidatesErr):
		return upperFirst(candidatesErr.Error()), false
	case errors.As(err, &deliveryErr):
		if bot.IsDMsDisabled(deliveryErr) {
			return "I couldn't message " + bot.MentionUser(deliveryErr.UserID) + ", they have direct messages disabled.", false
		}
		return "I couldn't message " + bot.MentionUser(deliveryErr.UserID) + ".", true
	case errors.As(err, &storeErr):
		return genericErrorMessage, true
	case errors.As(err, &restErr):
		if restErr.Message != nil && restErr.Message.Message != "" {
			if restErr.Response != nil && restErr.Response.StatusCode == 403 {
				return "The bot permissions has been incorrectly set up on this server for it to run this command: " + restErr.Message.Message, true
			}

			return "The bot was not able to perform the action, discord responded with: " + restErr.Message.Message, true
		}
	}

	return genericErrorMessage, true
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func errorResponse(msg string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}
