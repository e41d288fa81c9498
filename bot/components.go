package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// TextInputRow wraps a text input in the action row discord requires for modals
func TextInputRow(input discordgo.TextInput) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{input}}
}

// ModalValues returns the values of every text input in a submitted modal keyed by custom id
func ModalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}

		for _, rowComponent := range row.Components {
			if input, ok := rowComponent.(*discordgo.TextInput); ok {
				values[input.CustomID] = strings.TrimSpace(input.Value)
			}
		}
	}

	return values
}

// Modal builds a modal interaction response
func Modal(customID, title string, inputs ...discordgo.TextInput) *discordgo.InteractionResponse {
	rows := make([]discordgo.MessageComponent, 0, len(inputs))
	for _, v := range inputs {
		rows = append(rows, TextInputRow(v))
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   customID,
			Title:      title,
			Components: rows,
		},
	}
}

// FormatDeliveryReport renders a short summary of a dm batch
func FormatDeliveryReport(what string, report *DeliveryReport) string {
	if report.Total() == 0 {
		return fmt.Sprintf("No one to send %s to.", what)
	}

	out := fmt.Sprintf("Sent %s to %d of %d members.", what, report.Sent, report.Total())
	if len(report.Failed) == 0 {
		return out
	}

	disabled := 0
	for _, v := range report.Failed {
		if IsDMsDisabled(v) {
			disabled++
		}
	}

	out += fmt.Sprintf("\n%d could not be reached", len(report.Failed))
	if disabled > 0 {
		out += fmt.Sprintf(" (%d have direct messages disabled)", disabled)
	}

	mentions := make([]string, 0, len(report.Failed))
	for i, v := range report.Failed {
		if i >= 20 {
			mentions = append(mentions, fmt.Sprintf("and %d more", len(report.Failed)-i))
			break
		}
		mentions = append(mentions, MentionUser(v.UserID))
	}

	return out + ": " + strings.Join(mentions, ", ")
}
