package testutils

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

// IntOptions builds slash command options from name, value pairs
func IntOptions(pairs ...interface{}) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	result := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for i := 0; i+1 < len(pairs); i += 2 {
		name := pairs[i].(string)
		var v float64
		switch t := pairs[i+1].(type) {
		case int:
			v = float64(t)
		case int64:
			v = float64(t)
		}

		result[name] = &discordgo.ApplicationCommandInteractionDataOption{
			Name:  name,
			Type:  discordgo.ApplicationCommandOptionInteger,
			Value: v,
		}
	}
	return result
}

// FindSelectMenu returns the first select menu in the component rows
func FindSelectMenu(t testing.TB, rows []discordgo.MessageComponent) discordgo.SelectMenu {
	for _, row := range rows {
		r, ok := row.(discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range r.Components {
			if menu, ok := c.(discordgo.SelectMenu); ok {
				return menu
			}
		}
	}

	require.FailNow(t, "no select menu in components")
	return discordgo.SelectMenu{}
}

// FindButtons returns every button in the component rows
func FindButtons(rows []discordgo.MessageComponent) []discordgo.Button {
	var result []discordgo.Button
	for _, row := range rows {
		r, ok := row.(discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range r.Components {
			if b, ok := c.(discordgo.Button); ok {
				result = append(result, b)
			}
		}
	}
	return result
}
