package bot

import (
	"strconv"

	"emperror.dev/errors"
	"github.com/bwmarrin/snowflake"
)

// ParseID parses a discord snowflake string
func ParseID(s string) (int64, error) {
	if s == "" {
		return 0, errors.NewPlain("empty id")
	}

	id, err := snowflake.ParseString(s)
	if err != nil {
		return 0, errors.WithMessage(err, "parse id")
	}

	return id.Int64(), nil
}

// MustParseID is ParseID for ids that come from discord itself, 0 is returned on failure
func MustParseID(s string) int64 {
	id, _ := ParseID(s)
	return id
}

// FormatID formats an id the way discord expects it
func FormatID(id int64) string {
	return snowflake.ID(id).String()
}

func MentionUser(id int64) string {
	return "<@" + strconv.FormatInt(id, 10) + ">"
}

func MentionChannel(id int64) string {
	return "<#" + strconv.FormatInt(id, 10) + ">"
}

func MentionRole(id int64) string {
	return "<@&" + strconv.FormatInt(id, 10) + ">"
}
