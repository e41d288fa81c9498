package events

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/clanbot/clanbot/common"
	"github.com/jonas747/when"
	"github.com/jonas747/when/rules"
	wcommon "github.com/jonas747/when/rules/common"
	"github.com/jonas747/when/rules/en"
	"github.com/volatiletech/null/v8"
)

const (
	// DateLayout is the format dates are entered and shown in
	DateLayout = "2006-01-02 15:04"

	MaxNameLength        = 100
	MaxDescriptionLength = 1000

	DefaultListDays = 7
	MaxListDays     = 365
)

var dateParser *when.Parser

func init() {
	dateParser = when.New(&rules.Options{
		Distance:     10,
		MatchByOrder: true})

	dateParser.Add(
		en.Weekday(rules.Override),
		en.CasualDate(rules.Override),
		en.CasualTime(rules.Override),
		en.Hour(rules.Override),
		en.HourMinute(rules.Override),
		en.Deadline(rules.Override),
		en.ExactMonthDate(rules.Override),
	)
	dateParser.Add(wcommon.All...)
}

type Event struct {
	ID          int64       `db:"id"`
	GuildID     int64       `db:"guild_id"`
	Name        string      `db:"name"`
	Description null.String `db:"description"`
	StartsAt    time.Time   `db:"starts_at"`
	CreatedBy   int64       `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	IsActive    bool        `db:"is_active"`
	RemindedAt  null.Time   `db:"reminded_at"`
}

// EventUpdate holds the fields to change, nil fields are left as they are
type EventUpdate struct {
	Name        *string
	Description *string
	StartsAt    *time.Time
}

func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", common.NewValidationError("name", "can't be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", common.NewValidationErrorf("name", "can be at most %d characters", MaxNameLength)
	}
	return name, nil
}

func ValidateDescription(desc string) (null.String, error) {
	desc = strings.TrimSpace(desc)
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return null.String{}, common.NewValidationErrorf("description", "can be at most %d characters", MaxDescriptionLength)
	}
	return null.NewString(desc, desc != ""), nil
}

// ValidateStart rejects start times that aren't strictly after now
func ValidateStart(t, now time.Time) error {
	if !t.After(now) {
		return common.NewValidationError("date", "must be in the future")
	}
	return nil
}

// ParseWhen parses a start time entered by a user, either in DateLayout or in natural language ("tomorrow 8pm"),
// relative to the guild's timezone. The result is in UTC and strictly in the future.
func ParseWhen(input string, loc *time.Location, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, common.NewValidationError("date", "can't be empty")
	}

	if loc == nil {
		loc = time.UTC
	}

	t, err := time.ParseInLocation(DateLayout, input, loc)
	if err != nil {
		r, err := dateParser.Parse(input, now.In(loc))
		if err != nil || r == nil {
			return time.Time{}, common.NewValidationErrorf("date", "couldn't understand %q, use the format YYYY-MM-DD HH:MM (for example %s)",
				input, now.In(loc).Add(24*time.Hour).Format(DateLayout))
		}
		t = r.Time.Truncate(time.Minute)
	}

	t = t.UTC()
	if err := ValidateStart(t, now); err != nil {
		return time.Time{}, err
	}

	return t, nil
}

// RSVPCounts is the number of responses of each kind for an event
type RSVPCounts struct {
	Yes   int
	No    int
	Maybe int
}

func (r *RSVPCounts) Total() int {
	return r.Yes + r.No + r.Maybe
}
