package members

import (
	"strings"
	"time"

	"github.com/clanbot/clanbot/common"
	"github.com/volatiletech/null/v8"
)

type Status string

const (
	StatusMember  Status = "Member"
	StatusOfficer Status = "Officer"
	StatusAlumni  Status = "Alumni"
	StatusLeader  Status = "Leader"
)

// Statuses in rank order, highest first
var Statuses = []Status{StatusLeader, StatusOfficer, StatusMember, StatusAlumni}

func ParseStatus(s string) (Status, error) {
	for _, v := range Statuses {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, nil
		}
	}

	return "", common.NewValidationErrorf("status", "unknown status %q, valid ones are Leader, Officer, Member and Alumni", s)
}

func (s Status) Emoji() string {
	switch s {
	case StatusLeader:
		return "👑"
	case StatusOfficer:
		return "⭐"
	case StatusAlumni:
		return "🎓"
	}
	return "🛡️"
}

// Current is true for everyone except alumni
func (s Status) Current() bool {
	return s != StatusAlumni
}

const DefaultBackground = "hellforge"

var Backgrounds = []string{
	"hellforge",
	"sanctuary",
	"westmarch",
	"library",
	"cathedral",
	"demon_hunter",
	"barbarian",
	"wizard",
	"monk",
	"necromancer",
	"crusader",
}

func BackgroundLabel(bg string) string {
	words := strings.Split(bg, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// MaxStatValue caps numeric stats
const MaxStatValue = 1_000_000_000_000

// StatDef describes a single profile stat
type StatDef struct {
	Key     string
	Label   string
	Numeric bool
}

// StatCategory groups stats that are edited together, a category never has more than 5 stats since that's the
// most inputs a modal can hold
type StatCategory struct {
	Key   string
	Name  string
	Stats []*StatDef
}

var StatCategories = []*StatCategory{
	{
		Key:  "basic",
		Name: "Basic Info",
		Stats: []*StatDef{
			{Key: "character_name", Label: "Character Name"},
			{Key: "character_class", Label: "Class"},
			{Key: "shadow_rank", Label: "Shadow Rank"},
			{Key: "clan_role", Label: "Clan Role"},
		},
	},
	{
		Key:  "combat",
		Name: "Combat Stats",
		Stats: []*StatDef{
			{Key: "combat_rating", Label: "Combat Rating", Numeric: true},
			{Key: "resonance", Label: "Resonance", Numeric: true},
			{Key: "paragon_level", Label: "Paragon Level", Numeric: true},
			{Key: "damage", Label: "Damage", Numeric: true},
			{Key: "life", Label: "Life", Numeric: true},
		},
	},
	{
		Key:  "secondary",
		Name: "Secondary Stats",
		Stats: []*StatDef{
			{Key: "armor", Label: "Armor", Numeric: true},
			{Key: "armor_penetration", Label: "Armor Penetration", Numeric: true},
			{Key: "potency", Label: "Potency", Numeric: true},
			{Key: "resistance", Label: "Resistance", Numeric: true},
		},
	},
	{
		Key:  "core_attributes",
		Name: "Core Attributes",
		Stats: []*StatDef{
			{Key: "strength", Label: "Strength", Numeric: true},
			{Key: "intelligence", Label: "Intelligence", Numeric: true},
			{Key: "fortitude", Label: "Fortitude", Numeric: true},
			{Key: "willpower", Label: "Willpower", Numeric: true},
			{Key: "vitality", Label: "Vitality", Numeric: true},
		},
	},
}

func FindCategory(key string) *StatCategory {
	for _, v := range StatCategories {
		if v.Key == key {
			return v
		}
	}
	return nil
}

func FindStat(key string) *StatDef {
	for _, c := range StatCategories {
		for _, s := range c.Stats {
			if s.Key == key {
				return s
			}
		}
	}
	return nil
}

// NumericStats returns every stat a leaderboard can be built for
func NumericStats() []*StatDef {
	var result []*StatDef
	for _, c := range StatCategories {
		for _, s := range c.Stats {
			if s.Numeric {
				result = append(result, s)
			}
		}
	}
	return result
}

type Member struct {
	GuildID     int64     `db:"guild_id"`
	UserID      int64     `db:"user_id"`
	DisplayName string    `db:"display_name"`
	Status      Status    `db:"status"`
	Background  string    `db:"profile_background"`
	JoinedAt    time.Time `db:"joined_at"`
	UpdatedAt   time.Time `db:"updated_at"`

	Stats map[string]*StatValue `db:"-"`
}

type StatValue struct {
	UserID    int64       `db:"user_id"`
	Key       string      `db:"stat_key"`
	Text      null.String `db:"text_value"`
	Num       null.Int64  `db:"num_value"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// StatDisplay returns the stat formatted for display, or an empty string if it isn't set
func (m *Member) StatDisplay(key string) string {
	v, ok := m.Stats[key]
	if !ok {
		return ""
	}

	if v.Num.Valid {
		return common.FormatInt(v.Num.Int64)
	}
	return v.Text.String
}

// StatNum returns a numeric stat, 0 if it isn't set
func (m *Member) StatNum(key string) int64 {
	if v, ok := m.Stats[key]; ok && v.Num.Valid {
		return v.Num.Int64
	}
	return 0
}

// Filter selects which members List returns
type Filter string

const (
	FilterAll     Filter = "all"
	FilterCurrent Filter = "current"
	FilterAlumni  Filter = "alumni"
)

var FilterChoices = []string{"all", "current", "alumni", "leader", "officer", "member"}

func ParseFilter(s string) (Filter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch Filter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterCurrent, FilterAlumni:
		return Filter(s), nil
	}

	status, err := ParseStatus(s)
	if err != nil {
		return "", common.NewValidationErrorf("filter", "unknown filter %q, valid ones are %s", s, strings.Join(FilterChoices, ", "))
	}
	return Filter(status), nil
}

// validateStats parses the submitted values of a category, an empty value clears the stat
func validateStats(category string, values map[string]string) (*StatCategory, []*StatValue, error) {
	cat := FindCategory(category)
	if cat == nil {
		return nil, nil, common.NewValidationErrorf("category", "unknown stat category %q", category)
	}

	result := make([]*StatValue, 0, len(values))
	for key, raw := range values {
		var def *StatDef
		for _, s := range cat.Stats {
			if s.Key == key {
				def = s
				break
			}
		}
		if def == nil {
			return nil, nil, common.NewValidationErrorf(key, "not a %s stat", cat.Name)
		}

		raw = strings.TrimSpace(raw)
		sv := &StatValue{Key: key}
		switch {
		case raw == "":
		case def.Numeric:
			n, err := common.ParseInt(raw)
			if err != nil {
				return nil, nil, common.NewValidationErrorf(def.Label, "%q is not a whole number", raw)
			}
			if n < 0 || n > MaxStatValue {
				return nil, nil, common.NewValidationErrorf(def.Label, "must be between 0 and %s", common.FormatInt(MaxStatValue))
			}
			sv.Num = null.Int64From(n)
		default:
			if len([]rune(raw)) > 100 {
				return nil, nil, common.NewValidationError(def.Label, "can be at most 100 characters")
			}
			sv.Text = null.StringFrom(raw)
		}

		result = append(result, sv)
	}

	return cat, result, nil
}
