package votes

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/clanbot/clanbot/common"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/volatiletech/null/v8"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	MinOptions = 2
	MaxOptions = 10

	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxOptionLength      = 80

	MinDurationHours = 1
	MaxDurationHours = 168
)

type Vote struct {
	ID             int64       `db:"id"`
	GuildID        int64       `db:"guild_id"`
	Title          string      `db:"title"`
	Description    null.String `db:"description"`
	EligibleRoleID int64       `db:"eligible_role_id"`
	CreatedBy      int64       `db:"created_by"`
	EndsAt         time.Time   `db:"ends_at"`
	IsAnonymous    bool        `db:"is_anonymous"`
	IsActive       bool        `db:"is_active"`
	CreatedAt      time.Time   `db:"created_at"`

	RawOptions string   `db:"options"`
	Options    []string `db:"-"`
}

// Open returns true if votes can still be cast at now
func (v *Vote) Open(now time.Time) bool {
	return v.IsActive && now.Before(v.EndsAt)
}

// NewVote is a validated vote that has not been stored yet
type NewVote struct {
	Title          string
	Description    string
	Options        []string
	Duration       time.Duration
	EligibleRoleID int64
	CreatedBy      int64
}

// ParseNewVote validates the vote creation form, options are one per line with blank lines skipped
func ParseNewVote(title, description, options, hours string) (*NewVote, error) {
	nv := &NewVote{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Options:     common.SplitLines(options),
	}

	n, err := strconv.Atoi(strings.TrimSpace(hours))
	if err != nil {
		return nil, common.NewValidationErrorf("duration", "must be between %d and %d hours", MinDurationHours, MaxDurationHours)
	}
	nv.Duration = time.Duration(n) * time.Hour

	if err := nv.Validate(); err != nil {
		return nil, err
	}
	return nv, nil
}

func (nv *NewVote) Validate() error {
	if nv.Title == "" || utf8.RuneCountInString(nv.Title) > MaxTitleLength {
		return common.NewValidationErrorf("title", "must be between 1 and %d characters", MaxTitleLength)
	}

	if utf8.RuneCountInString(nv.Description) > MaxDescriptionLength {
		return common.NewValidationErrorf("description", "can be at most %d characters", MaxDescriptionLength)
	}

	if len(nv.Options) < MinOptions || len(nv.Options) > MaxOptions {
		return common.NewValidationErrorf("options", "provide between %d and %d options, one per line", MinOptions, MaxOptions)
	}

	for i, v := range nv.Options {
		if strings.TrimSpace(v) == "" {
			return common.NewValidationErrorf("options", "option %d is empty", i+1)
		}
		if utf8.RuneCountInString(v) > MaxOptionLength {
			return common.NewValidationErrorf("options", "option %d is longer than %d characters", i+1, MaxOptionLength)
		}
	}

	hours := int(nv.Duration / time.Hour)
	if nv.Duration%time.Hour != 0 || hours < MinDurationHours || hours > MaxDurationHours {
		return common.NewValidationErrorf("duration", "must be between %d and %d hours", MinDurationHours, MaxDurationHours)
	}

	return nil
}

// Tally is the anonymous result of a vote, Counts has one entry per option
type Tally struct {
	Vote   *Vote
	Counts []int
	Total  int
}

// Percentage of the votes cast for option i
func (t *Tally) Percentage(i int) float64 {
	if t.Total == 0 || i < 0 || i >= len(t.Counts) {
		return 0
	}
	return float64(t.Counts[i]) / float64(t.Total) * 100
}

type Store struct {
	DB      *sqlx.DB
	Dialect common.Dialect
	Now     func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		DB:      db,
		Dialect: common.Dialect(db.DriverName()),
		Now:     time.Now,
	}
}

func (s *Store) Create(ctx context.Context, guildID int64, nv *NewVote) (*Vote, error) {
	if err := nv.Validate(); err != nil {
		return nil, err
	}

	options, err := json.Marshal(nv.Options)
	if err != nil {
		return nil, common.StoreErr("marshal vote options", err)
	}

	now := s.Now().UTC().Truncate(time.Second)
	q := `INSERT INTO clan_votes (guild_id, title, description, options, eligible_role_id, created_by, ends_at, is_anonymous, is_active, created_at)
VALUES (?, ?, ?, ` + s.Dialect.JSONParam() + `, ?, ?, ?, TRUE, TRUE, ?)
RETURNING id`

	var id int64
	err = s.DB.GetContext(ctx, &id, s.DB.Rebind(q), guildID, nv.Title, null.NewString(nv.Description, nv.Description != ""),
		string(options), nv.EligibleRoleID, nv.CreatedBy, now.Add(nv.Duration), now)
	if err != nil {
		return nil, common.StoreErr("create vote", err)
	}

	return s.Get(ctx, guildID, id)
}

func (s *Store) selectQuery() string {
	return `SELECT id, guild_id, title, description, ` + s.Dialect.JSONColumn("options") + ` AS options, eligible_role_id,
	created_by, ends_at, is_anonymous, is_active, created_at
FROM clan_votes `
}

// Get returns the vote, closed votes included
func (s *Store) Get(ctx context.Context, guildID, id int64) (*Vote, error) {
	var v Vote
	err := s.DB.GetContext(ctx, &v, s.DB.Rebind(s.selectQuery()+"WHERE guild_id = ? AND id = ?"), guildID, id)
	if err != nil {
		return nil, common.WrapStoreErr("get vote", err, "vote", id)
	}

	if err := v.decode(); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListOpen returns the votes that are still accepting responses, ending soonest first
func (s *Store) ListOpen(ctx context.Context, guildID int64) ([]*Vote, error) {
	var result []*Vote
	err := s.DB.SelectContext(ctx, &result, s.DB.Rebind(s.selectQuery()+"WHERE guild_id = ? AND is_active = TRUE AND ends_at > ? ORDER BY ends_at ASC, id ASC"),
		guildID, s.Now().UTC().Truncate(time.Second))
	if err != nil {
		return nil, common.StoreErr("list votes", err)
	}

	for _, v := range result {
		if err := v.decode(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (v *Vote) decode() error {
	if err := json.Unmarshal([]byte(v.RawOptions), &v.Options); err != nil {
		return common.StoreErr("decode vote options", err)
	}
	return nil
}

// Cast records the user's choice, replacing any earlier one
func (s *Store) Cast(ctx context.Context, guildID, voteID, userID int64, option int, now time.Time) error {
	v, err := s.Get(ctx, guildID, voteID)
	if err != nil {
		return err
	}

	if !v.Open(now) {
		return common.NewValidationError("vote", "this vote has ended")
	}

	if option < 0 || option >= len(v.Options) {
		return common.NewValidationErrorf("option", "%d is not an option of this vote", option+1)
	}

	const q = `INSERT INTO clan_vote_responses (guild_id, vote_id, user_id, selected_option, responded_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (vote_id, user_id) DO UPDATE SET
	selected_option = excluded.selected_option,
	responded_at = excluded.responded_at`

	_, err = s.DB.ExecContext(ctx, s.DB.Rebind(q), guildID, voteID, userID, option, now.UTC().Truncate(time.Second))
	if err != nil {
		return common.StoreErr("cast vote", err)
	}
	return nil
}

// Results counts the responses per option, voters are never part of the result
func (s *Store) Results(ctx context.Context, guildID, voteID int64) (*Tally, error) {
	v, err := s.Get(ctx, guildID, voteID)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Option int `db:"selected_option"`
		Count  int `db:"count"`
	}

	err = s.DB.SelectContext(ctx, &rows, s.DB.Rebind(`SELECT selected_option, COUNT(*) AS count FROM clan_vote_responses
WHERE guild_id = ? AND vote_id = ? GROUP BY selected_option`), guildID, voteID)
	if err != nil {
		return nil, common.StoreErr("vote results", err)
	}

	tally := &Tally{Vote: v, Counts: make([]int, len(v.Options))}
	for _, r := range rows {
		if r.Option < 0 || r.Option >= len(tally.Counts) {
			continue
		}
		tally.Counts[r.Option] = r.Count
		tally.Total += r.Count
	}

	return tally, nil
}

// Close stops the vote from accepting responses
func (s *Store) Close(ctx context.Context, guildID, voteID int64) error {
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(`UPDATE clan_votes SET is_active = FALSE WHERE guild_id = ? AND id = ? AND is_active = TRUE`), guildID, voteID)
	if err != nil {
		return common.StoreErr("close vote", err)
	}

	if n, _ := res.RowsAffected(); n < 1 {
		return common.NewNotFound("open vote", voteID)
	}
	return nil
}
