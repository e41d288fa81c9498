package members

import (
	"context"
	"strconv"
	"time"

	"github.com/clanbot/clanbot/common"
	"github.com/jmoiron/sqlx"
)

const (
	LeaderboardPageSize = 10

	// MaxCurrentMembers is how many current members a clan is expected to have, it's only used for display
	MaxCurrentMembers = 100
)

const memberColumns = `guild_id, user_id, display_name, status, profile_background, joined_at, updated_at`

type Store struct {
	DB  *sqlx.DB
	Now func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

func (s *Store) now() time.Time {
	return s.Now().UTC().Truncate(time.Second)
}

// EnsureMember registers the user as a member if they aren't one already and refreshes their display name
func (s *Store) EnsureMember(ctx context.Context, guildID, userID int64, displayName string) (*Member, error) {
	if displayName == "" {
		displayName = strconv.FormatInt(userID, 10)
	}

	now := s.now()
	const q = `INSERT INTO clan_members (guild_id, user_id, display_name, status, profile_background, joined_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (guild_id, user_id) DO UPDATE SET display_name = excluded.display_name`

	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(q), guildID, userID, displayName, StatusMember, DefaultBackground, now, now)
	if err != nil {
		return nil, common.StoreErr("ensure member", err)
	}

	return s.Get(ctx, guildID, userID)
}

// Get returns the member along with their stats
func (s *Store) Get(ctx context.Context, guildID, userID int64) (*Member, error) {
	var m Member
	err := s.DB.GetContext(ctx, &m, s.DB.Rebind(`SELECT `+memberColumns+` FROM clan_members WHERE guild_id = ? AND user_id = ?`), guildID, userID)
	if err != nil {
		return nil, common.WrapStoreErr("get member", err, "member", userID)
	}

	var stats []*StatValue
	err = s.DB.SelectContext(ctx, &stats, s.DB.Rebind(`SELECT user_id, stat_key, text_value, num_value, updated_at
FROM clan_member_stats WHERE guild_id = ? AND user_id = ?`), guildID, userID)
	if err != nil {
		return nil, common.StoreErr("get member stats", err)
	}

	m.Stats = make(map[string]*StatValue, len(stats))
	for _, v := range stats {
		m.Stats[v.Key] = v
	}

	return &m, nil
}

// List returns the members matching filter ordered by when they joined, stats included
func (s *Store) List(ctx context.Context, guildID int64, filter Filter) ([]*Member, error) {
	q := `SELECT ` + memberColumns + ` FROM clan_members WHERE guild_id = ?`
	args := []interface{}{guildID}

	switch filter {
	case FilterAll, "":
	case FilterCurrent:
		q += ` AND status <> ?`
		args = append(args, StatusAlumni)
	case FilterAlumni:
		q += ` AND status = ?`
		args = append(args, StatusAlumni)
	default:
		status, err := ParseStatus(string(filter))
		if err != nil {
			return nil, err
		}
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY joined_at ASC, user_id ASC`

	var result []*Member
	err := s.DB.SelectContext(ctx, &result, s.DB.Rebind(q), args...)
	if err != nil {
		return nil, common.StoreErr("list members", err)
	}

	if len(result) == 0 {
		return result, nil
	}

	var stats []*StatValue
	err = s.DB.SelectContext(ctx, &stats, s.DB.Rebind(`SELECT user_id, stat_key, text_value, num_value, updated_at
FROM clan_member_stats WHERE guild_id = ?`), guildID)
	if err != nil {
		return nil, common.StoreErr("list member stats", err)
	}

	byUser := make(map[int64]*Member, len(result))
	for _, m := range result {
		m.Stats = make(map[string]*StatValue)
		byUser[m.UserID] = m
	}
	for _, v := range stats {
		if m, ok := byUser[v.UserID]; ok {
			m.Stats[v.Key] = v
		}
	}

	return result, nil
}

// CurrentMemberIDs returns the user ids of every non alumni member
func (s *Store) CurrentMemberIDs(ctx context.Context, guildID int64) ([]int64, error) {
	var result []int64
	err := s.DB.SelectContext(ctx, &result, s.DB.Rebind(`SELECT user_id FROM clan_members
WHERE guild_id = ? AND status <> ? ORDER BY joined_at ASC, user_id ASC`), guildID, StatusAlumni)
	if err != nil {
		return nil, common.StoreErr("list current member ids", err)
	}

	return result, nil
}

// SetStatus changes the status of the provided members, returns how many were updated
func (s *Store) SetStatus(ctx context.Context, guildID int64, userIDs []int64, status Status) (int, error) {
	status, err := ParseStatus(string(status))
	if err != nil {
		return 0, err
	}

	if len(userIDs) == 0 {
		return 0, nil
	}

	q, args, err := sqlx.In(`UPDATE clan_members SET status = ?, updated_at = ? WHERE guild_id = ? AND user_id IN (?)`,
		status, s.now(), guildID, userIDs)
	if err != nil {
		return 0, common.StoreErr("set status", err)
	}

	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(q), args...)
	if err != nil {
		return 0, common.StoreErr("set status", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, common.StoreErr("set status", err)
	}

	return int(n), nil
}

// UpdateStats validates and stores the values of one stat category, nothing is written if any value is invalid
func (s *Store) UpdateStats(ctx context.Context, guildID, userID int64, category string, values map[string]string) error {
	_, parsed, err := validateStats(category, values)
	if err != nil {
		return err
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return common.StoreErr("update stats", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS (SELECT 1 FROM clan_members WHERE guild_id = ? AND user_id = ?)`), guildID, userID)
	if err != nil {
		return common.StoreErr("update stats", err)
	}
	if !exists {
		return common.NewNotFound("member", userID)
	}

	now := s.now()
	const upsert = `INSERT INTO clan_member_stats (guild_id, user_id, stat_key, text_value, num_value, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (guild_id, user_id, stat_key) DO UPDATE SET
	text_value = excluded.text_value,
	num_value = excluded.num_value,
	updated_at = excluded.updated_at`

	for _, v := range parsed {
		if !v.Text.Valid && !v.Num.Valid {
			_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM clan_member_stats WHERE guild_id = ? AND user_id = ? AND stat_key = ?`),
				guildID, userID, v.Key)
		} else {
			_, err = tx.ExecContext(ctx, tx.Rebind(upsert), guildID, userID, v.Key, v.Text, v.Num, now)
		}
		if err != nil {
			return common.StoreErr("update stats", err)
		}
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE clan_members SET updated_at = ? WHERE guild_id = ? AND user_id = ?`), now, guildID, userID)
	if err != nil {
		return common.StoreErr("update stats", err)
	}

	return common.StoreErr("update stats", tx.Commit())
}

// SetBackground changes the member's profile background
func (s *Store) SetBackground(ctx context.Context, guildID, userID int64, background string) error {
	found := false
	for _, v := range Backgrounds {
		if v == background {
			found = true
			break
		}
	}
	if !found {
		return common.NewValidationErrorf("background", "unknown background %q", background)
	}

	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(`UPDATE clan_members SET profile_background = ?, updated_at = ? WHERE guild_id = ? AND user_id = ?`),
		background, s.now(), guildID, userID)
	if err != nil {
		return common.StoreErr("set background", err)
	}

	if n, _ := res.RowsAffected(); n < 1 {
		return common.NewNotFound("member", userID)
	}
	return nil
}

type LeaderboardEntry struct {
	Rank        int    `db:"-"`
	UserID      int64  `db:"user_id"`
	DisplayName string `db:"display_name"`
	Status      Status `db:"status"`
	Value       int64  `db:"num_value"`
}

type LeaderboardPage struct {
	Stat    *StatDef
	Page    int
	Pages   int
	Total   int
	Entries []*LeaderboardEntry
}

// Leaderboard ranks current members by a numeric stat, highest first. Pages start at 1 and are clamped to the
// available range
func (s *Store) Leaderboard(ctx context.Context, guildID int64, statKey string, page int) (*LeaderboardPage, error) {
	stat := FindStat(statKey)
	if stat == nil || !stat.Numeric {
		return nil, common.NewValidationErrorf("stat", "%q can't be ranked", statKey)
	}

	var total int
	err := s.DB.GetContext(ctx, &total, s.DB.Rebind(`SELECT COUNT(*) FROM clan_member_stats s
JOIN clan_members m ON m.guild_id = s.guild_id AND m.user_id = s.user_id
WHERE s.guild_id = ? AND s.stat_key = ? AND s.num_value IS NOT NULL AND m.status <> ?`), guildID, statKey, StatusAlumni)
	if err != nil {
		return nil, common.StoreErr("leaderboard count", err)
	}

	result := &LeaderboardPage{
		Stat:  stat,
		Total: total,
		Pages: (total + LeaderboardPageSize - 1) / LeaderboardPageSize,
	}
	if result.Pages < 1 {
		result.Pages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > result.Pages {
		page = result.Pages
	}
	result.Page = page

	offset := (page - 1) * LeaderboardPageSize
	err = s.DB.SelectContext(ctx, &result.Entries, s.DB.Rebind(`SELECT m.user_id, m.display_name, m.status, s.num_value
FROM clan_member_stats s
JOIN clan_members m ON m.guild_id = s.guild_id AND m.user_id = s.user_id
WHERE s.guild_id = ? AND s.stat_key = ? AND s.num_value IS NOT NULL AND m.status <> ?
ORDER BY s.num_value DESC, m.joined_at ASC, m.user_id ASC
LIMIT ? OFFSET ?`), guildID, statKey, StatusAlumni, LeaderboardPageSize, offset)
	if err != nil {
		return nil, common.StoreErr("leaderboard", err)
	}

	for i, v := range result.Entries {
		v.Rank = offset + i + 1
	}

	return result, nil
}
