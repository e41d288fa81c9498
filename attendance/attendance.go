package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/events"
	"github.com/clanbot/clanbot/rsvp"
	"github.com/jmoiron/sqlx"
)

const RecentLimit = 5

// MarkResult summarizes a Mark call
type MarkResult struct {
	Attended int
	Absent   int

	// Ignored are the submitted users that never responded to the event
	Ignored []int64
}

type Stats struct {
	Total    int `db:"total"`
	Attended int `db:"attended"`
}

func (s *Stats) Percentage() float64 {
	return Percentage(s.Attended, s.Total)
}

// Percentage is attended out of total as a percentage, 0 when total is 0
func Percentage(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(attended) / float64(total) * 100
}

type Record struct {
	EventID   int64     `db:"event_id"`
	EventName string    `db:"name"`
	StartsAt  time.Time `db:"starts_at"`
	Attended  bool      `db:"attended"`
	MarkedAt  time.Time `db:"marked_at"`
}

// Marker records who showed up to events, attendance rows are only ever created for users that responded to the
// event
type Marker struct {
	DB     *sqlx.DB
	RSVPs  *rsvp.Store
	Events *events.Store
	Now    func() time.Time
}

func NewMarker(db *sqlx.DB, rsvps *rsvp.Store, eventStore *events.Store) *Marker {
	return &Marker{
		DB:     db,
		RSVPs:  rsvps,
		Events: eventStore,
		Now:    time.Now,
	}
}

// Mark upserts an attendance row for every user that responded to the event, attended is true for those in
// attendedUserIDs. Submitted users that never responded are ignored. Rows whose attended flag doesn't change
// keep their original marked_by and marked_at, so calling it again with the same arguments leaves the rows untouched.
func (m *Marker) Mark(ctx context.Context, guildID, eventID int64, attendedUserIDs []int64, markerID int64) (*MarkResult, error) {
	if _, err := m.Events.Get(ctx, guildID, eventID); err != nil {
		return nil, err
	}

	rsvps, err := m.RSVPs.ListForEvent(ctx, guildID, eventID)
	if err != nil {
		return nil, err
	}

	result := &MarkResult{}
	responded := make(map[int64]bool, len(rsvps))
	for _, v := range rsvps {
		responded[v.UserID] = true
	}
	for _, v := range attendedUserIDs {
		if !responded[v] && !common.ContainsInt64Slice(result.Ignored, v) {
			result.Ignored = append(result.Ignored, v)
		}
	}

	if len(rsvps) == 0 {
		return result, nil
	}

	tx, err := m.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, common.StoreErr("mark attendance", err)
	}
	defer tx.Rollback()

	const q = `INSERT INTO clan_attendance (guild_id, event_id, user_id, attended, marked_by, marked_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (event_id, user_id) DO UPDATE SET
	attended = excluded.attended,
	marked_by = excluded.marked_by,
	marked_at = excluded.marked_at
WHERE clan_attendance.attended <> excluded.attended`

	now := m.Now().UTC().Truncate(time.Second)
	for _, v := range rsvps {
		attended := common.ContainsInt64Slice(attendedUserIDs, v.UserID)
		_, err = tx.ExecContext(ctx, tx.Rebind(q), guildID, eventID, v.UserID, attended, markerID, now)
		if err != nil {
			return nil, common.StoreErr("mark attendance", err)
		}

		if attended {
			result.Attended++
		} else {
			result.Absent++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, common.StoreErr("mark attendance", err)
	}

	return result, nil
}

// ForEvent returns the marked user ids of an event split by whether they attended
func (m *Marker) ForEvent(ctx context.Context, guildID, eventID int64) (attended, absent []int64, err error) {
	var rows []struct {
		UserID   int64 `db:"user_id"`
		Attended bool  `db:"attended"`
	}

	err = m.DB.SelectContext(ctx, &rows, m.DB.Rebind(`SELECT user_id, attended FROM clan_attendance
WHERE guild_id = ? AND event_id = ? ORDER BY user_id`), guildID, eventID)
	if err != nil {
		return nil, nil, common.StoreErr("event attendance", err)
	}

	for _, v := range rows {
		if v.Attended {
			attended = append(attended, v.UserID)
		} else {
			absent = append(absent, v.UserID)
		}
	}
	return attended, absent, nil
}

// Stats counts the events the user has been marked for and how many of them they attended
func (m *Marker) Stats(ctx context.Context, guildID, userID int64) (*Stats, error) {
	var stats Stats
	err := m.DB.GetContext(ctx, &stats, m.DB.Rebind(`SELECT COUNT(*) AS total,
	COALESCE(SUM(CASE WHEN attended THEN 1 ELSE 0 END), 0) AS attended
FROM clan_attendance WHERE guild_id = ? AND user_id = ?`), guildID, userID)
	if err != nil {
		return nil, common.StoreErr("attendance stats", err)
	}

	return &stats, nil
}

// Recent returns the user's latest attendance records, most recently created events first
func (m *Marker) Recent(ctx context.Context, guildID, userID int64, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = RecentLimit
	}

	var result []*Record
	err := m.DB.SelectContext(ctx, &result, m.DB.Rebind(`SELECT a.event_id, e.name, e.starts_at, a.attended, a.marked_at
FROM clan_attendance a
JOIN clan_events e ON e.id = a.event_id
WHERE a.guild_id = ? AND a.user_id = ?
ORDER BY e.created_at DESC, e.id DESC
LIMIT ?`), guildID, userID, limit)
	if err != nil {
		return nil, common.StoreErr("recent attendance", err)
	}

	return result, nil
}

// AttendanceSummary renders the user's attendance for their profile
func (m *Marker) AttendanceSummary(ctx context.Context, guildID, userID int64) (string, error) {
	stats, err := m.Stats(ctx, guildID, userID)
	if err != nil {
		return "", err
	}

	if stats.Total == 0 {
		return "No events marked yet.", nil
	}

	recent, err := m.Recent(ctx, guildID, userID, RecentLimit)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d/%d events (%.0f%%)", stats.Attended, stats.Total, stats.Percentage()))
	for _, v := range recent {
		mark := "❌"
		if v.Attended {
			mark = "✅"
		}
		b.WriteString(fmt.Sprintf("\n%s %s", mark, common.CutStringShort(v.EventName, 50)))
	}

	return b.String(), nil
}
