package rsvp

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/events"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"
)

type Response string

const (
	ResponseYes   Response = events.RSVPYes
	ResponseNo    Response = events.RSVPNo
	ResponseMaybe Response = events.RSVPMaybe

	MaxNotesLength = 500
)

var Responses = []Response{ResponseYes, ResponseMaybe, ResponseNo}

func ParseResponse(s string) (Response, error) {
	for _, v := range Responses {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, nil
		}
	}
	return "", common.NewValidationErrorf("response", "%q is not one of Yes, No or Maybe", s)
}

type RSVP struct {
	GuildID     int64       `db:"guild_id"`
	EventID     int64       `db:"event_id"`
	UserID      int64       `db:"user_id"`
	Response    Response    `db:"response"`
	Notes       null.String `db:"notes"`
	RespondedAt time.Time   `db:"responded_at"`

	// from the members table, not set if the user never registered
	DisplayName null.String `db:"display_name"`
}

type Store struct {
	DB  *sqlx.DB
	Now func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// Upsert records the user's response to an active event of the guild, replacing any earlier response
func (s *Store) Upsert(ctx context.Context, guildID, eventID, userID int64, response Response, notes string) error {
	response, err := ParseResponse(string(response))
	if err != nil {
		return err
	}

	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return common.NewValidationErrorf("notes", "can be at most %d characters", MaxNotesLength)
	}

	// selecting from clan_events scopes the write to active events of the guild,
	// response_seq orders responses recorded within the same microsecond
	const q = `INSERT INTO clan_rsvps (guild_id, event_id, user_id, response, notes, responded_at, response_seq)
SELECT e.guild_id, e.id, ?, ?, ?, ?, (SELECT COALESCE(MAX(r.response_seq), 0) + 1 FROM clan_rsvps r WHERE r.event_id = e.id)
FROM clan_events e WHERE e.guild_id = ? AND e.id = ? AND e.is_active = TRUE
ON CONFLICT (event_id, user_id) DO UPDATE SET
	response = excluded.response,
	notes = excluded.notes,
	responded_at = excluded.responded_at,
	response_seq = excluded.response_seq`

	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(q), userID, response, null.NewString(notes, notes != ""),
		s.Now().UTC().Truncate(time.Microsecond), guildID, eventID)
	if err != nil {
		return common.StoreErr("upsert rsvp", err)
	}

	if n, _ := res.RowsAffected(); n < 1 {
		return common.NewNotFound("event", eventID)
	}
	return nil
}

// ListForEvent returns every response to the event, earliest first
func (s *Store) ListForEvent(ctx context.Context, guildID, eventID int64) ([]*RSVP, error) {
	var result []*RSVP
	err := s.DB.SelectContext(ctx, &result, s.DB.Rebind(`SELECT r.guild_id, r.event_id, r.user_id, r.response, r.notes, r.responded_at, m.display_name
FROM clan_rsvps r
LEFT JOIN clan_members m ON m.guild_id = r.guild_id AND m.user_id = r.user_id
WHERE r.guild_id = ? AND r.event_id = ?
ORDER BY r.responded_at ASC, r.response_seq ASC`), guildID, eventID)
	if err != nil {
		return nil, common.StoreErr("list rsvps", err)
	}

	return result, nil
}

// CountsForEvent implements events.RSVPCounter
func (s *Store) CountsForEvent(ctx context.Context, guildID, eventID int64) (*events.RSVPCounts, error) {
	var rows []struct {
		Response Response `db:"response"`
		Count    int      `db:"count"`
	}

	err := s.DB.SelectContext(ctx, &rows, s.DB.Rebind(`SELECT response, COUNT(*) AS count FROM clan_rsvps
WHERE guild_id = ? AND event_id = ? GROUP BY response`), guildID, eventID)
	if err != nil {
		return nil, common.StoreErr("count rsvps", err)
	}

	counts := &events.RSVPCounts{}
	for _, v := range rows {
		switch v.Response {
		case ResponseYes:
			counts.Yes = v.Count
		case ResponseNo:
			counts.No = v.Count
		case ResponseMaybe:
			counts.Maybe = v.Count
		}
	}
	return counts, nil
}

var _ events.RSVPCounter = (*Store)(nil)

// Filter returns the responses matching response, order is kept
func Filter(rsvps []*RSVP, response Response) []*RSVP {
	result := make([]*RSVP, 0, len(rsvps))
	for _, v := range rsvps {
		if v.Response == response {
			result = append(result, v)
		}
	}
	return result
}

func Counts(rsvps []*RSVP) events.RSVPCounts {
	var counts events.RSVPCounts
	for _, v := range rsvps {
		switch v.Response {
		case ResponseYes:
			counts.Yes++
		case ResponseNo:
			counts.No++
		case ResponseMaybe:
			counts.Maybe++
		}
	}
	return counts
}

// UserIDs returns the user ids of the responses, in order
func UserIDs(rsvps []*RSVP) []int64 {
	result := make([]int64, 0, len(rsvps))
	for _, v := range rsvps {
		result = append(result, v.UserID)
	}
	return result
}
