package events

import (
	"context"
	"time"

	"github.com/clanbot/clanbot/common"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"
)

const eventColumns = `id, guild_id, name, description, starts_at, created_by, created_at, is_active, reminded_at`

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

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Create stores a new active event and returns its id
func (s *Store) Create(ctx context.Context, guildID int64, name, description string, startsAt time.Time, creatorID int64) (int64, error) {
	name, err := ValidateName(name)
	if err != nil {
		return 0, err
	}

	desc, err := ValidateDescription(description)
	if err != nil {
		return 0, err
	}

	now := s.now()
	startsAt = normalizeTime(startsAt)
	if err := ValidateStart(startsAt, now); err != nil {
		return 0, err
	}

	var id int64
	err = s.DB.GetContext(ctx, &id, s.DB.Rebind(`INSERT INTO clan_events (guild_id, name, description, starts_at, created_by, created_at, is_active)
VALUES (?, ?, ?, ?, ?, ?, TRUE)
RETURNING id`), guildID, name, desc, startsAt, creatorID, now)
	if err != nil {
		return 0, common.StoreErr("create event", err)
	}

	return id, nil
}

// Get returns an active event, deleted events are reported as not found
func (s *Store) Get(ctx context.Context, guildID, id int64) (*Event, error) {
	var ev Event
	err := s.DB.GetContext(ctx, &ev, s.DB.Rebind(`SELECT `+eventColumns+` FROM clan_events
WHERE guild_id = ? AND id = ? AND is_active = TRUE`), guildID, id)
	if err != nil {
		return nil, common.WrapStoreErr("get event", err, "event", id)
	}

	return &ev, nil
}

// ListUpcoming returns active events starting between now and now+days inclusive, soonest first
func (s *Store) ListUpcoming(ctx context.Context, guildID int64, days int) ([]*Event, error) {
	if days < 0 || days > MaxListDays {
		return nil, common.NewValidationErrorf("days", "must be between 0 and %d", MaxListDays)
	}

	now := s.now()
	return s.list(ctx, guildID, now, now.Add(time.Duration(days)*24*time.Hour), true)
}

// ListRange returns active events starting within [from, to), soonest first
func (s *Store) ListRange(ctx context.Context, guildID int64, from, to time.Time) ([]*Event, error) {
	return s.list(ctx, guildID, normalizeTime(from), normalizeTime(to), false)
}

func (s *Store) list(ctx context.Context, guildID int64, from, to time.Time, inclusive bool) ([]*Event, error) {
	upper := "<"
	if inclusive {
		upper = "<="
	}

	var result []*Event
	err := s.DB.SelectContext(ctx, &result, s.DB.Rebind(`SELECT `+eventColumns+` FROM clan_events
WHERE guild_id = ? AND is_active = TRUE AND starts_at >= ? AND starts_at `+upper+` ?
ORDER BY starts_at ASC, id ASC`), guildID, from, to)
	if err != nil {
		return nil, common.StoreErr("list events", err)
	}

	return result, nil
}

// Update changes an active event, moving the start time makes the event eligible for a new reminder
func (s *Store) Update(ctx context.Context, guildID, id int64, update EventUpdate) (*Event, error) {
	ev, err := s.Get(ctx, guildID, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		if ev.Name, err = ValidateName(*update.Name); err != nil {
			return nil, err
		}
	}

	if update.Description != nil {
		if ev.Description, err = ValidateDescription(*update.Description); err != nil {
			return nil, err
		}
	}

	if update.StartsAt != nil {
		startsAt := normalizeTime(*update.StartsAt)
		if !startsAt.Equal(ev.StartsAt) {
			if err := ValidateStart(startsAt, s.now()); err != nil {
				return nil, err
			}
			ev.StartsAt = startsAt
			ev.RemindedAt = null.Time{}
		}
	}

	ev.StartsAt = normalizeTime(ev.StartsAt)
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(`UPDATE clan_events SET name = ?, description = ?, starts_at = ?, reminded_at = ?
WHERE guild_id = ? AND id = ? AND is_active = TRUE`), ev.Name, ev.Description, ev.StartsAt, ev.RemindedAt, guildID, id)
	if err != nil {
		return nil, common.StoreErr("update event", err)
	}

	if n, _ := res.RowsAffected(); n < 1 {
		return nil, common.NewNotFound("event", id)
	}

	return ev, nil
}

// Deactivate soft deletes an event
func (s *Store) Deactivate(ctx context.Context, guildID, id int64) error {
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(`UPDATE clan_events SET is_active = FALSE WHERE guild_id = ? AND id = ? AND is_active = TRUE`),
		guildID, id)
	if err != nil {
		return common.StoreErr("deactivate event", err)
	}

	if n, _ := res.RowsAffected(); n < 1 {
		return common.NewNotFound("event", id)
	}
	return nil
}

// MarkReminded claims the event's reminder, it returns false if it was already claimed
func (s *Store) MarkReminded(ctx context.Context, guildID, id int64, at time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(`UPDATE clan_events SET reminded_at = ?
WHERE guild_id = ? AND id = ? AND is_active = TRUE AND reminded_at IS NULL`), normalizeTime(at), guildID, id)
	if err != nil {
		return false, common.StoreErr("mark reminded", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, common.StoreErr("mark reminded", err)
	}

	return n > 0, nil
}

// ClearReminded releases a reminder claim so the next scan can try again
func (s *Store) ClearReminded(ctx context.Context, guildID, id int64) error {
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(`UPDATE clan_events SET reminded_at = NULL WHERE guild_id = ? AND id = ?`), guildID, id)
	return common.StoreErr("clear reminded", err)
}
