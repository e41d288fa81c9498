package rosters

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/clanbot/clanbot/common"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	MaxRooms      = 20
	MaxPerRoom    = 50
	MaxNameLength = 100
)

type Candidate struct {
	Username string `json:"username"`
	UserID   int64  `json:"user_id"`
}

type Room struct {
	Number  int          `json:"room_number"`
	Members []*Candidate `json:"members"`
}

// Layout is the stored shape of a roster
type Layout struct {
	Rooms          []*Room `json:"rooms"`
	TotalRooms     int     `json:"total_rooms"`
	MembersPerRoom int     `json:"members_per_room"`
}

// Partition fills rooms in order with consecutive candidates, candidates past rooms*perRoom are left out
func Partition(candidates []*Candidate, rooms, perRoom int) (*Layout, error) {
	if rooms < 1 || rooms > MaxRooms {
		return nil, common.NewValidationErrorf("rooms", "must be between 1 and %d", MaxRooms)
	}
	if perRoom < 1 || perRoom > MaxPerRoom {
		return nil, common.NewValidationErrorf("per room", "must be between 1 and %d", MaxPerRoom)
	}

	needed := rooms * perRoom
	if len(candidates) < needed {
		return nil, &common.InsufficientCandidatesError{Needed: needed, Have: len(candidates)}
	}

	layout := &Layout{
		Rooms:          make([]*Room, 0, rooms),
		TotalRooms:     rooms,
		MembersPerRoom: perRoom,
	}

	for i := 0; i < rooms; i++ {
		members := make([]*Candidate, perRoom)
		copy(members, candidates[i*perRoom:(i+1)*perRoom])
		layout.Rooms = append(layout.Rooms, &Room{Number: i + 1, Members: members})
	}

	return layout, nil
}

type Roster struct {
	ID        int64     `db:"id"`
	GuildID   int64     `db:"guild_id"`
	EventID   int64     `db:"event_id"`
	Name      string    `db:"name"`
	RoomCount int       `db:"room_count"`
	PerRoom   int       `db:"per_room"`
	CreatedBy int64     `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`

	RawData string  `db:"roster_data"`
	Layout  *Layout `db:"-"`
}

// Store keeps roster snapshots, a roster is never modified after it's created
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

func (s *Store) Create(ctx context.Context, guildID, eventID int64, name string, layout *Layout, createdBy int64) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return 0, common.NewValidationErrorf("name", "must be between 1 and %d characters", MaxNameLength)
	}

	if layout == nil || len(layout.Rooms) == 0 {
		return 0, common.NewValidationError("roster", "has no rooms")
	}

	serialized, err := json.Marshal(layout)
	if err != nil {
		return 0, common.StoreErr("marshal roster", err)
	}

	// the event has to be an active event of the guild
	q := `INSERT INTO clan_rosters (guild_id, event_id, name, room_count, per_room, roster_data, created_by, created_at)
SELECT guild_id, id, ?, ?, ?, ` + s.Dialect.JSONParam() + `, ?, ? FROM clan_events WHERE guild_id = ? AND id = ? AND is_active = TRUE
RETURNING id`

	var id int64
	err = s.DB.GetContext(ctx, &id, s.DB.Rebind(q), name, layout.TotalRooms, layout.MembersPerRoom, string(serialized),
		createdBy, s.Now().UTC().Truncate(time.Second), guildID, eventID)
	if err != nil {
		return 0, common.WrapStoreErr("create roster", err, "event", eventID)
	}

	return id, nil
}

func (s *Store) selectQuery() string {
	return `SELECT id, guild_id, event_id, name, room_count, per_room, ` + s.Dialect.JSONColumn("roster_data") + ` AS roster_data, created_by, created_at
FROM clan_rosters `
}

func (s *Store) Get(ctx context.Context, guildID, id int64) (*Roster, error) {
	var r Roster
	err := s.DB.GetContext(ctx, &r, s.DB.Rebind(s.selectQuery()+"WHERE guild_id = ? AND id = ?"), guildID, id)
	if err != nil {
		return nil, common.WrapStoreErr("get roster", err, "roster", id)
	}

	if err := r.decode(); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListForEvent returns the event's rosters, newest first
func (s *Store) ListForEvent(ctx context.Context, guildID, eventID int64) ([]*Roster, error) {
	var result []*Roster
	err := s.DB.SelectContext(ctx, &result, s.DB.Rebind(s.selectQuery()+"WHERE guild_id = ? AND event_id = ? ORDER BY created_at DESC, id DESC"), guildID, eventID)
	if err != nil {
		return nil, common.StoreErr("list rosters", err)
	}

	for _, v := range result {
		if err := v.decode(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *Roster) decode() error {
	var layout Layout
	if err := json.Unmarshal([]byte(r.RawData), &layout); err != nil {
		return common.StoreErr("decode roster", err)
	}
	r.Layout = &layout
	return nil
}
