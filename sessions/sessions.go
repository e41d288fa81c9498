// Package sessions keeps the state of multi step interactive flows (a modal followed by a select menu, a multi
// select followed by a confirm button) between interactions. Sessions expire, after which the flow is inert.
package sessions

import (
	"context"
	"strconv"
	"time"

	"github.com/clanbot/clanbot/common"
	"github.com/google/uuid"
)

var logger = common.GetFixedPrefixLogger("sessions")

const DefaultTTL = 5 * time.Minute

// Session is the state of one interactive flow, only its owner may continue it
type Session struct {
	ID      string
	Kind    string
	GuildID int64
	UserID  int64

	Values map[string]string
	IDs    []int64

	ExpiresAt time.Time
}

// New creates a session owned by userID, the ID is a fresh correlation id
func New(kind string, guildID, userID int64) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Kind:    kind,
		GuildID: guildID,
		UserID:  userID,
		Values:  make(map[string]string),
	}
}

func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	s.Values[key] = value
}

func (s *Session) Get(key string) string {
	return s.Values[key]
}

func (s *Session) SetInt(key string, v int64) {
	s.Set(key, strconv.FormatInt(v, 10))
}

func (s *Session) Int(key string) int64 {
	n, _ := strconv.ParseInt(s.Values[key], 10, 64)
	return n
}

// Store persists sessions for a limited time
type Store interface {
	// Put saves the session and sets its expiry to now + the store's ttl
	Put(ctx context.Context, s *Session) error
	// Get returns a NotFoundError if the session doesn't exist or has expired
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// Load fetches a session, checks its kind and that userID owns it
func Load(ctx context.Context, store Store, id, kind string, userID int64) (*Session, error) {
	s, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.Kind != kind {
		return nil, common.NewNotFound("menu", nil)
	}

	if s.UserID != userID {
		return nil, common.NewPermissionError("use someone else's menu")
	}

	return s, nil
}

func notFound() error {
	return &common.NotFoundError{Kind: "menu, it may have expired"}
}
