package sessions

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process, used when no redis is configured
type MemoryStore struct {
	TTL   time.Duration
	cache *cache.Cache
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryStore{
		TTL:   ttl,
		cache: cache.New(ttl, ttl*2),
		now:   time.Now,
	}
}

func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	s.ExpiresAt = m.now().Add(m.TTL)

	// store a copy so callers mutating their session don't change the stored one without a Put
	cp := *s
	cp.Values = make(map[string]string, len(s.Values))
	for k, v := range s.Values {
		cp.Values[k] = v
	}
	cp.IDs = append([]int64(nil), s.IDs...)

	m.cache.Set(s.ID, &cp, m.TTL)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, notFound()
	}

	stored := v.(*Session)
	if !m.now().Before(stored.ExpiresAt) {
		m.cache.Delete(id)
		return nil, notFound()
	}

	cp := *stored
	cp.Values = make(map[string]string, len(stored.Values))
	for k, v := range stored.Values {
		cp.Values[k] = v
	}
	cp.IDs = append([]int64(nil), stored.IDs...)
	return &cp, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}
