package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clanbot/clanbot/common"
	"github.com/mediocregopher/radix/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreBasics(t *testing.T, store Store) {
	ctx := context.Background()

	s := New("attendance", 1, 2)
	s.SetInt("event", 15)
	s.IDs = []int64{3, 4}
	require.NoError(t, store.Put(ctx, s))

	loaded, err := Load(ctx, store, s.ID, "attendance", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(15), loaded.Int("event"))
	assert.Equal(t, []int64{3, 4}, loaded.IDs)
	assert.Equal(t, int64(1), loaded.GuildID)

	_, err = Load(ctx, store, s.ID, "attendance", 99)
	var permErr *common.PermissionError
	assert.ErrorAs(t, err, &permErr)

	_, err = Load(ctx, store, s.ID, "vote", 2)
	assert.True(t, common.IsNotFound(err))

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.True(t, common.IsNotFound(err))
}

func TestMemoryStore(t *testing.T) {
	testStoreBasics(t, NewMemoryStore(time.Minute))
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	s := New("vote_create", 1, 2)
	require.NoError(t, store.Put(context.Background(), s))

	_, err := store.Get(context.Background(), s.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(context.Background(), s.ID)
	assert.True(t, common.IsNotFound(err))
}

func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	s := New("x", 1, 2)
	s.Set("a", "1")
	require.NoError(t, store.Put(context.Background(), s))

	s.Set("a", "2")
	loaded, err := store.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", loaded.Get("a"))
}

// stubRedis implements just enough of SET/GET/DEL for the session store
func stubRedis() radix.Conn {
	var mu sync.Mutex
	data := make(map[string]string)

	return radix.Stub("tcp", "127.0.0.1:6379", func(args []string) interface{} {
		mu.Lock()
		defer mu.Unlock()

		switch args[0] {
		case "SET":
			data[args[1]] = args[2]
			return "OK"
		case "GET":
			v, ok := data[args[1]]
			if !ok {
				return nil
			}
			return v
		case "DEL":
			delete(data, args[1])
			return 1
		}
		return nil
	})
}

func TestRedisStore(t *testing.T) {
	testStoreBasics(t, NewRedisStore(stubRedis(), time.Minute))
}
