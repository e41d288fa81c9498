package config

import (
	"testing"
	"time"

	"github.com/mediocregopher/radix/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHash serves HGET, HSET and HDEL on a single in memory hash
func stubHash(fields map[string]string) radix.Conn {
	return radix.Stub("tcp", "127.0.0.1:6379", func(args []string) interface{} {
		switch args[0] {
		case "HGET":
			if v, ok := fields[args[2]]; ok {
				return v
			}
			return nil
		case "HSET":
			fields[args[2]] = args[3]
			return 1
		case "HDEL":
			delete(fields, args[2])
			return 1
		}
		return nil
	})
}

func TestRedisConfigStore(t *testing.T) {
	fields := map[string]string{}
	store := &RedisConfigStore{Pool: stubHash(fields)}

	require.NoError(t, store.SaveValue("clanbot.reminder_lead", "30m"))
	assert.Equal(t, map[string]string{"reminder_lead": "30m"}, fields)
	assert.Equal(t, "30m", store.GetValue("clanbot.reminder_lead"))
	assert.Nil(t, store.GetValue("clanbot.dm_interval"))

	m := NewConfigManager()
	m.AddSource(MapSource{"clanbot.reminder_lead": "1h"})
	m.AddSource(store)
	lead := m.RegisterOption("clanbot.reminder_lead", "", time.Hour)
	m.Load()
	assert.Equal(t, 30*time.Minute, lead.GetDuration())

	// clearing the override falls back to the earlier source
	require.NoError(t, store.SaveValue("clanbot.reminder_lead", ""))
	assert.Empty(t, fields)
	m.Load()
	assert.Equal(t, time.Hour, lead.GetDuration())
}

func TestRedisConfigStoreWithoutPool(t *testing.T) {
	store := &RedisConfigStore{}
	assert.Nil(t, store.GetValue("clanbot.reminder_lead"))
	assert.Error(t, store.SaveValue("clanbot.reminder_lead", "1m"))
}
