package config

import (
	"strings"

	"emperror.dev/errors"
	"github.com/mediocregopher/radix/v3"
	"github.com/sirupsen/logrus"
)

// RedisHash holds the option overrides that "clanbot setconfig" writes
const RedisHash = "clanbot_config"

// RedisConfigStore reads overrides from the clanbot_config hash, fields are option names without the "clanbot." prefix
type RedisConfigStore struct {
	Pool radix.Client
}

func hashField(option string) string {
	return strings.TrimPrefix(option, "clanbot.")
}

// GetValue returns nil when the option has no override or redis can't be reached, the next source is used then
func (rs *RedisConfigStore) GetValue(option string) interface{} {
	if rs.Pool == nil {
		return nil
	}

	var v string
	if err := rs.Pool.Do(radix.Cmd(&v, "HGET", RedisHash, hashField(option))); err != nil {
		logrus.WithError(err).WithField("option", option).Error("failed reading config override from redis")
		return nil
	}

	if v == "" {
		return nil
	}
	return v
}

// SaveValue stores an override, an empty value removes it
func (rs *RedisConfigStore) SaveValue(option, value string) error {
	if rs.Pool == nil {
		return errors.New("no redis connection")
	}

	var err error
	if value == "" {
		err = rs.Pool.Do(radix.Cmd(nil, "HDEL", RedisHash, hashField(option)))
	} else {
		err = rs.Pool.Do(radix.Cmd(nil, "HSET", RedisHash, hashField(option), value))
	}
	return errors.WithMessage(err, "redis config override "+option)
}

func (rs *RedisConfigStore) Name() string {
	return "redis"
}
