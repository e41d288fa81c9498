package sessions

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/clanbot/clanbot/common"
	"github.com/mediocregopher/radix/v3"
	"github.com/vmihailenco/msgpack"
)

// RedisStore keeps sessions in redis so they survive restarts and work across processes
type RedisStore struct {
	Client radix.Client
	TTL    time.Duration
}

func NewRedisStore(client radix.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStore{Client: client, TTL: ttl}
}

func redisKey(id string) string {
	return "clanbot_session:" + id
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	s.ExpiresAt = time.Now().Add(r.TTL)

	b, err := msgpack.Marshal(s)
	if err != nil {
		return errors.WithMessage(err, "marshal session")
	}

	err = r.Client.Do(radix.FlatCmd(nil, "SET", redisKey(s.ID), b, "PX", r.TTL.Milliseconds()))
	return common.StoreErr("put session", err)
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	var b []byte
	mn := radix.MaybeNil{Rcv: &b}
	err := r.Client.Do(radix.Cmd(&mn, "GET", redisKey(id)))
	if err != nil {
		return nil, common.StoreErr("get session", err)
	}

	if mn.Nil || len(b) == 0 {
		return nil, notFound()
	}

	var s Session
	err = msgpack.Unmarshal(b, &s)
	if err != nil {
		logger.WithError(err).WithField("session", id).Error("failed decoding session")
		return nil, notFound()
	}

	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	err := r.Client.Do(radix.Cmd(nil, "DEL", redisKey(id)))
	return common.StoreErr("delete session", err)
}
