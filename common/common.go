package common

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/cenkalti/backoff"
	"github.com/jmoiron/sqlx"
	"github.com/mediocregopher/radix/v3"

	// database drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// VERSION is overridden at build time with -ldflags "-X github.com/clanbot/clanbot/common.VERSION=..."
	VERSION = "dev"
)

const (
	sentryFlushTimeout = 2 * time.Second
	connectMaxElapsed  = time.Minute
)

// Core holds the shared connections, it's built once by the binary and handed to the plugins
type Core struct {
	Conf    *Config
	DB      *sqlx.DB
	Dialect Dialect

	// Redis is nil if no redis address was configured
	Redis *radix.Pool
}

// Connect opens the database (and redis if configured), retrying the initial ping with exponential backoff
func Connect(ctx context.Context, conf *Config) (*Core, error) {
	db, err := ConnectDB(ctx, conf.DBDriver, conf.DBDSN)
	if err != nil {
		return nil, err
	}

	core := &Core{
		Conf:    conf,
		DB:      db,
		Dialect: conf.DBDriver,
	}

	if conf.Redis != "" {
		pool, err := radix.NewPool("tcp", conf.Redis, 10)
		if err != nil {
			db.Close()
			return nil, errors.WithMessage(err, "redis")
		}
		core.Redis = pool
	}

	return core, nil
}

// ConnectDB opens a pool for the dialect and waits until it's reachable
func ConnectDB(ctx context.Context, dialect Dialect, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(string(dialect), dsn)
	if err != nil {
		return nil, errors.WithMessage(err, "open database")
	}

	if dialect == DialectPostgres {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	} else {
		// sqlite only supports a single writer, in-memory databases are per connection
		db.SetMaxOpenConns(1)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectMaxElapsed

	err = backoff.Retry(func() error {
		pingErr := db.PingContext(ctx)
		if pingErr != nil {
			logger.WithError(pingErr).Warn("database not reachable yet")
		}
		return pingErr
	}, backoff.WithContext(bo, ctx))

	if err != nil {
		db.Close()
		return nil, errors.WithMessage(err, "connect database")
	}

	return db, nil
}

// Close releases the connections held by the core
func (c *Core) Close() error {
	if c.Redis != nil {
		c.Redis.Close()
	}

	return c.DB.Close()
}

// Schemas returns a SchemaInitializer for the core's database
func (c *Core) Schemas() *SchemaInitializer {
	return &SchemaInitializer{DB: c.DB, Dialect: c.Dialect}
}
