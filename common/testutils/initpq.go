package testutils

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/clanbot/clanbot/common"
	"github.com/jmoiron/sqlx"

	// database drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var sqliteCounter int64

// OpenSQLite returns a fresh in-memory sqlite database with the provided schema sets initialized
func OpenSQLite(t testing.TB, schemas ...*common.DBSchema) *sqlx.DB {
	t.Helper()

	n := atomic.AddInt64(&sqliteCounter, 1)
	dsn := fmt.Sprintf("file:clanbot_test_%d?mode=memory&cache=shared&_foreign_keys=1", n)

	db, err := sqlx.Open(string(common.DialectSQLite), dsn)
	if err != nil {
		t.Fatalf("failed opening sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		db.Close()
	})

	initializer := &common.SchemaInitializer{DB: db, Dialect: common.DialectSQLite}
	err = initializer.InitAll(context.Background(), schemas...)
	if err != nil {
		t.Fatalf("failed initializing schemas: %v", err)
	}

	return db
}

// Schema is shorthand for building a DBSchema in tests
func Schema(name string, schemas []string) *common.DBSchema {
	return &common.DBSchema{Name: name, Schemas: schemas}
}

// ConnectPQ connects to a postgres database for testing purposes
func ConnectPQ() (*sqlx.DB, error) {
	host := os.Getenv("CLANBOT_TEST_PQ_HOST")
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("CLANBOT_TEST_PQ_USER")
	if user == "" {
		user = "clanbot_test"
	}

	dbPassword := os.Getenv("CLANBOT_TEST_PQ_PASSWORD")
	sslMode := os.Getenv("CLANBOT_TEST_PQ_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	dbName := os.Getenv("CLANBOT_TEST_PQ_DB")
	if dbName == "" {
		dbName = "clanbot_test"
	}

	if !strings.Contains(dbName, "test") {
		panic("Test database name has to contain 'test', this is a safety measure to protect against running tests on production systems.")
	}

	connStr := fmt.Sprintf("host=%s user=%s dbname=%s sslmode=%s password='%s'", host, user, dbName, sslMode, dbPassword)
	return sqlx.Open(string(common.DialectPostgres), connStr)
}

// RequirePQ connects to the postgres test database, skipping the test if CLANBOT_TEST_PQ_HOST isn't set
func RequirePQ(t testing.TB) *sqlx.DB {
	t.Helper()

	if os.Getenv("CLANBOT_TEST_PQ_HOST") == "" {
		t.Skip("CLANBOT_TEST_PQ_HOST not set, skipping postgres test")
	}

	db, err := ConnectPQ()
	if err != nil {
		t.Fatalf("failed connecting to postgres: %v", err)
	}

	if err = db.Ping(); err != nil {
		t.Skip("postgres not reachable: ", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// ClearTables deletes all rows from a table, and panics if an error occurs
// usefull for defers for test cleanup
func ClearTables(db *sqlx.DB, tables ...string) {
	for _, v := range tables {
		_, err := db.Exec("DELETE FROM " + v + ";")
		if err != nil {
			panic(err)
		}
	}
}
