package common

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"
)

var (
	createTableRegex         = regexp.MustCompile(`(?i)create table if not exists ([0-9a-z_]*) *\(`)
	alterTableAddColumnRegex = regexp.MustCompile(`(?i)alter table ([0-9a-z_]*) add column (?:if not exists )?([0-9a-z_]*)`)
	addIndexRegex            = regexp.MustCompile(`(?i)create (unique )?index if not exists ([0-9a-z_]*) on ([0-9a-z_]*)`)
)

type DBSchema struct {
	Name    string
	Schemas []string
}

// SchemaInitializer runs the DBSchemas of every feature against the store
type SchemaInitializer struct {
	DB      *sqlx.DB
	Dialect Dialect
}

// InitSchemas runs every schema statement in order, statements creating something that already exists are skipped
func (s *SchemaInitializer) InitSchemas(ctx context.Context, name string, schemas ...string) error {
	for i, v := range schemas {
		actualName := fmt.Sprintf("%s[%d]", name, i)
		if err := s.initSchema(ctx, s.Dialect.ExpandSchema(v), actualName); err != nil {
			return err
		}
	}

	return nil
}

// InitAll runs InitSchemas for every provided schema set
func (s *SchemaInitializer) InitAll(ctx context.Context, schemas ...*DBSchema) error {
	for _, v := range schemas {
		if err := s.InitSchemas(ctx, v.Name, v.Schemas...); err != nil {
			return err
		}
	}

	return nil
}

func (s *SchemaInitializer) initSchema(ctx context.Context, schema string, name string) error {
	skip, err := s.checkSkipSchemaInit(ctx, schema)
	if err != nil {
		logger.WithError(err).Error("Failed checking if we should skip schema: ", name)
	}

	if skip {
		return nil
	}

	logger.Debug("Schema initialization: ", name, ": not skipped")

	_, err = s.DB.ExecContext(ctx, schema)
	if err != nil {
		return errors.WithMessage(StoreErr("init schema", err), name)
	}

	return nil
}

func (s *SchemaInitializer) checkSkipSchemaInit(ctx context.Context, schema string) (exists bool, err error) {
	trimmed := strings.TrimSpace(schema)

	if matches := createTableRegex.FindAllStringSubmatch(trimmed, -1); len(matches) > 0 {
		return s.TableExists(ctx, matches[0][1])
	}

	if matches := addIndexRegex.FindAllStringSubmatch(trimmed, -1); len(matches) > 0 {
		return s.checkIndexExists(ctx, matches[0][3], matches[0][2])
	}

	if matches := alterTableAddColumnRegex.FindAllStringSubmatch(trimmed, -1); len(matches) > 0 {
		return s.checkColumnExists(ctx, matches[0][1], matches[0][2])
	}

	return false, nil
}

func (s *SchemaInitializer) TableExists(ctx context.Context, table string) (b bool, err error) {
	query := `
SELECT EXISTS
(
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public'
	AND table_name = $1
);`

	if s.Dialect == DialectSQLite {
		query = `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?);`
	}

	err = s.DB.QueryRowContext(ctx, query, table).Scan(&b)
	return b, err
}

func (s *SchemaInitializer) checkIndexExists(ctx context.Context, table, index string) (b bool, err error) {
	query := `
SELECT EXISTS
(
	SELECT 1
FROM
    pg_class t,
    pg_class i,
    pg_index ix
WHERE
    t.oid = ix.indrelid
    AND i.oid = ix.indexrelid
    AND t.relkind = 'r'
    AND t.relname = $1
    AND i.relname = $2
);`

	if s.Dialect == DialectSQLite {
		query = `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name = ?);`
	}

	err = s.DB.QueryRowContext(ctx, query, table, index).Scan(&b)
	return b, err
}

func (s *SchemaInitializer) checkColumnExists(ctx context.Context, table, column string) (b bool, err error) {
	query := `
SELECT EXISTS
(
SELECT 1
FROM information_schema.columns
WHERE table_name=$1 and column_name=$2
);`

	if s.Dialect == DialectSQLite {
		query = `SELECT EXISTS (SELECT 1 FROM pragma_table_info(?) WHERE name = ?);`
	}

	err = s.DB.QueryRowContext(ctx, query, table, column).Scan(&b)
	return b, err
}
