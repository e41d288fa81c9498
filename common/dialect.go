package common

import (
	"strings"

	"emperror.dev/errors"
)

// Dialect is the sql flavour the store is running on, it's also the database/sql driver name
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case DialectPostgres, "":
		return DialectPostgres, nil
	case DialectSQLite, "sqlite":
		return DialectSQLite, nil
	}

	return "", errors.Errorf("unsupported database driver %q", s)
}

var schemaTokens = map[Dialect]*strings.Replacer{
	DialectPostgres: strings.NewReplacer(
		"%SERIAL_PK%", "BIGSERIAL PRIMARY KEY",
		"%TIMESTAMPTZ%", "TIMESTAMP WITH TIME ZONE",
		"%JSON%", "JSONB",
	),
	DialectSQLite: strings.NewReplacer(
		"%SERIAL_PK%", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"%TIMESTAMPTZ%", "TIMESTAMP",
		"%JSON%", "TEXT",
	),
}

// ExpandSchema replaces the dialect tokens used in DBSchemas
func (d Dialect) ExpandSchema(schema string) string {
	r, ok := schemaTokens[d]
	if !ok {
		r = schemaTokens[DialectPostgres]
	}

	return r.Replace(schema)
}

// JSONParam casts a bound json string so postgres stores it as jsonb
func (d Dialect) JSONParam() string {
	if d == DialectPostgres {
		return "CAST(? AS JSONB)"
	}
	return "?"
}

// JSONColumn selects a json column as text
func (d Dialect) JSONColumn(col string) string {
	if d == DialectPostgres {
		return col + "::TEXT"
	}
	return col
}
