package store

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type dialect struct {
	driver string
	schema []string
}

var sqliteDialect = dialect{
	driver: DriverSQLite,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS owners (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			device_token TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS targets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id INTEGER NOT NULL REFERENCES owners(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			keywords TEXT NOT NULL,
			price_min REAL,
			price_max REAL,
			render BOOLEAN NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT 1,
			last_match_state BOOLEAN NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			status_message TEXT NOT NULL DEFAULT '',
			last_checked_at DATETIME,
			last_matched_at DATETIME,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			target_id INTEGER NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
			matched_text TEXT NOT NULL,
			matched_price REAL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_target ON history(target_id, created_at)`,
	},
}

var postgresDialect = dialect{
	driver: DriverPostgres,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS owners (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			device_token TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS targets (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES owners(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			keywords TEXT NOT NULL,
			price_min DOUBLE PRECISION,
			price_max DOUBLE PRECISION,
			render BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_match_state BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL,
			status_message TEXT NOT NULL DEFAULT '',
			last_checked_at TIMESTAMPTZ,
			last_matched_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id BIGSERIAL PRIMARY KEY,
			target_id BIGINT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
			matched_text TEXT NOT NULL,
			matched_price DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_target ON history(target_id, created_at)`,
	},
}

func dialectFor(driver string) (dialect, bool) {
	switch driver {
	case DriverSQLite:
		return sqliteDialect, true
	case DriverPostgres:
		return postgresDialect, true
	default:
		return dialect{}, false
	}
}

// rebind turns ? placeholders into $n for postgres
func (d dialect) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// prepareDSN makes sure sqlite enforces foreign keys on every pooled connection
func (d dialect) prepareDSN(dsn string) string {
	if d.driver != DriverSQLite || strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// isForeignKeyViolation reports whether err is a missing-parent error from either driver
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}
