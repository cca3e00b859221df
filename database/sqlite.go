package database

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Open(ctx context.Context, s Settings) (*sql.DB, func(), error) {
	if dir := filepath.Dir(s.FilePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, errors.Wrapf(err, "failed creating directory %s", dir)
		}
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_time_format", "sqlite")

	db, err := sql.Open("sqlite", sqliteDSN(s.FilePath, q))
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(s.PoolSize)
	return db, nil, nil
}

// sqliteDSN builds a file: URI. SQLite percent-decodes the path, so '?', '#' and '%' in file
// names survive.
func sqliteDSN(path string, q url.Values) string {
	u := url.URL{Path: filepath.ToSlash(path)}
	return "file:" + u.EscapedPath() + "?" + q.Encode()
}

func (sqliteDialect) Types() columnTypes {
	return columnTypes{
		ID:            "INTEGER PRIMARY KEY AUTOINCREMENT",
		Ref:           "INTEGER",
		BigInt:        "INTEGER",
		Timestamp:     "DATETIME",
		NullTimestamp: "DATETIME DEFAULT NULL",
		Text:          "TEXT",
		Username:      "TEXT",
	}
}

// SQLite transactions are always serializable.
func (sqliteDialect) TxOptions() *sql.TxOptions { return nil }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) TableExists(ctx context.Context, q querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
	return n > 0, err
}

func (sqliteDialect) Insert(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	return lastInsertID(ctx, q, query, args...)
}

func (sqliteDialect) UpsertDialogState(table string) string {
	return `INSERT OR REPLACE INTO ` + table + ` (user_id, chat_id, type, data) VALUES (?, ?, ?, ?)`
}

func (sqliteDialect) IsDuplicate(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
