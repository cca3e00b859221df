package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// columnTypes is what differs in DDL between the dialects.
type columnTypes struct {
	ID            string // auto-increment primary key column definition
	Ref           string // column type referencing an ID
	BigInt        string
	Timestamp     string
	NullTimestamp string
	Text          string
	Username      string
	TableOptions  string
	// InlineIndexes puts secondary indexes into CREATE TABLE instead of CREATE INDEX statements.
	InlineIndexes bool
	FullText      bool
}

// dialect hides the differences between the supported SQL databases.
type dialect interface {
	Name() string
	Open(ctx context.Context, s Settings) (*sql.DB, func(), error)
	Types() columnTypes
	TxOptions() *sql.TxOptions
	// Rebind rewrites ? placeholders into the dialect's syntax.
	Rebind(query string) string
	TableExists(ctx context.Context, q querier, table string) (bool, error)
	// Insert runs an INSERT statement and returns the generated id.
	Insert(ctx context.Context, q querier, query string, args ...any) (int64, error)
	UpsertDialogState(table string) string
	IsDuplicate(err error) bool
}

var repeatableRead = &sql.TxOptions{Isolation: sql.LevelRepeatableRead}

func newDialect(name string) (dialect, bool) {
	switch strings.ToLower(name) {
	case "mysql":
		return mysqlDialect{}, true
	case "sqlite":
		return sqliteDialect{}, true
	case "postgresql", "postgres":
		return pgDialect{}, true
	}
	return nil, false
}

// lastInsertID is the Insert implementation for drivers supporting LastInsertId.
func lastInsertID(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// numberedPlaceholders replaces every ? with $1, $2, ...
func numberedPlaceholders(query string) string {
	n := strings.Count(query, "?")
	if n == 0 {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + n*2)

	i := 0
	for _, r := range query {
		if r != '?' {
			sb.WriteRune(r)
			continue
		}
		i++
		sb.WriteByte('$')
		sb.WriteString(strconv.Itoa(i))
	}
	return sb.String()
}
