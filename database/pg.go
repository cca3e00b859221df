package database

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
)

const pgUniqueViolation = "23505"

type pgDialect struct{}

func (pgDialect) Name() string { return "postgresql" }

// Open connects through a pgxpool so the pool limits apply, and exposes it as *sql.DB.
func (pgDialect) Open(ctx context.Context, s Settings) (*sql.DB, func(), error) {
	cfg, err := pgxpool.ParseConfig("")
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid postgresql settings")
	}
	cfg.ConnConfig.Host = s.Host
	cfg.ConnConfig.Port = uint16(s.Port)
	cfg.ConnConfig.Database = s.Database
	cfg.ConnConfig.User = s.Username
	cfg.ConnConfig.Password = s.Password
	cfg.MaxConns = int32(s.PoolSize)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return stdlib.OpenDBFromPool(pool), pool.Close, nil
}

func (pgDialect) Types() columnTypes {
	return columnTypes{
		ID:            "BIGSERIAL PRIMARY KEY",
		Ref:           "BIGINT",
		BigInt:        "BIGINT",
		Timestamp:     "TIMESTAMP",
		NullTimestamp: "TIMESTAMP DEFAULT NULL",
		Text:          "TEXT",
		Username:      "VARCHAR(32)",
	}
}

func (pgDialect) TxOptions() *sql.TxOptions { return repeatableRead }

func (pgDialect) Rebind(query string) string { return numberedPlaceholders(query) }

func (pgDialect) TableExists(ctx context.Context, q querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema = current_schema() AND table_name = $1`, table).Scan(&n)
	return n > 0, err
}

// Insert expects a ?-style query and appends RETURNING id.
func (d pgDialect) Insert(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, d.Rebind(query)+" RETURNING id", args...).Scan(&id)
	return id, err
}

func (pgDialect) UpsertDialogState(table string) string {
	return `INSERT INTO ` + table + ` (user_id, chat_id, type, data) VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, chat_id) DO UPDATE SET type = EXCLUDED.type, data = EXCLUDED.data`
}

func (pgDialect) IsDuplicate(err error) bool {
	var pe *pgconn.PgError
	return errors.As(err, &pe) && pe.Code == pgUniqueViolation
}
