package database

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

const mysqlErrDuplicateEntry = 1062

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Open(ctx context.Context, s Settings) (*sql.DB, func(), error) {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	cfg.DBName = s.Database
	cfg.User = s.Username
	cfg.Passwd = s.Password
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid mysql settings")
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(s.PoolSize)
	db.SetMaxIdleConns(s.PoolSize)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil, nil
}

func (mysqlDialect) Types() columnTypes {
	return columnTypes{
		ID:            "INT NOT NULL AUTO_INCREMENT PRIMARY KEY",
		Ref:           "INT",
		BigInt:        "BIGINT",
		Timestamp:     "TIMESTAMP",
		NullTimestamp: "TIMESTAMP NULL DEFAULT NULL",
		Text:          "TEXT",
		Username:      "VARCHAR(32)",
		TableOptions:  " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		InlineIndexes: true,
		FullText:      true,
	}
}

func (mysqlDialect) TxOptions() *sql.TxOptions { return repeatableRead }

func (mysqlDialect) Rebind(query string) string { return query }

func (mysqlDialect) TableExists(ctx context.Context, q querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema = DATABASE() AND table_name = ?`, table).Scan(&n)
	return n > 0, err
}

func (mysqlDialect) Insert(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	return lastInsertID(ctx, q, query, args...)
}

func (mysqlDialect) UpsertDialogState(table string) string {
	return `INSERT INTO ` + table + ` (user_id, chat_id, type, data) VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE type = VALUES(type), data = VALUES(data)`
}

func (mysqlDialect) IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry
}
