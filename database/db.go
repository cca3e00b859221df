// Package database implements storage.DataStorage on top of MySQL, SQLite and PostgreSQL.
//
// Tables (names are prefixed with the configured table prefix):
//   - version: applied schema updates
//   - users: Telegram users known to the bot
//   - chats: chats the bot was used in
//   - tasks: tasks of a chat
//   - tasks_comments: comments of a task
//   - dialog_states: what the bot expects from a user in a chat
package database

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"oopbot/storage"
)

// Settings selects and configures the database.
type Settings struct {
	Type        string // mysql, sqlite or postgresql
	Host        string
	Port        int
	Database    string
	Username    string
	Password    string
	FilePath    string // sqlite only
	TablePrefix string
	PoolSize    int
}

type tables struct {
	version      string
	users        string
	chats        string
	tasks        string
	comments     string
	dialogStates string
}

func newTables(prefix string) tables {
	return tables{
		version:      prefix + "version",
		users:        prefix + "users",
		chats:        prefix + "chats",
		tasks:        prefix + "tasks",
		comments:     prefix + "tasks_comments",
		dialogStates: prefix + "dialog_states",
	}
}

// Database is a SQL backed storage.DataStorage.
type Database struct {
	conn    *sql.DB
	dialect dialect
	tables  tables
	logger  *zap.SugaredLogger
	clk     clock.Clock
	cleanup func()
	closed  atomic.Bool

	users    *userStorage
	chats    *chatStorage
	tasks    *taskStorage
	comments *commentStorage
	dialogs  *dialogStateStorage
}

var _ storage.DataStorage = (*Database)(nil)

// Open connects to the database described by s and brings its schema up to date.
func Open(ctx context.Context, s Settings, logger *zap.SugaredLogger, clk clock.Clock) (*Database, error) {
	d, ok := newDialect(s.Type)
	if !ok {
		return nil, errors.Errorf("unsupported data storage type %q", s.Type)
	}
	if s.PoolSize <= 0 {
		s.PoolSize = 1
	}

	conn, cleanup, err := d.Open(ctx, s)
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening %s storage", d.Name())
	}

	db := newDatabase(conn, d, newTables(s.TablePrefix), logger, clk)
	db.cleanup = cleanup

	if err := conn.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed connecting to %s storage", d.Name())
	}
	if err := db.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func newDatabase(conn *sql.DB, d dialect, t tables, logger *zap.SugaredLogger, clk clock.Clock) *Database {
	db := &Database{
		conn:    conn,
		dialect: d,
		tables:  t,
		logger:  logger,
		clk:     clk,
	}
	db.users = &userStorage{db}
	db.chats = &chatStorage{db}
	db.comments = &commentStorage{db}
	db.tasks = &taskStorage{db}
	db.dialogs = &dialogStateStorage{db}
	return db
}

func (db *Database) Type() string                              { return db.dialect.Name() }
func (db *Database) Users() storage.UserStorage                { return db.users }
func (db *Database) Chats() storage.ChatStorage                { return db.chats }
func (db *Database) Tasks() storage.TaskStorage                { return db.tasks }
func (db *Database) DialogStates() storage.DialogStateStorage { return db.dialogs }

// Close closes the connection pool. It is safe to call more than once.
func (db *Database) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := db.conn.Close()
	if db.cleanup != nil {
		db.cleanup()
	}
	return errors.Wrapf(err, "failed closing %s storage", db.dialect.Name())
}

func (db *Database) check() error {
	if db.closed.Load() {
		return storage.ErrClosed
	}
	return nil
}

func (db *Database) now() time.Time {
	return db.clk.Now().UTC()
}

// q rebinds placeholders for the dialect.
func (db *Database) q(query string) string {
	return db.dialect.Rebind(query)
}

// inTx runs f in a transaction and commits when f succeeds.
func (db *Database) inTx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, db.dialect.TxOptions())
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := f(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit")
}

// affected reports whether the statement changed at least one row.
func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}
