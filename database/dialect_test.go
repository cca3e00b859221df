package database

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oopbot/storage"
)

func newMockDB(t *testing.T, d dialect) (*Database, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return newDatabase(conn, d, newTables("tt_"), zap.NewNop().Sugar(), clock.NewFake()), mock
}

func re(parts ...string) string {
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "(?s)" + strings.Join(parts, ".*")
}

func TestNumberedPlaceholders(t *testing.T) {
	assert.Equal(t, "SELECT 1", numberedPlaceholders("SELECT 1"))
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", numberedPlaceholders("UPDATE t SET a = ?, b = ? WHERE id = ?"))
}

func TestNewDialect(t *testing.T) {
	for name, want := range map[string]string{
		"mysql":      "mysql",
		"SQLite":     "sqlite",
		"postgresql": "postgresql",
		"postgres":   "postgresql",
	} {
		d, ok := newDialect(name)
		require.True(t, ok, name)
		assert.Equal(t, want, d.Name())
	}

	_, ok := newDialect("mongodb")
	assert.False(t, ok)
}

func TestSchemaStatements(t *testing.T) {
	tables := newTables("tt_")

	mysqlDDL := strings.Join(initialSchema(tables, mysqlDialect{}.Types()), "\n")
	assert.Contains(t, mysqlDDL, "FULLTEXT (name)")
	assert.Contains(t, mysqlDDL, "INDEX idx_tt_tasks_created_at (created_at)")
	assert.Contains(t, mysqlDDL, "ENGINE=InnoDB")
	assert.NotContains(t, mysqlDDL, "CREATE INDEX")

	sqliteDDL := strings.Join(initialSchema(tables, sqliteDialect{}.Types()), "\n")
	assert.Contains(t, sqliteDDL, "CREATE INDEX IF NOT EXISTS idx_tt_tasks_created_at ON tt_tasks (created_at)")
	assert.Contains(t, sqliteDDL, "AUTOINCREMENT")
	assert.NotContains(t, sqliteDDL, "FULLTEXT")

	pgDDL := strings.Join(taskCommentsSchema(tables, pgDialect{}.Types()), "\n")
	assert.Contains(t, pgDDL, "id BIGSERIAL PRIMARY KEY")
	assert.Contains(t, pgDDL, "FOREIGN KEY (task_id) REFERENCES tt_tasks (id)")
}

func TestMySQLDuplicateUser(t *testing.T) {
	db, mock := newMockDB(t, mysqlDialect{})

	mock.ExpectExec(re("INSERT INTO tt_users", "(telegram_id, telegram_username, joined_at) VALUES (?, ?, ?)")).
		WithArgs(int64(7), "bob", sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7' for key 'telegram_id'"})

	name := "bob"
	_, err := db.Users().Create(context.Background(), 7, &name)
	assert.True(t, errors.Is(err, storage.ErrDuplicate))
	assert.EqualError(t, err, "Duplicate user: 7")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDialogStateUpsert(t *testing.T) {
	db, mock := newMockDB(t, mysqlDialect{})

	mock.ExpectExec(re("INSERT INTO tt_dialog_states", "ON DUPLICATE KEY UPDATE type = VALUES(type), data = VALUES(data)")).
		WithArgs(int64(1), int64(2), "reading_new_task_comment", `{"task_id":5}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := db.DialogStates().Set(context.Background(), 1, 2, storage.ReadingNewTaskComment{TaskID: 5})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLNewerSchemaVersion(t *testing.T) {
	db, mock := newMockDB(t, mysqlDialect{})

	mock.ExpectQuery(re("FROM information_schema.tables", "table_schema = DATABASE()")).
		WithArgs("tt_version").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(re("SELECT version FROM tt_version", "ORDER BY time DESC, version DESC LIMIT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(LatestSchemaVersion + 1))

	err := db.migrate(context.Background())
	assert.ErrorContains(t, err, "newer than the latest known version")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateTask(t *testing.T) {
	db, mock := newMockDB(t, pgDialect{})

	mock.ExpectQuery(re("INSERT INTO tt_tasks", "VALUES ($1, $2, $3, $4, $5) RETURNING id")).
		WithArgs(int64(3), "write tests", nil, int64(4), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	task, err := db.Tasks().Create(context.Background(), 3, "write tests", nil, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(11), task.ID)
	assert.Nil(t, task.Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDuplicateChat(t *testing.T) {
	db, mock := newMockDB(t, pgDialect{})

	mock.ExpectQuery(re("INSERT INTO tt_chats", "RETURNING id")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := db.Chats().Create(context.Background(), -1, 1)
	assert.True(t, errors.Is(err, storage.ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDialogStateUpsert(t *testing.T) {
	db, mock := newMockDB(t, pgDialect{})

	mock.ExpectExec(re("VALUES ($1, $2, $3, $4)", "ON CONFLICT (user_id, chat_id) DO UPDATE SET type = EXCLUDED.type")).
		WithArgs(int64(1), int64(2), "reading_new_task_name", "{}").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := db.DialogStates().Set(context.Background(), 1, 2, storage.ReadingNewTaskName{})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteTask(t *testing.T) {
	db, mock := newMockDB(t, pgDialect{})

	mock.ExpectBegin()
	mock.ExpectExec(re("DELETE FROM tt_tasks_comments WHERE task_id = $1")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(re("DELETE FROM tt_tasks WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := db.Tasks().Delete(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteTaskRollsBack(t *testing.T) {
	db, mock := newMockDB(t, pgDialect{})

	mock.ExpectBegin()
	mock.ExpectExec(re("DELETE FROM tt_tasks_comments")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := db.Tasks().Delete(context.Background(), 9)
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSearchOrdering(t *testing.T) {
	db, mock := newMockDB(t, pgDialect{})

	chatID := int64(3)
	mock.ExpectQuery(re("FROM tt_tasks WHERE chat_id = $1", "ORDER BY COALESCE(updated_at, created_at) DESC, id DESC LIMIT $2 OFFSET $3")).
		WithArgs(chatID, 5, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	tasks, err := db.Tasks().Search(context.Background(), storage.TaskQuery{
		Limit: 5, Offset: 10, Sort: storage.SortUpdatedAt, ChatID: &chatID,
	})
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestMySQLLive runs against a real server when TEST_MYSQL_DSN is set.
func TestMySQLLive(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN is not set")
	}

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	host, port, ok := strings.Cut(cfg.Addr, ":")
	require.True(t, ok)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	ctx := context.Background()
	db, err := Open(ctx, Settings{
		Type:        "mysql",
		Host:        host,
		Port:        p,
		Database:    cfg.DBName,
		Username:    cfg.User,
		Password:    cfg.Passwd,
		TablePrefix: "test_" + strconv.FormatInt(clock.New().Now().UnixNano(), 36) + "_",
		PoolSize:    2,
	}, zap.NewNop().Sugar(), clock.New())
	require.NoError(t, err)
	defer db.Close()

	u, err := db.Users().Create(ctx, 1, nil)
	require.NoError(t, err)
	_, err = db.Users().Create(ctx, 1, nil)
	assert.True(t, errors.Is(err, storage.ErrDuplicate))

	c, err := db.Chats().Create(ctx, 1, u.ID)
	require.NoError(t, err)
	task, err := db.Tasks().Create(ctx, c.ID, "live", nil, u.ID)
	require.NoError(t, err)

	ok, err = db.Tasks().UpdateName(ctx, task.ID, "live", u.ID)
	require.NoError(t, err)
	assert.True(t, ok, "an unchanged row still counts as found")
}
