package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// schemaUpdate brings the schema from version-1 to version.
type schemaUpdate struct {
	version    int
	name       string
	statements func(t tables, c columnTypes) []string
}

var schemaUpdates = []schemaUpdate{
	{0, "initial", initialSchema},
	{1, "introduce_dialog_states", dialogStatesSchema},
	{2, "add_task_comments", taskCommentsSchema},
}

// LatestSchemaVersion is the version of the newest known schema update.
var LatestSchemaVersion = schemaUpdates[len(schemaUpdates)-1].version

// table builds CREATE TABLE with secondary indexes either inline or as separate statements.
type table struct {
	name    string
	columns []string
	indexes []index
}

type index struct {
	name     string
	columns  string
	fullText bool
}

func (t table) statements(c columnTypes) []string {
	defs := append([]string(nil), t.columns...)
	var extra []string

	for _, idx := range t.indexes {
		switch {
		case idx.fullText && !c.FullText:
			continue
		case c.InlineIndexes && idx.fullText:
			defs = append(defs, fmt.Sprintf("FULLTEXT (%s)", idx.columns))
		case c.InlineIndexes:
			defs = append(defs, fmt.Sprintf("INDEX %s (%s)", idx.name, idx.columns))
		default:
			extra = append(extra, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.name, t.name, idx.columns))
		}
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)%s", t.name, strings.Join(defs, ",\n\t"), c.TableOptions)
	return append([]string{create}, extra...)
}

func fk(column, target string) string {
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (id) ON DELETE RESTRICT ON UPDATE RESTRICT", column, target)
}

func initialSchema(t tables, c columnTypes) []string {
	var stmts []string

	stmts = append(stmts, table{
		name: t.version,
		columns: []string{
			"version INT NOT NULL",
			"time " + c.Timestamp + " NOT NULL",
			"PRIMARY KEY (version)",
		},
	}.statements(c)...)

	stmts = append(stmts, table{
		name: t.users,
		columns: []string{
			"id " + c.ID,
			"telegram_id " + c.BigInt + " NOT NULL UNIQUE",
			"telegram_username " + c.Username + " DEFAULT NULL",
			"joined_at " + c.Timestamp + " NOT NULL",
			"updated_at " + c.NullTimestamp,
		},
		indexes: []index{{name: "idx_" + t.users + "_telegram_username", columns: "telegram_username"}},
	}.statements(c)...)

	stmts = append(stmts, table{
		name: t.chats,
		columns: []string{
			"id " + c.ID,
			"telegram_id " + c.BigInt + " NOT NULL UNIQUE",
			"installed_by_id " + c.Ref + " NOT NULL",
			"installed_at " + c.Timestamp + " NOT NULL",
			"updated_by_id " + c.Ref + " DEFAULT NULL",
			"updated_at " + c.NullTimestamp,
			fk("installed_by_id", t.users),
			fk("updated_by_id", t.users),
		},
	}.statements(c)...)

	stmts = append(stmts, table{
		name: t.tasks,
		columns: []string{
			"id " + c.ID,
			"chat_id " + c.Ref + " NOT NULL",
			"name " + c.Text + " NOT NULL",
			"description " + c.Text + " DEFAULT NULL",
			"created_by_id " + c.Ref + " NOT NULL",
			"created_at " + c.Timestamp + " NOT NULL",
			"updated_by_id " + c.Ref + " DEFAULT NULL",
			"updated_at " + c.NullTimestamp,
			fk("chat_id", t.chats),
			fk("created_by_id", t.users),
			fk("updated_by_id", t.users),
		},
		indexes: []index{
			{name: "idx_" + t.tasks + "_name", columns: "name", fullText: true},
			{name: "idx_" + t.tasks + "_chat_id", columns: "chat_id"},
			{name: "idx_" + t.tasks + "_created_by_id", columns: "created_by_id"},
			{name: "idx_" + t.tasks + "_created_at", columns: "created_at"},
			{name: "idx_" + t.tasks + "_updated_at", columns: "updated_at"},
		},
	}.statements(c)...)

	return stmts
}

func dialogStatesSchema(t tables, c columnTypes) []string {
	return table{
		name: t.dialogStates,
		columns: []string{
			"user_id " + c.Ref + " NOT NULL",
			"chat_id " + c.Ref + " NOT NULL",
			"type VARCHAR(64) NOT NULL",
			"data " + c.Text + " NOT NULL",
			"PRIMARY KEY (user_id, chat_id)",
			fk("user_id", t.users),
			fk("chat_id", t.chats),
		},
		indexes: []index{{name: "idx_" + t.dialogStates + "_type", columns: "type"}},
	}.statements(c)
}

func taskCommentsSchema(t tables, c columnTypes) []string {
	return table{
		name: t.comments,
		columns: []string{
			"id " + c.ID,
			"task_id " + c.Ref + " NOT NULL",
			"author_id " + c.Ref + " NOT NULL",
			"content " + c.Text + " NOT NULL",
			"posted_at " + c.Timestamp + " NOT NULL",
			"updated_at " + c.NullTimestamp,
			fk("task_id", t.tasks),
			fk("author_id", t.users),
		},
		indexes: []index{
			{name: "idx_" + t.comments + "_task_id", columns: "task_id"},
			{name: "idx_" + t.comments + "_author_id", columns: "author_id"},
			{name: "idx_" + t.comments + "_posted_at", columns: "posted_at"},
		},
	}.statements(c)
}

// SchemaVersion returns the current schema version, or -1 when there is no schema yet.
func (db *Database) SchemaVersion(ctx context.Context) (int, error) {
	if err := db.check(); err != nil {
		return 0, err
	}
	return db.schemaVersion(ctx)
}

func (db *Database) schemaVersion(ctx context.Context) (int, error) {
	exists, err := db.dialect.TableExists(ctx, db.conn, db.tables.version)
	if err != nil {
		return 0, errors.Wrapf(err, "failed checking whether %s exists", db.tables.version)
	}
	if !exists {
		return -1, nil
	}

	var version int
	err = db.conn.QueryRowContext(ctx, `SELECT version FROM `+db.tables.version+`
ORDER BY time DESC, version DESC LIMIT 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		return -1, nil
	case err != nil:
		return 0, errors.Wrap(err, "failed fetching schema version")
	}
	return version, nil
}

func (db *Database) migrate(ctx context.Context) error {
	current, err := db.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > LatestSchemaVersion {
		return errors.Errorf("database schema version %d is newer than the latest known version %d", current, LatestSchemaVersion)
	}

	types := db.dialect.Types()
	for _, u := range schemaUpdates {
		if u.version <= current {
			continue
		}

		db.logger.Infof("Applying schema update %d (%s)", u.version, u.name)
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range u.statements(db.tables, types) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return errors.Wrapf(err, "failed executing %q", stmt)
				}
			}
			_, err := tx.ExecContext(ctx, db.q(`INSERT INTO `+db.tables.version+` (version, time) VALUES (?, ?)`), u.version, db.now())
			return errors.Wrap(err, "failed recording schema version")
		})
		if err != nil {
			return errors.Wrapf(err, "failed applying schema update %s", u.name)
		}
	}
	return nil
}
