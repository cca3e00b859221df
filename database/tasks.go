package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"oopbot/storage"
)

type taskStorage struct {
	db *Database
}

const taskColumns = `id, chat_id, name, description, created_by_id, created_at, updated_by_id, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*storage.Task, error) {
	var (
		t         storage.Task
		desc      sql.NullString
		updatedBy sql.NullInt64
		updated   sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.ChatID, &t.Name, &desc, &t.CreatedByID, &t.CreatedAt, &updatedBy, &updated); err != nil {
		return nil, err
	}
	t.Description = stringPtr(desc)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedByID = int64Ptr(updatedBy)
	t.UpdatedAt = timePtr(updated)
	return &t, nil
}

func (s *taskStorage) Comments() storage.TaskCommentStorage {
	return s.db.comments
}

func (s *taskStorage) Create(ctx context.Context, chatID int64, name string, description *string, createdByID int64) (*storage.Task, error) {
	if err := s.db.check(); err != nil {
		return nil, err
	}

	now := s.db.now()
	id, err := s.db.dialect.Insert(ctx, s.db.conn, `INSERT INTO `+s.db.tables.tasks+`
(chat_id, name, description, created_by_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		chatID, name, nullString(description), createdByID, now)
	if err != nil {
		return nil, errors.Wrapf(err, "failed inserting task in chat %d", chatID)
	}

	return &storage.Task{
		ID:          id,
		ChatID:      chatID,
		Name:        name,
		Description: description,
		CreatedByID: createdByID,
		CreatedAt:   now,
	}, nil
}

func (s *taskStorage) GetByID(ctx context.Context, id int64) (*storage.Task, error) {
	if err := s.db.check(); err != nil {
		return nil, err
	}

	row := s.db.conn.QueryRowContext(ctx, s.db.q(`SELECT `+taskColumns+` FROM `+s.db.tables.tasks+` WHERE id = ?`), id)
	t, err := scanTask(row)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "failed fetching task %d", id)
	}
	return t, nil
}

// taskFilter builds the WHERE clause of a task query.
func taskFilter(chatID, createdByID *int64) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if chatID != nil {
		conds = append(conds, "chat_id = ?")
		args = append(args, *chatID)
	}
	if createdByID != nil {
		conds = append(conds, "created_by_id = ?")
		args = append(args, *createdByID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(sort storage.Sort, ascending bool) string {
	dir := " DESC"
	if ascending {
		dir = " ASC"
	}

	key := sort.Column()
	if fb, ok := sort.Fallback(); ok {
		key = "COALESCE(" + key + ", " + fb.Column() + ")"
	}
	return " ORDER BY " + key + dir + ", id" + dir
}

func (s *taskStorage) Search(ctx context.Context, q storage.TaskQuery) ([]*storage.Task, error) {
	if err := s.db.check(); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		return nil, nil
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	where, args := taskFilter(q.ChatID, q.CreatedByID)
	query := `SELECT ` + taskColumns + ` FROM ` + s.db.tables.tasks + where + orderBy(q.Sort, q.Ascending) + ` LIMIT ? OFFSET ?`
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.conn.QueryContext(ctx, s.db.q(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed searching tasks")
	}
	defer rows.Close()

	var tasks []*storage.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed scanning task")
		}
		tasks = append(tasks, t)
	}
	return tasks, errors.Wrap(rows.Err(), "failed iterating tasks")
}

func (s *taskStorage) Count(ctx context.Context, chatID, createdByID *int64) (int, error) {
	if err := s.db.check(); err != nil {
		return 0, err
	}

	where, args := taskFilter(chatID, createdByID)
	var n int
	err := s.db.conn.QueryRowContext(ctx, s.db.q(`SELECT COUNT(*) FROM `+s.db.tables.tasks+where), args...).Scan(&n)
	return n, errors.Wrap(err, "failed counting tasks")
}

func (s *taskStorage) UpdateName(ctx context.Context, id int64, name string, updatedByID int64) (bool, error) {
	if err := s.db.check(); err != nil {
		return false, err
	}

	ok, err := affected(s.db.conn.ExecContext(ctx, s.db.q(`UPDATE `+s.db.tables.tasks+`
SET name = ?, updated_by_id = ?, updated_at = ? WHERE id = ?`), name, updatedByID, s.db.now(), id))
	return ok, errors.Wrapf(err, "failed updating name of task %d", id)
}

func (s *taskStorage) UpdateDescription(ctx context.Context, id int64, description *string, updatedByID int64) (bool, error) {
	if err := s.db.check(); err != nil {
		return false, err
	}

	ok, err := affected(s.db.conn.ExecContext(ctx, s.db.q(`UPDATE `+s.db.tables.tasks+`
SET description = ?, updated_by_id = ?, updated_at = ? WHERE id = ?`), nullString(description), updatedByID, s.db.now(), id))
	return ok, errors.Wrapf(err, "failed updating description of task %d", id)
}

// Delete removes the comments of the task and then the task itself.
func (s *taskStorage) Delete(ctx context.Context, id int64) (bool, error) {
	if err := s.db.check(); err != nil {
		return false, err
	}

	var deleted bool
	err := s.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.db.q(`DELETE FROM `+s.db.tables.comments+` WHERE task_id = ?`), id); err != nil {
			return errors.Wrap(err, "failed deleting comments")
		}

		var err error
		deleted, err = affected(tx.ExecContext(ctx, s.db.q(`DELETE FROM `+s.db.tables.tasks+` WHERE id = ?`), id))
		return err
	})
	return deleted, errors.Wrapf(err, "failed deleting task %d", id)
}
