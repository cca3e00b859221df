package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"oopbot/storage"
)

type commentStorage struct {
	db *Database
}

const commentColumns = `id, task_id, author_id, content, posted_at, updated_at`

func scanComment(row interface{ Scan(...any) error }) (*storage.TaskComment, error) {
	var (
		c       storage.TaskComment
		updated sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.PostedAt, &updated); err != nil {
		return nil, err
	}
	c.PostedAt = c.PostedAt.UTC()
	c.UpdatedAt = timePtr(updated)
	return &c, nil
}

func (s *commentStorage) Create(ctx context.Context, taskID, authorID int64, content string) (*storage.TaskComment, error) {
	if err := s.db.check(); err != nil {
		return nil, err
	}

	now := s.db.now()
	id, err := s.db.dialect.Insert(ctx, s.db.conn, `INSERT INTO `+s.db.tables.comments+`
(task_id, author_id, content, posted_at) VALUES (?, ?, ?, ?)`, taskID, authorID, content, now)
	if err != nil {
		return nil, errors.Wrapf(err, "failed inserting comment for task %d", taskID)
	}

	return &storage.TaskComment{ID: id, TaskID: taskID, AuthorID: authorID, Content: content, PostedAt: now}, nil
}

func (s *commentStorage) GetByID(ctx context.Context, id int64) (*storage.TaskComment, error) {
	if err := s.db.check(); err != nil {
		return nil, err
	}

	row := s.db.conn.QueryRowContext(ctx, s.db.q(`SELECT `+commentColumns+` FROM `+s.db.tables.comments+` WHERE id = ?`), id)
	c, err := scanComment(row)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "failed fetching comment %d", id)
	}
	return c, nil
}

func (s *commentStorage) GetByTaskID(ctx context.Context, taskID int64, limit, offset int, newerFirst bool) ([]*storage.TaskComment, error) {
	if err := s.db.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}

	dir := " ASC"
	if newerFirst {
		dir = " DESC"
	}
	rows, err := s.db.conn.QueryContext(ctx, s.db.q(`SELECT `+commentColumns+` FROM `+s.db.tables.comments+`
WHERE task_id = ? ORDER BY posted_at`+dir+`, id`+dir+` LIMIT ? OFFSET ?`), taskID, limit, offset)
	if err != nil {
		return nil, errors.Wrapf(err, "failed fetching comments of task %d", taskID)
	}
	defer rows.Close()

	var comments []*storage.TaskComment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed scanning comment")
		}
		comments = append(comments, c)
	}
	return comments, errors.Wrap(rows.Err(), "failed iterating comments")
}

func (s *commentStorage) CountByTaskID(ctx context.Context, taskID int64) (int, error) {
	if err := s.db.check(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.conn.QueryRowContext(ctx, s.db.q(`SELECT COUNT(*) FROM `+s.db.tables.comments+` WHERE task_id = ?`), taskID).Scan(&n)
	return n, errors.Wrapf(err, "failed counting comments of task %d", taskID)
}

func (s *commentStorage) UpdateContent(ctx context.Context, id int64, content string) (bool, error) {
	if err := s.db.check(); err != nil {
		return false, err
	}

	ok, err := affected(s.db.conn.ExecContext(ctx, s.db.q(`UPDATE `+s.db.tables.comments+`
SET content = ?, updated_at = ? WHERE id = ?`), content, s.db.now(), id))
	return ok, errors.Wrapf(err, "failed updating comment %d", id)
}

func (s *commentStorage) Delete(ctx context.Context, id int64) (bool, error) {
	if err := s.db.check(); err != nil {
		return false, err
	}

	ok, err := affected(s.db.conn.ExecContext(ctx, s.db.q(`DELETE FROM `+s.db.tables.comments+` WHERE id = ?`), id))
	return ok, errors.Wrapf(err, "failed deleting comment %d", id)
}
