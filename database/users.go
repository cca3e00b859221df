package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"oopbot/storage"
)

type userStorage struct {
	db *Database
}

const userColumns = `id, telegram_id, telegram_username, joined_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*storage.User, error) {
	var (
		u        storage.User
		username sql.NullString
		updated  sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.TelegramID, &username, &u.JoinedAt, &updated); err != nil {
		return nil, err
	}
	u.TelegramUsername = stringPtr(username)
	u.JoinedAt = u.JoinedAt.UTC()
	u.UpdatedAt = timePtr(updated)
	return &u, nil
}

func (s *userStorage) Create(ctx context.Context, telegramID int64, username *string) (*storage.User, error) {
	if err := s.db.check(); err != nil {
		return nil, err
	}

	now := s.db.now()
	id, err := s.db.dialect.Insert(ctx, s.db.conn, `INSERT INTO `+s.db.tables.users+`
(telegram_id, telegram_username, joined_at) VALUES (?, ?, ?)`, telegramID, nullString(username), now)
	switch {
	case s.db.dialect.IsDuplicate(err):
		return nil, &storage.DuplicateError{Kind: "user", Key: telegramID, Err: err}
	case err != nil:
		return nil, errors.Wrapf(err, "failed inserting user %d", telegramID)
	}

	return &storage.User{ID: id, TelegramID: telegramID, TelegramUsername: username, JoinedAt: now}, nil
}

func (s *userStorage) get(ctx context.Context, column string, value int64) (*storage.User, error) {
	if err := s.db.check(); err != nil {
		return nil, err
	}

	row := s.db.conn.QueryRowContext(ctx, s.db.q(`SELECT `+userColumns+` FROM `+s.db.tables.users+` WHERE `+column+` = ?`), value)
	u, err := scanUser(row)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "failed fetching user by %s %d", column, value)
	}
	return u, nil
}

func (s *userStorage) GetByID(ctx context.Context, id int64) (*storage.User, error) {
	return s.get(ctx, "id", id)
}

func (s *userStorage) GetByTelegramID(ctx context.Context, telegramID int64) (*storage.User, error) {
	return s.get(ctx, "telegram_id", telegramID)
}

func (s *userStorage) UpdateTelegramUsername(ctx context.Context, id int64, username *string) error {
	if err := s.db.check(); err != nil {
		return err
	}

	_, err := s.db.conn.ExecContext(ctx, s.db.q(`UPDATE `+s.db.tables.users+`
SET telegram_username = ?, updated_at = ? WHERE id = ?`), nullString(username), s.db.now(), id)
	return errors.Wrapf(err, "failed updating username of user %d", id)
}

func (s *userStorage) Delete(ctx context.Context, id int64) (bool, error) {
	if err := s.db.check(); err != nil {
		return false, err
	}

	ok, err := affected(s.db.conn.ExecContext(ctx, s.db.q(`DELETE FROM `+s.db.tables.users+` WHERE id = ?`), id))
	return ok, errors.Wrapf(err, "failed deleting user %d", id)
}
