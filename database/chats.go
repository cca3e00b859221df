package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"oopbot/storage"
)

type chatStorage struct {
	db *Database
}

const chatColumns = `id, telegram_id, installed_by_id, installed_at, updated_by_id, updated_at`

func scanChat(row interface{ Scan(...any) error }) (*storage.Chat, error) {
	var (
		c         storage.Chat
		updatedBy sql.NullInt64
		updated   sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.TelegramID, &c.InstalledByID, &c.InstalledAt, &updatedBy, &updated); err != nil {
		return nil, err
	}
	c.InstalledAt = c.InstalledAt.UTC()
	c.UpdatedByID = int64Ptr(updatedBy)
	c.UpdatedAt = timePtr(updated)
	return &c, nil
}

func (s *chatStorage) Create(ctx context.Context, telegramID int64, installedByID int64) (*storage.Chat, error) {
	if err := s.db.check(); err != nil {
		return nil, err
	}

	now := s.db.now()
	id, err := s.db.dialect.Insert(ctx, s.db.conn, `INSERT INTO `+s.db.tables.chats+`
(telegram_id, installed_by_id, installed_at) VALUES (?, ?, ?)`, telegramID, installedByID, now)
	switch {
	case s.db.dialect.IsDuplicate(err):
		return nil, &storage.DuplicateError{Kind: "chat", Key: telegramID, Err: err}
	case err != nil:
		return nil, errors.Wrapf(err, "failed inserting chat %d", telegramID)
	}

	return &storage.Chat{ID: id, TelegramID: telegramID, InstalledByID: installedByID, InstalledAt: now}, nil
}

func (s *chatStorage) get(ctx context.Context, column string, value int64) (*storage.Chat, error) {
	if err := s.db.check(); err != nil {
		return nil, err
	}

	row := s.db.conn.QueryRowContext(ctx, s.db.q(`SELECT `+chatColumns+` FROM `+s.db.tables.chats+` WHERE `+column+` = ?`), value)
	c, err := scanChat(row)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "failed fetching chat by %s %d", column, value)
	}
	return c, nil
}

func (s *chatStorage) GetByID(ctx context.Context, id int64) (*storage.Chat, error) {
	return s.get(ctx, "id", id)
}

func (s *chatStorage) GetByTelegramID(ctx context.Context, telegramID int64) (*storage.Chat, error) {
	return s.get(ctx, "telegram_id", telegramID)
}

func (s *chatStorage) Delete(ctx context.Context, id int64) (bool, error) {
	if err := s.db.check(); err != nil {
		return false, err
	}

	ok, err := affected(s.db.conn.ExecContext(ctx, s.db.q(`DELETE FROM `+s.db.tables.chats+` WHERE id = ?`), id))
	return ok, errors.Wrapf(err, "failed deleting chat %d", id)
}
