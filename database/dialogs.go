package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"oopbot/storage"
)

type dialogStateStorage struct {
	db *Database
}

// Get returns nil when there is no state or the stored state cannot be decoded.
func (s *dialogStateStorage) Get(ctx context.Context, userID, chatID int64) (storage.DialogState, error) {
	if err := s.db.check(); err != nil {
		return nil, err
	}

	var typ, data string
	err := s.db.conn.QueryRowContext(ctx, s.db.q(`SELECT type, data FROM `+s.db.tables.dialogStates+`
WHERE user_id = ? AND chat_id = ?`), userID, chatID).Scan(&typ, &data)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "failed fetching dialog state of user %d in chat %d", userID, chatID)
	}

	state, err := storage.DecodeDialogState(storage.DialogStateType(typ), []byte(data))
	if err != nil {
		s.db.logger.Warnw("failed decoding dialog state", "user", userID, "chat", chatID, "type", typ, "err", err)
		return nil, nil
	}
	return state, nil
}

func (s *dialogStateStorage) Set(ctx context.Context, userID, chatID int64, state storage.DialogState) error {
	if err := s.db.check(); err != nil {
		return err
	}

	typ, data, err := storage.EncodeDialogState(state)
	if err != nil {
		return err
	}

	_, err = s.db.conn.ExecContext(ctx, s.db.q(s.db.dialect.UpsertDialogState(s.db.tables.dialogStates)),
		userID, chatID, string(typ), string(data))
	return errors.Wrapf(err, "failed setting dialog state of user %d in chat %d", userID, chatID)
}

func (s *dialogStateStorage) Delete(ctx context.Context, userID, chatID int64) (bool, error) {
	if err := s.db.check(); err != nil {
		return false, err
	}

	ok, err := affected(s.db.conn.ExecContext(ctx, s.db.q(`DELETE FROM `+s.db.tables.dialogStates+`
WHERE user_id = ? AND chat_id = ?`), userID, chatID))
	return ok, errors.Wrapf(err, "failed deleting dialog state of user %d in chat %d", userID, chatID)
}
