// Package storage declares the data model of the task tracker and the interfaces
// that persistence backends implement.
//
// Lookups return nil and no error when nothing is found. Deletes and updates report
// whether a row was affected.
package storage

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrDuplicate = errors.New("duplicate object")
	ErrClosed    = errors.New("storage is closed")
)

// DuplicateError is returned by Create methods when a unique key is already taken.
type DuplicateError struct {
	Kind string
	Key  any
	Err  error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("Duplicate %s: %v", e.Kind, e.Key)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

func (e *DuplicateError) Unwrap() error {
	return e.Err
}

// Sort is a task ordering. A sort with a fallback orders by the fallback column where its own is NULL.
type Sort int

const (
	SortCreatedAt Sort = iota
	SortUpdatedAt
)

func (s Sort) Column() string {
	switch s {
	case SortUpdatedAt:
		return "updated_at"
	default:
		return "created_at"
	}
}

func (s Sort) Fallback() (Sort, bool) {
	if s == SortUpdatedAt {
		return SortCreatedAt, true
	}
	return 0, false
}

// TaskQuery filters and pages tasks. Nil filters are not applied.
type TaskQuery struct {
	Limit       int
	Offset      int
	Sort        Sort
	Ascending   bool
	ChatID      *int64
	CreatedByID *int64
}

type UserStorage interface {
	Create(ctx context.Context, telegramID int64, username *string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	UpdateTelegramUsername(ctx context.Context, id int64, username *string) error
	Delete(ctx context.Context, id int64) (bool, error)
}

type ChatStorage interface {
	Create(ctx context.Context, telegramID int64, installedByID int64) (*Chat, error)
	GetByID(ctx context.Context, id int64) (*Chat, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*Chat, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type TaskStorage interface {
	Create(ctx context.Context, chatID int64, name string, description *string, createdByID int64) (*Task, error)
	GetByID(ctx context.Context, id int64) (*Task, error)
	Search(ctx context.Context, q TaskQuery) ([]*Task, error)
	Count(ctx context.Context, chatID, createdByID *int64) (int, error)
	UpdateName(ctx context.Context, id int64, name string, updatedByID int64) (bool, error)
	UpdateDescription(ctx context.Context, id int64, description *string, updatedByID int64) (bool, error)
	// Delete removes the task together with its comments.
	Delete(ctx context.Context, id int64) (bool, error)
	Comments() TaskCommentStorage
}

type TaskCommentStorage interface {
	Create(ctx context.Context, taskID, authorID int64, content string) (*TaskComment, error)
	GetByID(ctx context.Context, id int64) (*TaskComment, error)
	GetByTaskID(ctx context.Context, taskID int64, limit, offset int, newerFirst bool) ([]*TaskComment, error)
	CountByTaskID(ctx context.Context, taskID int64) (int, error)
	UpdateContent(ctx context.Context, id int64, content string) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// DialogStateStorage keeps at most one dialog state per user and chat.
type DialogStateStorage interface {
	Get(ctx context.Context, userID, chatID int64) (DialogState, error)
	Set(ctx context.Context, userID, chatID int64, state DialogState) error
	Delete(ctx context.Context, userID, chatID int64) (bool, error)
}

type DataStorage interface {
	Type() string
	Users() UserStorage
	Chats() ChatStorage
	Tasks() TaskStorage
	DialogStates() DialogStateStorage
	Close() error
}
