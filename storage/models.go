package storage

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	TaskNameMaxLength        = 200
	TaskDescriptionMaxLength = 4000
	CommentContentMaxLength  = 1000
)

var (
	ErrBlankName        = errors.New("name cannot be blank")
	ErrNameTooLong      = errors.Errorf("name cannot be longer than %d characters", TaskNameMaxLength)
	ErrBlankDescription = errors.New("description cannot be blank")
	ErrDescriptionLong  = errors.Errorf("description cannot be longer than %d characters", TaskDescriptionMaxLength)
	ErrBlankContent     = errors.New("content cannot be blank")
	ErrContentTooLong   = errors.Errorf("content cannot be longer than %d characters", CommentContentMaxLength)
)

// User is a Telegram user who has sent at least one command to the bot.
type User struct {
	ID               int64
	TelegramID       int64
	TelegramUsername *string
	JoinedAt         time.Time
	UpdatedAt        *time.Time
}

// MarkdownMention renders the user for a MarkdownV2 message.
func (u *User) MarkdownMention() string {
	if u.TelegramUsername != nil && *u.TelegramUsername != "" {
		return "@" + strings.ReplaceAll(*u.TelegramUsername, "_", `\_`)
	}
	return `[<no username\>](tg://user?id=` + strconv.FormatInt(u.TelegramID, 10) + ")"
}

// Chat is a Telegram chat the bot was used in.
type Chat struct {
	ID            int64
	TelegramID    int64
	InstalledByID int64
	InstalledAt   time.Time
	UpdatedByID   *int64
	UpdatedAt     *time.Time
}

type Task struct {
	ID          int64
	ChatID      int64
	Name        string
	Description *string
	CreatedByID int64
	CreatedAt   time.Time
	UpdatedByID *int64
	UpdatedAt   *time.Time
}

// LastChange returns the time of the last update, or the creation time if the task was never updated.
func (t *Task) LastChange() time.Time {
	if t.UpdatedAt != nil {
		return *t.UpdatedAt
	}
	return t.CreatedAt
}

type TaskComment struct {
	ID        int64
	TaskID    int64
	AuthorID  int64
	Content   string
	PostedAt  time.Time
	UpdatedAt *time.Time
}

func ValidateTaskName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrBlankName
	}
	if utf8.RuneCountInString(name) > TaskNameMaxLength {
		return ErrNameTooLong
	}
	return nil
}

// ValidateTaskDescription accepts nil as "no description".
func ValidateTaskDescription(desc *string) error {
	if desc == nil {
		return nil
	}

	d := strings.TrimSpace(*desc)
	if d == "" {
		return ErrBlankDescription
	}
	if utf8.RuneCountInString(d) > TaskDescriptionMaxLength {
		return ErrDescriptionLong
	}
	return nil
}

func ValidateCommentContent(content string) error {
	c := strings.TrimSpace(content)
	if c == "" {
		return ErrBlankContent
	}
	if utf8.RuneCountInString(c) > CommentContentMaxLength {
		return ErrContentTooLong
	}
	return nil
}
