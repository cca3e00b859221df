package bot

import (
	"context"
	"testing"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, *Context) (Result, error) { return ResultSuccess, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Register("start", noop, "help"))
	assert.True(t, r.Register("Tasks", noop))
	assert.False(t, r.Register("help", noop), "alias is taken")
	assert.False(t, r.Register("list", noop, "tasks"), "name is taken")
	assert.False(t, r.Register("new", noop, "new"), "duplicate inside one registration")
	assert.False(t, r.Register("", noop))

	_, ok := r.Lookup("list")
	assert.False(t, ok, "failed registrations leave nothing behind")

	rec, ok := r.Lookup("HELP")
	require.True(t, ok)
	assert.Equal(t, "start", rec.Name)
	assert.Equal(t, []string{"help"}, rec.Aliases)

	rec, ok = r.Lookup("tasks")
	require.True(t, ok)
	assert.Equal(t, "tasks", rec.Name)

	var names []string
	for _, c := range r.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"start", "tasks"}, names)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "success", ResultSuccess.String())
	assert.Equal(t, "invalid_syntax", ResultInvalidSyntax.String())
	assert.Equal(t, "unknown", Result(42).String())
}

func TestRobustExecute(t *testing.T) {
	calls := 0
	err := RobustExecute(3, 0, func() error {
		calls++
		if calls < 2 {
			return errors.New("Bad Gateway")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = RobustExecute(3, 0, func() error {
		calls++
		return errors.Errorf("attempt %d failed", calls)
	})
	assert.EqualError(t, err, "attempt 3 failed")
	assert.Equal(t, 3, calls)

	err = RobustExecute(0, 0, func() error { return nil })
	assert.True(t, errors.Is(err, ErrNoAttempts))
}

type recordingSender struct {
	chatID int64
	text   string
}

func (s *recordingSender) SendMessage(chatID int64, text string, markup any) error {
	s.chatID, s.text = chatID, text
	return nil
}

func TestContextReply(t *testing.T) {
	sender := &recordingSender{}
	c := &Context{
		Bot:     sender,
		Message: &tg.Message{Chat: &tg.Chat{ID: 77, Type: "private"}},
	}

	require.NoError(t, c.Reply("hi", nil))
	assert.Equal(t, int64(77), sender.chatID)
	assert.Equal(t, "hi", sender.text)
	assert.True(t, c.IsPrivate())
}
