package bot

import (
	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"oopbot/command"
	"oopbot/storage"
)

// Sender delivers MarkdownV2 messages. markup may be nil.
type Sender interface {
	SendMessage(chatID int64, text string, markup any) error
}

// Context keeps what a command handler needs: where to reply, the storage, the sender
// and the rest of the command line.
type Context struct {
	Bot     Sender
	Storage storage.DataStorage
	Logger  *zap.SugaredLogger
	Message *tg.Message
	Label   string
	Input   *command.Input
	User    *storage.User
	Chat    *storage.Chat
}

// ChatID is the Telegram id of the chat the command came from.
func (c *Context) ChatID() int64 {
	return c.Message.Chat.ID
}

// IsPrivate reports whether the command was sent in a private chat.
func (c *Context) IsPrivate() bool {
	return c.Message.Chat.IsPrivate()
}

// Reply sends text to the chat of the command.
func (c *Context) Reply(text string, markup any) error {
	return c.Bot.SendMessage(c.ChatID(), text, markup)
}
