package tgbot

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"oopbot/bot"
	"oopbot/command"
	"oopbot/storage"
)

var commandRegex = regexp.MustCompile(`(?s)^/[^/]+(?:@[A-Za-z0-9_]+)?(?:\s.+)?$`)

func isForwarded(msg *tg.Message) bool {
	return msg.ForwardDate != 0 || msg.ForwardFrom != nil || msg.ForwardFromChat != nil || msg.ForwardSenderName != ""
}

// HandleMessage routes a message either to a command or to the dialog state of its sender.
func (b *TBot) HandleMessage(ctx context.Context, msg *tg.Message) {
	if msg.From == nil || msg.Chat == nil || isForwarded(msg) {
		return
	}

	uc := &updateContext{bot: b, msg: msg}

	if !commandRegex.MatchString(msg.Text) {
		b.handleDialogMessage(ctx, uc)
		return
	}

	user, err := uc.createOrUpdateUser(ctx)
	if err != nil {
		b.Logger.Errorw("failed updating user", "err", err)
		b.SendMessage(msg.Chat.ID, txtInternalError, nil)
		return
	}
	chat, err := uc.createChatIfNotExists(ctx)
	if err != nil {
		b.Logger.Errorw("failed creating chat", "err", err)
		b.SendMessage(msg.Chat.ID, txtInternalError, nil)
		return
	}

	if _, err := b.Storage.DialogStates().Delete(ctx, user.ID, chat.ID); err != nil {
		b.Logger.Errorw("failed deleting dialog state", "err", err)
	}

	line := msg.Text[1:]
	end := strings.IndexFunc(line, unicode.IsSpace)
	if end < 0 {
		end = len(line)
	}
	label := line[:end]
	input := command.NewInput(line)
	_ = input.SetCursor(end)

	if i := strings.LastIndexByte(label, '@'); i >= 0 {
		if !strings.EqualFold(label[i+1:], b.Username) {
			return
		}
		label = label[:i]
	}

	rec, ok := b.Commands.Lookup(label)
	if !ok {
		b.SendMessage(msg.Chat.ID, txtUnknownCommand, nil)
		return
	}

	c := &bot.Context{
		Bot:     b,
		Storage: b.Storage,
		Logger:  b.Logger,
		Message: msg,
		Label:   label,
		Input:   input,
		User:    user,
		Chat:    chat,
	}

	start := time.Now()
	result, err := rec.Handler(ctx, c)
	if err != nil {
		b.Logger.Errorw("failed to process command", "input", msg.Text, "err", err)
		result = bot.ResultInternalError
	}
	b.Metrics.Command(rec.Name, result.String(), time.Since(start))

	switch result {
	case bot.ResultInternalError:
		b.SendMessage(msg.Chat.ID, txtInternalError, nil)
	case bot.ResultInvalidSyntax:
		b.SendMessage(msg.Chat.ID, txtInvalidSyntax, nil)
	case bot.ResultUnknownCommand:
		b.SendMessage(msg.Chat.ID, txtUnknownCommand, nil)
	}
}

func (b *TBot) handleDialogMessage(ctx context.Context, uc *updateContext) {
	msg := uc.msg

	state, err := uc.dialogState(ctx)
	if err != nil {
		b.Logger.Errorw("failed fetching dialog state", "err", err)
		return
	}
	if state == nil {
		if msg.Chat.IsPrivate() {
			b.SendMessage(msg.Chat.ID, txtUnknownCommand, nil)
		}
		return
	}

	b.Metrics.Dialog(string(state.Type()))

	c := &bot.Context{
		Bot:     b,
		Storage: b.Storage,
		Logger:  b.Logger,
		Message: msg,
		Input:   command.NewInput(msg.Text),
		User:    uc.user,
		Chat:    uc.chat,
	}
	if err := b.handleDialog(ctx, c, state); err != nil {
		b.Logger.Errorw("failed handling dialog message", "state", state.Type(), "err", err)
		b.SendMessage(msg.Chat.ID, txtInternalError, nil)
	}
}

// replay handles text as if the sender of msg had sent it to the same chat.
func (b *TBot) replay(ctx context.Context, msg *tg.Message, text string) {
	b.HandleMessage(ctx, &tg.Message{
		MessageID: msg.MessageID,
		From:      msg.From,
		Chat:      msg.Chat,
		Date:      msg.Date,
		Text:      text,
	})
}

// HandleCallback handles inline keyboard presses. The query is always answered.
func (b *TBot) HandleCallback(ctx context.Context, cbq *tg.CallbackQuery) {
	defer b.answerCallback(cbq.ID)

	if cbq.Data == "" || cbq.Message == nil || cbq.From == nil {
		return
	}

	kind, arg, _ := strings.Cut(cbq.Data, ":")
	switch kind {
	case cbqCommand:
		b.HandleMessage(ctx, &tg.Message{
			MessageID: cbq.Message.MessageID,
			From:      cbq.From,
			Chat:      cbq.Message.Chat,
			Date:      cbq.Message.Date,
			Text:      "/" + arg,
		})
	case cbqDeleteMessage:
		b.deleteMessage(cbq.Message.Chat.ID, cbq.Message.MessageID)
	default:
		b.Logger.Debugw("unknown callback data", "data", cbq.Data)
	}
}

// updateContext resolves the stored user and chat of a message once per update.
type updateContext struct {
	bot  *TBot
	msg  *tg.Message
	user *storage.User
	chat *storage.Chat
}

func (u *updateContext) refreshUsername(ctx context.Context, user *storage.User) (*storage.User, error) {
	name := usernameOf(u.msg.From)
	if equalPtr(user.TelegramUsername, name) {
		return user, nil
	}

	if err := u.bot.Storage.Users().UpdateTelegramUsername(ctx, user.ID, name); err != nil {
		return nil, err
	}
	updated := *user
	updated.TelegramUsername = name
	now := time.Now().UTC()
	updated.UpdatedAt = &now
	return &updated, nil
}

// existingUser returns nil when the sender is not stored yet.
func (u *updateContext) existingUser(ctx context.Context) (*storage.User, error) {
	if u.user != nil {
		return u.user, nil
	}

	user, err := u.bot.Storage.Users().GetByTelegramID(ctx, u.msg.From.ID)
	if err != nil || user == nil {
		return nil, err
	}
	if u.user, err = u.refreshUsername(ctx, user); err != nil {
		return nil, err
	}
	return u.user, nil
}

func (u *updateContext) createOrUpdateUser(ctx context.Context) (*storage.User, error) {
	user, err := u.existingUser(ctx)
	if err != nil || user != nil {
		return user, err
	}

	users := u.bot.Storage.Users()
	user, err = users.Create(ctx, u.msg.From.ID, usernameOf(u.msg.From))
	if err == nil {
		u.user = user
		return user, nil
	}
	if !errors.Is(err, storage.ErrDuplicate) {
		return nil, err
	}

	// created concurrently by another update
	user, err = u.existingUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.Errorf("user creation reported a duplicate, but user with Telegram ID %d does not exist", u.msg.From.ID)
	}
	return user, nil
}

func (u *updateContext) existingChat(ctx context.Context) (*storage.Chat, error) {
	if u.chat != nil {
		return u.chat, nil
	}

	chat, err := u.bot.Storage.Chats().GetByTelegramID(ctx, u.msg.Chat.ID)
	if err != nil {
		return nil, err
	}
	u.chat = chat
	return chat, nil
}

func (u *updateContext) createChatIfNotExists(ctx context.Context) (*storage.Chat, error) {
	chat, err := u.existingChat(ctx)
	if err != nil || chat != nil {
		return chat, err
	}

	user, err := u.createOrUpdateUser(ctx)
	if err != nil {
		return nil, err
	}

	chat, err = u.bot.Storage.Chats().Create(ctx, u.msg.Chat.ID, user.ID)
	if err == nil {
		u.chat = chat
		return chat, nil
	}
	if !errors.Is(err, storage.ErrDuplicate) {
		return nil, err
	}

	chat, err = u.existingChat(ctx)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, errors.Errorf("chat creation reported a duplicate, but chat with Telegram ID %d does not exist", u.msg.Chat.ID)
	}
	return chat, nil
}

// dialogState returns nil when the sender or the chat is unknown or no dialog is in progress.
func (u *updateContext) dialogState(ctx context.Context) (storage.DialogState, error) {
	user, err := u.existingUser(ctx)
	if err != nil || user == nil {
		return nil, err
	}
	chat, err := u.existingChat(ctx)
	if err != nil || chat == nil {
		return nil, err
	}
	return u.bot.Storage.DialogStates().Get(ctx, user.ID, chat.ID)
}

func usernameOf(u *tg.User) *string {
	if u.UserName == "" {
		return nil
	}
	name := u.UserName
	return &name
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
