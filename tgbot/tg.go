// Package tgbot connects the task tracker to the Telegram Bot API: it polls updates, routes
// messages to commands and dialog states and renders the replies.
package tgbot

import (
	"context"
	"time"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"oopbot/bot"
	"oopbot/metrics"
	"oopbot/storage"
)

// API is the part of *tg.BotAPI the bot uses.
type API interface {
	Send(c tg.Chattable) (tg.Message, error)
	Request(c tg.Chattable) (*tg.APIResponse, error)
	GetUpdatesChan(config tg.UpdateConfig) tg.UpdatesChannel
	StopReceivingUpdates()
}

var _ API = (*tg.BotAPI)(nil)

type TBot struct {
	Bot           API
	Storage       storage.DataStorage
	Logger        *zap.SugaredLogger
	Commands      *bot.Registry
	Metrics       *metrics.Metrics
	Username      string
	Location      *time.Location
	Workers       int
	RetryDelay    time.Duration
	RetryAttempts int
}

// Connect authorizes on the Bot API with token.
func Connect(token string, l *zap.SugaredLogger) (*tg.BotAPI, error) {
	b, err := tg.NewBotAPI(token)
	if err != nil {
		l.Errorw("failed to initialize Telegram Bot", "err", err)
		return nil, errors.Wrap(err, "failed to initialize Telegram Bot")
	}

	b.Debug = false

	l.Infof("authorized on account %q (%q, %d)", b.Self.FirstName, b.Self.UserName, b.Self.ID)
	return b, nil
}

// NewTBot creates a bot with /start and /tasks registered.
func NewTBot(api API, username string, s storage.DataStorage, l *zap.SugaredLogger) *TBot {
	b := &TBot{
		Bot:           api,
		Storage:       s,
		Logger:        l,
		Commands:      bot.NewRegistry(),
		Username:      username,
		Location:      time.Local,
		Workers:       8,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
	}

	b.Commands.Register(cmdStart, b.handleStart, cmdHelp)
	b.Commands.Register(cmdTasks, b.handleTasks)
	return b
}

// queueSize is the number of updates a worker may have waiting.
const queueSize = 16

// Run polls updates and hands them to Workers goroutines. Updates of one chat always go to the
// same worker, so they are handled in the order they arrived. Run returns when ctx is cancelled
// or the update channel is closed, after the queued updates are handled.
func (b *TBot) Run(ctx context.Context) error {
	u := tg.NewUpdate(0)
	u.Timeout = 60

	updates := b.Bot.GetUpdatesChan(u)

	// handlers in progress finish even when polling is stopped
	hctx := context.WithoutCancel(ctx)

	var g errgroup.Group
	queues := make([]chan tg.Update, max(b.Workers, 1))
	for i := range queues {
		q := make(chan tg.Update, queueSize)
		queues[i] = q
		g.Go(func() error {
			for upd := range q {
				b.HandleUpdate(hctx, upd)
			}
			return nil
		})
	}

	wait := func() error {
		for _, q := range queues {
			close(q)
		}
		return g.Wait()
	}

	for {
		select {
		case <-ctx.Done():
			b.Bot.StopReceivingUpdates()
			return wait()
		case upd, ok := <-updates:
			if !ok {
				return wait()
			}
			queues[queueOf(upd, len(queues))] <- upd
		}
	}
}

// queueOf picks the worker for the chat the update belongs to.
func queueOf(upd tg.Update, n int) int {
	var id int64
	switch {
	case upd.Message != nil && upd.Message.Chat != nil:
		id = upd.Message.Chat.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil:
		id = upd.CallbackQuery.Message.Chat.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		id = upd.CallbackQuery.From.ID
	}
	return int(uint64(id) % uint64(n))
}

func (b *TBot) HandleUpdate(ctx context.Context, upd tg.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.Logger.Errorw("panic while handling update", "update", upd.UpdateID, "panic", r)
		}
	}()

	switch {
	case upd.Message != nil:
		b.Metrics.Update("message")
		b.HandleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		b.Metrics.Update("callback_query")
		b.HandleCallback(ctx, upd.CallbackQuery)
	default:
		b.Metrics.Update("other")
		b.Logger.Debugw("skipping update", "update", upd.UpdateID)
	}
}

// SendMessage sends a MarkdownV2 message. markup may be nil.
func (b *TBot) SendMessage(chatID int64, text string, markup any) error {
	m := tg.NewMessage(chatID, text)
	m.ParseMode = tg.ModeMarkdownV2
	m.DisableWebPagePreview = true
	if markup != nil {
		m.ReplyMarkup = markup
	}

	err := bot.RobustExecute(max(b.RetryAttempts, 1), b.RetryDelay, func() error {
		_, err := b.Bot.Send(m)
		return err
	})
	if err != nil {
		b.Logger.Errorw("failed sending message", "chat", chatID, "err", err)
		return errors.Wrap(err, "failed to send message")
	}
	return nil
}

func (b *TBot) request(c tg.Chattable) error {
	return bot.RobustExecute(max(b.RetryAttempts, 1), b.RetryDelay, func() error {
		_, err := b.Bot.Request(c)
		return err
	})
}

func (b *TBot) deleteMessage(chatID int64, msgID int) {
	if err := b.request(tg.NewDeleteMessage(chatID, msgID)); err != nil {
		b.Logger.Errorw("failed deleting message", "chat", chatID, "message", msgID, "err", err)
	}
}

func (b *TBot) answerCallback(id string) {
	if err := b.request(tg.NewCallback(id, "")); err != nil {
		b.Logger.Errorw("failed answering callback query", "err", err)
	}
}

func (b *TBot) formatTime(t time.Time) string {
	loc := b.Location
	if loc == nil {
		loc = time.Local
	}
	return escape(t.In(loc).Format(dateLayout))
}

func escape(s string) string {
	return tg.EscapeText(tg.ModeMarkdownV2, s)
}
