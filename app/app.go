// Package app wires the configuration, the storage and the Telegram bot into a session that
// can be started and stopped.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"oopbot/bot"
	"oopbot/database"
	"oopbot/metrics"
	"oopbot/storage"
	"oopbot/tgbot"
)

var (
	ErrAlreadyRunning = errors.New("bot is already running")
	ErrNotRunning     = errors.New("bot is not running")
)

const metricsShutdownTimeout = 5 * time.Second

// Connector authorizes on the Telegram Bot API.
type Connector func(token string, l *zap.SugaredLogger) (tgbot.API, error)

func connectTelegram(token string, l *zap.SugaredLogger) (tgbot.API, error) {
	api, err := tgbot.Connect(token, l)
	if err != nil {
		return nil, err
	}
	return api, nil
}

type Application struct {
	Config  *bot.Config
	Logger  *zap.SugaredLogger
	Clock   clock.Clock
	Connect Connector

	mu      sync.Mutex
	session *session
}

type session struct {
	storage storage.DataStorage
	bot     *tgbot.TBot
	metrics *metrics.Server
	cancel  context.CancelFunc
	done    chan error
}

func New(cfg *bot.Config, l *zap.SugaredLogger) *Application {
	return &Application{
		Config:  cfg,
		Logger:  l,
		Clock:   clock.New(),
		Connect: connectTelegram,
	}
}

// StorageSettings converts the selected data-storage section.
func StorageSettings(ds bot.DataStorage) database.Settings {
	s := database.Settings{Type: ds.Type}
	switch ds.Type {
	case bot.StorageSQLite:
		if ds.SQLite != nil {
			s.FilePath = ds.SQLite.DatabaseFilePath
			s.TablePrefix = ds.SQLite.TablePrefix
			s.PoolSize = ds.SQLite.PoolSize
		}
	case bot.StorageMySQL, bot.StoragePostgreSQL:
		srv := ds.MySQL
		if ds.Type == bot.StoragePostgreSQL {
			srv = ds.PostgreSQL
		}
		if srv != nil {
			s.Host = srv.Host
			s.Port = srv.Port
			s.Database = srv.Database
			s.Username = srv.Username
			s.Password = srv.Password
			s.TablePrefix = srv.TablePrefix
			s.PoolSize = srv.PoolSize
		}
	}
	return s
}

func (a *Application) elapsed(start time.Time) float64 {
	return a.Clock.Now().Sub(start).Seconds()
}

// Start opens the storage, connects to Telegram and starts handling updates.
func (a *Application) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return ErrAlreadyRunning
	}

	start := a.Clock.Now()

	db, err := database.Open(ctx, StorageSettings(a.Config.DataStorage), a.Logger, a.Clock)
	if err != nil {
		return err
	}

	api, err := a.Connect(a.Config.BotInfo.Token, a.Logger)
	if err != nil {
		db.Close()
		return err
	}

	tb := tgbot.NewTBot(api, a.Config.BotInfo.Username, db, a.Logger)
	tb.Workers = a.Config.Telegram.Workers
	tb.RetryAttempts = a.Config.Telegram.RetryAttempts
	tb.RetryDelay = a.Config.Telegram.RetryDelay
	tb.Location = a.Config.Telegram.Location()

	s := &session{storage: db, bot: tb, done: make(chan error, 1)}
	if a.Config.Metrics.Enabled {
		tb.Metrics = metrics.New()
		s.metrics = metrics.Serve(a.Config.Metrics.ListenAddress, tb.Metrics, a.Logger)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		s.done <- tb.Run(runCtx)
	}()

	a.session = s
	a.Logger.Infof("Connected (%.3fs)!", a.elapsed(start))
	return nil
}

// Stop stops polling, waits for the updates in progress and closes the storage.
func (a *Application) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.session
	if s == nil {
		return ErrNotRunning
	}

	a.Logger.Infof("Stopping the bot session...")
	start := a.Clock.Now()

	s.cancel()
	err := <-s.done

	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		if serr := s.metrics.Shutdown(ctx); serr != nil {
			a.Logger.Errorw("failed stopping metrics server", "err", serr)
		}
		cancel()
	}

	if cerr := s.storage.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, "failed closing storage")
	}

	a.session = nil
	a.Logger.Infof("Bot session shutdown complete (%.3fs)!", a.elapsed(start))
	return err
}

func (a *Application) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil
}

func (a *Application) Storage() (storage.DataStorage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return nil, ErrNotRunning
	}
	return a.session.storage, nil
}

// Bot returns the running bot or nil.
func (a *Application) Bot() *tgbot.TBot {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return nil
	}
	return a.session.bot
}
