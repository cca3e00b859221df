package app

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"oopbot/bot"
	"oopbot/tgbot"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tg.Chattable
	updates chan tg.Update
	stopped bool
}

func (f *fakeAPI) Send(c tg.Chattable) (tg.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tg.Message{}, nil
}

func (f *fakeAPI) Request(c tg.Chattable) (*tg.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return &tg.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tg.UpdateConfig) tg.UpdatesChannel { return f.updates }

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func testConfig(t *testing.T) *bot.Config {
	t.Helper()

	cfg, err := bot.Load(strings.NewReader(""), map[string]string{
		"bot-info.username":                      "oop_bot",
		"bot-info.token":                         "123:abc",
		"data-storage.type":                      "sqlite",
		"data-storage.sqlite.database-file-path": filepath.Join(t.TempDir(), "oopbot.db"),
		"telegram.retry-delay":                   "0s",
	})
	require.NoError(t, err)
	return cfg
}

func newApp(t *testing.T, cfg *bot.Config) (*Application, *fakeAPI, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zap.InfoLevel)
	api := &fakeAPI{updates: make(chan tg.Update)}

	a := New(cfg, zap.New(core).Sugar())
	a.Clock = clock.NewFake()
	a.Connect = func(token string, l *zap.SugaredLogger) (tgbot.API, error) {
		assert.Equal(t, "123:abc", token)
		return api, nil
	}
	return a, api, logs
}

func TestStartStop(t *testing.T) {
	a, api, logs := newApp(t, testConfig(t))
	ctx := context.Background()

	assert.False(t, a.IsRunning())
	_, err := a.Storage()
	assert.EqualError(t, err, "bot is not running")
	assert.EqualError(t, a.Stop(), "bot is not running")

	require.NoError(t, a.Start(ctx))
	assert.True(t, a.IsRunning())
	assert.EqualError(t, a.Start(ctx), "bot is already running")
	assert.Equal(t, 1, logs.FilterMessage("Connected (0.000s)!").Len())

	s, err := a.Storage()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Type())
	require.NotNil(t, a.Bot())
	assert.Equal(t, "oop_bot", a.Bot().Username)

	api.updates <- tg.Update{Message: &tg.Message{
		From: &tg.User{ID: 1},
		Chat: &tg.Chat{ID: 1, Type: "private"},
		Text: "/start",
	}}

	require.NoError(t, a.Stop())
	assert.False(t, a.IsRunning())
	assert.Nil(t, a.Bot())
	assert.True(t, api.stopped)
	assert.Len(t, api.sent, 1)
	assert.Equal(t, 1, logs.FilterMessage("Bot session shutdown complete (0.000s)!").Len())

	_, err = s.Users().GetByTelegramID(ctx, 1)
	assert.Error(t, err, "storage is closed after stop")

	require.NoError(t, a.Start(ctx), "can be started again")
	u, err := a.Bot().Storage.Users().GetByTelegramID(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, u)
	require.NoError(t, a.Stop())
}

func TestStartConnectFailure(t *testing.T) {
	a, _, _ := newApp(t, testConfig(t))
	a.Connect = func(string, *zap.SugaredLogger) (tgbot.API, error) {
		return nil, errors.New("Not Found")
	}

	assert.EqualError(t, a.Start(context.Background()), "Not Found")
	assert.False(t, a.IsRunning())
}

func TestStartWithMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddress = "127.0.0.1:0"

	a, _, _ := newApp(t, cfg)
	require.NoError(t, a.Start(context.Background()))
	assert.NotNil(t, a.Bot().Metrics)
	require.NoError(t, a.Stop())
}

func TestStorageSettings(t *testing.T) {
	s := StorageSettings(bot.DataStorage{
		Type: bot.StoragePostgreSQL,
		PostgreSQL: &bot.SQLServer{
			Host: "db", Port: 5432, Database: "oop", Username: "u", Password: "p",
			TablePrefix: "tt_", PoolSize: 3,
		},
	})
	assert.Equal(t, "postgresql", s.Type)
	assert.Equal(t, "db", s.Host)
	assert.Equal(t, 5432, s.Port)
	assert.Equal(t, 3, s.PoolSize)

	s = StorageSettings(bot.DataStorage{
		Type:   bot.StorageSQLite,
		SQLite: &bot.SQLite{DatabaseFilePath: "x.db", TablePrefix: "p_", PoolSize: 2},
	})
	assert.Equal(t, "x.db", s.FilePath)
	assert.Equal(t, "p_", s.TablePrefix)
	assert.Empty(t, s.Host)
}
