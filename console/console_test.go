package console

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeApp struct {
	running bool
	stops   int
	err     error
}

func (a *fakeApp) IsRunning() bool { return a.running }

func (a *fakeApp) Stop() error {
	a.stops++
	if a.err != nil {
		return a.err
	}
	a.running = false
	return nil
}

func newConsole(t *testing.T, input string) (*Console, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	c := New(strings.NewReader(input), &bytes.Buffer{})
	c.HistoryPath = filepath.Join(t.TempDir(), HistoryFile)
	c.SetLogger(zap.New(core).Sugar())
	return c, logs
}

func TestStopCommand(t *testing.T) {
	c, logs := newConsole(t, "\n  \nhelp me\nstop\nnever read\n")
	app := &fakeApp{running: true}

	require.NoError(t, c.Run(app))
	assert.Equal(t, 1, app.stops)
	assert.False(t, app.running)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Unknown command: help me", logs.All()[0].Message)

	history, err := os.ReadFile(c.HistoryPath)
	require.NoError(t, err)
	assert.Equal(t, "help me\nstop\n", string(history))
}

func TestEOFStops(t *testing.T) {
	c, _ := newConsole(t, "")
	app := &fakeApp{running: true}

	require.NoError(t, c.Run(app))
	assert.Equal(t, 1, app.stops)
}

func TestStopFailure(t *testing.T) {
	c, logs := newConsole(t, "")
	app := &fakeApp{running: true, err: errors.New("bot is not running")}

	c.Handle(app, "stop now")
	assert.Equal(t, 1, app.stops)
	require.Equal(t, 1, logs.FilterMessage("failed to execute console command").Len())
}

func TestWriteWithoutTerminal(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out)

	n, err := c.Write([]byte("log line\n"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, "log line\n", out.String())
	assert.NoError(t, c.Sync())
}
