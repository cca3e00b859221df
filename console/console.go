// Package console reads operator commands from the standard input while the bot is running.
package console

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/term"

	"oopbot/command"
)

const (
	HistoryFile = ".console_history"
	prompt      = "> "
)

// Application is what console commands control.
type Application interface {
	IsRunning() bool
	Stop() error
}

// Console is also an io.Writer: log output written through it does not break the prompt.
type Console struct {
	in          io.Reader
	out         io.Writer
	HistoryPath string

	mu       sync.Mutex
	logger   *zap.SugaredLogger
	terminal *term.Terminal
	restore  func()
}

func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:          in,
		out:         out,
		HistoryPath: HistoryFile,
		logger:      zap.NewNop().Sugar(),
	}
}

func (c *Console) SetLogger(l *zap.SugaredLogger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
}

func (c *Console) log() *zap.SugaredLogger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logger
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	t := c.terminal
	c.mu.Unlock()

	if t != nil {
		return t.Write(p)
	}
	return c.out.Write(p)
}

func (c *Console) Sync() error {
	return nil
}

// start switches a terminal stdin into raw mode and returns the line reader.
func (c *Console) start() (func() (string, error), error) {
	f, ok := c.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		sc := bufio.NewScanner(c.in)
		return func() (string, error) {
			if sc.Scan() {
				return sc.Text(), nil
			}
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}, nil
	}

	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, errors.Wrap(err, "failed to switch terminal to raw mode")
	}

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{c.in, c.out}, prompt)

	c.mu.Lock()
	c.terminal = t
	c.restore = func() { term.Restore(fd, state) }
	c.mu.Unlock()

	return t.ReadLine, nil
}

// Close gives the terminal back in its original mode.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.restore != nil {
		c.restore()
		c.restore = nil
	}
	c.terminal = nil
}

// Run reads commands until the application stops or the input ends. The end of the input
// stops the application.
func (c *Console) Run(app Application) error {
	read, err := c.start()
	if err != nil {
		return err
	}
	defer c.Close()

	for app.IsRunning() {
		line, err := read()
		if err == io.EOF {
			if app.IsRunning() {
				c.execute(app, "stop")
			}
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed reading console input")
		}

		c.appendHistory(line)
		c.Handle(app, line)
	}
	return nil
}

// Handle executes one console command.
func (c *Console) Handle(app Application, line string) {
	input := command.NewInput(strings.TrimSpace(line))
	if input.IsEmpty() {
		return
	}

	switch input.ReadToken() {
	case "stop":
		c.execute(app, line)
	default:
		c.log().Infof("Unknown command: %s", line)
	}
}

func (c *Console) execute(app Application, line string) {
	if err := app.Stop(); err != nil {
		c.log().Errorw("failed to execute console command", "command", line, "err", err)
	}
}

func (c *Console) appendHistory(line string) {
	if c.HistoryPath == "" || strings.TrimSpace(line) == "" {
		return
	}

	f, err := os.OpenFile(c.HistoryPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		c.log().Warnw("failed opening console history", "err", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		c.log().Warnw("failed writing console history", "err", err)
	}
}
