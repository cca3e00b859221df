package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"oopbot/app"
	"oopbot/bot"
	"oopbot/console"
)

// errReported is returned once the failure has been logged.
var errReported = errors.New("oopbot failed")

type options struct {
	configPath string
	envFile    string
	set        []string
	debug      bool
}

// newLogger creates a logger in global namespace writing to sink
func newLogger(sink zapcore.WriteSyncer, debug bool) *zap.Logger {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.Fields(zap.String("ns", "oopbot")))
}

func newRootCommand() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:           "oopbot",
		Short:         "Telegram task tracker bot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o, cmd.Flags().Changed("env-file"))
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "application.yml", "configuration file, created with defaults if missing")
	f.StringVar(&o.envFile, "env-file", ".env", "dotenv file with oopbot.* overrides")
	f.StringArrayVar(&o.set, "set", nil, "override a configuration key, e.g. --set telegram.workers=4")
	f.BoolVar(&o.debug, "debug", false, "log debug messages")
	return cmd
}

// overrides collects oopbot.* keys from the environment, the dotenv file and --set flags.
// A missing dotenv file is an error only when it was asked for explicitly.
func overrides(o *options, envFileRequired bool) (map[string]string, error) {
	dotenv, err := godotenv.Read(o.envFile)
	if err != nil {
		if envFileRequired || !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "failed reading %s", o.envFile)
		}
		dotenv = nil
	}

	flags, err := bot.ParseSetFlags(o.set)
	if err != nil {
		return nil, err
	}

	return bot.Overrides(bot.EnvironMap(os.Environ()), dotenv, flags), nil
}

func run(ctx context.Context, o *options, envFileRequired bool) error {
	start := time.Now()

	logger := newLogger(zapcore.Lock(os.Stderr), o.debug)
	l := logger.Sugar()
	defer func() { logger.Sync() }()

	ov, err := overrides(o, envFileRequired)
	if err != nil {
		l.Errorw("failed to read configuration overrides", "err", err)
		return errReported
	}

	cfg, err := bot.LoadFile(o.configPath, ov)
	if errors.Is(err, bot.ErrDefaultConfigCreated) {
		l.Warnf("Unable to find bot configuration file %s, the default one was created there", o.configPath)
		return errReported
	}
	if err != nil {
		l.Errorw("failed to load configuration", "path", o.configPath, "err", err)
		return errReported
	}

	var con *console.Console
	if cfg.Console.Enabled {
		con = console.New(os.Stdin, os.Stdout)
		logger = newLogger(con, o.debug)
		l = logger.Sugar()
		con.SetLogger(l)
	}

	l.Infof("Starting the @%s bot", cfg.BotInfo.Username)

	a := app.New(cfg, l)
	if err := a.Start(ctx); err != nil {
		l.Errorw("failed to start the bot", "err", err)
		return errReported
	}

	l.Infof("Done (%.3fs)!", time.Since(start).Seconds())

	var consoleDone chan struct{}
	if con != nil {
		consoleDone = make(chan struct{})
		go func() {
			defer close(consoleDone)
			if err := con.Run(a); err != nil {
				l.Errorw("failed running console", "err", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case <-consoleDone:
	}

	if err := a.Stop(); err != nil && !errors.Is(err, app.ErrNotRunning) {
		l.Errorw("failed to stop the bot", "err", err)
	}
	if con != nil {
		con.Close()
	}
	return nil
}

// oopbot entry point
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
