package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oopbot/bot"
)

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--set", "a.b=1", "--set", "c=2", "--debug"}))

	set, err := cmd.Flags().GetStringArray("set")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.b=1", "c=2"}, set)

	cfg, err := cmd.Flags().GetString("config")
	require.NoError(t, err)
	assert.Equal(t, "application.yml", cfg)
}

func TestOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("oopbot.bot-info.token=from-dotenv\nOTHER=1\n"), 0o600))
	t.Setenv("oopbot.telegram.workers", "3")

	got, err := overrides(&options{envFile: envFile, set: []string{"console.enabled=false"}}, true)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", got["bot-info.token"])
	assert.Equal(t, "3", got["telegram.workers"])
	assert.Equal(t, "false", got["console.enabled"])

	missing := filepath.Join(dir, "missing.env")
	_, err = overrides(&options{envFile: missing}, false)
	assert.NoError(t, err)
	_, err = overrides(&options{envFile: missing}, true)
	assert.Error(t, err)

	_, err = overrides(&options{envFile: missing, set: []string{"broken"}}, false)
	assert.Error(t, err)
}

func TestRunCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")

	err := run(context.Background(), &options{configPath: path, envFile: filepath.Join(t.TempDir(), ".env")}, false)
	assert.True(t, errors.Is(err, errReported))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, bot.DefaultConfig, data)
}

func TestRunInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")
	require.NoError(t, os.WriteFile(path, []byte("bot-info:\n  username: \"\"\n"), 0o600))

	err := run(context.Background(), &options{configPath: path, envFile: filepath.Join(t.TempDir(), ".env")}, false)
	assert.True(t, errors.Is(err, errReported))
}
