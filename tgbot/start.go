package tgbot

import (
	"context"
	"fmt"
	"strings"

	"oopbot/bot"
)

func (b *TBot) handleStart(ctx context.Context, c *bot.Context) (bot.Result, error) {
	header := ""
	if c.IsPrivate() {
		header = txtTrackerHeader
	}

	var names []string
	for _, cmd := range b.Commands.Commands() {
		names = append(names, escape("/"+cmd.Name))
	}

	if err := c.Reply(fmt.Sprintf(fmtStart, header, strings.Join(names, ", ")), nil); err != nil {
		return bot.ResultInternalError, err
	}
	return bot.ResultSuccess, nil
}
