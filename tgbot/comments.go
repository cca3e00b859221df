package tgbot

import (
	"context"
	"fmt"
	"strings"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"oopbot/bot"
	"oopbot/storage"
)

// handleComments serves "tasks comments <id> [list [page] | new]".
func (b *TBot) handleComments(ctx context.Context, c *bot.Context, id int64) (bot.Result, error) {
	task, err := chatTask(ctx, c, id)
	if err != nil {
		return bot.ResultInternalError, err
	}
	if task == nil {
		return reply(c, txtTaskNotFound, nil)
	}

	switch c.Input.ReadToken() {
	case "", "list":
		page, err := c.Input.ReadInt()
		if err != nil || page < 1 {
			page = 1
		}
		return b.handleCommentList(ctx, c, task, page)
	case "new":
		state := storage.ReadingNewTaskComment{TaskID: task.ID}
		if err := c.Storage.DialogStates().Set(ctx, c.User.ID, c.Chat.ID, state); err != nil {
			return bot.ResultInternalError, err
		}
		return reply(c, txtEnterComment, nil)
	}
	return bot.ResultInvalidSyntax, nil
}

func (b *TBot) handleCommentList(ctx context.Context, c *bot.Context, task *storage.Task, page int) (bot.Result, error) {
	comments := c.Storage.Tasks().Comments()

	total, err := comments.CountByTaskID(ctx, task.ID)
	if err != nil {
		return bot.ResultInternalError, err
	}

	controls := tg.NewInlineKeyboardRow(
		tg.NewInlineKeyboardButtonData(btnWriteComment, fmt.Sprintf(fmtCmdCommentNew, task.ID)),
		tg.NewInlineKeyboardButtonData(btnBackToTask, fmt.Sprintf(fmtCmdTasksShow, task.ID)),
	)

	pages := pageCount(total)
	if pages == 0 {
		return reply(c, txtNoComments, keyboard(controls))
	}
	if page > pages {
		page = 1
	}

	list, err := comments.GetByTaskID(ctx, task.ID, pageSize, (page-1)*pageSize, true)
	if err != nil {
		return bot.ResultInternalError, err
	}

	users := newUserCache(c.Storage.Users())

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(fmtCommentsHeader, escape(task.Name), page, pages))
	for _, cm := range list {
		author, err := users.mention(ctx, &cm.AuthorID)
		if err != nil {
			return bot.ResultInternalError, err
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf(fmtCommentTitle, author, b.formatTime(cm.PostedAt)))
		writeQuote(&sb, cm.Content)
	}

	kb := keyboard(pageButtons(page, pages, func(p int) string {
		return fmt.Sprintf(fmtCmdCommentsPage, task.ID, p)
	}), controls)
	return reply(c, sb.String(), kb)
}
