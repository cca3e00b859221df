package tgbot

import (
	"context"
	"fmt"
	"strings"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"oopbot/bot"
	"oopbot/storage"
)

func (b *TBot) handleTasks(ctx context.Context, c *bot.Context) (bot.Result, error) {
	sub := c.Input.ReadToken()
	if sub == "new" {
		return b.handleNewTask(ctx, c)
	}
	if sub == "list" {
		page, err := c.Input.ReadInt()
		if err != nil || page < 1 {
			page = 1
		}
		return b.handleTaskList(ctx, c, page)
	}

	id, err := c.Input.ReadInt64()
	if err != nil {
		return b.handleTasksHelp(c)
	}

	switch sub {
	case "show":
		return b.handleShowTask(ctx, c, id)
	case "edit-name":
		return b.handleEditTask(ctx, c, id, false)
	case "edit-description":
		return b.handleEditTask(ctx, c, id, true)
	case "delete-request":
		return b.handleDeleteRequest(ctx, c, id)
	case "delete-confirm":
		return b.handleDeleteConfirm(ctx, c, id)
	case "comments":
		return b.handleComments(ctx, c, id)
	}
	return b.handleTasksHelp(c)
}

func reply(c *bot.Context, text string, markup any) (bot.Result, error) {
	if err := c.Reply(text, markup); err != nil {
		return bot.ResultInternalError, err
	}
	return bot.ResultSuccess, nil
}

func (b *TBot) handleTasksHelp(c *bot.Context) (bot.Result, error) {
	return reply(c, txtTasksHelp, keyboardTasksHelp)
}

func (b *TBot) handleNewTask(ctx context.Context, c *bot.Context) (bot.Result, error) {
	if err := c.Storage.DialogStates().Set(ctx, c.User.ID, c.Chat.ID, storage.ReadingNewTaskName{}); err != nil {
		return bot.ResultInternalError, err
	}
	return reply(c, txtEnterTaskName, nil)
}

// chatTask returns nil when the task does not exist or belongs to another chat.
func chatTask(ctx context.Context, c *bot.Context, id int64) (*storage.Task, error) {
	task, err := c.Storage.Tasks().GetByID(ctx, id)
	if err != nil || task == nil {
		return nil, err
	}
	if task.ChatID != c.Chat.ID {
		return nil, nil
	}
	return task, nil
}

func pageCount(total int) int {
	return (total + pageSize - 1) / pageSize
}

func (b *TBot) handleTaskList(ctx context.Context, c *bot.Context, page int) (bot.Result, error) {
	chatID := c.Chat.ID
	total, err := c.Storage.Tasks().Count(ctx, &chatID, nil)
	if err != nil {
		return bot.ResultInternalError, err
	}

	pages := pageCount(total)
	if pages == 0 {
		return reply(c, txtNoTasks, keyboardFirstTask)
	}
	if page > pages {
		page = 1
	}

	tasks, err := c.Storage.Tasks().Search(ctx, storage.TaskQuery{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
		Sort:   storage.SortUpdatedAt,
		ChatID: &chatID,
	})
	if err != nil {
		return bot.ResultInternalError, err
	}

	users := newUserCache(c.Storage.Users())

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(fmtTasksHeader, page, pages))
	numbers := make([]tg.InlineKeyboardButton, 0, len(tasks))
	for i, t := range tasks {
		sb.WriteString("\n")
		if err := b.writeTaskTitle(ctx, &sb, t, users); err != nil {
			return bot.ResultInternalError, err
		}
		if t.Description != nil {
			writeQuote(&sb, *t.Description)
		}

		numbers = append(numbers, tg.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d%s", i+1, keycapSuffix),
			fmt.Sprintf(fmtCmdTasksShow, t.ID),
		))
	}

	kb := keyboard(numbers, pageButtons(page, pages, func(p int) string {
		return fmt.Sprintf(fmtCmdTasksList, p)
	}))
	return reply(c, sb.String(), kb)
}

func (b *TBot) handleShowTask(ctx context.Context, c *bot.Context, id int64) (bot.Result, error) {
	task, err := chatTask(ctx, c, id)
	if err != nil {
		return bot.ResultInternalError, err
	}
	if task == nil {
		return reply(c, txtTaskNotFound, nil)
	}

	users := newUserCache(c.Storage.Users())

	var sb strings.Builder
	if err := b.writeTaskTitle(ctx, &sb, task, users); err != nil {
		return bot.ResultInternalError, err
	}
	if task.Description != nil {
		sb.WriteString(txtDescriptionHeading)
		writeQuote(&sb, *task.Description)
	}

	creator, err := users.get(ctx, task.CreatedByID)
	if err != nil {
		return bot.ResultInternalError, err
	}
	if creator == nil {
		return reply(c, sb.String(), nil)
	}

	kb := tg.NewInlineKeyboardMarkup(
		tg.NewInlineKeyboardRow(
			tg.NewInlineKeyboardButtonData(btnEditName, fmt.Sprintf(fmtCmdEditName, task.ID)),
			tg.NewInlineKeyboardButtonData(btnEditDesc, fmt.Sprintf(fmtCmdEditDesc, task.ID)),
		),
		tg.NewInlineKeyboardRow(
			tg.NewInlineKeyboardButtonData(btnComments, fmt.Sprintf(fmtCmdComments, task.ID)),
		),
		tg.NewInlineKeyboardRow(
			tg.NewInlineKeyboardButtonData(btnDeleteRequest, fmt.Sprintf(fmtCmdDeleteRequest, task.ID)),
		),
	)
	return reply(c, sb.String(), kb)
}

// handleEditTask puts the creator of the task into the dialog that reads the new name or description.
func (b *TBot) handleEditTask(ctx context.Context, c *bot.Context, id int64, description bool) (bot.Result, error) {
	task, err := chatTask(ctx, c, id)
	if err != nil {
		return bot.ResultInternalError, err
	}
	if task == nil {
		return reply(c, txtTaskNotFound, nil)
	}

	var state storage.DialogState = storage.ReadingUpdatedTaskName{TaskID: task.ID}
	prompt := txtEnterNewTaskName
	if description {
		state = storage.ReadingUpdatedTaskDescription{TaskID: task.ID}
		prompt = txtEnterNewTaskDescription
	}

	if err := c.Storage.DialogStates().Set(ctx, task.CreatedByID, task.ChatID, state); err != nil {
		return bot.ResultInternalError, err
	}
	return reply(c, prompt, nil)
}

func (b *TBot) handleDeleteRequest(ctx context.Context, c *bot.Context, id int64) (bot.Result, error) {
	task, err := chatTask(ctx, c, id)
	if err != nil {
		return bot.ResultInternalError, err
	}
	if task == nil {
		return reply(c, txtTaskNotFound, nil)
	}

	kb := tg.NewInlineKeyboardMarkup(tg.NewInlineKeyboardRow(
		tg.NewInlineKeyboardButtonData(btnDeleteConfirm, fmt.Sprintf(fmtCmdDeleteConfirm, task.ID)),
		tg.NewInlineKeyboardButtonData(btnCancel, fmt.Sprintf(fmtCmdDeleteMessage, c.ChatID())),
	))
	return reply(c, fmt.Sprintf(fmtDeleteRequest, escape(task.Name)), kb)
}

func (b *TBot) handleDeleteConfirm(ctx context.Context, c *bot.Context, id int64) (bot.Result, error) {
	task, err := chatTask(ctx, c, id)
	if err != nil {
		return bot.ResultInternalError, err
	}

	deleted := false
	if task != nil {
		if deleted, err = c.Storage.Tasks().Delete(ctx, task.ID); err != nil {
			return bot.ResultInternalError, err
		}
	}

	text := txtTaskNotFound
	if deleted {
		text = txtTaskDeleted
	}
	if err := c.Reply(text, nil); err != nil {
		return bot.ResultInternalError, err
	}
	return b.handleTaskList(ctx, c, 1)
}

func (b *TBot) writeTaskTitle(ctx context.Context, sb *strings.Builder, t *storage.Task, users *userCache) error {
	creator, err := users.mention(ctx, &t.CreatedByID)
	if err != nil {
		return err
	}
	sb.WriteString(fmt.Sprintf(fmtTaskTitle, escape(t.Name), creator, b.formatTime(t.CreatedAt)))

	if t.UpdatedAt == nil {
		return nil
	}
	editor, err := users.mention(ctx, t.UpdatedByID)
	if err != nil {
		return err
	}
	sb.WriteString(fmt.Sprintf(fmtTaskLastChange, b.formatTime(*t.UpdatedAt), editor))
	return nil
}

// writeQuote writes text as a MarkdownV2 block quote.
func writeQuote(sb *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString(">")
		sb.WriteString(escape(line))
		sb.WriteString("\n")
	}
}

func pageButtons(page, pages int, data func(page int) string) []tg.InlineKeyboardButton {
	var row []tg.InlineKeyboardButton
	if page > 1 {
		row = append(row, tg.NewInlineKeyboardButtonData(fmt.Sprintf(fmtPrevPage, page-1), data(page-1)))
	}
	if page < pages {
		row = append(row, tg.NewInlineKeyboardButtonData(fmt.Sprintf(fmtNextPage, page+1), data(page+1)))
	}
	return row
}

// keyboard builds an inline keyboard from the non-empty rows. It returns nil if all rows are empty.
func keyboard(rows ...[]tg.InlineKeyboardButton) any {
	var kept [][]tg.InlineKeyboardButton
	for _, r := range rows {
		if len(r) > 0 {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return tg.NewInlineKeyboardMarkup(kept...)
}

// userCache avoids fetching the same user twice while rendering one message.
type userCache struct {
	users storage.UserStorage
	byID  map[int64]*storage.User
}

func newUserCache(users storage.UserStorage) *userCache {
	return &userCache{users: users, byID: make(map[int64]*storage.User)}
}

func (c *userCache) get(ctx context.Context, id int64) (*storage.User, error) {
	if u, ok := c.byID[id]; ok {
		return u, nil
	}
	u, err := c.users.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed fetching user %d", id)
	}
	c.byID[id] = u
	return u, nil
}

func (c *userCache) mention(ctx context.Context, id *int64) (string, error) {
	if id == nil {
		return txtNullUser, nil
	}
	u, err := c.get(ctx, *id)
	if err != nil {
		return "", err
	}
	if u == nil {
		return txtNullUser, nil
	}
	return u.MarkdownMention(), nil
}
