package tgbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"oopbot/bot"
	"oopbot/storage"
)

func (b *TBot) handleDialog(ctx context.Context, c *bot.Context, state storage.DialogState) error {
	text := c.Message.Text

	switch s := state.(type) {
	case storage.ReadingNewTaskName:
		return b.readNewTaskName(ctx, c, text)
	case storage.ReadingNewTaskDescription:
		return b.readNewTaskDescription(ctx, c, s, text)
	case storage.ReadingUpdatedTaskName:
		return b.readUpdatedTaskName(ctx, c, s, text)
	case storage.ReadingUpdatedTaskDescription:
		return b.readUpdatedTaskDescription(ctx, c, s, text)
	case storage.ReadingNewTaskComment:
		return b.readNewTaskComment(ctx, c, s, text)
	}
	return errors.Wrapf(storage.ErrUnknownDialogState, "%T", state)
}

// nameError returns the message explaining why name is rejected, or "" if it is valid.
func nameError(name string) string {
	switch storage.ValidateTaskName(name) {
	case nil:
		return ""
	case storage.ErrNameTooLong:
		return fmt.Sprintf(fmtTaskNameTooLong, storage.TaskNameMaxLength)
	default:
		return txtTaskNameBlank
	}
}

// parseDescription treats blank text and a lone dash as "no description".
func parseDescription(text string) (*string, string) {
	d := strings.TrimSpace(text)
	if d == "" || noDescription[d] {
		return nil, ""
	}
	if storage.ValidateTaskDescription(&d) != nil {
		return nil, fmt.Sprintf(fmtDescriptionLong, storage.TaskDescriptionMaxLength)
	}
	return &d, ""
}

func (b *TBot) readNewTaskName(ctx context.Context, c *bot.Context, text string) error {
	if msg := nameError(text); msg != "" {
		return c.Reply(msg, nil)
	}

	state := storage.ReadingNewTaskDescription{TaskName: strings.TrimSpace(text)}
	if err := c.Storage.DialogStates().Set(ctx, c.User.ID, c.Chat.ID, state); err != nil {
		return err
	}
	return c.Reply(txtEnterTaskDescription, nil)
}

func (b *TBot) readNewTaskDescription(ctx context.Context, c *bot.Context, s storage.ReadingNewTaskDescription, text string) error {
	desc, msg := parseDescription(text)
	if msg != "" {
		return c.Reply(msg, nil)
	}

	if _, err := c.Storage.DialogStates().Delete(ctx, c.User.ID, c.Chat.ID); err != nil {
		return err
	}
	task, err := c.Storage.Tasks().Create(ctx, c.Chat.ID, s.TaskName, desc, c.User.ID)
	if err != nil {
		return err
	}

	if err := c.Reply(txtTaskCreated, nil); err != nil {
		return err
	}
	b.replay(ctx, c.Message, fmt.Sprintf(fmtReplayTasksShow, task.ID))
	return nil
}

func (b *TBot) readUpdatedTaskName(ctx context.Context, c *bot.Context, s storage.ReadingUpdatedTaskName, text string) error {
	if msg := nameError(text); msg != "" {
		return c.Reply(msg, nil)
	}

	return b.finishUpdate(ctx, c, s.TaskID, func() (bool, error) {
		return c.Storage.Tasks().UpdateName(ctx, s.TaskID, strings.TrimSpace(text), c.User.ID)
	})
}

func (b *TBot) readUpdatedTaskDescription(ctx context.Context, c *bot.Context, s storage.ReadingUpdatedTaskDescription, text string) error {
	desc, msg := parseDescription(text)
	if msg != "" {
		return c.Reply(msg, nil)
	}

	return b.finishUpdate(ctx, c, s.TaskID, func() (bool, error) {
		return c.Storage.Tasks().UpdateDescription(ctx, s.TaskID, desc, c.User.ID)
	})
}

func (b *TBot) finishUpdate(ctx context.Context, c *bot.Context, taskID int64, update func() (bool, error)) error {
	if _, err := c.Storage.DialogStates().Delete(ctx, c.User.ID, c.Chat.ID); err != nil {
		return err
	}

	updated, err := update()
	if err != nil {
		return err
	}
	if !updated {
		return c.Reply(txtTaskNotFound, nil)
	}

	if err := c.Reply(txtTaskUpdated, nil); err != nil {
		return err
	}
	b.replay(ctx, c.Message, fmt.Sprintf(fmtReplayTasksShow, taskID))
	return nil
}

func (b *TBot) readNewTaskComment(ctx context.Context, c *bot.Context, s storage.ReadingNewTaskComment, text string) error {
	switch storage.ValidateCommentContent(text) {
	case nil:
	case storage.ErrContentTooLong:
		return c.Reply(fmt.Sprintf(fmtCommentTooLong, storage.CommentContentMaxLength), nil)
	default:
		return c.Reply(txtCommentBlank, nil)
	}

	if _, err := c.Storage.DialogStates().Delete(ctx, c.User.ID, c.Chat.ID); err != nil {
		return err
	}

	task, err := c.Storage.Tasks().GetByID(ctx, s.TaskID)
	if err != nil {
		return err
	}
	if task == nil {
		return c.Reply(txtTaskNotFound, nil)
	}

	if _, err := c.Storage.Tasks().Comments().Create(ctx, task.ID, c.User.ID, strings.TrimSpace(text)); err != nil {
		return err
	}

	if err := c.Reply(txtCommentAdded, nil); err != nil {
		return err
	}
	b.replay(ctx, c.Message, fmt.Sprintf(fmtReplayComments, task.ID))
	return nil
}
