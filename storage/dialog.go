package storage

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// DialogStateType identifies a dialog state in storage.
type DialogStateType string

const (
	TypeReadingNewTaskName            DialogStateType = "reading_new_task_name"
	TypeReadingNewTaskDescription     DialogStateType = "reading_new_task_description"
	TypeReadingUpdatedTaskName        DialogStateType = "reading_updated_task_name"
	TypeReadingUpdatedTaskDescription DialogStateType = "reading_updated_task_description"
	TypeReadingNewTaskComment         DialogStateType = "reading_new_task_comment"
)

// DialogStateTypes lists every known type in the order they were introduced.
var DialogStateTypes = []DialogStateType{
	TypeReadingNewTaskName,
	TypeReadingNewTaskDescription,
	TypeReadingUpdatedTaskName,
	TypeReadingUpdatedTaskDescription,
	TypeReadingNewTaskComment,
}

var ErrUnknownDialogState = errors.New("unknown dialog state type")

// DialogState is what the bot expects the next plain message of a user in a chat to be.
type DialogState interface {
	Type() DialogStateType
}

type ReadingNewTaskName struct{}

type ReadingNewTaskDescription struct {
	TaskName string `json:"task_name"`
}

type ReadingUpdatedTaskName struct {
	TaskID int64 `json:"task_id"`
}

type ReadingUpdatedTaskDescription struct {
	TaskID int64 `json:"task_id"`
}

type ReadingNewTaskComment struct {
	TaskID int64 `json:"task_id"`
}

func (ReadingNewTaskName) Type() DialogStateType            { return TypeReadingNewTaskName }
func (ReadingNewTaskDescription) Type() DialogStateType     { return TypeReadingNewTaskDescription }
func (ReadingUpdatedTaskName) Type() DialogStateType        { return TypeReadingUpdatedTaskName }
func (ReadingUpdatedTaskDescription) Type() DialogStateType { return TypeReadingUpdatedTaskDescription }
func (ReadingNewTaskComment) Type() DialogStateType         { return TypeReadingNewTaskComment }

// EncodeDialogState returns the stored representation of a state.
func EncodeDialogState(s DialogState) (DialogStateType, []byte, error) {
	if s == nil {
		return "", nil, errors.New("dialog state is nil")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return "", nil, errors.Wrapf(err, "failed encoding dialog state %s", s.Type())
	}
	return s.Type(), data, nil
}

// DecodeDialogState restores a state from its stored representation.
func DecodeDialogState(t DialogStateType, data []byte) (DialogState, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}

	switch t {
	case TypeReadingNewTaskName:
		return ReadingNewTaskName{}, nil

	case TypeReadingNewTaskDescription:
		var s ReadingNewTaskDescription
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, errors.Wrapf(err, "failed decoding %s", t)
		}
		if err := ValidateTaskName(s.TaskName); err != nil {
			return nil, errors.Wrap(err, "invalid task_name")
		}
		return s, nil

	case TypeReadingUpdatedTaskName:
		var s ReadingUpdatedTaskName
		if err := decodeTaskID(data, &s.TaskID); err != nil {
			return nil, errors.Wrapf(err, "failed decoding %s", t)
		}
		return s, nil

	case TypeReadingUpdatedTaskDescription:
		var s ReadingUpdatedTaskDescription
		if err := decodeTaskID(data, &s.TaskID); err != nil {
			return nil, errors.Wrapf(err, "failed decoding %s", t)
		}
		return s, nil

	case TypeReadingNewTaskComment:
		var s ReadingNewTaskComment
		if err := decodeTaskID(data, &s.TaskID); err != nil {
			return nil, errors.Wrapf(err, "failed decoding %s", t)
		}
		return s, nil
	}

	return nil, errors.Wrapf(ErrUnknownDialogState, "%q", t)
}

// decodeTaskID requires task_id to be present.
func decodeTaskID(data []byte, id *int64) error {
	var v struct {
		TaskID *int64 `json:"task_id"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.TaskID == nil {
		return errors.New("task_id is missing")
	}
	*id = *v.TaskID
	return nil
}
