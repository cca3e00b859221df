package tgbot

import tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"

const (
	pageSize   = 5
	dateLayout = "02.01.2006 в 15:04:05"

	keycapSuffix = "\uFE0F\u20E3"
)

const (
	cmdStart = "start"
	cmdHelp  = "help"
	cmdTasks = "tasks"
)

// Callback data prefixes.
const (
	cbqCommand       = "command"
	cbqDeleteMessage = "delete-message"
)

// All texts are MarkdownV2.
const (
	txtUnknownCommand = "❌ Неизвестная команда :\\("
	txtInternalError  = "❌ Во время выполнения команды произошла внутренняя ошибка, попробуйте ещё раз\\."
	txtInvalidSyntax  = "❌ Неверный синтаксис команды :\\("

	txtTrackerHeader = "📔 *Трекер задач*"

	txtTasksHelp          = "📔 Используйте кнопки для создания и просмотра задач"
	txtNoTasks            = "📄 *Создайте первую задачу\\!*\n\nИспользуйте кнопку ниже или `/tasks new`, чтобы создать задачу\\.\n"
	txtTaskNotFound       = "❌ *Задача не найдена*"
	txtTaskDeleted        = "✅ Задача удалена"
	txtTaskCreated        = "🎉 *Задача создана\\!*"
	txtTaskUpdated        = "✅ *Задача обновлена\\!*"
	txtCommentAdded       = "✅ *Комментарий добавлен\\!*"
	txtNoComments         = "💬 *Комментариев пока нет*\n\nБудьте первым, кто оставит комментарий к задаче\\."
	txtDescriptionHeading = "\n*Описание:*\n"
	txtNullUser           = "\\<null\\>"

	txtEnterTaskName           = "✍️ Напишите название новой задачи"
	txtEnterTaskDescription    = "✍️ Хорошо, теперь напишите описание задачи\\. Если описание не нужно, напишите `-`, тогда задача будет создана без него"
	txtEnterNewTaskName        = "✍️ Напишите новое название задачи"
	txtEnterNewTaskDescription = "✍️ Напишите новое описание задачи\\. Чтобы убрать описание, напишите `-`"
	txtEnterComment            = "✍️ Напишите текст комментария"

	txtTaskNameBlank    = "❌ *Название задачи не может быть пустым*"
	txtCommentBlank     = "❌ *Текст комментария не может быть пустым*"
	fmtTaskNameTooLong  = "❌ *Название задачи не может быть длиннее %d символов*"
	fmtDescriptionLong  = "❌ *Описание задачи не может быть длиннее %d символов*"
	fmtCommentTooLong   = "❌ *Текст комментария не может быть длиннее %d символов*"
	fmtStart            = "%s\n\nС помощью этого бота можно удобно отслеживать задачи, дедлайны, а также настроить уведомления\\.\n\nСписок команд: %s\n\nБот находится в разработке 👀"
	fmtTasksHeader      = "📔 *Задачи:* страница %d из %d\n"
	fmtCommentsHeader   = "💬 *Комментарии к задаче «%s»:* страница %d из %d\n"
	fmtTaskTitle        = "*%s* _\\(создана %s %s\\)_\n"
	fmtTaskLastChange   = "_Последнее изменение %s от %s_\n"
	fmtCommentTitle     = "%s _%s_\n"
	fmtDeleteRequest    = "❗ Подтвердите удаление задачи «%s»"
	fmtPrevPage         = "← Страница %d"
	fmtNextPage         = "Страница %d →"
	fmtCmdTasksShow     = "command:tasks show %d"
	fmtCmdTasksList     = "command:tasks list %d"
	fmtCmdEditName      = "command:tasks edit-name %d"
	fmtCmdEditDesc      = "command:tasks edit-description %d"
	fmtCmdComments      = "command:tasks comments %d list"
	fmtCmdCommentsPage  = "command:tasks comments %d list %d"
	fmtCmdCommentNew    = "command:tasks comments %d new"
	fmtCmdDeleteRequest = "command:tasks delete-request %d"
	fmtCmdDeleteConfirm = "command:tasks delete-confirm %d"
	fmtCmdDeleteMessage = "delete-message:%d"
	fmtReplayTasksShow  = "/tasks show %d"
	fmtReplayComments   = "/tasks comments %d list"
)

const (
	btnNewTask       = "📄 Создать задачу"
	btnFirstTask     = "📄 Создать первую задачу"
	btnTaskList      = "📔 Список задач"
	btnEditName      = "Изменить название"
	btnEditDesc      = "Изменить описание"
	btnComments      = "Комментарии"
	btnDeleteRequest = "Удалить задачу"
	btnDeleteConfirm = "🗑 Удалить задачу"
	btnCancel        = "❌ Отмена"
	btnWriteComment  = "✍️ Написать комментарий"
	btnBackToTask    = "← К задаче"
)

var (
	keyboardTasksHelp = tg.NewInlineKeyboardMarkup(tg.NewInlineKeyboardRow(
		tg.NewInlineKeyboardButtonData(btnNewTask, "command:tasks new"),
		tg.NewInlineKeyboardButtonData(btnTaskList, "command:tasks list"),
	))
	keyboardFirstTask = tg.NewInlineKeyboardMarkup(tg.NewInlineKeyboardRow(
		tg.NewInlineKeyboardButtonData(btnFirstTask, "command:tasks new"),
	))
)

// noDescription are the replies meaning "create the task without a description".
var noDescription = map[string]bool{"-": true, "–": true, "—": true}
