package conversation

// Command — кнопка меню. Значение совпадает с текстом кнопки.
type Command string

const (
	CmdUpload     Command = "📤 Загрузить файл"
	CmdMyFiles    Command = "📁 Мои загрузки"
	CmdSearch     Command = "🔍 Поиск по коду"
	CmdInfo       Command = "ℹ️ Информация"
	CmdAdminPanel Command = "⚙️ Админ панель"
	CmdMainMenu   Command = "🔙 Главное меню"
	// CmdCancel — токен отмены ожидающего действия
	CmdCancel Command = "❌ Отмена"

	CmdUsers         Command = "👥 Пользователи"
	CmdStats         Command = "📊 Статистика"
	CmdBan           Command = "🚫 Бан пользователя"
	CmdPermanentBan  Command = "⛔ Бан навсегда"
	CmdUnban         Command = "✅ Разбан пользователя"
	CmdSetLimit      Command = "📈 Установить лимит"
	CmdBroadcast     Command = "📢 Рассылка"
	CmdStopBroadcast Command = "🛑 Остановить рассылку"
	CmdSettings      Command = "⚙️ Инфо"
)

// menu — таблица команд: текст кнопки → требуются ли права администратора.
var menu = map[Command]bool{
	CmdUpload:     false,
	CmdMyFiles:    false,
	CmdSearch:     false,
	CmdInfo:       false,
	CmdAdminPanel: true,
	CmdMainMenu:   false,
	CmdCancel:     false,

	CmdUsers:         true,
	CmdStats:         true,
	CmdBan:           true,
	CmdPermanentBan:  true,
	CmdUnban:         true,
	CmdSetLimit:      true,
	CmdBroadcast:     true,
	CmdStopBroadcast: true,
	CmdSettings:      true,
}

// LookupCommand сопоставляет текст с таблицей меню.
func LookupCommand(text string) (Command, bool) {
	c := Command(text)
	_, ok := menu[c]
	return c, ok
}

// AdminOnly сообщает, доступна ли команда только администраторам.
func (c Command) AdminOnly() bool {
	return menu[c]
}

// IsCancel сообщает, является ли текст токеном отмены.
func IsCancel(text string) bool {
	return Command(text) == CmdCancel
}

// MainMenu — раскладка основного меню.
func MainMenu(isAdmin bool) [][]Command {
	rows := [][]Command{
		{CmdUpload},
		{CmdMyFiles, CmdSearch},
		{CmdInfo},
	}
	if isAdmin {
		rows = append(rows, []Command{CmdAdminPanel})
	}
	return rows
}

// AdminMenu — раскладка админ-панели.
func AdminMenu() [][]Command {
	return [][]Command{
		{CmdUsers, CmdStats},
		{CmdBan, CmdUnban},
		{CmdPermanentBan, CmdSetLimit},
		{CmdBroadcast, CmdStopBroadcast},
		{CmdSettings, CmdMainMenu},
	}
}

// CancelMenu — клавиатура с единственной кнопкой отмены.
func CancelMenu() [][]Command {
	return [][]Command{{CmdCancel}}
}
