// Пакет bot — маршрутизация входящих событий чата по состоянию диалога.
//
// Router не зависит от транспорта: входящие события приходят из адаптера
// (internal/telegram), ответы уходят через интерфейс Messenger.
package bot

import (
	"context"

	"github.com/SanchoysArt/sanchofile/internal/domain/conversation"
	"github.com/SanchoysArt/sanchofile/internal/domain/model"
)

// MessageRef — ссылка на отправленное сообщение для последующего редактирования.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Keyboard — раскладка кнопок под полем ввода. nil оставляет текущую клавиатуру.
type Keyboard [][]conversation.Command

// Messenger — исходящая сторона транспорта.
type Messenger interface {
	// SendText отправляет текст; kb != nil заменяет клавиатуру.
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (MessageRef, error)
	// SendMedia отправляет ранее загруженный файл по его Telegram handle.
	SendMedia(ctx context.Context, chatID int64, kind model.FileKind, handle, caption string) error
	// EditText заменяет текст отправленного сообщения.
	EditText(ctx context.Context, ref MessageRef, text string) error
}

// Sender — автор входящего события.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// FullName возвращает имя и фамилию через пробел.
func (s Sender) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	if s.FirstName == "" {
		return s.LastName
	}
	return s.FirstName + " " + s.LastName
}

// Incoming — входящий файл вместе с подписью.
type Incoming struct {
	Upload  model.Upload
	Caption string
}

// MainKeyboard — основное меню; администратору добавляется вход в админ-панель.
func MainKeyboard(isAdmin bool) Keyboard {
	return Keyboard(conversation.MainMenu(isAdmin))
}

// AdminKeyboard — клавиатура админ-панели.
func AdminKeyboard() Keyboard {
	return Keyboard(conversation.AdminMenu())
}

// CancelKeyboard — клавиатура ожидания ввода.
func CancelKeyboard() Keyboard {
	return Keyboard(conversation.CancelMenu())
}
