// Пакет conversation — состояние диалога пользователя с ботом.
//
// У каждого пользователя не более одного ожидающего действия (single-slot):
// вход в новое ожидание молча вытесняет предыдущее. Из любого ожидания
// пользователь возвращается в Idle по токену отмены или после успешного
// завершения операции.
package conversation

import (
	"time"

	"github.com/SanchoysArt/sanchofile/internal/domain/model"
)

// Action — ожидающее действие пользователя.
type Action string

const (
	// Idle — ожиданий нет, текст сопоставляется с меню
	Idle Action = "idle"
	// AwaitingFileSelection — номер или код файла для удаления
	AwaitingFileSelection Action = "awaiting_file_selection"
	// AwaitingSearchCode — код файла для поиска
	AwaitingSearchCode Action = "awaiting_search_code"
	// AwaitingBanSpec — "<id> <дни> <причина>"
	AwaitingBanSpec Action = "awaiting_ban_spec"
	// AwaitingPermanentBanSpec — "<id> <причина>"
	AwaitingPermanentBanSpec Action = "awaiting_permanent_ban_spec"
	// AwaitingUnbanId — ID пользователя для разбана
	AwaitingUnbanId Action = "awaiting_unban_id"
	// AwaitingLimitValue — новый лимит загрузок
	AwaitingLimitValue Action = "awaiting_limit_value"
	// AwaitingBroadcastPayload — сообщение для рассылки
	AwaitingBroadcastPayload Action = "awaiting_broadcast_payload"
)

// adminActions — ожидания, доступные только администраторам.
var adminActions = map[Action]bool{
	AwaitingBanSpec:          true,
	AwaitingPermanentBanSpec: true,
	AwaitingUnbanId:          true,
	AwaitingLimitValue:       true,
	AwaitingBroadcastPayload: true,
}

// AdminOnly сообщает, требует ли ожидание прав администратора.
func (a Action) AdminOnly() bool {
	return adminActions[a]
}

// Valid проверяет, является ли значение известным действием.
func (a Action) Valid() bool {
	switch a {
	case Idle, AwaitingFileSelection, AwaitingSearchCode, AwaitingBanSpec,
		AwaitingPermanentBanSpec, AwaitingUnbanId, AwaitingLimitValue, AwaitingBroadcastPayload:
		return true
	default:
		return false
	}
}

// Session — состояние диалога одного пользователя.
// Не переживает рестарт процесса.
type Session struct {
	// Action — текущее ожидание
	Action Action
	// Snapshot — список файлов, показанный пользователю последним;
	// по нему разрешаются позиционные селекторы. Только для AwaitingFileSelection.
	Snapshot []*model.File
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time
}

// IdleSession возвращает пустое состояние.
func IdleSession() Session {
	return Session{Action: Idle}
}

// Awaiting возвращает состояние ожидания без снимка.
func Awaiting(action Action, now time.Time) Session {
	return Session{Action: action, UpdatedAt: now}
}

// AwaitingSelection возвращает ожидание выбора файла со снимком списка.
func AwaitingSelection(snapshot []*model.File, now time.Time) Session {
	cp := make([]*model.File, len(snapshot))
	copy(cp, snapshot)
	return Session{Action: AwaitingFileSelection, Snapshot: cp, UpdatedAt: now}
}

// IsIdle сообщает, нет ли ожидающего действия.
func (s Session) IsIdle() bool {
	return s.Action == "" || s.Action == Idle
}
