// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"

	"github.com/SanchoysArt/sanchofile/internal/domain/conversation"
)

var (
	// ErrNotFound — файл или пользователь не найден.
	ErrNotFound = errors.New("не найдено")
	// ErrQuotaExceeded — у владельца уже не меньше файлов, чем позволяет лимит.
	ErrQuotaExceeded = errors.New("достигнут лимит загрузок")
	// ErrNotOwner — файл принадлежит другому пользователю.
	ErrNotOwner = errors.New("файл принадлежит другому пользователю")
	// ErrOutOfRange — номер вне показанного списка.
	ErrOutOfRange = errors.New("номер файла вне списка")
	// ErrMalformedInput — ввод не соответствует ожидаемому формату.
	ErrMalformedInput = conversation.ErrMalformedInput
	// ErrUnauthorized — действие доступно только администратору.
	ErrUnauthorized = errors.New("недостаточно прав")
	// ErrInvalidDuration — срок бана должен быть положительным.
	ErrInvalidDuration = errors.New("некорректный срок бана")
	// ErrInvalidLimit — лимит загрузок должен быть не меньше 1.
	ErrInvalidLimit = errors.New("некорректный лимит загрузок")
	// ErrDeliveryFailure — сообщение рассылки не доставлено получателю.
	ErrDeliveryFailure = errors.New("ошибка доставки")
	// ErrBroadcastInProgress — рассылка уже выполняется.
	ErrBroadcastInProgress = errors.New("рассылка уже выполняется")
	// ErrNoBroadcast — нет активной рассылки.
	ErrNoBroadcast = errors.New("нет активной рассылки")
	// ErrCodeSpaceExhausted — не удалось подобрать свободный короткий код.
	ErrCodeSpaceExhausted = errors.New("не удалось сгенерировать уникальный код")
)
