package model

import (
	"fmt"
	"time"
)

// FileKind — тип медиа, под которым файл был загружен в Telegram.
type FileKind string

const (
	KindDocument FileKind = "document"
	KindPhoto    FileKind = "photo"
	KindVideo    FileKind = "video"
	KindAudio    FileKind = "audio"
	KindVoice    FileKind = "voice"
)

// ParseFileKind преобразует строку из БД в FileKind.
func ParseFileKind(s string) (FileKind, error) {
	switch k := FileKind(s); k {
	case KindDocument, KindPhoto, KindVideo, KindAudio, KindVoice:
		return k, nil
	default:
		return "", fmt.Errorf("недопустимый тип файла: %q", s)
	}
}

// File — запись файла в реестре.
// Хранится в таблице files. Обновлений нет: запись создаётся один раз и один раз удаляется.
type File struct {
	// ID — UUID записи
	ID string
	// OwnerID — Telegram ID владельца
	OwnerID int64
	// Handle — file_id Telegram; только сохраняется и передаётся обратно
	Handle string
	// Name — отображаемое имя файла
	Name string
	// Kind — тип медиа
	Kind FileKind
	// Size — размер в байтах
	Size int64
	// ShortCode — уникальный код из 8 символов
	ShortCode string
	// MessageRef — ID сообщения, с которым файл был загружен
	MessageRef int64
	// CreatedAt — время регистрации
	CreatedAt time.Time
}

// Upload — описание входящего файла до регистрации.
type Upload struct {
	Handle     string
	Kind       FileKind
	Name       string
	Size       int64
	MessageRef int64
}

// BroadcastPayload — содержимое рассылки.
// Kind пустой для текстовой рассылки; иначе Handle и Caption описывают медиа.
type BroadcastPayload struct {
	Text    string
	Kind    FileKind
	Handle  string
	Caption string
}

// IsMedia сообщает, содержит ли рассылка медиа.
func (p BroadcastPayload) IsMedia() bool {
	return p.Kind != "" && p.Handle != ""
}
