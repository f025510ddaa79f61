// Пакет model — доменные модели файлообменника.
package model

import "time"

// User — пользователь бота.
// Хранится в таблице users.
type User struct {
	// ID — Telegram user ID
	ID int64
	// Username — @username в Telegram (может быть пустым)
	Username string
	// FullName — отображаемое имя
	FullName string
	// Ban — дескриптор блокировки
	Ban Ban
	// CreatedAt — время первого обращения к боту
	CreatedAt time.Time
}

// Ban — дескриптор блокировки пользователя.
// Until == nil при Banned == true означает бессрочный бан.
type Ban struct {
	Banned bool
	Reason *string
	Until  *time.Time
}

// ExpiredAt сообщает, истёк ли срочный бан к моменту now.
// Бессрочный бан и отсутствие бана никогда не истекают.
func (b Ban) ExpiredAt(now time.Time) bool {
	return b.Banned && b.Until != nil && !b.Until.After(now)
}

// ActiveAt сообщает, действует ли бан в момент now (с учётом ленивого истечения).
func (b Ban) ActiveAt(now time.Time) bool {
	return b.Banned && !b.ExpiredAt(now)
}

// DisplayName возвращает "@username" или заглушку.
func (u *User) DisplayName() string {
	if u.Username == "" {
		return "без username"
	}
	return "@" + u.Username
}
