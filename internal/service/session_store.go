// session_store.go — хранилище состояний диалогов.
// Брошенные диалоги вытесняются по TTL и размеру; вытесненная сессия читается как Idle.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SanchoysArt/sanchofile/internal/domain/conversation"
	"github.com/SanchoysArt/sanchofile/internal/domain/model"
)

var sessionsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fb_sessions_closed_total",
	Help: "Количество диалогов, удалённых из хранилища (сброс, TTL или размер).",
})

// SessionStore — потокобезопасное хранилище состояний по Telegram ID.
type SessionStore struct {
	sessions *expirable.LRU[int64, conversation.Session]
	now      func() time.Time
}

// NewSessionStore создаёт хранилище на maxSize диалогов с временем жизни ttl.
func NewSessionStore(maxSize int, ttl time.Duration) *SessionStore {
	onEvict := func(int64, conversation.Session) { sessionsClosedTotal.Inc() }
	return &SessionStore{
		sessions: expirable.NewLRU[int64, conversation.Session](maxSize, onEvict, ttl),
		now:      time.Now,
	}
}

// Get возвращает состояние пользователя; отсутствующее — Idle.
func (s *SessionStore) Get(userID int64) conversation.Session {
	if sess, ok := s.sessions.Get(userID); ok {
		return sess
	}
	return conversation.IdleSession()
}

// Await переводит пользователя в ожидание action, вытесняя предыдущее.
func (s *SessionStore) Await(userID int64, action conversation.Action) {
	s.sessions.Add(userID, conversation.Awaiting(action, s.now()))
}

// AwaitSelection переводит пользователя в ожидание выбора файла из snapshot.
func (s *SessionStore) AwaitSelection(userID int64, snapshot []*model.File) {
	s.sessions.Add(userID, conversation.AwaitingSelection(snapshot, s.now()))
}

// Reset возвращает пользователя в Idle.
func (s *SessionStore) Reset(userID int64) {
	s.sessions.Remove(userID)
}

// Len возвращает число хранимых диалогов.
func (s *SessionStore) Len() int {
	return s.sessions.Len()
}
