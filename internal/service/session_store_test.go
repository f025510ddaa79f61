package service

import (
	"testing"
	"time"

	"github.com/SanchoysArt/sanchofile/internal/domain/conversation"
	"github.com/SanchoysArt/sanchofile/internal/domain/model"
)

func TestSessionStore_SingleSlot(t *testing.T) {
	store := NewSessionStore(100, time.Minute)

	if !store.Get(1).IsIdle() {
		t.Fatal("новый пользователь должен быть в Idle")
	}

	store.Await(1, conversation.AwaitingSearchCode)
	if got := store.Get(1).Action; got != conversation.AwaitingSearchCode {
		t.Errorf("Action = %q, ожидалось %q", got, conversation.AwaitingSearchCode)
	}

	// Новое ожидание вытесняет предыдущее
	snapshot := []*model.File{{ID: "a"}, {ID: "b"}}
	store.AwaitSelection(1, snapshot)
	sess := store.Get(1)
	if sess.Action != conversation.AwaitingFileSelection || len(sess.Snapshot) != 2 {
		t.Errorf("сессия = %+v, ожидалось ожидание выбора со снимком из 2 файлов", sess)
	}

	// Снимок не зависит от исходного среза
	snapshot[0] = &model.File{ID: "changed"}
	if store.Get(1).Snapshot[0].ID != "a" {
		t.Error("снимок изменился вместе с исходным срезом")
	}

	store.Reset(1)
	if !store.Get(1).IsIdle() {
		t.Error("после Reset пользователь должен быть в Idle")
	}

	// Состояния пользователей независимы
	store.Await(2, conversation.AwaitingBanSpec)
	if !store.Get(1).IsIdle() || store.Get(2).Action != conversation.AwaitingBanSpec {
		t.Error("состояния пользователей должны быть независимы")
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	store := NewSessionStore(100, 20*time.Millisecond)
	store.Await(1, conversation.AwaitingUnbanId)

	time.Sleep(60 * time.Millisecond)
	if !store.Get(1).IsIdle() {
		t.Error("просроченная сессия должна читаться как Idle")
	}
}

func TestSessionStore_SizeLimit(t *testing.T) {
	store := NewSessionStore(2, time.Minute)
	store.Await(1, conversation.AwaitingSearchCode)
	store.Await(2, conversation.AwaitingSearchCode)
	store.Await(3, conversation.AwaitingSearchCode)

	if store.Len() != 2 {
		t.Errorf("Len() = %d, ожидалось 2", store.Len())
	}
	if !store.Get(1).IsIdle() {
		t.Error("самая старая сессия должна быть вытеснена")
	}
}
