// Пакет memory — in-memory реализация репозиториев.
// Используется при FB_STORAGE=memory и в тестах сервисного слоя.
// Данные не переживают рестарт процесса.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SanchoysArt/sanchofile/internal/domain/model"
	"github.com/SanchoysArt/sanchofile/internal/repository"
)

// --- Users --- //

// Users — in-memory repository.UserRepository.
type Users struct {
	mu    sync.RWMutex
	users map[int64]*model.User
	now   func() time.Time
}

// NewUsers создаёт пустое хранилище пользователей.
func NewUsers() *Users {
	return &Users{users: make(map[int64]*model.User), now: time.Now}
}

var _ repository.UserRepository = (*Users)(nil)

func (r *Users) Upsert(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[u.ID]
	if !ok {
		stored = &model.User{ID: u.ID, CreatedAt: r.now()}
		r.users[u.ID] = stored
	}
	stored.Username = u.Username
	stored.FullName = u.FullName
	u.CreatedAt = stored.CreatedAt
	return nil
}

func (r *Users) Get(_ context.Context, userID int64) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *Users) SetBan(_ context.Context, userID int64, reason string, until *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		u = &model.User{ID: userID, CreatedAt: r.now()}
		r.users[userID] = u
	}
	reasonCopy := reason
	u.Ban = model.Ban{Banned: true, Reason: &reasonCopy}
	if until != nil {
		t := *until
		u.Ban.Until = &t
	}
	return nil
}

func (r *Users) ClearBan(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Ban = model.Ban{}
	return nil
}

func (r *Users) ClearExpiredBan(_ context.Context, userID int64, until time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok || !u.Ban.Banned || u.Ban.Until == nil || !u.Ban.Until.Equal(until) {
		return false, nil
	}
	u.Ban = model.Ban{}
	return true, nil
}

func (r *Users) ListActive(_ context.Context, now time.Time) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.users))
	for id, u := range r.users {
		if !u.Ban.ActiveAt(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *Users) List(_ context.Context, limit int) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID > users[j].ID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *Users) Count(_ context.Context, now time.Time) (total, banned int, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Ban.ActiveAt(now) {
			banned++
		}
	}
	return len(r.users), banned, nil
}

func cloneUser(u *model.User) *model.User {
	cp := *u
	if u.Ban.Reason != nil {
		reason := *u.Ban.Reason
		cp.Ban.Reason = &reason
	}
	if u.Ban.Until != nil {
		until := *u.Ban.Until
		cp.Ban.Until = &until
	}
	return &cp
}

// --- Files --- //

// Files — in-memory repository.FileRepository и repository.FileTxRunner.
type Files struct {
	// txMu сериализует транзакции InTx
	txMu sync.Mutex

	mu     sync.RWMutex
	byID   map[string]*storedFile
	byCode map[string]string
	seq    int64
	now    func() time.Time
}

type storedFile struct {
	file model.File
	seq  int64
}

// NewFiles создаёт пустой реестр файлов.
func NewFiles() *Files {
	return &Files{
		byID:   make(map[string]*storedFile),
		byCode: make(map[string]string),
		now:    time.Now,
	}
}

var (
	_ repository.FileRepository = (*Files)(nil)
	_ repository.FileTxRunner   = (*Files)(nil)
)

func (r *Files) Insert(_ context.Context, f *model.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[f.ShortCode]; ok {
		return fmt.Errorf("%w: короткий код %s уже занят", repository.ErrConflict, f.ShortCode)
	}
	if _, ok := r.byID[f.ID]; ok {
		return fmt.Errorf("%w: файл %s уже зарегистрирован", repository.ErrConflict, f.ID)
	}
	r.seq++
	f.CreatedAt = r.now()
	r.byID[f.ID] = &storedFile{file: *f, seq: r.seq}
	r.byCode[f.ShortCode] = f.ID
	return nil
}

func (r *Files) GetByCode(_ context.Context, code string) (*model.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCode[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	f := r.byID[id].file
	return &f, nil
}

func (r *Files) GetByID(_ context.Context, fileID string) (*model.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sf, ok := r.byID[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	f := sf.file
	return &f, nil
}

func (r *Files) ListByOwner(_ context.Context, ownerID int64) ([]*model.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var owned []*storedFile
	for _, sf := range r.byID {
		if sf.file.OwnerID == ownerID {
			owned = append(owned, sf)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if !a.file.CreatedAt.Equal(b.file.CreatedAt) {
			return a.file.CreatedAt.After(b.file.CreatedAt)
		}
		return a.seq > b.seq
	})

	files := make([]*model.File, 0, len(owned))
	for _, sf := range owned {
		f := sf.file
		files = append(files, &f)
	}
	return files, nil
}

func (r *Files) CountByOwner(_ context.Context, ownerID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, sf := range r.byID {
		if sf.file.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r *Files) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

func (r *Files) Delete(_ context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sf, ok := r.byID[fileID]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.byCode, sf.file.ShortCode)
	delete(r.byID, fileID)
	return nil
}

// LockOwner — no-op: InTx уже сериализует все транзакции.
func (r *Files) LockOwner(_ context.Context, _ int64) error {
	return nil
}

// InTx выполняет fn под глобальной блокировкой транзакций.
// Отката нет: fn должна менять данные последним шагом.
func (r *Files) InTx(_ context.Context, fn func(files repository.FileRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(r)
}

// --- Settings --- //

// Settings — in-memory repository.SettingsRepository.
type Settings struct {
	mu       sync.RWMutex
	settings map[string]repository.Setting
	now      func() time.Time
}

// NewSettings создаёт пустое хранилище настроек.
func NewSettings() *Settings {
	return &Settings{settings: make(map[string]repository.Setting), now: time.Now}
}

var _ repository.SettingsRepository = (*Settings)(nil)

func (r *Settings) Get(_ context.Context, key string) (*repository.Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.settings[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *Settings) Set(_ context.Context, key, value, updatedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings[key] = repository.Setting{Key: key, Value: value, UpdatedAt: r.now(), UpdatedBy: updatedBy}
	return nil
}
