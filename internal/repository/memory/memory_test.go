package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SanchoysArt/sanchofile/internal/domain/model"
	"github.com/SanchoysArt/sanchofile/internal/repository"
)

func TestUsers_ExpiredBanCountsAsActive(t *testing.T) {
	ctx := context.Background()
	repo := NewUsers()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = repo.Upsert(ctx, &model.User{ID: 3})
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)
	_ = repo.SetBan(ctx, 1, "old", &past)
	_ = repo.SetBan(ctx, 2, "fresh", &future)

	active, err := repo.ListActive(ctx, now)
	if err != nil {
		t.Fatalf("ListActive() ошибка: %v", err)
	}
	if len(active) != 2 || active[0] != 1 || active[1] != 3 {
		t.Errorf("ListActive() = %v, ожидалось [1 3]", active)
	}

	total, banned, _ := repo.Count(ctx, now)
	if total != 3 || banned != 1 {
		t.Errorf("Count() = (%d, %d), ожидалось (3, 1)", total, banned)
	}

	if ok, _ := repo.ClearExpiredBan(ctx, 1, future); ok {
		t.Error("ClearExpiredBan с другим until не должен срабатывать")
	}
	if ok, _ := repo.ClearExpiredBan(ctx, 1, past); !ok {
		t.Error("ClearExpiredBan с сохранённым until должен срабатывать")
	}
	u, _ := repo.Get(ctx, 1)
	if u.Ban.Banned {
		t.Error("бан должен быть снят")
	}
}

func TestFiles_OrderAndUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewFiles()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	for i, code := range []string{"code0001", "code0002", "code0003"} {
		f := &model.File{ID: code, OwnerID: 5, ShortCode: code, Name: code, Kind: model.KindPhoto}
		if err := repo.Insert(ctx, f); err != nil {
			t.Fatalf("Insert(%d) ошибка: %v", i, err)
		}
	}
	if err := repo.Insert(ctx, &model.File{ID: "other", OwnerID: 6, ShortCode: "code0001"}); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("Insert(дубликат кода) = %v, ожидалась ErrConflict", err)
	}

	// Одинаковое время: порядок по порядку вставки, новые первыми
	list, _ := repo.ListByOwner(ctx, 5)
	if len(list) != 3 || list[0].ShortCode != "code0003" || list[2].ShortCode != "code0001" {
		t.Errorf("ListByOwner() порядок нарушен: %v", list)
	}

	if err := repo.Delete(ctx, "code0002"); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByCode(ctx, "code0002"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetByCode(удалённый) = %v, ожидалась ErrNotFound", err)
	}
	if n, _ := repo.Count(ctx); n != 2 {
		t.Errorf("Count() = %d, ожидалось 2", n)
	}
}

func TestSettings_SetOverrides(t *testing.T) {
	ctx := context.Background()
	repo := NewSettings()

	_ = repo.Set(ctx, "upload.limit", "10", "1")
	_ = repo.Set(ctx, "upload.limit", "3", "2")
	s, err := repo.Get(ctx, "upload.limit")
	if err != nil || s.Value != "3" || s.UpdatedBy != "2" {
		t.Errorf("Get() = (%+v, %v)", s, err)
	}
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Get(missing) = %v, ожидалась ErrNotFound", err)
	}
}
