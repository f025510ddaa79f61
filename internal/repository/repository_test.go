package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/SanchoysArt/sanchofile/internal/config"
	"github.com/SanchoysArt/sanchofile/internal/database"
	"github.com/SanchoysArt/sanchofile/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка регистрируется через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("sanchofile_test"),
		postgres.WithUsername("sanchofile"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	t.Setenv("FB_STORAGE", "postgres")
	t.Setenv("FB_DB_HOST", host)
	t.Setenv("FB_DB_PORT", port.Port())
	t.Setenv("FB_DB_NAME", "sanchofile_test")
	t.Setenv("FB_DB_USER", "sanchofile")
	t.Setenv("FB_DB_PASSWORD", "test-password")
	t.Setenv("FB_DB_SSL_MODE", "disable")
	t.Setenv("FB_TELEGRAM_TOKEN", "123456:test-token")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newTestFile(owner int64, code string) *model.File {
	return &model.File{
		ID:         uuid.New().String(),
		OwnerID:    owner,
		Handle:     "AgACAgIAAxkBAAI" + code,
		Name:       "report-" + code + ".pdf",
		Kind:       model.KindDocument,
		Size:       2048,
		ShortCode:  code,
		MessageRef: 77,
	}
}

// --- Тесты UserRepository ---

func TestUserBanLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	u := &model.User{ID: 100, Username: "alice", FullName: "Alice"}
	if err := repo.Upsert(ctx, u); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// Бан неизвестного пользователя создаёт запись
	until := time.Now().Add(-time.Second).UTC().Truncate(time.Microsecond)
	if err := repo.SetBan(ctx, 555, "abuse", &until); err != nil {
		t.Fatalf("SetBan() ошибка: %v", err)
	}
	got, err := repo.Get(ctx, 555)
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if !got.Ban.Banned || got.Ban.Reason == nil || *got.Ban.Reason != "abuse" {
		t.Errorf("Ban = %+v, ожидался бан с причиной abuse", got.Ban)
	}

	// Истёкший бан не мешает рассылке
	active, err := repo.ListActive(ctx, time.Now())
	if err != nil {
		t.Fatalf("ListActive() ошибка: %v", err)
	}
	if len(active) != 2 || active[0] != 100 || active[1] != 555 {
		t.Errorf("ListActive() = %v, ожидалось [100 555]", active)
	}

	// CAS со старым значением не срабатывает
	ok, err := repo.ClearExpiredBan(ctx, 555, until.Add(time.Hour))
	if err != nil || ok {
		t.Fatalf("ClearExpiredBan(чужое until) = (%v, %v), ожидалось (false, nil)", ok, err)
	}
	ok, err = repo.ClearExpiredBan(ctx, 555, until)
	if err != nil || !ok {
		t.Fatalf("ClearExpiredBan() = (%v, %v), ожидалось (true, nil)", ok, err)
	}
	got, _ = repo.Get(ctx, 555)
	if got.Ban.Banned || got.Ban.Reason != nil || got.Ban.Until != nil {
		t.Errorf("после снятия Ban = %+v, ожидался пустой дескриптор", got.Ban)
	}

	// Бессрочный бан
	if err := repo.SetBan(ctx, 100, "spam", nil); err != nil {
		t.Fatalf("SetBan(permanent) ошибка: %v", err)
	}
	total, banned, err := repo.Count(ctx, time.Now())
	if err != nil {
		t.Fatalf("Count() ошибка: %v", err)
	}
	if total != 2 || banned != 1 {
		t.Errorf("Count() = (%d, %d), ожидалось (2, 1)", total, banned)
	}

	if err := repo.ClearBan(ctx, 100); err != nil {
		t.Fatalf("ClearBan() ошибка: %v", err)
	}
	if err := repo.ClearBan(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("ClearBan(неизвестный) = %v, ожидалась ErrNotFound", err)
	}

	users, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("List() вернул %d записей, ожидалось 2", len(users))
	}
}

// --- Тесты FileRepository ---

func TestFileCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	repo := NewFileRepository(pool)

	if err := users.Upsert(ctx, &model.User{ID: 1, Username: "owner"}); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}

	first := newTestFile(1, "AAAAAAA1")
	second := newTestFile(1, "AAAAAAA2")
	for _, f := range []*model.File{first, second} {
		if err := repo.Insert(ctx, f); err != nil {
			t.Fatalf("Insert() ошибка: %v", err)
		}
	}

	dup := newTestFile(1, "AAAAAAA1")
	if err := repo.Insert(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Insert(дубликат кода) = %v, ожидалась ErrConflict", err)
	}

	got, err := repo.GetByCode(ctx, "AAAAAAA2")
	if err != nil {
		t.Fatalf("GetByCode() ошибка: %v", err)
	}
	if got.ID != second.ID || got.Kind != model.KindDocument || got.MessageRef != 77 {
		t.Errorf("GetByCode() = %+v", got)
	}

	list, err := repo.ListByOwner(ctx, 1)
	if err != nil {
		t.Fatalf("ListByOwner() ошибка: %v", err)
	}
	if len(list) != 2 || list[0].ShortCode != "AAAAAAA2" {
		t.Errorf("ListByOwner() должен вернуть новые файлы первыми: %v", list)
	}

	n, err := repo.CountByOwner(ctx, 1)
	if err != nil || n != 2 {
		t.Errorf("CountByOwner() = (%d, %v), ожидалось 2", n, err)
	}

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if err := repo.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Delete() = %v, ожидалась ErrNotFound", err)
	}
	if _, err := repo.GetByCode(ctx, "AAAAAAA1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByCode(удалённый) = %v, ожидалась ErrNotFound", err)
	}
}

// TestFileTxRunnerSerializesOwner проверяет, что параллельные транзакции
// одного владельца не превышают лимит.
func TestFileTxRunnerSerializesOwner(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	if err := NewUserRepository(pool).Upsert(ctx, &model.User{ID: 7}); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}

	runner := NewFileTxRunner(NewTxRunner(pool))
	const limit = 3
	codes := []string{"BBBBBBB1", "BBBBBBB2", "BBBBBBB3", "BBBBBBB4", "BBBBBBB5", "BBBBBBB6"}
	errLimit := errors.New("лимит")

	var wg sync.WaitGroup
	for _, code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			_ = runner.InTx(ctx, func(files FileRepository) error {
				if err := files.LockOwner(ctx, 7); err != nil {
					return err
				}
				n, err := files.CountByOwner(ctx, 7)
				if err != nil {
					return err
				}
				if n >= limit {
					return errLimit
				}
				return files.Insert(ctx, newTestFile(7, code))
			})
		}(code)
	}
	wg.Wait()

	n, err := NewFileRepository(pool).CountByOwner(ctx, 7)
	if err != nil {
		t.Fatalf("CountByOwner() ошибка: %v", err)
	}
	if n != limit {
		t.Errorf("CountByOwner() = %d, ожидалось %d", n, limit)
	}
}

// --- Тесты SettingsRepository ---

func TestSettingsUpsert(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewSettingsRepository(pool)

	if _, err := repo.Get(ctx, "upload.limit"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(отсутствующий) = %v, ожидалась ErrNotFound", err)
	}
	if err := repo.Set(ctx, "upload.limit", "10", "1"); err != nil {
		t.Fatalf("Set() ошибка: %v", err)
	}
	if err := repo.Set(ctx, "upload.limit", "25", "2"); err != nil {
		t.Fatalf("Set() ошибка: %v", err)
	}
	s, err := repo.Get(ctx, "upload.limit")
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if s.Value != "25" || s.UpdatedBy != "2" {
		t.Errorf("Get() = %+v, ожидалось значение 25 от 2", s)
	}
}
