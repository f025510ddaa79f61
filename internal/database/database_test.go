package database

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/SanchoysArt/sanchofile/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
// Возвращает конфиг и функцию для очистки.
func setupTestDB(t *testing.T) *config.Config {
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

	// Создаём конфиг с минимальными значениями
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

	return cfg
}

// TestConnect проверяет подключение к PostgreSQL через pgxpool.
func TestConnect(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	// Проверяем ping
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("pool.Ping() вернул ошибку: %v", err)
	}

	// Параметры сессии
	params := map[string]string{
		"application_name": "sanchofile",
		"TimeZone":         "UTC",
	}
	for name, want := range params {
		var got string
		if err := pool.QueryRow(ctx, "SHOW "+name).Scan(&got); err != nil {
			t.Fatalf("SHOW %s вернул ошибку: %v", name, err)
		}
		if got != want {
			t.Errorf("%s = %q, ожидалось %q", name, got, want)
		}
	}
}

// TestMigrate проверяет применение миграций.
func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	// Повторное применение — должно быть без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	// Проверяем, что таблицы созданы
	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	tables := []string{
		"users",
		"files",
		"bot_settings",
	}

	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}

	// Короткий код уникален
	if _, err := pool.Exec(ctx, `INSERT INTO users (user_id) VALUES (1)`); err != nil {
		t.Fatalf("Ошибка вставки пользователя: %v", err)
	}
	insertFile := `INSERT INTO files (file_id, user_id, file_handle, file_name, file_type, short_code)
		VALUES (gen_random_uuid(), 1, 'h', 'a.txt', 'document', 'AAAAAAAA')`
	if _, err := pool.Exec(ctx, insertFile); err != nil {
		t.Fatalf("Ошибка вставки файла: %v", err)
	}
	if _, err := pool.Exec(ctx, insertFile); err == nil {
		t.Error("Повторный short_code должен нарушать уникальность")
	}
}

// TestReadinessChecker проверяет ReadinessChecker.
func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	checker := NewReadinessChecker(pool)

	// До миграций схемы нет — "fail"
	if status, msg := checker.CheckReady(); status != "fail" {
		t.Errorf("CheckReady() до миграций: status = %q, message = %q; ожидали fail", status, msg)
	}

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	// Проверяем готовность — должен вернуть "ok"
	status, msg := checker.CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() status = %q, message = %q; ожидали status = %q",
			status, msg, "ok")
	}

	// Прерванная миграция — "fail"
	if _, err := pool.Exec(ctx, `UPDATE schema_migrations SET dirty = TRUE`); err != nil {
		t.Fatalf("Ошибка пометки схемы: %v", err)
	}
	if status, _ := checker.CheckReady(); status != "fail" {
		t.Errorf("CheckReady() при dirty: status = %q, ожидали fail", status)
	}
}

// TestSchemaStatus проверяет сравнение версии схемы без БД.
func TestSchemaStatus(t *testing.T) {
	tests := []struct {
		name    string
		version uint
		dirty   bool
		want    string
	}{
		{"текущая", SchemaVersion, false, "ok"},
		{"прервана", SchemaVersion, true, "fail"},
		{"устарела", SchemaVersion - 1, false, "fail"},
		{"новее", SchemaVersion + 1, false, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, msg := schemaStatus(tt.version, tt.dirty); got != tt.want {
				t.Errorf("schemaStatus(%d, %v) = %q (%s), ожидалось %q", tt.version, tt.dirty, got, msg, tt.want)
			}
		})
	}
}
