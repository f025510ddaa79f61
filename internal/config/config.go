// Пакет config — загрузка и валидация конфигурации файлообменника
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Режимы хранилища.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config содержит все параметры конфигурации бота.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера health/metrics
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Хранилище ---

	// Режим хранилища: postgres или memory
	Storage string
	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Telegram ---

	// Токен бота
	TelegramToken string
	// Таймаут long polling
	TelegramPollTimeout time.Duration
	// Username бота для deep link (без @)
	BotUsername string
	// Telegram ID администраторов
	AdminIDs []int64

	// --- Поведение ---

	// Лимит загрузок по умолчанию (до первой смены администратором)
	DefaultUploadLimit int
	// Время жизни незавершённого диалога
	SessionTTL time.Duration
	// Максимальное число хранимых диалогов
	SessionMax int
	// Размер кэша поиска по коду
	LookupCacheSize int
	// TTL кэша поиска по коду
	LookupCacheTTL time.Duration
	// Шаг обновления прогресса рассылки
	BroadcastBatch int

	// --- topologymetrics ---

	// Группа сервиса в topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FB_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("FB_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FB_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FB_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// FB_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FB_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FB_LOG_LEVEL: %w", err)
	}

	// FB_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FB_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FB_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Хранилище ---

	// FB_STORAGE — postgres (по умолчанию) или memory
	cfg.Storage = getEnvDefault("FB_STORAGE", StoragePostgres)
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		return nil, fmt.Errorf("FB_STORAGE: недопустимое значение %q, допустимые: postgres, memory", cfg.Storage)
	}

	if cfg.Storage == StoragePostgres {
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	}

	// --- Telegram ---

	// FB_TELEGRAM_TOKEN — обязательный
	cfg.TelegramToken, err = getEnvRequired("FB_TELEGRAM_TOKEN")
	if err != nil {
		return nil, err
	}

	// FB_TELEGRAM_POLL_TIMEOUT — таймаут long polling (по умолчанию 10s)
	cfg.TelegramPollTimeout, err = getEnvDuration("FB_TELEGRAM_POLL_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FB_TELEGRAM_POLL_TIMEOUT: %w", err)
	}

	// FB_BOT_USERNAME — username бота для ссылок; без него ссылки не выводятся
	cfg.BotUsername = strings.TrimPrefix(getEnvDefault("FB_BOT_USERNAME", ""), "@")

	// FB_ADMIN_IDS — ID администраторов через запятую
	cfg.AdminIDs, err = parseIDs(parseCSV(getEnvDefault("FB_ADMIN_IDS", "")))
	if err != nil {
		return nil, fmt.Errorf("FB_ADMIN_IDS: %w", err)
	}

	// --- Поведение ---

	// FB_DEFAULT_UPLOAD_LIMIT — лимит загрузок по умолчанию (10)
	cfg.DefaultUploadLimit, err = getEnvInt("FB_DEFAULT_UPLOAD_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("FB_DEFAULT_UPLOAD_LIMIT: %w", err)
	}
	if cfg.DefaultUploadLimit < 1 {
		return nil, fmt.Errorf("FB_DEFAULT_UPLOAD_LIMIT: значение %d должно быть не меньше 1", cfg.DefaultUploadLimit)
	}

	// FB_SESSION_TTL — время жизни диалога (по умолчанию 30m)
	cfg.SessionTTL, err = getEnvDuration("FB_SESSION_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FB_SESSION_TTL: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("FB_SESSION_TTL: значение должно быть положительным")
	}

	// FB_SESSION_MAX — максимум хранимых диалогов (по умолчанию 10000)
	cfg.SessionMax, err = getEnvInt("FB_SESSION_MAX", 10000)
	if err != nil {
		return nil, fmt.Errorf("FB_SESSION_MAX: %w", err)
	}
	if cfg.SessionMax < 1 {
		return nil, fmt.Errorf("FB_SESSION_MAX: значение %d должно быть не меньше 1", cfg.SessionMax)
	}

	// FB_LOOKUP_CACHE_SIZE — размер кэша поиска (по умолчанию 1000)
	cfg.LookupCacheSize, err = getEnvInt("FB_LOOKUP_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("FB_LOOKUP_CACHE_SIZE: %w", err)
	}
	if cfg.LookupCacheSize < 1 {
		return nil, fmt.Errorf("FB_LOOKUP_CACHE_SIZE: значение %d должно быть не меньше 1", cfg.LookupCacheSize)
	}

	// FB_LOOKUP_CACHE_TTL — TTL кэша поиска (по умолчанию 5m)
	cfg.LookupCacheTTL, err = getEnvDuration("FB_LOOKUP_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FB_LOOKUP_CACHE_TTL: %w", err)
	}

	// FB_BROADCAST_BATCH — шаг прогресса рассылки (по умолчанию 10)
	cfg.BroadcastBatch, err = getEnvInt("FB_BROADCAST_BATCH", 10)
	if err != nil {
		return nil, fmt.Errorf("FB_BROADCAST_BATCH: %w", err)
	}
	if cfg.BroadcastBatch < 1 || cfg.BroadcastBatch > 1000 {
		return nil, fmt.Errorf("FB_BROADCAST_BATCH: значение %d вне допустимого диапазона 1-1000", cfg.BroadcastBatch)
	}

	// --- topologymetrics ---

	// FB_DEPHEALTH_GROUP — группа сервиса (по умолчанию sanchofile)
	cfg.DephealthGroup = getEnvDefault("FB_DEPHEALTH_GROUP", "sanchofile")

	// FB_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("FB_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FB_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// FB_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("FB_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FB_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// loadDatabase заполняет параметры PostgreSQL.
func loadDatabase(cfg *Config) error {
	var err error

	// FB_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("FB_DB_HOST")
	if err != nil {
		return err
	}

	// FB_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("FB_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("FB_DB_PORT: %w", err)
	}

	// FB_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("FB_DB_NAME")
	if err != nil {
		return err
	}

	// FB_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("FB_DB_USER")
	if err != nil {
		return err
	}

	// FB_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("FB_DB_PASSWORD")
	if err != nil {
		return err
	}

	// FB_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("FB_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("FB_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL (для golang-migrate и topologymetrics).
func (c *Config) DatabaseURL(scheme string) string {
	return fmt.Sprintf(
		"%s://%s:%s@%s:%d/%s?sslmode=%s",
		scheme, c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parseIDs преобразует список строк в Telegram ID.
func parseIDs(items []string) ([]int64, error) {
	ids := make([]int64, 0, len(items))
	for _, s := range items {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("некорректный ID %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
