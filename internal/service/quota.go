// quota.go — глобальный лимит загрузок на пользователя.
// Значение хранится в атомарной ячейке и сохраняется в bot_settings.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SanchoysArt/sanchofile/internal/repository"
)

// SettingUploadLimit — ключ лимита загрузок в bot_settings.
const SettingUploadLimit = "upload.limit"

var uploadLimitGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "fb_upload_limit",
	Help: "Текущий лимит загрузок на пользователя.",
})

// QuotaSettings — лимит загрузок. Чтение без блокировок, изменение только администратором.
type QuotaSettings struct {
	limit  atomic.Int64
	repo   repository.SettingsRepository
	logger *slog.Logger
}

// NewQuotaSettings создаёт настройку лимита со значением по умолчанию.
func NewQuotaSettings(repo repository.SettingsRepository, defaultLimit int, logger *slog.Logger) *QuotaSettings {
	q := &QuotaSettings{
		repo:   repo,
		logger: logger.With(slog.String("component", "quota")),
	}
	q.store(defaultLimit)
	return q
}

// Load читает сохранённый лимит. Отсутствующее или некорректное значение
// оставляет лимит по умолчанию.
func (q *QuotaSettings) Load(ctx context.Context) error {
	setting, err := q.repo.Get(ctx, SettingUploadLimit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("ошибка чтения лимита загрузок: %w", err)
	}

	n, err := strconv.Atoi(setting.Value)
	if err != nil || n < 1 {
		q.logger.Warn("Сохранённый лимит загрузок некорректен, используется значение по умолчанию",
			slog.String("value", setting.Value),
			slog.Int("default", q.Limit()),
		)
		return nil
	}
	q.store(n)
	q.logger.Info("Лимит загрузок загружен",
		slog.Int("limit", n),
		slog.String("updated_by", setting.UpdatedBy),
	)
	return nil
}

// Limit возвращает текущий лимит.
func (q *QuotaSettings) Limit() int {
	return int(q.limit.Load())
}

// Set меняет лимит. Значение < 1 — ErrInvalidLimit.
// Новый лимит действует для следующих регистраций; лишние файлы не удаляются.
func (q *QuotaSettings) Set(ctx context.Context, limit int, updatedBy int64) error {
	if limit < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if err := q.repo.Set(ctx, SettingUploadLimit, strconv.Itoa(limit), strconv.FormatInt(updatedBy, 10)); err != nil {
		return fmt.Errorf("ошибка сохранения лимита загрузок: %w", err)
	}

	previous := q.Limit()
	q.store(limit)
	q.logger.Info("Лимит загрузок изменён",
		slog.Int("previous", previous),
		slog.Int("limit", limit),
		slog.Int64("updated_by", updatedBy),
	)
	return nil
}

func (q *QuotaSettings) store(limit int) {
	q.limit.Store(int64(limit))
	uploadLimitGauge.Set(float64(limit))
}
