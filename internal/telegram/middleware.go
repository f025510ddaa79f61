// middleware.go — middleware обработки обновлений и метрики Bot API.
// Метрики: fb_telegram_updates_total, fb_telegram_update_duration_seconds,
// fb_telegram_api_requests_total, fb_telegram_api_request_duration_seconds.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	tele "gopkg.in/telebot.v4"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fb_telegram_updates_total",
			Help: "Количество обработанных обновлений Telegram",
		},
		[]string{"kind", "result"},
	)

	updateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fb_telegram_update_duration_seconds",
			Help:    "Длительность обработки обновления Telegram в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fb_telegram_api_requests_total",
			Help: "Количество исходящих запросов к Telegram Bot API",
		},
		[]string{"method", "result"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fb_telegram_api_request_duration_seconds",
			Help:    "Длительность запросов к Telegram Bot API в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Recover перехватывает панику обработчика, чтобы цикл опроса продолжал работу.
func Recover(logger *slog.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Паника в обработчике обновления",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("паника в обработчике: %v", r)
				}
			}()
			return next(c)
		}
	}
}

// Instrument логирует обновление и записывает метрики.
// Уровень логирования: DEBUG для успешных, ERROR для завершившихся ошибкой.
func Instrument(logger *slog.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			kind := updateKind(c.Message())

			err := next(c)

			duration := time.Since(start)
			result := "ok"
			level := slog.LevelDebug
			if err != nil {
				result = "error"
				level = slog.LevelError
			}
			updatesTotal.WithLabelValues(kind, result).Inc()
			updateDuration.WithLabelValues(kind).Observe(duration.Seconds())

			var userID int64
			if c.Sender() != nil {
				userID = c.Sender().ID
			}
			logger.Log(context.Background(), level, "Обновление обработано",
				slog.String("kind", kind),
				slog.Int64("user_id", userID),
				slog.Duration("duration", duration),
			)
			return err
		}
	}
}

// updateKind — тип обновления для лейблов метрик.
func updateKind(m *tele.Message) string {
	switch {
	case m == nil:
		return "other"
	case m.Document != nil:
		return "document"
	case m.Photo != nil:
		return "photo"
	case m.Video != nil:
		return "video"
	case m.Audio != nil:
		return "audio"
	case m.Voice != nil:
		return "voice"
	case len(m.Text) > 0 && m.Text[0] == '/':
		return "command"
	case m.Text != "":
		return "text"
	default:
		return "other"
	}
}

// observeAPICall записывает метрики исходящего запроса.
func observeAPICall(method string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	apiRequestsTotal.WithLabelValues(method, result).Inc()
	apiRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
