// Пакет server — служебный HTTP-сервер: health probes и Prometheus метрики.
// Без TLS — HTTP внутри кластера.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/SanchoysArt/sanchofile/internal/api/errors"
	"github.com/SanchoysArt/sanchofile/internal/api/handlers"
	"github.com/SanchoysArt/sanchofile/internal/api/middleware"
	"github.com/SanchoysArt/sanchofile/internal/config"
)

// Server — служебный HTTP-сервер.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New создаёт сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, health *handlers.HealthHandler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(logger, health),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger.With(slog.String("component", "http_server")),
	}
}

// NewRouter собирает chi-маршрутизатор служебных endpoints.
func NewRouter(logger *slog.Logger, health *handlers.HealthHandler) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	router.NotFound(apierrors.NotFound)
	router.MethodNotAllowed(apierrors.MethodNotAllowed)

	return router
}

// ListenAndServe запускает сервер. Блокируется до Shutdown;
// штатная остановка возвращает nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка HTTP-сервера: %w", err)
	}
	return nil
}

// Shutdown выполняет graceful shutdown в пределах ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}
	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
