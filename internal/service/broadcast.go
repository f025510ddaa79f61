// broadcast.go — рассылка сообщения всем незаблокированным пользователям.
//
// Доставка строго последовательная, по одной попытке на получателя.
// Ошибки доставки считаются и логируются, но не прерывают рассылку.
// Одновременно выполняется не больше одной рассылки.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SanchoysArt/sanchofile/internal/domain/model"
)

var (
	broadcastDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fb_broadcast_deliveries_total",
		Help: "Количество попыток доставки рассылки по результату.",
	}, []string{"result"})
	broadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fb_broadcasts_total",
		Help: "Количество завершённых рассылок по исходу.",
	}, []string{"outcome"})
	broadcastRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fb_broadcast_running",
		Help: "1, если рассылка выполняется.",
	})
)

// Deliverer отправляет сообщение рассылки одному получателю.
type Deliverer interface {
	Deliver(ctx context.Context, userID int64, payload model.BroadcastPayload) error
}

// Progress — промежуточное состояние рассылки.
type Progress struct {
	Done    int
	Total   int
	Success int
	Failure int
}

// Percent возвращает долю обработанных получателей в процентах.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Done) / float64(p.Total) * 100
}

// Report — итог рассылки. Success + Failure == Total всегда;
// при прерывании недоставленный остаток входит в Failure.
type Report struct {
	ID       string
	Total    int
	Success  int
	Failure  int
	Aborted  bool
	Started  time.Time
	Finished time.Time
}

// Efficiency возвращает долю успешных доставок в процентах.
func (r Report) Efficiency() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Success) / float64(r.Total) * 100
}

// broadcastRun — выполняющаяся рассылка.
type broadcastRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// BroadcastEngine — движок рассылки.
type BroadcastEngine struct {
	deliverer Deliverer
	batch     int
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	running *broadcastRun
	// last — последняя запущенная рассылка (для Wait)
	last *broadcastRun
}

// NewBroadcastEngine создаёт движок рассылки; прогресс сообщается каждые batch получателей.
func NewBroadcastEngine(deliverer Deliverer, batch int, logger *slog.Logger) *BroadcastEngine {
	if batch < 1 {
		batch = 1
	}
	return &BroadcastEngine{
		deliverer: deliverer,
		batch:     batch,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "broadcast")),
	}
}

// Run выполняет рассылку синхронно. Список получателей фиксируется вызывающим.
// onProgress вызывается после каждых batch получателей и после последнего.
// Отмена ctx прерывает рассылку: остаток засчитывается как неудачи.
func (e *BroadcastEngine) Run(
	ctx context.Context,
	payload model.BroadcastPayload,
	recipients []int64,
	onProgress func(Progress),
) Report {
	rep := Report{ID: uuid.NewString(), Total: len(recipients), Started: e.now()}
	logger := e.logger.With(slog.String("broadcast_id", rep.ID))
	logger.Info("Рассылка начата",
		slog.Int("recipients", rep.Total),
		slog.Bool("media", payload.IsMedia()),
	)

	for i, userID := range recipients {
		if ctx.Err() != nil {
			rep.Aborted = true
			rep.Failure += rep.Total - i
			break
		}

		if err := e.deliverer.Deliver(ctx, userID, payload); err != nil {
			rep.Failure++
			broadcastDeliveriesTotal.WithLabelValues("failure").Inc()
			logger.Warn("Сообщение рассылки не доставлено",
				slog.Int64("user_id", userID),
				slog.String("error", fmt.Errorf("%w: %w", ErrDeliveryFailure, err).Error()),
			)
		} else {
			rep.Success++
			broadcastDeliveriesTotal.WithLabelValues("success").Inc()
		}

		done := i + 1
		if onProgress != nil && (done%e.batch == 0 || done == rep.Total) {
			onProgress(Progress{Done: done, Total: rep.Total, Success: rep.Success, Failure: rep.Failure})
		}
	}

	rep.Finished = e.now()
	outcome := "completed"
	if rep.Aborted {
		outcome = "aborted"
	}
	broadcastsTotal.WithLabelValues(outcome).Inc()
	logger.Info("Рассылка завершена",
		slog.Int("total", rep.Total),
		slog.Int("success", rep.Success),
		slog.Int("failure", rep.Failure),
		slog.Bool("aborted", rep.Aborted),
		slog.Duration("duration", rep.Finished.Sub(rep.Started)),
	)
	return rep
}

// Start запускает рассылку в отдельной горутине и сразу возвращает управление.
// Отмена ctx вызывающего не прерывает рассылку: для этого Cancel или Shutdown.
// onDone получает итог после завершения.
func (e *BroadcastEngine) Start(
	ctx context.Context,
	payload model.BroadcastPayload,
	recipients []int64,
	onProgress func(Progress),
	onDone func(Report),
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running != nil {
		return ErrBroadcastInProgress
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &broadcastRun{cancel: cancel, done: make(chan struct{})}
	e.running = run
	e.last = run
	broadcastRunning.Set(1)

	snapshot := make([]int64, len(recipients))
	copy(snapshot, recipients)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("Паника в рассылке",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
			e.finish(run)
		}()

		rep := e.Run(runCtx, payload, snapshot, onProgress)
		// Слот освобождается до onDone: новая рассылка не ждёт итогового сообщения
		e.release(run)
		if onDone != nil {
			onDone(rep)
		}
	}()
	return nil
}

// Cancel прерывает выполняющуюся рассылку.
func (e *BroadcastEngine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running == nil {
		return ErrNoBroadcast
	}
	e.running.cancel()
	e.logger.Info("Запрошена остановка рассылки")
	return nil
}

// Running сообщает, выполняется ли рассылка.
func (e *BroadcastEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running != nil
}

// Wait блокируется до завершения последней запущенной рассылки (включая onDone) или отмены ctx.
func (e *BroadcastEngine) Wait(ctx context.Context) error {
	e.mu.Lock()
	run := e.last
	e.mu.Unlock()
	if run == nil {
		return nil
	}

	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown прерывает рассылку и ждёт её завершения.
func (e *BroadcastEngine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	run := e.last
	e.mu.Unlock()
	if run == nil {
		return nil
	}

	run.cancel()
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("рассылка не завершилась за отведённое время: %w", ctx.Err())
	}
}

// release освобождает слот рассылки.
func (e *BroadcastEngine) release(run *broadcastRun) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running == run {
		e.running = nil
		broadcastRunning.Set(0)
	}
}

// finish освобождает слот (если ещё не) и сигнализирует о завершении.
func (e *BroadcastEngine) finish(run *broadcastRun) {
	e.release(run)
	run.cancel()
	close(run.done)
}
