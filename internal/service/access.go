// access.go — контроль доступа: баны с ленивым истечением и список администраторов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SanchoysArt/sanchofile/internal/domain/model"
	"github.com/SanchoysArt/sanchofile/internal/repository"
)

var (
	bansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fb_bans_total",
		Help: "Количество выданных банов по типу.",
	}, []string{"kind"})
	bansExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fb_bans_expired_total",
		Help: "Количество срочных банов, снятых при проверке после истечения.",
	})
)

// BanStatus — результат проверки бана.
type BanStatus int

const (
	NotBanned BanStatus = iota
	TemporarilyBanned
	PermanentlyBanned
)

// String возвращает имя статуса для логов.
func (s BanStatus) String() string {
	switch s {
	case TemporarilyBanned:
		return "temporary"
	case PermanentlyBanned:
		return "permanent"
	default:
		return "none"
	}
}

// BanState — состояние бана на момент проверки.
type BanState struct {
	Status BanStatus
	Reason string
	// DaysRemaining — оставшиеся дни с округлением вверх (только для срочного бана)
	DaysRemaining int
	Until         time.Time
}

// Banned сообщает, действует ли бан.
func (s BanState) Banned() bool {
	return s.Status != NotBanned
}

const day = 24 * time.Hour

// MaxBanDays — максимальный срок временного бана (100 лет).
// Дольше — только бессрочный бан.
const MaxBanDays = 36500

// AccessService — хранение и проверка банов.
// Истёкший бан снимается при первой проверке после истечения, фоновой очистки нет.
type AccessService struct {
	users  repository.UserRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewAccessService создаёт сервис контроля доступа.
func NewAccessService(users repository.UserRepository, logger *slog.Logger) *AccessService {
	return &AccessService{
		users:  users,
		now:    time.Now,
		logger: logger.With(slog.String("component", "access")),
	}
}

// Evaluate возвращает состояние бана пользователя.
// Истёкший срочный бан снимается (compare-and-set по сохранённому banned_until)
// и возвращается NotBanned. Повторный вызов даёт тот же результат.
func (s *AccessService) Evaluate(ctx context.Context, userID int64) (BanState, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return BanState{Status: NotBanned}, nil
		}
		return BanState{}, fmt.Errorf("ошибка проверки бана пользователя %d: %w", userID, err)
	}
	now := s.now()
	if u.Ban.ExpiredAt(now) {
		until := *u.Ban.Until
		cleared, err := s.users.ClearExpiredBan(ctx, userID, until)
		if err != nil {
			// Чтение уже считает бан истёкшим, запись повторится при следующей проверке
			s.logger.Warn("Не удалось снять истёкший бан",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else if cleared {
			bansExpiredTotal.Inc()
			s.logger.Info("Истёкший бан снят",
				slog.Int64("user_id", userID),
				slog.Time("banned_until", until),
			)
		}
	}
	return BanStateAt(u.Ban, now), nil
}

// BanStateAt вычисляет состояние сохранённого бана на момент now без записи.
// Истёкший срочный бан даёт NotBanned.
func BanStateAt(b model.Ban, now time.Time) BanState {
	if !b.ActiveAt(now) {
		return BanState{Status: NotBanned}
	}
	reason := ""
	if b.Reason != nil {
		reason = *b.Reason
	}
	if b.Until == nil {
		return BanState{Status: PermanentlyBanned, Reason: reason}
	}
	return BanState{
		Status:        TemporarilyBanned,
		Reason:        reason,
		DaysRemaining: daysRemaining(b.Until.Sub(now)),
		Until:         *b.Until,
	}
}

// SetBan блокирует пользователя на days дней.
func (s *AccessService) SetBan(ctx context.Context, userID int64, days int, reason string) (time.Time, error) {
	if days <= 0 || days > MaxBanDays {
		return time.Time{}, fmt.Errorf("%w: %d дн., допустимо 1-%d", ErrInvalidDuration, days, MaxBanDays)
	}
	until := s.now().Add(time.Duration(days) * day).UTC()
	if err := s.users.SetBan(ctx, userID, reason, &until); err != nil {
		return time.Time{}, fmt.Errorf("ошибка бана пользователя %d: %w", userID, err)
	}

	bansTotal.WithLabelValues("temporary").Inc()
	s.logger.Info("Пользователь заблокирован",
		slog.Int64("user_id", userID),
		slog.Int("days", days),
		slog.String("reason", reason),
	)
	return until, nil
}

// SetPermanentBan блокирует пользователя бессрочно.
func (s *AccessService) SetPermanentBan(ctx context.Context, userID int64, reason string) error {
	if err := s.users.SetBan(ctx, userID, reason, nil); err != nil {
		return fmt.Errorf("ошибка бессрочного бана пользователя %d: %w", userID, err)
	}

	bansTotal.WithLabelValues("permanent").Inc()
	s.logger.Info("Пользователь заблокирован навсегда",
		slog.Int64("user_id", userID),
		slog.String("reason", reason),
	)
	return nil
}

// ClearBan снимает бан. Неизвестный пользователь — ErrNotFound.
func (s *AccessService) ClearBan(ctx context.Context, userID int64) error {
	if err := s.users.ClearBan(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: пользователь %d", ErrNotFound, userID)
		}
		return fmt.Errorf("ошибка разбана пользователя %d: %w", userID, err)
	}
	s.logger.Info("Пользователь разблокирован", slog.Int64("user_id", userID))
	return nil
}

// Touch регистрирует пользователя или обновляет его имя.
func (s *AccessService) Touch(ctx context.Context, userID int64, username, fullName string) error {
	u := &model.User{ID: userID, Username: username, FullName: fullName}
	if err := s.users.Upsert(ctx, u); err != nil {
		return fmt.Errorf("ошибка регистрации пользователя %d: %w", userID, err)
	}
	return nil
}

// ActiveUsers возвращает ID незаблокированных пользователей по возрастанию.
// Истёкшие баны считаются снятыми.
func (s *AccessService) ActiveUsers(ctx context.Context) ([]int64, error) {
	ids, err := s.users.ListActive(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("ошибка получения получателей: %w", err)
	}
	return ids, nil
}

// daysRemaining округляет остаток бана вверх до целых дней.
func daysRemaining(remaining time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	return int((remaining + day - 1) / day)
}

// AdminSet — список администраторов из конфигурации (точное совпадение ID).
type AdminSet struct {
	ids map[int64]struct{}
}

// NewAdminSet создаёт список администраторов.
func NewAdminSet(ids []int64) *AdminSet {
	set := &AdminSet{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		set.ids[id] = struct{}{}
	}
	return set
}

// IsAdmin сообщает, является ли пользователь администратором.
func (a *AdminSet) IsAdmin(userID int64) bool {
	_, ok := a.ids[userID]
	return ok
}

// Authorize проверяет право на административное действие.
// Не администратор — ErrUnauthorized.
func (a *AdminSet) Authorize(userID int64) error {
	if !a.IsAdmin(userID) {
		return fmt.Errorf("%w: пользователь %d", ErrUnauthorized, userID)
	}
	return nil
}

// Len возвращает число администраторов.
func (a *AdminSet) Len() int {
	return len(a.ids)
}
