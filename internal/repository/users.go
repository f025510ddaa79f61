package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/SanchoysArt/sanchofile/internal/domain/model"
)

// UserRepository — интерфейс для таблицы users.
type UserRepository interface {
	// Upsert создаёт пользователя или обновляет username и имя.
	// Дескриптор бана не изменяется.
	Upsert(ctx context.Context, u *model.User) error
	// Get возвращает пользователя по ID. Если не найден — ErrNotFound.
	Get(ctx context.Context, userID int64) (*model.User, error)
	// SetBan устанавливает бан; until == nil — бессрочный.
	// Отсутствующий пользователь создаётся.
	SetBan(ctx context.Context, userID int64, reason string, until *time.Time) error
	// ClearBan снимает бан. Отсутствующий пользователь — ErrNotFound.
	ClearBan(ctx context.Context, userID int64) error
	// ClearExpiredBan снимает бан только если сохранённый banned_until равен until.
	// Возвращает false, если запись уже изменилась.
	ClearExpiredBan(ctx context.Context, userID int64, until time.Time) (bool, error)
	// ListActive возвращает ID незаблокированных пользователей на момент now
	// (истёкшие баны считаются снятыми), по возрастанию ID.
	ListActive(ctx context.Context, now time.Time) ([]int64, error)
	// List возвращает последних зарегистрированных пользователей.
	List(ctx context.Context, limit int) ([]*model.User, error)
	// Count возвращает общее число пользователей и число действующих банов на момент now.
	Count(ctx context.Context, now time.Time) (total, banned int, err error)
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `user_id, username, full_name, is_banned, ban_reason, banned_until, created_at`

func (r *userRepo) Upsert(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (user_id, username, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
			full_name = EXCLUDED.full_name
		RETURNING created_at`

	if err := r.db.QueryRow(ctx, query, u.ID, u.Username, u.FullName).Scan(&u.CreatedAt); err != nil {
		return fmt.Errorf("ошибка сохранения пользователя %d: %w", u.ID, err)
	}
	return nil
}

func (r *userRepo) Get(ctx context.Context, userID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя %d: %w", userID, err)
	}
	return u, nil
}

func (r *userRepo) SetBan(ctx context.Context, userID int64, reason string, until *time.Time) error {
	query := `
		INSERT INTO users (user_id, is_banned, ban_reason, banned_until)
		VALUES ($1, TRUE, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET is_banned = TRUE,
			ban_reason = EXCLUDED.ban_reason,
			banned_until = EXCLUDED.banned_until`

	if _, err := r.db.Exec(ctx, query, userID, reason, until); err != nil {
		return fmt.Errorf("ошибка установки бана пользователю %d: %w", userID, err)
	}
	return nil
}

func (r *userRepo) ClearBan(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET is_banned = FALSE, ban_reason = NULL, banned_until = NULL
		WHERE user_id = $1`

	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("ошибка снятия бана с пользователя %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) ClearExpiredBan(ctx context.Context, userID int64, until time.Time) (bool, error) {
	query := `
		UPDATE users
		SET is_banned = FALSE, ban_reason = NULL, banned_until = NULL
		WHERE user_id = $1 AND is_banned AND banned_until = $2`

	tag, err := r.db.Exec(ctx, query, userID, until)
	if err != nil {
		return false, fmt.Errorf("ошибка снятия истёкшего бана с пользователя %d: %w", userID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *userRepo) ListActive(ctx context.Context, now time.Time) ([]int64, error) {
	query := `
		SELECT user_id FROM users
		WHERE NOT is_banned OR (banned_until IS NOT NULL AND banned_until <= $1)
		ORDER BY user_id`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активных пользователей: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *userRepo) List(ctx context.Context, limit int) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, user_id DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepo) Count(ctx context.Context, now time.Time) (total, banned int, err error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_banned AND (banned_until IS NULL OR banned_until > $1))
		FROM users`

	if err := r.db.QueryRow(ctx, query, now).Scan(&total, &banned); err != nil {
		return 0, 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return total, banned, nil
}

// scanUser сканирует строку users в модель.
func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.FullName,
		&u.Ban.Banned, &u.Ban.Reason, &u.Ban.Until, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}
