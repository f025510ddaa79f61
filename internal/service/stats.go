// stats.go — сводная статистика и список пользователей для админ-панели.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/SanchoysArt/sanchofile/internal/domain/model"
	"github.com/SanchoysArt/sanchofile/internal/repository"
)

// Stats — сводка для администратора.
type Stats struct {
	TotalUsers  int
	BannedUsers int
	ActiveUsers int
	TotalFiles  int
	UploadLimit int
}

// StatsService — чтение агрегатов для админ-панели.
type StatsService struct {
	users repository.UserRepository
	files repository.FileRepository
	quota *QuotaSettings
	now   func() time.Time
}

// NewStatsService создаёт сервис статистики.
func NewStatsService(users repository.UserRepository, files repository.FileRepository, quota *QuotaSettings) *StatsService {
	return &StatsService{users: users, files: files, quota: quota, now: time.Now}
}

// Stats возвращает сводку. Истёкшие баны не считаются.
func (s *StatsService) Stats(ctx context.Context) (Stats, error) {
	total, banned, err := s.users.Count(ctx, s.now())
	if err != nil {
		return Stats{}, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	files, err := s.files.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return Stats{
		TotalUsers:  total,
		BannedUsers: banned,
		ActiveUsers: total - banned,
		TotalFiles:  files,
		UploadLimit: s.quota.Limit(),
	}, nil
}

// RecentUsers возвращает последних зарегистрированных пользователей.
// Истёкший бан в результате показан как снятый.
func (s *StatsService) RecentUsers(ctx context.Context, limit int) ([]*model.User, error) {
	users, err := s.users.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей: %w", err)
	}
	now := s.now()
	for _, u := range users {
		if u.Ban.ExpiredAt(now) {
			u.Ban = model.Ban{}
		}
	}
	return users, nil
}
