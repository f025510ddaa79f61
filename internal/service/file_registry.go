// file_registry.go — реестр файлов: выдача коротких кодов, лимит загрузок,
// поиск по коду и удаление с проверкой владельца.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/SanchoysArt/sanchofile/internal/domain/conversation"
	"github.com/SanchoysArt/sanchofile/internal/domain/model"
	"github.com/SanchoysArt/sanchofile/internal/repository"
)

// maxCodeAttempts — число попыток подобрать свободный короткий код.
const maxCodeAttempts = 10

var (
	filesRegisteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fb_files_registered_total",
		Help: "Количество зарегистрированных файлов по типу.",
	}, []string{"kind"})
	filesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fb_files_deleted_total",
		Help: "Количество удалённых файлов.",
	})
	quotaRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fb_quota_rejections_total",
		Help: "Количество загрузок, отклонённых по лимиту.",
	})
	codeCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fb_short_code_collisions_total",
		Help: "Количество коллизий при генерации короткого кода.",
	})
)

// FileRegistryService — реестр файлов.
type FileRegistryService struct {
	files  repository.FileRepository
	tx     repository.FileTxRunner
	quota  *QuotaSettings
	cache  *LookupCache
	codes  CodeGenerator
	group  singleflight.Group
	logger *slog.Logger
}

// NewFileRegistryService создаёт сервис реестра файлов.
func NewFileRegistryService(
	files repository.FileRepository,
	tx repository.FileTxRunner,
	quota *QuotaSettings,
	cache *LookupCache,
	codes CodeGenerator,
	logger *slog.Logger,
) *FileRegistryService {
	return &FileRegistryService{
		files:  files,
		tx:     tx,
		quota:  quota,
		cache:  cache,
		codes:  codes,
		logger: logger.With(slog.String("component", "file_registry")),
	}
}

// Register регистрирует файл и выдаёт ему короткий код.
// Подсчёт файлов владельца и вставка выполняются в одной транзакции,
// сериализованной по владельцу. Занятый код генерируется заново.
func (s *FileRegistryService) Register(ctx context.Context, ownerID int64, up model.Upload) (*model.File, error) {
	limit := s.quota.Limit()

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		f := &model.File{
			ID:         uuid.NewString(),
			OwnerID:    ownerID,
			Handle:     up.Handle,
			Name:       up.Name,
			Kind:       up.Kind,
			Size:       up.Size,
			ShortCode:  s.codes(),
			MessageRef: up.MessageRef,
		}

		err := s.tx.InTx(ctx, func(files repository.FileRepository) error {
			if err := files.LockOwner(ctx, ownerID); err != nil {
				return err
			}
			count, err := files.CountByOwner(ctx, ownerID)
			if err != nil {
				return err
			}
			if count >= limit {
				return fmt.Errorf("%w: %d из %d", ErrQuotaExceeded, count, limit)
			}
			return files.Insert(ctx, f)
		})

		switch {
		case err == nil:
			filesRegisteredTotal.WithLabelValues(string(f.Kind)).Inc()
			s.logger.Info("Файл зарегистрирован",
				slog.Int64("owner_id", ownerID),
				slog.String("file_id", f.ID),
				slog.String("short_code", f.ShortCode),
				slog.String("kind", string(f.Kind)),
				slog.Int64("size", f.Size),
			)
			return f, nil
		case errors.Is(err, ErrQuotaExceeded):
			quotaRejectionsTotal.Inc()
			return nil, err
		case errors.Is(err, repository.ErrConflict):
			codeCollisionsTotal.Inc()
			s.logger.Debug("Коллизия короткого кода, повторная генерация",
				slog.String("short_code", f.ShortCode),
				slog.Int("attempt", attempt),
			)
		default:
			return nil, fmt.Errorf("ошибка регистрации файла: %w", err)
		}
	}

	return nil, fmt.Errorf("%w: %d попыток", ErrCodeSpaceExhausted, maxCodeAttempts)
}

// Lookup возвращает файл по короткому коду.
// Параллельные промахи кэша по одному коду объединяются в один запрос к БД.
func (s *FileRegistryService) Lookup(ctx context.Context, code string) (*model.File, error) {
	if f, ok := s.cache.Get(code); ok {
		return f, nil
	}

	v, err, _ := s.group.Do(code, func() (any, error) {
		f, err := s.files.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: код %s", ErrNotFound, code)
			}
			return nil, fmt.Errorf("ошибка поиска файла: %w", err)
		}
		s.cache.Set(code, f)
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.File), nil
}

// ListByOwner возвращает файлы владельца, новые первыми.
func (s *FileRegistryService) ListByOwner(ctx context.Context, ownerID int64) ([]*model.File, error) {
	files, err := s.files.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	return files, nil
}

// CountByOwner возвращает число файлов владельца.
func (s *FileRegistryService) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	n, err := s.files.CountByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return n, nil
}

// DeleteBySelector удаляет ровно один файл владельца и возвращает его запись.
//
// Позиционный селектор разрешается по snapshot (последнему показанному списку);
// при snapshot == nil список запрашивается заново. Файл из snapshot, удалённый
// за это время, даёт ErrNotFound. Код сверяется с текущим состоянием реестра.
func (s *FileRegistryService) DeleteBySelector(
	ctx context.Context,
	ownerID int64,
	sel conversation.Selector,
	snapshot []*model.File,
) (*model.File, error) {
	target, err := s.resolve(ctx, ownerID, sel, snapshot)
	if err != nil {
		return nil, err
	}
	if target.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	if err := s.files.Delete(ctx, target.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %s уже удалён", ErrNotFound, target.ShortCode)
		}
		return nil, fmt.Errorf("ошибка удаления файла: %w", err)
	}
	s.cache.Delete(target.ShortCode)

	filesDeletedTotal.Inc()
	s.logger.Info("Файл удалён",
		slog.Int64("owner_id", ownerID),
		slog.String("file_id", target.ID),
		slog.String("short_code", target.ShortCode),
	)
	return target, nil
}

// resolve находит файл по селектору.
func (s *FileRegistryService) resolve(
	ctx context.Context,
	ownerID int64,
	sel conversation.Selector,
	snapshot []*model.File,
) (*model.File, error) {
	if !sel.IsIndex() {
		f, err := s.files.GetByCode(ctx, sel.Code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: код %s", ErrNotFound, sel.Code)
			}
			return nil, fmt.Errorf("ошибка поиска файла: %w", err)
		}
		return f, nil
	}

	list := snapshot
	if list == nil {
		var err error
		if list, err = s.ListByOwner(ctx, ownerID); err != nil {
			return nil, err
		}
	}
	if sel.Index < 1 || sel.Index > len(list) {
		return nil, fmt.Errorf("%w: %d из %d", ErrOutOfRange, sel.Index, len(list))
	}
	entry := list[sel.Index-1]
	if snapshot == nil {
		return entry, nil
	}

	// Запись из показанного списка перечитывается по ID
	f, err := s.files.GetByID(ctx, entry.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %s уже удалён", ErrNotFound, entry.ShortCode)
		}
		return nil, fmt.Errorf("ошибка поиска файла: %w", err)
	}
	return f, nil
}
