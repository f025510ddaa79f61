package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SanchoysArt/sanchofile/internal/domain/model"
)

// FileRepository — интерфейс для таблицы files.
type FileRepository interface {
	// Insert создаёт запись файла. Дубликат short_code — ErrConflict.
	Insert(ctx context.Context, f *model.File) error
	// GetByCode возвращает файл по короткому коду. Если не найден — ErrNotFound.
	GetByCode(ctx context.Context, code string) (*model.File, error)
	// GetByID возвращает файл по UUID. Если не найден — ErrNotFound.
	GetByID(ctx context.Context, fileID string) (*model.File, error)
	// ListByOwner возвращает файлы владельца, новые первыми.
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.File, error)
	// CountByOwner возвращает число файлов владельца.
	CountByOwner(ctx context.Context, ownerID int64) (int, error)
	// Count возвращает общее число файлов.
	Count(ctx context.Context) (int, error)
	// Delete удаляет запись. Если не найдена — ErrNotFound.
	Delete(ctx context.Context, fileID string) error
	// LockOwner сериализует операции над файлами владельца до конца транзакции.
	LockOwner(ctx context.Context, ownerID int64) error
}

// FileTxRunner выполняет операции над files в одной транзакции.
type FileTxRunner interface {
	InTx(ctx context.Context, fn func(files FileRepository) error) error
}

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий реестра файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

const fileColumns = `file_id, user_id, file_handle, file_name, file_type, file_size,
	short_code, message_ref, created_at`

func (r *fileRepo) Insert(ctx context.Context, f *model.File) error {
	query := `
		INSERT INTO files (file_id, user_id, file_handle, file_name, file_type,
			file_size, short_code, message_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.OwnerID, f.Handle, f.Name, string(f.Kind),
		f.Size, f.ShortCode, f.MessageRef,
	).Scan(&f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: короткий код %s уже занят", ErrConflict, f.ShortCode)
		}
		return fmt.Errorf("ошибка регистрации файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByCode(ctx context.Context, code string) (*model.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE short_code = $1`

	f, err := scanFile(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска файла по коду %s: %w", code, err)
	}
	return f, nil
}

func (r *fileRepo) GetByID(ctx context.Context, fileID string) (*model.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE file_id = $1`

	f, err := scanFile(r.db.QueryRow(ctx, query, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла %s: %w", fileID, err)
	}
	return f, nil
}

func (r *fileRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*model.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файлов пользователя %d: %w", ownerID, err)
	}
	defer rows.Close()

	var files []*model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *fileRepo) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM files WHERE user_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов пользователя %d: %w", ownerID, err)
	}
	return n, nil
}

func (r *fileRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return n, nil
}

func (r *fileRepo) Delete(ctx context.Context, fileID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла %s: %w", fileID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) LockOwner(ctx context.Context, ownerID int64) error {
	return advisoryLock(ctx, r.db, ownerID)
}

// fileTxRunner — FileTxRunner поверх TxRunner.
type fileTxRunner struct {
	tx *TxRunner
}

// NewFileTxRunner создаёт транзакционный исполнитель для реестра файлов.
func NewFileTxRunner(tx *TxRunner) FileTxRunner {
	return &fileTxRunner{tx: tx}
}

func (r *fileTxRunner) InTx(ctx context.Context, fn func(files FileRepository) error) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(NewFileRepository(tx))
	})
}

// scanFile сканирует строку files в модель.
func scanFile(row pgx.Row) (*model.File, error) {
	f := &model.File{}
	var kind string
	err := row.Scan(
		&f.ID, &f.OwnerID, &f.Handle, &f.Name, &kind, &f.Size,
		&f.ShortCode, &f.MessageRef, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if f.Kind, err = model.ParseFileKind(kind); err != nil {
		return nil, err
	}
	return f, nil
}
