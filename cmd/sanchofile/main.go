// Точка входа sanchofile — Telegram-бота файлообменника.
// Загружает конфигурацию, подключает хранилище (PostgreSQL или память),
// создаёт сервисный слой и диспетчер диалогов, запускает опрос Bot API,
// служебный HTTP-сервер, topologymetrics и graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/SanchoysArt/sanchofile/internal/api/handlers"
	"github.com/SanchoysArt/sanchofile/internal/bot"
	"github.com/SanchoysArt/sanchofile/internal/config"
	"github.com/SanchoysArt/sanchofile/internal/database"
	"github.com/SanchoysArt/sanchofile/internal/repository"
	"github.com/SanchoysArt/sanchofile/internal/repository/memory"
	"github.com/SanchoysArt/sanchofile/internal/server"
	"github.com/SanchoysArt/sanchofile/internal/service"
	"github.com/SanchoysArt/sanchofile/internal/telegram"
)

// storage — набор репозиториев выбранного бэкенда.
type storage struct {
	users    repository.UserRepository
	files    repository.FileRepository
	settings repository.SettingsRepository
	tx       repository.FileTxRunner
	// pool — nil в режиме memory
	pool *pgxpool.Pool
}

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("sanchofile запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage", cfg.Storage),
	)

	if len(cfg.AdminIDs) == 0 {
		logger.Warn("FB_ADMIN_IDS не задана, панель администратора недоступна")
	}

	// 3. Хранилище
	ctx := context.Background()
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Services
	quota := service.NewQuotaSettings(store.settings, cfg.DefaultUploadLimit, logger)
	if err := quota.Load(ctx); err != nil {
		logger.Error("Ошибка загрузки лимита загрузок", slog.String("error", err.Error()))
		os.Exit(1)
	}

	codes, err := service.NewCodeGenerator()
	if err != nil {
		logger.Error("Ошибка создания генератора кодов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	filesSvc := service.NewFileRegistryService(
		store.files, store.tx, quota,
		service.NewLookupCache(cfg.LookupCacheSize, cfg.LookupCacheTTL),
		codes,
		logger,
	)
	accessSvc := service.NewAccessService(store.users, logger)
	statsSvc := service.NewStatsService(store.users, store.files, quota)
	sessions := service.NewSessionStore(cfg.SessionMax, cfg.SessionTTL)

	// 5. Telegram Bot API
	client, err := telegram.New(telegram.Options{
		Token:       cfg.TelegramToken,
		PollTimeout: cfg.TelegramPollTimeout,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания Telegram-клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}
	broadcast := service.NewBroadcastEngine(client, cfg.BroadcastBatch, logger)

	// 6. Диспетчер диалогов
	botUsername := cfg.BotUsername
	if botUsername == "" {
		botUsername = client.Username()
	}
	router := bot.NewRouter(bot.Services{
		Access:    accessSvc,
		Admins:    service.NewAdminSet(cfg.AdminIDs),
		Files:     filesSvc,
		Quota:     quota,
		Stats:     statsSvc,
		Sessions:  sessions,
		Broadcast: broadcast,
	}, client, botUsername, logger)
	client.Bind(router)

	// 7. topologymetrics — мониторинг зависимостей
	var pgDB *sql.DB
	targets := service.DephealthTargets{TelegramAPIURL: service.DefaultTelegramAPIURL}
	if store.pool != nil {
		// Адаптер pgxpool → *sql.DB: проверка идёт через существующий пул
		pgDB = stdlib.OpenDBFromPool(store.pool)
		targets.DB = pgDB
		targets.PostgresURL = cfg.DatabaseURL("postgres")
	}
	dephealthSvc, err := service.NewDephealthService(
		"sanchofile", cfg.DephealthGroup, targets, cfg.DephealthCheckInterval, logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	}

	// 8. Служебный HTTP-сервер
	checkers := []handlers.ReadinessChecker{client}
	if store.pool != nil {
		checkers = append(checkers, database.NewReadinessChecker(store.pool))
	}
	srv := server.New(cfg, logger, handlers.NewHealthHandler(checkers...))

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Error("HTTP-сервер завершился с ошибкой", slog.String("error", err.Error()))
		}
	}()
	go client.Start()

	logger.Info("sanchofile запущен", slog.String("bot_username", botUsername))

	// 9. Graceful shutdown по SIGINT/SIGTERM.
	// Операции выполняются параллельно, поэтому порядок
	// «опрос → рассылка → БД» задан внутри одной операции.
	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"bot": func(ctx context.Context) error {
			client.Stop()
			var errs []error
			if err := broadcast.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
			if pgDB != nil {
				if err := pgDB.Close(); err != nil {
					errs = append(errs, err)
				}
			}
			if store.pool != nil {
				store.pool.Close()
			}
			return errors.Join(errs...)
		},
		"http": func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
		"dephealth": func(context.Context) error {
			if dephealthSvc != nil {
				dephealthSvc.Stop()
			}
			return nil
		},
	})

	exitCode := <-wait
	logger.Info("sanchofile остановлен", slog.Int("exit_code", exitCode))
	os.Exit(exitCode)
}

// openStorage применяет миграции и подключается к PostgreSQL
// либо создаёт хранилище в памяти.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("Используется хранилище в памяти, данные не сохраняются между перезапусками")
		files := memory.NewFiles()
		return &storage{
			users:    memory.NewUsers(),
			files:    files,
			settings: memory.NewSettings(),
			tx:       files,
		}, nil
	}

	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &storage{
		users:    repository.NewUserRepository(pool),
		files:    repository.NewFileRepository(pool),
		settings: repository.NewSettingsRepository(pool),
		tx:       repository.NewFileTxRunner(repository.NewTxRunner(pool)),
		pool:     pool,
	}, nil
}
