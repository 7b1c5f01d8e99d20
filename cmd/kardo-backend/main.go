// Точка входа kardo-backend — сервиса приёма записей проектов и отчётов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/kardo-digital/kardo-backend/internal/api/handlers"
	"github.com/kardo-digital/kardo-backend/internal/api/middleware"
	"github.com/kardo-digital/kardo-backend/internal/config"
	"github.com/kardo-digital/kardo-backend/internal/i18n"
	"github.com/kardo-digital/kardo-backend/internal/server"
	"github.com/kardo-digital/kardo-backend/internal/service"
	"github.com/kardo-digital/kardo-backend/internal/storage/contentdir"
	"github.com/kardo-digital/kardo-backend/internal/storage/recordstore"
)

func main() {
	// .env для локальной разработки; в K8s переменные приходят из окружения
	_ = godotenv.Load()

	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("kardo-backend запускается",
		slog.String("instance_id", cfg.InstanceID),
		slog.String("version", config.Version),
		slog.String("auth_mode", cfg.AuthMode),
		slog.Int("port", cfg.Port),
	)

	// --- Инициализация компонентов ---

	// 1. Локализация
	bundle := i18n.NewBundle(logger)
	if err := i18n.LoadFromEmbedFS(bundle, logger); err != nil {
		logger.Error("Ошибка загрузки каталогов переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Контент-директория
	content, err := contentdir.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации контент-директории", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Хранилище записей
	store, err := recordstore.New(cfg.StorePath, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища записей", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. JWT middleware
	var auth *middleware.JWTAuth
	switch cfg.AuthMode {
	case config.AuthModeSecret:
		auth = middleware.NewSecret([]byte(cfg.JWTSecret), cfg.JWTLeeway, logger)
	case config.AuthModeJWKS:
		auth, err = middleware.NewJWKS(middleware.JWKSConfig{
			URL:             cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			TLSSkipVerify:   cfg.JWKSTLSSkipVerify,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			Leeway:          cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка инициализации JWKS", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 5. Сервисы
	recordSvc := service.NewRecordService(content, store, cfg.MaxFileSize, logger)
	if err := recordSvc.InitRecordMetrics(); err != nil {
		logger.Warn("Не удалось инициализировать метрики записей",
			slog.String("error", err.Error()),
		)
	}

	// 6. Фоновые процессы
	ctx := context.Background()

	// 6.1 GC — фоновая очистка файлов-сирот
	gcSvc := service.NewGCService(content, store, cfg.GCInterval, cfg.GCMinAge, logger)
	gcSvc.Start(ctx)
	defer gcSvc.Stop()

	// 6.2 topologymetrics — мониторинг зависимостей (только режим jwks)
	if cfg.AuthMode == config.AuthModeJWKS {
		dephealthSvc, dephealthErr := service.NewDephealthService(
			cfg.InstanceID,
			cfg.DephealthGroup,
			cfg.DephealthDepName,
			cfg.JWKSUrl,
			cfg.DephealthCheckInterval,
			logger,
		)
		if dephealthErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dephealthErr.Error()),
			)
		} else {
			if startErr := dephealthSvc.Start(ctx); startErr != nil {
				logger.Warn("Ошибка запуска topologymetrics",
					slog.String("error", startErr.Error()),
				)
			} else {
				defer dephealthSvc.Stop()
				logger.Info("topologymetrics запущен",
					slog.String("jwks_url", cfg.JWKSUrl),
					slog.String("check_interval", cfg.DephealthCheckInterval.String()),
				)
			}
		}
	}

	// 7. Handlers
	recordsHandler := handlers.NewRecordsHandler(recordSvc)
	healthHandler := handlers.NewHealthHandler(cfg.DataDir, store)
	languageHandler := handlers.NewLanguageHandler()

	// 8. HTTP-сервер
	srv, err := server.New(cfg, logger, server.Deps{
		Records:  recordsHandler,
		Health:   healthHandler,
		Language: languageHandler,
		Auth:     auth,
		Bundle:   bundle,
	})
	if err != nil {
		logger.Error("Ошибка инициализации HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("kardo-backend остановлен")
}
