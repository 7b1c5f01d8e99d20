// Пакет server — HTTP-сервер kardo-backend с TLS и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kardo-digital/kardo-backend/internal/api/handlers"
	"github.com/kardo-digital/kardo-backend/internal/api/middleware"
	"github.com/kardo-digital/kardo-backend/internal/api/spec"
	"github.com/kardo-digital/kardo-backend/internal/config"
	"github.com/kardo-digital/kardo-backend/internal/i18n"
)

// Server — HTTP-сервер kardo-backend.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// Deps — обработчики и middleware для сборки роутера.
type Deps struct {
	Records  *handlers.RecordsHandler
	Health   *handlers.HealthHandler
	Language *handlers.LanguageHandler
	Auth     *middleware.JWTAuth
	Bundle   *i18n.Bundle
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
//
// Порядок middleware важен: логирование и метрики снаружи, затем
// локализация, затем (только для записи) аутентификация. JWT
// проверяется ДО разбора multipart: отклонённый запрос не сохраняет
// файлов на диск.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(i18n.Middleware(deps.Bundle, cfg.DefaultLang))
	// Recoverer внутри i18n: текст 500 при панике локализуется
	router.Use(middleware.Recoverer(logger))

	// Публичные endpoints
	router.Get("/health/live", deps.Health.HealthLive)
	router.Get("/health/ready", deps.Health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/language.html", deps.Language.Page)
	router.Post("/language", deps.Language.SetLanguage)

	specHandler, err := spec.Handler()
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI контракта: %w", err)
	}
	router.Get("/openapi.json", specHandler)

	// Защищённые endpoints: создание записей
	router.Group(func(r chi.Router) {
		r.Use(deps.Auth.Middleware())
		r.Post(handlers.RecordsRoutePattern, deps.Records.Create)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Настройка TLS
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}, nil
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом
// KB_SHUTDOWN_TIMEOUT.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSCert != ""),
		)

		var err error
		if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
