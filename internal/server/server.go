// Пакет server — HTTP-сервер каталога данных с TLS и graceful shutdown.
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

	"github.com/bigkaa/godatacatalog/internal/api/handlers"
	"github.com/bigkaa/godatacatalog/internal/api/middleware"
	"github.com/bigkaa/godatacatalog/internal/api/spec"
	"github.com/bigkaa/godatacatalog/internal/config"
)

// Handlers — обработчики доменных endpoints, монтируемые в роутер.
type Handlers struct {
	Datasets      *handlers.DatasetsHandler
	Distributions *handlers.DistributionsHandler
	LocalCatalogs *handlers.LocalCatalogsHandler
	Publishers    *handlers.PublishersHandler
	Codelists     *handlers.CodelistsHandler
	Files         *handlers.FilesHandler
	Notifications *handlers.NotificationsHandler
	Health        *handlers.HealthHandler
	System        *handlers.SystemHandler
	Mode          *handlers.ModeHandler
	Maintenance   *handlers.MaintenanceHandler
}

// Server — HTTP-сервер каталога данных.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// auth может быть nil — тогда все запросы считаются анонимными
// (используется в тестах).
func New(cfg *config.Config, logger *slog.Logger, auth *middleware.JWTAuth, h Handlers) (*Server, error) {
	// OpenAPI-документ валидируется при старте: битый документ —
	// ошибка конфигурации, а не проблема клиента.
	doc, err := spec.Load(context.Background())
	if err != nil {
		return nil, err
	}
	docJSON, err := spec.MarshalJSON(doc)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())
	if auth != nil {
		router.Use(auth.Middleware())
	}

	// Служебные endpoints вне /api/v1
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(docJSON) //nolint:errcheck
		})

		// Датасеты
		r.Post("/datasets", h.Datasets.Create)
		r.Post("/datasets/search", h.Datasets.Search)
		r.Get("/datasets/{id}", h.Datasets.Get)
		r.Put("/datasets/{id}", h.Datasets.Update)
		r.Delete("/datasets/{id}", h.Datasets.Delete)
		r.Post("/datasets/{id}/distributions", h.Distributions.Create)

		// Дистрибуции
		r.Get("/distributions/{id}", h.Distributions.Get)
		r.Put("/distributions/{id}", h.Distributions.Update)
		r.Delete("/distributions/{id}", h.Distributions.Delete)

		// Локальные каталоги
		r.Post("/local-catalogs", h.LocalCatalogs.Create)
		r.Post("/local-catalogs/search", h.LocalCatalogs.Search)
		r.Get("/local-catalogs/{id}", h.LocalCatalogs.Get)
		r.Put("/local-catalogs/{id}", h.LocalCatalogs.Update)
		r.Delete("/local-catalogs/{id}", h.LocalCatalogs.Delete)

		// Поставщики
		r.Post("/publishers", h.Publishers.Create)
		r.Post("/publishers/search", h.Publishers.Search)
		r.Get("/publishers/{id}", h.Publishers.Get)
		r.With(middleware.RequireSuperadmin()).Put("/publishers/{id}", h.Publishers.Update)
		r.With(middleware.RequireSuperadmin()).Post("/publishers/impersonate", h.Publishers.Impersonate)

		// Личный кабинет поставщика
		r.With(middleware.RequireAuth()).Post("/registration", h.Publishers.Register)
		r.With(middleware.RequireAuth()).Get("/profile", h.Publishers.GetProfile)
		r.With(middleware.RequireAuth()).Put("/profile", h.Publishers.UpdateProfile)

		// Кодлисты
		r.Get("/codelists/{id}", h.Codelists.Get)
		r.With(middleware.RequireSuperadmin()).Put("/codelists", h.Codelists.Replace)

		// Файлы дистрибуций
		r.Post("/upload", h.Files.Upload)
		r.Get("/download", h.Files.Download)

		// Уведомления
		r.Get("/notification-setting", h.Notifications.Get)
		r.Post("/notification-setting", h.Notifications.Set)

		// Администрирование
		r.Get("/storage-info", h.System.GetStorageInfo)
		r.With(middleware.RequireSuperadmin()).Post("/mode", h.Mode.TransitionMode)
		r.With(middleware.RequireSuperadmin()).Post("/maintenance/reconcile", h.Maintenance.Reconcile)
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
// При получении сигнала выполняется graceful shutdown с таймаутом 30 секунд.
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

	// Graceful shutdown с таймаутом 30 секунд
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
