// Точка входа каталога данных — модуля регистрации и поиска метаданных.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/godatacatalog/internal/api/handlers"
	"github.com/bigkaa/godatacatalog/internal/api/middleware"
	"github.com/bigkaa/godatacatalog/internal/config"
	"github.com/bigkaa/godatacatalog/internal/domain/mode"
	"github.com/bigkaa/godatacatalog/internal/server"
	"github.com/bigkaa/godatacatalog/internal/service"
	"github.com/bigkaa/godatacatalog/internal/storage/attr"
	"github.com/bigkaa/godatacatalog/internal/storage/docstore"
	"github.com/bigkaa/godatacatalog/internal/storage/engine"
	"github.com/bigkaa/godatacatalog/internal/storage/index"
	"github.com/bigkaa/godatacatalog/internal/storage/wal"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Каталог данных запускается",
		slog.String("catalog_id", cfg.CatalogID),
		slog.String("version", config.Version),
		slog.String("mode", cfg.Mode),
		slog.Int("port", cfg.Port),
	)

	// --- Инициализация компонентов ---

	// 1. Конечный автомат режимов. Режим, сохранённый при прошлом
	// запуске, имеет приоритет над DC_MODE.
	modeFile := filepath.Join(cfg.DataDir, "mode.json")
	initialMode := mode.CatalogMode(cfg.Mode)
	if persisted, ok := loadPersistedMode(modeFile); ok {
		initialMode = persisted
		logger.Info("Восстановлен сохранённый режим", slog.String("mode", string(persisted)))
	}
	sm, err := mode.NewStateMachine(initialMode)
	if err != nil {
		logger.Error("Ошибка инициализации state machine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Режим работы установлен", slog.String("mode", string(initialMode)))

	// 2. WAL
	walEngine, err := wal.New(cfg.WALDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации WAL", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Хранилища: атрибуты и документы
	attrs, err := attr.NewStore(filepath.Join(cfg.DataDir, "metadata"))
	if err != nil {
		logger.Error("Ошибка инициализации хранилища атрибутов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	docs, err := docstore.New(filepath.Join(cfg.DataDir, "content"))
	if err != nil {
		logger.Error("Ошибка инициализации хранилища документов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Движок хранения + восстановление после сбоя
	idx := index.New(logger)
	eng := engine.New(attrs, docs, idx, walEngine, logger)

	if err := eng.Recover(); err != nil {
		logger.Error("Ошибка восстановления WAL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := idx.BuildFrom(attrs); err != nil {
		logger.Error("Ошибка построения индекса", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Начальные значения Prometheus-метрик записей
	updateRecordMetrics(idx, docs)

	// 5. Ключ выпуска токенов имперсонализации (опционален)
	var issuer *service.TokenIssuer
	var localKey *rsa.PublicKey
	if cfg.TokenKeyFile != "" {
		key, keyErr := loadTokenKey(cfg.TokenKeyFile)
		if keyErr != nil {
			logger.Error("Ошибка загрузки ключа токенов",
				slog.String("path", cfg.TokenKeyFile),
				slog.String("error", keyErr.Error()),
			)
			os.Exit(1)
		}
		issuer = service.NewTokenIssuer(key, cfg.TokenKeyID, cfg.TokenIssuer)
		localKey = &key.PublicKey
		logger.Info("Выпуск токенов имперсонализации включён", slog.String("kid", cfg.TokenKeyID))
	}

	// 6. Сервисы
	codelistSvc := service.NewCodelistService(eng, cfg.CodelistCacheTTL, logger)
	datasetSvc := service.NewDatasetService(eng, codelistSvc, logger)
	distributionSvc := service.NewDistributionService(eng, codelistSvc, datasetSvc, logger)
	localCatalogSvc := service.NewLocalCatalogService(eng, codelistSvc, logger)
	publisherSvc := service.NewPublisherService(eng, codelistSvc, issuer, logger)
	searchSvc := service.NewSearchService(eng, logger)
	uploadSvc := service.NewUploadService(eng, sm, cfg.MaxFileSize, logger)
	downloadSvc := service.NewDownloadService(eng, sm, logger)

	var notificationSecret []byte
	if cfg.NotificationKey != "" {
		notificationSecret = []byte(cfg.NotificationKey)
	}
	notificationSvc, err := service.NewNotificationService(
		filepath.Join(cfg.DataDir, "notifications"), notificationSecret, logger)
	if err != nil {
		logger.Error("Ошибка инициализации сервиса уведомлений", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Фоновые процессы
	ctx := context.Background()

	gcSvc := service.NewGCService(eng, cfg.GCInterval, logger)
	gcSvc.Start(ctx)

	reconcileSvc := service.NewReconcileService(eng, cfg.ReconcileInterval, logger)
	reconcileSvc.Start(ctx)

	// topologymetrics — мониторинг JWKS endpoint провайдера identity
	dephealthSvc, dephealthErr := service.NewDephealthService(
		resolveDephealthName(cfg),
		cfg.DephealthGroup,
		cfg.DephealthDepName,
		cfg.JWKSUrl,
		cfg.DephealthCheckInterval,
		cfg.TLSSkipVerify,
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
			logger.Info("topologymetrics запущен",
				slog.String("jwks_url", cfg.JWKSUrl),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 8. JWT middleware
	var jwtAuth *middleware.JWTAuth
	jwtMiddleware, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:         cfg.JWKSUrl,
		CACertPath:      cfg.JWKSCACert,
		TLSSkipVerify:   cfg.TLSSkipVerify,
		ClientTimeout:   30 * time.Second,
		RefreshInterval: 15 * time.Minute,
		JWTLeeway:       cfg.JWTLeeway,
		LocalKey:        localKey,
		LocalKeyID:      cfg.TokenKeyID,
	}, logger)
	if err != nil {
		// JWKS недоступен — запускаем без аутентификации (для разработки)
		logger.Warn("JWT JWKS недоступен, запуск без аутентификации",
			slog.String("jwks_url", cfg.JWKSUrl),
			slog.String("error", err.Error()),
		)
	} else {
		jwtAuth = jwtMiddleware
		logger.Info("JWT аутентификация настроена",
			slog.String("jwks_url", cfg.JWKSUrl),
		)
	}

	// 9. Handlers
	h := server.Handlers{
		Datasets:      handlers.NewDatasetsHandler(datasetSvc, searchSvc, sm),
		Distributions: handlers.NewDistributionsHandler(distributionSvc, sm),
		LocalCatalogs: handlers.NewLocalCatalogsHandler(localCatalogSvc, searchSvc, sm),
		Publishers:    handlers.NewPublishersHandler(publisherSvc, searchSvc, sm),
		Codelists:     handlers.NewCodelistsHandler(codelistSvc, sm),
		Files:         handlers.NewFilesHandler(uploadSvc, downloadSvc),
		Notifications: handlers.NewNotificationsHandler(notificationSvc),
		Health:        handlers.NewHealthHandlerFull(cfg.DataDir, cfg.WALDir, idx),
		System:        handlers.NewSystemHandler(cfg.CatalogID, sm, idx, docs, logger),
		Mode:          handlers.NewModeHandler(sm, logger, &modePersister{path: modeFile}),
		Maintenance:   handlers.NewMaintenanceHandler(reconcileSvc),
	}

	// 10. Создание и запуск HTTP-сервера
	srv, err := server.New(cfg, logger, jwtAuth, h)
	if err != nil {
		logger.Error("Ошибка инициализации сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	gcSvc.Stop()
	reconcileSvc.Stop()
	if dephealthErr == nil {
		dephealthSvc.Stop()
	}
	if jwtAuth != nil {
		jwtAuth.Close()
	}

	logger.Info("Каталог данных остановлен")
}

// updateRecordMetrics выставляет Prometheus-метрики записей из индекса.
func updateRecordMetrics(idx *index.Index, docs *docstore.Store) {
	for typ, count := range idx.CountByType() {
		middleware.RecordsTotal.WithLabelValues(string(typ)).Set(float64(count))
	}
	if _, used, _, err := docs.DiskUsage(); err == nil {
		middleware.StorageBytes.Set(float64(used))
	}
}

// persistedMode — формат файла mode.json.
type persistedMode struct {
	Mode mode.CatalogMode `json:"mode"`
}

// modePersister сохраняет текущий режим в файл, чтобы пережить рестарт.
type modePersister struct {
	path string
}

func (p *modePersister) SaveMode(m mode.CatalogMode) error {
	data, err := json.Marshal(persistedMode{Mode: m})
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

// loadPersistedMode читает режим из mode.json, если файл существует и валиден.
func loadPersistedMode(path string) (mode.CatalogMode, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var pm persistedMode
	if err := json.Unmarshal(data, &pm); err != nil {
		return "", false
	}
	switch pm.Mode {
	case mode.ModeNormal, mode.ModeReadonly, mode.ModeMaintenance:
		return pm.Mode, true
	}
	return "", false
}

// loadTokenKey читает RSA-ключ из PEM-файла (PKCS#1 или PKCS#8).
func loadTokenKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла ключа: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("файл %s не содержит PEM-блока", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("разбор приватного ключа: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("ожидался RSA-ключ, получен %T", parsed)
	}
	return key, nil
}
