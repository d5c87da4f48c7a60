// Пакет config — загрузка и валидация конфигурации каталога данных
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации каталога данных.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Идентификатор экземпляра каталога (например, "catalog-sk-01")
	CatalogID string
	// Корневая директория данных: метаданные, документы, уведомления
	DataDir string
	// Путь к директории WAL
	WALDir string
	// Начальный режим работы (normal, readonly, maintenance)
	Mode string
	// Максимальный размер загружаемого файла дистрибуции в байтах
	MaxFileSize int64
	// Интервал запуска GC
	GCInterval time.Duration
	// Интервал автоматической выверки хранилища
	ReconcileInterval time.Duration
	// TTL кэша кодлистов
	CodelistCacheTTL time.Duration
	// URL JWKS endpoint провайдера identity
	JWKSUrl string
	// Путь к CA-сертификату для проверки TLS JWKS endpoint (опционально)
	JWKSCACert string
	// Отключение проверки TLS-сертификата JWKS endpoint (только для разработки)
	TLSSkipVerify bool
	// Допуск рассинхронизации часов при проверке exp/nbf токенов
	JWTLeeway time.Duration
	// Путь к RSA-ключу в PEM для выпуска токенов имперсонации (опционально)
	TokenKeyFile string
	// kid токенов, выпущенных каталогом
	TokenKeyID string
	// iss токенов, выпущенных каталогом
	TokenIssuer string
	// Секрет HMAC-ключей управления уведомлениями (опционально)
	NotificationKey string
	// Путь к TLS сертификату (опционально — TLS может терминировать ingress)
	TLSCert string
	// Путь к TLS приватному ключу
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics (DC_DEPHEALTH_GROUP)
	DephealthGroup string
	// Имя зависимости (целевого сервиса) в метриках topologymetrics (DC_DEPHEALTH_DEP_NAME)
	DephealthDepName string
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// DC_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("DC_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("DC_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("DC_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// DC_CATALOG_ID — обязательный
	cfg.CatalogID, err = getEnvRequired("DC_CATALOG_ID")
	if err != nil {
		return nil, err
	}

	// DC_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("DC_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// DC_WAL_DIR — обязательный
	cfg.WALDir, err = getEnvRequired("DC_WAL_DIR")
	if err != nil {
		return nil, err
	}

	// DC_MODE — режим работы (по умолчанию "normal")
	cfg.Mode = getEnvDefault("DC_MODE", "normal")
	validModes := map[string]bool{"normal": true, "readonly": true, "maintenance": true}
	if !validModes[cfg.Mode] {
		return nil, fmt.Errorf("DC_MODE: недопустимое значение %q, допустимые: normal, readonly, maintenance", cfg.Mode)
	}

	// DC_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 1 GB)
	maxFileSize, err := getEnvInt64("DC_MAX_FILE_SIZE", 1073741824)
	if err != nil {
		return nil, fmt.Errorf("DC_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("DC_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// DC_GC_INTERVAL — интервал GC (по умолчанию 1h)
	cfg.GCInterval, err = getEnvDuration("DC_GC_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DC_GC_INTERVAL: %w", err)
	}

	// DC_RECONCILE_INTERVAL — интервал выверки (по умолчанию 6h)
	cfg.ReconcileInterval, err = getEnvDuration("DC_RECONCILE_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DC_RECONCILE_INTERVAL: %w", err)
	}

	// DC_CODELIST_CACHE_TTL — TTL кэша кодлистов (по умолчанию 10m)
	cfg.CodelistCacheTTL, err = getEnvDuration("DC_CODELIST_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DC_CODELIST_CACHE_TTL: %w", err)
	}

	// DC_JWKS_URL — обязательный
	cfg.JWKSUrl, err = getEnvRequired("DC_JWKS_URL")
	if err != nil {
		return nil, err
	}

	// DC_JWKS_CA_CERT — путь к CA-сертификату для JWKS endpoint (опционально)
	cfg.JWKSCACert = getEnvDefault("DC_JWKS_CA_CERT", "")

	// DC_TLS_SKIP_VERIFY — отключение проверки TLS JWKS (по умолчанию false)
	cfg.TLSSkipVerify, err = getEnvBool("DC_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("DC_TLS_SKIP_VERIFY: %w", err)
	}

	// DC_JWT_LEEWAY — допуск рассинхронизации часов (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("DC_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DC_JWT_LEEWAY: %w", err)
	}

	// DC_TOKEN_KEY_FILE — приватный ключ для имперсонации (опционально).
	// Без ключа endpoint имперсонации отвечает ошибкой.
	cfg.TokenKeyFile = getEnvDefault("DC_TOKEN_KEY_FILE", "")

	// DC_TOKEN_KEY_ID — kid собственных токенов (по умолчанию "catalog-key")
	cfg.TokenKeyID = getEnvDefault("DC_TOKEN_KEY_ID", "catalog-key")

	// DC_TOKEN_ISSUER — iss собственных токенов
	cfg.TokenIssuer = getEnvDefault("DC_TOKEN_ISSUER", "https://data.gov.sk/catalog")

	// DC_NOTIFICATION_KEY — секрет HMAC-ключей уведомлений (опционально)
	cfg.NotificationKey = getEnvDefault("DC_NOTIFICATION_KEY", "")

	// DC_TLS_CERT / DC_TLS_KEY — опциональны, но только парой
	cfg.TLSCert = getEnvDefault("DC_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("DC_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("DC_TLS_CERT и DC_TLS_KEY должны задаваться вместе")
	}

	// DC_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DC_LOG_LEVEL: %w", err)
	}

	// DC_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DC_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// DC_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("DC_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DC_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DC_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "data-catalog")
	cfg.DephealthGroup = getEnvDefault("DC_DEPHEALTH_GROUP", "data-catalog")

	// DC_DEPHEALTH_DEP_NAME — имя зависимости в метриках topologymetrics (по умолчанию "iam-jwks")
	cfg.DephealthDepName = getEnvDefault("DC_DEPHEALTH_DEP_NAME", "iam-jwks")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics (без префикса модуля)
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
