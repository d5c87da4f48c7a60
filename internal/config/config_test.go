package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// setEnvVars устанавливает переменные окружения для теста и возвращает
// функцию очистки. Всегда вызывать defer cleanup().
func setEnvVars(t *testing.T, vars map[string]string) func() {
	t.Helper()

	// Сохраняем оригинальные значения
	originals := make(map[string]string)
	origSet := make(map[string]bool)
	for k := range vars {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			origSet[k] = true
		}
	}

	// Устанавливаем новые
	for k, v := range vars {
		os.Setenv(k, v)
	}

	return func() {
		for k := range vars {
			if origSet[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

// clearAllDCEnvVars очищает все переменные окружения DC_* для чистого теста.
func clearAllDCEnvVars(t *testing.T) func() {
	t.Helper()
	keys := []string{
		"DC_PORT", "DC_CATALOG_ID", "DC_DATA_DIR", "DC_WAL_DIR",
		"DC_MODE", "DC_MAX_FILE_SIZE",
		"DC_GC_INTERVAL", "DC_RECONCILE_INTERVAL", "DC_CODELIST_CACHE_TTL",
		"DC_JWKS_URL", "DC_JWKS_CA_CERT", "DC_TLS_SKIP_VERIFY", "DC_JWT_LEEWAY",
		"DC_TOKEN_KEY_FILE", "DC_TOKEN_KEY_ID", "DC_TOKEN_ISSUER",
		"DC_NOTIFICATION_KEY",
		"DC_TLS_CERT", "DC_TLS_KEY",
		"DC_LOG_LEVEL", "DC_LOG_FORMAT",
		"DC_DEPHEALTH_CHECK_INTERVAL", "DC_DEPHEALTH_GROUP",
		"DC_DEPHEALTH_DEP_NAME", "DEPHEALTH_NAME",
	}
	originals := make(map[string]string)
	origSet := make(map[string]bool)
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			origSet[k] = true
		}
		os.Unsetenv(k)
	}
	return func() {
		for _, k := range keys {
			if origSet[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

// requiredEnvVars возвращает минимальный набор обязательных переменных.
func requiredEnvVars() map[string]string {
	return map[string]string{
		"DC_CATALOG_ID": "catalog-test-01",
		"DC_DATA_DIR":   "/tmp/data",
		"DC_WAL_DIR":    "/tmp/wal",
		"DC_JWKS_URL":   "https://iam.example.com/.well-known/jwks.json",
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cleanup := clearAllDCEnvVars(t)
	defer cleanup()

	cleanupVars := setEnvVars(t, requiredEnvVars())
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8080 {
		t.Errorf("Port: ожидалось 8080, получено %d", cfg.Port)
	}
	if cfg.Mode != "normal" {
		t.Errorf("Mode: ожидалось 'normal', получено %q", cfg.Mode)
	}
	if cfg.MaxFileSize != 1073741824 {
		t.Errorf("MaxFileSize: ожидалось 1073741824, получено %d", cfg.MaxFileSize)
	}
	if cfg.GCInterval != time.Hour {
		t.Errorf("GCInterval: ожидалось 1h, получено %v", cfg.GCInterval)
	}
	if cfg.ReconcileInterval != 6*time.Hour {
		t.Errorf("ReconcileInterval: ожидалось 6h, получено %v", cfg.ReconcileInterval)
	}
	if cfg.CodelistCacheTTL != 10*time.Minute {
		t.Errorf("CodelistCacheTTL: ожидалось 10m, получено %v", cfg.CodelistCacheTTL)
	}
	if cfg.TLSSkipVerify != false {
		t.Errorf("TLSSkipVerify: ожидалось false, получено %v", cfg.TLSSkipVerify)
	}
	if cfg.JWTLeeway != 30*time.Second {
		t.Errorf("JWTLeeway: ожидалось 30s, получено %v", cfg.JWTLeeway)
	}
	if cfg.TokenKeyID != "catalog-key" {
		t.Errorf("TokenKeyID: ожидалось 'catalog-key', получено %q", cfg.TokenKeyID)
	}
	if cfg.TokenIssuer != "https://data.gov.sk/catalog" {
		t.Errorf("TokenIssuer: ожидалось 'https://data.gov.sk/catalog', получено %q", cfg.TokenIssuer)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: ожидалось INFO, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: ожидалось 'json', получено %q", cfg.LogFormat)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval: ожидалось 15s, получено %v", cfg.DephealthCheckInterval)
	}
	if cfg.DephealthGroup != "data-catalog" {
		t.Errorf("DephealthGroup: ожидалось 'data-catalog', получено %q", cfg.DephealthGroup)
	}
	if cfg.DephealthDepName != "iam-jwks" {
		t.Errorf("DephealthDepName: ожидалось 'iam-jwks', получено %q", cfg.DephealthDepName)
	}
}

func TestLoad_AllCustomValues(t *testing.T) {
	cleanup := clearAllDCEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["DC_PORT"] = "9090"
	vars["DC_MODE"] = "readonly"
	vars["DC_MAX_FILE_SIZE"] = "536870912"
	vars["DC_GC_INTERVAL"] = "30m"
	vars["DC_RECONCILE_INTERVAL"] = "12h"
	vars["DC_CODELIST_CACHE_TTL"] = "1m"
	vars["DC_JWKS_CA_CERT"] = "/tmp/ca.crt"
	vars["DC_TLS_SKIP_VERIFY"] = "true"
	vars["DC_JWT_LEEWAY"] = "10s"
	vars["DC_TOKEN_KEY_FILE"] = "/tmp/token.pem"
	vars["DC_TOKEN_KEY_ID"] = "my-key"
	vars["DC_TOKEN_ISSUER"] = "https://catalog.example.com"
	vars["DC_NOTIFICATION_KEY"] = "secret"
	vars["DC_TLS_CERT"] = "/tmp/tls.crt"
	vars["DC_TLS_KEY"] = "/tmp/tls.key"
	vars["DC_LOG_LEVEL"] = "debug"
	vars["DC_LOG_FORMAT"] = "text"
	vars["DC_DEPHEALTH_CHECK_INTERVAL"] = "5s"
	vars["DC_DEPHEALTH_GROUP"] = "catalog-group"
	vars["DC_DEPHEALTH_DEP_NAME"] = "keycloak"
	vars["DEPHEALTH_NAME"] = "catalog-01"

	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port: ожидалось 9090, получено %d", cfg.Port)
	}
	if cfg.CatalogID != "catalog-test-01" {
		t.Errorf("CatalogID: ожидалось 'catalog-test-01', получено %q", cfg.CatalogID)
	}
	if cfg.Mode != "readonly" {
		t.Errorf("Mode: ожидалось 'readonly', получено %q", cfg.Mode)
	}
	if cfg.MaxFileSize != 536870912 {
		t.Errorf("MaxFileSize: ожидалось 536870912, получено %d", cfg.MaxFileSize)
	}
	if cfg.GCInterval != 30*time.Minute {
		t.Errorf("GCInterval: ожидалось 30m, получено %v", cfg.GCInterval)
	}
	if cfg.ReconcileInterval != 12*time.Hour {
		t.Errorf("ReconcileInterval: ожидалось 12h, получено %v", cfg.ReconcileInterval)
	}
	if cfg.CodelistCacheTTL != time.Minute {
		t.Errorf("CodelistCacheTTL: ожидалось 1m, получено %v", cfg.CodelistCacheTTL)
	}
	if cfg.JWKSCACert != "/tmp/ca.crt" {
		t.Errorf("JWKSCACert: ожидалось '/tmp/ca.crt', получено %q", cfg.JWKSCACert)
	}
	if cfg.TLSSkipVerify != true {
		t.Errorf("TLSSkipVerify: ожидалось true, получено %v", cfg.TLSSkipVerify)
	}
	if cfg.JWTLeeway != 10*time.Second {
		t.Errorf("JWTLeeway: ожидалось 10s, получено %v", cfg.JWTLeeway)
	}
	if cfg.TokenKeyFile != "/tmp/token.pem" {
		t.Errorf("TokenKeyFile: ожидалось '/tmp/token.pem', получено %q", cfg.TokenKeyFile)
	}
	if cfg.TokenKeyID != "my-key" {
		t.Errorf("TokenKeyID: ожидалось 'my-key', получено %q", cfg.TokenKeyID)
	}
	if cfg.TokenIssuer != "https://catalog.example.com" {
		t.Errorf("TokenIssuer: ожидалось 'https://catalog.example.com', получено %q", cfg.TokenIssuer)
	}
	if cfg.NotificationKey != "secret" {
		t.Errorf("NotificationKey: ожидалось 'secret', получено %q", cfg.NotificationKey)
	}
	if cfg.TLSCert != "/tmp/tls.crt" {
		t.Errorf("TLSCert: ожидалось '/tmp/tls.crt', получено %q", cfg.TLSCert)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel: ожидалось DEBUG, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat: ожидалось 'text', получено %q", cfg.LogFormat)
	}
	if cfg.DephealthCheckInterval != 5*time.Second {
		t.Errorf("DephealthCheckInterval: ожидалось 5s, получено %v", cfg.DephealthCheckInterval)
	}
	if cfg.DephealthGroup != "catalog-group" {
		t.Errorf("DephealthGroup: ожидалось 'catalog-group', получено %q", cfg.DephealthGroup)
	}
	if cfg.DephealthDepName != "keycloak" {
		t.Errorf("DephealthDepName: ожидалось 'keycloak', получено %q", cfg.DephealthDepName)
	}
	if cfg.DephealthName != "catalog-01" {
		t.Errorf("DephealthName: ожидалось 'catalog-01', получено %q", cfg.DephealthName)
	}
}

func TestLoad_MissingRequiredVars(t *testing.T) {
	requiredKeys := []string{
		"DC_CATALOG_ID", "DC_DATA_DIR", "DC_WAL_DIR", "DC_JWKS_URL",
	}

	for _, missing := range requiredKeys {
		t.Run(missing, func(t *testing.T) {
			cleanup := clearAllDCEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			delete(vars, missing)
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			_, err := Load()
			if err == nil {
				t.Errorf("ожидалась ошибка при отсутствии %s", missing)
			}
		})
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"нулевой", "0"},
		{"выше диапазона", "70000"},
		{"не число", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := clearAllDCEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			vars["DC_PORT"] = tt.value
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			_, err := Load()
			if err == nil {
				t.Errorf("ожидалась ошибка для DC_PORT=%s", tt.value)
			}
		})
	}
}

func TestLoad_InvalidMode(t *testing.T) {
	cleanup := clearAllDCEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["DC_MODE"] = "edit"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	_, err := Load()
	if err == nil {
		t.Error("ожидалась ошибка для невалидного DC_MODE")
	}
}

func TestLoad_ValidModes(t *testing.T) {
	modes := []string{"normal", "readonly", "maintenance"}

	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			cleanup := clearAllDCEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			vars["DC_MODE"] = mode
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			cfg, err := Load()
			if err != nil {
				t.Fatalf("неожиданная ошибка для режима %s: %v", mode, err)
			}
			if cfg.Mode != mode {
				t.Errorf("Mode: ожидалось %q, получено %q", mode, cfg.Mode)
			}
		})
	}
}

func TestLoad_InvalidMaxFileSize(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"не число", "abc"},
		{"нулевое", "0"},
		{"отрицательное", "-100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := clearAllDCEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			vars["DC_MAX_FILE_SIZE"] = tt.value
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			_, err := Load()
			if err == nil {
				t.Errorf("ожидалась ошибка для DC_MAX_FILE_SIZE=%s", tt.value)
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	durationVars := []string{
		"DC_GC_INTERVAL", "DC_RECONCILE_INTERVAL", "DC_CODELIST_CACHE_TTL",
		"DC_JWT_LEEWAY", "DC_DEPHEALTH_CHECK_INTERVAL",
	}

	for _, varName := range durationVars {
		t.Run(varName, func(t *testing.T) {
			cleanup := clearAllDCEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			vars[varName] = "not-a-duration"
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			_, err := Load()
			if err == nil {
				t.Errorf("ожидалась ошибка для невалидного %s", varName)
			}
		})
	}
}

// TestLoad_TLSCertKeyPair проверяет, что сертификат и ключ задаются только парой.
func TestLoad_TLSCertKeyPair(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr bool
	}{
		{"оба заданы", map[string]string{"DC_TLS_CERT": "/tmp/tls.crt", "DC_TLS_KEY": "/tmp/tls.key"}, false},
		{"оба пустые", map[string]string{}, false},
		{"только сертификат", map[string]string{"DC_TLS_CERT": "/tmp/tls.crt"}, true},
		{"только ключ", map[string]string{"DC_TLS_KEY": "/tmp/tls.key"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := clearAllDCEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			for k, v := range tt.vars {
				vars[k] = v
			}
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			_, err := Load()
			if tt.wantErr && err == nil {
				t.Error("ожидалась ошибка")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("неожиданная ошибка: %v", err)
			}
		})
	}
}

// TestLoad_TLSSkipVerify проверяет парсинг булевого DC_TLS_SKIP_VERIFY.
func TestLoad_TLSSkipVerify(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected bool
	}{
		{"true", "true", true},
		{"false", "false", false},
		{"1", "1", true},
		{"0", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := clearAllDCEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			vars["DC_TLS_SKIP_VERIFY"] = tt.value
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			cfg, err := Load()
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if cfg.TLSSkipVerify != tt.expected {
				t.Errorf("TLSSkipVerify: ожидалось %v, получено %v", tt.expected, cfg.TLSSkipVerify)
			}
		})
	}
}

// TestLoad_TLSSkipVerifyInvalid проверяет ошибку при невалидном значении.
func TestLoad_TLSSkipVerifyInvalid(t *testing.T) {
	cleanup := clearAllDCEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["DC_TLS_SKIP_VERIFY"] = "maybe"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	_, err := Load()
	if err == nil {
		t.Error("ожидалась ошибка для невалидного DC_TLS_SKIP_VERIFY='maybe'")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	cleanup := clearAllDCEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["DC_LOG_LEVEL"] = "invalid"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	_, err := Load()
	if err == nil {
		t.Error("ожидалась ошибка для невалидного DC_LOG_LEVEL")
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	cleanup := clearAllDCEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["DC_LOG_FORMAT"] = "yaml"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	_, err := Load()
	if err == nil {
		t.Error("ожидалась ошибка для невалидного DC_LOG_FORMAT")
	}
}

func TestLoad_ValidLogLevels(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cleanup := clearAllDCEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			vars["DC_LOG_LEVEL"] = tt.input
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			cfg, err := Load()
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if cfg.LogLevel != tt.expected {
				t.Errorf("LogLevel: ожидалось %v, получено %v", tt.expected, cfg.LogLevel)
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"json", "json"},
		{"text", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel:  slog.LevelInfo,
				LogFormat: tt.format,
			}
			logger := SetupLogger(cfg)
			if logger == nil {
				t.Fatal("SetupLogger вернул nil")
			}
		})
	}
}
