// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/godatacatalog/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// IndexReadinessChecker — интерфейс для проверки готовности индекса.
type IndexReadinessChecker interface {
	IsReady() bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// dataDir — путь к директории метаданных (для проверки FS)
	dataDir string
	// walDir — путь к директории WAL (для проверки WAL)
	walDir string
	// idx — ссылка на индекс для проверки готовности
	idx IndexReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
// Без параметров — базовая проверка (для обратной совместимости).
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		version: config.Version,
	}
}

// NewHealthHandlerFull создаёт обработчик health endpoints с реальными проверками.
func NewHealthHandlerFull(dataDir, walDir string, idx IndexReadinessChecker) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		dataDir: dataDir,
		walDir:  walDir,
		idx:     idx,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс каталога жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "data-catalog",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: файловая система, WAL директория, готовность индекса.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	// Проверка файловой системы
	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	// Проверка WAL
	walCheck := h.checkWAL()
	if walCheck["status"] != "ok" {
		if overallStatus != statusFail {
			overallStatus = "degraded"
		}
	}

	// Проверка индекса
	indexCheck := map[string]any{"status": "ok"}
	if h.idx != nil && !h.idx.IsReady() {
		indexCheck["status"] = statusFail
		indexCheck["message"] = "Индекс не построен"
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "data-catalog",
		"checks": map[string]any{
			"filesystem": fsCheck,
			"wal":        walCheck,
			"index":      indexCheck,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkFilesystem проверяет доступность директории метаданных на запись.
func (h *HealthHandler) checkFilesystem() map[string]any {
	if h.dataDir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(h.dataDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория данных недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}

// checkWAL проверяет доступность директории WAL на запись.
func (h *HealthHandler) checkWAL() map[string]any {
	if h.walDir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(h.walDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория WAL недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
