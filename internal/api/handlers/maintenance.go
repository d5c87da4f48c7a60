// maintenance.go — обработчик POST /api/v1/maintenance/reconcile.
// Делегирует выверку хранилища в ReconcileService.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/service"
)

// ReconcileRunner — интерфейс для запуска выверки.
// Позволяет тестировать handler без полного ReconcileService.
type ReconcileRunner interface {
	// RunOnce выполняет один цикл выверки.
	// Возвращает результат и флаг "уже выполняется".
	RunOnce() (*service.ReconcileResponse, bool)
	// IsInProgress возвращает true, если выверка выполняется.
	IsInProgress() bool
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	reconciler ReconcileRunner
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(reconciler ReconcileRunner) *MaintenanceHandler {
	return &MaintenanceHandler{reconciler: reconciler}
}

// Reconcile обрабатывает POST /api/v1/maintenance/reconcile.
// Только суперадмин. Запускает синхронный цикл выверки и возвращает
// результат. Если выверка уже выполняется — 409 RECONCILE_IN_PROGRESS.
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, _ *http.Request) {
	if h.reconciler == nil {
		apierrors.InternalError(w, "Выверка не настроена")
		return
	}

	result, inProgress := h.reconciler.RunOnce()
	if inProgress {
		apierrors.ReconcileInProgress(w, "Выверка уже выполняется")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
