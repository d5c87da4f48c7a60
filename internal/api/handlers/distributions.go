// distributions.go — HTTP handlers дистрибуций датасетов.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/api/middleware"
	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/mode"
	"github.com/bigkaa/godatacatalog/internal/service"
)

// DistributionsHandler — обработчик endpoints дистрибуций.
type DistributionsHandler struct {
	svc *service.DistributionService
	sm  *mode.StateMachine
}

// NewDistributionsHandler создаёт обработчик дистрибуций.
func NewDistributionsHandler(svc *service.DistributionService, sm *mode.StateMachine) *DistributionsHandler {
	return &DistributionsHandler{svc: svc, sm: sm}
}

// Create обрабатывает POST /api/v1/datasets/{id}/distributions.
func (h *DistributionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpWrite) {
		apierrors.ModeNotAllowed(w, "Запись недоступна в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	datasetID, ok := pathID(w, r)
	if !ok {
		return
	}
	var doc dcat.Distribution
	if !decodeJSON(w, r, &doc) {
		return
	}

	id, err := h.svc.Create(datasetID, &doc, caller)
	if err != nil {
		writeServiceError(w, err, caller)
		return
	}
	apierrors.WriteSuccess(w, id.String())
}

// Update обрабатывает PUT /api/v1/distributions/{id}.
func (h *DistributionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpWrite) {
		apierrors.ModeNotAllowed(w, "Запись недоступна в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var doc dcat.Distribution
	if !decodeJSON(w, r, &doc) {
		return
	}

	if err := h.svc.Update(id, &doc, caller); err != nil {
		writeServiceError(w, err, caller)
		return
	}
	apierrors.WriteSuccess(w, id.String())
}

// Delete обрабатывает DELETE /api/v1/distributions/{id}.
func (h *DistributionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpDelete) {
		apierrors.ModeNotAllowed(w, "Удаление недоступно в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(id, caller); err != nil {
		writeServiceError(w, err, caller)
		return
	}
	apierrors.WriteSuccess(w, id.String())
}

// Get обрабатывает GET /api/v1/distributions/{id}.
func (h *DistributionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpRead) {
		apierrors.ModeNotAllowed(w, "Чтение недоступно в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	doc, meta, err := h.svc.Get(id, caller)
	if err != nil {
		writeServiceError(w, err, caller)
		return
	}
	writeJSON(w, http.StatusOK, newRecordResponse(meta, doc))
}
