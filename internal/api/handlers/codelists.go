// codelists.go — HTTP handlers кодлистов (контролируемых словарей).
// PUT /codelists — только суперадмин, заменяет словарь целиком.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/api/middleware"
	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/mode"
	"github.com/bigkaa/godatacatalog/internal/service"
)

// CodelistsHandler — обработчик endpoints кодлистов.
type CodelistsHandler struct {
	svc *service.CodelistService
	sm  *mode.StateMachine
}

// NewCodelistsHandler создаёт обработчик кодлистов.
func NewCodelistsHandler(svc *service.CodelistService, sm *mode.StateMachine) *CodelistsHandler {
	return &CodelistsHandler{svc: svc, sm: sm}
}

// Replace обрабатывает PUT /api/v1/codelists.
func (h *CodelistsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpWrite) {
		apierrors.ModeNotAllowed(w, "Запись недоступна в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	var doc dcat.Codelist
	if !decodeJSON(w, r, &doc) {
		return
	}

	id, err := h.svc.Replace(&doc, caller)
	if err != nil {
		writeServiceError(w, err, caller)
		return
	}
	apierrors.WriteSuccess(w, id.String())
}

// Get обрабатывает GET /api/v1/codelists/{id}.
// Кодлисты публичны: политика доступа не применяется.
func (h *CodelistsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpRead) {
		apierrors.ModeNotAllowed(w, "Чтение недоступно в режиме "+string(h.sm.CurrentMode()))
		return
	}

	id := chi.URLParam(r, "id")
	doc, err := h.svc.Get(id)
	if err != nil {
		writeServiceError(w, err, middleware.CallerFromContext(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
