// localcatalogs.go — HTTP handlers регистраций локальных каталогов.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/api/middleware"
	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/mode"
	"github.com/bigkaa/godatacatalog/internal/service"
)

// LocalCatalogsHandler — обработчик endpoints локальных каталогов.
type LocalCatalogsHandler struct {
	svc    *service.LocalCatalogService
	search *service.SearchService
	sm     *mode.StateMachine
}

// NewLocalCatalogsHandler создаёт обработчик локальных каталогов.
func NewLocalCatalogsHandler(svc *service.LocalCatalogService, search *service.SearchService, sm *mode.StateMachine) *LocalCatalogsHandler {
	return &LocalCatalogsHandler{svc: svc, search: search, sm: sm}
}

// Create обрабатывает POST /api/v1/local-catalogs.
func (h *LocalCatalogsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpWrite) {
		apierrors.ModeNotAllowed(w, "Запись недоступна в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	var doc dcat.Catalog
	if !decodeJSON(w, r, &doc) {
		return
	}

	id, err := h.svc.Create(&doc, caller)
	if err != nil {
		writeServiceError(w, err, caller)
		return
	}
	apierrors.WriteSuccess(w, id.String())
}

// Update обрабатывает PUT /api/v1/local-catalogs/{id}.
func (h *LocalCatalogsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpWrite) {
		apierrors.ModeNotAllowed(w, "Запись недоступна в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var doc dcat.Catalog
	if !decodeJSON(w, r, &doc) {
		return
	}

	if err := h.svc.Update(id, &doc, caller); err != nil {
		writeServiceError(w, err, caller)
		return
	}
	apierrors.WriteSuccess(w, id.String())
}

// Delete обрабатывает DELETE /api/v1/local-catalogs/{id}.
func (h *LocalCatalogsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Get обрабатывает GET /api/v1/local-catalogs/{id}.
func (h *LocalCatalogsHandler) Get(w http.ResponseWriter, r *http.Request) {
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

// Search обрабатывает POST /api/v1/local-catalogs/search.
func (h *LocalCatalogsHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpSearch) {
		apierrors.ModeNotAllowed(w, "Поиск недоступен в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	var req service.SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.search.LocalCatalogs(req, caller))
}
