// datasets.go — HTTP handlers регистраций датасетов.
// Create, Update, Delete, Get, Search.
package handlers

import (
	"net/http"
	"time"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/api/middleware"
	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/mode"
	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/service"
)

// recordResponse — envelope чтения записи: метаданные + документ.
type recordResponse struct {
	Id           string         `json:"id"`
	Type         model.FileType `json:"type"`
	IsPublic     bool           `json:"isPublic"`
	Created      string         `json:"created"`
	LastModified string         `json:"lastModified"`
	Document     any            `json:"document"`
}

func newRecordResponse(meta *model.FileMetadata, doc any) recordResponse {
	return recordResponse{
		Id:           meta.Id.String(),
		Type:         meta.Type,
		IsPublic:     meta.IsPublic,
		Created:      meta.Created.UTC().Format(time.RFC3339),
		LastModified: meta.LastModified.UTC().Format(time.RFC3339),
		Document:     doc,
	}
}

// DatasetsHandler — обработчик endpoints датасетов.
type DatasetsHandler struct {
	svc    *service.DatasetService
	search *service.SearchService
	sm     *mode.StateMachine
}

// NewDatasetsHandler создаёт обработчик датасетов.
func NewDatasetsHandler(svc *service.DatasetService, search *service.SearchService, sm *mode.StateMachine) *DatasetsHandler {
	return &DatasetsHandler{svc: svc, search: search, sm: sm}
}

// Create обрабатывает POST /api/v1/datasets.
func (h *DatasetsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpWrite) {
		apierrors.ModeNotAllowed(w, "Запись недоступна в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	var doc dcat.Dataset
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

// Update обрабатывает PUT /api/v1/datasets/{id}.
func (h *DatasetsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpWrite) {
		apierrors.ModeNotAllowed(w, "Запись недоступна в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var doc dcat.Dataset
	if !decodeJSON(w, r, &doc) {
		return
	}

	if err := h.svc.Update(id, &doc, caller); err != nil {
		writeServiceError(w, err, caller)
		return
	}
	apierrors.WriteSuccess(w, id.String())
}

// Delete обрабатывает DELETE /api/v1/datasets/{id}.
// Удаление идемпотентно: отсутствующая запись — тоже успех.
func (h *DatasetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Get обрабатывает GET /api/v1/datasets/{id}.
func (h *DatasetsHandler) Get(w http.ResponseWriter, r *http.Request) {
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

// Search обрабатывает POST /api/v1/datasets/search.
func (h *DatasetsHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpSearch) {
		apierrors.ModeNotAllowed(w, "Поиск недоступен в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	var req service.SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.search.Datasets(req, caller))
}
