// publishers.go — HTTP handlers поставщиков данных.
// PUT /publishers/{id} — только суперадмин; /registration и /profile —
// самообслуживание; /publishers/impersonate — выпуск токенов
// от имени поставщика.
package handlers

import (
	"net/http"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/api/middleware"
	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/mode"
	"github.com/bigkaa/godatacatalog/internal/service"
)

// PublishersHandler — обработчик endpoints поставщиков.
type PublishersHandler struct {
	svc    *service.PublisherService
	search *service.SearchService
	sm     *mode.StateMachine
}

// NewPublishersHandler создаёт обработчик поставщиков.
func NewPublishersHandler(svc *service.PublisherService, search *service.SearchService, sm *mode.StateMachine) *PublishersHandler {
	return &PublishersHandler{svc: svc, search: search, sm: sm}
}

// Create обрабатывает POST /api/v1/publishers.
func (h *PublishersHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpWrite) {
		apierrors.ModeNotAllowed(w, "Запись недоступна в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	var doc dcat.Agent
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

// Update обрабатывает PUT /api/v1/publishers/{id}. Только суперадмин.
func (h *PublishersHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpWrite) {
		apierrors.ModeNotAllowed(w, "Запись недоступна в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var doc dcat.Agent
	if !decodeJSON(w, r, &doc) {
		return
	}

	if err := h.svc.Update(id, &doc, caller); err != nil {
		writeServiceError(w, err, caller)
		return
	}
	apierrors.WriteSuccess(w, id.String())
}

// Get обрабатывает GET /api/v1/publishers/{id}.
func (h *PublishersHandler) Get(w http.ResponseWriter, r *http.Request) {
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

// Search обрабатывает POST /api/v1/publishers/search.
func (h *PublishersHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpSearch) {
		apierrors.ModeNotAllowed(w, "Поиск недоступен в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	var req service.SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.search.Publishers(req, caller))
}

// Register обрабатывает POST /api/v1/registration.
// Самообслуживание: аутентифицированный пользователь регистрирует
// поставщика своего publisher claim.
func (h *PublishersHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpWrite) {
		apierrors.ModeNotAllowed(w, "Запись недоступна в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	var doc dcat.Agent
	if !decodeJSON(w, r, &doc) {
		return
	}

	id, err := h.svc.Register(&doc, caller)
	if err != nil {
		writeServiceError(w, err, caller)
		return
	}
	apierrors.WriteSuccess(w, id.String())
}

// UpdateProfile обрабатывает PUT /api/v1/profile.
// Заменяет запись поставщика вызывающего.
func (h *PublishersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if !h.sm.CanPerform(mode.OpWrite) {
		apierrors.ModeNotAllowed(w, "Запись недоступна в режиме "+string(h.sm.CurrentMode()))
		return
	}
	caller := middleware.CallerFromContext(r.Context())

	var doc dcat.Agent
	if !decodeJSON(w, r, &doc) {
		return
	}

	if err := h.svc.UpdateProfile(&doc, caller); err != nil {
		writeServiceError(w, err, caller)
		return
	}
	apierrors.WriteSuccess(w, "")
}

// GetProfile обрабатывает GET /api/v1/profile.
func (h *PublishersHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	if !caller.IsAuthenticated() || caller.Publisher == "" {
		apierrors.Unauthorized(w, "Требуется аутентификация с publisher claim")
		return
	}

	id := h.svc.FindByURI(caller.Publisher)
	if id == uuid.Nil {
		apierrors.NotFound(w, "Поставщик не зарегистрирован")
		return
	}

	doc, meta, err := h.svc.Get(id, caller)
	if err != nil {
		writeServiceError(w, err, caller)
		return
	}
	writeJSON(w, http.StatusOK, newRecordResponse(meta, doc))
}

// impersonateRequest — тело POST /api/v1/publishers/impersonate.
type impersonateRequest struct {
	PublisherId string `json:"publisherId"`
}

// Impersonate обрабатывает POST /api/v1/publishers/impersonate.
// Только суперадмин: выпускает пару токенов от имени поставщика.
func (h *PublishersHandler) Impersonate(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	var req impersonateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := uuid.Parse(req.PublisherId)
	if err != nil {
		apierrors.NotFound(w, "Поставщик не найден")
		return
	}

	pair, err := h.svc.Impersonate(id, caller)
	if err != nil {
		writeServiceError(w, err, caller)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}
