// notifications.go — HTTP handlers настроек e-mail уведомлений.
// Доступ либо по паре email+auth ключ из письма, либо по email claim
// аутентифицированного вызывающего.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/api/middleware"
	"github.com/bigkaa/godatacatalog/internal/service"
)

// NotificationsHandler — обработчик настроек уведомлений.
type NotificationsHandler struct {
	svc *service.NotificationService
}

// NewNotificationsHandler создаёт обработчик настроек уведомлений.
func NewNotificationsHandler(svc *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{svc: svc}
}

// Get обрабатывает GET /api/v1/notification-setting?email=&auth=.
func (h *NotificationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	q := r.URL.Query()

	setting, err := h.svc.Get(q.Get("email"), q.Get("auth"), caller)
	if err != nil {
		writeServiceError(w, err, caller)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

// setRequest — тело POST /api/v1/notification-setting.
type setRequest struct {
	Email   string `json:"email,omitempty"`
	Auth    string `json:"auth,omitempty"`
	Enabled bool   `json:"enabled"`
}

// Set обрабатывает POST /api/v1/notification-setting.
func (h *NotificationsHandler) Set(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	var req setRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Set(req.Email, req.Auth, req.Enabled, caller); err != nil {
		writeServiceError(w, err, caller)
		return
	}
	apierrors.WriteSuccess(w, "")
}
