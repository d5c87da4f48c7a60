// mode.go — обработчик POST /api/v1/mode.
// Смена режима работы каталога (normal / readonly / maintenance).
// Переход readonly → normal требует confirm (окно харвестинга).
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/api/middleware"
	"github.com/bigkaa/godatacatalog/internal/domain/mode"
)

// ModePersister — интерфейс для сохранения режима (переживает рестарт).
type ModePersister interface {
	SaveMode(m mode.CatalogMode) error
}

// ModeHandler — обработчик endpoint смены режима.
type ModeHandler struct {
	sm            *mode.StateMachine
	logger        *slog.Logger
	modePersister ModePersister
}

// NewModeHandler создаёт обработчик смены режима.
// modePersister может быть nil — режим живёт только в памяти.
func NewModeHandler(sm *mode.StateMachine, logger *slog.Logger, modePersister ModePersister) *ModeHandler {
	return &ModeHandler{
		sm:            sm,
		logger:        logger.With(slog.String("component", "mode_handler")),
		modePersister: modePersister,
	}
}

// modeTransitionRequest — тело POST /api/v1/mode.
type modeTransitionRequest struct {
	TargetMode string `json:"targetMode"`
	Confirm    *bool  `json:"confirm,omitempty"`
}

// modeTransitionResponse — тело ответа смены режима.
type modeTransitionResponse struct {
	PreviousMode   mode.CatalogMode `json:"previousMode"`
	CurrentMode    mode.CatalogMode `json:"currentMode"`
	TransitionedAt time.Time        `json:"transitionedAt"`
}

// TransitionMode обрабатывает POST /api/v1/mode. Только суперадмин.
func (h *ModeHandler) TransitionMode(w http.ResponseWriter, r *http.Request) {
	var req modeTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteGeneric(w, "Некорректный JSON: "+err.Error())
		return
	}

	subject := middleware.CallerFromContext(r.Context()).Subject
	targetMode := mode.CatalogMode(req.TargetMode)
	previousMode := h.sm.CurrentMode()

	confirm := false
	if req.Confirm != nil {
		confirm = *req.Confirm
	}

	err := h.sm.TransitionTo(targetMode, confirm, subject)
	if err != nil {
		if transErr, ok := err.(*mode.TransitionError); ok {
			switch transErr.Code {
			case "CONFIRMATION_REQUIRED":
				apierrors.ConfirmationRequired(w, transErr.Message)
			default:
				apierrors.InvalidTransition(w, transErr.Message)
			}
			return
		}
		apierrors.InternalError(w, "Ошибка смены режима")
		return
	}

	// Сохраняем режим на диск, чтобы он пережил рестарт
	if h.modePersister != nil {
		if persistErr := h.modePersister.SaveMode(targetMode); persistErr != nil {
			h.logger.Error("Ошибка сохранения режима",
				slog.String("error", persistErr.Error()),
			)
			// Режим уже изменён в памяти — не откатываем, но логируем
		}
	}

	now := time.Now().UTC()

	h.logger.Info("Режим изменён",
		slog.String("from", string(previousMode)),
		slog.String("to", string(targetMode)),
		slog.String("subject", subject),
		slog.Time("at", now),
	)

	writeJSON(w, http.StatusOK, modeTransitionResponse{
		PreviousMode:   previousMode,
		CurrentMode:    targetMode,
		TransitionedAt: now,
	})
}
