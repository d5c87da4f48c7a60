// Пакет errors — конструкторы стандартных HTTP-ошибок каталога.
//
// Два формата ответов:
//   - ошибки валидации (400): {"success": false, "id": null,
//     "errors": {"поле": "сообщение"}} — ключ "generic" для
//     бизнес-ошибок, не привязанных к полю;
//   - транспортные ошибки (401/403/404/409/...):
//     {"error": {"code": "...", "message": "..."}}.
package errors //nolint:revive // конфликт имени со stdlib унаследован

import (
	"encoding/json"
	"net/http"
)

// GenericField — ключ бизнес-ошибки, не привязанной к конкретному полю.
const GenericField = "generic"

// Коды транспортных ошибок, определённые в OpenAPI контракте.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeModeNotAllowed       = "MODE_NOT_ALLOWED"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeStorageFull          = "STORAGE_FULL"
	CodeReconcileInProgress  = "RECONCILE_IN_PROGRESS"
	CodeInternalError        = "INTERNAL_ERROR"
)

// validationBody — тело ответа 400 с ошибками валидации.
type validationBody struct {
	Success bool              `json:"success"`
	Id      *string           `json:"id"`
	Errors  map[string]string `json:"errors"`
}

// successBody — тело успешного ответа операции записи.
type successBody struct {
	Success bool   `json:"success"`
	Id      string `json:"id"`
}

// errorBody — тело транспортной ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteValidation записывает ответ 400 с собранными ошибками полей.
func WriteValidation(w http.ResponseWriter, fieldErrors map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(validationBody{
		Success: false,
		Id:      nil,
		Errors:  fieldErrors,
	})
}

// WriteGeneric записывает ответ 400 с одной бизнес-ошибкой
// под ключом "generic".
func WriteGeneric(w http.ResponseWriter, message string) {
	WriteValidation(w, map[string]string{GenericField: message})
}

// WriteSuccess записывает успешный ответ операции записи:
// {"success": true, "id": "..."}.
func WriteSuccess(w http.ResponseWriter, id string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(successBody{Success: true, Id: id})
}

// WriteError записывает транспортную ошибку в стандартном формате.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// NotFound — 404 запись не найдена или не видна вызывающему.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// ModeNotAllowed — 409 операция недоступна в текущем режиме каталога.
func ModeNotAllowed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeModeNotAllowed, message)
}

// InvalidTransition — 409 недопустимый переход между режимами.
func InvalidTransition(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeInvalidTransition, message)
}

// ConfirmationRequired — 409 переход требует подтверждения.
func ConfirmationRequired(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConfirmationRequired, message)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// StorageFull — 507 нет свободного места.
func StorageFull(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInsufficientStorage, CodeStorageFull, message)
}

// ReconcileInProgress — 409 сверка уже выполняется.
func ReconcileInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeReconcileInProgress, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
