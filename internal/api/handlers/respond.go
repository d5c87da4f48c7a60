// respond.go — общие помощники HTTP-обработчиков: декодирование тел,
// разбор идентификаторов и отображение ошибок сервисного слоя
// в ответы API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
	"github.com/bigkaa/godatacatalog/internal/service"
)

// writeJSON сериализует ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON читает тело запроса в dst. При ошибке пишет
// validation-ответ и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.WriteGeneric(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}

// pathID разбирает URL-параметр id. При ошибке пишет 404 и
// возвращает false: невалидный идентификатор неотличим от
// отсутствующей записи.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		apierrors.NotFound(w, "Запись не найдена")
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
//
// Ошибки валидации — envelope {success:false, errors}; ErrForbidden
// для анонима — 401, для аутентифицированного — 403; ErrNotFound — 404.
func writeServiceError(w http.ResponseWriter, err error, caller policy.Caller) {
	if v, ok := service.AsValidation(err); ok {
		apierrors.WriteValidation(w, v)
		return
	}

	switch {
	case err == nil:
		return
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Запись не найдена")
	case errors.Is(err, service.ErrForbidden):
		if !caller.IsAuthenticated() {
			apierrors.Unauthorized(w, "Требуется аутентификация")
			return
		}
		apierrors.Forbidden(w, "Недостаточно прав для операции")
	default:
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
