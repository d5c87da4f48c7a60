// Пакет service — прикладные сервисы каталога: регистрации
// (датасеты, дистрибуции, локальные каталоги, поставщики), кодлисты,
// поиск, загрузка и выгрузка файлов, уведомления и фоновые задачи
// (GC, reconcile, dephealth).
//
// Валидаторы собирают ВСЕ ошибки полей до возврата, а не
// останавливаются на первой — вызывающий видит все проблемы
// за один запрос.
package service

import (
	"errors"
	"sort"
	"strings"
)

// GenericField — ключ бизнес-ошибки, не привязанной к полю.
const GenericField = "generic"

// ErrNotFound — запись не существует или не видна вызывающему.
var ErrNotFound = errors.New("запись не найдена")

// ErrForbidden — операция запрещена для вызывающего.
var ErrForbidden = errors.New("операция запрещена")

// ValidationErrors — собранные ошибки валидации по полям.
// Реализует error, чтобы сервисы могли возвращать её как ошибку.
type ValidationErrors map[string]string

// Add добавляет ошибку поля. Первая ошибка поля сохраняется,
// последующие не затирают её.
func (v ValidationErrors) Add(field, message string) {
	if _, ok := v[field]; !ok {
		v[field] = message
	}
}

// AddGeneric добавляет бизнес-ошибку без привязки к полю.
func (v ValidationErrors) AddGeneric(message string) {
	v.Add(GenericField, message)
}

// OrNil возвращает nil, если ошибок нет — для прямого return.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Error реализует интерфейс error.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("ошибки валидации: ")
	for i, field := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(field)
		b.WriteString(": ")
		b.WriteString(v[field])
	}
	return b.String()
}

// Generic возвращает ValidationErrors с одной бизнес-ошибкой.
func Generic(message string) ValidationErrors {
	return ValidationErrors{GenericField: message}
}

// AsValidation извлекает ValidationErrors из цепочки ошибок.
func AsValidation(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
