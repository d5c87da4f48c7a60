// Пакет policy — политики доступа к записям каталога.
//
// Политика — предикат над метаданными записи: может ли вызывающий
// читать / изменять запись. Закрытый набор вариантов строится из
// контекста вызывающего (роль + publisher claim из JWT):
//
//   - Anonymous  — только чтение публичных записей
//   - Publisher  — чтение/запись записей своего поставщика,
//     чтение публичных записей остальных
//   - All        — суперадмин, без ограничений
//
// Хранилище применяет политику перед возвратом или изменением любой
// записи. Отказ политики на чтение всегда транслируется наружу
// как NotFound, а не Forbidden — существование скрытой записи
// не должно раскрываться.
package policy

import (
	"github.com/bigkaa/godatacatalog/internal/domain/model"
)

// Policy — предикат доступа к записи каталога.
type Policy interface {
	// CanRead — допустимо ли чтение записи.
	CanRead(meta *model.FileMetadata) bool
	// CanWrite — допустимо ли создание/изменение/удаление записи.
	CanWrite(meta *model.FileMetadata) bool
}

// anonymous — политика неаутентифицированного вызывающего.
type anonymous struct{}

// Anonymous возвращает политику анонимного доступа: только чтение
// публичных записей, запись запрещена.
func Anonymous() Policy {
	return anonymous{}
}

func (anonymous) CanRead(meta *model.FileMetadata) bool {
	return meta.IsPublic
}

func (anonymous) CanWrite(*model.FileMetadata) bool {
	return false
}

// publisher — политика аутентифицированного поставщика.
type publisher struct {
	uri string
}

// Publisher возвращает политику поставщика: собственные записи
// читаются и пишутся независимо от видимости, чужие — только
// публичные и только на чтение.
func Publisher(uri string) Policy {
	return publisher{uri: uri}
}

func (p publisher) CanRead(meta *model.FileMetadata) bool {
	if meta.IsPublic {
		return true
	}
	return p.owns(meta)
}

func (p publisher) CanWrite(meta *model.FileMetadata) bool {
	return p.owns(meta)
}

// owns проверяет принадлежность записи поставщику.
// Записи без владельца (кодлисты) поставщику не принадлежат.
func (p publisher) owns(meta *model.FileMetadata) bool {
	return p.uri != "" && meta.Publisher != nil && *meta.Publisher == p.uri
}

// all — политика суперадмина.
type all struct{}

// All возвращает политику без ограничений (суперадмин).
func All() Policy {
	return all{}
}

func (all) CanRead(*model.FileMetadata) bool  { return true }
func (all) CanWrite(*model.FileMetadata) bool { return true }
