// codelist.go — документ кодлиста (контролируемый словарь значений).
package dcat

import (
	"encoding/json"
	"fmt"

	"github.com/bigkaa/godatacatalog/internal/domain/model"
)

// Идентификаторы кодлистов, на которые ссылаются валидаторы регистраций.
const (
	CodelistTheme             = "data-theme"
	CodelistEuroVoc           = "eurovoc"
	CodelistFrequency         = "frequency"
	CodelistDatasetType       = "dataset-type"
	CodelistPlace             = "place"
	CodelistFileType          = "file-type"
	CodelistMediaType         = "media-type"
	CodelistCatalogType       = "catalog-type"
	CodelistLegalForm         = "legal-form"
	CodelistHVDCategory       = "hvd-category"
	CodelistAuthorsWork       = "authors-work-type"
	CodelistOriginalDatabase  = "original-database-type"
	CodelistDatabaseProtected = "database-protected-by-special-rights-type"
	CodelistPersonalData      = "personal-data-containment-type"
)

// CodelistEntry — одно значение кодлиста: URI + подписи по языкам.
type CodelistEntry struct {
	URI   string            `json:"uri"`
	Label model.LanguageMap `json:"label,omitempty"`
}

// Codelist — документ кодлиста. Заменяется целиком при обновлении
// (PUT /codelists загружает новый документ полностью).
type Codelist struct {
	Id      string          `json:"id"`
	Entries []CodelistEntry `json:"entries"`
}

// ParseCodelist десериализует документ кодлиста и проверяет идентификатор.
func ParseCodelist(content []byte) (*Codelist, error) {
	var c Codelist
	if err := json.Unmarshal(content, &c); err != nil {
		return nil, fmt.Errorf("ошибка десериализации документа кодлиста: %w", err)
	}
	if c.Id == "" {
		return nil, fmt.Errorf("документ кодлиста не содержит идентификатор")
	}
	return &c, nil
}

// Serialize сериализует документ кодлиста в JSON.
func (c *Codelist) Serialize() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации документа кодлиста: %w", err)
	}
	return data, nil
}

// Contains проверяет наличие значения в кодлисте.
func (c *Codelist) Contains(uri string) bool {
	for _, e := range c.Entries {
		if e.URI == uri {
			return true
		}
	}
	return false
}

// Label возвращает подпись значения для языка (с fallback на язык
// по умолчанию) или сам URI, если значение не найдено.
func (c *Codelist) Label(uri, language string) string {
	for _, e := range c.Entries {
		if e.URI == uri {
			if label := e.Label.Get(language); label != "" {
				return label
			}
			return uri
		}
	}
	return uri
}
