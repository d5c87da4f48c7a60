// catalog.go — документ локального каталога DCAT.
package dcat

import (
	"encoding/json"
	"fmt"

	"github.com/bigkaa/godatacatalog/internal/domain/model"
)

// Catalog — документ локального каталога DCAT: внешний каталог
// поставщика, датасеты которого харвестятся в национальный каталог.
type Catalog struct {
	Type        string            `json:"@type"`
	Title       model.LanguageMap `json:"dct:title"`
	Description model.LanguageMap `json:"dct:description,omitempty"`

	// HomePage — домашняя страница каталога
	HomePage string `json:"foaf:homepage,omitempty"`
	// EndpointURL — endpoint для харвестинга (SPARQL или DCAT-дамп)
	EndpointURL string `json:"dcat:endpointURL,omitempty"`
	// CatalogType — тип источника из кодлиста catalog-type
	CatalogType string `json:"dct:type,omitempty"`

	// ShouldBePublic — желаемая публичность записи каталога
	ShouldBePublic bool `json:"shouldBePublic"`
}

// ParseCatalog десериализует документ каталога и проверяет @type.
func ParseCatalog(content []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(content, &c); err != nil {
		return nil, fmt.Errorf("ошибка десериализации документа каталога: %w", err)
	}
	if c.Type != TypeCatalog {
		return nil, fmt.Errorf("неожиданный @type документа: %q, ожидался %q", c.Type, TypeCatalog)
	}
	return &c, nil
}

// Serialize сериализует документ каталога в JSON.
func (c *Catalog) Serialize() ([]byte, error) {
	c.Type = TypeCatalog
	data, err := json.Marshal(withContext[Catalog]{Context: Context, Doc: *c})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации документа каталога: %w", err)
	}
	return data, nil
}
