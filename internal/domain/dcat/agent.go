// agent.go — документ поставщика данных (FOAF Agent).
package dcat

import (
	"encoding/json"
	"fmt"

	"github.com/bigkaa/godatacatalog/internal/domain/model"
)

// Agent — документ поставщика данных. URI агента — владеющий
// Publisher URI всех записей этого поставщика.
type Agent struct {
	Type string            `json:"@type"`
	URI  string            `json:"@id"`
	Name model.LanguageMap `json:"foaf:name"`

	// HomePage — сайт поставщика
	HomePage string `json:"foaf:homepage,omitempty"`
	// LegalForm — правовая форма из кодлиста legal-form
	LegalForm string `json:"legalForm,omitempty"`
	// Email — контактный email
	Email string `json:"vcard:hasEmail,omitempty"`
	// Phone — контактный телефон
	Phone string `json:"vcard:hasTelephone,omitempty"`

	// ShouldBePublic — активен ли поставщик в публичном каталоге
	ShouldBePublic bool `json:"shouldBePublic"`
}

// ParseAgent десериализует документ поставщика и проверяет @type.
func ParseAgent(content []byte) (*Agent, error) {
	var a Agent
	if err := json.Unmarshal(content, &a); err != nil {
		return nil, fmt.Errorf("ошибка десериализации документа поставщика: %w", err)
	}
	if a.Type != TypeAgent {
		return nil, fmt.Errorf("неожиданный @type документа: %q, ожидался %q", a.Type, TypeAgent)
	}
	return &a, nil
}

// Serialize сериализует документ поставщика в JSON.
func (a *Agent) Serialize() ([]byte, error) {
	a.Type = TypeAgent
	data, err := json.Marshal(withContext[Agent]{Context: Context, Doc: *a})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации документа поставщика: %w", err)
	}
	return data, nil
}
