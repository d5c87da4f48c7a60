// Пакет dcat — типизированные документы DCAT-AP каталога.
//
// Каждой сущности (Dataset, Distribution, Catalog, Agent, Codelist)
// соответствует структура с явными полями, отображаемыми в
// фиксированные ключи предикатов на границе сериализации.
// Триплетное представление RDF остаётся строго внутри внешней
// библиотеки графов; бизнес-логика работает только с этими типами.
//
// Content записи в хранилище — сериализованный JSON-документ
// соответствующего типа.
package dcat

import (
	"encoding/json"
	"fmt"

	"github.com/bigkaa/godatacatalog/internal/domain/model"
)

// Context — значение @context сериализованных документов.
const Context = "https://data.gov.sk/def/context/dcat-ap.jsonld"

// Типы документов (@type).
const (
	TypeDataset      = "dcat:Dataset"
	TypeDistribution = "dcat:Distribution"
	TypeCatalog      = "dcat:Catalog"
	TypeAgent        = "foaf:Agent"
)

// Temporal — временной охват датасета.
type Temporal struct {
	StartDate string `json:"dcat:startDate,omitempty"`
	EndDate   string `json:"dcat:endDate,omitempty"`
}

// ContactPoint — контактная точка датасета.
type ContactPoint struct {
	Name  model.LanguageMap `json:"vcard:fn,omitempty"`
	Email string            `json:"vcard:hasEmail,omitempty"`
}

// Dataset — документ датасета DCAT.
//
// Поля isSerie / isPartOf / isHarvested / shouldBePublic — внутренние
// флаги каталога, не предикаты словаря: они управляют жизненным циклом
// записи (серии, harvested-источники, желаемая публичность).
type Dataset struct {
	Type        string            `json:"@type"`
	Title       model.LanguageMap `json:"dct:title"`
	Description model.LanguageMap `json:"dct:description,omitempty"`

	// Themes — темы из кодлиста data-theme
	Themes []string `json:"dcat:theme,omitempty"`
	// EuroVocThemes — темы EuroVoc (дополнительная классификация)
	EuroVocThemes []string `json:"eurovoc:theme,omitempty"`
	// AccrualPeriodicity — периодичность обновления из кодлиста frequency
	AccrualPeriodicity string `json:"dct:accrualPeriodicity,omitempty"`
	// Keywords — ключевые слова по языкам
	Keywords map[string][]string `json:"dcat:keyword,omitempty"`
	// DatasetTypes — типы датасета из кодлиста dataset-type
	DatasetTypes []string `json:"dct:type,omitempty"`
	// Spatial — пространственный охват (URI из кодлиста place)
	Spatial []string `json:"dct:spatial,omitempty"`
	// Temporal — временной охват
	Temporal *Temporal `json:"dct:temporal,omitempty"`
	// ContactPoint — контактная точка
	ContactPoint *ContactPoint `json:"dcat:contactPoint,omitempty"`
	// Documentation — ссылка на документацию
	Documentation string `json:"foaf:page,omitempty"`
	// Specification — ссылка на спецификацию
	Specification string `json:"dct:conformsTo,omitempty"`
	// LandingPage — посадочная страница; уникальна в пределах каталога
	LandingPage string `json:"dcat:landingPage,omitempty"`

	// HVDCategory — категория High-Value Dataset (кодлист hvd-category)
	HVDCategory string `json:"dcatap:hvdCategory,omitempty"`
	// ApplicableLegislations — ссылки на применимое законодательство.
	// Обязательны при заполненной HVDCategory.
	ApplicableLegislations []string `json:"dcatap:applicableLegislation,omitempty"`

	// IsSerie — датасет является серией (родителем для isPartOf)
	IsSerie bool `json:"isSerie,omitempty"`
	// IsPartOf — идентификатор записи серии-родителя
	IsPartOf string `json:"isPartOf,omitempty"`
	// IsHarvested — запись получена харвестингом, локально не редактируется
	IsHarvested bool `json:"isHarvested,omitempty"`
	// ShouldBePublic — желаемая публичность; фактическая видимость
	// выводится хранилищем из этого флага и состояния дистрибуций
	ShouldBePublic bool `json:"shouldBePublic"`
}

// ParseDataset десериализует документ датасета и проверяет @type.
func ParseDataset(content []byte) (*Dataset, error) {
	var d Dataset
	if err := json.Unmarshal(content, &d); err != nil {
		return nil, fmt.Errorf("ошибка десериализации документа датасета: %w", err)
	}
	if d.Type != TypeDataset {
		return nil, fmt.Errorf("неожиданный @type документа: %q, ожидался %q", d.Type, TypeDataset)
	}
	return &d, nil
}

// Serialize сериализует документ датасета в JSON.
func (d *Dataset) Serialize() ([]byte, error) {
	d.Type = TypeDataset
	data, err := json.Marshal(withContext[Dataset]{Context: Context, Doc: *d})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации документа датасета: %w", err)
	}
	return data, nil
}

// withContext — обёртка, добавляющая @context при сериализации документа.
type withContext[T any] struct {
	Context string
	Doc     T
}

// MarshalJSON сериализует обёртку: @context + поля документа одним объектом.
// encoding/json не поддерживает inline-встраивание, поэтому объединяем вручную.
func (w withContext[T]) MarshalJSON() ([]byte, error) {
	inner, err := json.Marshal(w.Doc)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(inner, &fields); err != nil {
		return nil, err
	}
	ctx, _ := json.Marshal(w.Context)
	fields["@context"] = ctx
	return json.Marshal(fields)
}
