// Пакет model — доменные модели каталога открытых данных.
// FileMetadata — единая структура метаданных записи каталога, используется
// как in-memory представление и как формат attr.json на диске.
package model

import (
	"time"

	"github.com/google/uuid"
)

// FileType — тип записи в хранилище каталога.
type FileType string

const (
	// TypeDatasetRegistration — регистрация датасета (DCAT Dataset)
	TypeDatasetRegistration FileType = "dataset_registration"
	// TypeDistributionRegistration — регистрация дистрибуции (DCAT Distribution)
	TypeDistributionRegistration FileType = "distribution_registration"
	// TypePublisherRegistration — регистрация поставщика данных (FOAF Agent)
	TypePublisherRegistration FileType = "publisher_registration"
	// TypeLocalCatalogRegistration — регистрация локального каталога (DCAT Catalog)
	TypeLocalCatalogRegistration FileType = "local_catalog_registration"
	// TypeDistributionFile — загруженный файл данных дистрибуции
	TypeDistributionFile FileType = "distribution_file"
	// TypeCodelist — документ кодлиста (контролируемый словарь)
	TypeCodelist FileType = "codelist"
)

// KnownFileTypes — закрытый список допустимых типов записей.
var KnownFileTypes = []FileType{
	TypeDatasetRegistration,
	TypeDistributionRegistration,
	TypePublisherRegistration,
	TypeLocalCatalogRegistration,
	TypeDistributionFile,
	TypeCodelist,
}

// IsKnown проверяет, что тип входит в закрытый список.
func (t FileType) IsKnown() bool {
	for _, k := range KnownFileTypes {
		if t == k {
			return true
		}
	}
	return false
}

// ExpectedParentType возвращает ожидаемый тип родительской записи.
// Пустая строка — родитель не допускается.
func (t FileType) ExpectedParentType() FileType {
	switch t {
	case TypeDistributionRegistration:
		return TypeDatasetRegistration
	case TypeDistributionFile:
		return TypeDistributionRegistration
	default:
		return ""
	}
}

// LanguageMap — отображение «код языка → текст».
// Пример: {"sk": "Názov", "en": "Title"}.
type LanguageMap map[string]string

// DefaultLanguage — язык по умолчанию для обязательных полей.
const DefaultLanguage = "sk"

// Get возвращает значение для языка с fallback на язык по умолчанию.
func (m LanguageMap) Get(language string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[language]; ok && v != "" {
		return v
	}
	return m[DefaultLanguage]
}

// HasDefault проверяет наличие непустого значения для языка по умолчанию.
func (m LanguageMap) HasDefault() bool {
	return m != nil && m[DefaultLanguage] != ""
}

// Trimmed возвращает копию без пустых значений (нормализация при сохранении).
func (m LanguageMap) Trimmed() LanguageMap {
	if m == nil {
		return nil
	}
	result := make(LanguageMap, len(m))
	for lang, v := range m {
		if v != "" {
			result[lang] = v
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// AdditionalValueFormat — ключ AdditionalValues для агрегата форматов
// дистрибуций на записи датасета.
const AdditionalValueFormat = "format"

// FileMetadata — метаданные записи каталога. Соответствует содержимому attr.json.
// Immutable value: при каждом изменении запись заменяется целиком,
// Id и Created переносятся из предыдущей версии (copy-forward).
type FileMetadata struct {
	// Id — уникальный идентификатор записи (UUID v4), назначается при создании
	Id uuid.UUID `json:"id"`

	// Type — тип записи
	Type FileType `json:"type"`

	// ParentFile — идентификатор родительской записи.
	// Дистрибуция указывает на датасет, файл — на дистрибуцию.
	// nil для датасетов, поставщиков, локальных каталогов и кодлистов.
	ParentFile *uuid.UUID `json:"parent_file,omitempty"`

	// Publisher — URI поставщика-владельца записи.
	// nil только для анонимных записей (кодлисты).
	Publisher *string `json:"publisher,omitempty"`

	// IsPublic — текущая видимость записи. Отличается от желаемой
	// публичности содержимого (ShouldBePublic в документе датасета),
	// пересчитывается при каждом сохранении.
	IsPublic bool `json:"is_public"`

	// Name — отображаемое имя по языкам
	Name LanguageMap `json:"name,omitempty"`

	// OriginalFileName — оригинальное имя загруженного файла
	// (только для distribution_file)
	OriginalFileName *string `json:"original_file_name,omitempty"`

	// AdditionalValues — накопленные производные значения для фасетов,
	// например агрегат форматов дистрибуций на записи датасета.
	AdditionalValues map[string][]string `json:"additional_values,omitempty"`

	// Created — момент первой вставки, не меняется при изменениях
	Created time.Time `json:"created"`

	// LastModified — момент последней записи
	LastModified time.Time `json:"last_modified"`
}

// FileState — запись целиком: метаданные + сериализованное содержимое.
// Content — JSON-документ DCAT (датасет/дистрибуция/каталог/агент),
// документ кодлиста или сырые байты для distribution_file.
type FileState struct {
	Metadata *FileMetadata `json:"metadata"`
	Content  []byte        `json:"content,omitempty"`
}

// CopyForward возвращает новую версию метаданных для замены существующей:
// Id и Created копируются из prev, LastModified устанавливается в now.
func (m FileMetadata) CopyForward(prev *FileMetadata, now time.Time) FileMetadata {
	m.Id = prev.Id
	m.Created = prev.Created
	m.LastModified = now
	return m
}

// PublisherURI возвращает URI поставщика или пустую строку.
func (m *FileMetadata) PublisherURI() string {
	if m.Publisher == nil {
		return ""
	}
	return *m.Publisher
}

// IsRegistration проверяет, что запись — одна из регистраций
// (а не физический файл и не кодлист).
func (m *FileMetadata) IsRegistration() bool {
	switch m.Type {
	case TypeDatasetRegistration, TypeDistributionRegistration,
		TypePublisherRegistration, TypeLocalCatalogRegistration:
		return true
	default:
		return false
	}
}
