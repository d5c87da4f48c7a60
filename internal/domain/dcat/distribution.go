// distribution.go — документ дистрибуции DCAT.
package dcat

import (
	"encoding/json"
	"fmt"

	"github.com/bigkaa/godatacatalog/internal/domain/model"
)

// TermsOfUse — условия использования дистрибуции.
// Все подтипы лицензии — URI из соответствующих кодлистов.
type TermsOfUse struct {
	// AuthorsWorkType — тип авторского произведения
	AuthorsWorkType string `json:"authorsWorkType,omitempty"`
	// OriginalDatabaseType — тип оригинальной базы данных
	OriginalDatabaseType string `json:"originalDatabaseType,omitempty"`
	// DatabaseProtectedBySpecialRightsType — особые права на базу данных
	DatabaseProtectedBySpecialRightsType string `json:"databaseProtectedBySpecialRightsType,omitempty"`
	// PersonalDataContainmentType — наличие персональных данных
	PersonalDataContainmentType string `json:"personalDataContainmentType,omitempty"`
	// Author — автор произведения
	Author string `json:"author,omitempty"`
	// OriginalDatabaseAuthor — автор оригинальной базы данных
	OriginalDatabaseAuthor string `json:"originalDatabaseAuthor,omitempty"`
}

// Distribution — документ дистрибуции DCAT: конкретное скачиваемое
// представление датасета (файл или endpoint сервиса данных).
type Distribution struct {
	Type  string            `json:"@type"`
	Title model.LanguageMap `json:"dct:title,omitempty"`

	// Format — формат из кодлиста file-type
	Format string `json:"dct:format,omitempty"`
	// MediaType — IANA media type из кодлиста media-type
	MediaType string `json:"dcat:mediaType,omitempty"`
	// CompressFormat — формат сжатия (media type архива)
	CompressFormat string `json:"dcat:compressFormat,omitempty"`
	// PackageFormat — формат упаковки
	PackageFormat string `json:"dcat:packageFormat,omitempty"`

	// AccessURL — URL доступа к данным
	AccessURL string `json:"dcat:accessURL,omitempty"`
	// DownloadURL — прямой URL скачивания. Для файлов, загруженных
	// в каталог, указывает на /api/v1/download собственного хранилища.
	DownloadURL string `json:"dcat:downloadURL,omitempty"`
	// AccessService — endpoint сервиса данных (альтернатива файлу)
	AccessService string `json:"dcat:accessService,omitempty"`
	// ConformsTo — ссылка на схему данных
	ConformsTo string `json:"dct:conformsTo,omitempty"`

	// TermsOfUse — условия использования
	TermsOfUse *TermsOfUse `json:"termsOfUse,omitempty"`
}

// ParseDistribution десериализует документ дистрибуции и проверяет @type.
func ParseDistribution(content []byte) (*Distribution, error) {
	var d Distribution
	if err := json.Unmarshal(content, &d); err != nil {
		return nil, fmt.Errorf("ошибка десериализации документа дистрибуции: %w", err)
	}
	if d.Type != TypeDistribution {
		return nil, fmt.Errorf("неожиданный @type документа: %q, ожидался %q", d.Type, TypeDistribution)
	}
	return &d, nil
}

// Serialize сериализует документ дистрибуции в JSON.
func (d *Distribution) Serialize() ([]byte, error) {
	d.Type = TypeDistribution
	data, err := json.Marshal(withContext[Distribution]{Context: Context, Doc: *d})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации документа дистрибуции: %w", err)
	}
	return data, nil
}
