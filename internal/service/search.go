// search.go — поисковый сервис поверх индекса.
//
// Тонкий слой: переводит поисковый запрос API в запрос индекса,
// ограничивая типы записей по искомой сущности, и проецирует
// результаты в ответ API.
package service

import (
	"log/slog"
	"time"

	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
	"github.com/bigkaa/godatacatalog/internal/storage/engine"
	"github.com/bigkaa/godatacatalog/internal/storage/index"
)

// SearchRequest — поисковый запрос API.
type SearchRequest struct {
	QueryText      string              `json:"queryText,omitempty"`
	Filters        map[string][]string `json:"filters,omitempty"`
	OrderBy        string              `json:"orderBy,omitempty"`
	Language       string              `json:"language,omitempty"`
	Page           int                 `json:"page,omitempty"`
	PageSize       int                 `json:"pageSize,omitempty"`
	RequiredFacets []string            `json:"requiredFacets,omitempty"`
}

// SearchItem — запись в результатах поиска.
type SearchItem struct {
	Id           string            `json:"id"`
	Type         model.FileType    `json:"type"`
	Name         string            `json:"name"`
	Publisher    string            `json:"publisher,omitempty"`
	IsPublic     bool              `json:"isPublic"`
	LastModified string            `json:"lastModified"`
	Names        model.LanguageMap `json:"names,omitempty"`
}

// SearchResponse — результат поиска API.
type SearchResponse struct {
	Items      []SearchItem  `json:"items"`
	TotalCount int           `json:"totalCount"`
	Facets     []index.Facet `json:"facets,omitempty"`
}

// SearchService — поиск по записям каталога.
type SearchService struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// NewSearchService создаёт поисковый сервис.
func NewSearchService(eng *engine.Engine, logger *slog.Logger) *SearchService {
	return &SearchService{
		eng:    eng,
		logger: logger.With(slog.String("component", "search")),
	}
}

// Datasets ищет по регистрациям датасетов.
func (s *SearchService) Datasets(req SearchRequest, caller policy.Caller) SearchResponse {
	return s.search(req, caller, model.TypeDatasetRegistration)
}

// Publishers ищет по регистрациям поставщиков.
func (s *SearchService) Publishers(req SearchRequest, caller policy.Caller) SearchResponse {
	return s.search(req, caller, model.TypePublisherRegistration)
}

// LocalCatalogs ищет по регистрациям локальных каталогов.
func (s *SearchService) LocalCatalogs(req SearchRequest, caller policy.Caller) SearchResponse {
	return s.search(req, caller, model.TypeLocalCatalogRegistration)
}

// search выполняет запрос с ограничением по типу записи.
func (s *SearchService) search(req SearchRequest, caller policy.Caller, types ...model.FileType) SearchResponse {
	language := req.Language
	if language == "" {
		language = model.DefaultLanguage
	}

	result := s.eng.List(index.Query{
		QueryText:      req.QueryText,
		OnlyTypes:      types,
		Filters:        req.Filters,
		OrderBy:        req.OrderBy,
		Language:       language,
		Page:           req.Page,
		PageSize:       req.PageSize,
		RequiredFacets: req.RequiredFacets,
	}, caller.Policy())

	items := make([]SearchItem, 0, len(result.Items))
	for _, meta := range result.Items {
		items = append(items, SearchItem{
			Id:           meta.Id.String(),
			Type:         meta.Type,
			Name:         meta.Name.Get(language),
			Publisher:    meta.PublisherURI(),
			IsPublic:     meta.IsPublic,
			LastModified: meta.LastModified.UTC().Format(time.RFC3339),
			Names:        meta.Name,
		})
	}

	return SearchResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Facets:     result.Facets,
	}
}
