// Пакет index — потокобезопасный in-memory поисковый индекс метаданных.
//
// Индекс строится при старте из attr.json файлов (BuildFrom)
// и обновляется синхронно при операциях записи (Add, Remove).
// Обеспечивает текстовый поиск, фасетную фильтрацию, сортировку
// и пагинацию без обращения к диску.
//
// Не персистентный: при рестарте пересобирается из attr.json.
// Выпавшие обновления (неудачная переиндексация после успешной
// записи) устраняются периодическим reconcile.
package index

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/storage/attr"
)

// DefaultPageSize — размер страницы при pageSize <= 0.
// Одновременно жёсткий потолок «всех» результатов.
const DefaultPageSize = 10

// Идентификаторы фасетов.
const (
	FacetPublisher = "publishers"
	FacetFormat    = "format"
	FacetTheme     = "themes"
	FacetType      = "type"
)

// Ключи сортировки.
const (
	OrderByName     = "name"
	OrderByCreated  = "created"
	OrderByModified = "modified"
)

// Query — параметры поискового запроса.
type Query struct {
	// QueryText — текстовый запрос по имени; пустая строка = без ограничения.
	// Совпадение без учёта регистра и диакритики.
	QueryText string
	// OnlyTypes — ограничение по типам записей (nil = без ограничения)
	OnlyTypes []model.FileType
	// Filters — фасетные фильтры: OR внутри фасета, AND между фасетами.
	// Пустой список значений фасета = без ограничения.
	Filters map[string][]string
	// OrderBy — ключ сортировки (name, created, modified);
	// неизвестный или пустой ключ = по дате изменения, новые первые
	OrderBy string
	// Language — язык проекции и сортировки имён
	Language string
	// Page — номер страницы, начиная с 1
	Page int
	// PageSize — размер страницы; <= 0 означает DefaultPageSize
	PageSize int
	// RequiredFacets — фасеты, для которых нужно вернуть распределения.
	// Пустой список — фасеты не вычисляются.
	RequiredFacets []string
}

// Facet — распределение значений одного фасета.
type Facet struct {
	Id     string         `json:"id"`
	Values map[string]int `json:"values"`
}

// Result — результат поиска.
type Result struct {
	Items      []*model.FileMetadata
	TotalCount int
	Facets     []Facet
}

// Index — потокобезопасный in-memory индекс метаданных.
// Использует sync.RWMutex для конкурентного чтения и
// эксклюзивной записи.
type Index struct {
	mu     sync.RWMutex
	files  map[uuid.UUID]*model.FileMetadata
	ready  bool
	logger *slog.Logger
}

// New создаёт пустой индекс. Для заполнения вызовите BuildFrom.
func New(logger *slog.Logger) *Index {
	return &Index{
		files:  make(map[uuid.UUID]*model.FileMetadata),
		logger: logger.With(slog.String("component", "index")),
	}
}

// BuildFrom строит индекс из sidecar-хранилища метаданных.
// Вызывается при старте сервера и при reconcile. Заменяет текущее
// содержимое индекса. После успешного построения индекс помечается
// как ready.
func (idx *Index) BuildFrom(store *attr.Store) error {
	metadatas, err := store.ScanAll()
	if err != nil {
		return fmt.Errorf("ошибка сканирования хранилища метаданных: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.files = make(map[uuid.UUID]*model.FileMetadata, len(metadatas))
	for _, meta := range metadatas {
		idx.files[meta.Id] = meta
	}

	idx.ready = true

	idx.logger.Info("Поисковый индекс построен",
		slog.Int("records", len(idx.files)),
	)

	return nil
}

// IsReady возвращает true, если индекс построен и готов к использованию.
func (idx *Index) IsReady() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ready
}

// Add добавляет или заменяет метаданные записи в индексе.
func (idx *Index) Add(meta *model.FileMetadata) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Копия — защита от внешних изменений после добавления
	copied := *meta
	idx.files[meta.Id] = &copied
}

// Remove удаляет запись из индекса.
// Возвращает true, если запись была найдена и удалена.
func (idx *Index) Remove(id uuid.UUID) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.files[id]; !ok {
		return false
	}
	delete(idx.files, id)
	return true
}

// Get возвращает метаданные записи по идентификатору.
// Возвращает nil, если запись не найдена.
func (idx *Index) Get(id uuid.UUID) *model.FileMetadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	meta, ok := idx.files[id]
	if !ok {
		return nil
	}

	copied := *meta
	return &copied
}

// Count возвращает общее количество записей в индексе.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.files)
}

// CountByType возвращает количество записей каждого типа.
func (idx *Index) CountByType() map[model.FileType]int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make(map[model.FileType]int)
	for _, meta := range idx.files {
		result[meta.Type]++
	}
	return result
}

// Children возвращает записи, у которых ParentFile равен id.
func (idx *Index) Children(id uuid.UUID) []*model.FileMetadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var result []*model.FileMetadata
	for _, meta := range idx.files {
		if meta.ParentFile != nil && *meta.ParentFile == id {
			copied := *meta
			result = append(result, &copied)
		}
	}
	return result
}

// Search выполняет поисковый запрос.
//
// visible — предикат видимости (политика доступа вызывающего),
// применяется до всех остальных фильтров.
//
// Семантика:
//   - текстовый запрос: все токены должны входить в нормализованное
//     имя записи (любой язык), без учёта регистра и диакритики;
//   - фасеты: OR внутри фасета, AND между фасетами;
//   - распределения фасетов считаются по множеству ДО применения
//     фильтра собственного фасета (чтобы UI показывал счётчики
//     невыбранных значений);
//   - TotalCount не зависит от страницы.
func (idx *Index) Search(q Query, visible func(*model.FileMetadata) bool) Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	// Кандидаты: политика + тип + текстовый запрос
	tokens := queryTokens(q.QueryText)
	var candidates []*model.FileMetadata
	for _, meta := range idx.files {
		if visible != nil && !visible(meta) {
			continue
		}
		if !matchesType(meta, q.OnlyTypes) {
			continue
		}
		if !matchesText(meta, tokens) {
			continue
		}
		copied := *meta
		candidates = append(candidates, &copied)
	}

	// Распределения фасетов: по кандидатам, отфильтрованным всеми
	// фасетами, кроме собственного
	var facets []Facet
	for _, facetID := range q.RequiredFacets {
		values := make(map[string]int)
		for _, meta := range candidates {
			if !matchesFilters(meta, q.Filters, facetID) {
				continue
			}
			for _, v := range facetValues(meta, facetID) {
				values[v]++
			}
		}
		facets = append(facets, Facet{Id: facetID, Values: values})
	}

	// Итоговый отбор: все фасеты
	var matched []*model.FileMetadata
	for _, meta := range candidates {
		if matchesFilters(meta, q.Filters, "") {
			matched = append(matched, meta)
		}
	}

	sortItems(matched, q.OrderBy, q.Language)

	total := len(matched)
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	offset := (page - 1) * pageSize
	if offset >= total {
		return Result{Items: nil, TotalCount: total, Facets: facets}
	}
	end := offset + pageSize
	if end > total {
		end = total
	}

	return Result{Items: matched[offset:end], TotalCount: total, Facets: facets}
}

// matchesType проверяет вхождение типа записи в ограничение.
func matchesType(meta *model.FileMetadata, types []model.FileType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if meta.Type == t {
			return true
		}
	}
	return false
}

// matchesFilters проверяет запись против всех фасетных фильтров,
// кроме skipFacet (пустая строка — проверять все).
// OR внутри фасета, AND между фасетами; пустой список значений
// фасета означает «без ограничения».
func matchesFilters(meta *model.FileMetadata, filters map[string][]string, skipFacet string) bool {
	for facetID, wanted := range filters {
		if facetID == skipFacet || len(wanted) == 0 {
			continue
		}
		have := facetValues(meta, facetID)
		found := false
	outer:
		for _, w := range wanted {
			for _, h := range have {
				if h == w {
					found = true
					break outer
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// facetValues возвращает значения записи в измерении фасета.
func facetValues(meta *model.FileMetadata, facetID string) []string {
	switch facetID {
	case FacetPublisher:
		if meta.Publisher != nil {
			return []string{*meta.Publisher}
		}
		return nil
	case FacetType:
		return []string{string(meta.Type)}
	default:
		// Производные измерения (format, themes, ...) — из AdditionalValues
		return meta.AdditionalValues[facetID]
	}
}

// matchesText проверяет вхождение всех токенов запроса в
// нормализованное имя записи (по любому языку).
func matchesText(meta *model.FileMetadata, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	for _, name := range meta.Name {
		normalized := Normalize(name)
		all := true
		for _, token := range tokens {
			if !strings.Contains(normalized, token) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// queryTokens разбивает текстовый запрос на нормализованные токены.
func queryTokens(query string) []string {
	var tokens []string
	for _, f := range strings.Fields(query) {
		tokens = append(tokens, Normalize(f))
	}
	return tokens
}

// diacriticsRemover — transformer, убирающий диакритические знаки:
// NFD-декомпозиция → удаление combining marks → NFC.
var diacriticsRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize приводит строку к нормализованному виду для поиска:
// нижний регистр, без диакритики. «Údaje» → «udaje».
func Normalize(s string) string {
	folded, _, err := transform.String(diacriticsRemover, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// sortItems упорядочивает результаты.
// name — лексикографически по имени в запрошенном языке (collation
// этого языка, fallback на язык по умолчанию); created/modified — по
// соответствующей дате, новые первые; прочее — по дате изменения.
// Идентификатор — детерминированный tie-break.
func sortItems(items []*model.FileMetadata, orderBy, lang string) {
	switch orderBy {
	case OrderByName:
		if lang == "" {
			lang = model.DefaultLanguage
		}
		collator := collate.New(language.Make(lang))
		sort.Slice(items, func(i, j int) bool {
			ni := items[i].Name.Get(lang)
			nj := items[j].Name.Get(lang)
			if c := collator.CompareString(ni, nj); c != 0 {
				return c < 0
			}
			return items[i].Id.String() < items[j].Id.String()
		})
	case OrderByCreated:
		sort.Slice(items, func(i, j int) bool {
			if !items[i].Created.Equal(items[j].Created) {
				return items[i].Created.After(items[j].Created)
			}
			return items[i].Id.String() < items[j].Id.String()
		})
	default:
		sort.Slice(items, func(i, j int) bool {
			if !items[i].LastModified.Equal(items[j].LastModified) {
				return items[i].LastModified.After(items[j].LastModified)
			}
			return items[i].Id.String() < items[j].Id.String()
		})
	}
}
