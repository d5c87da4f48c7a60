// codelist.go — сервис кодлистов (контролируемых словарей).
//
// Кодлисты хранятся как записи каталога типа codelist и заменяются
// целиком (wholesale replace, только суперадмин). Чтение идёт через
// LRU-кэш с TTL: валидаторы регистраций обращаются к кодлистам
// на каждой операции записи.
package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
	"github.com/bigkaa/godatacatalog/internal/storage/engine"
	"github.com/bigkaa/godatacatalog/internal/storage/index"
)

// codelistFacet — ключ AdditionalValues, по которому запись кодлиста
// находится по строковому идентификатору словаря.
const codelistFacet = "codelist"

// codelistCacheSize — максимум словарей в кэше.
const codelistCacheSize = 64

// CodelistService — хранение и кэшированное чтение кодлистов.
type CodelistService struct {
	eng    *engine.Engine
	cache  *expirable.LRU[string, *dcat.Codelist]
	logger *slog.Logger
}

// NewCodelistService создаёт сервис кодлистов.
// ttl — время жизни словаря в кэше после чтения.
func NewCodelistService(eng *engine.Engine, ttl time.Duration, logger *slog.Logger) *CodelistService {
	return &CodelistService{
		eng:    eng,
		cache:  expirable.NewLRU[string, *dcat.Codelist](codelistCacheSize, nil, ttl),
		logger: logger.With(slog.String("component", "codelist")),
	}
}

// Replace заменяет кодлист целиком. Только суперадмин.
// Существующая запись словаря с тем же идентификатором замещается,
// Id и Created записи сохраняются.
func (s *CodelistService) Replace(doc *dcat.Codelist, caller policy.Caller) (uuid.UUID, error) {
	if !caller.IsSuperadmin() {
		return uuid.Nil, ErrForbidden
	}

	v := ValidationErrors{}
	if doc.Id == "" {
		v.Add("id", "идентификатор кодлиста обязателен")
	}
	if len(doc.Entries) == 0 {
		v.Add("entries", "кодлист не может быть пустым")
	}
	if err := v.OrNil(); err != nil {
		return uuid.Nil, err
	}

	content, err := doc.Serialize()
	if err != nil {
		return uuid.Nil, fmt.Errorf("ошибка сериализации кодлиста %s: %w", doc.Id, err)
	}

	recordID := s.findRecordID(doc.Id)
	if recordID == uuid.Nil {
		recordID = uuid.New()
	}

	meta := &model.FileMetadata{
		Id:       recordID,
		Type:     model.TypeCodelist,
		IsPublic: true,
		Name:     model.LanguageMap{model.DefaultLanguage: doc.Id},
		AdditionalValues: map[string][]string{
			codelistFacet: {doc.Id},
		},
	}

	saved, err := s.eng.InsertFile(content, meta, true, policy.All())
	if err != nil {
		return uuid.Nil, fmt.Errorf("ошибка сохранения кодлиста %s: %w", doc.Id, err)
	}

	s.cache.Remove(doc.Id)

	s.logger.Info("Кодлист заменён",
		slog.String("codelist", doc.Id),
		slog.Int("entries", len(doc.Entries)),
	)

	return saved.Id, nil
}

// Get возвращает кодлист по строковому идентификатору словаря.
// Возвращает ErrNotFound, если словарь не загружен.
func (s *CodelistService) Get(id string) (*dcat.Codelist, error) {
	if cached, ok := s.cache.Get(id); ok {
		return cached, nil
	}

	recordID := s.findRecordID(id)
	if recordID == uuid.Nil {
		return nil, ErrNotFound
	}

	state, err := s.eng.GetFileState(recordID, policy.All())
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения кодлиста %s: %w", id, err)
	}
	if state == nil {
		return nil, ErrNotFound
	}

	doc, err := dcat.ParseCodelist(state.Content)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора кодлиста %s: %w", id, err)
	}

	s.cache.Add(id, doc)
	return doc, nil
}

// Resolves проверяет, что uri — известное значение словаря id.
// Незагруженный словарь не резолвит ничего.
func (s *CodelistService) Resolves(id, uri string) bool {
	doc, err := s.Get(id)
	if err != nil {
		return false
	}
	return doc.Contains(uri)
}

// findRecordID находит идентификатор записи словаря через индекс.
func (s *CodelistService) findRecordID(id string) uuid.UUID {
	result := s.eng.List(index.Query{
		OnlyTypes: []model.FileType{model.TypeCodelist},
		Filters:   map[string][]string{codelistFacet: {id}},
		PageSize:  1,
	}, policy.All())

	if len(result.Items) == 0 {
		return uuid.Nil
	}
	return result.Items[0].Id
}
