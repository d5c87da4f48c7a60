// localcatalog.go — сервис регистраций локальных каталогов.
//
// Локальный каталог — точка харвестинга поставщика (DCAT Catalog):
// из него периодически собираются датасеты. Запись не имеет родителя
// и потомков.
package service

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
	"github.com/bigkaa/godatacatalog/internal/storage/engine"
)

// LocalCatalogService — операции над регистрациями локальных каталогов.
type LocalCatalogService struct {
	eng       *engine.Engine
	codelists *CodelistService
	logger    *slog.Logger
}

// NewLocalCatalogService создаёт сервис локальных каталогов.
func NewLocalCatalogService(eng *engine.Engine, codelists *CodelistService, logger *slog.Logger) *LocalCatalogService {
	return &LocalCatalogService{
		eng:       eng,
		codelists: codelists,
		logger:    logger.With(slog.String("component", "localcatalog")),
	}
}

// Create создаёт регистрацию локального каталога.
func (s *LocalCatalogService) Create(doc *dcat.Catalog, caller policy.Caller) (uuid.UUID, error) {
	if !caller.CanPublish() {
		return uuid.Nil, ErrForbidden
	}
	if err := s.validate(doc); err != nil {
		return uuid.Nil, err
	}

	meta := &model.FileMetadata{
		Id:       uuid.New(),
		Type:     model.TypeLocalCatalogRegistration,
		IsPublic: doc.ShouldBePublic,
		Name:     doc.Title.Trimmed(),
	}
	if caller.Publisher != "" {
		publisher := caller.Publisher
		meta.Publisher = &publisher
	}

	content, err := doc.Serialize()
	if err != nil {
		return uuid.Nil, fmt.Errorf("ошибка сериализации локального каталога: %w", err)
	}

	saved, err := s.eng.InsertFile(content, meta, true, caller.Policy())
	if err != nil {
		return uuid.Nil, mapEngineError(err)
	}

	s.logger.Info("Локальный каталог создан", slog.String("id", saved.Id.String()))
	return saved.Id, nil
}

// Update заменяет регистрацию локального каталога целиком.
func (s *LocalCatalogService) Update(id uuid.UUID, doc *dcat.Catalog, caller policy.Caller) error {
	existing, err := s.eng.GetFileMetadata(id, policy.All())
	if err != nil {
		return err
	}
	if existing == nil || existing.Type != model.TypeLocalCatalogRegistration {
		return ErrNotFound
	}

	p := caller.Policy()
	if !p.CanRead(existing) {
		return ErrNotFound
	}
	if !p.CanWrite(existing) {
		return ErrForbidden
	}

	if err := s.validate(doc); err != nil {
		return err
	}

	updated := *existing
	updated.Name = doc.Title.Trimmed()
	updated.IsPublic = doc.ShouldBePublic

	content, err := doc.Serialize()
	if err != nil {
		return fmt.Errorf("ошибка сериализации локального каталога: %w", err)
	}

	if _, err := s.eng.InsertFile(content, &updated, true, p); err != nil {
		return mapEngineError(err)
	}
	return nil
}

// Delete удаляет регистрацию локального каталога. Идемпотентна.
func (s *LocalCatalogService) Delete(id uuid.UUID, caller policy.Caller) error {
	existing, err := s.eng.GetFileMetadata(id, policy.All())
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if existing.Type != model.TypeLocalCatalogRegistration {
		return ErrNotFound
	}

	if err := s.eng.DeleteFile(id, caller.Policy()); err != nil {
		return mapEngineError(err)
	}

	s.logger.Info("Локальный каталог удалён", slog.String("id", id.String()))
	return nil
}

// Get возвращает документ локального каталога, видимый вызывающему.
func (s *LocalCatalogService) Get(id uuid.UUID, caller policy.Caller) (*dcat.Catalog, *model.FileMetadata, error) {
	state, err := s.eng.GetFileState(id, caller.Policy())
	if err != nil {
		return nil, nil, err
	}
	if state == nil || state.Metadata.Type != model.TypeLocalCatalogRegistration {
		return nil, nil, ErrNotFound
	}

	doc, err := dcat.ParseCatalog(state.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка разбора локального каталога %s: %w", id, err)
	}
	return doc, state.Metadata, nil
}

// validate собирает все ошибки валидации документа каталога.
func (s *LocalCatalogService) validate(doc *dcat.Catalog) error {
	v := ValidationErrors{}

	if !doc.Title.HasDefault() {
		v.Add("name", "название на языке по умолчанию обязательно")
	}
	if !doc.Description.HasDefault() {
		v.Add("description", "описание на языке по умолчанию обязательно")
	}
	if doc.EndpointURL == "" {
		v.Add("endpointurl", "endpoint URL обязателен")
	}
	if doc.CatalogType != "" && !s.codelists.Resolves(dcat.CodelistCatalogType, doc.CatalogType) {
		v.Add("type", fmt.Sprintf("значение %q отсутствует в кодлисте %s", doc.CatalogType, dcat.CodelistCatalogType))
	}

	return v.OrNil()
}
