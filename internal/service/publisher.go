// publisher.go — сервис регистраций поставщиков данных.
//
// Поставщик хранится как запись publisher_registration (FOAF Agent).
// Владельцем записи является сам поставщик: URI агента попадает
// в Metadata.Publisher, поэтому пользователи с publisher claim этого
// URI могут редактировать свою запись через /profile.
//
// PUT /publishers — только суперадмин; POST /registration и
// PUT /profile — самообслуживание аутентифицированного поставщика.
package service

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
	"github.com/bigkaa/godatacatalog/internal/storage/engine"
	"github.com/bigkaa/godatacatalog/internal/storage/index"
)

// facetURI — ключ AdditionalValues с URI агента для поиска по URI.
const facetURI = "uri"

// PublisherService — операции над регистрациями поставщиков.
type PublisherService struct {
	eng       *engine.Engine
	codelists *CodelistService
	issuer    *TokenIssuer
	logger    *slog.Logger
}

// NewPublisherService создаёт сервис поставщиков.
// issuer может быть nil — тогда имперсонализация недоступна.
func NewPublisherService(eng *engine.Engine, codelists *CodelistService, issuer *TokenIssuer, logger *slog.Logger) *PublisherService {
	return &PublisherService{
		eng:       eng,
		codelists: codelists,
		issuer:    issuer,
		logger:    logger.With(slog.String("component", "publisher")),
	}
}

// Create создаёт регистрацию поставщика.
func (s *PublisherService) Create(doc *dcat.Agent, caller policy.Caller) (uuid.UUID, error) {
	if !caller.IsAuthenticated() {
		return uuid.Nil, ErrForbidden
	}

	if err := s.validate(doc, uuid.Nil); err != nil {
		return uuid.Nil, err
	}

	meta := s.buildMetadata(uuid.New(), doc)

	content, err := doc.Serialize()
	if err != nil {
		return uuid.Nil, fmt.Errorf("ошибка сериализации поставщика: %w", err)
	}

	saved, err := s.eng.InsertFile(content, meta, true, policy.All())
	if err != nil {
		return uuid.Nil, mapEngineError(err)
	}

	s.logger.Info("Поставщик создан",
		slog.String("id", saved.Id.String()),
		slog.String("uri", doc.URI),
	)
	return saved.Id, nil
}

// Update заменяет регистрацию поставщика. Только суперадмин.
func (s *PublisherService) Update(id uuid.UUID, doc *dcat.Agent, caller policy.Caller) error {
	if !caller.IsSuperadmin() {
		return ErrForbidden
	}
	return s.replace(id, doc, policy.All())
}

// UpdateProfile заменяет запись собственного поставщика вызывающего.
func (s *PublisherService) UpdateProfile(doc *dcat.Agent, caller policy.Caller) error {
	if !caller.IsAuthenticated() || caller.Publisher == "" {
		return ErrForbidden
	}
	// Профиль всегда редактирует запись своего поставщика
	doc.URI = caller.Publisher

	id := s.FindByURI(caller.Publisher)
	if id == uuid.Nil {
		return ErrNotFound
	}
	return s.replace(id, doc, caller.Policy())
}

// Register создаёт регистрацию поставщика для аутентифицированного
// пользователя (самообслуживание).
func (s *PublisherService) Register(doc *dcat.Agent, caller policy.Caller) (uuid.UUID, error) {
	if !caller.IsAuthenticated() || caller.Publisher == "" {
		return uuid.Nil, ErrForbidden
	}
	doc.URI = caller.Publisher
	return s.Create(doc, caller)
}

// replace выполняет замену записи поставщика после проверок.
func (s *PublisherService) replace(id uuid.UUID, doc *dcat.Agent, p policy.Policy) error {
	existing, err := s.eng.GetFileMetadata(id, policy.All())
	if err != nil {
		return err
	}
	if existing == nil || existing.Type != model.TypePublisherRegistration {
		return ErrNotFound
	}
	if !p.CanRead(existing) {
		return ErrNotFound
	}
	if !p.CanWrite(existing) {
		return ErrForbidden
	}

	if err := s.validate(doc, id); err != nil {
		return err
	}

	meta := s.buildMetadata(id, doc)

	content, err := doc.Serialize()
	if err != nil {
		return fmt.Errorf("ошибка сериализации поставщика: %w", err)
	}

	if _, err := s.eng.InsertFile(content, meta, true, p); err != nil {
		return mapEngineError(err)
	}
	return nil
}

// Get возвращает документ поставщика, видимый вызывающему.
func (s *PublisherService) Get(id uuid.UUID, caller policy.Caller) (*dcat.Agent, *model.FileMetadata, error) {
	state, err := s.eng.GetFileState(id, caller.Policy())
	if err != nil {
		return nil, nil, err
	}
	if state == nil || state.Metadata.Type != model.TypePublisherRegistration {
		return nil, nil, ErrNotFound
	}

	doc, err := dcat.ParseAgent(state.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка разбора поставщика %s: %w", id, err)
	}
	return doc, state.Metadata, nil
}

// Impersonate выпускает пару токенов от имени поставщика.
// Только суперадмин.
func (s *PublisherService) Impersonate(id uuid.UUID, caller policy.Caller) (*TokenPair, error) {
	if !caller.IsSuperadmin() {
		return nil, ErrForbidden
	}
	if s.issuer == nil {
		return nil, fmt.Errorf("имперсонализация не настроена: ключ подписи не задан")
	}

	doc, meta, err := s.Get(id, caller)
	if err != nil {
		return nil, err
	}

	pair, err := s.issuer.IssuePair(meta.Id, doc.URI, doc.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Выпущена пара токенов имперсонализации",
		slog.String("publisher", doc.URI),
		slog.String("issued_by", caller.Subject),
	)
	return pair, nil
}

// FindByURI находит идентификатор записи поставщика по URI агента.
// uuid.Nil, если запись отсутствует.
func (s *PublisherService) FindByURI(uri string) uuid.UUID {
	result := s.eng.List(index.Query{
		OnlyTypes: []model.FileType{model.TypePublisherRegistration},
		Filters:   map[string][]string{facetURI: {uri}},
		PageSize:  1,
	}, policy.All())

	if len(result.Items) == 0 {
		return uuid.Nil
	}
	return result.Items[0].Id
}

// buildMetadata строит проекцию метаданных из документа агента.
func (s *PublisherService) buildMetadata(id uuid.UUID, doc *dcat.Agent) *model.FileMetadata {
	uri := doc.URI
	return &model.FileMetadata{
		Id:        id,
		Type:      model.TypePublisherRegistration,
		Publisher: &uri,
		IsPublic:  doc.ShouldBePublic,
		Name:      doc.Name.Trimmed(),
		AdditionalValues: map[string][]string{
			facetURI: {uri},
		},
	}
}

// validate собирает все ошибки валидации документа агента.
// selfID исключается из проверки уникальности URI.
func (s *PublisherService) validate(doc *dcat.Agent, selfID uuid.UUID) error {
	v := ValidationErrors{}

	if !doc.Name.HasDefault() {
		v.Add("name", "название на языке по умолчанию обязательно")
	}
	if doc.URI == "" {
		v.Add("uri", "URI поставщика обязателен")
	}
	if doc.LegalForm != "" && !s.codelists.Resolves(dcat.CodelistLegalForm, doc.LegalForm) {
		v.Add("legalform", fmt.Sprintf("значение %q отсутствует в кодлисте %s", doc.LegalForm, dcat.CodelistLegalForm))
	}

	if doc.URI != "" {
		if existing := s.FindByURI(doc.URI); existing != uuid.Nil && existing != selfID {
			v.Add("uri", "поставщик с таким URI уже зарегистрирован")
		}
	}

	return v.OrNil()
}
