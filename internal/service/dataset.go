// dataset.go — сервис регистраций датасетов.
//
// Датасет хранится как запись dataset_registration: содержимое —
// JSON-LD документ DCAT Dataset, метаданные — производная проекция
// для поиска. Валидатор собирает все ошибки полей за один проход.
//
// Публичность датасета — конечный автомат: датасет становится
// публичным, когда желаемая публичность (shouldBePublic) совпадает
// с наличием хотя бы одной дистрибуции, и снимается при удалении
// последней дистрибуции. Пересчёт выполняется при каждом изменении
// дистрибуций (RecomputeDataset).
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
	"github.com/bigkaa/godatacatalog/internal/storage/engine"
	"github.com/bigkaa/godatacatalog/internal/storage/index"
)

// Ключи AdditionalValues, производные от документа датасета.
const (
	facetThemes   = "themes"
	facetIsPartOf = "is_part_of"
)

// DatasetService — операции над регистрациями датасетов.
type DatasetService struct {
	eng       *engine.Engine
	codelists *CodelistService
	logger    *slog.Logger
}

// NewDatasetService создаёт сервис датасетов.
func NewDatasetService(eng *engine.Engine, codelists *CodelistService, logger *slog.Logger) *DatasetService {
	return &DatasetService{
		eng:       eng,
		codelists: codelists,
		logger:    logger.With(slog.String("component", "dataset")),
	}
}

// Create создаёт регистрацию датасета.
func (s *DatasetService) Create(doc *dcat.Dataset, caller policy.Caller) (uuid.UUID, error) {
	if !caller.CanPublish() {
		return uuid.Nil, ErrForbidden
	}

	if err := s.validate(doc, uuid.Nil); err != nil {
		return uuid.Nil, err
	}

	meta := s.buildMetadata(uuid.New(), doc, caller, false)

	content, err := doc.Serialize()
	if err != nil {
		return uuid.Nil, fmt.Errorf("ошибка сериализации датасета: %w", err)
	}

	saved, err := s.eng.InsertFile(content, meta, true, caller.Policy())
	if err != nil {
		return uuid.Nil, mapEngineError(err)
	}

	s.logger.Info("Датасет создан",
		slog.String("id", saved.Id.String()),
		slog.String("publisher", saved.PublisherURI()),
	)

	return saved.Id, nil
}

// Update заменяет регистрацию датасета целиком.
// Проверка неизменяемости harvested-записей выполняется раньше
// всех остальных проверок, включая владение.
func (s *DatasetService) Update(id uuid.UUID, doc *dcat.Dataset, caller policy.Caller) error {
	existing, existingDoc, err := s.load(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	if existingDoc == nil {
		// Без документа проверка harvested невыполнима
		return fmt.Errorf("документ датасета %s не читается, обновление отклонено", id)
	}
	if existingDoc.IsHarvested {
		return Generic("запись получена харвестингом и не может быть изменена")
	}

	p := caller.Policy()
	if !p.CanRead(existing) {
		return ErrNotFound
	}
	if !p.CanWrite(existing) {
		return ErrForbidden
	}

	if err := s.validate(doc, id); err != nil {
		return err
	}

	public := doc.ShouldBePublic && s.distributionCount(id) > 0
	meta := s.buildMetadata(id, doc, caller, public)
	meta.Publisher = existing.Publisher

	content, err := doc.Serialize()
	if err != nil {
		return fmt.Errorf("ошибка сериализации датасета: %w", err)
	}

	if _, err := s.eng.InsertFile(content, meta, true, p); err != nil {
		return mapEngineError(err)
	}

	// Смена shouldBePublic меняет видимость дистрибуций и файлов
	return s.RecomputeDataset(id)
}

// Delete удаляет регистрацию датасета вместе с дистрибуциями
// и их файлами. Идемпотентна. Серия с входящими датасетами
// не удаляется, пока участники ссылаются на неё.
func (s *DatasetService) Delete(id uuid.UUID, caller policy.Caller) error {
	existing, existingDoc, err := s.load(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if existingDoc != nil && existingDoc.IsHarvested {
		return Generic("запись получена харвестингом и не может быть удалена")
	}
	if s.hasSerieMembers(id) {
		return Generic("серия с входящими датасетами не может быть удалена")
	}

	if err := s.eng.DeleteFile(id, caller.Policy()); err != nil {
		return mapEngineError(err)
	}

	s.logger.Info("Датасет удалён", slog.String("id", id.String()))
	return nil
}

// Get возвращает документ датасета, видимый вызывающему.
func (s *DatasetService) Get(id uuid.UUID, caller policy.Caller) (*dcat.Dataset, *model.FileMetadata, error) {
	state, err := s.eng.GetFileState(id, caller.Policy())
	if err != nil {
		return nil, nil, err
	}
	if state == nil || state.Metadata.Type != model.TypeDatasetRegistration {
		return nil, nil, ErrNotFound
	}

	doc, err := dcat.ParseDataset(state.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка разбора датасета %s: %w", id, err)
	}
	return doc, state.Metadata, nil
}

// RecomputeDataset пересчитывает производное состояние датасета
// после изменения его дистрибуций: агрегат форматов и публичность.
// Видимость дистрибуций и их файлов следует за датасетом.
func (s *DatasetService) RecomputeDataset(id uuid.UUID) error {
	meta, doc, err := s.load(id)
	if err != nil {
		return err
	}
	if meta == nil || doc == nil {
		return nil
	}

	distributions := s.distributions(id)

	formats := map[string]bool{}
	for _, d := range distributions {
		state, err := s.eng.GetFileState(d.Id, policy.All())
		if err != nil || state == nil {
			continue
		}
		distDoc, err := dcat.ParseDistribution(state.Content)
		if err != nil || distDoc.Format == "" {
			continue
		}
		formats[distDoc.Format] = true
	}

	formatList := make([]string, 0, len(formats))
	for f := range formats {
		formatList = append(formatList, f)
	}
	sort.Strings(formatList)

	public := doc.ShouldBePublic && len(distributions) > 0

	updated := *meta
	updated.IsPublic = public
	if updated.AdditionalValues == nil {
		updated.AdditionalValues = map[string][]string{}
	}
	updated.AdditionalValues[model.AdditionalValueFormat] = formatList

	if _, err := s.eng.InsertFile(nil, &updated, true, policy.All()); err != nil {
		return fmt.Errorf("ошибка пересчёта датасета %s: %w", id, err)
	}

	// Видимость потомков следует за датасетом
	for _, d := range distributions {
		if err := s.propagateVisibility(d, public); err != nil {
			return err
		}
		for _, f := range s.eng.Children(d.Id, policy.All()) {
			if err := s.propagateVisibility(f, public); err != nil {
				return err
			}
		}
	}

	return nil
}

// propagateVisibility выравнивает видимость записи с датасетом.
func (s *DatasetService) propagateVisibility(meta *model.FileMetadata, public bool) error {
	if meta.IsPublic == public {
		return nil
	}
	updated := *meta
	updated.IsPublic = public
	if _, err := s.eng.InsertFile(nil, &updated, true, policy.All()); err != nil {
		return fmt.Errorf("ошибка смены видимости %s: %w", meta.Id, err)
	}
	return nil
}

// buildMetadata строит проекцию метаданных из документа датасета.
func (s *DatasetService) buildMetadata(id uuid.UUID, doc *dcat.Dataset, caller policy.Caller, public bool) *model.FileMetadata {
	meta := &model.FileMetadata{
		Id:       id,
		Type:     model.TypeDatasetRegistration,
		IsPublic: public,
		Name:     doc.Title.Trimmed(),
		AdditionalValues: map[string][]string{
			facetThemes: doc.Themes,
		},
	}
	if caller.Publisher != "" {
		publisher := caller.Publisher
		meta.Publisher = &publisher
	}
	if doc.IsPartOf != "" {
		meta.AdditionalValues[facetIsPartOf] = []string{doc.IsPartOf}
	}
	return meta
}

// load читает метаданные и документ датасета без проверки политики.
func (s *DatasetService) load(id uuid.UUID) (*model.FileMetadata, *dcat.Dataset, error) {
	state, err := s.eng.GetFileState(id, policy.All())
	if err != nil {
		return nil, nil, err
	}
	if state == nil || state.Metadata.Type != model.TypeDatasetRegistration {
		return nil, nil, nil
	}

	doc, err := dcat.ParseDataset(state.Content)
	if err != nil {
		// Повреждённое содержимое: метаданные ещё пригодны
		s.logger.Error("Ошибка разбора документа датасета",
			slog.String("id", id.String()),
			slog.String("error", err.Error()),
		)
		return state.Metadata, nil, nil
	}
	return state.Metadata, doc, nil
}

// distributions возвращает дистрибуции датасета.
func (s *DatasetService) distributions(id uuid.UUID) []*model.FileMetadata {
	var result []*model.FileMetadata
	for _, child := range s.eng.Children(id, policy.All()) {
		if child.Type == model.TypeDistributionRegistration {
			result = append(result, child)
		}
	}
	return result
}

// distributionCount возвращает количество дистрибуций датасета.
func (s *DatasetService) distributionCount(id uuid.UUID) int {
	return len(s.distributions(id))
}

// validate собирает все ошибки валидации документа датасета.
// selfID — идентификатор редактируемой записи (uuid.Nil при создании),
// исключается из проверок уникальности и циклов.
func (s *DatasetService) validate(doc *dcat.Dataset, selfID uuid.UUID) error {
	v := ValidationErrors{}

	if !doc.Title.HasDefault() {
		v.Add("name", "название на языке по умолчанию обязательно")
	}
	if !doc.Description.HasDefault() {
		v.Add("description", "описание на языке по умолчанию обязательно")
	}

	s.checkCodelist(v, "themes", dcat.CodelistTheme, doc.Themes...)
	s.checkCodelist(v, "eurovocthemes", dcat.CodelistEuroVoc, doc.EuroVocThemes...)
	s.checkCodelist(v, "accrualperiodicity", dcat.CodelistFrequency, doc.AccrualPeriodicity)
	s.checkCodelist(v, "type", dcat.CodelistDatasetType, doc.DatasetTypes...)
	s.checkCodelist(v, "spatial", dcat.CodelistPlace, doc.Spatial...)
	s.checkCodelist(v, "hvdcategory", dcat.CodelistHVDCategory, doc.HVDCategory)
	if doc.HVDCategory != "" && len(doc.ApplicableLegislations) == 0 {
		v.Add("applicableLegislations", "при заполненной категории HVD обязательно применимое законодательство")
	}

	s.checkLandingPage(v, doc.LandingPage, selfID)
	s.checkSerie(v, doc, selfID)

	return v.OrNil()
}

// checkCodelist проверяет, что все непустые значения резолвятся
// в словаре codelistID.
func (s *DatasetService) checkCodelist(v ValidationErrors, field, codelistID string, values ...string) {
	for _, value := range values {
		if value == "" {
			continue
		}
		if !s.codelists.Resolves(codelistID, value) {
			v.Add(field, fmt.Sprintf("значение %q отсутствует в кодлисте %s", value, codelistID))
			return
		}
	}
}

// checkLandingPage проверяет уникальность landing page без учёта
// регистра по всему корпусу датасетов, исключая саму запись.
func (s *DatasetService) checkLandingPage(v ValidationErrors, landingPage string, selfID uuid.UUID) {
	if landingPage == "" {
		return
	}
	normalized := strings.ToLower(landingPage)

	// Уникальность проверяется по всем страницам корпуса
	page := 1
	for {
		result := s.eng.List(index.Query{
			OnlyTypes: []model.FileType{model.TypeDatasetRegistration},
			Page:      page,
			PageSize:  index.DefaultPageSize,
		}, policy.All())
		for _, other := range result.Items {
			if other.Id == selfID {
				continue
			}
			_, otherDoc, err := s.load(other.Id)
			if err != nil || otherDoc == nil {
				continue
			}
			if strings.ToLower(otherDoc.LandingPage) == normalized {
				v.Add("landingpage", "landing page уже используется другим датасетом")
				return
			}
		}
		if page*index.DefaultPageSize >= result.TotalCount {
			return
		}
		page++
	}
}

// checkSerie проверяет правила серий: цель isPartOf существует
// и является серией, циклы запрещены, серия с потомками не может
// перестать быть серией.
func (s *DatasetService) checkSerie(v ValidationErrors, doc *dcat.Dataset, selfID uuid.UUID) {
	if doc.IsPartOf != "" {
		targetID, err := uuid.Parse(doc.IsPartOf)
		if err != nil {
			v.Add("ispartof", "некорректный идентификатор серии")
		} else if selfID != uuid.Nil && targetID == selfID {
			v.Add("ispartof", "датасет не может входить в собственную серию")
		} else {
			_, targetDoc, loadErr := s.load(targetID)
			switch {
			case loadErr != nil || targetDoc == nil:
				v.Add("ispartof", "серия не найдена")
			case !targetDoc.IsSerie:
				v.Add("ispartof", "целевой датасет не является серией")
			case selfID != uuid.Nil && s.chainContains(targetID, selfID):
				v.Add("ispartof", "включение в серию образует цикл")
			}
		}
	}

	if selfID != uuid.Nil && !doc.IsSerie && s.hasSerieMembers(selfID) {
		v.Add("isserie", "серия с входящими датасетами не может перестать быть серией")
	}
}

// chainContains проверяет, встречается ли needle в цепочке
// isPartOf, начиная с start.
func (s *DatasetService) chainContains(start, needle uuid.UUID) bool {
	current := start
	for i := 0; i < 100; i++ { // защита от уже повреждённых циклов
		_, doc, err := s.load(current)
		if err != nil || doc == nil || doc.IsPartOf == "" {
			return false
		}
		next, err := uuid.Parse(doc.IsPartOf)
		if err != nil {
			return false
		}
		if next == needle {
			return true
		}
		current = next
	}
	return true
}

// hasSerieMembers проверяет, ссылаются ли датасеты на запись как
// на свою серию.
func (s *DatasetService) hasSerieMembers(id uuid.UUID) bool {
	result := s.eng.List(index.Query{
		OnlyTypes: []model.FileType{model.TypeDatasetRegistration},
		Filters:   map[string][]string{facetIsPartOf: {id.String()}},
		PageSize:  1,
	}, policy.All())
	return result.TotalCount > 0
}

// mapEngineError переводит ошибки движка в ошибки сервисного слоя.
func mapEngineError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrForbidden):
		return ErrForbidden
	case errors.Is(err, engine.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}
