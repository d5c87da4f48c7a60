// distribution.go — сервис регистраций дистрибуций.
//
// Дистрибуция всегда принадлежит датасету (ParentFile). После каждого
// создания, изменения или удаления пересчитывается производное
// состояние родительского датасета: агрегат форматов и публичность.
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

// DistributionService — операции над регистрациями дистрибуций.
type DistributionService struct {
	eng       *engine.Engine
	codelists *CodelistService
	datasets  *DatasetService
	logger    *slog.Logger
}

// NewDistributionService создаёт сервис дистрибуций.
func NewDistributionService(eng *engine.Engine, codelists *CodelistService, datasets *DatasetService, logger *slog.Logger) *DistributionService {
	return &DistributionService{
		eng:       eng,
		codelists: codelists,
		datasets:  datasets,
		logger:    logger.With(slog.String("component", "distribution")),
	}
}

// Create создаёт регистрацию дистрибуции под датасетом datasetID.
func (s *DistributionService) Create(datasetID uuid.UUID, doc *dcat.Distribution, caller policy.Caller) (uuid.UUID, error) {
	if !caller.CanPublish() {
		return uuid.Nil, ErrForbidden
	}

	parent, parentDoc, err := s.checkParent(datasetID, caller)
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.validate(doc); err != nil {
		return uuid.Nil, err
	}

	meta := &model.FileMetadata{
		Id:         uuid.New(),
		Type:       model.TypeDistributionRegistration,
		ParentFile: &parent.Id,
		Publisher:  parent.Publisher,
		IsPublic:   parentDoc != nil && parentDoc.ShouldBePublic,
		Name:       doc.Title.Trimmed(),
	}
	if doc.Format != "" {
		meta.AdditionalValues = map[string][]string{
			model.AdditionalValueFormat: {doc.Format},
		}
	}

	content, err := doc.Serialize()
	if err != nil {
		return uuid.Nil, fmt.Errorf("ошибка сериализации дистрибуции: %w", err)
	}

	saved, err := s.eng.InsertFile(content, meta, true, caller.Policy())
	if err != nil {
		return uuid.Nil, mapEngineError(err)
	}

	if err := s.datasets.RecomputeDataset(datasetID); err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("Дистрибуция создана",
		slog.String("id", saved.Id.String()),
		slog.String("dataset", datasetID.String()),
	)

	return saved.Id, nil
}

// Update заменяет регистрацию дистрибуции целиком.
func (s *DistributionService) Update(id uuid.UUID, doc *dcat.Distribution, caller policy.Caller) error {
	existing, err := s.eng.GetFileMetadata(id, policy.All())
	if err != nil {
		return err
	}
	if existing == nil || existing.Type != model.TypeDistributionRegistration {
		return ErrNotFound
	}

	// Неизменяемость харвестнутых записей наследуется от датасета
	if existing.ParentFile != nil {
		_, parentDoc, err := s.datasets.load(*existing.ParentFile)
		if err != nil {
			return err
		}
		if parentDoc != nil && parentDoc.IsHarvested {
			return Generic("запись получена харвестингом и не может быть изменена")
		}
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
	updated.AdditionalValues = nil
	if doc.Format != "" {
		updated.AdditionalValues = map[string][]string{
			model.AdditionalValueFormat: {doc.Format},
		}
	}

	content, err := doc.Serialize()
	if err != nil {
		return fmt.Errorf("ошибка сериализации дистрибуции: %w", err)
	}

	if _, err := s.eng.InsertFile(content, &updated, true, p); err != nil {
		return mapEngineError(err)
	}

	if existing.ParentFile != nil {
		return s.datasets.RecomputeDataset(*existing.ParentFile)
	}
	return nil
}

// Delete удаляет регистрацию дистрибуции вместе с её файлами.
// Идемпотентна. Удаление последней дистрибуции снимает публичность
// родительского датасета.
func (s *DistributionService) Delete(id uuid.UUID, caller policy.Caller) error {
	existing, err := s.eng.GetFileMetadata(id, policy.All())
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if existing.Type != model.TypeDistributionRegistration {
		return ErrNotFound
	}

	if existing.ParentFile != nil {
		_, parentDoc, err := s.datasets.load(*existing.ParentFile)
		if err != nil {
			return err
		}
		if parentDoc != nil && parentDoc.IsHarvested {
			return Generic("запись получена харвестингом и не может быть удалена")
		}
	}

	if err := s.eng.DeleteFile(id, caller.Policy()); err != nil {
		return mapEngineError(err)
	}

	if existing.ParentFile != nil {
		if err := s.datasets.RecomputeDataset(*existing.ParentFile); err != nil {
			return err
		}
	}

	s.logger.Info("Дистрибуция удалена", slog.String("id", id.String()))
	return nil
}

// Get возвращает документ дистрибуции, видимый вызывающему.
func (s *DistributionService) Get(id uuid.UUID, caller policy.Caller) (*dcat.Distribution, *model.FileMetadata, error) {
	state, err := s.eng.GetFileState(id, caller.Policy())
	if err != nil {
		return nil, nil, err
	}
	if state == nil || state.Metadata.Type != model.TypeDistributionRegistration {
		return nil, nil, ErrNotFound
	}

	doc, err := dcat.ParseDistribution(state.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка разбора дистрибуции %s: %w", id, err)
	}
	return doc, state.Metadata, nil
}

// checkParent проверяет, что родительский датасет существует,
// доступен вызывающему и не получен харвестингом.
// Отсутствие родителя — ошибка валидации, не хранилища.
func (s *DistributionService) checkParent(datasetID uuid.UUID, caller policy.Caller) (*model.FileMetadata, *dcat.Dataset, error) {
	parent, parentDoc, err := s.datasets.load(datasetID)
	if err != nil {
		return nil, nil, err
	}
	if parent == nil {
		return nil, nil, ValidationErrors{"dataset": "родительский датасет не найден"}
	}
	if parentDoc != nil && parentDoc.IsHarvested {
		return nil, nil, Generic("датасет получен харвестингом и не может быть изменён")
	}

	p := caller.Policy()
	if !p.CanRead(parent) {
		return nil, nil, ErrNotFound
	}
	if !p.CanWrite(parent) {
		return nil, nil, ErrForbidden
	}
	return parent, parentDoc, nil
}

// validate собирает все ошибки валидации документа дистрибуции.
func (s *DistributionService) validate(doc *dcat.Distribution) error {
	v := ValidationErrors{}

	if doc.AccessURL == "" && doc.DownloadURL == "" {
		v.Add("accessurl", "дистрибуция должна иметь access URL или download URL")
	}

	s.checkCodelist(v, "format", dcat.CodelistFileType, doc.Format)
	s.checkCodelist(v, "mediatype", dcat.CodelistMediaType, doc.MediaType)
	s.checkCodelist(v, "compressformat", dcat.CodelistMediaType, doc.CompressFormat)
	s.checkCodelist(v, "packageformat", dcat.CodelistMediaType, doc.PackageFormat)

	if doc.TermsOfUse != nil {
		s.checkCodelist(v, "authorsworktype", dcat.CodelistAuthorsWork, doc.TermsOfUse.AuthorsWorkType)
		s.checkCodelist(v, "originaldatabasetype", dcat.CodelistOriginalDatabase, doc.TermsOfUse.OriginalDatabaseType)
		s.checkCodelist(v, "databaseprotectedbyspecialrightstype", dcat.CodelistDatabaseProtected, doc.TermsOfUse.DatabaseProtectedBySpecialRightsType)
		s.checkCodelist(v, "personaldatacontainmenttype", dcat.CodelistPersonalData, doc.TermsOfUse.PersonalDataContainmentType)
	} else {
		v.Add("termsofuse", "условия использования обязательны")
	}

	return v.OrNil()
}

// checkCodelist проверяет, что непустое значение резолвится в словаре.
func (s *DistributionService) checkCodelist(v ValidationErrors, field, codelistID, value string) {
	if value == "" {
		return
	}
	if !s.codelists.Resolves(codelistID, value) {
		v.Add(field, fmt.Sprintf("значение %q отсутствует в кодлисте %s", value, codelistID))
	}
}
