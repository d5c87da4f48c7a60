package service

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
	"github.com/bigkaa/godatacatalog/internal/storage/attr"
	"github.com/bigkaa/godatacatalog/internal/storage/docstore"
	"github.com/bigkaa/godatacatalog/internal/storage/engine"
	"github.com/bigkaa/godatacatalog/internal/storage/index"
	"github.com/bigkaa/godatacatalog/internal/storage/wal"
)

const testPublisher = "http://example.com/publisher"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv — собранный стек сервисов поверх временных каталогов.
type testEnv struct {
	eng           *engine.Engine
	codelists     *CodelistService
	datasets      *DatasetService
	distributions *DistributionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()

	attrs, err := attr.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания хранилища метаданных: %v", err)
	}
	docs, err := docstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания хранилища содержимого: %v", err)
	}
	w, err := wal.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("ошибка создания WAL: %v", err)
	}

	idx := index.New(logger)
	if err := idx.BuildFrom(attrs); err != nil {
		t.Fatalf("ошибка построения индекса: %v", err)
	}

	eng := engine.New(attrs, docs, idx, w, logger)
	codelists := NewCodelistService(eng, 0, logger)
	datasets := NewDatasetService(eng, codelists, logger)
	distributions := NewDistributionService(eng, codelists, datasets, logger)

	env := &testEnv{
		eng:           eng,
		codelists:     codelists,
		datasets:      datasets,
		distributions: distributions,
	}
	env.loadCodelists(t)
	return env
}

// loadCodelists загружает минимальные словари для валидаторов.
func (env *testEnv) loadCodelists(t *testing.T) {
	t.Helper()
	superadmin := policy.Caller{Subject: "admin", Role: policy.RoleSuperadmin}

	codelists := map[string][]string{
		dcat.CodelistTheme:             {"http://publications.europa.eu/resource/authority/data-theme/TRAN"},
		dcat.CodelistFrequency:         {"http://publications.europa.eu/resource/authority/frequency/DAILY"},
		dcat.CodelistFileType:          {"http://publications.europa.eu/resource/authority/file-type/CSV", "http://publications.europa.eu/resource/authority/file-type/XML"},
		dcat.CodelistMediaType:         {"http://www.iana.org/assignments/media-types/text/csv"},
		dcat.CodelistAuthorsWork:       {"https://data.gov.sk/def/authors-work-type/1"},
		dcat.CodelistOriginalDatabase:  {"https://data.gov.sk/def/original-database-type/1"},
		dcat.CodelistDatabaseProtected: {"https://data.gov.sk/def/database-protected-type/1"},
		dcat.CodelistPersonalData:      {"https://data.gov.sk/def/personal-data-containment-type/1"},
		dcat.CodelistLegalForm:         {"https://data.gov.sk/def/legal-form/331"},
		dcat.CodelistCatalogType:       {"https://data.gov.sk/def/catalog-type/sparql"},
		dcat.CodelistHVDCategory:       {"http://data.europa.eu/bna/c_164e0bf5"},
	}

	for id, uris := range codelists {
		doc := &dcat.Codelist{Id: id}
		for _, uri := range uris {
			doc.Entries = append(doc.Entries, dcat.CodelistEntry{
				URI:   uri,
				Label: model.LanguageMap{"sk": uri},
			})
		}
		if _, err := env.codelists.Replace(doc, superadmin); err != nil {
			t.Fatalf("ошибка загрузки кодлиста %s: %v", id, err)
		}
	}
}

func publisherCaller() policy.Caller {
	return policy.Caller{
		Subject:   "user-1",
		Role:      policy.RolePublisherAdmin,
		Publisher: testPublisher,
		Email:     "user@example.com",
	}
}

func validDataset() *dcat.Dataset {
	return &dcat.Dataset{
		Type:               dcat.TypeDataset,
		Title:              model.LanguageMap{"sk": "TestName"},
		Description:        model.LanguageMap{"sk": "Testovací popis"},
		Themes:             []string{"http://publications.europa.eu/resource/authority/data-theme/TRAN"},
		AccrualPeriodicity: "http://publications.europa.eu/resource/authority/frequency/DAILY",
		Keywords:           map[string][]string{"sk": {"TestKeyword1", "TestKeyword2"}},
		ShouldBePublic:     true,
	}
}

func validDistribution() *dcat.Distribution {
	return &dcat.Distribution{
		Type:      dcat.TypeDistribution,
		Title:     model.LanguageMap{"sk": "CSV distribúcia"},
		Format:    "http://publications.europa.eu/resource/authority/file-type/CSV",
		AccessURL: "https://example.com/data.csv",
		TermsOfUse: &dcat.TermsOfUse{
			AuthorsWorkType:                      "https://data.gov.sk/def/authors-work-type/1",
			OriginalDatabaseType:                 "https://data.gov.sk/def/original-database-type/1",
			DatabaseProtectedBySpecialRightsType: "https://data.gov.sk/def/database-protected-type/1",
			PersonalDataContainmentType:          "https://data.gov.sk/def/personal-data-containment-type/1",
		},
	}
}

func TestDatasetCreate_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	id, err := env.datasets.Create(validDataset(), caller)
	if err != nil {
		t.Fatalf("ошибка создания датасета: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("идентификатор не назначен")
	}

	doc, meta, err := env.datasets.Get(id, caller)
	if err != nil {
		t.Fatalf("ошибка чтения датасета: %v", err)
	}
	if meta.Type != model.TypeDatasetRegistration {
		t.Errorf("неверный тип записи: %s", meta.Type)
	}
	if meta.PublisherURI() != testPublisher {
		t.Errorf("неверный поставщик: %s", meta.PublisherURI())
	}
	if meta.Created.IsZero() {
		t.Error("Created не установлен")
	}
	if doc.Title.Get("sk") != "TestName" {
		t.Errorf("неверное название: %s", doc.Title.Get("sk"))
	}
	if len(doc.Keywords["sk"]) != 2 {
		t.Errorf("keywords не сохранились: %v", doc.Keywords)
	}

	// Без дистрибуций датасет не публикуется
	if meta.IsPublic {
		t.Error("датасет без дистрибуций не должен быть публичным")
	}
}

func TestDatasetCreate_CollectsAllErrors(t *testing.T) {
	env := newTestEnv(t)

	doc := validDataset()
	doc.Title = nil
	doc.Description = nil
	doc.Themes = []string{"http://example.com/unknown-theme"}

	_, err := env.datasets.Create(doc, publisherCaller())
	v, ok := AsValidation(err)
	if !ok {
		t.Fatalf("ожидались ошибки валидации, получено %v", err)
	}

	for _, field := range []string{"name", "description", "themes"} {
		if _, ok := v[field]; !ok {
			t.Errorf("нет ошибки для поля %s: %v", field, v)
		}
	}
}

func TestDatasetCreate_UnknownCodelistValue(t *testing.T) {
	env := newTestEnv(t)

	doc := validDataset()
	doc.AccrualPeriodicity = "http://example.com/unknown-frequency"

	_, err := env.datasets.Create(doc, publisherCaller())
	v, ok := AsValidation(err)
	if !ok {
		t.Fatalf("ожидались ошибки валидации, получено %v", err)
	}
	if _, ok := v["accrualperiodicity"]; !ok {
		t.Errorf("нет ошибки для accrualperiodicity: %v", v)
	}
}

func TestDatasetCreate_Anonymous(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.datasets.Create(validDataset(), policy.Caller{})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("аноним не может создавать датасеты, получено %v", err)
	}
}

func TestDatasetUpdate_PreservesCreated(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	id, err := env.datasets.Create(validDataset(), caller)
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}
	_, first, _ := env.datasets.Get(id, caller)

	update := validDataset()
	update.Title = model.LanguageMap{"sk": "Nový názov"}
	if err := env.datasets.Update(id, update, caller); err != nil {
		t.Fatalf("ошибка обновления: %v", err)
	}

	doc, meta, err := env.datasets.Get(id, caller)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !meta.Created.Equal(first.Created) {
		t.Error("Created должен сохраняться при обновлении")
	}
	if doc.Title.Get("sk") != "Nový názov" {
		t.Errorf("название не обновилось: %s", doc.Title.Get("sk"))
	}
}

func TestDatasetUpdate_OtherPublisherForbidden(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.datasets.Create(validDataset(), publisherCaller())
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}

	stranger := policy.Caller{
		Subject:   "user-2",
		Role:      policy.RolePublisherAdmin,
		Publisher: "http://example.com/other",
	}

	// Непубличный датасет чужого поставщика неотличим от отсутствующего
	err = env.datasets.Update(id, validDataset(), stranger)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено %v", err)
	}
}

func TestDatasetHarvested_Immutable(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	doc := validDataset()
	doc.IsHarvested = true
	id, err := env.datasets.Create(doc, caller)
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}

	// Неизменяемость проверяется раньше остальных проверок
	// и действует для любой роли, включая суперадмина
	superadmin := policy.Caller{Subject: "admin", Role: policy.RoleSuperadmin}
	for _, c := range []policy.Caller{caller, superadmin} {
		err := env.datasets.Update(id, validDataset(), c)
		if v, ok := AsValidation(err); !ok || v[GenericField] == "" {
			t.Errorf("ожидалась generic ошибка для %s, получено %v", c.Role, err)
		}

		err = env.datasets.Delete(id, c)
		if v, ok := AsValidation(err); !ok || v[GenericField] == "" {
			t.Errorf("ожидалась generic ошибка удаления для %s, получено %v", c.Role, err)
		}
	}
}

func TestDatasetLandingPage_Uniqueness(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	first := validDataset()
	first.LandingPage = "https://example.com/Data"
	id, err := env.datasets.Create(first, caller)
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}

	// Совпадение без учёта регистра — отказ
	second := validDataset()
	second.LandingPage = "https://example.com/DATA"
	if _, err := env.datasets.Create(second, caller); err == nil {
		t.Error("дубликат landing page должен быть отклонён")
	} else if v, ok := AsValidation(err); !ok || v["landingpage"] == "" {
		t.Errorf("ожидалась ошибка landingpage, получено %v", err)
	}

	// Собственное прежнее значение при обновлении — успех
	update := validDataset()
	update.LandingPage = "https://example.com/data"
	if err := env.datasets.Update(id, update, caller); err != nil {
		t.Errorf("обновление с собственным landing page должно проходить: %v", err)
	}
}

func TestDatasetSerie_Rules(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	serie := validDataset()
	serie.IsSerie = true
	serieID, err := env.datasets.Create(serie, caller)
	if err != nil {
		t.Fatalf("ошибка создания серии: %v", err)
	}

	// Включение в несуществующую серию
	member := validDataset()
	member.IsPartOf = uuid.NewString()
	if _, err := env.datasets.Create(member, caller); err == nil {
		t.Error("включение в несуществующую серию должно быть отклонено")
	}

	// Включение в датасет, не являющийся серией
	plainID, err := env.datasets.Create(validDataset(), caller)
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}
	member = validDataset()
	member.IsPartOf = plainID.String()
	if _, err := env.datasets.Create(member, caller); err == nil {
		t.Error("включение в не-серию должно быть отклонено")
	}

	// Корректное включение
	member = validDataset()
	member.IsPartOf = serieID.String()
	memberID, err := env.datasets.Create(member, caller)
	if err != nil {
		t.Fatalf("включение в серию должно проходить: %v", err)
	}

	// Серия с участниками не может перестать быть серией
	noSerie := validDataset()
	noSerie.IsSerie = false
	if err := env.datasets.Update(serieID, noSerie, caller); err == nil {
		t.Error("серия с участниками не может перестать быть серией")
	}

	// Самовключение
	self := validDataset()
	self.IsSerie = true
	self.IsPartOf = serieID.String()
	if err := env.datasets.Update(serieID, self, caller); err == nil {
		t.Error("самовключение должно быть отклонено")
	}

	// Цикл через цепочку: serie -> member невозможен, т.к. member
	// должен был бы стать серией и serie включиться в него
	memberSerie := validDataset()
	memberSerie.IsSerie = true
	memberSerie.IsPartOf = serieID.String()
	if err := env.datasets.Update(memberID, memberSerie, caller); err != nil {
		t.Fatalf("участник может быть серией: %v", err)
	}
	cycle := validDataset()
	cycle.IsSerie = true
	cycle.IsPartOf = memberID.String()
	if err := env.datasets.Update(serieID, cycle, caller); err == nil {
		t.Error("цикл через цепочку серий должен быть отклонён")
	}
}

func TestDatasetDelete_SerieWithMembers(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	serie := validDataset()
	serie.IsSerie = true
	serieID, err := env.datasets.Create(serie, caller)
	if err != nil {
		t.Fatalf("ошибка создания серии: %v", err)
	}

	member := validDataset()
	member.IsPartOf = serieID.String()
	memberID, err := env.datasets.Create(member, caller)
	if err != nil {
		t.Fatalf("ошибка включения в серию: %v", err)
	}

	// Серия с участниками не удаляется
	err = env.datasets.Delete(serieID, caller)
	if v, ok := AsValidation(err); !ok || v[GenericField] == "" {
		t.Fatalf("ожидалась generic ошибка удаления серии, получено %v", err)
	}
	if _, _, err := env.datasets.Get(serieID, caller); err != nil {
		t.Fatalf("серия должна остаться после отказа: %v", err)
	}

	// После удаления участника серия удаляется
	if err := env.datasets.Delete(memberID, caller); err != nil {
		t.Fatalf("ошибка удаления участника: %v", err)
	}
	if err := env.datasets.Delete(serieID, caller); err != nil {
		t.Errorf("удаление пустой серии должно проходить: %v", err)
	}
}

func TestDatasetHVD_RequiresLegislation(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	doc := validDataset()
	doc.HVDCategory = "http://data.europa.eu/bna/c_164e0bf5"

	_, err := env.datasets.Create(doc, caller)
	if v, ok := AsValidation(err); !ok || v["applicableLegislations"] == "" {
		t.Errorf("ожидалась ошибка applicableLegislations, получено %v", err)
	}

	doc.ApplicableLegislations = []string{"http://data.europa.eu/eli/reg_impl/2023/138/oj"}
	if _, err := env.datasets.Create(doc, caller); err != nil {
		t.Errorf("категория HVD с законодательством должна проходить: %v", err)
	}
}

func TestDatasetUpdate_CorruptedDocument(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	id, err := env.datasets.Create(validDataset(), caller)
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}

	// Портим содержимое записи, сохраняя метаданные
	_, meta, err := env.datasets.Get(id, caller)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if _, err := env.eng.InsertFile([]byte("{"), meta, true, policy.All()); err != nil {
		t.Fatalf("ошибка записи содержимого: %v", err)
	}

	// Нечитаемый документ — отказ, а не пропуск проверок
	err = env.datasets.Update(id, validDataset(), caller)
	if err == nil {
		t.Fatal("обновление нечитаемой записи должно отклоняться")
	}
	if _, ok := AsValidation(err); ok {
		t.Errorf("ожидалась внутренняя ошибка, получено %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась внутренняя ошибка, получено %v", err)
	}
}

func TestFormatAggregation(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	datasetID, err := env.datasets.Create(validDataset(), caller)
	if err != nil {
		t.Fatalf("ошибка создания датасета: %v", err)
	}

	d1 := validDistribution()
	d1.Format = "http://publications.europa.eu/resource/authority/file-type/CSV"
	d1ID, err := env.distributions.Create(datasetID, d1, caller)
	if err != nil {
		t.Fatalf("ошибка создания дистрибуции: %v", err)
	}

	d2 := validDistribution()
	d2.Format = "http://publications.europa.eu/resource/authority/file-type/XML"
	d2ID, err := env.distributions.Create(datasetID, d2, caller)
	if err != nil {
		t.Fatalf("ошибка создания дистрибуции: %v", err)
	}

	formats := func() []string {
		_, meta, err := env.datasets.Get(datasetID, caller)
		if err != nil {
			t.Fatalf("ошибка чтения датасета: %v", err)
		}
		return meta.AdditionalValues[model.AdditionalValueFormat]
	}

	got := formats()
	if len(got) != 2 {
		t.Fatalf("ожидалось 2 формата, получено %v", got)
	}

	if err := env.distributions.Delete(d1ID, caller); err != nil {
		t.Fatalf("ошибка удаления дистрибуции: %v", err)
	}
	got = formats()
	if len(got) != 1 || got[0] != "http://publications.europa.eu/resource/authority/file-type/XML" {
		t.Errorf("после удаления CSV ожидался только XML, получено %v", got)
	}

	if err := env.distributions.Delete(d2ID, caller); err != nil {
		t.Fatalf("ошибка удаления дистрибуции: %v", err)
	}
	if got = formats(); len(got) != 0 {
		t.Errorf("после удаления всех дистрибуций агрегат должен быть пуст: %v", got)
	}
}

func TestPublishStateMachine(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	datasetID, err := env.datasets.Create(validDataset(), caller)
	if err != nil {
		t.Fatalf("ошибка создания датасета: %v", err)
	}

	isPublic := func() bool {
		_, meta, err := env.datasets.Get(datasetID, caller)
		if err != nil {
			t.Fatalf("ошибка чтения датасета: %v", err)
		}
		return meta.IsPublic
	}

	if isPublic() {
		t.Error("датасет без дистрибуций не публикуется")
	}

	// Первая дистрибуция публикует датасет (shouldBePublic=true)
	distID, err := env.distributions.Create(datasetID, validDistribution(), caller)
	if err != nil {
		t.Fatalf("ошибка создания дистрибуции: %v", err)
	}
	if !isPublic() {
		t.Error("датасет с дистрибуцией и shouldBePublic должен быть публичным")
	}

	// Удаление последней дистрибуции снимает публичность
	if err := env.distributions.Delete(distID, caller); err != nil {
		t.Fatalf("ошибка удаления дистрибуции: %v", err)
	}
	if isPublic() {
		t.Error("датасет без дистрибуций должен стать непубличным")
	}
}

func TestDatasetDelete_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	id, err := env.datasets.Create(validDataset(), caller)
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}

	if err := env.datasets.Delete(id, caller); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if err := env.datasets.Delete(id, caller); err != nil {
		t.Errorf("повторное удаление должно быть успешным: %v", err)
	}
	if err := env.datasets.Delete(uuid.New(), caller); err != nil {
		t.Errorf("удаление несуществующего датасета должно быть успешным: %v", err)
	}
}

func TestDistributionCreate_ParentMissing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.distributions.Create(uuid.New(), validDistribution(), publisherCaller())
	if v, ok := AsValidation(err); !ok || v["dataset"] == "" {
		t.Errorf("отсутствие родителя — ошибка валидации, получено %v", err)
	}
}

func TestDistributionCreate_PersonalDataError(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()

	datasetID, err := env.datasets.Create(validDataset(), caller)
	if err != nil {
		t.Fatalf("ошибка создания датасета: %v", err)
	}

	doc := validDistribution()
	doc.TermsOfUse.PersonalDataContainmentType = "https://example.com/unknown"
	_, err = env.distributions.Create(datasetID, doc, caller)
	if v, ok := AsValidation(err); !ok || v["personaldatacontainmenttype"] == "" {
		t.Errorf("ожидалась ошибка personaldatacontainmenttype, получено %v", err)
	}
}
