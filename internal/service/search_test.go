package service

import (
	"testing"

	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
)

func TestSearchDatasets(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()
	search := NewSearchService(env.eng, testLogger())

	public := validDataset()
	public.Title = model.LanguageMap{"sk": "Cyklistické trasy"}
	publicID, err := env.datasets.Create(public, caller)
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}
	if _, err := env.distributions.Create(publicID, validDistribution(), caller); err != nil {
		t.Fatalf("ошибка создания дистрибуции: %v", err)
	}

	private := validDataset()
	private.Title = model.LanguageMap{"sk": "Neverejné cyklotrasy"}
	private.ShouldBePublic = false
	if _, err := env.datasets.Create(private, caller); err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}

	// Аноним видит только опубликованный датасет,
	// диакритика в запросе не учитывается
	resp := search.Datasets(SearchRequest{QueryText: "cyklisticke"}, policy.Caller{})
	if resp.TotalCount != 1 {
		t.Fatalf("аноним должен видеть 1 запись, получено %d", resp.TotalCount)
	}
	if resp.Items[0].Id != publicID.String() {
		t.Errorf("неверная запись в результатах: %s", resp.Items[0].Id)
	}
	if resp.Items[0].Name != "Cyklistické trasy" {
		t.Errorf("неверное название: %s", resp.Items[0].Name)
	}

	// Владелец видит обе записи
	resp = search.Datasets(SearchRequest{QueryText: "cyklo"}, caller)
	if resp.TotalCount != 1 {
		t.Errorf("по запросу cyklo ожидалась 1 запись, получено %d", resp.TotalCount)
	}
	resp = search.Datasets(SearchRequest{}, caller)
	if resp.TotalCount != 2 {
		t.Errorf("владелец должен видеть 2 записи, получено %d", resp.TotalCount)
	}
}

func TestSearchDatasets_FormatFacet(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()
	search := NewSearchService(env.eng, testLogger())

	id, err := env.datasets.Create(validDataset(), caller)
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}
	if _, err := env.distributions.Create(id, validDistribution(), caller); err != nil {
		t.Fatalf("ошибка создания дистрибуции: %v", err)
	}

	resp := search.Datasets(SearchRequest{
		RequiredFacets: []string{model.AdditionalValueFormat},
	}, policy.Caller{})
	if len(resp.Facets) != 1 {
		t.Fatalf("ожидался 1 фасет, получено %d", len(resp.Facets))
	}
	counts := resp.Facets[0].Values
	if counts["http://publications.europa.eu/resource/authority/file-type/CSV"] != 1 {
		t.Errorf("неверное распределение фасета format: %v", counts)
	}
}

func TestSearchPublishers_TypeIsolation(t *testing.T) {
	env := newTestEnv(t)
	caller := publisherCaller()
	search := NewSearchService(env.eng, testLogger())
	publishers, _ := newPublisherService(t, env)

	if _, err := publishers.Create(validAgent(testPublisher), caller); err != nil {
		t.Fatalf("ошибка создания поставщика: %v", err)
	}
	if _, err := env.datasets.Create(validDataset(), caller); err != nil {
		t.Fatalf("ошибка создания датасета: %v", err)
	}

	resp := search.Publishers(SearchRequest{}, caller)
	if resp.TotalCount != 1 {
		t.Fatalf("ожидался 1 поставщик, получено %d", resp.TotalCount)
	}
	if resp.Items[0].Type != model.TypePublisherRegistration {
		t.Errorf("в результатах неверный тип: %s", resp.Items[0].Type)
	}
}
