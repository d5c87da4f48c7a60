package service

import (
	"errors"
	"testing"

	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
)

func TestCodelistReplace(t *testing.T) {
	env := newTestEnv(t)
	superadmin := policy.Caller{Subject: "admin", Role: policy.RoleSuperadmin}

	doc := &dcat.Codelist{
		Id: "license",
		Entries: []dcat.CodelistEntry{
			{URI: "https://example.com/license/cc0", Label: model.LanguageMap{"sk": "CC0"}},
		},
	}
	first, err := env.codelists.Replace(doc, superadmin)
	if err != nil {
		t.Fatalf("ошибка загрузки кодлиста: %v", err)
	}

	got, err := env.codelists.Get("license")
	if err != nil {
		t.Fatalf("ошибка чтения кодлиста: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].URI != "https://example.com/license/cc0" {
		t.Errorf("неверное содержимое кодлиста: %+v", got.Entries)
	}

	// Повторная загрузка заменяет документ целиком под тем же id записи
	doc.Entries = append(doc.Entries, dcat.CodelistEntry{URI: "https://example.com/license/cc-by"})
	second, err := env.codelists.Replace(doc, superadmin)
	if err != nil {
		t.Fatalf("ошибка замены кодлиста: %v", err)
	}
	if first != second {
		t.Errorf("замена должна переиспользовать запись: %s != %s", first, second)
	}

	got, err = env.codelists.Get("license")
	if err != nil {
		t.Fatalf("ошибка чтения после замены: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Errorf("кэш должен сбрасываться при замене: %+v", got.Entries)
	}
}

func TestCodelistReplace_SuperadminOnly(t *testing.T) {
	env := newTestEnv(t)

	doc := &dcat.Codelist{Id: "license", Entries: []dcat.CodelistEntry{{URI: "https://example.com/x"}}}
	if _, err := env.codelists.Replace(doc, publisherCaller()); !errors.Is(err, ErrForbidden) {
		t.Errorf("кодлисты загружает только суперадмин, получено %v", err)
	}
}

func TestCodelistGet_Unknown(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.codelists.Get("no-such-codelist"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено %v", err)
	}
}

func TestCodelistResolves(t *testing.T) {
	env := newTestEnv(t)

	if !env.codelists.Resolves(dcat.CodelistFrequency, "http://publications.europa.eu/resource/authority/frequency/DAILY") {
		t.Error("известное значение должно находиться")
	}
	if env.codelists.Resolves(dcat.CodelistFrequency, "http://example.com/unknown") {
		t.Error("неизвестное значение не должно находиться")
	}
	if env.codelists.Resolves("no-such-codelist", "http://example.com/x") {
		t.Error("отсутствующий кодлист не разрешает значения")
	}
}
