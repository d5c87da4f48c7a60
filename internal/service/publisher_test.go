package service

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bigkaa/godatacatalog/internal/domain/dcat"
	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
)

func newPublisherService(t *testing.T, env *testEnv) (*PublisherService, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("ошибка генерации ключа: %v", err)
	}
	issuer := NewTokenIssuer(key, "test-key", "https://catalog.test")
	return NewPublisherService(env.eng, env.codelists, issuer, testLogger()), key
}

func validAgent(uri string) *dcat.Agent {
	return &dcat.Agent{
		Type:           dcat.TypeAgent,
		URI:            uri,
		Name:           model.LanguageMap{"sk": "Testovací poskytovateľ"},
		LegalForm:      "https://data.gov.sk/def/legal-form/331",
		Email:          "office@example.com",
		ShouldBePublic: true,
	}
}

func TestPublisherCreate_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	publishers, _ := newPublisherService(t, env)

	id, err := publishers.Create(validAgent(testPublisher), publisherCaller())
	if err != nil {
		t.Fatalf("ошибка создания поставщика: %v", err)
	}

	doc, meta, err := publishers.Get(id, policy.Caller{})
	if err != nil {
		t.Fatalf("ошибка чтения поставщика: %v", err)
	}
	if meta.Type != model.TypePublisherRegistration {
		t.Errorf("неверный тип записи: %s", meta.Type)
	}
	if doc.URI != testPublisher {
		t.Errorf("неверный URI: %s", doc.URI)
	}
	if meta.PublisherURI() != testPublisher {
		t.Errorf("запись должна принадлежать самому поставщику: %s", meta.PublisherURI())
	}
}

func TestPublisherCreate_URIUniqueness(t *testing.T) {
	env := newTestEnv(t)
	publishers, _ := newPublisherService(t, env)
	caller := publisherCaller()

	if _, err := publishers.Create(validAgent(testPublisher), caller); err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}

	_, err := publishers.Create(validAgent(testPublisher), caller)
	if v, ok := AsValidation(err); !ok || v["uri"] == "" {
		t.Errorf("дубликат URI должен быть отклонён, получено %v", err)
	}
}

func TestPublisherValidation(t *testing.T) {
	env := newTestEnv(t)
	publishers, _ := newPublisherService(t, env)

	doc := validAgent("")
	doc.Name = nil
	doc.LegalForm = "https://example.com/unknown-form"

	_, err := publishers.Create(doc, publisherCaller())
	v, ok := AsValidation(err)
	if !ok {
		t.Fatalf("ожидались ошибки валидации, получено %v", err)
	}
	for _, field := range []string{"name", "uri", "legalform"} {
		if _, ok := v[field]; !ok {
			t.Errorf("нет ошибки для поля %s: %v", field, v)
		}
	}
}

func TestPublisherUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	publishers, _ := newPublisherService(t, env)
	caller := publisherCaller()

	if _, err := publishers.Create(validAgent(testPublisher), caller); err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}

	update := validAgent("http://example.com/attempted-takeover")
	update.Name = model.LanguageMap{"sk": "Nové meno"}
	if err := publishers.UpdateProfile(update, caller); err != nil {
		t.Fatalf("ошибка обновления профиля: %v", err)
	}

	id := publishers.FindByURI(testPublisher)
	if id == uuid.Nil {
		t.Fatal("поставщик не найден по URI")
	}
	doc, _, err := publishers.Get(id, caller)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	// URI профиля принудительно равен URI вызывающего
	if doc.URI != testPublisher {
		t.Errorf("URI не должен меняться через профиль: %s", doc.URI)
	}
	if doc.Name.Get("sk") != "Nové meno" {
		t.Errorf("название не обновилось: %s", doc.Name.Get("sk"))
	}
}

func TestPublisherUpdate_SuperadminOnly(t *testing.T) {
	env := newTestEnv(t)
	publishers, _ := newPublisherService(t, env)

	id, err := publishers.Create(validAgent(testPublisher), publisherCaller())
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}

	err = publishers.Update(id, validAgent(testPublisher), publisherCaller())
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("обычный пользователь не может вызывать Update, получено %v", err)
	}

	superadmin := policy.Caller{Subject: "admin", Role: policy.RoleSuperadmin}
	if err := publishers.Update(id, validAgent(testPublisher), superadmin); err != nil {
		t.Errorf("суперадмин должен обновлять любого поставщика: %v", err)
	}
}

func TestImpersonate(t *testing.T) {
	env := newTestEnv(t)
	publishers, key := newPublisherService(t, env)

	id, err := publishers.Create(validAgent(testPublisher), publisherCaller())
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}

	_, err = publishers.Impersonate(id, publisherCaller())
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("имперсонация доступна только суперадмину, получено %v", err)
	}

	superadmin := policy.Caller{Subject: "admin", Role: policy.RoleSuperadmin}
	pair, err := publishers.Impersonate(id, superadmin)
	if err != nil {
		t.Fatalf("ошибка имперсонации: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("пара токенов не выдана")
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(pair.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		t.Fatalf("ошибка проверки токена: %v", err)
	}
	if claims["publisher"] != testPublisher {
		t.Errorf("неверный publisher в токене: %v", claims["publisher"])
	}
	if claims["role"] != string(policy.RolePublisherAdmin) {
		t.Errorf("неверная роль в токене: %v", claims["role"])
	}
}

func TestImpersonate_UnknownPublisher(t *testing.T) {
	env := newTestEnv(t)
	publishers, _ := newPublisherService(t, env)

	superadmin := policy.Caller{Subject: "admin", Role: policy.RoleSuperadmin}
	if _, err := publishers.Impersonate(uuid.New(), superadmin); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено %v", err)
	}
}
