package policy

import (
	"testing"

	"github.com/google/uuid"

	"github.com/bigkaa/godatacatalog/internal/domain/model"
)

// testRecord создаёт метаданные записи для тестов политик.
func testRecord(publisherURI string, isPublic bool) *model.FileMetadata {
	meta := &model.FileMetadata{
		Id:       uuid.New(),
		Type:     model.TypeDatasetRegistration,
		IsPublic: isPublic,
	}
	if publisherURI != "" {
		meta.Publisher = &publisherURI
	}
	return meta
}

// TestAnonymous_ReadsOnlyPublic проверяет, что анонимная политика
// видит только публичные записи и не может писать.
func TestAnonymous_ReadsOnlyPublic(t *testing.T) {
	p := Anonymous()

	public := testRecord("http://example.com/publisher", true)
	private := testRecord("http://example.com/publisher", false)

	if !p.CanRead(public) {
		t.Error("анонимный доступ: публичная запись должна читаться")
	}
	if p.CanRead(private) {
		t.Error("анонимный доступ: непубличная запись не должна читаться")
	}
	if p.CanWrite(public) || p.CanWrite(private) {
		t.Error("анонимный доступ: запись должна быть запрещена")
	}
}

// TestPublisher_OwnRecords проверяет доступ поставщика к собственным записям.
func TestPublisher_OwnRecords(t *testing.T) {
	p := Publisher("http://example.com/publisher")

	own := testRecord("http://example.com/publisher", false)
	if !p.CanRead(own) {
		t.Error("поставщик должен читать собственную непубличную запись")
	}
	if !p.CanWrite(own) {
		t.Error("поставщик должен изменять собственную запись")
	}
}

// TestPublisher_ForeignRecords проверяет доступ поставщика к чужим записям.
func TestPublisher_ForeignRecords(t *testing.T) {
	p := Publisher("http://example.com/publisher")

	cases := []struct {
		name     string
		meta     *model.FileMetadata
		canRead  bool
		canWrite bool
	}{
		{"чужая публичная", testRecord("http://example.com/other", true), true, false},
		{"чужая непубличная", testRecord("http://example.com/other", false), false, false},
		{"без владельца публичная", testRecord("", true), true, false},
		{"без владельца непубличная", testRecord("", false), false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.CanRead(tc.meta); got != tc.canRead {
				t.Errorf("CanRead: ожидалось %v, получено %v", tc.canRead, got)
			}
			if got := p.CanWrite(tc.meta); got != tc.canWrite {
				t.Errorf("CanWrite: ожидалось %v, получено %v", tc.canWrite, got)
			}
		})
	}
}

// TestPublisher_EmptyURI проверяет, что поставщик с пустым URI
// не получает права владельца на записи без Publisher.
func TestPublisher_EmptyURI(t *testing.T) {
	p := Publisher("")

	orphan := testRecord("", false)
	if p.CanRead(orphan) || p.CanWrite(orphan) {
		t.Error("пустой URI поставщика не должен давать права владельца")
	}
}

// TestAll_Unrestricted проверяет, что политика суперадмина не ограничена.
func TestAll_Unrestricted(t *testing.T) {
	p := All()

	private := testRecord("http://example.com/publisher", false)
	if !p.CanRead(private) || !p.CanWrite(private) {
		t.Error("суперадмин должен иметь полный доступ")
	}
}
