// Пакет attr — чтение и запись файлов метаданных (attr.json).
//
// Метаданные каждой записи каталога хранятся в отдельном файле
// {id}.attr.json в защищённой директории (metadata sidecar store),
// физически отделённой от директорий содержимого. Так листинг
// с фильтрацией по политике доступа не раскрывает пути к содержимому.
// Sidecar — единственный источник истины для метаданных.
// Все операции записи выполняются атомарно: temp → fsync → rename.
package attr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/godatacatalog/internal/domain/model"
)

// AttrSuffix — суффикс файла метаданных.
const AttrSuffix = ".attr.json"

// maxAttrFileSize — максимальный допустимый размер attr.json (16 КБ).
// Языковые карты имён и агрегаты фасетов укладываются с запасом;
// ограничение гарантирует атомарность записи.
const maxAttrFileSize = 16384

// Store — хранилище sidecar-файлов метаданных в одной директории.
type Store struct {
	dir string
}

// NewStore создаёт хранилище метаданных. Создаёт директорию,
// если она не существует.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию метаданных %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir возвращает путь к директории метаданных.
func (s *Store) Dir() string {
	return s.dir
}

// Path возвращает путь к attr.json для записи с данным идентификатором.
func (s *Store) Path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+AttrSuffix)
}

// IsAttrFile проверяет, является ли путь файлом метаданных.
func IsAttrFile(path string) bool {
	return strings.HasSuffix(path, AttrSuffix)
}

// Write атомарно записывает метаданные записи.
// Паттерн: JSON → temp файл → fsync → atomic rename.
// Возвращает ошибку, если сериализованные данные превышают лимит.
func (s *Store) Write(meta *model.FileMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	// Проверка размера для гарантии атомарности
	if len(data) > maxAttrFileSize {
		return fmt.Errorf("размер attr.json (%d байт) превышает максимум (%d байт)", len(data), maxAttrFileSize)
	}

	path := s.Path(meta.Id)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Read читает и десериализует метаданные записи.
// Возвращает (nil, nil), если sidecar отсутствует.
func (s *Store) Read(id uuid.UUID) (*model.FileMetadata, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения attr.json %s: %w", s.Path(id), err)
	}

	var meta model.FileMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("ошибка десериализации attr.json %s: %w", s.Path(id), err)
	}

	return &meta, nil
}

// Delete удаляет attr.json записи.
// Возвращает nil, если файл уже не существует.
func (s *Store) Delete(id uuid.UUID) error {
	err := os.Remove(s.Path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления attr.json %s: %w", s.Path(id), err)
	}
	return nil
}

// ScanAll сканирует директорию и возвращает все метаданные.
// Невалидные sidecar-файлы пропускаются.
// Используется при построении in-memory индекса при старте.
func (s *Store) ScanAll() ([]*model.FileMetadata, error) {
	pattern := filepath.Join(s.dir, "*"+AttrSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", s.dir, err)
	}

	var result []*model.FileMetadata
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta model.FileMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			// Пропускаем невалидные attr.json
			continue
		}
		result = append(result, &meta)
	}

	return result, nil
}
