// Пакет docstore — хранилище содержимого записей каталога на диске.
//
// Содержимое (сериализованные DCAT-документы и файлы дистрибуций)
// раскладывается по двум поддиректориям:
//
//	public/    — публично выдаваемое содержимое
//	protected/ — содержимое, доступное только по политике
//
// Метаданные записей хранятся отдельно (attr sidecar store), поэтому
// перенос содержимого между поддиректориями при смене видимости
// не затрагивает листинг метаданных.
//
// Все операции записи атомарны: temp → fsync → rename. Перенос между
// public/ и protected/ — rename в пределах одной файловой системы.
package docstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
)

// Поддиректории содержимого.
const (
	publicDir    = "public"
	protectedDir = "protected"
)

// contentSuffix — суффикс файлов содержимого.
const contentSuffix = ".content"

// Store — хранилище содержимого записей.
type Store struct {
	rootDir string
}

// New создаёт хранилище содержимого. Создаёт корневую директорию
// и поддиректории public/ и protected/, если они не существуют.
func New(rootDir string) (*Store, error) {
	for _, dir := range []string{rootDir, filepath.Join(rootDir, publicDir), filepath.Join(rootDir, protectedDir)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию содержимого %s: %w", dir, err)
		}
	}
	return &Store{rootDir: rootDir}, nil
}

// RootDir возвращает корневую директорию хранилища.
func (s *Store) RootDir() string {
	return s.rootDir
}

// path возвращает путь к файлу содержимого в указанной поддиректории.
func (s *Store) path(id uuid.UUID, public bool) string {
	sub := protectedDir
	if public {
		sub = publicDir
	}
	return filepath.Join(s.rootDir, sub, id.String()+contentSuffix)
}

// Write атомарно записывает содержимое записи в поддиректорию,
// соответствующую видимости, и удаляет копию из противоположной
// поддиректории (смена видимости при обновлении).
func (s *Store) Write(id uuid.UUID, content []byte, public bool) error {
	path := s.path(id, public)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи содержимого: %w", err)
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

	// Убираем устаревшую копию противоположной видимости
	if err := os.Remove(s.path(id, !public)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления устаревшей копии: %w", err)
	}

	return nil
}

// WriteFrom атомарно записывает содержимое из reader (streaming, для
// больших файлов дистрибуций). Возвращает размер записанных данных.
func (s *Store) WriteFrom(id uuid.UUID, r io.Reader, public bool) (int64, error) {
	path := s.path(id, public)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи содержимого: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	if err := os.Remove(s.path(id, !public)); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("ошибка удаления устаревшей копии: %w", err)
	}

	return size, nil
}

// Read возвращает содержимое записи из любой поддиректории.
// Возвращает (nil, nil), если содержимое отсутствует.
func (s *Store) Read(id uuid.UUID) ([]byte, error) {
	for _, public := range []bool{true, false} {
		data, err := os.ReadFile(s.path(id, public))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("ошибка чтения содержимого %s: %w", id, err)
		}
	}
	return nil, nil
}

// Open открывает содержимое записи для streaming-чтения.
// Возвращает файл и флаг публичности или (nil, false, nil), если
// содержимое отсутствует. Вызывающий код обязан закрыть файл.
func (s *Store) Open(id uuid.UUID) (*os.File, bool, error) {
	for _, public := range []bool{true, false} {
		f, err := os.Open(s.path(id, public))
		if err == nil {
			return f, public, nil
		}
		if !os.IsNotExist(err) {
			return nil, false, fmt.Errorf("ошибка открытия содержимого %s: %w", id, err)
		}
	}
	return nil, false, nil
}

// IsPublic проверяет, лежит ли содержимое записи в public/.
func (s *Store) IsPublic(id uuid.UUID) bool {
	_, err := os.Stat(s.path(id, true))
	return err == nil
}

// Exists проверяет наличие содержимого записи в любой поддиректории.
func (s *Store) Exists(id uuid.UUID) bool {
	for _, public := range []bool{true, false} {
		if _, err := os.Stat(s.path(id, public)); err == nil {
			return true
		}
	}
	return false
}

// SetVisibility переносит содержимое записи между public/ и protected/
// без перезаписи данных. No-op, если содержимое уже в нужной
// поддиректории или отсутствует.
func (s *Store) SetVisibility(id uuid.UUID, public bool) error {
	target := s.path(id, public)
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	source := s.path(id, !public)
	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("ошибка проверки содержимого %s: %w", id, err)
	}

	if err := os.Rename(source, target); err != nil {
		return fmt.Errorf("ошибка переноса содержимого %s: %w", id, err)
	}
	return nil
}

// Delete удаляет содержимое записи из обеих поддиректорий.
// Возвращает nil, если содержимое уже отсутствует.
func (s *Store) Delete(id uuid.UUID) error {
	for _, public := range []bool{true, false} {
		if err := os.Remove(s.path(id, public)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("ошибка удаления содержимого %s: %w", id, err)
		}
	}
	return nil
}

// ContentIDs возвращает идентификаторы всех записей, у которых есть
// содержимое. Используется GC для поиска осиротевших файлов.
func (s *Store) ContentIDs() (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool)
	for _, sub := range []string{publicDir, protectedDir} {
		entries, err := os.ReadDir(filepath.Join(s.rootDir, sub))
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования %s: %w", sub, err)
		}
		for _, e := range entries {
			name := e.Name()
			if filepath.Ext(name) != contentSuffix {
				continue
			}
			id, err := uuid.Parse(name[:len(name)-len(contentSuffix)])
			if err != nil {
				continue
			}
			result[id] = true
		}
	}
	return result, nil
}

// DiskUsage возвращает информацию о дисковом пространстве хранилища:
// total, used, available в байтах.
func (s *Store) DiskUsage() (total, used, available int64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.rootDir, &stat); err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка statfs %s: %w", s.rootDir, err)
	}

	total = int64(stat.Blocks) * int64(stat.Bsize)
	available = int64(stat.Bavail) * int64(stat.Bsize)
	used = total - available

	return total, used, available, nil
}
