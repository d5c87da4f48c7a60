// upload.go — сервис загрузки файлов дистрибуций.
//
// Файл данных всегда принадлежит дистрибуции (ParentFile) и
// наследует её видимость. Содержимое пишется потоково, без
// буферизации в памяти.
package service

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/domain/mode"
	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
	"github.com/bigkaa/godatacatalog/internal/storage/engine"
)

// UploadParams — параметры загрузки файла дистрибуции.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// DistributionID — идентификатор дистрибуции-родителя
	DistributionID uuid.UUID
	// OriginalFilename — оригинальное имя файла
	OriginalFilename string
	// ContentType — MIME-тип файла
	ContentType string
	// Size — размер файла (из Content-Length multipart part)
	Size int64
	// Caller — вызывающий
	Caller policy.Caller
}

// UploadResult — результат загрузки.
type UploadResult struct {
	Metadata *model.FileMetadata
	Size     int64
}

// UploadError — ошибка загрузки с HTTP-кодом.
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploadService — сервис загрузки файлов дистрибуций.
type UploadService struct {
	eng         *engine.Engine
	sm          *mode.StateMachine
	maxFileSize int64
	logger      *slog.Logger
}

// NewUploadService создаёт сервис загрузки.
func NewUploadService(eng *engine.Engine, sm *mode.StateMachine, maxFileSize int64, logger *slog.Logger) *UploadService {
	return &UploadService{
		eng:         eng,
		sm:          sm,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "upload_service")),
	}
}

// Upload загружает файл под дистрибуцию.
//
// Поток:
//  1. Проверка режима каталога
//  2. Проверка размера и родительской дистрибуции
//  3. Потоковая запись через движок (WAL внутри)
func (s *UploadService) Upload(params UploadParams) (*UploadResult, *UploadError) {
	if !s.sm.CanPerform(mode.OpWrite) {
		return nil, &UploadError{
			StatusCode: http.StatusConflict,
			Code:       apierrors.CodeModeNotAllowed,
			Message:    fmt.Sprintf("Загрузка файлов недоступна в режиме %s", s.sm.CurrentMode()),
		}
	}

	if !params.Caller.CanPublish() {
		return nil, &UploadError{
			StatusCode: http.StatusForbidden,
			Code:       apierrors.CodeForbidden,
			Message:    "Загрузка файлов доступна только поставщикам",
		}
	}

	if s.maxFileSize > 0 && params.Size > s.maxFileSize {
		return nil, &UploadError{
			StatusCode: http.StatusRequestEntityTooLarge,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", params.Size, s.maxFileSize),
		}
	}

	parent, err := s.eng.GetFileMetadata(params.DistributionID, params.Caller.Policy())
	if err != nil {
		s.logger.Error("Ошибка чтения дистрибуции",
			slog.String("distribution", params.DistributionID.String()),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка чтения дистрибуции",
		}
	}
	if parent == nil || parent.Type != model.TypeDistributionRegistration {
		return nil, &UploadError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    fmt.Sprintf("Дистрибуция %s не найдена", params.DistributionID),
		}
	}

	filename := params.OriginalFilename
	metadata := &model.FileMetadata{
		Id:               uuid.New(),
		Type:             model.TypeDistributionFile,
		ParentFile:       &parent.Id,
		Publisher:        parent.Publisher,
		IsPublic:         parent.IsPublic,
		Name:             model.LanguageMap{model.DefaultLanguage: filename},
		OriginalFileName: &filename,
		AdditionalValues: map[string][]string{
			"content_type": {detectContentType(params.ContentType)},
		},
	}

	saved, size, err := s.eng.InsertFileFrom(params.Reader, metadata, true, params.Caller.Policy())
	if err != nil {
		if err == engine.ErrForbidden {
			return nil, &UploadError{
				StatusCode: http.StatusForbidden,
				Code:       apierrors.CodeForbidden,
				Message:    "Недостаточно прав для загрузки файла",
			}
		}
		s.logger.Error("Ошибка сохранения файла",
			slog.String("distribution", params.DistributionID.String()),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка сохранения файла на диск",
		}
	}

	s.logger.Info("Файл загружен",
		slog.String("id", saved.Id.String()),
		slog.String("filename", filename),
		slog.Int64("size", size),
		slog.String("distribution", parent.Id.String()),
	)

	return &UploadResult{Metadata: saved, Size: size}, nil
}

// detectContentType нормализует Content-Type из multipart part.
// Пустое значение заменяется на application/octet-stream.
func detectContentType(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
