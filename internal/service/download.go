// download.go — сервис выгрузки файлов дистрибуций.
package service

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/domain/mode"
	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
	"github.com/bigkaa/godatacatalog/internal/storage/engine"
)

// DownloadService — отдача файлов дистрибуций клиентам.
type DownloadService struct {
	eng    *engine.Engine
	sm     *mode.StateMachine
	logger *slog.Logger
}

// NewDownloadService создаёт сервис выгрузки.
func NewDownloadService(eng *engine.Engine, sm *mode.StateMachine, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		eng:    eng,
		sm:     sm,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// DownloadError — ошибка выгрузки с HTTP-кодом.
type DownloadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Serve отдаёт файл дистрибуции через http.ServeContent
// (Range requests, If-Modified-Since). Невидимый вызывающему файл
// неотличим от отсутствующего: 404.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, id uuid.UUID, caller policy.Caller) *DownloadError {
	if !s.sm.CanPerform(mode.OpDownload) {
		return &DownloadError{
			StatusCode: http.StatusConflict,
			Code:       apierrors.CodeModeNotAllowed,
			Message:    fmt.Sprintf("Скачивание файлов недоступно в режиме %s", s.sm.CurrentMode()),
		}
	}

	meta, err := s.eng.GetFileMetadata(id, caller.Policy())
	if err != nil {
		s.logger.Error("Ошибка чтения метаданных файла",
			slog.String("id", id.String()),
			slog.String("error", err.Error()),
		)
		return &DownloadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}
	if meta == nil || meta.Type != model.TypeDistributionFile {
		return &DownloadError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    fmt.Sprintf("Файл %s не найден", id),
		}
	}

	file, _, err := s.eng.Docs().Open(id)
	if err != nil || file == nil {
		s.logger.Error("Файл не найден на диске",
			slog.String("id", id.String()),
		)
		return &DownloadError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    fmt.Sprintf("Файл %s не найден на диске", id),
		}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return &DownloadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}

	filename := id.String()
	if meta.OriginalFileName != nil {
		filename = *meta.OriginalFileName
	}

	contentType := "application/octet-stream"
	if values := meta.AdditionalValues["content_type"]; len(values) > 0 {
		contentType = values[0]
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Accept-Ranges", "bytes")

	http.ServeContent(w, r, filename, stat.ModTime(), file)

	s.logger.Debug("Файл скачан",
		slog.String("id", id.String()),
		slog.String("filename", filename),
		slog.Int64("size", stat.Size()),
	)

	return nil
}
