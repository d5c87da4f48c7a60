// files.go — HTTP handlers загрузки и скачивания файлов дистрибуций.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/api/middleware"
	"github.com/bigkaa/godatacatalog/internal/service"
)

// multipartMemoryLimit — буфер парсинга multipart form в памяти.
const multipartMemoryLimit = 32 << 20 // 32 MB

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploadSvc   *service.UploadService
	downloadSvc *service.DownloadService
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(uploadSvc *service.UploadService, downloadSvc *service.DownloadService) *FilesHandler {
	return &FilesHandler{
		uploadSvc:   uploadSvc,
		downloadSvc: downloadSvc,
	}
}

// uploadResponse — тело ответа успешной загрузки.
type uploadResponse struct {
	Id  string `json:"id"`
	URL string `json:"url"`
}

// Upload обрабатывает POST /api/v1/upload.
// Multipart form: file (обязательно), distributionId (обязательно).
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		apierrors.WriteGeneric(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.WriteGeneric(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	distributionID, err := uuid.Parse(r.FormValue("distributionId"))
	if err != nil {
		apierrors.WriteGeneric(w, "Поле 'distributionId' обязательно и должно быть UUID")
		return
	}

	contentType := header.Header.Get("Content-Type")

	result, uerr := h.uploadSvc.Upload(service.UploadParams{
		Reader:           file,
		DistributionID:   distributionID,
		OriginalFilename: header.Filename,
		ContentType:      contentType,
		Size:             header.Size,
		Caller:           caller,
	})
	if uerr != nil {
		apierrors.WriteError(w, uerr.StatusCode, uerr.Code, uerr.Message)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Id:  result.Metadata.Id.String(),
		URL: "/api/v1/download?id=" + result.Metadata.Id.String(),
	})
}

// Download обрабатывает GET /api/v1/download?id={uuid}.
// Отдаёт содержимое через http.ServeContent (Range, If-Modified-Since).
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		apierrors.NotFound(w, "Файл не найден")
		return
	}

	if derr := h.downloadSvc.Serve(w, r, id, caller); derr != nil {
		apierrors.WriteError(w, derr.StatusCode, derr.Code, derr.Message)
	}
}
