// system.go — обработчик GET /api/v1/storage-info (состояние каталога).
// Публичный endpoint (без аутентификации) для мониторинга.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/godatacatalog/internal/config"
	"github.com/bigkaa/godatacatalog/internal/domain/mode"
	"github.com/bigkaa/godatacatalog/internal/storage/docstore"
	"github.com/bigkaa/godatacatalog/internal/storage/index"
)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	catalogID string
	sm        *mode.StateMachine
	idx       *index.Index
	docs      *docstore.Store
	logger    *slog.Logger
}

// NewSystemHandler создаёт обработчик системных endpoints.
func NewSystemHandler(catalogID string, sm *mode.StateMachine, idx *index.Index, docs *docstore.Store, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		catalogID: catalogID,
		sm:        sm,
		idx:       idx,
		docs:      docs,
		logger:    logger.With(slog.String("component", "system_handler")),
	}
}

// storageInfo — тело ответа GET /api/v1/storage-info.
type storageInfo struct {
	CatalogId         string           `json:"catalogId"`
	Version           string           `json:"version"`
	Mode              mode.CatalogMode `json:"mode"`
	Status            string           `json:"status"`
	AllowedOperations []mode.Operation `json:"allowedOperations"`
	Records           map[string]int   `json:"records"`
	Capacity          capacityInfo     `json:"capacity"`
}

type capacityInfo struct {
	TotalBytes     int64 `json:"totalBytes"`
	UsedBytes      int64 `json:"usedBytes"`
	AvailableBytes int64 `json:"availableBytes"`
}

// GetStorageInfo обрабатывает GET /api/v1/storage-info.
// Без аутентификации. Возвращает состояние каталога для мониторинга.
func (h *SystemHandler) GetStorageInfo(w http.ResponseWriter, _ *http.Request) {
	status := "online"
	if !h.idx.IsReady() {
		status = "maintenance"
	}

	records := map[string]int{}
	for t, n := range h.idx.CountByType() {
		records[string(t)] = n
	}

	var capacity capacityInfo
	total, used, available, err := h.docs.DiskUsage()
	if err != nil {
		h.logger.Error("Ошибка чтения дискового пространства",
			slog.String("error", err.Error()),
		)
	} else {
		capacity = capacityInfo{
			TotalBytes:     total,
			UsedBytes:      used,
			AvailableBytes: available,
		}
	}

	resp := storageInfo{
		CatalogId:         h.catalogID,
		Version:           config.Version,
		Mode:              h.sm.CurrentMode(),
		Status:            status,
		AllowedOperations: h.sm.AllowedOperations(),
		Records:           records,
		Capacity:          capacity,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
