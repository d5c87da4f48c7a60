// gc.go — сервис фоновой очистки хранилища.
//
// GC выполняет две задачи:
//  1. Удаляет осиротевшее содержимое — файлы без attr.json
//     (осколки прерванных вставок после отката WAL)
//  2. Удаляет устаревшие .tmp файлы, оставшиеся от прерванных
//     атомарных записей
//
// Запускается как горутина с периодическим тикером (DC_GC_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/godatacatalog/internal/storage/engine"
)

// tmpMaxAge — возраст, после которого .tmp файл считается брошенным.
const tmpMaxAge = time.Hour

// Prometheus метрики GC
var (
	gcRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dc_gc_runs_total",
		Help: "Общее количество запусков GC",
	})

	gcOrphansDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dc_gc_orphans_deleted_total",
		Help: "Общее количество осиротевших файлов содержимого, удалённых GC",
	})

	gcTmpDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dc_gc_tmp_deleted_total",
		Help: "Общее количество устаревших .tmp файлов, удалённых GC",
	})

	gcDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dc_gc_duration_seconds",
		Help:    "Длительность выполнения GC в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// GCResult — результат одного запуска GC.
type GCResult struct {
	// OrphansDeleted — количество удалённого осиротевшего содержимого
	OrphansDeleted int
	// TmpDeleted — количество удалённых .tmp файлов
	TmpDeleted int
	// Errors — количество ошибок при обработке
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// GCService — сервис фоновой очистки хранилища.
type GCService struct {
	eng      *engine.Engine
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewGCService создаёт сервис GC.
func NewGCService(eng *engine.Engine, interval time.Duration, logger *slog.Logger) *GCService {
	return &GCService{
		eng:      eng,
		interval: interval,
		logger:   logger.With(slog.String("component", "gc")),
	}
}

// Start запускает фоновую горутину GC с периодическим тикером.
// Вызывается один раз при старте приложения.
func (gc *GCService) Start(ctx context.Context) {
	gcCtx, cancel := context.WithCancel(ctx)
	gc.cancel = cancel

	go gc.run(gcCtx)

	gc.logger.Info("GC запущен",
		slog.String("interval", gc.interval.String()),
	)
}

// Stop останавливает фоновый процесс GC.
func (gc *GCService) Stop() {
	if gc.cancel != nil {
		gc.cancel()
	}
	gc.logger.Info("GC остановлен")
}

// run — основной цикл фоновой горутины.
func (gc *GCService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	gc.RunOnce()

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gc.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл GC.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (gc *GCService) RunOnce() *GCResult {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	start := time.Now()
	result := &GCResult{}

	gc.logger.Debug("GC запуск начат")

	orphans, errs := gc.deleteOrphans()
	result.OrphansDeleted = orphans
	result.Errors = errs

	result.TmpDeleted = gc.deleteStaleTmp()

	result.Duration = time.Since(start)

	gcRunsTotal.Inc()
	gcOrphansDeletedTotal.Add(float64(orphans))
	gcTmpDeletedTotal.Add(float64(result.TmpDeleted))
	gcDurationSeconds.Observe(result.Duration.Seconds())

	gc.logger.Info("GC завершён",
		slog.Int("orphans_deleted", result.OrphansDeleted),
		slog.Int("tmp_deleted", result.TmpDeleted),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// deleteOrphans удаляет содержимое без sidecar-файла метаданных.
func (gc *GCService) deleteOrphans() (deleted, errors int) {
	contentIDs, err := gc.eng.Docs().ContentIDs()
	if err != nil {
		gc.logger.Error("GC: ошибка сканирования содержимого",
			slog.String("error", err.Error()),
		)
		return 0, 1
	}

	for id := range contentIDs {
		meta, err := gc.eng.Attrs().Read(id)
		if err != nil {
			gc.logger.Error("GC: ошибка чтения метаданных",
				slog.String("id", id.String()),
				slog.String("error", err.Error()),
			)
			errors++
			continue
		}
		if meta != nil {
			continue
		}

		if err := gc.eng.Docs().Delete(id); err != nil {
			gc.logger.Error("GC: ошибка удаления осиротевшего содержимого",
				slog.String("id", id.String()),
				slog.String("error", err.Error()),
			)
			errors++
			continue
		}

		gc.logger.Debug("GC: осиротевшее содержимое удалено",
			slog.String("id", id.String()),
		)
		deleted++
	}

	return deleted, errors
}

// deleteStaleTmp удаляет брошенные .tmp файлы старше tmpMaxAge
// из всех каталогов хранилища.
func (gc *GCService) deleteStaleTmp() int {
	dirs := []string{
		gc.eng.Attrs().Dir(),
		filepath.Join(gc.eng.Docs().RootDir(), "public"),
		filepath.Join(gc.eng.Docs().RootDir(), "protected"),
	}

	cutoff := time.Now().Add(-tmpMaxAge)
	deleted := 0

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmp") {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				gc.logger.Warn("GC: ошибка удаления .tmp файла",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				continue
			}
			deleted++
		}
	}

	return deleted
}
