// reconcile.go — сервис фоновой сверки хранилища каталога.
//
// Сверка сравнивает sidecar-хранилище метаданных с хранилищем
// содержимого и пересобирает поисковый индекс из sidecar-файлов.
// Пересборка устраняет пропущенные обновления индекса (контракт
// at-least-once: успешная запись рано или поздно попадает в индекс).
//
// Обнаруживаемые проблемы:
//   - orphaned_content: содержимое на диске без attr.json
//   - missing_content: attr.json без содержимого (кроме записей,
//     у которых содержимое не обязательно)
//   - broken_parent: запись ссылается на отсутствующего родителя
//
// Запускается как горутина с периодическим тикером
// (DC_RECONCILE_INTERVAL) и вручную через maintenance endpoint.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/godatacatalog/internal/storage/engine"
)

// Prometheus метрики reconciliation
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dc_reconcile_runs_total",
		Help: "Общее количество запусков reconciliation",
	})

	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dc_reconcile_issues_total",
		Help: "Общее количество проблем, обнаруженных reconciliation",
	}, []string{"type"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dc_reconcile_duration_seconds",
		Help:    "Длительность выполнения reconciliation в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// Типы проблем сверки.
const (
	IssueOrphanedContent = "orphaned_content"
	IssueMissingContent  = "missing_content"
	IssueBrokenParent    = "broken_parent"
)

// ReconcileIssue — одна обнаруженная проблема.
type ReconcileIssue struct {
	Type        string     `json:"type"`
	RecordId    *uuid.UUID `json:"record_id,omitempty"`
	Description string     `json:"description"`
}

// ReconcileSummary — сводка по типам проблем.
type ReconcileSummary struct {
	Ok              int `json:"ok"`
	OrphanedContent int `json:"orphaned_content"`
	MissingContent  int `json:"missing_content"`
	BrokenParents   int `json:"broken_parents"`
}

// ReconcileResponse — результат одного запуска сверки.
type ReconcileResponse struct {
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    time.Time        `json:"completed_at"`
	RecordsChecked int              `json:"records_checked"`
	Issues         []ReconcileIssue `json:"issues"`
	Summary        ReconcileSummary `json:"summary"`
}

// ReconcileService — сервис фоновой сверки хранилища.
type ReconcileService struct {
	eng      *engine.Engine
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
}

// NewReconcileService создаёт сервис reconciliation.
func NewReconcileService(eng *engine.Engine, interval time.Duration, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		eng:      eng,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
func (rs *ReconcileService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel

	go rs.run(rsCtx)

	rs.logger.Info("Reconciliation запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает фоновый процесс.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
	}
	rs.logger.Info("Reconciliation остановлена")
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

// run — основной цикл фоновой горутины.
func (rs *ReconcileService) run(ctx context.Context) {
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Если сверка уже выполняется, возвращает nil, true.
func (rs *ReconcileService) RunOnce() (*ReconcileResponse, bool) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Reconciliation уже выполняется, пропуск")
		return nil, true
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	rs.logger.Info("Reconciliation начата")

	issues, checked := rs.reconcile()

	// Пересборка индекса из sidecar-файлов: устраняет пропущенные
	// обновления после успешных записей
	if err := rs.eng.Index().BuildFrom(rs.eng.Attrs()); err != nil {
		rs.logger.Error("Ошибка пересборки индекса",
			slog.String("error", err.Error()),
		)
	}

	// Завершённые транзакции WAL больше не нужны
	if removed, err := rs.eng.WAL().CleanCommitted(); err != nil {
		rs.logger.Warn("Ошибка очистки WAL",
			slog.String("error", err.Error()),
		)
	} else if removed > 0 {
		rs.logger.Debug("WAL очищен", slog.Int("removed", removed))
	}

	completedAt := time.Now().UTC()
	duration := completedAt.Sub(startedAt)

	summary := ReconcileSummary{}
	for _, issue := range issues {
		switch issue.Type {
		case IssueOrphanedContent:
			summary.OrphanedContent++
		case IssueMissingContent:
			summary.MissingContent++
		case IssueBrokenParent:
			summary.BrokenParents++
		}
	}
	summary.Ok = checked - len(issues)
	if summary.Ok < 0 {
		summary.Ok = 0
	}

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())
	for _, issue := range issues {
		reconcileIssuesTotal.WithLabelValues(issue.Type).Inc()
	}

	rs.logger.Info("Reconciliation завершена",
		slog.Int("records_checked", checked),
		slog.Int("issues", len(issues)),
		slog.Int("ok", summary.Ok),
		slog.Duration("duration", duration),
	)

	return &ReconcileResponse{
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
		RecordsChecked: checked,
		Issues:         issues,
		Summary:        summary,
	}, false
}

// reconcile сверяет sidecar-хранилище с хранилищем содержимого.
func (rs *ReconcileService) reconcile() ([]ReconcileIssue, int) {
	var issues []ReconcileIssue

	metadatas, err := rs.eng.Attrs().ScanAll()
	if err != nil {
		rs.logger.Error("Ошибка сканирования метаданных",
			slog.String("error", err.Error()),
		)
		return issues, 0
	}

	contentIDs, err := rs.eng.Docs().ContentIDs()
	if err != nil {
		rs.logger.Error("Ошибка сканирования содержимого",
			slog.String("error", err.Error()),
		)
		return issues, 0
	}

	known := make(map[uuid.UUID]bool, len(metadatas))
	for _, meta := range metadatas {
		known[meta.Id] = true
	}

	// 1. Содержимое без sidecar — кандидат на удаление для GC
	for id := range contentIDs {
		if !known[id] {
			recordID := id
			issues = append(issues, ReconcileIssue{
				Type:        IssueOrphanedContent,
				RecordId:    &recordID,
				Description: "содержимое на диске без attr.json",
			})
		}
	}

	// 2. Sidecar без содержимого и битые ссылки на родителя
	for _, meta := range metadatas {
		if _, ok := contentIDs[meta.Id]; !ok {
			recordID := meta.Id
			issues = append(issues, ReconcileIssue{
				Type:        IssueMissingContent,
				RecordId:    &recordID,
				Description: "attr.json без содержимого на диске",
			})
		}
		if meta.ParentFile != nil && !known[*meta.ParentFile] {
			recordID := meta.Id
			issues = append(issues, ReconcileIssue{
				Type:        IssueBrokenParent,
				RecordId:    &recordID,
				Description: "запись ссылается на отсутствующего родителя",
			})
		}
	}

	return issues, len(metadatas)
}
