// Пакет engine — движок хранилища каталога.
//
// Объединяет sidecar-хранилище метаданных (attr), хранилище
// содержимого (docstore), поисковый индекс (index) и WAL в единый
// набор операций с проверкой политики доступа. Все операции записи
// сериализуются по идентификатору записи (striped mutex,
// last-writer-wins), читатели видят состояние до или после записи,
// но не промежуточное.
//
// Отказ политики на чтение не отличим от отсутствия записи
// (nil, nil) — существование скрытых записей не раскрывается.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/godatacatalog/internal/domain/model"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
	"github.com/bigkaa/godatacatalog/internal/storage/attr"
	"github.com/bigkaa/godatacatalog/internal/storage/docstore"
	"github.com/bigkaa/godatacatalog/internal/storage/index"
	"github.com/bigkaa/godatacatalog/internal/storage/wal"
)

// ErrForbidden — операция записи запрещена политикой доступа.
var ErrForbidden = errors.New("операция запрещена политикой доступа")

// ErrNotFound — запись не существует или не видна вызывающему.
var ErrNotFound = errors.New("запись не найдена")

// lockStripes — количество полос мьютексов записи.
const lockStripes = 64

var (
	indexUpdatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dc_index_updates_skipped_total",
		Help: "Количество обновлений индекса, пропущенных из-за неготовности индекса (устраняется при reconcile).",
	})

	walRecoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dc_wal_recovered_total",
		Help: "Количество незавершённых транзакций WAL, обработанных при старте.",
	}, []string{"operation"})
)

// Engine — движок хранилища.
type Engine struct {
	attrs  *attr.Store
	docs   *docstore.Store
	idx    *index.Index
	wal    *wal.WAL
	logger *slog.Logger

	// Полосы мьютексов: конкурентные записи в одну запись
	// сериализуются, в разные — идут параллельно
	locks [lockStripes]sync.Mutex
}

// New создаёт движок над готовыми хранилищами.
func New(attrs *attr.Store, docs *docstore.Store, idx *index.Index, w *wal.WAL, logger *slog.Logger) *Engine {
	return &Engine{
		attrs:  attrs,
		docs:   docs,
		idx:    idx,
		wal:    w,
		logger: logger.With(slog.String("component", "engine")),
	}
}

// Attrs возвращает sidecar-хранилище метаданных.
func (e *Engine) Attrs() *attr.Store {
	return e.attrs
}

// Docs возвращает хранилище содержимого.
func (e *Engine) Docs() *docstore.Store {
	return e.docs
}

// Index возвращает поисковый индекс.
func (e *Engine) Index() *index.Index {
	return e.idx
}

// WAL возвращает журнал транзакций.
func (e *Engine) WAL() *wal.WAL {
	return e.wal
}

// lockFor возвращает мьютекс полосы для данного идентификатора.
func (e *Engine) lockFor(id uuid.UUID) *sync.Mutex {
	return &e.locks[int(id[0])%lockStripes]
}

// GetFileMetadata возвращает метаданные записи.
// Возвращает (nil, nil), если запись отсутствует или не видна
// вызывающему согласно политике.
func (e *Engine) GetFileMetadata(id uuid.UUID, p policy.Policy) (*model.FileMetadata, error) {
	meta, err := e.attrs.Read(id)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения метаданных %s: %w", id, err)
	}
	if meta == nil || !p.CanRead(meta) {
		return nil, nil
	}
	return meta, nil
}

// GetFileState возвращает запись целиком: метаданные + содержимое.
// Возвращает (nil, nil), если запись отсутствует или не видна.
func (e *Engine) GetFileState(id uuid.UUID, p policy.Policy) (*model.FileState, error) {
	meta, err := e.GetFileMetadata(id, p)
	if err != nil || meta == nil {
		return nil, err
	}

	content, err := e.docs.Read(id)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения содержимого %s: %w", id, err)
	}

	return &model.FileState{Metadata: meta, Content: content}, nil
}

// InsertFile создаёт или заменяет запись: содержимое в docstore
// (публичная/непубличная папка по metadata.IsPublic), метаданные в
// sidecar, индекс обновляется синхронно.
//
// При замене существующей записи Id и Created переносятся из
// предыдущей версии. content == nil означает «содержимое не меняется»
// (перемещается между папками видимости при необходимости).
//
// publishToIndex == false пропускает обновление индекса — для
// массовых операций с последующим reconcile.
func (e *Engine) InsertFile(content []byte, metadata *model.FileMetadata, publishToIndex bool, p policy.Policy) (*model.FileMetadata, error) {
	if metadata == nil {
		return nil, errors.New("метаданные не заданы")
	}
	if metadata.Id == uuid.Nil {
		return nil, errors.New("идентификатор записи не задан")
	}

	lock := e.lockFor(metadata.Id)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()

	existing, err := e.attrs.Read(metadata.Id)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения текущих метаданных %s: %w", metadata.Id, err)
	}

	var meta model.FileMetadata
	if existing != nil {
		if !p.CanWrite(existing) {
			return nil, ErrForbidden
		}
		meta = metadata.CopyForward(existing, now)
	} else {
		if !p.CanWrite(metadata) {
			return nil, ErrForbidden
		}
		meta = *metadata
		meta.Created = now
		meta.LastModified = now
	}
	meta.Name = meta.Name.Trimmed()

	tx, err := e.wal.StartTransaction(wal.OpRecordInsert, meta.Id.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия транзакции WAL: %w", err)
	}

	if content != nil {
		if err := e.docs.Write(meta.Id, content, meta.IsPublic); err != nil {
			e.rollback(tx.TransactionID)
			return nil, fmt.Errorf("ошибка записи содержимого %s: %w", meta.Id, err)
		}
	} else if e.docs.Exists(meta.Id) {
		if err := e.docs.SetVisibility(meta.Id, meta.IsPublic); err != nil {
			e.rollback(tx.TransactionID)
			return nil, fmt.Errorf("ошибка смены видимости %s: %w", meta.Id, err)
		}
	}

	if err := e.attrs.Write(&meta); err != nil {
		e.rollback(tx.TransactionID)
		return nil, fmt.Errorf("ошибка записи метаданных %s: %w", meta.Id, err)
	}

	if err := e.wal.Commit(tx.TransactionID); err != nil {
		// Запись на диске уже завершена, транзакция зависнет
		// как pending до recovery — операция считается успешной
		e.logger.Error("Ошибка подтверждения транзакции WAL",
			slog.String("tx_id", tx.TransactionID),
			slog.String("error", err.Error()),
		)
	}

	// Ошибка обновления индекса не откатывает запись:
	// расхождение устраняется периодическим reconcile
	if publishToIndex {
		if e.idx.IsReady() {
			e.idx.Add(&meta)
		} else {
			indexUpdatesSkipped.Inc()
			e.logger.Warn("Индекс не готов, обновление пропущено",
				slog.String("id", meta.Id.String()),
			)
		}
	}

	return &meta, nil
}

// InsertFileFrom — потоковый вариант InsertFile для больших файлов
// дистрибуций: содержимое пишется из io.Reader без буферизации
// в памяти. Возвращает записанный размер.
func (e *Engine) InsertFileFrom(r io.Reader, metadata *model.FileMetadata, publishToIndex bool, p policy.Policy) (*model.FileMetadata, int64, error) {
	if metadata == nil {
		return nil, 0, errors.New("метаданные не заданы")
	}
	if metadata.Id == uuid.Nil {
		return nil, 0, errors.New("идентификатор записи не задан")
	}

	lock := e.lockFor(metadata.Id)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()

	existing, err := e.attrs.Read(metadata.Id)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения текущих метаданных %s: %w", metadata.Id, err)
	}

	var meta model.FileMetadata
	if existing != nil {
		if !p.CanWrite(existing) {
			return nil, 0, ErrForbidden
		}
		meta = metadata.CopyForward(existing, now)
	} else {
		if !p.CanWrite(metadata) {
			return nil, 0, ErrForbidden
		}
		meta = *metadata
		meta.Created = now
		meta.LastModified = now
	}
	meta.Name = meta.Name.Trimmed()

	tx, err := e.wal.StartTransaction(wal.OpRecordInsert, meta.Id.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка открытия транзакции WAL: %w", err)
	}

	size, err := e.docs.WriteFrom(meta.Id, r, meta.IsPublic)
	if err != nil {
		e.rollback(tx.TransactionID)
		return nil, 0, fmt.Errorf("ошибка записи содержимого %s: %w", meta.Id, err)
	}

	if err := e.attrs.Write(&meta); err != nil {
		e.rollback(tx.TransactionID)
		return nil, 0, fmt.Errorf("ошибка записи метаданных %s: %w", meta.Id, err)
	}

	if err := e.wal.Commit(tx.TransactionID); err != nil {
		e.logger.Error("Ошибка подтверждения транзакции WAL",
			slog.String("tx_id", tx.TransactionID),
			slog.String("error", err.Error()),
		)
	}

	if publishToIndex {
		if e.idx.IsReady() {
			e.idx.Add(&meta)
		} else {
			indexUpdatesSkipped.Inc()
		}
	}

	return &meta, size, nil
}

// DeleteFile удаляет запись вместе с дочерними записями
// (датасет → дистрибуции → файлы). Идемпотентна: удаление
// отсутствующей записи — успех.
//
// Возвращает ErrNotFound, если запись не видна вызывающему,
// и ErrForbidden, если видна, но запись запрещена.
func (e *Engine) DeleteFile(id uuid.UUID, p policy.Policy) error {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	meta, err := e.attrs.Read(id)
	if err != nil {
		return fmt.Errorf("ошибка чтения метаданных %s: %w", id, err)
	}
	if meta == nil {
		return nil
	}
	if !p.CanRead(meta) {
		return ErrNotFound
	}
	if !p.CanWrite(meta) {
		return ErrForbidden
	}

	children := e.descendants(id)

	op := wal.OpRecordDelete
	var childIDs []string
	if len(children) > 0 {
		op = wal.OpCascadeDelete
		for _, c := range children {
			childIDs = append(childIDs, c.String())
		}
	}

	tx, err := e.wal.StartTransaction(op, id.String(), childIDs)
	if err != nil {
		return fmt.Errorf("ошибка открытия транзакции WAL: %w", err)
	}

	// Дочерние записи удаляются первыми: при сбое посередине
	// recovery доведёт удаление до конца, осиротевших потомков
	// не останется
	for i := len(children) - 1; i >= 0; i-- {
		if err := e.removeRecord(children[i]); err != nil {
			return fmt.Errorf("ошибка каскадного удаления %s: %w", children[i], err)
		}
	}

	if err := e.removeRecord(id); err != nil {
		return fmt.Errorf("ошибка удаления %s: %w", id, err)
	}

	if err := e.wal.Commit(tx.TransactionID); err != nil {
		e.logger.Error("Ошибка подтверждения транзакции WAL",
			slog.String("tx_id", tx.TransactionID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// rollback откатывает транзакцию WAL, ошибка только логируется.
func (e *Engine) rollback(txID string) {
	if err := e.wal.Rollback(txID); err != nil {
		e.logger.Error("Ошибка отката транзакции WAL",
			slog.String("tx_id", txID),
			slog.String("error", err.Error()),
		)
	}
}

// removeRecord удаляет одну запись из всех хранилищ.
func (e *Engine) removeRecord(id uuid.UUID) error {
	if err := e.docs.Delete(id); err != nil {
		return err
	}
	if err := e.attrs.Delete(id); err != nil {
		return err
	}
	e.idx.Remove(id)
	return nil
}

// descendants возвращает всех потомков записи в порядке
// «родители перед детьми» (обход в ширину по индексу).
func (e *Engine) descendants(id uuid.UUID) []uuid.UUID {
	var result []uuid.UUID
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range e.idx.Children(current) {
			result = append(result, child.Id)
			queue = append(queue, child.Id)
		}
	}
	return result
}

// Children возвращает дочерние записи, видимые вызывающему.
func (e *Engine) Children(id uuid.UUID, p policy.Policy) []*model.FileMetadata {
	var result []*model.FileMetadata
	for _, child := range e.idx.Children(id) {
		if p.CanRead(child) {
			result = append(result, child)
		}
	}
	return result
}

// List выполняет поисковый запрос с фильтрацией по политике доступа.
func (e *Engine) List(q index.Query, p policy.Policy) index.Result {
	return e.idx.Search(q, p.CanRead)
}

// Recover обрабатывает незавершённые транзакции WAL при старте.
// Незавершённые удаления доводятся до конца (удаление идемпотентно),
// незавершённые вставки помечаются как откаченные — консистентность
// файлов восстанавливает последующее построение индекса и reconcile.
func (e *Engine) Recover() error {
	pending, err := e.wal.RecoverPending()
	if err != nil {
		return fmt.Errorf("ошибка чтения незавершённых транзакций: %w", err)
	}

	for _, entry := range pending {
		walRecoveredTotal.WithLabelValues(string(entry.Operation)).Inc()

		switch entry.Operation {
		case wal.OpRecordDelete, wal.OpCascadeDelete:
			for i := len(entry.ChildIDs) - 1; i >= 0; i-- {
				childID, err := uuid.Parse(entry.ChildIDs[i])
				if err != nil {
					continue
				}
				if err := e.removeRecord(childID); err != nil {
					return fmt.Errorf("ошибка довершения удаления %s: %w", childID, err)
				}
			}
			recordID, err := uuid.Parse(entry.RecordID)
			if err == nil {
				if err := e.removeRecord(recordID); err != nil {
					return fmt.Errorf("ошибка довершения удаления %s: %w", recordID, err)
				}
			}
			if err := e.wal.Commit(entry.TransactionID); err != nil {
				return fmt.Errorf("ошибка подтверждения транзакции %s: %w", entry.TransactionID, err)
			}
			e.logger.Info("Незавершённое удаление доведено до конца",
				slog.String("tx_id", entry.TransactionID),
				slog.String("record_id", entry.RecordID),
			)
		default:
			if err := e.wal.Rollback(entry.TransactionID); err != nil {
				return fmt.Errorf("ошибка отката транзакции %s: %w", entry.TransactionID, err)
			}
			e.logger.Warn("Незавершённая вставка откачена",
				slog.String("tx_id", entry.TransactionID),
				slog.String("record_id", entry.RecordID),
			)
		}
	}

	return nil
}
