// Пакет wal — файловый Write-Ahead Log для обеспечения атомарности
// операций над записями каталога. Каждая операция затрагивает
// несколько файлов (sidecar метаданных, содержимое, каскады),
// поэтому перед выполнением фиксируется намерение.
// Каждая транзакция — отдельный файл {tx_id}.wal.json в DC_WAL_DIR.
package wal

import (
	"time"
)

// OperationType — тип операции, записываемой в WAL.
type OperationType string

const (
	// OpRecordInsert — создание или замена записи (метаданные + содержимое)
	OpRecordInsert OperationType = "record_insert"
	// OpRecordDelete — удаление записи
	OpRecordDelete OperationType = "record_delete"
	// OpCascadeDelete — удаление записи вместе с дочерними
	OpCascadeDelete OperationType = "cascade_delete"
)

// TransactionStatus — статус транзакции WAL.
type TransactionStatus string

const (
	// StatusPending — транзакция начата, операция в процессе
	StatusPending TransactionStatus = "pending"
	// StatusCommitted — транзакция успешно завершена
	StatusCommitted TransactionStatus = "committed"
	// StatusRolledBack — транзакция отменена (ошибка или ручной rollback)
	StatusRolledBack TransactionStatus = "rolled_back"
)

// Entry — запись WAL. Хранится как JSON-файл {tx_id}.wal.json.
type Entry struct {
	// TransactionID — уникальный идентификатор транзакции (UUID v4)
	TransactionID string `json:"transaction_id"`

	// Operation — тип операции
	Operation OperationType `json:"operation"`

	// Status — текущий статус транзакции
	Status TransactionStatus `json:"status"`

	// RecordID — идентификатор записи каталога, над которой
	// выполняется операция
	RecordID string `json:"record_id"`

	// ChildIDs — идентификаторы дочерних записей, затрагиваемых
	// каскадным удалением (только для cascade_delete)
	ChildIDs []string `json:"child_ids,omitempty"`

	// StartedAt — время начала транзакции (UTC)
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения транзакции (UTC).
	// nil для pending транзакций.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// walFileName возвращает имя файла WAL для данной транзакции.
func walFileName(txID string) string {
	return txID + ".wal.json"
}
