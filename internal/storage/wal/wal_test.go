package wal

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

// testLogger — логгер, пишущий в никуда.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestWAL создаёт WAL во временной директории.
func newTestWAL(t *testing.T) *WAL {
	t.Helper()
	w, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания WAL: %v", err)
	}
	return w
}

// TestStartCommit проверяет жизненный цикл pending → committed.
func TestStartCommit(t *testing.T) {
	w := newTestWAL(t)
	recordID := uuid.New().String()

	entry, err := w.StartTransaction(OpRecordInsert, recordID, nil)
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}
	if entry.Status != StatusPending {
		t.Errorf("статус: ожидалось %s, получено %s", StatusPending, entry.Status)
	}
	if entry.RecordID != recordID {
		t.Errorf("RecordID: ожидалось %s, получено %s", recordID, entry.RecordID)
	}

	if err := w.Commit(entry.TransactionID); err != nil {
		t.Fatalf("ошибка коммита: %v", err)
	}

	got, err := w.GetTransaction(entry.TransactionID)
	if err != nil {
		t.Fatalf("ошибка чтения транзакции: %v", err)
	}
	if got.Status != StatusCommitted {
		t.Errorf("статус после коммита: %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt должен быть установлен после коммита")
	}
}

// TestRollback проверяет откат транзакции.
func TestRollback(t *testing.T) {
	w := newTestWAL(t)

	entry, err := w.StartTransaction(OpRecordDelete, uuid.New().String(), nil)
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}

	if err := w.Rollback(entry.TransactionID); err != nil {
		t.Fatalf("ошибка отката: %v", err)
	}

	got, err := w.GetTransaction(entry.TransactionID)
	if err != nil {
		t.Fatalf("ошибка чтения транзакции: %v", err)
	}
	if got.Status != StatusRolledBack {
		t.Errorf("статус после отката: %s", got.Status)
	}

	// Повторный откат невозможен
	if err := w.Rollback(entry.TransactionID); err == nil {
		t.Error("повторный откат должен возвращать ошибку")
	}
}

// TestCommit_NotPending проверяет отказ коммита завершённой транзакции.
func TestCommit_NotPending(t *testing.T) {
	w := newTestWAL(t)

	entry, err := w.StartTransaction(OpRecordInsert, uuid.New().String(), nil)
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}
	if err := w.Commit(entry.TransactionID); err != nil {
		t.Fatalf("ошибка коммита: %v", err)
	}

	if err := w.Commit(entry.TransactionID); err == nil {
		t.Error("повторный коммит должен возвращать ошибку")
	}
}

// TestCascadeChildIDs проверяет сохранение дочерних идентификаторов.
func TestCascadeChildIDs(t *testing.T) {
	w := newTestWAL(t)
	children := []string{uuid.New().String(), uuid.New().String()}

	entry, err := w.StartTransaction(OpCascadeDelete, uuid.New().String(), children)
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}

	got, err := w.GetTransaction(entry.TransactionID)
	if err != nil {
		t.Fatalf("ошибка чтения транзакции: %v", err)
	}
	if len(got.ChildIDs) != 2 {
		t.Errorf("ChildIDs: ожидалось 2, получено %d", len(got.ChildIDs))
	}
}

// TestRecoverPending находит незавершённые транзакции после "рестарта".
func TestRecoverPending(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания WAL: %v", err)
	}

	pending1, err := w.StartTransaction(OpRecordInsert, uuid.New().String(), nil)
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}
	committed, err := w.StartTransaction(OpRecordInsert, uuid.New().String(), nil)
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}
	if err := w.Commit(committed.TransactionID); err != nil {
		t.Fatalf("ошибка коммита: %v", err)
	}

	// Новый экземпляр над той же директорией — имитация рестарта
	w2, err := New(dir, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания WAL: %v", err)
	}

	recovered, err := w2.RecoverPending()
	if err != nil {
		t.Fatalf("ошибка восстановления: %v", err)
	}
	if len(recovered) != 1 {
		t.Fatalf("ожидалась 1 pending транзакция, получено %d", len(recovered))
	}
	if recovered[0].TransactionID != pending1.TransactionID {
		t.Error("восстановлена не та транзакция")
	}
}

// TestCleanCommitted удаляет завершённые записи, оставляя pending.
func TestCleanCommitted(t *testing.T) {
	w := newTestWAL(t)

	pending, err := w.StartTransaction(OpRecordInsert, uuid.New().String(), nil)
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}
	done, err := w.StartTransaction(OpRecordDelete, uuid.New().String(), nil)
	if err != nil {
		t.Fatalf("ошибка начала транзакции: %v", err)
	}
	if err := w.Commit(done.TransactionID); err != nil {
		t.Fatalf("ошибка коммита: %v", err)
	}

	cleaned, err := w.CleanCommitted()
	if err != nil {
		t.Fatalf("ошибка очистки: %v", err)
	}
	if cleaned != 1 {
		t.Errorf("ожидалась 1 удалённая запись, получено %d", cleaned)
	}

	// pending запись осталась на диске
	if _, err := os.Stat(filepath.Join(w.Dir(), walFileName(pending.TransactionID))); err != nil {
		t.Error("pending запись не должна удаляться при очистке")
	}
}
