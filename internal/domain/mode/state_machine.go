// Пакет mode — конечный автомат режимов работы каталога.
//
// Три режима:
//   - normal      — полный CRUD
//   - readonly    — только чтение и поиск (окно харвестинга:
//     внешний импорт обновляет записи, локальные правки закрыты)
//   - maintenance — только health/metrics, API недоступен
//
// Обратный переход readonly → normal требует confirm: true,
// чтобы случайно не открыть запись во время незавершённого импорта.
//
// Потокобезопасен через sync.RWMutex.
package mode

import (
	"fmt"
	"sync"
	"time"
)

// CatalogMode — режим работы каталога.
type CatalogMode string

const (
	// ModeNormal — полный CRUD
	ModeNormal CatalogMode = "normal"
	// ModeReadonly — чтение и поиск, запись запрещена
	ModeReadonly CatalogMode = "readonly"
	// ModeMaintenance — API недоступен, только health/metrics
	ModeMaintenance CatalogMode = "maintenance"
)

// Operation — операция над записями каталога.
type Operation string

const (
	OpWrite    Operation = "write"
	OpDelete   Operation = "delete"
	OpRead     Operation = "read"
	OpSearch   Operation = "search"
	OpDownload Operation = "download"
)

// TransitionRecord — запись о переходе между режимами.
type TransitionRecord struct {
	From      CatalogMode `json:"from"`
	To        CatalogMode `json:"to"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
}

// StateMachine — конечный автомат режимов работы каталога.
// Потокобезопасен для одновременного чтения/записи.
type StateMachine struct {
	mu      sync.RWMutex
	current CatalogMode
	history []TransitionRecord
}

// validTransitions — матрица допустимых переходов.
var validTransitions = map[CatalogMode]map[CatalogMode]bool{
	ModeNormal:      {ModeReadonly: true, ModeMaintenance: true},
	ModeReadonly:    {ModeNormal: true, ModeMaintenance: true},
	ModeMaintenance: {ModeNormal: true},
}

// allowedOperations — матрица допустимых операций для каждого режима.
var allowedOperations = map[CatalogMode]map[Operation]bool{
	ModeNormal:      {OpWrite: true, OpDelete: true, OpRead: true, OpSearch: true, OpDownload: true},
	ModeReadonly:    {OpRead: true, OpSearch: true, OpDownload: true},
	ModeMaintenance: {},
}

// needsConfirmation — переходы, требующие явного подтверждения.
var needsConfirmation = map[CatalogMode]map[CatalogMode]bool{
	ModeReadonly: {ModeNormal: true}, // выход из окна харвестинга
}

// NewStateMachine создаёт конечный автомат с начальным режимом.
// Возвращает ошибку, если режим невалидный.
func NewStateMachine(initial CatalogMode) (*StateMachine, error) {
	if !isValidMode(initial) {
		return nil, fmt.Errorf("недопустимый начальный режим: %q", initial)
	}

	return &StateMachine{
		current: initial,
		history: make([]TransitionRecord, 0),
	}, nil
}

// CurrentMode возвращает текущий режим работы.
func (sm *StateMachine) CurrentMode() CatalogMode {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// CanTransitionTo проверяет, допустим ли переход в указанный режим.
// Не проверяет необходимость подтверждения (confirm).
func (sm *StateMachine) CanTransitionTo(target CatalogMode) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	transitions, ok := validTransitions[sm.current]
	if !ok {
		return false
	}
	return transitions[target]
}

// NeedsConfirmation проверяет, требует ли переход подтверждения.
// Возвращает true для перехода readonly → normal.
func (sm *StateMachine) NeedsConfirmation(target CatalogMode) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	confirms, ok := needsConfirmation[sm.current]
	if !ok {
		return false
	}
	return confirms[target]
}

// TransitionTo выполняет переход в указанный режим.
//
// Параметры:
//   - target: целевой режим
//   - confirm: подтверждение обратного перехода (true для readonly → normal)
//   - subject: кто инициировал переход (sub из JWT)
//
// Ошибки:
//   - INVALID_TRANSITION — переход недопустим
//   - CONFIRMATION_REQUIRED — требуется confirm: true
func (sm *StateMachine) TransitionTo(target CatalogMode, confirm bool, subject string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !isValidMode(target) {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("недопустимый целевой режим: %q", target),
		}
	}

	// Проверяем допустимость перехода
	transitions, ok := validTransitions[sm.current]
	if !ok || !transitions[target] {
		return &TransitionError{
			Code: "INVALID_TRANSITION",
			Message: fmt.Sprintf("переход %s → %s недопустим",
				sm.current, target),
		}
	}

	// Проверяем необходимость подтверждения
	if confirms, ok := needsConfirmation[sm.current]; ok && confirms[target] {
		if !confirm {
			return &TransitionError{
				Code: "CONFIRMATION_REQUIRED",
				Message: fmt.Sprintf("обратный переход %s → %s требует подтверждения (confirm: true)",
					sm.current, target),
			}
		}
	}

	// Выполняем переход
	record := TransitionRecord{
		From:      sm.current,
		To:        target,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
	}

	sm.current = target
	sm.history = append(sm.history, record)

	return nil
}

// AllowedOperations возвращает список операций, доступных в текущем режиме.
func (sm *StateMachine) AllowedOperations() []Operation {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	ops, ok := allowedOperations[sm.current]
	if !ok {
		return nil
	}

	result := make([]Operation, 0, len(ops))
	for op := range ops {
		result = append(result, op)
	}
	return result
}

// CanPerform проверяет, допустима ли операция в текущем режиме.
func (sm *StateMachine) CanPerform(op Operation) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	ops, ok := allowedOperations[sm.current]
	if !ok {
		return false
	}
	return ops[op]
}

// History возвращает историю переходов (копия).
func (sm *StateMachine) History() []TransitionRecord {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	result := make([]TransitionRecord, len(sm.history))
	copy(result, sm.history)
	return result
}

// TransitionError — ошибка перехода между режимами.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION, CONFIRMATION_REQUIRED)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// isValidMode проверяет, является ли строка допустимым режимом.
func isValidMode(m CatalogMode) bool {
	switch m {
	case ModeNormal, ModeReadonly, ModeMaintenance:
		return true
	default:
		return false
	}
}

// ParseMode преобразует строку в CatalogMode.
// Возвращает ошибку для недопустимых значений.
func ParseMode(s string) (CatalogMode, error) {
	m := CatalogMode(s)
	if !isValidMode(m) {
		return "", fmt.Errorf("недопустимый режим: %q, допустимые: normal, readonly, maintenance", s)
	}
	return m, nil
}
