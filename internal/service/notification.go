// notification.go — сервис настроек e-mail уведомлений.
//
// Позволяет отключать уведомления двумя путями: по подписанному
// auth-ключу из письма (без входа в систему) или по email claim
// аутентифицированного вызывающего. Auth-ключ — HMAC-SHA256 от
// адреса, подписанный секретом каталога: подделать ключ для чужого
// адреса нельзя.
//
// Настройки хранятся в одном JSON-файле рядом с метаданными,
// запись атомарная (временный файл + rename).
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bigkaa/godatacatalog/internal/domain/policy"
)

// notificationFile — имя файла настроек в каталоге данных.
const notificationFile = "notification-settings.json"

// NotificationSetting — настройка уведомлений одного адреса.
type NotificationSetting struct {
	Email   string `json:"email"`
	Enabled bool   `json:"enabled"`
}

// NotificationService — хранение настроек уведомлений.
type NotificationService struct {
	path   string
	secret []byte
	logger *slog.Logger

	mu       sync.Mutex
	settings map[string]bool // email -> enabled
}

// NewNotificationService создаёт сервис и загружает настройки с диска.
func NewNotificationService(dir string, secret []byte, logger *slog.Logger) (*NotificationService, error) {
	s := &NotificationService{
		path:     filepath.Join(dir, notificationFile),
		secret:   secret,
		logger:   logger.With(slog.String("component", "notification")),
		settings: map[string]bool{},
	}

	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		// Первый запуск
	case err != nil:
		return nil, fmt.Errorf("ошибка чтения настроек уведомлений: %w", err)
	default:
		if err := json.Unmarshal(data, &s.settings); err != nil {
			return nil, fmt.Errorf("ошибка разбора настроек уведомлений: %w", err)
		}
	}

	return s, nil
}

// AuthKey возвращает подписанный ключ для адреса — вкладывается
// в письма как ссылка отписки.
func (s *NotificationService) AuthKey(email string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strings.ToLower(email)))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyKey проверяет подпись auth-ключа для адреса.
func (s *NotificationService) verifyKey(email, key string) bool {
	expected := s.AuthKey(email)
	return hmac.Equal([]byte(expected), []byte(key))
}

// resolveEmail определяет адрес вызывающего: либо пара email+ключ,
// либо email claim аутентифицированного вызывающего.
// Без настроенного секрета путь по ключу закрыт: HMAC от пустого
// ключа вычислим кем угодно.
func (s *NotificationService) resolveEmail(email, authKey string, caller policy.Caller) (string, error) {
	if email != "" && authKey != "" {
		if len(s.secret) == 0 || !s.verifyKey(email, authKey) {
			return "", ErrForbidden
		}
		return strings.ToLower(email), nil
	}
	if caller.IsAuthenticated() && caller.Email != "" {
		return strings.ToLower(caller.Email), nil
	}
	return "", ErrForbidden
}

// Get возвращает настройку уведомлений вызывающего.
// Адрес без сохранённой настройки считается включённым.
func (s *NotificationService) Get(email, authKey string, caller policy.Caller) (*NotificationSetting, error) {
	resolved, err := s.resolveEmail(email, authKey, caller)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	enabled, ok := s.settings[resolved]
	if !ok {
		enabled = true
	}
	return &NotificationSetting{Email: resolved, Enabled: enabled}, nil
}

// Set сохраняет настройку уведомлений вызывающего.
func (s *NotificationService) Set(email, authKey string, enabled bool, caller policy.Caller) error {
	resolved, err := s.resolveEmail(email, authKey, caller)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[resolved] = enabled
	if err := s.persist(); err != nil {
		return err
	}

	s.logger.Info("Настройка уведомлений изменена",
		slog.String("email", resolved),
		slog.Bool("enabled", enabled),
	)
	return nil
}

// persist атомарно записывает настройки на диск. Вызывается под mu.
func (s *NotificationService) persist() error {
	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации настроек уведомлений: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("ошибка записи настроек уведомлений: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка замены файла настроек уведомлений: %w", err)
	}
	return nil
}
