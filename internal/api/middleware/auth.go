// auth.go — JWT middleware аутентификации вызывающих.
// Использует RS256 + JWKS внешнего провайдера идентичности.
// Claims: sub, role (Publisher / PublisherAdmin / Superadmin),
// publisher (URI поставщика), email.
//
// Аутентификация опциональна: запрос без Authorization обрабатывается
// как анонимный (публичный каталог читается без входа). Невалидный
// токен при этом — всегда 401: молча понижать права нельзя.
package middleware

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/godatacatalog/internal/api/errors"
	"github.com/bigkaa/godatacatalog/internal/domain/policy"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyCaller — ключ вызывающего в контексте запроса.
const ContextKeyCaller contextKey = "caller"

// Claims — структура JWT claims каталога.
type Claims struct {
	jwt.RegisteredClaims
	// Role — роль вызывающего
	Role string `json:"role"`
	// Publisher — URI поставщика вызывающего
	Publisher string `json:"publisher"`
	// Email — контактный email вызывающего
	Email string `json:"email"`
	// TokenType — typ служебных токенов (refresh)
	TokenType string `json:"typ,omitempty"`
}

// Caller строит вызывающего из claims токена.
func (c *Claims) Caller() policy.Caller {
	return policy.Caller{
		Subject:   c.Subject,
		Role:      policy.Role(c.Role),
		Publisher: c.Publisher,
		Email:     c.Email,
	}
}

// JWTAuth — middleware JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	localKey  *rsa.PublicKey
	localKid  string
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// JWTAuthConfig — параметры создания JWT middleware.
type JWTAuthConfig struct {
	// URL JWKS endpoint провайдера идентичности
	JWKSURL string
	// Путь к CA-сертификату (опционально)
	CACertPath string
	// Пропускать проверку TLS-сертификатов
	TLSSkipVerify bool
	// Таймаут HTTP-клиента JWKS
	ClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	RefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// LocalKey — публичный ключ каталога для проверки собственных
	// токенов имперсонализации (опционально)
	LocalKey *rsa.PublicKey
	// LocalKeyID — kid собственных токенов
	LocalKeyID string
}

// NewJWTAuth создаёт JWT middleware с JWKS из указанного URL.
// Все параметры (таймауты, TLS, интервалы) берутся из JWTAuthConfig.
func NewJWTAuth(authCfg JWTAuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	httpClient, err := buildHTTPClient(authCfg)
	if err != nil {
		return nil, err
	}

	if authCfg.CACertPath != "" {
		logger.Info("CA-сертификат добавлен в пул доверия",
			slog.String("ca_cert", authCfg.CACertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq позволяет стартовать, даже если JWKS
	// endpoint ещё недоступен (одновременный запуск pod-ов).
	storage, err := jwkset.NewStorageFromHTTP(authCfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           authCfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", authCfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:      k,
		localKey:  authCfg.LocalKey,
		localKid:  authCfg.LocalKeyID,
		jwtLeeway: authCfg.JWTLeeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}, nil
}

// buildHTTPClient создаёт HTTP-клиент с настроенным TLS и таймаутом.
func buildHTTPClient(authCfg JWTAuthConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: authCfg.TLSSkipVerify, //nolint:gosec // настраивается через DC_TLS_SKIP_VERIFY
	}

	if authCfg.CACertPath != "" {
		caCert, err := os.ReadFile(authCfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", authCfg.CACertPath, err)
		}

		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}
		caCertPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caCertPool
	}

	return &http.Client{
		Timeout: authCfg.ClientTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, jwtLeeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:      kf,
		jwtLeeway: jwtLeeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}
}

// keyfuncFor выбирает ключ проверки: собственные токены каталога
// (kid совпадает с LocalKeyID) проверяются локальным ключом,
// остальные — через JWKS провайдера.
func (j *JWTAuth) keyfuncFor(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if j.localKey != nil {
			if kid, _ := token.Header["kid"].(string); kid == j.localKid {
				return j.localKey, nil
			}
		}
		return j.jwks.KeyfuncCtx(ctx)(token)
	}
}

// Middleware возвращает HTTP middleware аутентификации.
// Извлекает Bearer token из Authorization, валидирует подпись (RS256),
// проверяет exp/nbf и помещает вызывающего в контекст запроса.
// Запрос без Authorization — анонимный вызывающий.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				ctx := context.WithValue(r.Context(), ContextKeyCaller, policy.Caller{})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, j.keyfuncFor(r.Context()),
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if !token.Valid {
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			if claims.Subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}
			// Refresh токен не даёт доступ к API
			if claims.TokenType == "refresh" {
				apierrors.Unauthorized(w, "Refresh токен не принимается для доступа к API")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyCaller, claims.Caller())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth возвращает middleware, требующий аутентификации.
// Анонимный вызывающий получает 401.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CallerFromContext(r.Context()).IsAuthenticated() {
				apierrors.Unauthorized(w, "Требуется аутентификация")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperadmin возвращает middleware, требующий роль Superadmin.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireSuperadmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerFromContext(r.Context())
			if !caller.IsAuthenticated() {
				apierrors.Unauthorized(w, "Требуется аутентификация")
				return
			}
			if !caller.IsSuperadmin() {
				apierrors.Forbidden(w, "Недостаточно прав: требуется роль Superadmin")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerFromContext извлекает вызывающего из контекста запроса.
// Возвращает анонимного вызывающего, если аутентификация не проводилась.
func CallerFromContext(ctx context.Context) policy.Caller {
	caller, _ := ctx.Value(ContextKeyCaller).(policy.Caller)
	return caller
}

// Close освобождает ресурсы JWKS (останавливает фоновое обновление).
func (j *JWTAuth) Close() {
	// keyfunc v3 не требует явного закрытия для NewDefault
}
