// token.go — выпуск JWT-пар для имперсонализации поставщика.
//
// Суперадмин может получить пару токенов (access + refresh) от имени
// поставщика, чтобы выполнять операции из его контекста. Токены
// подписываются RS256 ключом каталога; публичная часть доступна
// через JWKS для проверки middleware.
package service

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bigkaa/godatacatalog/internal/domain/policy"
)

// Времена жизни выпускаемых токенов.
const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 12 * time.Hour
)

// TokenPair — пара токенов имперсонализации.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenIssuer — выпуск подписанных токенов каталога.
type TokenIssuer struct {
	key    *rsa.PrivateKey
	keyID  string
	issuer string
}

// NewTokenIssuer создаёт эмитент токенов.
// keyID должен совпадать с kid ключа в JWKS каталога.
func NewTokenIssuer(key *rsa.PrivateKey, keyID, issuer string) *TokenIssuer {
	return &TokenIssuer{key: key, keyID: keyID, issuer: issuer}
}

// IssuePair выпускает пару токенов от имени поставщика.
func (i *TokenIssuer) IssuePair(publisherID uuid.UUID, publisherURI, email string) (*TokenPair, error) {
	now := time.Now().UTC()

	access, err := i.sign(jwt.MapClaims{
		"iss":       i.issuer,
		"sub":       publisherID.String(),
		"role":      string(policy.RolePublisherAdmin),
		"publisher": publisherURI,
		"email":     email,
		"iat":       now.Unix(),
		"exp":       now.Add(accessTokenTTL).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи access токена: %w", err)
	}

	refresh, err := i.sign(jwt.MapClaims{
		"iss": i.issuer,
		"sub": publisherID.String(),
		"typ": "refresh",
		"iat": now.Unix(),
		"exp": now.Add(refreshTokenTTL).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи refresh токена: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// sign подписывает claims ключом каталога.
func (i *TokenIssuer) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if i.keyID != "" {
		token.Header["kid"] = i.keyID
	}
	return token.SignedString(i.key)
}
