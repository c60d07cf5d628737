package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSessionInvalid はトークンの欠落・不正・期限切れを表す。
// 検証時は「セッションなし」と同一に扱い、ハードエラーにはしない。
var ErrSessionInvalid = errors.New("session token is missing, malformed, or expired")

// SessionClaims はセッショントークンに埋め込むユーザースナップショット。
// 発行時点のユーザー状態を表し、トークンの有効期間中は自動更新されない。
type SessionClaims struct {
	ExternalID   string `json:"externalId"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Picture      string `json:"picture,omitempty"`
	UserID       *int64 `json:"userId,omitempty"`       // 内部ID。reconciliation未完了の場合はnil
	MotivationID *int64 `json:"motivationId,omitempty"` // 発行時点のMotivation割り当て
}

// sessionTokenClaims はJWTペイロードの内部表現。
type sessionTokenClaims struct {
	User SessionClaims `json:"user"`
	jwt.RegisteredClaims
}

// TokenManager はHS256署名のセッショントークンの発行と検証を提供する。
// 有効期限は発行時点からの固定期間で、自動リフレッシュは行わない。
type TokenManager struct {
	secret []byte
	maxAge time.Duration

	// now はテストで発行・検証時点を固定するために差し替え可能。
	now func() time.Time
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(secret string, maxAge time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Issue はユーザースナップショットを埋め込んだ署名付きトークンを発行する。
func (m *TokenManager) Issue(user SessionClaims) (string, error) {
	now := m.now()
	claims := sessionTokenClaims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、埋め込まれたクレームを返す。
// 欠落・改ざん・期限切れはすべてErrSessionInvalidとして返す。
func (m *TokenManager) Verify(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrSessionInvalid
	}

	var claims sessionTokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrSessionInvalid
	}

	return &claims.User, nil
}
