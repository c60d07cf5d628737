// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/biolog/internal/auth"
)

// SessionCookieName はセッショントークンを保持するCookie名。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストにセッションクレームを格納するためのキー。
var claimsContextKey = contextKey("session_claims")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
// auth.TokenManagerの部分集合として定義する。
type TokenVerifier interface {
	Verify(token string) (*auth.SessionClaims, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// 署名と有効期限を検証するミドルウェアを返す。
// 検証済みクレームをリクエストコンテキストに注入する。
// Cookie欠落・改ざん・期限切れはすべて同一の401 Unauthorizedとして扱う。
func NewSessionMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからセッショントークンを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteUnauthorized(w)
				return
			}

			// 2. トークンの署名と有効期限を検証
			claims, err := verifier.Verify(cookie.Value)
			if err != nil {
				WriteUnauthorized(w)
				return
			}

			// 3. 検証済みクレームをコンテキストに注入
			ctx := ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext はリクエストコンテキストからセッションクレームを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*auth.SessionClaims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.SessionClaims)
	if !ok || claims == nil {
		return nil, fmt.Errorf("session claims not found in context")
	}
	return claims, nil
}

// ContextWithClaims はコンテキストにセッションクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *auth.SessionClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
