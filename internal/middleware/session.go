// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/blossom/internal/model"
)

// accessTokenCookieName はIdPが発行したアクセストークンを保持するCookieの名前。
const accessTokenCookieName = "blossom_access_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// TokenVerifier はアクセストークンの検証に必要なインターフェース。
// auth.TokenVerifierが満たす。
type TokenVerifier interface {
	Verify(token string) (*model.Session, error)
}

// NewSessionMiddleware はAuthorizationヘッダー（Bearer）またはCookieから
// アクセストークンを読み取り、検証するミドルウェアを返す。
// 検証済みのセッションをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := verifyRequest(r, verifier)
			if sess == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
		})
	}
}

// NewOptionalSessionMiddleware はトークンが有効な場合のみセッションを注入し、
// 未認証でもリクエストを通すミドルウェアを返す。
// サインアウト状態でも閲覧できるエンドポイントで使用する。
func NewOptionalSessionMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess := verifyRequest(r, verifier); sess != nil {
				r = r.WithContext(withSession(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// verifyRequest はリクエストのトークンを検証する。トークンがない、または不正な場合はnil。
func verifyRequest(r *http.Request, verifier TokenVerifier) *model.Session {
	token := bearerToken(r)
	if token == "" {
		if cookie, err := r.Cookie(accessTokenCookieName); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return nil
	}
	sess, err := verifier.Verify(token)
	if err != nil {
		return nil
	}
	return sess
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func withSession(ctx context.Context, sess *model.Session) context.Context {
	if info := requestInfoFromContext(ctx); info != nil {
		info.userID = sess.UserID
	}
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// 未認証の場合はnil。
func SessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionContextKey).(*model.Session)
	return sess
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	sess := SessionFromContext(ctx)
	if sess == nil || sess.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return sess.UserID, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, sess *model.Session) context.Context {
	return withSession(ctx, sess)
}

// ContextWithUserID はユーザーIDのみを持つセッションをコンテキストに注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return withSession(ctx, &model.Session{UserID: userID})
}
