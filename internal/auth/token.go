// Package auth はIdPが発行したアクセストークンの検証を提供する。
// 検証に成功したトークンから、呼び出し元を表す model.Session を生成する。
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/blossom/internal/model"
)

// ErrInvalidToken はトークンが不正または期限切れの場合のエラー。
var ErrInvalidToken = errors.New("invalid access token")

// Claims はアクセストークンのクレーム。subjectがユーザーIDを表す。
type Claims struct {
	jwt.RegisteredClaims
}

// TokenVerifier はHS256署名のアクセストークンを検証する。
type TokenVerifier struct {
	secret []byte
	now    func() time.Time // テスト用に差し替え可能
}

// NewTokenVerifier はTokenVerifierを生成する。
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Verify はトークンを検証し、呼び出し元のセッションを返す。
// 署名・有効期限・subjectのいずれかが不正な場合はErrInvalidTokenを返す。
func (v *TokenVerifier) Verify(tokenString string) (*model.Session, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &model.Session{
		UserID:      claims.Subject,
		AccessToken: tokenString,
		ExpiresAt:   claims.ExpiresAt.Time.UnixMilli(),
	}, nil
}

// Issue はユーザーIDをsubjectとするトークンを発行する。
// ローカル開発用の token サブコマンドとテストで使用する。
func (v *TokenVerifier) Issue(userID string, validity time.Duration) (string, error) {
	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return signed, nil
}
