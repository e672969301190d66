package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenVerifier_IssueAndVerify(t *testing.T) {
	v := NewTokenVerifier("test-secret")

	token, err := v.Issue("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue がエラーを返した: %v", err)
	}

	sess, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify がエラーを返した: %v", err)
	}
	if sess.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", sess.UserID)
	}
	if sess.AccessToken != token {
		t.Error("AccessToken が保持されていない")
	}
	if sess.ExpiresAt <= time.Now().UnixMilli() {
		t.Errorf("ExpiresAt = %d は未来であるべき", sess.ExpiresAt)
	}
}

func TestTokenVerifier_RejectsInvalidTokens(t *testing.T) {
	v := NewTokenVerifier("test-secret")
	other := NewTokenVerifier("other-secret")

	wrongKey, _ := other.Issue("user-1", time.Hour)
	expired, _ := v.Issue("user-1", -time.Minute)
	noSubject, _ := v.Issue("", time.Hour)

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-1",
	}).SignedString([]byte("test-secret"))

	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))

	tests := []struct {
		name  string
		token string
	}{
		{"空文字列", ""},
		{"不正な形式", "not-a-jwt"},
		{"異なる鍵で署名", wrongKey},
		{"期限切れ", expired},
		{"subjectなし", noSubject},
		{"有効期限なし", noExpiry},
		{"HS256以外のアルゴリズム", wrongAlg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := v.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
			if sess != nil {
				t.Errorf("sess = %+v, want nil", sess)
			}
		})
	}
}

func TestTokenVerifier_UsesInjectedClock(t *testing.T) {
	v := NewTokenVerifier("test-secret")
	token, err := v.Issue("user-1", time.Minute)
	if err != nil {
		t.Fatalf("Issue がエラーを返した: %v", err)
	}

	v.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("時計を進めた後は期限切れになるべき: err = %v", err)
	}
}
