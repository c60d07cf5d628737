package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestTokenManager(secret string) *TokenManager {
	return NewTokenManager(secret, 30*24*time.Hour)
}

func TestTokenManager_IssueAndVerify_RoundTrip(t *testing.T) {
	m := newTestTokenManager("test-secret")

	userID := int64(42)
	motivationID := int64(3)
	issued := SessionClaims{
		ExternalID:   "google-sub-123",
		Email:        "taro@example.com",
		Name:         "Taro Yamada",
		Picture:      "https://example.com/p.png",
		UserID:       &userID,
		MotivationID: &motivationID,
	}

	token, err := m.Issue(issued)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("token should not be empty")
	}

	got, err := m.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ExternalID != issued.ExternalID || got.Email != issued.Email || got.Name != issued.Name {
		t.Errorf("claims = %+v, want %+v", got, issued)
	}
	if got.UserID == nil || *got.UserID != userID {
		t.Errorf("userID = %v, want %d", got.UserID, userID)
	}
	if got.MotivationID == nil || *got.MotivationID != motivationID {
		t.Errorf("motivationID = %v, want %d", got.MotivationID, motivationID)
	}
}

func TestTokenManager_Verify_NilPointersPreserved(t *testing.T) {
	m := newTestTokenManager("test-secret")

	// reconciliation未完了のセッション
	token, err := m.Issue(SessionClaims{
		ExternalID: "google-sub-456",
		Email:      "hanako@example.com",
		Name:       "Hanako",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := m.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != nil {
		t.Errorf("userID = %v, want nil", got.UserID)
	}
	if got.MotivationID != nil {
		t.Errorf("motivationID = %v, want nil", got.MotivationID)
	}
}

func TestTokenManager_Verify_EmptyToken(t *testing.T) {
	m := newTestTokenManager("test-secret")

	_, err := m.Verify("")
	if !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("error = %v, want ErrSessionInvalid", err)
	}
}

func TestTokenManager_Verify_TamperedToken(t *testing.T) {
	m := newTestTokenManager("test-secret")

	token, err := m.Issue(SessionClaims{ExternalID: "sub", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// ペイロード部を改ざんする
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token format: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = m.Verify(tampered)
	if !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("error = %v, want ErrSessionInvalid", err)
	}
}

func TestTokenManager_Verify_WrongSecret(t *testing.T) {
	issuer := newTestTokenManager("secret-a")
	verifier := newTestTokenManager("secret-b")

	token, err := issuer.Issue(SessionClaims{ExternalID: "sub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("error = %v, want ErrSessionInvalid", err)
	}
}

func TestTokenManager_Verify_ExpiredToken(t *testing.T) {
	m := NewTokenManager("test-secret", 1*time.Hour)

	issuedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issuedAt }

	token, err := m.Issue(SessionClaims{ExternalID: "sub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 有効期限内は検証に成功する
	m.now = func() time.Time { return issuedAt.Add(30 * time.Minute) }
	if _, err := m.Verify(token); err != nil {
		t.Errorf("token should still be valid: %v", err)
	}

	// 有効期限を過ぎると失敗する
	m.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = m.Verify(token)
	if !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("error = %v, want ErrSessionInvalid", err)
	}
}
