package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestNewTokenManager(t *testing.T) {
	secret := "test-secret"
	expireHours := 24
	refreshHours := 72

	tm := NewTokenManager(secret, expireHours, refreshHours)
	if tm == nil {
		t.Fatal("NewTokenManager returned nil")
	}
	if string(tm.secret) != secret {
		t.Errorf("Expected secret %s, got %s", secret, string(tm.secret))
	}

	expectedExpireDur := time.Duration(expireHours) * time.Hour
	if tm.expireDur != expectedExpireDur {
		t.Errorf("Expected expireDur %v, got %v", expectedExpireDur, tm.expireDur)
	}

	expectedRefreshDur := time.Duration(refreshHours) * time.Hour
	if tm.refreshDur != expectedRefreshDur {
		t.Errorf("Expected refreshDur %v, got %v", expectedRefreshDur, tm.refreshDur)
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 72)
	var userID uint64 = 42

	token, err := tm.GenerateToken(userID)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if token == "" {
		t.Error("Generated token is empty")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("Expected UserID %d, got %d", userID, claims.UserID)
	}

	now := time.Now()
	if claims.IssuedAt.Time.After(now) {
		t.Error("IssuedAt is in the future")
	}
	if claims.ExpiresAt.Time.Before(now) {
		t.Error("ExpiresAt is in the past")
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 72)

	if _, err := tm.ParseToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	tm := NewTokenManager("secret-a", 24, 72)
	other := NewTokenManager("secret-b", 24, 72)

	token, err := tm.GenerateToken(1)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := other.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	// negative expire keeps the token structurally valid but already expired
	tm := NewTokenManager("test-secret", -1, 72)

	token, err := tm.GenerateToken(1)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := tm.ParseToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
	if !tm.IsExpired(token) {
		t.Error("IsExpired should report true for an expired token")
	}
}

func TestRefreshToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 72)

	token, err := tm.GenerateToken(7)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	refreshed, err := tm.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	claims, err := tm.ParseToken(refreshed)
	if err != nil {
		t.Fatalf("ParseToken failed on refreshed token: %v", err)
	}
	if claims.UserID != 7 {
		t.Errorf("Expected UserID 7, got %d", claims.UserID)
	}
}

func TestRefreshToken_ExpiredWithinWindow(t *testing.T) {
	// signer issues an already-expired token, tm refreshes it with a
	// normal lifetime over the same secret
	signer := NewTokenManager("test-secret", -1, 72)
	tm := NewTokenManager("test-secret", 24, 72)

	token, err := signer.GenerateToken(7)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := tm.ParseToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("Expected the signed token to be expired, got %v", err)
	}

	refreshed, err := tm.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken failed inside refresh window: %v", err)
	}
	claims, err := tm.ParseToken(refreshed)
	if err != nil {
		t.Fatalf("ParseToken failed on refreshed token: %v", err)
	}
	if claims.UserID != 7 {
		t.Errorf("Expected UserID 7, got %d", claims.UserID)
	}
}

func TestRefreshToken_OutsideWindow(t *testing.T) {
	tm := NewTokenManager("test-secret", -200, 1)

	token, err := tm.GenerateToken(7)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := tm.RefreshToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken outside refresh window, got %v", err)
	}
}
