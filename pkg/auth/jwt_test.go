package auth

import (
	"testing"
	"time"
)

const testSecret = "test-secret-key-minimum-32-characters-long"

func TestGenerateJWT(t *testing.T) {
	token, err := GenerateJWT(1, "test@example.com", false, testSecret, 24)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}
	if token == "" {
		t.Error("Token should not be empty")
	}
	if len(token) < 10 {
		t.Error("Token seems too short")
	}
}

func TestValidateJWT(t *testing.T) {
	token, err := GenerateJWT(123, "admin@example.com", true, testSecret, 24)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	claims, err := ValidateJWT(token, testSecret)
	if err != nil {
		t.Fatalf("Failed to validate JWT: %v", err)
	}

	if claims.UserID != 123 {
		t.Errorf("Expected UserID 123, got %d", claims.UserID)
	}
	if claims.Email != "admin@example.com" {
		t.Errorf("Expected Email admin@example.com, got %s", claims.Email)
	}
	if !claims.IsAdmin {
		t.Error("Expected IsAdmin to survive the round trip")
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		t.Error("Expected expiry in the future")
	}
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT(1, "test@example.com", false, testSecret, 24)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	if _, err := ValidateJWT(token, "a-completely-different-secret-value"); err == nil {
		t.Error("Expected validation to fail with the wrong secret")
	}
}

func TestValidateJWT_Expired(t *testing.T) {
	token, err := GenerateJWT(1, "test@example.com", false, testSecret, -1)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	if _, err := ValidateJWT(token, testSecret); err == nil {
		t.Error("Expected validation to fail for an expired token")
	}
}

func TestValidateJWT_Garbage(t *testing.T) {
	if _, err := ValidateJWT("not.a.token", testSecret); err == nil {
		t.Error("Expected validation to fail for malformed input")
	}
}
