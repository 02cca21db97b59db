package auth

import "testing"

func TestHashPassword(t *testing.T) {
	password := "testpassword123"

	hashed, err := HashPassword(password, 4)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hashed == "" {
		t.Error("Hashed password should not be empty")
	}
	if hashed == password {
		t.Error("Hashed password should be different from original")
	}

	hashed2, err := HashPassword(password, 4)
	if err != nil {
		t.Fatalf("Failed to hash password second time: %v", err)
	}
	if hashed == hashed2 {
		t.Error("Different hashes should be generated for same password (bcrypt salt)")
	}
}

func TestHashPassword_OutOfRangeCost(t *testing.T) {
	// Bogus cost values fall back to the bcrypt default instead of erroring.
	if _, err := HashPassword("testpassword123", 99); err != nil {
		t.Fatalf("Expected fallback to default cost, got error: %v", err)
	}
	if _, err := HashPassword("testpassword123", -1); err != nil {
		t.Fatalf("Expected fallback to default cost, got error: %v", err)
	}
}

func TestCheckPassword(t *testing.T) {
	password := "testpassword123"

	hashed, err := HashPassword(password, 4)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if !CheckPassword(hashed, password) {
		t.Error("Correct password should verify")
	}
	if CheckPassword(hashed, "wrongpassword") {
		t.Error("Wrong password should not verify")
	}
	if CheckPassword("not-a-bcrypt-hash", password) {
		t.Error("Garbage hash should not verify")
	}
}
