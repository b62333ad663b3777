package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("hash has %d parts, want 6: %q", len(parts), hash)
	}
	if parts[1] != "argon2id" {
		t.Errorf("algorithm = %q, want %q", parts[1], "argon2id")
	}
	if parts[2] != "v=19" {
		t.Errorf("version = %q, want %q", parts[2], "v=19")
	}
	if parts[3] != "m=65536,t=3,p=1" {
		t.Errorf("params = %q, want %q", parts[3], "m=65536,t=3,p=1")
	}
}

func TestHashPassword_UniqueSalt(t *testing.T) {
	a, err := HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	b, err := HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("HashPassword(\"\") expected error")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct", "s3cret!", true},
		{"wrong", "s3cret?", false},
		{"empty", "", false},
		{"case", "S3CRET!", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyPassword(tt.password, hash)
			if err != nil {
				t.Fatalf("VerifyPassword() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifyPassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestVerifyPassword_InvalidHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plaintext", "password"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{"too few parts", "$argon2id$v=19$m=65536,t=3,p=1"},
		{"bad version", "$argon2id$v=16$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{"bad params", "$argon2id$v=19$memory$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=1$!!$aGFzaA"},
		{"empty hash", "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := VerifyPassword("x", tt.hash); !errors.Is(err, ErrInvalidHash) {
				t.Errorf("VerifyPassword() error = %v, want ErrInvalidHash", err)
			}
		})
	}
}
