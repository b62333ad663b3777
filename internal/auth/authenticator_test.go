package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/bleflow/internal/infrastructure/config"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return NewAuthenticator(config.AdminConfig{Username: "admin", PasswordHash: hash}, testSecret, 15*time.Minute)
}

func TestAuthenticator_Login(t *testing.T) {
	a := newTestAuthenticator(t)

	tok, err := a.Login("admin", "hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if tok.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", tok.TokenType)
	}
	if tok.ExpiresIn != 900 {
		t.Errorf("ExpiresIn = %d, want 900", tok.ExpiresIn)
	}

	claims, err := a.Verify(tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "admin" {
		t.Errorf("Subject = %q, want admin", claims.Subject)
	}
}

func TestAuthenticator_LoginRejected(t *testing.T) {
	a := newTestAuthenticator(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "hunter3"},
		{"wrong user", "root", "hunter2"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Login(tt.username, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAuthenticator_NotConfigured(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"no hash", ""},
		{"malformed hash", "plaintext"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuthenticator(config.AdminConfig{Username: "admin", PasswordHash: tt.hash}, testSecret, time.Minute)
			if _, err := a.Login("admin", "x"); !errors.Is(err, ErrNotConfigured) {
				t.Errorf("Login() error = %v, want ErrNotConfigured", err)
			}
		})
	}
}
