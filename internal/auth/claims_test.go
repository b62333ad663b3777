package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-0123456789"

func TestGenerateAndParseAccessToken(t *testing.T) {
	now := time.Now()
	token, expires, err := GenerateAccessToken("admin", testSecret, 15*time.Minute, now)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken() returned empty token")
	}
	if !expires.Equal(now.Add(15 * time.Minute)) {
		t.Errorf("expires = %v, want %v", expires, now.Add(15*time.Minute))
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "admin" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "admin")
	}
	if claims.Issuer != issuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, issuer)
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _, err := GenerateAccessToken("admin", "correct-secret", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if _, err := ParseToken(token, "wrong-secret"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, _, err := GenerateAccessToken("admin", testSecret, time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if _, err := ParseToken(token, testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_Rejected(t *testing.T) {
	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("signing: %v", err)
		}
		return s
	}
	valid := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	noSubject := valid
	noSubject.Subject = ""
	otherIssuer := valid
	otherIssuer.Issuer = "someone-else"
	noExpiry := valid
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.jwt"},
		{"empty", ""},
		{"hs512", sign(jwt.SigningMethodHS512, []byte(testSecret), valid)},
		{"none", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
		{"no subject", sign(jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
		{"other issuer", sign(jwt.SigningMethodHS256, []byte(testSecret), otherIssuer)},
		{"no expiry", sign(jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, testSecret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}
