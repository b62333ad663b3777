package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/nerrad567/bleflow/internal/infrastructure/config"
)

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticator checks the operator credentials and issues tokens.
type Authenticator struct {
	admin     config.AdminConfig
	secret    string
	accessTTL time.Duration
	now       func() time.Time
}

// NewAuthenticator creates an authenticator for the configured admin.
func NewAuthenticator(admin config.AdminConfig, secret string, accessTTL time.Duration) *Authenticator {
	return &Authenticator{
		admin:     admin,
		secret:    secret,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// Login verifies username and password and returns a signed access token.
// Wrong usernames and wrong passwords are indistinguishable.
func (a *Authenticator) Login(username, password string) (*Token, error) {
	if a.admin.PasswordHash == "" {
		return nil, ErrNotConfigured
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.admin.Username)) == 1
	// Always run the hash so timing does not reveal the username.
	passOK, err := VerifyPassword(password, a.admin.PasswordHash)
	if err != nil {
		if errors.Is(err, ErrInvalidHash) {
			return nil, ErrNotConfigured
		}
		return nil, err
	}
	if !userOK || !passOK {
		return nil, ErrInvalidCredentials
	}

	signed, expires, err := GenerateAccessToken(a.admin.Username, a.secret, a.accessTTL, a.now())
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(a.accessTTL.Seconds()),
		ExpiresAt:   expires,
	}, nil
}

// Verify parses an access token issued by Login.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	return ParseToken(token, a.secret)
}
