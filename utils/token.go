package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	purposeSession = "session"
	purposeReset   = "password-reset"

	// DefaultResetTTL is how long a password reset link stays valid.
	DefaultResetTTL = 1800 * time.Second
)

var errUnexpectedMethod = errors.New("unexpected signing method")

// SessionClaims identify the logged-in user carried by the session cookie.
type SessionClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Remember bool   `json:"remember,omitempty"`
	jwt.RegisteredClaims
}

// ResetClaims is the payload of a password reset token.
type ResetClaims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies the HS256 tokens used for sessions and password resets.
// The subject claim separates the two so one can never be replayed as the other.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec creates a codec bound to the process-wide secret key.
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of the codec that reads time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	return &TokenCodec{secret: c.secret, now: now}
}

// IssueResetToken embeds userID in a token valid for ttl (DefaultResetTTL when ttl <= 0).
func (c *TokenCodec) IssueResetToken(userID uint, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	now := c.now()
	claims := ResetClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   purposeReset,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return c.sign(claims)
}

// VerifyResetToken returns the embedded user id. Any failure yields ok=false.
func (c *TokenCodec) VerifyResetToken(token string) (userID uint, ok bool) {
	var claims ResetClaims
	if err := c.parse(token, &claims, purposeReset); err != nil {
		return 0, false
	}
	if claims.UserID == 0 {
		return 0, false
	}
	return claims.UserID, true
}

// IssueSessionToken signs a session for the user valid for ttl. Every token carries a unique
// id so that revoking one login never affects another.
func (c *TokenCodec) IssueSessionToken(userID uint, username string, remember bool, ttl time.Duration) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(ttl)
	claims := SessionClaims{
		UserID:   userID,
		Username: username,
		Remember: remember,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   purposeSession,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := c.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseSessionToken validates a session token and returns its claims.
func (c *TokenCodec) ParseSessionToken(token string) (*SessionClaims, error) {
	var claims SessionClaims
	if err := c.parse(token, &claims, purposeSession); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (c *TokenCodec) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *TokenCodec) parse(token string, claims jwt.Claims, purpose string) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnexpectedMethod
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(purpose),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	return err
}
