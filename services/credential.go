package services

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/blog/utils"
)

// CredentialService hashes passwords and issues/verifies password reset tokens.
type CredentialService struct {
	codec    *utils.TokenCodec
	resetTTL time.Duration
	cost     int
}

// NewCredentialService binds the service to the token codec; resetTTL <= 0 means 1800 seconds.
func NewCredentialService(codec *utils.TokenCodec, resetTTL time.Duration) *CredentialService {
	if resetTTL <= 0 {
		resetTTL = utils.DefaultResetTTL
	}
	return &CredentialService{codec: codec, resetTTL: resetTTL, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *CredentialService) WithHashCost(cost int) *CredentialService {
	s.cost = cost
	return s
}

// Hash returns the salted bcrypt hash of password.
func (s *CredentialService) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares the bcrypt hashed password with its possible plaintext equivalent.
func (s *CredentialService) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueResetToken signs a reset token for userID. expiresIn <= 0 uses the configured window.
func (s *CredentialService) IssueResetToken(userID uint, expiresIn time.Duration) (string, error) {
	if expiresIn <= 0 {
		expiresIn = s.resetTTL
	}
	return s.codec.IssueResetToken(userID, expiresIn)
}

// VerifyResetToken returns the user id inside token, or ok=false for anything
// expired, malformed or signed with another key.
func (s *CredentialService) VerifyResetToken(token string) (uint, bool) {
	return s.codec.VerifyResetToken(token)
}
