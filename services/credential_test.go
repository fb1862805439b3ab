package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/blog/utils"
)

func newTestCredentials(secret string) *CredentialService {
	return NewCredentialService(utils.NewTokenCodec(secret), 0).WithHashCost(bcrypt.MinCost)
}

func TestHashAndVerify(t *testing.T) {
	creds := newTestCredentials("k")
	for _, pw := range []string{"password", "", "ünïcødé-pässwörd", "p@ss w0rd"} {
		hash, err := creds.Hash(pw)
		require.NoError(t, err)
		assert.NotEqual(t, pw, hash)
		assert.True(t, creds.Verify(hash, pw), "password %q", pw)
		assert.False(t, creds.Verify(hash, pw+"x"), "password %q", pw)
	}
}

func TestHashIsSalted(t *testing.T) {
	creds := newTestCredentials("k")
	a, err := creds.Hash("same")
	require.NoError(t, err)
	b, err := creds.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestResetTokenLifecycle(t *testing.T) {
	issued := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	codec := utils.NewTokenCodec("k").WithClock(func() time.Time { return issued })
	creds := NewCredentialService(codec, 0)

	token, err := creds.IssueResetToken(11, 0)
	require.NoError(t, err)

	userID, ok := creds.VerifyResetToken(token)
	assert.True(t, ok)
	assert.Equal(t, uint(11), userID)

	expired := NewCredentialService(codec.WithClock(func() time.Time { return issued.Add(1801 * time.Second) }), 0)
	_, ok = expired.VerifyResetToken(token)
	assert.False(t, ok)

	_, ok = newTestCredentials("other-key").VerifyResetToken(token)
	assert.False(t, ok)
}
