package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestResetTokenRoundTripBeforeExpiry(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := NewTokenCodec("secret-a").WithClock(fixedClock(issued))

	token, err := codec.IssueResetToken(42, 0)
	require.NoError(t, err)

	verifier := codec.WithClock(fixedClock(issued.Add(29 * time.Minute)))
	userID, ok := verifier.VerifyResetToken(token)
	assert.True(t, ok)
	assert.Equal(t, uint(42), userID)
}

func TestResetTokenExpires(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := NewTokenCodec("secret-a").WithClock(fixedClock(issued))

	token, err := codec.IssueResetToken(42, DefaultResetTTL)
	require.NoError(t, err)

	late := codec.WithClock(fixedClock(issued.Add(DefaultResetTTL + time.Second)))
	userID, ok := late.VerifyResetToken(token)
	assert.False(t, ok)
	assert.Zero(t, userID)
}

func TestResetTokenRejectsOtherKey(t *testing.T) {
	token, err := NewTokenCodec("secret-a").IssueResetToken(7, time.Minute)
	require.NoError(t, err)

	_, ok := NewTokenCodec("secret-b").VerifyResetToken(token)
	assert.False(t, ok)
}

func TestResetTokenRejectsGarbage(t *testing.T) {
	codec := NewTokenCodec("secret-a")
	for _, token := range []string{"", "not-a-token", "a.b.c", strings.Repeat("x", 500)} {
		_, ok := codec.VerifyResetToken(token)
		assert.False(t, ok, "token %q", token)
	}
}

func TestSessionTokenCannotBeUsedForReset(t *testing.T) {
	codec := NewTokenCodec("secret-a")
	session, _, err := codec.IssueSessionToken(3, "alice", false, time.Hour)
	require.NoError(t, err)

	_, ok := codec.VerifyResetToken(session)
	assert.False(t, ok)

	reset, err := codec.IssueResetToken(3, time.Hour)
	require.NoError(t, err)
	_, err = codec.ParseSessionToken(reset)
	assert.Error(t, err)
}

func TestSessionTokenClaims(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := NewTokenCodec("secret-a").WithClock(fixedClock(now))

	token, expiresAt, err := codec.IssueSessionToken(3, "alice", true, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	claims, err := codec.ParseSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.Remember)
}
