package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/blog/models"
)

func TestSendResetEmail(t *testing.T) {
	creds := newTestCredentials("secret")
	mail := &sentMail{}
	sender := NewNotificationSender(mail, creds, "http://blog.test/", "noreply@demo.com")
	user := &models.User{ID: 7, Email: "alice@example.com"}

	require.NoError(t, sender.SendResetEmail(context.Background(), user))

	msg := mail.last()
	assert.Equal(t, "Password Reset Request", msg.Subject)
	assert.Equal(t, "noreply@demo.com", msg.From)
	assert.Equal(t, []string{"alice@example.com"}, msg.To)
	assert.True(t, strings.HasPrefix(msg.Body, "To reset your password, visit the following link:\nhttp://blog.test/reset_password/"))
	assert.Contains(t, msg.Body, "If you did not make this request then simply ignore this email and no changes will be made.")

	link := strings.SplitN(msg.Body, "\n", 3)[1]
	token := strings.TrimPrefix(link, "http://blog.test/reset_password/")
	id, ok := creds.VerifyResetToken(token)
	assert.True(t, ok)
	assert.Equal(t, uint(7), id)
}

func TestSendResetEmailPropagatesMailerError(t *testing.T) {
	mail := &sentMail{err: errors.New("smtp down")}
	sender := NewNotificationSender(mail, newTestCredentials("secret"), "http://blog.test", "noreply@demo.com")
	err := sender.SendResetEmail(context.Background(), &models.User{ID: 1, Email: "a@b.c"})
	assert.EqualError(t, err, "smtp down")
}
