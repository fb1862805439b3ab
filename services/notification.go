package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/cppla/blog/models"
	"github.com/cppla/blog/utils"
)

const resetSubject = "Password Reset Request"

// NotificationSender mails password reset links.
type NotificationSender struct {
	mailer  utils.Mailer
	creds   *CredentialService
	baseURL string
	from    string
}

func NewNotificationSender(mailer utils.Mailer, creds *CredentialService, baseURL, from string) *NotificationSender {
	return &NotificationSender{
		mailer:  mailer,
		creds:   creds,
		baseURL: strings.TrimRight(baseURL, "/"),
		from:    from,
	}
}

// ResetURL is the absolute link a user follows to choose a new password.
func (n *NotificationSender) ResetURL(token string) string {
	return n.baseURL + "/reset_password/" + token
}

// SendResetEmail issues a fresh reset token for user and mails the link. Delivery is not retried.
func (n *NotificationSender) SendResetEmail(ctx context.Context, user *models.User) error {
	token, err := n.creds.IssueResetToken(user.ID, 0)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	body := fmt.Sprintf(`To reset your password, visit the following link:
%s

If you did not make this request then simply ignore this email and no changes will be made.
`, n.ResetURL(token))

	return n.mailer.Send(ctx, utils.Email{
		From:    n.from,
		To:      []string{user.Email},
		Subject: resetSubject,
		Body:    body,
	})
}
