// Package mailer composes the reset-password and verification emails and
// hands them to a transport.
package mailer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Transport delivers a composed message.
type Transport interface {
	Send(ctx context.Context, m Message) error
}

type Mailer struct {
	transport Transport
	from      string
	baseURL   string
}

func New(transport Transport, from string, baseURL string) *Mailer {
	if from == "" {
		from = "noreply@localhost"
	}
	return &Mailer{
		transport: transport,
		from:      from,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

func (m *Mailer) SendResetPasswordEmail(ctx context.Context, to string, token string) error {
	link := m.link("/v1/auth/reset-password", token)
	body := fmt.Sprintf(`Dear user,

To reset your password, submit your new password to: %s

If you did not request a password reset, you can ignore this email.
`, link)
	return m.send(ctx, to, "Reset password", body)
}

func (m *Mailer) SendVerificationEmail(ctx context.Context, to string, token string) error {
	link := m.link("/v1/auth/verify-email", token)
	body := fmt.Sprintf(`Dear user,

To verify your email, open this link: %s

If you did not create an account, you can ignore this email.
`, link)
	return m.send(ctx, to, "Email verification", body)
}

func (m *Mailer) send(ctx context.Context, to string, subject string, body string) error {
	err := m.transport.Send(ctx, Message{From: m.from, To: []string{to}, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("send %q email: %w", subject, err)
	}
	return nil
}

func (m *Mailer) link(path string, token string) string {
	return m.baseURL + path + "?token=" + url.QueryEscape(token)
}
