// Package mailer is the narrow seam to the platform's notification system.
// The auth core dispatches at most one attempt per event and never retries;
// retry policy belongs to the mail side.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

type Notification struct {
	Subject   string
	Recipient string
	Username  string
	Body      string
}

type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}

// SMTPDispatcher delivers over plain SMTP.
type SMTPDispatcher struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSMTPDispatcher(host string, port int, from string, username string, password string) *SMTPDispatcher {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &SMTPDispatcher{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		auth: auth,
	}
}

func (d *SMTPDispatcher) Send(_ context.Context, n Notification) error {
	msg := strings.Join([]string{
		"From: " + d.from,
		"To: " + n.Recipient,
		"Subject: " + n.Subject,
		"",
		"Hello " + n.Username + ",",
		"",
		n.Body,
	}, "\r\n")

	if err := smtp.SendMail(d.addr, d.auth, d.from, []string{n.Recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", n.Recipient, err)
	}
	return nil
}

// LogDispatcher writes notifications to the log instead of delivering them.
// Used when no SMTP host is configured.
type LogDispatcher struct{}

func (LogDispatcher) Send(_ context.Context, n Notification) error {
	slog.Info("mail dispatch (log only)",
		"recipient", n.Recipient,
		"subject", n.Subject,
		"body", n.Body,
	)
	return nil
}
