package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/mpereira-dev/tasknest/config"
)

// Notifier delivers user-facing notifications. Callers treat delivery as
// fire-and-forget: failures are logged, never propagated to the client.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPNotifier sends mail through a plain SMTP relay.
type SMTPNotifier struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

func NewSMTPNotifier(cfg config.SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: logger}
}

func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	msg := buildMessage(n.cfg.From, to, subject, body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", to, err)
	}
	n.logger.InfoContext(ctx, "Email sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development where no SMTP relay is available.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.logger.InfoContext(ctx, "Notification (not delivered, log-only mailer)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}
