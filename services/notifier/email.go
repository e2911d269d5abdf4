package notifier

import (
	"context"
	"fmt"
	"strings"

	"sjsage522/webmonitor/logger"

	"gopkg.in/gomail.v2"
)

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Enabled reports whether enough is configured to send mail
func (c EmailConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// EmailNotifier sends HTML alerts over SMTP
type EmailNotifier struct {
	cfg  EmailConfig
	send func(m *gomail.Message) error
}

// NewEmailNotifier creates an SMTP notifier; every message opens its own connection
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	return &EmailNotifier{
		cfg:  cfg,
		send: func(m *gomail.Message) error { return dialer.DialAndSend(m) },
	}
}

// newEmailNotifierWithSender is used by tests to capture messages
func newEmailNotifierWithSender(cfg EmailConfig, s gomail.Sender) *EmailNotifier {
	return &EmailNotifier{
		cfg:  cfg,
		send: func(m *gomail.Message) error { return gomail.Send(s, m) },
	}
}

// Send delivers one HTML message
func (n *EmailNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !n.cfg.Enabled() {
		logger.ForNotifier().Warn().Msg("Email config missing, skip notification")
		return nil
	}
	if strings.TrimSpace(to) == "" {
		logger.ForNotifier().Warn().Msg("Email recipient empty, skip notification")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", n.cfg.From, "Web Monitor")
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := n.send(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	logger.ForNotifier().Info().Str("to", to).Msg("Email notification sent")
	return nil
}
