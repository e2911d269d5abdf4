package notifier

import (
	"context"

	"sjsage522/webmonitor/config"
	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/logger"
)

// Notifier fans alerts out to the configured channels. Unconfigured channels are no-ops.
type Notifier struct {
	email *EmailNotifier
	push  *TelegramNotifier
}

var _ monitor.Notifier = (*Notifier)(nil)

// New creates a notifier over the given channels; either may be nil
func New(email *EmailNotifier, push *TelegramNotifier) *Notifier {
	return &Notifier{email: email, push: push}
}

// NewFromConfig wires the channels enabled in cfg. A failing Telegram login
// disables push instead of failing startup.
func NewFromConfig(cfg *config.Config) *Notifier {
	n := &Notifier{}

	emailCfg := EmailConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}
	if emailCfg.Enabled() {
		n.email = NewEmailNotifier(emailCfg)
	} else {
		logger.ForNotifier().Warn().Msg("SMTP not configured, email alerts disabled")
	}

	if cfg.TelegramBotToken != "" {
		push, err := NewTelegramNotifier(cfg.TelegramBotToken)
		if err != nil {
			logger.ForNotifier().Warn().Err(err).Msg("Push alerts disabled")
		} else {
			n.push = push
		}
	}

	return n
}

// SendEmail implements monitor.Notifier
func (n *Notifier) SendEmail(ctx context.Context, recipient, subject, htmlBody string) error {
	if n.email == nil {
		return nil
	}
	return n.email.Send(ctx, recipient, subject, htmlBody)
}

// SendPush implements monitor.Notifier
func (n *Notifier) SendPush(ctx context.Context, deviceToken, title, body string) error {
	if n.push == nil || deviceToken == "" {
		return nil
	}
	return n.push.Send(ctx, deviceToken, title, body)
}
