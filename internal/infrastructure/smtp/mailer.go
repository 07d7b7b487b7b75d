package smtp

import (
	"fmt"
	"log/slog"

	"github.com/hive-api/internal/config"
	"github.com/sony/gobreaker"
	"gopkg.in/gomail.v2"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// mailer dispatches through gomail behind a circuit breaker, so a dead SMTP
// relay fails fast with gobreaker.ErrOpenState instead of timing out per request.
type mailer struct {
	dialer dialer
	from   string
	cb     *gobreaker.CircuitBreaker
}

func NewMailer(cfg *config.Config) Mailer {
	return newMailer(
		gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		cfg.SMTPFrom,
		breakerSettings(cfg),
	)
}

func newMailer(d dialer, from string, st gobreaker.Settings) *mailer {
	return &mailer{dialer: d, from: from, cb: gobreaker.NewCircuitBreaker(st)}
}

func breakerSettings(cfg *config.Config) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     cfg.SMTPBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.SMTPBreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}
}

func (m *mailer) SendEmail(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	_, err := m.cb.Execute(func() (interface{}, error) {
		return nil, m.dialer.DialAndSend(msg)
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
