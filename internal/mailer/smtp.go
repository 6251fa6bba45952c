package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/sony/gobreaker/v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	ResetURL string // base URL the token is appended to
}

// SMTPMailer sends password reset mail through a plain SMTP relay. A circuit
// breaker keeps a dead relay from stalling every forgot-password request.
type SMTPMailer struct {
	cfg SMTPConfig
	cb  *gobreaker.CircuitBreaker[struct{}]
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "smtp",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &SMTPMailer{cfg: cfg, cb: cb}
}

func (m *SMTPMailer) SendPasswordReset(_ context.Context, toEmail, resetToken string) error {
	body := fmt.Sprintf(
		"To: %s\r\nFrom: %s\r\nSubject: Reset your password\r\n\r\n"+
			"Use the link below to reset your password. It expires in one hour.\r\n\r\n%s?token=%s\r\n",
		toEmail, m.cfg.From, m.cfg.ResetURL, resetToken)

	_, err := m.cb.Execute(func() (struct{}, error) {
		addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
		var auth smtp.Auth
		if m.cfg.User != "" {
			auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
		}
		return struct{}{}, smtp.SendMail(addr, auth, m.cfg.From, []string{toEmail}, []byte(body))
	})
	if err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}
