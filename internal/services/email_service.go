package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"zudlik/internal/config"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// EmailServiceConfig tunes outbound mail delivery.
type EmailServiceConfig struct {
	MaxRetries  uint64        `json:"max_retries"`
	SendTimeout time.Duration `json:"send_timeout"`
}

// DefaultEmailServiceConfig returns production defaults.
func DefaultEmailServiceConfig() *EmailServiceConfig {
	return &EmailServiceConfig{
		MaxRetries:  3,
		SendTimeout: 15 * time.Second,
	}
}

type emailService struct {
	smtp   config.EmailConfig
	config *EmailServiceConfig
	logger *zap.Logger
}

// NewEmailService creates an SMTP-backed email sender. When the SMTP host is
// unset, sends are logged and dropped so local development works without a
// mail server.
func NewEmailService(smtpConfig config.EmailConfig, cfg *EmailServiceConfig, logger *zap.Logger) EmailService {
	if cfg == nil {
		cfg = DefaultEmailServiceConfig()
	}
	return &emailService{
		smtp:   smtpConfig,
		config: cfg,
		logger: logger,
	}
}

func (s *emailService) Send(ctx context.Context, to, subject, body string) error {
	if s.smtp.Host == "" {
		s.logger.Info("email delivery skipped, no smtp host configured",
			zap.String("to", to),
			zap.String("subject", subject),
		)
		return nil
	}

	msg := s.buildMessage(to, subject, body)
	addr := fmt.Sprintf("%s:%d", s.smtp.Host, s.smtp.Port)
	auth := smtp.PlainAuth("", s.smtp.Username, s.smtp.Password, s.smtp.Host)

	operation := func() error {
		sendCtx, cancel := context.WithTimeout(ctx, s.config.SendTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- smtp.SendMail(addr, auth, s.smtp.From, []string{to}, msg)
		}()
		select {
		case err := <-done:
			return err
		case <-sendCtx.Done():
			return backoff.Permanent(sendCtx.Err())
		}
	}

	notify := func(err error, d time.Duration) {
		s.logger.Warn("email send failed, retrying",
			zap.String("to", to),
			zap.Duration("backoff", d),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.config.MaxRetries), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	s.logger.Info("email sent",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

func (s *emailService) buildMessage(to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.smtp.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
