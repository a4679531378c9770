package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hablas/internal/config"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
)

const minDialTimeout = time.Second

// SMTPSender entrega los correos de reset por SMTP con go-mail.
// TLSMode acepta auto, starttls, ssl o none.
type SMTPSender struct {
	Host, From, User, Pass string
	Port                   int
	TLSMode                string
	InsecureSkipVerify     bool

	log *zap.Logger
}

func NewSMTPSender(host string, port int, from, user, pass string, log *zap.Logger) *SMTPSender {
	return &SMTPSender{
		Host: host, Port: port, From: from, User: user, Pass: pass,
		TLSMode: "auto",
		log:     logger.Or(log).With(logger.Component("email"), logger.String("smtp_host", host)),
	}
}

// FromConfig elige SMTP cuando hay SMTP_HOST; sin él los correos sólo se loguean.
func FromConfig(c *config.Config, log *zap.Logger) Sender {
	sc := c.SMTP
	if sc.Host == "" {
		return NewLogSender(log)
	}
	s := NewSMTPSender(sc.Host, sc.Port, sc.From, sc.Username, sc.Password, log)
	if sc.TLS != "" {
		s.TLSMode = sc.TLS
	}
	s.InsecureSkipVerify = sc.InsecureSkipVerify
	return s
}

func (s *SMTPSender) message(to, subject, htmlBody, textBody string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeaders(map[string][]string{
		"From":    {s.From},
		"To":      {to},
		"Subject": {subject},
	})
	switch {
	case textBody != "" && htmlBody != "":
		m.SetBody("text/plain", textBody)
		m.AddAlternative("text/html", htmlBody)
	case htmlBody != "":
		m.SetBody("text/html", htmlBody)
	default:
		m.SetBody("text/plain", textBody)
	}
	return m
}

func (s *SMTPSender) dialer(ctx context.Context) *mail.Dialer {
	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{ServerName: s.Host, InsecureSkipVerify: s.InsecureSkipVerify}
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	}
	if deadline, ok := ctx.Deadline(); ok {
		d.Timeout = max(time.Until(deadline), minDialTimeout)
	}
	return d
}

// Send respeta ctx aunque go-mail no lo reciba: si vence, el envío en
// curso se abandona y se devuelve ctx.Err().
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	m := s.message(to, subject, htmlBody, textBody)
	d := s.dialer(ctx)

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		s.log.Error("smtp send failed", logger.Email(to), logger.Err(err))
		return fmt.Errorf("email: smtp: %w", err)
	}
	s.log.Debug("email sent", logger.Email(to))
	return nil
}
