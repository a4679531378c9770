// Package email envía los correos del flujo de recuperación de cuenta.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	texttpl "text/template"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hablas/internal/observability/logger"
)

// Sender es la interfaz para enviar emails.
type Sender interface {
	// Send envía un email con contenido HTML y texto plano.
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// ResetVars son las variables del template de reset.
type ResetVars struct {
	UserEmail string
	Link      string
	TTL       string
}

var (
	resetHTML = template.Must(template.New("reset_html").Parse(`<p>Hola,</p>
<p>Recibimos un pedido para restablecer la contraseña de <strong>{{.UserEmail}}</strong>.</p>
<p><a href="{{.Link}}">Restablecer contraseña</a></p>
<p>El enlace vence en {{.TTL}}. Si no fuiste vos, ignorá este mensaje.</p>`))

	resetTXT = texttpl.Must(texttpl.New("reset_txt").Parse(`Hola,

Recibimos un pedido para restablecer la contraseña de {{.UserEmail}}.

Abrí este enlace: {{.Link}}

El enlace vence en {{.TTL}}. Si no fuiste vos, ignorá este mensaje.
`))
)

const ResetSubject = "Restablecer tu contraseña"

// ResetLink arma el enlace de reset: {baseURL}/reset-password?token=...
func ResetLink(baseURL, token string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" {
		u = &url.URL{Path: baseURL}
	}
	u = u.JoinPath("reset-password")
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// RenderReset renderiza las versiones HTML y texto del correo de reset.
func RenderReset(vars ResetVars) (htmlBody, textBody string, err error) {
	var hb, tb bytes.Buffer
	if err := resetHTML.Execute(&hb, vars); err != nil {
		return "", "", fmt.Errorf("render reset html: %w", err)
	}
	if err := resetTXT.Execute(&tb, vars); err != nil {
		return "", "", fmt.Errorf("render reset text: %w", err)
	}
	return hb.String(), tb.String(), nil
}

// SendReset renderiza y envía el correo de reset.
func SendReset(ctx context.Context, s Sender, to, link string, ttl time.Duration) error {
	h, t, err := RenderReset(ResetVars{UserEmail: to, Link: link, TTL: ttl.String()})
	if err != nil {
		return err
	}
	return s.Send(ctx, to, ResetSubject, h, t)
}

// LogSender no envía nada: loguea el destinatario y el asunto. Para dev sin SMTP.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: logger.Or(log).With(logger.Component("email"))}
}

func (s *LogSender) Send(_ context.Context, to, subject, _, textBody string) error {
	s.log.Info("email (not sent, no SMTP configured)",
		logger.String("to", to), logger.String("subject", subject), logger.Int("bytes", len(textBody)))
	return nil
}
