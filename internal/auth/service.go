// Package auth es el núcleo de autenticación: verificación de credenciales,
// login, verificación de access tokens, refresh, logout, flujos de password y
// administración de principals. Todas las dependencias se inyectan.
package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hablas/internal/audit"
	"github.com/dropDatabas3/hablas/internal/config"
	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/email"
	"github.com/dropDatabas3/hablas/internal/jwt"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
	"github.com/dropDatabas3/hablas/internal/rate"
	"github.com/dropDatabas3/hablas/internal/rbac"
	"github.com/dropDatabas3/hablas/internal/revocation"
	"github.com/dropDatabas3/hablas/internal/security/password"
	"github.com/dropDatabas3/hablas/internal/session"
)

// Deps son las dependencias del servicio. Mailer y Audit son opcionales.
type Deps struct {
	Principals repository.PrincipalRepository
	Sessions   *session.Store
	Issuer     *jwt.Issuer
	Registry   revocation.Registry
	Limiter    *rate.Limiter
	Hasher     *password.Hasher
	Policy     password.Policy
	Audit      *audit.Logger
	Mailer     email.Sender

	ResetTTL     time.Duration
	ResetBaseURL string
	StoreTimeout time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
}

type Service struct {
	principals repository.PrincipalRepository
	sessions   *session.Store
	issuer     *jwt.Issuer
	registry   revocation.Registry
	limiter    *rate.Limiter
	hasher     *password.Hasher
	policy     password.Policy
	audit      *audit.Logger
	mailer     email.Sender

	resetTTL     time.Duration
	resetBaseURL string
	timeout      time.Duration
	log          *zap.Logger
	now          func() time.Time
}

func NewService(d Deps) (*Service, error) {
	if d.Principals == nil || d.Sessions == nil || d.Issuer == nil ||
		d.Registry == nil || d.Limiter == nil || d.Hasher == nil {
		return nil, errors.New("auth: missing dependency")
	}
	if d.ResetTTL <= 0 {
		d.ResetTTL = time.Hour
	}
	if d.StoreTimeout <= 0 {
		d.StoreTimeout = session.DefaultStoreTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Policy == (password.Policy{}) {
		d.Policy = password.DefaultPolicy()
	}
	return &Service{
		principals:   d.Principals,
		sessions:     d.Sessions,
		issuer:       d.Issuer,
		registry:     d.Registry,
		limiter:      d.Limiter,
		hasher:       d.Hasher,
		policy:       d.Policy,
		audit:        d.Audit,
		mailer:       d.Mailer,
		resetTTL:     d.ResetTTL,
		resetBaseURL: d.ResetBaseURL,
		timeout:      d.StoreTimeout,
		log:          logger.Or(d.Logger).With(logger.Component("auth")),
		now:          d.Now,
	}, nil
}

// Origin identifica al cliente de un request.
type Origin struct {
	IP        string
	UserAgent string
}

// Identity es el resultado de una verificación completa (firma, expiración y
// revocación). RefreshSuggested se calcula una sola vez, aquí.
type Identity struct {
	PrincipalID      string
	Email            string
	Role             rbac.Role
	Claims           *jwt.Claims
	Token            string `json:"-"`
	RefreshSuggested bool
}

// Can indica si la identidad tiene la capability.
func (id *Identity) Can(c rbac.Capability) bool {
	return id != nil && rbac.HasCapability(id.Role, c)
}

// Authorize devuelve ErrForbidden si la identidad no tiene la capability.
func Authorize(id *Identity, c rbac.Capability) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if !id.Can(c) {
		return ErrForbidden
	}
	return nil
}

// RequireRole devuelve ErrForbidden si el rol no alcanza el mínimo.
func RequireRole(id *Identity, min rbac.Role) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if !rbac.SatisfiesMinimumRole(id.Role, min) {
		return ErrForbidden
	}
	return nil
}

// Limiter expone el limiter para el middleware HTTP y el dashboard.
func (s *Service) Limiter() *rate.Limiter { return s.limiter }

// Issuer expone el emisor (TTL de cookies).
func (s *Service) Issuer() *jwt.Issuer { return s.issuer }

// Sessions expone el session store.
func (s *Service) Sessions() *session.Store { return s.sessions }

func (s *Service) record(ctx context.Context, e repository.AuditEntry, o Origin) {
	e.IPAddress = o.IP
	e.UserAgent = o.UserAgent
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	s.audit.Record(ctx, e)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// checkLimit aplica la política de category al identificador.
func (s *Service) checkLimit(ctx context.Context, identifier, category string) (rate.Result, error) {
	res, err := s.limiter.CheckCategory(ctx, identifier, category)
	if errors.Is(err, rate.ErrUnknownCategory) {
		// sin política configurada no se limita
		return rate.Result{Allowed: true}, nil
	}
	if err != nil {
		return res, err
	}
	if !res.Allowed {
		return res, &RateLimitError{Category: category, Result: res}
	}
	return res, nil
}

// resetLimit es best-effort: el limiter nunca debe tumbar un flujo exitoso.
func (s *Service) resetLimit(ctx context.Context, identifier, category string) {
	if identifier == "" {
		return
	}
	if err := s.limiter.Reset(ctx, identifier, category); err != nil {
		s.log.Debug("limiter reset failed", logger.Category(category), logger.Err(err))
	}
}

// categorías usadas por el servicio
const (
	categoryLogin         = config.CategoryLogin
	categoryPasswordReset = config.CategoryPasswordReset
	categoryRegistration  = config.CategoryRegistration
)

// mailTimeout acota el envío en segundo plano del mail de reset.
const mailTimeout = 30 * time.Second
