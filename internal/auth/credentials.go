package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/hablas/internal/audit"
	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/jwt"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
	"github.com/dropDatabas3/hablas/internal/rate"
)

// Motivos internos de un login fallido (solo auditoría).
const (
	ReasonUnknownEmail  = "unknown_email"
	ReasonInactive      = "inactive_account"
	ReasonWrongPassword = "wrong_password"
	ReasonEmptyInput    = "empty_input"
	ReasonRateLimited   = "rate_limited"
)

// CredentialResult es el resultado de ValidateCredentials. Reason es interno:
// nunca se devuelve al cliente.
type CredentialResult struct {
	Valid     bool
	Principal *repository.Principal
	Reason    string
}

// ValidateCredentials verifica email + password. Email inexistente, cuenta
// inactiva y password incorrecto producen el mismo resultado externo; el
// motivo queda en el evento failed_login. Solo devuelve error ante fallas de
// infraestructura (fail-closed).
func (s *Service) ValidateCredentials(ctx context.Context, emailAddr, plain string, o Origin) (*CredentialResult, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if emailAddr == "" || plain == "" {
		return s.failedLogin(ctx, "", ReasonEmptyInput, o), nil
	}

	lctx, cancel := s.withTimeout(ctx)
	p, err := s.principals.GetByEmail(lctx, emailAddr)
	cancel()
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, unavailable("lookup principal", err)
	}
	if p == nil {
		// mismo costo que un compare real
		s.hasher.CompareDummy(ctx, plain)
		return s.failedLogin(ctx, "", ReasonUnknownEmail, o), nil
	}

	ok, err := s.hasher.Compare(ctx, plain, p.PasswordHash)
	if err != nil {
		return nil, unavailable("compare password", err)
	}
	if !p.IsActive {
		return s.failedLogin(ctx, p.ID, ReasonInactive, o), nil
	}
	if !ok {
		return s.failedLogin(ctx, p.ID, ReasonWrongPassword, o), nil
	}

	now := s.now().UTC()
	uctx, cancel := s.withTimeout(ctx)
	if err := s.principals.UpdateLastLogin(uctx, p.ID, now); err != nil {
		s.log.Warn("update last login failed", logger.UserID(p.ID), logger.Err(err))
	} else {
		p.LastLogin = &now
	}
	cancel()

	if s.hasher.NeedsRehash(p.PasswordHash) {
		s.rehash(ctx, p, plain)
	}

	s.record(ctx, repository.AuditEntry{PrincipalID: p.ID, EventType: audit.EventLogin, Success: true}, o)
	return &CredentialResult{Valid: true, Principal: p}, nil
}

// rehash migra un hash heredado (bcrypt / parámetros viejos) a argon2id.
func (s *Service) rehash(ctx context.Context, p *repository.Principal, plain string) {
	h, err := s.hasher.Hash(ctx, plain)
	if err != nil {
		s.log.Warn("rehash failed", logger.UserID(p.ID), logger.Err(err))
		return
	}
	uctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.principals.UpdatePasswordHash(uctx, p.ID, h); err != nil {
		s.log.Warn("store rehash failed", logger.UserID(p.ID), logger.Err(err))
		return
	}
	p.PasswordHash = h
	s.log.Info("password hash upgraded", logger.UserID(p.ID))
}

func (s *Service) failedLogin(ctx context.Context, principalID, reason string, o Origin) *CredentialResult {
	s.record(ctx, repository.AuditEntry{
		PrincipalID: principalID,
		EventType:   audit.EventFailedLogin,
		Reason:      reason,
	}, o)
	s.log.Debug("login failed", logger.Reason(reason), logger.ClientIP(o.IP))
	return &CredentialResult{Valid: false, Reason: reason}
}

type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	Origin     Origin
}

type LoginResult struct {
	Principal    *repository.Principal
	AccessToken  string
	Claims       *jwt.Claims
	TokenTTL     time.Duration
	RefreshToken string
	SessionID    string
	RateLimit    rate.Result
}

// Login aplica el límite de la categoría login (por IP) antes de comparar
// credenciales, valida, abre una sesión y emite el access token. Un login
// exitoso resetea el contador de la IP.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	rl, err := s.checkLimit(ctx, in.Origin.IP, categoryLogin)
	if err != nil {
		s.record(ctx, repository.AuditEntry{
			EventType: audit.EventAccountLocked,
			Reason:    ReasonRateLimited,
			Metadata:  map[string]string{"email": strings.ToLower(strings.TrimSpace(in.Email))},
		}, in.Origin)
		return nil, err
	}

	cred, err := s.ValidateCredentials(ctx, in.Email, in.Password, in.Origin)
	if err != nil {
		return nil, err
	}
	if !cred.Valid {
		return nil, ErrInvalidCredentials
	}
	p := cred.Principal

	created, err := s.sessions.Create(ctx, p.ID, repositoryDevice(in.Origin))
	if err != nil {
		return nil, unavailable("create session", err)
	}
	access, claims, err := s.issuer.Issue(p.ID, p.Email, p.Role, in.RememberMe)
	if err != nil {
		return nil, err
	}
	s.resetLimit(ctx, in.Origin.IP, categoryLogin)

	return &LoginResult{
		Principal:    p,
		AccessToken:  access,
		Claims:       claims,
		TokenTTL:     s.issuer.TTLFor(in.RememberMe),
		RefreshToken: created.RefreshToken,
		SessionID:    created.Session.ID,
		RateLimit:    rl,
	}, nil
}
