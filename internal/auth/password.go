package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/hablas/internal/audit"
	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/email"
	"github.com/dropDatabas3/hablas/internal/jwt"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
	"github.com/dropDatabas3/hablas/internal/revocation"
	tokens "github.com/dropDatabas3/hablas/internal/security/token"
	"github.com/dropDatabas3/hablas/internal/session"
)

// validatePassword aplica la política y devuelve un *PolicyError con los motivos.
func (s *Service) validatePassword(plain string) error {
	if ok, reasons := s.policy.Validate(plain); !ok {
		return &PolicyError{Reasons: reasons}
	}
	return nil
}

func (s *Service) setPassword(ctx context.Context, principalID, plain string) error {
	h, err := s.hasher.Hash(ctx, plain)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	uctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.principals.UpdatePasswordHash(uctx, principalID, h); err != nil {
		return storeErr("update password", err)
	}
	return nil
}

// ChangePassword verifica el password actual, guarda el nuevo y cierra todas
// las sesiones del principal, incluido el access token presentado.
func (s *Service) ChangePassword(ctx context.Context, id *Identity, current, next string, o Origin) error {
	if id == nil {
		return ErrUnauthenticated
	}
	gctx, cancel := s.withTimeout(ctx)
	p, err := s.principals.GetByID(gctx, id.PrincipalID)
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUnauthenticated
	}
	if err != nil {
		return unavailable("load principal", err)
	}

	ok, err := s.hasher.Compare(ctx, current, p.PasswordHash)
	if err != nil {
		return unavailable("compare password", err)
	}
	if !ok || !p.IsActive {
		s.record(ctx, repository.AuditEntry{
			PrincipalID: p.ID,
			EventType:   audit.EventPasswordChange,
			Reason:      ReasonWrongPassword,
		}, o)
		return ErrInvalidCredentials
	}
	if err := s.validatePassword(next); err != nil {
		return err
	}
	if err := s.setPassword(ctx, p.ID, next); err != nil {
		return err
	}

	n, err := s.sessions.RevokeAll(ctx, p.ID, session.RevokePasswordChange)
	if err != nil {
		return unavailable("revoke sessions", err)
	}
	if _, err := s.blacklistAccess(ctx, id.Token); err != nil {
		return unavailable("blacklist access token", err)
	}
	s.resetLimit(ctx, o.IP, categoryLogin)

	s.record(ctx, repository.AuditEntry{
		PrincipalID: p.ID,
		EventType:   audit.EventPasswordChange,
		Success:     true,
		Metadata:    map[string]string{"sessions_revoked": fmt.Sprint(n)},
	}, o)
	return nil
}

// RequestPasswordReset siempre responde igual exista o no el email. Si el
// principal existe y está activo se emite un token de propósito y el mail se
// envía en segundo plano.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string, o Origin) error {
	if _, err := s.checkLimit(ctx, o.IP, categoryPasswordReset); err != nil {
		return err
	}
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if emailAddr == "" {
		return nil
	}

	gctx, cancel := s.withTimeout(ctx)
	p, err := s.principals.GetByEmail(gctx, emailAddr)
	cancel()
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("password reset lookup failed", logger.Err(err))
		}
		return nil
	}
	if !p.IsActive {
		return nil
	}

	token, _, err := s.issuer.IssuePurpose(p.ID, p.Email, jwt.PurposePasswordReset, s.resetTTL)
	if err != nil {
		s.log.Error("issue reset token failed", logger.UserID(p.ID), logger.Err(err))
		return nil
	}
	s.record(ctx, repository.AuditEntry{
		PrincipalID: p.ID,
		EventType:   audit.EventPasswordReset,
		Reason:      "requested",
		Success:     true,
	}, o)

	if s.mailer == nil {
		s.log.Warn("no mailer configured, reset link not delivered", logger.UserID(p.ID))
		return nil
	}
	link := email.ResetLink(s.resetBaseURL, token)
	go s.sendReset(context.WithoutCancel(ctx), p, link)
	return nil
}

func (s *Service) sendReset(ctx context.Context, p *repository.Principal, link string) {
	ctx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()
	if err := email.SendReset(ctx, s.mailer, p.Email, link, s.resetTTL); err != nil {
		s.log.Error("send reset email failed", logger.UserID(p.ID), logger.Err(err))
	}
}

// ConfirmPasswordReset consume un token de reset (uso único), fija el
// password nuevo y revoca todas las sesiones.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, next string, o Origin) error {
	if _, err := s.checkLimit(ctx, o.IP, categoryPasswordReset); err != nil {
		return err
	}
	claims, err := s.issuer.VerifyPurpose(token, jwt.PurposePasswordReset)
	if err != nil {
		s.log.Debug("reset token rejected", logger.Reason(jwt.Reason(err)))
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if err := s.validatePassword(next); err != nil {
		return err
	}

	gctx, cancel := s.withTimeout(ctx)
	p, err := s.principals.GetByID(gctx, claims.SubjectID())
	cancel()
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !p.IsActive) {
		return ErrUnauthenticated
	}
	if err != nil {
		return unavailable("load principal", err)
	}

	// el claim es atómico: entre confirmaciones concurrentes gana una sola
	cctx, cancel := s.withTimeout(ctx)
	won, err := s.registry.Claim(cctx, tokens.Hash(token), claims.ExpiresAtTime())
	cancel()
	if errors.Is(err, revocation.ErrExpired) {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, jwt.NewVerifyError(jwt.ErrTokenExpired, nil))
	}
	if err != nil {
		return unavailable("claim reset token", err)
	}
	if !won {
		s.record(ctx, repository.AuditEntry{
			PrincipalID: claims.SubjectID(),
			EventType:   audit.EventSuspiciousActivity,
			Reason:      "reset_token_reused",
		}, o)
		return fmt.Errorf("%w: %w", ErrUnauthenticated, jwt.NewVerifyError(jwt.ErrTokenRevoked, nil))
	}
	if err := s.setPassword(ctx, p.ID, next); err != nil {
		return err
	}
	if _, err := s.sessions.RevokeAll(ctx, p.ID, session.RevokePasswordReset); err != nil {
		return unavailable("revoke sessions", err)
	}
	s.resetLimit(ctx, o.IP, categoryLogin)
	s.resetLimit(ctx, o.IP, categoryPasswordReset)

	s.record(ctx, repository.AuditEntry{
		PrincipalID: p.ID,
		EventType:   audit.EventPasswordReset,
		Reason:      "completed",
		Success:     true,
	}, o)
	return nil
}
