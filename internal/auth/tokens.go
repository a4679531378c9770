package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/hablas/internal/audit"
	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/jwt"
	"github.com/dropDatabas3/hablas/internal/metrics"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
	"github.com/dropDatabas3/hablas/internal/rbac"
	tokens "github.com/dropDatabas3/hablas/internal/security/token"
	"github.com/dropDatabas3/hablas/internal/session"
)

func repositoryDevice(o Origin) repository.DeviceInfo {
	return session.NewDeviceInfo(o.UserAgent, o.IP)
}

// Authenticate verifica firma, expiración y revocación de un access token.
// Cualquier rechazo es ErrUnauthenticated hacia afuera; la causa (jwt.Reason)
// solo se loguea. Si el registro de revocaciones no responde, falla cerrado
// con ErrUnavailable.
func (s *Service) Authenticate(ctx context.Context, token string, o Origin) (*Identity, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		reason := jwt.Reason(err)
		metrics.TokenVerifications.WithLabelValues(reason).Inc()
		s.log.Debug("token rejected", logger.Reason(reason), logger.ClientIP(o.IP))
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	hash := tokens.Hash(token)
	rctx, cancel := s.withTimeout(ctx)
	revoked, err := s.registry.IsBlacklisted(rctx, hash)
	cancel()
	if err != nil {
		metrics.TokenVerifications.WithLabelValues("unavailable").Inc()
		return nil, unavailable("revocation lookup", err)
	}
	if revoked {
		metrics.TokenVerifications.WithLabelValues("revoked").Inc()
		s.log.Warn("revoked token presented", logger.UserID(claims.SubjectID()), logger.TokenHash(hash))
		s.record(ctx, repository.AuditEntry{
			PrincipalID: claims.SubjectID(),
			EventType:   audit.EventSuspiciousActivity,
			Reason:      "revoked_access_token",
		}, o)
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, jwt.NewVerifyError(jwt.ErrTokenRevoked, nil))
	}

	// la cuenta puede haber cambiado después de emitido el token
	gctx, cancel := s.withTimeout(ctx)
	p, err := s.principals.GetByID(gctx, claims.SubjectID())
	cancel()
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		metrics.TokenVerifications.WithLabelValues("unavailable").Inc()
		return nil, unavailable("load principal", err)
	}
	if err != nil || !p.IsActive || issuedBeforeCut(claims, p) {
		metrics.TokenVerifications.WithLabelValues("revoked").Inc()
		s.log.Debug("token predates account change", logger.UserID(claims.SubjectID()))
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, jwt.NewVerifyError(jwt.ErrTokenRevoked, nil))
	}

	metrics.TokenVerifications.WithLabelValues("ok").Inc()
	role, _ := rbac.ParseRole(claims.Role)
	return &Identity{
		PrincipalID:      claims.SubjectID(),
		Email:            claims.Email,
		Role:             role,
		Claims:           claims,
		Token:            token,
		RefreshSuggested: s.issuer.ShouldRefresh(claims),
	}, nil
}

// issuedBeforeCut compara a nivel de segundo (precisión de iat): un token
// emitido en el mismo segundo que el corte también queda afuera.
func issuedBeforeCut(c *jwt.Claims, p *repository.Principal) bool {
	if p.TokensValidAfter == nil {
		return false
	}
	return !c.IssuedAtTime().After(p.TokensValidAfter.Truncate(time.Second))
}

type RefreshResult struct {
	Principal    *repository.Principal
	AccessToken  string
	Claims       *jwt.Claims
	TokenTTL     time.Duration
	RefreshToken string
	SessionID    string
}

// Refresh rota el refresh token y emite un access token nuevo.
func (s *Service) Refresh(ctx context.Context, refreshToken string, extended bool, o Origin) (*RefreshResult, error) {
	r, err := s.sessions.Rotate(ctx, refreshToken, extended)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefresh) {
			reason := session.Reason(err)
			ev := audit.EventTokenRefresh
			if reason == session.ReasonReplayed {
				ev = audit.EventSuspiciousActivity
			}
			s.record(ctx, repository.AuditEntry{EventType: ev, Reason: reason}, o)
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		return nil, unavailable("rotate session", err)
	}

	s.record(ctx, repository.AuditEntry{
		PrincipalID: r.Principal.ID,
		EventType:   audit.EventTokenRefresh,
		Success:     true,
		Metadata:    map[string]string{"session_id": r.Session.ID},
	}, o)
	return &RefreshResult{
		Principal:    r.Principal,
		AccessToken:  r.AccessToken,
		Claims:       r.Claims,
		TokenTTL:     s.issuer.TTLFor(extended),
		RefreshToken: r.RefreshToken,
		SessionID:    r.Session.ID,
	}, nil
}

// blacklistAccess bloquea un access token hasta su exp. Tokens inválidos se ignoran.
func (s *Service) blacklistAccess(ctx context.Context, token string) (*jwt.Claims, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, nil
	}
	bctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.registry.Blacklist(bctx, tokens.Hash(token), claims.ExpiresAtTime()); err != nil {
		return claims, err
	}
	return claims, nil
}

// Logout bloquea el access token presentado y revoca la sesión del refresh
// token, si vino. Es idempotente.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string, o Origin) error {
	claims, err := s.blacklistAccess(ctx, accessToken)
	if err != nil {
		return unavailable("blacklist access token", err)
	}
	sid, err := s.sessions.RevokeByRefresh(ctx, refreshToken, session.RevokeLogout)
	if err != nil {
		return unavailable("revoke session", err)
	}

	e := repository.AuditEntry{EventType: audit.EventLogout, Success: true}
	if claims != nil {
		e.PrincipalID = claims.SubjectID()
	}
	if sid != "" {
		e.Metadata = map[string]string{"session_id": sid}
	}
	s.record(ctx, e, o)
	return nil
}

// LogoutAll revoca todas las sesiones del principal y bloquea el token actual.
func (s *Service) LogoutAll(ctx context.Context, id *Identity, o Origin) (int, error) {
	if id == nil {
		return 0, ErrUnauthenticated
	}
	n, err := s.sessions.RevokeAll(ctx, id.PrincipalID, session.RevokeLogoutAll)
	if err != nil {
		return 0, unavailable("revoke all sessions", err)
	}
	if _, err := s.blacklistAccess(ctx, id.Token); err != nil {
		return n, unavailable("blacklist access token", err)
	}
	s.record(ctx, repository.AuditEntry{
		PrincipalID: id.PrincipalID,
		EventType:   audit.EventLogout,
		Success:     true,
		Metadata:    map[string]string{"scope": "all", "sessions": fmt.Sprint(n)},
	}, o)
	return n, nil
}

// Me devuelve el principal de la identidad.
func (s *Service) Me(ctx context.Context, id *Identity) (*repository.Principal, error) {
	if id == nil {
		return nil, ErrUnauthenticated
	}
	gctx, cancel := s.withTimeout(ctx)
	defer cancel()
	p, err := s.principals.GetByID(gctx, id.PrincipalID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, unavailable("load principal", err)
	}
	if !p.IsActive {
		return nil, ErrUnauthenticated
	}
	return p, nil
}

// Sessions lista las sesiones activas de la identidad.
func (s *Service) ListSessions(ctx context.Context, id *Identity) ([]repository.Session, error) {
	if id == nil {
		return nil, ErrUnauthenticated
	}
	list, err := s.sessions.ListActive(ctx, id.PrincipalID)
	if err != nil {
		return nil, unavailable("list sessions", err)
	}
	return list, nil
}
