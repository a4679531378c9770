// Package session maneja el ciclo de vida de las sesiones: creación,
// rotación de refresh tokens de un solo uso, revocación y limpieza.
//
// Estados: created -> active -> (rotated -> active)* -> revoked | expired.
// revoked y expired son terminales.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/jwt"
	"github.com/dropDatabas3/hablas/internal/metrics"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
	"github.com/dropDatabas3/hablas/internal/revocation"
	tokens "github.com/dropDatabas3/hablas/internal/security/token"
)

const (
	DefaultTTL          = 30 * 24 * time.Hour
	DefaultStoreTimeout = 2 * time.Second
	DefaultRetention    = 7 * 24 * time.Hour
)

// Motivos de revocación persistidos en revoke_reason.
const (
	RevokeLogout         = "logout"
	RevokeLogoutAll      = "logout_all"
	RevokePasswordChange = "password_change"
	RevokePasswordReset  = "password_reset"
	RevokeDeactivated    = "deactivated"
	RevokeAdmin          = "admin"
)

type Options struct {
	TTL          time.Duration
	StoreTimeout time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
}

// Store orquesta SessionRepository, el registro de revocaciones y el emisor
// de access tokens. Es el único camino para mutar sesiones.
type Store struct {
	sessions   repository.SessionRepository
	principals repository.PrincipalRepository
	registry   revocation.Registry
	issuer     *jwt.Issuer

	ttl     time.Duration
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time

	sf singleflight.Group
}

func NewStore(sessions repository.SessionRepository, principals repository.PrincipalRepository,
	registry revocation.Registry, issuer *jwt.Issuer, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		sessions:   sessions,
		principals: principals,
		registry:   registry,
		issuer:     issuer,
		ttl:        opts.TTL,
		timeout:    opts.StoreTimeout,
		log:        logger.Or(opts.Logger).With(logger.Component("session")),
		now:        opts.Now,
	}
}

// TTL devuelve la vida de una sesión.
func (s *Store) TTL() time.Duration { return s.ttl }

// Created es el resultado de Create. RefreshToken es el único lugar donde el
// token en claro existe: no se persiste.
type Created struct {
	Session      *repository.Session
	RefreshToken string
}

// Create abre una sesión nueva para principalID.
func (s *Store) Create(ctx context.Context, principalID string, device repository.DeviceInfo) (*Created, error) {
	raw, err := tokens.NewOpaque()
	if err != nil {
		return nil, fmt.Errorf("session: generate refresh token: %w", err)
	}
	if device.DeviceType == "" {
		device.DeviceType = DetectDeviceType(device.UserAgent)
	}
	now := s.now().UTC()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	sess, err := s.sessions.Create(ctx, repository.CreateSessionInput{
		PrincipalID:      principalID,
		RefreshTokenHash: tokens.Hash(raw),
		Device:           device,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl),
	})
	if err != nil {
		return nil, storeErr("create session", err)
	}
	s.log.Debug("session created", logger.SessionID(sess.ID), logger.UserID(principalID))
	return &Created{Session: sess, RefreshToken: raw}, nil
}

// Rotated es el resultado de Rotate.
type Rotated struct {
	Session      *repository.Session
	Principal    *repository.Principal
	RefreshToken string
	AccessToken  string
	Claims       *jwt.Claims
}

// Rotate canjea un refresh token por uno nuevo más un access token.
// El token viejo queda inutilizable: su hash deja de estar en la sesión
// (UPDATE condicional) y además queda en el registro de revocaciones hasta la
// expiración de la sesión. Un replay del token viejo devuelve ErrInvalidRefresh.
func (s *Store) Rotate(ctx context.Context, oldRefresh string, extended bool) (*Rotated, error) {
	if oldRefresh == "" {
		metrics.SessionRotations.WithLabelValues("invalid").Inc()
		return nil, invalid(ReasonEmpty, "")
	}
	oldHash := tokens.Hash(oldRefresh)
	now := s.now().UTC()

	blacklisted, err := s.isBlacklisted(ctx, oldHash)
	if err != nil {
		metrics.SessionRotations.WithLabelValues("error").Inc()
		return nil, err
	}
	if blacklisted {
		metrics.SessionRotations.WithLabelValues("replay").Inc()
		s.log.Warn("refresh token replay", logger.TokenHash(oldHash), logger.Reason(ReasonReplayed))
		return nil, invalid(ReasonReplayed, "")
	}

	// lo que puede fallar va antes del UPDATE condicional: si algo falla
	// después de reemplazar el hash, el cliente pierde la sesión
	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	cur, err := s.sessions.GetByRefreshHash(lctx, oldHash)
	cancel()
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !cur.IsActive(now)) {
		metrics.SessionRotations.WithLabelValues("invalid").Inc()
		return nil, invalid(ReasonNotActive, "")
	}
	if err != nil {
		metrics.SessionRotations.WithLabelValues("error").Inc()
		return nil, storeErr("lookup session", err)
	}

	p, err := s.principal(ctx, cur.PrincipalID)
	if err != nil {
		metrics.SessionRotations.WithLabelValues("error").Inc()
		return nil, err
	}
	if p == nil || !p.IsActive {
		_, _ = s.revoke(ctx, cur.ID, RevokeDeactivated)
		metrics.SessionRotations.WithLabelValues("invalid").Inc()
		return nil, invalid(ReasonPrincipalGone, cur.ID)
	}

	newRaw, err := tokens.NewOpaque()
	if err != nil {
		return nil, fmt.Errorf("session: generate refresh token: %w", err)
	}
	access, claims, err := s.issuer.Issue(p.ID, p.Email, p.Role, extended)
	if err != nil {
		return nil, fmt.Errorf("session: issue access token: %w", err)
	}

	sess, err := s.rotateHash(ctx, oldHash, tokens.Hash(newRaw), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.SessionRotations.WithLabelValues("invalid").Inc()
			return nil, invalid(ReasonNotActive, "")
		}
		metrics.SessionRotations.WithLabelValues("error").Inc()
		return nil, storeErr("rotate session", err)
	}

	// el hash viejo queda bloqueado hasta que expire la sesión
	if err := s.blacklist(ctx, oldHash, sess.ExpiresAt); err != nil {
		s.log.Warn("blacklist rotated refresh token failed",
			logger.SessionID(sess.ID), logger.TokenHash(oldHash), logger.Err(err))
	}
	metrics.SessionRotations.WithLabelValues("ok").Inc()
	s.log.Debug("session rotated", logger.SessionID(sess.ID), logger.UserID(p.ID))

	return &Rotated{
		Session:      sess,
		Principal:    p,
		RefreshToken: newRaw,
		AccessToken:  access,
		Claims:       claims,
	}, nil
}

func (s *Store) isBlacklisted(ctx context.Context, hash string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.registry.IsBlacklisted(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("session: revocation lookup: %w: %v", repository.ErrUnavailable, err)
	}
	return ok, nil
}

func (s *Store) blacklist(ctx context.Context, hash string, until time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.registry.Blacklist(ctx, hash, until)
}

func (s *Store) rotateHash(ctx context.Context, oldHash, newHash string, now time.Time) (*repository.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.sessions.RotateRefreshHash(ctx, oldHash, newHash, now)
}

// principal resuelve el dueño de la sesión. Rotaciones concurrentes del mismo
// principal (varias pestañas) comparten la consulta.
func (s *Store) principal(ctx context.Context, id string) (*repository.Principal, error) {
	v, err, _ := s.sf.Do(id, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		p, err := s.principals.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return (*repository.Principal)(nil), nil
		}
		return p, err
	})
	if err != nil {
		return nil, storeErr("load principal", err)
	}
	p := v.(*repository.Principal)
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// Revoke termina una sesión. Revocar una sesión ya revocada no es error.
func (s *Store) Revoke(ctx context.Context, sessionID, reason string) error {
	_, err := s.revoke(ctx, sessionID, reason)
	return err
}

func (s *Store) revoke(ctx context.Context, sessionID, reason string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.sessions.Revoke(ctx, sessionID, reason, s.now().UTC())
	if err != nil {
		return false, storeErr("revoke session", err)
	}
	if ok {
		s.log.Info("session revoked", logger.SessionID(sessionID), logger.Reason(reason))
	}
	return ok, nil
}

// RevokeByRefresh revoca la sesión dueña de un refresh token y bloquea el
// token. Devuelve el ID de la sesión ("" si el token no pertenecía a ninguna).
func (s *Store) RevokeByRefresh(ctx context.Context, refresh, reason string) (string, error) {
	if refresh == "" {
		return "", nil
	}
	hash := tokens.Hash(refresh)

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	sess, err := s.sessions.GetByRefreshHash(lctx, hash)
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", storeErr("lookup session", err)
	}
	if _, err := s.revoke(ctx, sess.ID, reason); err != nil {
		return sess.ID, err
	}
	if err := s.blacklist(ctx, hash, sess.ExpiresAt); err != nil {
		s.log.Warn("blacklist refresh token on logout failed", logger.SessionID(sess.ID), logger.Err(err))
	}
	return sess.ID, nil
}

// RevokeAll revoca todas las sesiones activas de un principal
// (cambio de password, "cerrar sesión en todos lados").
func (s *Store) RevokeAll(ctx context.Context, principalID, reason string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.sessions.RevokeAllByPrincipal(ctx, principalID, reason, s.now().UTC())
	if err != nil {
		return 0, storeErr("revoke all sessions", err)
	}
	s.log.Info("sessions revoked", logger.UserID(principalID), logger.Reason(reason), zap.Int("count", n))
	return n, nil
}

// Touch actualiza last_used_at. No extiende la expiración.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.sessions.Touch(ctx, sessionID, s.now().UTC()); err != nil {
		return storeErr("touch session", err)
	}
	return nil
}

// Get devuelve una sesión por ID.
func (s *Store) Get(ctx context.Context, sessionID string) (*repository.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, storeErr("get session", err)
	}
	return sess, nil
}

// ListActive devuelve las sesiones activas de un principal, más recientes primero.
func (s *Store) ListActive(ctx context.Context, principalID string) ([]repository.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	list, err := s.sessions.ListActiveByPrincipal(ctx, principalID, s.now().UTC())
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	return list, nil
}

// Cleanup borra sesiones terminadas hace más de retention y purga el
// registro de revocaciones si el backend lo necesita.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	n, err := s.sessions.DeleteExpired(dctx, s.now().UTC().Add(-retention))
	cancel()
	if err != nil {
		return 0, storeErr("cleanup sessions", err)
	}
	if p, ok := s.registry.(revocation.Purger); ok {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		purged, err := p.Purge(pctx)
		cancel()
		if err != nil {
			s.log.Warn("revocation purge failed", logger.Err(err))
		} else if purged > 0 {
			s.log.Debug("revocations purged", zap.Int("count", purged))
		}
	}
	return n, nil
}

// RunJanitor ejecuta Cleanup cada interval hasta que ctx se cancele.
func (s *Store) RunJanitor(ctx context.Context, interval, retention time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := s.Cleanup(ctx, retention)
			if err != nil {
				s.log.Warn("session janitor failed", logger.Err(err))
				continue
			}
			if n > 0 {
				s.log.Info("session janitor", zap.Int("deleted", n))
			}
		}
	}
}

// storeErr deja pasar ErrNotFound y convierte el resto en ErrUnavailable:
// un backend caído nunca se confunde con "no existe".
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrInvalidInput):
		return fmt.Errorf("session: %s: %w", op, err)
	default:
		return fmt.Errorf("session: %s: %w: %v", op, repository.ErrUnavailable, err)
	}
}
