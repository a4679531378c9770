package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/dropDatabas3/hablas/internal/audit"
	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
	"github.com/dropDatabas3/hablas/internal/rbac"
	"github.com/dropDatabas3/hablas/internal/session"
)

type CreatePrincipalInput struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// CreatePrincipal da de alta una cuenta. actor nil significa llamada de
// sistema (CLI, bootstrap) y saltea la autorización.
func (s *Service) CreatePrincipal(ctx context.Context, actor *Identity, in CreatePrincipalInput, o Origin) (*repository.Principal, error) {
	role, ok := rbac.ParseRole(in.Role)
	if !ok {
		return nil, ErrInvalidInput
	}
	if actor != nil {
		if err := Authorize(actor, rbac.CanManageUsers); err != nil {
			return nil, err
		}
		if !rbac.CanAssignRole(actor.Role, role) {
			return nil, ErrForbidden
		}
	}
	emailAddr := strings.ToLower(strings.TrimSpace(in.Email))
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		return nil, ErrInvalidInput
	}
	if err := s.validatePassword(in.Password); err != nil {
		return nil, err
	}
	h, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	cctx, cancel := s.withTimeout(ctx)
	p, err := s.principals.Create(cctx, repository.CreatePrincipalInput{
		Email:        emailAddr,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: h,
		Role:         string(role),
	})
	cancel()
	if err != nil {
		return nil, storeErr("create principal", err)
	}

	e := repository.AuditEntry{
		PrincipalID: p.ID,
		EventType:   audit.EventRegistration,
		Success:     true,
		Metadata:    map[string]string{"role": p.Role},
	}
	if actor != nil {
		e.Metadata["actor"] = actor.PrincipalID
	}
	s.record(ctx, e, o)
	return p, nil
}

// cutTokens invalida los access tokens ya emitidos al principal.
func (s *Service) cutTokens(ctx context.Context, principalID string) error {
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.principals.SetTokensValidAfter(cctx, principalID, s.now().UTC())
}

// SetRole cambia el rol, corta los access tokens emitidos y revoca todas las
// sesiones del principal.
func (s *Service) SetRole(ctx context.Context, actor *Identity, principalID, newRole string, o Origin) error {
	role, ok := rbac.ParseRole(newRole)
	if !ok {
		return ErrInvalidInput
	}
	if actor != nil {
		if err := Authorize(actor, rbac.CanManageUsers); err != nil {
			return err
		}
		if !rbac.CanAssignRole(actor.Role, role) {
			return ErrForbidden
		}
	}
	gctx, cancel := s.withTimeout(ctx)
	p, err := s.principals.GetByID(gctx, principalID)
	cancel()
	if err != nil {
		return storeErr("load principal", err)
	}
	if p.Role == string(role) {
		return nil
	}

	if err := s.cutTokens(ctx, p.ID); err != nil {
		return storeErr("cut tokens", err)
	}
	uctx, cancel := s.withTimeout(ctx)
	err = s.principals.SetRole(uctx, p.ID, string(role))
	cancel()
	if err != nil {
		return storeErr("set role", err)
	}
	if _, err := s.sessions.RevokeAll(ctx, p.ID, session.RevokeAdmin); err != nil {
		return unavailable("revoke sessions", err)
	}

	md := map[string]string{"from": p.Role, "to": string(role)}
	if actor != nil {
		md["actor"] = actor.PrincipalID
	}
	s.record(ctx, repository.AuditEntry{
		PrincipalID: p.ID,
		EventType:   audit.EventRoleChange,
		Success:     true,
		Metadata:    md,
	}, o)
	s.log.Info("role changed", logger.UserID(p.ID), logger.Role(string(role)))
	return nil
}

// Deactivate desactiva la cuenta, corta sus access tokens y revoca sus
// sesiones. Un admin no puede desactivarse a sí mismo.
func (s *Service) Deactivate(ctx context.Context, actor *Identity, principalID string, o Origin) error {
	if actor != nil {
		if err := Authorize(actor, rbac.CanManageUsers); err != nil {
			return err
		}
		if actor.PrincipalID == principalID {
			return ErrForbidden
		}
	}
	if err := s.cutTokens(ctx, principalID); err != nil {
		return storeErr("cut tokens", err)
	}
	uctx, cancel := s.withTimeout(ctx)
	err := s.principals.SetActive(uctx, principalID, false)
	cancel()
	if err != nil {
		return storeErr("deactivate", err)
	}
	n, err := s.sessions.RevokeAll(ctx, principalID, session.RevokeDeactivated)
	if err != nil {
		return unavailable("revoke sessions", err)
	}

	md := map[string]string{"sessions_revoked": strconv.Itoa(n)}
	if actor != nil {
		md["actor"] = actor.PrincipalID
	}
	s.record(ctx, repository.AuditEntry{
		PrincipalID: principalID,
		EventType:   audit.EventDeactivation,
		Success:     true,
		Metadata:    md,
	}, o)
	return nil
}

// HasActiveAdmin indica si existe al menos un admin activo.
func (s *Service) HasActiveAdmin(ctx context.Context) (bool, error) {
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.principals.CountByRole(cctx, string(rbac.RoleAdmin))
	if err != nil {
		return false, unavailable("count admins", err)
	}
	return n > 0, nil
}

// BootstrapAdmin crea un admin si no existe ninguno activo. Devuelve false si
// no hizo nada.
func (s *Service) BootstrapAdmin(ctx context.Context, emailAddr, plain string) (bool, error) {
	if emailAddr == "" || plain == "" {
		return false, nil
	}
	has, err := s.HasActiveAdmin(ctx)
	if err != nil || has {
		return false, err
	}
	_, err = s.CreatePrincipal(ctx, nil, CreatePrincipalInput{
		Email:    emailAddr,
		Name:     "Administrador",
		Password: plain,
		Role:     string(rbac.RoleAdmin),
	}, Origin{IP: "bootstrap"})
	if errors.Is(err, ErrEmailTaken) {
		// existe la cuenta pero no es admin: no se pisa
		s.log.Warn("bootstrap admin email already registered", logger.Email(emailAddr))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.log.Info("bootstrap admin created", logger.Email(emailAddr))
	return true, nil
}
