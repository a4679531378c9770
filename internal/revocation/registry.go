// Package revocation implementa el registro de tokens revocados (blacklist).
//
// Cada entrada vive exactamente hasta la expiración natural del token que
// bloquea: blacklistear un token ya vencido no hace nada, y el registro no
// puede crecer sin límite. Las consultas fallan cerradas: un error del backend
// se propaga y el llamador debe rechazar el token.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hablas/internal/cache"
	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
)

// ErrEmptyHash se devuelve al blacklistear un hash vacío.
var ErrEmptyHash = errors.New("revocation: empty token hash")

// Registry es el contrato del registro de revocaciones.
type Registry interface {
	// Blacklist bloquea tokenHash hasta naturalExpiry. Si naturalExpiry ya
	// pasó, es un no-op.
	Blacklist(ctx context.Context, tokenHash string, naturalExpiry time.Time) error

	// IsBlacklisted indica si tokenHash está bloqueado. Un error significa
	// "desconocido" y debe tratarse como revocado.
	IsBlacklisted(ctx context.Context, tokenHash string) (bool, error)

	// Claim bloquea tokenHash y reporta si esta llamada fue la que lo bloqueó.
	// Entre llamadas concurrentes con el mismo hash, a lo sumo una gana.
	// Es la primitiva de los tokens de un solo uso.
	Claim(ctx context.Context, tokenHash string, naturalExpiry time.Time) (bool, error)
}

// ErrExpired se devuelve al reclamar un token cuya expiración ya pasó.
var ErrExpired = errors.New("revocation: token already expired")

// keyPrefix separa las entradas de revocación del resto de keys del cache.
const keyPrefix = "revoked:"

// CacheRegistry guarda las entradas en un cache.Client (memoria o Redis) con
// TTL = naturalExpiry - now; el backend se encarga de expirarlas.
type CacheRegistry struct {
	c   cache.Client
	now func() time.Time
}

func NewCacheRegistry(c cache.Client, now func() time.Time) *CacheRegistry {
	if now == nil {
		now = time.Now
	}
	return &CacheRegistry{c: c, now: now}
}

func (r *CacheRegistry) Blacklist(ctx context.Context, tokenHash string, naturalExpiry time.Time) error {
	if tokenHash == "" {
		return ErrEmptyHash
	}
	ttl := naturalExpiry.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.c.Set(ctx, keyPrefix+tokenHash, "1", ttl); err != nil {
		return fmt.Errorf("revocation: blacklist: %w", err)
	}
	return nil
}

func (r *CacheRegistry) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	if tokenHash == "" {
		return false, nil
	}
	ok, err := r.c.Exists(ctx, keyPrefix+tokenHash)
	if err != nil {
		return false, fmt.Errorf("revocation: lookup: %w", err)
	}
	return ok, nil
}

func (r *CacheRegistry) Claim(ctx context.Context, tokenHash string, naturalExpiry time.Time) (bool, error) {
	if tokenHash == "" {
		return false, ErrEmptyHash
	}
	ttl := naturalExpiry.Sub(r.now())
	if ttl <= 0 {
		return false, ErrExpired
	}
	ok, err := r.c.SetNX(ctx, keyPrefix+tokenHash, "1", ttl)
	if err != nil {
		return false, fmt.Errorf("revocation: claim: %w", err)
	}
	return ok, nil
}

// StoreRegistry persiste las entradas en la tabla revoked_tokens. La
// expiración se resuelve en la consulta (expires_at > now) y Purge las borra.
type StoreRegistry struct {
	repo repository.RevocationRepository
	now  func() time.Time
}

func NewStoreRegistry(repo repository.RevocationRepository, now func() time.Time) *StoreRegistry {
	if now == nil {
		now = time.Now
	}
	return &StoreRegistry{repo: repo, now: now}
}

func (r *StoreRegistry) Blacklist(ctx context.Context, tokenHash string, naturalExpiry time.Time) error {
	if tokenHash == "" {
		return ErrEmptyHash
	}
	now := r.now()
	if !naturalExpiry.After(now) {
		return nil
	}
	err := r.repo.Insert(ctx, repository.RevocationEntry{
		TokenHash: tokenHash,
		RevokedAt: now,
		ExpiresAt: naturalExpiry,
	})
	if err != nil {
		return fmt.Errorf("revocation: blacklist: %w", err)
	}
	return nil
}

func (r *StoreRegistry) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	if tokenHash == "" {
		return false, nil
	}
	ok, err := r.repo.Exists(ctx, tokenHash, r.now())
	if err != nil {
		return false, fmt.Errorf("revocation: lookup: %w", err)
	}
	return ok, nil
}

func (r *StoreRegistry) Claim(ctx context.Context, tokenHash string, naturalExpiry time.Time) (bool, error) {
	if tokenHash == "" {
		return false, ErrEmptyHash
	}
	now := r.now()
	if !naturalExpiry.After(now) {
		return false, ErrExpired
	}
	ok, err := r.repo.Claim(ctx, repository.RevocationEntry{
		TokenHash: tokenHash,
		RevokedAt: now,
		ExpiresAt: naturalExpiry,
	})
	if err != nil {
		return false, fmt.Errorf("revocation: claim: %w", err)
	}
	return ok, nil
}

// Purge borra las entradas vencidas.
func (r *StoreRegistry) Purge(ctx context.Context) (int, error) {
	return r.repo.Purge(ctx, r.now())
}

// Tiered combina un registro rápido (Redis / memoria) con uno durable (pg).
// Blacklist escribe en ambos; IsBlacklisted consulta primero el rápido y, si
// no encuentra nada, confirma contra el durable. Un error del frente rápido
// se loguea y se consulta el durable; un error del durable se propaga.
type Tiered struct {
	Front   Registry
	Durable Registry
	log     *zap.Logger
}

func NewTiered(front, durable Registry, log *zap.Logger) *Tiered {
	return &Tiered{
		Front:   front,
		Durable: durable,
		log:     logger.Or(log).With(logger.Component("revocation")),
	}
}

func (t *Tiered) Blacklist(ctx context.Context, tokenHash string, naturalExpiry time.Time) error {
	if err := t.Durable.Blacklist(ctx, tokenHash, naturalExpiry); err != nil {
		return err
	}
	if err := t.Front.Blacklist(ctx, tokenHash, naturalExpiry); err != nil {
		t.log.Warn("revocation: front blacklist falló", logger.TokenHash(tokenHash), logger.Err(err))
	}
	return nil
}

func (t *Tiered) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	ok, err := t.Front.IsBlacklisted(ctx, tokenHash)
	if err == nil && ok {
		return true, nil
	}
	if err != nil {
		t.log.Warn("revocation: front lookup falló", logger.TokenHash(tokenHash), logger.Err(err))
	}
	return t.Durable.IsBlacklisted(ctx, tokenHash)
}

// Claim decide en el durable; el frente solo se actualiza para que las
// lecturas posteriores no tengan que bajar al durable.
func (t *Tiered) Claim(ctx context.Context, tokenHash string, naturalExpiry time.Time) (bool, error) {
	ok, err := t.Durable.Claim(ctx, tokenHash, naturalExpiry)
	if err != nil || !ok {
		return ok, err
	}
	if err := t.Front.Blacklist(ctx, tokenHash, naturalExpiry); err != nil {
		t.log.Warn("revocation: front blacklist falló", logger.TokenHash(tokenHash), logger.Err(err))
	}
	return true, nil
}

// Purger lo implementan los registros que necesitan limpieza explícita.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// Purge delega en el durable si sabe purgar.
func (t *Tiered) Purge(ctx context.Context) (int, error) {
	if p, ok := t.Durable.(Purger); ok {
		return p.Purge(ctx)
	}
	return 0, nil
}
