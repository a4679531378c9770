// Package pg implementa los repositorios sobre PostgreSQL (pgxpool).
package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
)

type Store struct {
	pool *pgxpool.Pool

	Principals  *PrincipalRepo
	Sessions    *SessionRepo
	Revocations *RevocationRepo
	Audit       *AuditRepo
}

// New abre el pool. El arranque no bloquea si la base todavía no responde:
// el ping fallido se loguea y /readyz lo reporta.
func New(ctx context.Context, dsn string, maxConns int32, log *zap.Logger) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: new pool: %w", err)
	}

	log = logger.Or(log)
	if err := pool.Ping(ctx); err != nil {
		log.Warn("pg pool startup ping failed", logger.Err(err))
	} else {
		log.Info("pg pool ready", zap.Int32("max_conns", pcfg.MaxConns))
	}
	return NewWithPool(pool), nil
}

// NewWithPool envuelve un pool existente.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:        pool,
		Principals:  &PrincipalRepo{pool: pool},
		Sessions:    &SessionRepo{pool: pool},
		Revocations: &RevocationRepo{pool: pool},
		Audit:       &AuditRepo{pool: pool},
	}
}

// Pool expone el pool interno (metrics/migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

var (
	_ repository.PrincipalRepository  = (*PrincipalRepo)(nil)
	_ repository.SessionRepository    = (*SessionRepo)(nil)
	_ repository.RevocationRepository = (*RevocationRepo)(nil)
	_ repository.AuditRepository      = (*AuditRepo)(nil)
)

// mapErr traduce errores de pgx a los sentinels del dominio. Todo lo que no
// sea un error de Postgres (conexión, timeout, contexto) es ErrUnavailable.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, repository.ErrConflict)
		case "22P02", "23514", "23503": // invalid_text_representation, check, fk
			return fmt.Errorf("%s: %w", op, repository.ErrInvalidInput)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, repository.ErrUnavailable, err)
}

func nullIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
