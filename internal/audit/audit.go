// Package audit registra eventos de autenticación de forma best-effort.
//
// Record nunca bloquea ni falla la decisión de auth: encola en un buffer
// acotado y un worker escribe en los sinks. Con el buffer lleno el evento se
// descarta y se cuenta en auth_audit_dropped_total.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/metrics"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
)

// Tipos de evento.
const (
	EventLogin              = "login"
	EventLogout             = "logout"
	EventTokenRefresh       = "token_refresh"
	EventPasswordChange     = "password_change"
	EventFailedLogin        = "failed_login"
	EventAccountLocked      = "account_locked"
	EventSuspiciousActivity = "suspicious_activity"
	EventRegistration       = "registration"
	EventPasswordReset      = "password_reset"
	EventRoleChange         = "role_change"
	EventDeactivation       = "deactivation"
)

const DefaultBuffer = 1024

// drainTimeout acota cuánto espera el worker para vaciar el buffer al cerrar.
const drainTimeout = 5 * time.Second

// Sink es un destino de eventos.
type Sink interface {
	Name() string
	Write(ctx context.Context, e repository.AuditEntry) error
}

type Logger struct {
	ch    chan repository.AuditEntry
	sinks []Sink
	log   *zap.Logger
	now   func() time.Time
}

// New crea el logger de auditoría. Run debe correr para que los eventos se escriban.
func New(buffer int, log *zap.Logger, sinks ...Sink) *Logger {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Logger{
		ch:    make(chan repository.AuditEntry, buffer),
		sinks: sinks,
		log:   logger.Or(log).With(logger.Component("audit")),
		now:   time.Now,
	}
}

// Record encola un evento. Nunca bloquea. Un *Logger nil descarta todo.
func (l *Logger) Record(_ context.Context, e repository.AuditEntry) {
	if l == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	select {
	case l.ch <- e:
	default:
		metrics.AuditDropped.Inc()
		l.log.Warn("audit buffer full, event dropped", logger.Event(e.EventType))
	}
}

// Run escribe eventos hasta que ctx se cancele; después vacía lo pendiente.
func (l *Logger) Run(ctx context.Context) error {
	for {
		select {
		case e := <-l.ch:
			l.write(ctx, e)
		case <-ctx.Done():
			l.drain()
			return nil
		}
	}
}

func (l *Logger) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-l.ch:
			l.write(ctx, e)
		default:
			return
		}
	}
}

func (l *Logger) write(ctx context.Context, e repository.AuditEntry) {
	for _, s := range l.sinks {
		if err := s.Write(ctx, e); err != nil {
			metrics.AuditEvents.WithLabelValues(s.Name(), "failed").Inc()
			l.log.Warn("audit sink write failed",
				zap.String("sink", s.Name()), logger.Event(e.EventType), logger.Err(err))
			continue
		}
		metrics.AuditEvents.WithLabelValues(s.Name(), "written").Inc()
	}
}

// Pending devuelve cuántos eventos esperan en el buffer.
func (l *Logger) Pending() int { return len(l.ch) }
