package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
)

// ZapSink escribe cada evento como una línea estructurada.
type ZapSink struct {
	log *zap.Logger
}

func NewZapSink(log *zap.Logger) *ZapSink {
	return &ZapSink{log: logger.Or(log).Named("audit")}
}

func (s *ZapSink) Name() string { return "log" }

func (s *ZapSink) Write(_ context.Context, e repository.AuditEntry) error {
	fields := []zap.Field{
		logger.Event(e.EventType),
		zap.Bool("success", e.Success),
		zap.Time("ts", e.Timestamp),
	}
	if e.PrincipalID != "" {
		fields = append(fields, logger.UserID(e.PrincipalID))
	}
	if e.Reason != "" {
		fields = append(fields, logger.Reason(e.Reason))
	}
	if e.IPAddress != "" {
		fields = append(fields, logger.ClientIP(e.IPAddress))
	}
	if e.UserAgent != "" {
		fields = append(fields, logger.UserAgent(e.UserAgent))
	}
	for k, v := range e.Metadata {
		fields = append(fields, zap.String("meta."+k, v))
	}
	s.log.Info("audit", fields...)
	return nil
}

// StoreSink persiste eventos en un AuditRepository (auth_audit_log).
type StoreSink struct {
	repo    repository.AuditRepository
	timeout time.Duration
}

func NewStoreSink(repo repository.AuditRepository, timeout time.Duration) *StoreSink {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &StoreSink{repo: repo, timeout: timeout}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Write(ctx context.Context, e repository.AuditEntry) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.Append(ctx, e)
}
