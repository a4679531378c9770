package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del núcleo de auth. Viven en un paquete aparte para evitar ciclos
// de import entre rate, session, audit y http. Los collectors funcionan aunque
// no estén registrados; main los registra con Register.

var (
	RateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limiter_decisions_total",
		Help: "Decisiones del rate limiter por categoría, backend y resultado",
	}, []string{"category", "backend", "result"}) // result: allowed|denied

	RateLimitFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limiter_fallback_total",
		Help: "Llamadas atendidas in-process porque el backend distribuido falló",
	})

	RateLimitMode = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rate_limiter_backend_mode",
		Help: "1 = distributed, 0 = in-process (degradado o sin Redis)",
	})

	RateLimitTrackedKeys = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rate_limiter_memory_keys",
		Help: "Keys rastreadas por el limiter en memoria",
	})

	RateLimitEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limiter_memory_evictions_total",
		Help: "Entradas desalojadas por alcanzar el techo de keys",
	})

	TokenVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_verifications_total",
		Help: "Verificaciones de access token por resultado",
	}, []string{"result"}) // ok|expired|signature|malformed|claims|revoked|unavailable

	SessionRotations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_session_rotations_total",
		Help: "Rotaciones de refresh token por resultado",
	}, []string{"result"}) // ok|invalid|replay|error

	AuditEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_audit_events_total",
		Help: "Eventos de auditoría por sink y resultado",
	}, []string{"sink", "result"}) // written|failed

	AuditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_audit_dropped_total",
		Help: "Eventos descartados porque el buffer estaba lleno",
	})
)

// Register registra las métricas en el registry indicado (o el default si nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		RateLimitDecisions, RateLimitFallbacks, RateLimitMode, RateLimitTrackedKeys, RateLimitEvictions,
		TokenVerifications, SessionRotations, AuditEvents, AuditDropped,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
