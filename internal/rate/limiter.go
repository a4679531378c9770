package rate

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hablas/internal/metrics"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
)

// Mode indica qué backend atiende el limiter.
type Mode string

const (
	ModeDistributed Mode = "distributed"
	ModeInProcess   Mode = "in-process"
)

const (
	DefaultMaxKeys        = 10000
	DefaultBackendTimeout = 250 * time.Millisecond
	// DefaultProbeInterval: mientras está degradado, cada cuánto se reintenta Redis.
	DefaultProbeInterval = 5 * time.Second
)

// ErrUnknownCategory se devuelve cuando no hay política para la categoría.
var ErrUnknownCategory = errors.New("rate: unknown category")

// Policy es la configuración de una categoría. El limiter no conoce categorías
// concretas: recibe max + ventana.
type Policy struct {
	Max     int
	Window  time.Duration
	Message string
}

// Result es la respuesta de Check.
type Result struct {
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
	ResetAt   int64  `json:"resetAt"` // epoch seconds
	Limit     int    `json:"limit"`
	Error     string `json:"error,omitempty"`
	Backend   Mode   `json:"-"`
}

// RetryAfter devuelve cuánto falta para resetAt (mínimo 1s si está denegado).
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := time.Unix(r.ResetAt, 0).Sub(now)
	if d < time.Second {
		d = time.Second
	}
	return d.Round(time.Second)
}

// Counter es un contador fixed-window por key.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

type Options struct {
	// Redis opcional; nil => solo in-process.
	Redis          *rdb.Client
	Prefix         string
	MaxKeys        int
	Shards         int
	BackendTimeout time.Duration
	ProbeInterval  time.Duration
	Policies       map[string]Policy
	Logger         *zap.Logger
	Now            func() time.Time
}

// Stats describe el estado del limiter (dashboard / readyz).
type Stats struct {
	Mode        Mode   `json:"mode"`
	Configured  bool   `json:"distributedConfigured"`
	TrackedKeys int    `json:"trackedKeys"`
	MaxKeys     int    `json:"maxKeys"`
	Fallbacks   uint64 `json:"fallbacks"`
}

// Limiter combina un contador distribuido (opcional) con el fallback en memoria.
// La selección de backend es por llamada: un error de Redis atiende esa llamada
// in-process y marca el modo degradado hasta que Redis vuelva a responder.
type Limiter struct {
	remote   Counter
	local    *MemoryCounter
	policies map[string]Policy
	timeout  time.Duration
	probe    time.Duration
	log      *zap.Logger
	now      func() time.Time

	degraded  atomic.Bool
	retryAt   atomic.Int64 // unix nanos
	fallbacks atomic.Uint64
}

// New construye el limiter. Loguea el modo inicial.
func New(opts Options) (*Limiter, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxKeys <= 0 {
		opts.MaxKeys = DefaultMaxKeys
	}
	if opts.BackendTimeout <= 0 {
		opts.BackendTimeout = DefaultBackendTimeout
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = DefaultProbeInterval
	}
	local, err := NewMemoryCounter(opts.MaxKeys, opts.Shards, opts.Now)
	if err != nil {
		return nil, err
	}
	l := &Limiter{
		local:    local,
		policies: opts.Policies,
		timeout:  opts.BackendTimeout,
		probe:    opts.ProbeInterval,
		log:      logger.Or(opts.Logger).With(logger.Component("rate")),
		now:      opts.Now,
	}
	if opts.Redis != nil {
		rc := NewRedisCounter(opts.Redis, opts.Prefix)
		rc.now = opts.Now
		l.remote = rc
	}
	l.publishMode()
	if l.remote == nil {
		l.log.Warn("rate limiter sin backend distribuido; límites por instancia",
			logger.Backend(string(ModeInProcess)))
	} else {
		l.log.Info("rate limiter listo", logger.Backend(string(ModeDistributed)))
	}
	return l, nil
}

// WithCounter reemplaza el contador distribuido (tests / backends alternativos).
func (l *Limiter) WithCounter(c Counter) *Limiter {
	l.remote = c
	l.publishMode()
	return l
}

// Mode devuelve el backend que atendería la próxima llamada.
func (l *Limiter) Mode() Mode {
	if l.remote == nil || l.degraded.Load() {
		return ModeInProcess
	}
	return ModeDistributed
}

// Policy devuelve la política configurada para category.
func (l *Limiter) Policy(category string) (Policy, bool) {
	p, ok := l.policies[category]
	return p, ok
}

// Policies devuelve una copia de las políticas configuradas.
func (l *Limiter) Policies() map[string]Policy {
	out := make(map[string]Policy, len(l.policies))
	for k, v := range l.policies {
		out[k] = v
	}
	return out
}

// CheckCategory aplica la política configurada para category.
func (l *Limiter) CheckCategory(ctx context.Context, identifier, category string) (Result, error) {
	p, ok := l.policies[category]
	if !ok {
		return Result{}, ErrUnknownCategory
	}
	return l.Check(ctx, identifier, category, p), nil
}

// Check cuenta un request de identifier en category. Nunca falla por
// infraestructura: si Redis no responde a tiempo se usa el contador local.
func (l *Limiter) Check(ctx context.Context, identifier, category string, p Policy) Result {
	key := Key(category, identifier)

	count, resetAt, backend := l.incr(ctx, key, p.Window)

	res := Result{
		Allowed: count <= int64(p.Max),
		Limit:   p.Max,
		ResetAt: ceilUnix(resetAt),
		Backend: backend,
	}
	if rem := int64(p.Max) - count; rem > 0 {
		res.Remaining = int(rem)
	}
	result := "allowed"
	if !res.Allowed {
		result = "denied"
		res.Error = p.Message
		l.log.Debug("rate limit excedido",
			logger.Category(category), logger.Backend(string(backend)), zap.Int64("count", count))
	}
	metrics.RateLimitDecisions.WithLabelValues(category, string(backend), result).Inc()
	return res
}

func (l *Limiter) incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, Mode) {
	if l.remote != nil && l.shouldTryRemote() {
		cctx, cancel := context.WithTimeout(ctx, l.timeout)
		count, resetAt, err := l.remote.Incr(cctx, key, window)
		cancel()
		if err == nil {
			l.markRecovered()
			return count, resetAt, ModeDistributed
		}
		l.markDegraded(err)
	}
	if l.remote != nil {
		l.fallbacks.Add(1)
		metrics.RateLimitFallbacks.Inc()
	}
	// MemoryCounter solo falla con ventana inválida; se trata como 1er hit.
	count, resetAt, err := l.local.Incr(ctx, key, window)
	if err != nil {
		l.log.Error("rate limiter: contador local", logger.Err(err))
		return 1, l.now(), ModeInProcess
	}
	return count, resetAt, ModeInProcess
}

// shouldTryRemote: sano => siempre; degradado => solo cuando venció la espera de probe.
func (l *Limiter) shouldTryRemote() bool {
	if !l.degraded.Load() {
		return true
	}
	now := l.now().UnixNano()
	next := l.retryAt.Load()
	if now < next {
		return false
	}
	// un solo probe por intervalo
	return l.retryAt.CompareAndSwap(next, l.now().Add(l.probe).UnixNano())
}

func (l *Limiter) markDegraded(err error) {
	l.retryAt.Store(l.now().Add(l.probe).UnixNano())
	if l.degraded.CompareAndSwap(false, true) {
		l.log.Warn("rate limiter degradado a in-process",
			logger.Backend(string(ModeInProcess)), logger.Err(err))
		l.publishMode()
	}
}

func (l *Limiter) markRecovered() {
	if l.degraded.CompareAndSwap(true, false) {
		l.log.Info("rate limiter recuperado", logger.Backend(string(ModeDistributed)))
		l.publishMode()
	}
}

func (l *Limiter) publishMode() {
	if l.Mode() == ModeDistributed {
		metrics.RateLimitMode.Set(1)
	} else {
		metrics.RateLimitMode.Set(0)
	}
}

// Reset limpia el contador de identifier en category en ambos backends.
func (l *Limiter) Reset(ctx context.Context, identifier, category string) error {
	key := Key(category, identifier)
	_ = l.local.Reset(ctx, key)
	if l.remote == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.remote.Reset(cctx, key); err != nil {
		l.log.Warn("rate limiter: reset distribuido falló", logger.Category(category), logger.Err(err))
		return err
	}
	return nil
}

// Sweep elimina ventanas vencidas del contador local.
func (l *Limiter) Sweep() int {
	n := l.local.Sweep()
	metrics.RateLimitTrackedKeys.Set(float64(l.local.Len()))
	return n
}

// Run ejecuta el sweep periódico hasta que ctx se cancele.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := l.Sweep(); n > 0 {
				l.log.Debug("rate limiter sweep", zap.Int("removed", n))
			}
		}
	}
}

func (l *Limiter) Stats() Stats {
	return Stats{
		Mode:        l.Mode(),
		Configured:  l.remote != nil,
		TrackedKeys: l.local.Len(),
		MaxKeys:     l.local.Cap(),
		Fallbacks:   l.fallbacks.Load(),
	}
}

// Key arma la key de un contador: category:identifier.
func Key(category, identifier string) string {
	return category + ":" + identifier
}

func ceilUnix(t time.Time) int64 {
	s := t.Unix()
	if t.Nanosecond() > 0 {
		s++
	}
	return s
}
