// Package app arma el grafo de dependencias a partir de la configuración.
// cmd/service y cmd/authctl comparten este wiring; no hay singletons.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hablas/internal/audit"
	"github.com/dropDatabas3/hablas/internal/auth"
	"github.com/dropDatabas3/hablas/internal/cache"
	"github.com/dropDatabas3/hablas/internal/config"
	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/email"
	httpx "github.com/dropDatabas3/hablas/internal/http"
	healthctrl "github.com/dropDatabas3/hablas/internal/http/controllers/health"
	"github.com/dropDatabas3/hablas/internal/http/helpers"
	"github.com/dropDatabas3/hablas/internal/http/router"
	"github.com/dropDatabas3/hablas/internal/jwt"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
	"github.com/dropDatabas3/hablas/internal/rate"
	"github.com/dropDatabas3/hablas/internal/revocation"
	"github.com/dropDatabas3/hablas/internal/security/password"
	"github.com/dropDatabas3/hablas/internal/session"
	"github.com/dropDatabas3/hablas/internal/store/memory"
	"github.com/dropDatabas3/hablas/internal/store/pg"
)

// ErrMemoryStoreInProd se devuelve si falta DATABASE_URL en producción.
var ErrMemoryStoreInProd = errors.New("app: DATABASE_URL is required in production")

// Options ajusta Build.
type Options struct {
	// Migrate aplica migraciones pendientes al abrir Postgres.
	Migrate bool
	// Interval del janitor de sesiones; 0 = 1h.
	JanitorInterval time.Duration
}

// App es el contenedor de dependencias.
type App struct {
	Config *config.Config
	Log    *zap.Logger

	PG    *pg.Store     // nil sin DATABASE_URL
	Redis *rdb.Client   // nil sin REDIS_URL
	Mem   *memory.Store // solo sin DATABASE_URL

	Principals repository.PrincipalRepository
	Registry   revocation.Registry
	Limiter    *rate.Limiter
	Issuer     *jwt.Issuer
	Hasher     *password.Hasher
	Sessions   *session.Store
	Audit      *audit.Logger
	Auth       *auth.Service

	janitorInterval time.Duration
}

// Build construye todas las dependencias. Un error aquí aborta el arranque.
func Build(ctx context.Context, c *config.Config, log *zap.Logger, opts Options) (*App, error) {
	log = logger.Or(log)
	a := &App{Config: c, Log: log, janitorInterval: opts.JanitorInterval}

	issuer, err := jwt.NewIssuer(c.JWT.Secret, jwt.Options{
		Issuer:           c.JWT.Issuer,
		AccessTTL:        c.AccessTTL(),
		RememberMeTTL:    c.RememberMeTTL(),
		RefreshThreshold: c.RefreshThreshold(),
	})
	if err != nil {
		return nil, fmt.Errorf("app: issuer: %w", err)
	}
	a.Issuer = issuer

	if err := a.openStores(ctx, opts.Migrate); err != nil {
		a.Close()
		return nil, err
	}
	a.openRedis(ctx)

	// registro de revocaciones: Redis adelante (si hay) y el store durable atrás
	var durable revocation.Registry
	if a.PG != nil {
		durable = revocation.NewStoreRegistry(a.PG.Revocations, nil)
	} else {
		durable = revocation.NewStoreRegistry(a.Mem.Revocations, nil)
	}
	if a.Redis != nil {
		front := revocation.NewCacheRegistry(cache.NewRedis(a.Redis, c.Redis.Prefix), nil)
		a.Registry = revocation.NewTiered(front, durable, log)
	} else {
		a.Registry = durable
	}

	lopts := rate.OptionsFromConfig(c)
	lopts.Logger = log
	lopts.Redis = a.Redis
	a.Limiter, err = rate.New(lopts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: limiter: %w", err)
	}

	a.Hasher = password.NewHasher(password.Default, 0)
	policy := password.DefaultPolicy()
	if path := c.Security.PasswordBlacklistPath; path != "" {
		bl, err := password.LoadBlacklist(path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: password blacklist: %w", err)
		}
		policy.Blacklist = bl
		log.Info("password blacklist loaded", logger.Int("entries", bl.Len()))
	}

	var sessionsRepo repository.SessionRepository
	var auditRepo repository.AuditRepository
	if a.PG != nil {
		a.Principals, sessionsRepo, auditRepo = a.PG.Principals, a.PG.Sessions, a.PG.Audit
	} else {
		a.Principals, sessionsRepo, auditRepo = a.Mem.Principals, a.Mem.Sessions, a.Mem.Audit
	}

	a.Sessions = session.NewStore(sessionsRepo, a.Principals, a.Registry, issuer, session.Options{
		TTL:          c.SessionTTL(),
		StoreTimeout: c.StoreTimeout(),
		Logger:       log,
	})
	a.Audit = audit.New(c.Audit.Buffer, log,
		audit.NewZapSink(log),
		audit.NewStoreSink(auditRepo, c.StoreTimeout()),
	)

	a.Auth, err = auth.NewService(auth.Deps{
		Principals:   a.Principals,
		Sessions:     a.Sessions,
		Issuer:       issuer,
		Registry:     a.Registry,
		Limiter:      a.Limiter,
		Hasher:       a.Hasher,
		Policy:       policy,
		Audit:        a.Audit,
		Mailer:       email.FromConfig(c, log),
		ResetTTL:     c.PasswordResetTTL(),
		ResetBaseURL: c.Email.BaseURL,
		StoreTimeout: c.StoreTimeout(),
		Logger:       log,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: auth service: %w", err)
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context, migrate bool) error {
	c := a.Config
	if c.Storage.DSN == "" {
		if c.IsProd() {
			return ErrMemoryStoreInProd
		}
		a.Log.Warn("DATABASE_URL not set: using in-memory store (data is lost on restart)")
		a.Mem = memory.New()
		return nil
	}
	st, err := pg.New(ctx, c.Storage.DSN, c.Storage.MaxConn, a.Log)
	if err != nil {
		return err
	}
	a.PG = st
	if !migrate {
		return nil
	}
	applied, err := st.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("app: migrate: %w", err)
	}
	if len(applied) > 0 {
		a.Log.Info("migrations applied", zap.Ints("versions", applied))
	}
	return nil
}

// openRedis no falla el arranque: sin Redis el limiter trabaja in-process
// y vuelve al modo distribuido cuando el backend responde.
func (a *App) openRedis(ctx context.Context) {
	url := a.Config.Redis.URL
	if url == "" {
		a.Log.Info("REDIS_URL not set: rate limiter runs in-process")
		return
	}
	client, err := cache.Open(url)
	if err != nil {
		a.Log.Error("invalid REDIS_URL, ignoring", logger.Err(err))
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		a.Log.Warn("redis not reachable at startup", logger.Err(err))
	}
	a.Redis = client
}

// Checks devuelve los checks de /readyz: Postgres es crítico, Redis no.
func (a *App) Checks() []healthctrl.Check {
	var checks []healthctrl.Check
	if a.PG != nil {
		checks = append(checks, healthctrl.Check{Name: "postgres", Pinger: a.PG, Critical: true})
	}
	if a.Redis != nil {
		client := a.Redis
		checks = append(checks, healthctrl.Check{
			Name:   "redis",
			Pinger: healthctrl.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() }),
		})
	}
	return checks
}

// Handler arma el router con métricas registradas en reg.
func (a *App) Handler(reg *prometheus.Registry) (http.Handler, error) {
	mcfg := httpx.MetricsConfig{Registry: reg, Gatherer: reg}
	if a.PG != nil {
		mcfg.Pool = a.PG.Pool
	}
	metricsHandler, err := httpx.RegisterMetrics(mcfg)
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}
	trusted, err := helpers.ParseTrustedProxies(a.Config.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return router.New(router.Deps{
		Auth:           a.Auth,
		Limiter:        a.Limiter,
		Logger:         a.Log,
		SecureCookies:  a.Config.Cookie.Secure,
		Checks:         a.Checks(),
		Metrics:        metricsHandler,
		TrustedProxies: trusted,
	}), nil
}

// RunWorkers corre los procesos de fondo hasta que ctx se cancele: barrido
// del limiter, escritura de auditoría y janitor de sesiones.
func (a *App) RunWorkers(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Limiter.Run(gctx, a.Config.RateSweepInterval()) })
	g.Go(func() error { return a.Audit.Run(gctx) })
	g.Go(func() error {
		return a.Sessions.RunJanitor(gctx, a.janitorInterval, a.Config.SessionRetention())
	})
	return g.Wait()
}

// Close libera conexiones. Es seguro llamarlo con un App parcial.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.PG != nil {
		a.PG.Close()
	}
}
