// Package http agrupa la superficie HTTP: métricas y arranque aquí, el resto
// en subpaquetes.
package http

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/hablas/internal/metrics"
)

// httpCollectors se crean una vez por proceso; cada registry que pase por
// RegisterMetrics los registra.
var (
	collectorsOnce sync.Once
	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	inflight       prometheus.Gauge
)

func initCollectors() {
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Requests atendidos por método, ruta y status.",
	}, []string{"method", "path", "status"})
	requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia por método y ruta.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "path"})
	inflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests en curso.",
	})
}

// MetricsConfig: Registry y Gatherer suelen ser el mismo *prometheus.Registry.
// Pool es opcional y sólo existe con DATABASE_URL.
type MetricsConfig struct {
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer
	Pool     func() *pgxpool.Pool
}

// RegisterMetrics deja listas las métricas HTTP y las del núcleo de auth, y
// devuelve el handler de /metrics.
func RegisterMetrics(cfg MetricsConfig) (http.Handler, error) {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	collectorsOnce.Do(initCollectors)

	cs := []prometheus.Collector{requestsTotal, requestLatency, inflight}
	if cfg.Pool != nil {
		cs = append(cs, poolCollector{pool: cfg.Pool})
	}
	for _, c := range cs {
		if err := cfg.Registry.Register(c); err != nil && !isAlreadyRegistered(err) {
			return nil, err
		}
	}
	if err := metrics.Register(cfg.Registry); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}), nil
}

func isAlreadyRegistered(err error) bool {
	var are prometheus.AlreadyRegisteredError
	return errors.As(err, &are)
}

type statusCapture struct {
	http.ResponseWriter
	code int
}

func (s *statusCapture) WriteHeader(code int) {
	if s.code == 0 {
		s.code = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusCapture) Write(b []byte) (int, error) {
	if s.code == 0 {
		s.code = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// WithMetrics usa el patrón de chi como label de ruta; fuera de chi cae a
// normalizePath. Sin RegisterMetrics previo no instrumenta nada.
func WithMetrics(next http.Handler) http.Handler {
	if requestsTotal == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inflight.Inc()
		began := time.Now()
		sc := &statusCapture{ResponseWriter: w}
		defer func() {
			inflight.Dec()
			method, path := r.Method, routeLabel(r)
			if sc.code == 0 {
				sc.code = http.StatusOK
			}
			requestLatency.WithLabelValues(method, path).Observe(time.Since(began).Seconds())
			requestsTotal.WithLabelValues(method, path, strconv.Itoa(sc.code)).Inc()
		}()
		next.ServeHTTP(sc, r)
	})
}

func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" && !strings.HasSuffix(p, "/*") {
			return p
		}
	}
	return normalizePath(r.URL.Path)
}

// poolCollector publica el estado del pool de pgx en cada scrape.
type poolCollector struct {
	pool func() *pgxpool.Pool
}

var poolConnsDesc = prometheus.NewDesc("pg_pool_connections", "Conexiones del pool de Postgres por estado.", []string{"state"}, nil)

func (poolCollector) Describe(ch chan<- *prometheus.Desc) { ch <- poolConnsDesc }

func (c poolCollector) Collect(ch chan<- prometheus.Metric) {
	p := c.pool()
	if p == nil {
		return
	}
	st := p.Stat()
	for state, n := range map[string]int32{
		"acquired": st.AcquiredConns(),
		"idle":     st.IdleConns(),
		"total":    st.TotalConns(),
	} {
		ch <- prometheus.MustNewConstMetric(poolConnsDesc, prometheus.GaugeValue, float64(n), state)
	}
}

var dynamicSegment = regexp.MustCompile(`^(\d+|[0-9a-fA-F]{8}-[0-9a-fA-F-]{27,}|[0-9a-fA-F]{16,}|[A-Za-z0-9_-]{24,})$`)

// normalizePath colapsa ids y tokens a :param para acotar la cardinalidad.
func normalizePath(p string) string {
	p, _, _ = strings.Cut(p, "?")
	segs := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	for i, s := range segs {
		if len(s) > 48 || dynamicSegment.MatchString(s) {
			segs[i] = ":param"
		}
	}
	return "/" + strings.Join(segs, "/")
}
