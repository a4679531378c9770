// Package health contiene /healthz y /readyz.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/hablas/internal/http/helpers"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
	"github.com/dropDatabas3/hablas/internal/rate"
)

// Pinger es cualquier dependencia que puede responder a un ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapta una función a Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Check es una dependencia a verificar. Las no críticas solo degradan.
type Check struct {
	Name     string
	Pinger   Pinger
	Critical bool
}

type Component struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Response struct {
	Status      string               `json:"status"` // ready | degraded | unavailable
	LimiterMode string               `json:"limiterMode,omitempty"`
	Components  map[string]Component `json:"components"`
}

type Controller struct {
	checks  []Check
	limiter *rate.Limiter
	timeout time.Duration
}

func NewController(limiter *rate.Limiter, checks ...Check) *Controller {
	return &Controller{checks: checks, limiter: limiter, timeout: 2 * time.Second}
}

// Healthz maneja GET /healthz (liveness).
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz maneja GET /readyz: pinga cada dependencia y reporta el modo del limiter.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	resp := Response{Status: "ready", Components: map[string]Component{}}
	for _, ch := range c.checks {
		if err := ch.Pinger.Ping(ctx); err != nil {
			resp.Components[ch.Name] = Component{Status: "down", Error: err.Error()}
			if ch.Critical {
				resp.Status = "unavailable"
			} else if resp.Status == "ready" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Components[ch.Name] = Component{Status: "up"}
	}
	if c.limiter != nil {
		resp.LimiterMode = string(c.limiter.Mode())
		if c.limiter.Stats().Configured && c.limiter.Mode() == rate.ModeInProcess && resp.Status == "ready" {
			resp.Status = "degraded"
		}
	}

	status := http.StatusOK
	if resp.Status == "unavailable" {
		status = http.StatusServiceUnavailable
	}
	logger.From(ctx).Debug("readiness checked", logger.String("status", resp.Status))
	helpers.WriteJSON(w, status, resp)
}
