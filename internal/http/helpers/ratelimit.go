package helpers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/hablas/internal/auth"
	"github.com/dropDatabas3/hablas/internal/rate"
)

// SetRateLimitHeaders escribe X-RateLimit-* y, si fue rechazado, Retry-After.
func SetRateLimitHeaders(w http.ResponseWriter, res rate.Result, now time.Time) {
	if res.Limit <= 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt, 10))
	if !res.Allowed {
		h.Set("Retry-After", strconv.Itoa(int(res.RetryAfter(now).Seconds())))
	}
}

// SetRateLimitHeadersFromError aplica los headers si err es un rechazo del limiter.
func SetRateLimitHeadersFromError(w http.ResponseWriter, err error) {
	var rl *auth.RateLimitError
	if errors.As(err, &rl) {
		SetRateLimitHeaders(w, rl.Result, time.Now())
	}
}
