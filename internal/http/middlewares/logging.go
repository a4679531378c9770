package middlewares

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dropDatabas3/hablas/internal/http/helpers"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
)

// responseMeter registra el primer status escrito y los bytes del cuerpo.
type responseMeter struct {
	http.ResponseWriter
	status  int
	written int
}

func (m *responseMeter) WriteHeader(code int) {
	if m.status != 0 {
		return
	}
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(b []byte) (int, error) {
	if m.status == 0 {
		m.WriteHeader(http.StatusOK)
	}
	n, err := m.ResponseWriter.Write(b)
	m.written += n
	return n, err
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

// WithLogging emite una línea por request al terminar. El logger del request
// queda en el contexto para handlers y servicios; la cuenta autenticada, si
// la hubo, se agrega al final.
func WithLogging(base *zap.Logger) Middleware {
	base = logger.Or(base)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			ctx, st := ensureState(r.Context())
			reqLog := base.With(
				logger.RequestID(st.requestID),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)
			meter := &responseMeter{ResponseWriter: w}
			next.ServeHTTP(meter, r.WithContext(logger.ToContext(ctx, reqLog)))

			status := meter.status
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				logger.Status(status),
				logger.Int("bytes", meter.written),
				logger.Duration(time.Since(began)),
				logger.ClientIP(helpers.ClientIP(r)),
			}
			if st.identity != nil {
				fields = append(fields, logger.UserID(st.identity.PrincipalID), logger.Role(string(st.identity.Role)))
			}
			if ce := reqLog.Check(levelFor(status), "http request"); ce != nil {
				ce.Write(fields...)
			}
		})
	}
}
