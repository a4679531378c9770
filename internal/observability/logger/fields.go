package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos del request HTTP.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Status(code int) zap.Field { return zap.Int("status", code) }
func Duration(d time.Duration) zap.Field { return zap.Duration("duration", d) }
func ClientIP(ip string) zap.Field { return zap.String("client_ip", ip) }
func UserAgent(ua string) zap.Field { return zap.String("user_agent", ua) }

// Campos de identidad y sesión.

func UserID(id string) zap.Field { return zap.String("user_id", id) }
func SessionID(id string) zap.Field { return zap.String("session_id", id) }
func Role(r string) zap.Field { return zap.String("role", r) }

// Email nunca loguea la dirección completa.
func Email(addr string) zap.Field { return zap.String("email", MaskEmail(addr)) }

// TokenHash deja sólo los primeros 8 caracteres del hash.
func TokenHash(h string) zap.Field {
	if len(h) > 8 {
		h = h[:8]
	}
	return zap.String("token_hash", h)
}

// Auditoría, limiter y componentes.

func Event(kind string) zap.Field { return zap.String("event", kind) }
func Reason(why string) zap.Field { return zap.String("reason", why) }
func Category(cat string) zap.Field { return zap.String("category", cat) }
func Backend(mode string) zap.Field { return zap.String("backend", mode) }
func Component(name string) zap.Field { return zap.String("component", name) }
func Layer(name string) zap.Field { return zap.String("layer", name) }
func Op(name string) zap.Field { return zap.String("op", name) }
func Err(err error) zap.Field { return zap.Error(err) }

// Genéricos, para no importar zap en cada archivo.

func String(k, v string) zap.Field { return zap.String(k, v) }
func Int(k string, v int) zap.Field { return zap.Int(k, v) }
func Bool(k string, v bool) zap.Field { return zap.Bool(k, v) }
func Any(k string, v any) zap.Field { return zap.Any(k, v) }
