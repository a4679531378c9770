package jwt

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL es el fallback para TTLs mal formados.
const DefaultTTL = 7 * 24 * time.Hour

var ttlRe = regexp.MustCompile(`^(\d+)\s*([smhdw]?)$`)

// ParseTTL convierte "30s", "15m", "1h", "7d", "2w" o un número de segundos
// a duración. También acepta duraciones Go ("1h30m"). Si el valor es inválido
// devuelve DefaultTTL y ok=false; nunca falla el camino del request.
func ParseTTL(s string) (d time.Duration, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if m := ttlRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n <= 0 {
			return DefaultTTL, false
		}
		unit := time.Second
		switch m[2] {
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		case "w":
			unit = 7 * 24 * time.Hour
		}
		// fuera de rango time.Duration daría la vuelta
		if n > math.MaxInt64/int64(unit) {
			return DefaultTTL, false
		}
		return time.Duration(n) * unit, true
	}
	if d, err := time.ParseDuration(s); err == nil && d >= time.Second {
		return d.Truncate(time.Second), true
	}
	return DefaultTTL, false
}
