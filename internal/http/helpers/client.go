package helpers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/dropDatabas3/hablas/internal/auth"
)

type clientIPKey struct{}

// TrustedProxies son las redes de los proxies propios (load balancer, CDN).
// Solo un request que llega desde una de ellas puede declarar la IP del
// cliente por header.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies acepta CIDRs o IPs sueltas.
func ParseTrustedProxies(list []string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, raw := range list {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if pfx, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, pfx.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: not an IP or CIDR", raw)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (t TrustedProxies) contains(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolve devuelve la IP del cliente. Si el peer no es un proxy confiable
// los headers se ignoran. Si lo es, X-Forwarded-For se recorre de derecha a
// izquierda saltando los proxies propios; después X-Real-IP y
// CF-Connecting-IP.
func (t TrustedProxies) Resolve(r *http.Request) string {
	peer := remoteHost(r)
	if !t.contains(peer) {
		return peer
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		hops := strings.Split(xf, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			if !t.contains(hop) {
				return hop
			}
		}
	}
	for _, h := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			if _, err := netip.ParseAddr(v); err == nil {
				return v
			}
		}
	}
	return peer
}

// WithClientIP guarda la IP ya resuelta en el contexto del request.
func WithClientIP(r *http.Request, ip string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), clientIPKey{}, ip))
}

// ClientIP devuelve la IP resuelta por el middleware de IP real; sin él,
// el host de RemoteAddr.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}

// Origin arma el origen del request para auditoría y rate limiting.
func Origin(r *http.Request) auth.Origin {
	return auth.Origin{IP: ClientIP(r), UserAgent: r.UserAgent()}
}

// BearerToken extrae el token de "Authorization: Bearer ...".
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// AccessToken lee la cookie de sesión y, si falta, el header Bearer.
func AccessToken(r *http.Request) string {
	if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return BearerToken(r)
}
