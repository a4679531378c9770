package logger

import "strings"

// MaskEmail conserva la inicial del usuario y la del primer label del
// dominio: "ana@example.com" queda "a…@e….com".
func MaskEmail(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return ""
	}
	user, domain, ok := strings.Cut(addr, "@")
	if !ok || user == "" {
		if len(addr) <= 3 {
			return "***"
		}
		return addr[:1] + "…" + addr[len(addr)-1:]
	}
	host, tld, _ := strings.Cut(domain, ".")
	var b strings.Builder
	b.WriteString(initial(user))
	b.WriteByte('@')
	b.WriteString(initial(host))
	if tld != "" {
		b.WriteByte('.')
		b.WriteString(tld)
	}
	return b.String()
}

func initial(s string) string {
	if len(s) <= 1 {
		return s
	}
	return s[:1] + "…"
}
