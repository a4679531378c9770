package helpers

import (
	"net/http"
	"time"
)

// AuthCookieName lleva el access token para el frontend del CMS.
const AuthCookieName = "hablas_auth_token"

func authCookie(value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     AuthCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetAuthCookie vence junto con el token.
func SetAuthCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	c := authCookie(token, secure)
	c.MaxAge = int(ttl / time.Second)
	c.Expires = time.Now().Add(ttl).UTC()
	http.SetCookie(w, c)
}

func ClearAuthCookie(w http.ResponseWriter, secure bool) {
	c := authCookie("", secure)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, c)
}
