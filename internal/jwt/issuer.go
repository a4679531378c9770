package jwt

import (
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength es el largo mínimo aceptado para el secreto HS256.
const MinSecretLength = 32

// PurposePasswordReset marca tokens de un solo propósito para recuperar la cuenta.
const PurposePasswordReset = "pwd_reset"

// Claims es el set de claims de un access token:
// sub, email, role, iat, exp (segundos enteros desde epoch) y jti.
type Claims struct {
	Email   string `json:"email"`
	Role    string `json:"role"`
	Purpose string `json:"purpose,omitempty"`
	jwtv5.RegisteredClaims
}

// SubjectID devuelve el ID del principal.
func (c *Claims) SubjectID() string { return c.Subject }

// IssuedAtTime devuelve iat como time.Time (cero si falta).
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime devuelve exp como time.Time (cero si falta).
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Options configura un Issuer.
type Options struct {
	Issuer           string
	AccessTTL        time.Duration // TTL corto
	RememberMeTTL    time.Duration // TTL extendido ("recordarme")
	RefreshThreshold time.Duration // ventana previa a exp en la que conviene refrescar
	Now              func() time.Time
}

// Issuer firma y verifica access tokens HS256 con el secreto del servidor.
// El secreto es de solo lectura después de construirlo.
type Issuer struct {
	Iss              string
	AccessTTL        time.Duration
	RememberMeTTL    time.Duration
	RefreshThreshold time.Duration

	secret []byte
	now    func() time.Time
	parser *jwtv5.Parser
}

// NewIssuer valida el secreto al arrancar: sin secreto no hay servicio.
func NewIssuer(secret string, opts Options) (*Issuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrWeakSecret, MinSecretLength)
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultTTL
	}
	if opts.RememberMeTTL <= 0 {
		opts.RememberMeTTL = 30 * 24 * time.Hour
	}
	if opts.RefreshThreshold < 0 {
		opts.RefreshThreshold = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Issuer{
		Iss:              opts.Issuer,
		AccessTTL:        opts.AccessTTL.Truncate(time.Second),
		RememberMeTTL:    opts.RememberMeTTL.Truncate(time.Second),
		RefreshThreshold: opts.RefreshThreshold,
		secret:           []byte(secret),
		now:              opts.Now,
		// exp/iat se validan a mano con el reloj inyectado (semántica now < exp).
		parser: jwtv5.NewParser(
			jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
			jwtv5.WithoutClaimsValidation(),
		),
	}, nil
}

// TTLFor devuelve el TTL para un login normal o "recordarme".
func (i *Issuer) TTLFor(extended bool) time.Duration {
	if extended {
		return i.RememberMeTTL
	}
	return i.AccessTTL
}

// Issue firma un access token nuevo. Nunca edita uno existente.
func (i *Issuer) Issue(principalID, email, role string, extended bool) (string, *Claims, error) {
	return i.sign(principalID, email, role, "", i.TTLFor(extended))
}

// IssuePurpose firma un token de propósito único (ej: reset de password).
func (i *Issuer) IssuePurpose(principalID, email, purpose string, ttl time.Duration) (string, *Claims, error) {
	if purpose == "" {
		return "", nil, fmt.Errorf("issue purpose token: empty purpose")
	}
	return i.sign(principalID, email, "", purpose, ttl)
}

func (i *Issuer) sign(sub, email, role, purpose string, ttl time.Duration) (string, *Claims, error) {
	if sub == "" {
		return "", nil, fmt.Errorf("issue token: empty subject")
	}
	iat := i.now().UTC().Truncate(time.Second)
	exp := iat.Add(ttl.Truncate(time.Second))
	claims := &Claims{
		Email:   email,
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.Iss,
			Subject:   sub,
			IssuedAt:  jwtv5.NewNumericDate(iat),
			ExpiresAt: jwtv5.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// ShouldRefresh es true cuando exp - now < RefreshThreshold y el token aún no
// expiró. Es el único lugar donde se calcula; llamarlo solo con claims ya
// verificadas.
func (i *Issuer) ShouldRefresh(c *Claims) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	now := i.now()
	exp := c.ExpiresAt.Time
	if !now.Before(exp) {
		return false
	}
	return exp.Sub(now) < i.RefreshThreshold
}
