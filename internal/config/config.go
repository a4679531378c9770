package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	jwtx "github.com/dropDatabas3/hablas/internal/jwt"
	"github.com/dropDatabas3/hablas/internal/security/secretbox"
)

// MinSecretLength es el largo mínimo del secreto de firma.
const MinSecretLength = jwtx.MinSecretLength

// Categorías de rate limit conocidas.
const (
	CategoryLogin         = "login"
	CategoryAPI           = "api"
	CategoryPasswordReset = "password_reset"
	CategoryRegistration  = "registration"
)

// RatePolicy es la política de una categoría: max intentos por ventana.
type RatePolicy struct {
	Max     int    `yaml:"max"`
	Window  string `yaml:"window"`
	Message string `yaml:"message"`
}

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// CIDRs (o IPs) de los proxies propios. Vacío => se ignoran los
		// headers X-Forwarded-For / X-Real-IP / CF-Connecting-IP.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// DSN de PostgreSQL. Vacío => stores en memoria (solo dev).
		DSN     string `yaml:"dsn"`
		Timeout string `yaml:"timeout"`
		MaxConn int32  `yaml:"max_conns"`
	} `yaml:"storage"`

	Redis struct {
		// URL redis://... Vacío => modo in-process.
		URL    string `yaml:"url"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`

	JWT struct {
		Secret            string `yaml:"secret"`
		ExpiresIn         string `yaml:"expires_in"`
		RememberMeExpires string `yaml:"remember_me_expires_in"`
		RefreshThresholdS int    `yaml:"refresh_threshold_seconds"`
		Issuer            string `yaml:"issuer"`
		SecretGenerated   bool   `yaml:"-"`
	} `yaml:"jwt"`

	Session struct {
		TTL       string `yaml:"ttl"`
		Retention string `yaml:"retention"`
	} `yaml:"session"`

	Cookie struct {
		Name   string `yaml:"name"`
		Domain string `yaml:"domain"`
		Secure bool   `yaml:"secure"`
	} `yaml:"cookie"`

	Rate struct {
		Policies       map[string]RatePolicy `yaml:"policies"`
		MemoryMaxKeys  int                   `yaml:"memory_max_keys"`
		SweepInterval  string                `yaml:"sweep_interval"`
		BackendTimeout string                `yaml:"backend_timeout"`
	} `yaml:"rate"`

	Audit struct {
		Buffer int `yaml:"buffer"`
	} `yaml:"audit"`

	Security struct {
		BcryptCost            int    `yaml:"bcrypt_cost"`
		PasswordBlacklistPath string `yaml:"password_blacklist_path"`
		PasswordResetTTL      string `yaml:"password_reset_ttl"`
	} `yaml:"security"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Email struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"email"`

	Bootstrap struct {
		AdminEmail    string `yaml:"admin_email"`
		AdminPassword string `yaml:"admin_password"`
	} `yaml:"bootstrap"`

	// Warnings acumulados durante Load (TTLs inválidos, secreto efímero).
	// main los loguea una vez inicializado el logger.
	Warnings []string `yaml:"-"`
}

// IsProd indica si corremos en producción.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod") || strings.EqualFold(c.App.Env, "production")
}

// Load lee el YAML opcional (path vacío => solo env), aplica defaults,
// overrides por env y valida. Un error aquí debe abortar el arranque.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()
	// Overrides por env + salvaguarda prod
	c.applyEnvOverrides()
	if err := c.revealSecrets(os.Getenv(secretbox.EnvVar)); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Secreto efímero solo fuera de prod; Validate ya rechazó prod sin secreto.
	if strings.TrimSpace(c.JWT.Secret) == "" {
		secret, err := randomSecret(48)
		if err != nil {
			return nil, fmt.Errorf("generate dev secret: %w", err)
		}
		c.JWT.Secret = secret
		c.JWT.SecretGenerated = true
		c.Warnings = append(c.Warnings, "JWT_SECRET not set: using a random ephemeral secret, tokens will not survive a restart")
	}

	// Normalizar ruta de blacklist (si relativa) respecto al directorio del YAML
	if p := strings.TrimSpace(c.Security.PasswordBlacklistPath); p != "" && path != "" {
		if !filepath.IsAbs(p) {
			c.Security.PasswordBlacklistPath = filepath.Clean(filepath.Join(filepath.Dir(path), p))
		}
	}
	return &c, nil
}

// revealSecrets descifra los valores "enc:..." con la clave maestra. Sin
// valores cifrados la clave no hace falta.
func (c *Config) revealSecrets(masterKey string) error {
	fields := map[string]*string{
		"DATABASE_URL":  &c.Storage.DSN,
		"REDIS_URL":     &c.Redis.URL,
		"JWT_SECRET":    &c.JWT.Secret,
		"SMTP_PASSWORD": &c.SMTP.Password,
	}
	var box *secretbox.Box
	for name, v := range fields {
		if !secretbox.IsSealed(*v) {
			continue
		}
		if box == nil {
			b, err := secretbox.New(masterKey)
			if err != nil {
				return fmt.Errorf("%s is encrypted: %w", name, err)
			}
			box = b
		}
		plain, err := box.Reveal(*v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*v = plain
	}
	return nil
}

// sane defaults
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Timeout == "" {
		c.Storage.Timeout = "2s"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "hablas:"
	}
	if c.JWT.ExpiresIn == "" {
		c.JWT.ExpiresIn = "7d"
	}
	if c.JWT.RememberMeExpires == "" {
		c.JWT.RememberMeExpires = "30d"
	}
	if c.JWT.RefreshThresholdS == 0 {
		c.JWT.RefreshThresholdS = 86400
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "hablas"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "30d"
	}
	if c.Session.Retention == "" {
		c.Session.Retention = "7d"
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = "hablas_auth_token"
	}
	if c.Rate.Policies == nil {
		c.Rate.Policies = map[string]RatePolicy{}
	}
	for cat, def := range DefaultPolicies() {
		p := c.Rate.Policies[cat]
		if p.Max == 0 {
			p.Max = def.Max
		}
		if p.Window == "" {
			p.Window = def.Window
		}
		if p.Message == "" {
			p.Message = def.Message
		}
		c.Rate.Policies[cat] = p
	}
	if c.Rate.MemoryMaxKeys == 0 {
		c.Rate.MemoryMaxKeys = 10000
	}
	if c.Rate.SweepInterval == "" {
		c.Rate.SweepInterval = "1m"
	}
	if c.Rate.BackendTimeout == "" {
		c.Rate.BackendTimeout = "250ms"
	}
	if c.Audit.Buffer == 0 {
		c.Audit.Buffer = 1024
	}
	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = 10
	}
	if c.Security.PasswordResetTTL == "" {
		c.Security.PasswordResetTTL = "1h"
	}
	// SMTP defaults
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
}

// DefaultPolicies retorna las políticas por categoría.
func DefaultPolicies() map[string]RatePolicy {
	return map[string]RatePolicy{
		CategoryLogin: {
			Max: 5, Window: "15m",
			Message: "Demasiados intentos de inicio de sesión. Intenta de nuevo más tarde.",
		},
		CategoryAPI: {
			Max: 100, Window: "1m",
			Message: "Demasiadas solicitudes. Intenta de nuevo más tarde.",
		},
		CategoryPasswordReset: {
			Max: 3, Window: "1h",
			Message: "Demasiadas solicitudes de recuperación. Intenta de nuevo más tarde.",
		},
		CategoryRegistration: {
			Max: 3, Window: "1h",
			Message: "Demasiados registros desde esta dirección. Intenta de nuevo más tarde.",
		},
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = strings.Split(v, ",")
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	// STORAGE
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("STORE_TIMEOUT"); ok {
		c.Storage.Timeout = v
	}
	if v, ok := getEnvInt("DATABASE_MAX_CONNS"); ok {
		c.Storage.MaxConn = int32(v)
	}
	// REDIS
	if v, ok := getEnvStr("REDIS_URL"); ok {
		c.Redis.URL = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}
	// JWT
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_EXPIRES_IN"); ok {
		c.JWT.ExpiresIn = v
	}
	if v, ok := getEnvStr("JWT_REMEMBER_ME_EXPIRES_IN"); ok {
		c.JWT.RememberMeExpires = v
	}
	if v, ok := getEnvInt("JWT_REFRESH_THRESHOLD_SECONDS"); ok {
		c.JWT.RefreshThresholdS = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	// SESSION / COOKIE
	if v, ok := getEnvStr("SESSION_TTL"); ok {
		c.Session.TTL = v
	}
	if v, ok := getEnvStr("SESSION_RETENTION"); ok {
		c.Session.Retention = v
	}
	if v, ok := getEnvStr("COOKIE_NAME"); ok {
		c.Cookie.Name = v
	}
	if v, ok := getEnvStr("COOKIE_DOMAIN"); ok {
		c.Cookie.Domain = v
	}
	if v, ok := getEnvBool("COOKIE_SECURE"); ok {
		c.Cookie.Secure = v
	}
	// RATE: RATE_LIMIT_<CATEGORY>_MAX / _WINDOW
	for cat, p := range c.Rate.Policies {
		prefix := "RATE_LIMIT_" + strings.ToUpper(cat)
		if v, ok := getEnvInt(prefix + "_MAX"); ok {
			p.Max = v
		}
		if v, ok := getEnvStr(prefix + "_WINDOW"); ok {
			p.Window = v
		}
		c.Rate.Policies[cat] = p
	}
	if v, ok := getEnvInt("RATE_LIMIT_MEMORY_MAX_KEYS"); ok {
		c.Rate.MemoryMaxKeys = v
	}
	if v, ok := getEnvStr("RATE_LIMIT_SWEEP_INTERVAL"); ok {
		c.Rate.SweepInterval = v
	}
	if v, ok := getEnvStr("RATE_LIMIT_BACKEND_TIMEOUT"); ok {
		c.Rate.BackendTimeout = v
	}
	// AUDIT
	if v, ok := getEnvInt("AUDIT_BUFFER"); ok {
		c.Audit.Buffer = v
	}
	// SECURITY
	if v, ok := getEnvInt("BCRYPT_COST"); ok {
		c.Security.BcryptCost = v
	}
	if v, ok := getEnvStr("PASSWORD_BLACKLIST_PATH"); ok {
		c.Security.PasswordBlacklistPath = v
	}
	if v, ok := getEnvStr("PASSWORD_RESET_TTL"); ok {
		c.Security.PasswordResetTTL = v
	}
	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = v
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}
	if v, ok := getEnvStr("EMAIL_BASE_URL"); ok {
		c.Email.BaseURL = v
	}
	// BOOTSTRAP
	if v, ok := getEnvStr("BOOTSTRAP_ADMIN_EMAIL"); ok {
		c.Bootstrap.AdminEmail = v
	}
	if v, ok := getEnvStr("BOOTSTRAP_ADMIN_PASSWORD"); ok {
		c.Bootstrap.AdminPassword = v
	}

	// Guardia dura: en prod la cookie siempre es Secure.
	if c.IsProd() {
		c.Cookie.Secure = true
		c.SMTP.InsecureSkipVerify = false
	}
}

// Validate verifica la configuración. En prod un secreto ausente o corto aborta.
func (c *Config) Validate() error {
	var errs []error
	secret := strings.TrimSpace(c.JWT.Secret)
	if c.IsProd() && secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if secret != "" && len(secret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", MinSecretLength))
	}
	if c.JWT.RefreshThresholdS < 0 {
		errs = append(errs, errors.New("JWT_REFRESH_THRESHOLD_SECONDS must be >= 0"))
	}
	for cat, p := range c.Rate.Policies {
		if p.Max <= 0 {
			errs = append(errs, fmt.Errorf("rate policy %q: max must be > 0", cat))
		}
		if _, err := parseStrictDuration(p.Window); err != nil {
			errs = append(errs, fmt.Errorf("rate policy %q: window: %w", cat, err))
		}
	}
	if c.Rate.MemoryMaxKeys < 10 {
		errs = append(errs, errors.New("RATE_LIMIT_MEMORY_MAX_KEYS must be >= 10"))
	}
	for name, v := range map[string]string{
		"STORE_TIMEOUT":              c.Storage.Timeout,
		"RATE_LIMIT_SWEEP_INTERVAL":  c.Rate.SweepInterval,
		"RATE_LIMIT_BACKEND_TIMEOUT": c.Rate.BackendTimeout,
	} {
		if _, err := parseStrictDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	for _, p := range c.Server.TrustedProxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %q is not an IP or CIDR", p))
		}
	}
	if c.Audit.Buffer <= 0 {
		errs = append(errs, errors.New("AUDIT_BUFFER must be > 0"))
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		errs = append(errs, errors.New("BCRYPT_COST must be between 4 and 31"))
	}
	return errors.Join(errs...)
}

// ---- Accessors tipados ----

// AccessTTL retorna el TTL corto del access token.
func (c *Config) AccessTTL() time.Duration { return c.ttl("JWT_EXPIRES_IN", c.JWT.ExpiresIn) }

// RememberMeTTL retorna el TTL extendido ("recordarme").
func (c *Config) RememberMeTTL() time.Duration {
	return c.ttl("JWT_REMEMBER_ME_EXPIRES_IN", c.JWT.RememberMeExpires)
}

// RefreshThreshold retorna la ventana previa a exp en la que se sugiere refrescar.
func (c *Config) RefreshThreshold() time.Duration {
	return time.Duration(c.JWT.RefreshThresholdS) * time.Second
}

// SessionTTL retorna la vida de una sesión (refresh token).
func (c *Config) SessionTTL() time.Duration { return c.ttl("SESSION_TTL", c.Session.TTL) }

// SessionRetention retorna cuánto se conservan sesiones terminadas antes del borrado.
func (c *Config) SessionRetention() time.Duration {
	return c.ttl("SESSION_RETENTION", c.Session.Retention)
}

// PasswordResetTTL retorna la vida del token de recuperación.
func (c *Config) PasswordResetTTL() time.Duration {
	return c.ttl("PASSWORD_RESET_TTL", c.Security.PasswordResetTTL)
}

// StoreTimeout retorna el timeout por round-trip al store.
func (c *Config) StoreTimeout() time.Duration {
	d, _ := parseStrictDuration(c.Storage.Timeout)
	return d
}

// RateSweepInterval retorna el intervalo del barrido del limiter en memoria.
func (c *Config) RateSweepInterval() time.Duration {
	d, _ := parseStrictDuration(c.Rate.SweepInterval)
	return d
}

// RateBackendTimeout retorna el timeout por llamada al backend distribuido.
func (c *Config) RateBackendTimeout() time.Duration {
	d, _ := parseStrictDuration(c.Rate.BackendTimeout)
	return d
}

// PolicyWindow retorna la ventana de una política ya validada.
func (p RatePolicy) PolicyWindow() time.Duration {
	d, _ := parseStrictDuration(p.Window)
	return d
}

func (c *Config) ttl(name, raw string) time.Duration {
	d, ok := jwtx.ParseTTL(raw)
	if !ok {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is not a valid TTL, falling back to %s", name, raw, jwtx.DefaultTTL))
	}
	return d
}

// parseStrictDuration es como ParseTTL pero falla en vez de usar el default.
func parseStrictDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, nil
	}
	if d, ok := jwtx.ParseTTL(s); ok {
		return d, nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

func randomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
