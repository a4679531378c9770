package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwtx "github.com/dropDatabas3/hablas/internal/jwt"
	"github.com/dropDatabas3/hablas/internal/security/secretbox"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

func TestLoad_DefaultsFromEnvOnly(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", testSecret)

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, 7*24*time.Hour, c.AccessTTL())
	assert.Equal(t, 30*24*time.Hour, c.RememberMeTTL())
	assert.Equal(t, 24*time.Hour, c.RefreshThreshold())
	assert.Equal(t, "hablas_auth_token", c.Cookie.Name)
	assert.Equal(t, 2*time.Second, c.StoreTimeout())
	assert.Equal(t, 250*time.Millisecond, c.RateBackendTimeout())

	login := c.Rate.Policies[CategoryLogin]
	assert.Equal(t, 5, login.Max)
	assert.Equal(t, 15*time.Minute, login.PolicyWindow())
	assert.Equal(t, 100, c.Rate.Policies[CategoryAPI].Max)
	assert.Equal(t, 3, c.Rate.Policies[CategoryPasswordReset].Max)
	assert.Equal(t, time.Hour, c.Rate.Policies[CategoryRegistration].PolicyWindow())
}

func TestLoad_ProdRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestLoad_RejectsShortSecret(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32")
}

func TestLoad_DevGeneratesEphemeralSecret(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", "")

	c, err := Load("")
	require.NoError(t, err)
	assert.True(t, c.JWT.SecretGenerated)
	assert.GreaterOrEqual(t, len(c.JWT.Secret), MinSecretLength)
	assert.NotEmpty(t, c.Warnings)
}

func TestLoad_ProdForcesSecureCookie(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("COOKIE_SECURE", "false")

	c, err := Load("")
	require.NoError(t, err)
	assert.True(t, c.Cookie.Secure)
}

func TestLoad_EnvOverridesRatePolicy(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("RATE_LIMIT_LOGIN_MAX", "10")
	t.Setenv("RATE_LIMIT_LOGIN_WINDOW", "5m")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, c.Rate.Policies[CategoryLogin].Max)
	assert.Equal(t, 5*time.Minute, c.Rate.Policies[CategoryLogin].PolicyWindow())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  addr: ":9090"
jwt:
  secret: "` + testSecret + `"
  expires_in: "1h"
rate:
  policies:
    api:
      max: 50
      window: "30s"
security:
  password_blacklist_path: "common.txt"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("APP_ENV", "dev")
	t.Setenv("SERVER_ADDR", ":7070")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", c.Server.Addr)
	assert.Equal(t, time.Hour, c.AccessTTL())
	assert.Equal(t, 50, c.Rate.Policies[CategoryAPI].Max)
	assert.Equal(t, 30*time.Second, c.Rate.Policies[CategoryAPI].PolicyWindow())
	// defaults para las categorías omitidas
	assert.Equal(t, 5, c.Rate.Policies[CategoryLogin].Max)
	assert.Equal(t, filepath.Join(dir, "common.txt"), c.Security.PasswordBlacklistPath)
}

func TestMalformedTTLFallsBackWithWarning(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_EXPIRES_IN", "forever")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, jwtx.DefaultTTL, c.AccessTTL())
	assert.NotEmpty(t, c.Warnings)
}

func TestValidate_BadPolicy(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("RATE_LIMIT_API_WINDOW", "nope")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `rate policy "api"`)
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", " 192.168.1.1"}, c.Server.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,lb.internal")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
}

func TestLoad_EncryptedSecrets(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	box, err := secretbox.New(key)
	require.NoError(t, err)
	sealedSecret, err := box.Seal(testSecret)
	require.NoError(t, err)
	sealedPass, err := box.Seal("smtp-pass")
	require.NoError(t, err)

	t.Setenv("APP_ENV", "dev")
	t.Setenv(secretbox.EnvVar, key)
	t.Setenv("JWT_SECRET", secretbox.Prefix+sealedSecret)
	t.Setenv("SMTP_PASSWORD", secretbox.Prefix+sealedPass)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, testSecret, c.JWT.Secret)
	assert.Equal(t, "smtp-pass", c.SMTP.Password)
}

func TestLoad_EncryptedSecretWithoutKey(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv(secretbox.EnvVar, "")
	t.Setenv("JWT_SECRET", secretbox.Prefix+"abc|def")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, secretbox.ErrInvalidKey)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
