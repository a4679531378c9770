package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hablas/internal/audit"
	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/jwt"
	"github.com/dropDatabas3/hablas/internal/rate"
	"github.com/dropDatabas3/hablas/internal/rbac"
	"github.com/dropDatabas3/hablas/internal/revocation"
	"github.com/dropDatabas3/hablas/internal/security/password"
	"github.com/dropDatabas3/hablas/internal/session"
	"github.com/dropDatabas3/hablas/internal/store/memory"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef-auth"
	goodPassword = "Correcta#2024"
)

var fastParams = password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// collectSink guarda los eventos en memoria.
type collectSink struct {
	mu     sync.Mutex
	events []repository.AuditEntry
}

func (s *collectSink) Name() string { return "collect" }

func (s *collectSink) Write(_ context.Context, e repository.AuditEntry) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *collectSink) byType(ev string) []repository.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.AuditEntry
	for _, e := range s.events {
		if e.EventType == ev {
			out = append(out, e)
		}
	}
	return out
}

type spyMailer struct {
	mu   sync.Mutex
	to   []string
	text []string
	sent chan struct{}
}

func (m *spyMailer) Send(_ context.Context, to, _, _, text string) error {
	m.mu.Lock()
	m.to = append(m.to, to)
	m.text = append(m.text, text)
	m.mu.Unlock()
	m.sent <- struct{}{}
	return nil
}

type fixture struct {
	svc      *Service
	mem      *memory.Store
	clock    *fakeClock
	sink     *collectSink
	mailer   *spyMailer
	registry revocation.Registry
	admin    *repository.Principal
	editor   *repository.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	mem := memory.New()

	issuer, err := jwt.NewIssuer(testSecret, jwt.Options{
		AccessTTL:        time.Hour,
		RememberMeTTL:    7 * 24 * time.Hour,
		RefreshThreshold: 10 * time.Minute,
		Now:              clk.Now,
	})
	require.NoError(t, err)

	registry := revocation.NewStoreRegistry(mem.Revocations, clk.Now)
	sessions := session.NewStore(mem.Sessions, mem.Principals, registry, issuer, session.Options{
		Logger: zap.NewNop(),
		Now:    clk.Now,
	})
	limiter, err := rate.New(rate.Options{
		Logger: zap.NewNop(),
		Now:    clk.Now,
		Policies: map[string]rate.Policy{
			categoryLogin:         {Max: 5, Window: 15 * time.Minute, Message: "Demasiados intentos de inicio de sesión"},
			categoryPasswordReset: {Max: 5, Window: time.Hour},
		},
	})
	require.NoError(t, err)

	sink := &collectSink{}
	al := audit.New(64, zap.NewNop(), sink)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = al.Run(ctx); close(done) }()
	t.Cleanup(func() { cancel(); <-done })

	mailer := &spyMailer{sent: make(chan struct{}, 4)}
	svc, err := NewService(Deps{
		Principals:   mem.Principals,
		Sessions:     sessions,
		Issuer:       issuer,
		Registry:     registry,
		Limiter:      limiter,
		Hasher:       password.NewHasher(fastParams, 0),
		Audit:        al,
		Mailer:       mailer,
		ResetBaseURL: "https://cms.example.com",
		Logger:       zap.NewNop(),
		Now:          clk.Now,
	})
	require.NoError(t, err)

	f := &fixture{svc: svc, mem: mem, clock: clk, sink: sink, mailer: mailer, registry: registry}
	f.admin, err = svc.CreatePrincipal(context.Background(), nil, CreatePrincipalInput{
		Email: "admin@example.com", Name: "Admin", Password: goodPassword, Role: "admin",
	}, Origin{})
	require.NoError(t, err)
	f.editor, err = svc.CreatePrincipal(context.Background(), nil, CreatePrincipalInput{
		Email: "Editor@Example.com", Name: "Editor", Password: goodPassword, Role: "editor",
	}, Origin{})
	require.NoError(t, err)
	return f
}

func (f *fixture) waitEvents(t *testing.T, ev string, n int) []repository.AuditEntry {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.sink.byType(ev)) >= n }, time.Second, 5*time.Millisecond)
	return f.sink.byType(ev)
}

var origin = Origin{IP: "10.0.0.1", UserAgent: "Mozilla/5.0 (Macintosh)"}

func (f *fixture) login(t *testing.T, email string) *LoginResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), LoginInput{Email: email, Password: goodPassword, Origin: origin})
	require.NoError(t, err)
	return res
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	res := f.login(t, "EDITOR@example.com")

	assert.Equal(t, f.editor.ID, res.Principal.ID)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, time.Hour, res.TokenTTL)
	assert.Equal(t, "editor", res.Claims.Role)
	require.NotNil(t, res.Principal.LastLogin)

	ev := f.waitEvents(t, audit.EventLogin, 1)
	assert.True(t, ev[0].Success)
	assert.Equal(t, "10.0.0.1", ev[0].IPAddress)
}

func TestLogin_RememberMeExtendsTTL(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Login(context.Background(), LoginInput{
		Email: "admin@example.com", Password: goodPassword, RememberMe: true, Origin: origin,
	})
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, res.TokenTTL)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour).Unix(), res.Claims.ExpiresAtTime().Unix())
}

func TestLogin_NoEnumeration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, errUnknown := f.svc.Login(ctx, LoginInput{Email: "nadie@example.com", Password: goodPassword, Origin: origin})
	_, errWrong := f.svc.Login(ctx, LoginInput{Email: "admin@example.com", Password: "Incorrecta#1", Origin: origin})

	require.Error(t, errUnknown)
	require.Error(t, errWrong)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())

	// el motivo real queda solo en auditoría
	ev := f.waitEvents(t, audit.EventFailedLogin, 2)
	reasons := []string{ev[0].Reason, ev[1].Reason}
	assert.ElementsMatch(t, []string{ReasonUnknownEmail, ReasonWrongPassword}, reasons)
}

func TestLogin_InactiveAccountLooksLikeWrongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mem.Principals.SetActive(ctx, f.editor.ID, false))

	_, err := f.svc.Login(ctx, LoginInput{Email: "editor@example.com", Password: goodPassword, Origin: origin})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	ev := f.waitEvents(t, audit.EventFailedLogin, 1)
	assert.Equal(t, ReasonInactive, ev[0].Reason)
}

func TestLogin_SixthAttemptBlockedBeforeCredentialCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := f.svc.Login(ctx, LoginInput{Email: "admin@example.com", Password: "Incorrecta#1", Origin: origin})
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i)
	}

	// con el password correcto: el limiter corta antes de comparar
	_, err := f.svc.Login(ctx, LoginInput{Email: "admin@example.com", Password: goodPassword, Origin: origin})
	require.ErrorIs(t, err, ErrRateLimited)
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 0, rl.Result.Remaining)
	assert.Equal(t, 5, rl.Result.Limit)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute).Unix(), rl.Result.ResetAt)
	assert.Equal(t, "Demasiados intentos de inicio de sesión", err.Error())

	f.waitEvents(t, audit.EventAccountLocked, 1)
	assert.Len(t, f.waitEvents(t, audit.EventFailedLogin, 5), 5)
	assert.Empty(t, f.sink.byType(audit.EventLogin))

	// otra IP no está bloqueada
	_, err = f.svc.Login(ctx, LoginInput{Email: "admin@example.com", Password: goodPassword, Origin: Origin{IP: "10.0.0.2"}})
	require.NoError(t, err)

	// la ventana vence
	f.clock.Advance(15 * time.Minute)
	_, err = f.svc.Login(ctx, LoginInput{Email: "admin@example.com", Password: goodPassword, Origin: origin})
	require.NoError(t, err)
}

func TestLogin_SuccessResetsLimiter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, _ = f.svc.Login(ctx, LoginInput{Email: "admin@example.com", Password: "Incorrecta#1", Origin: origin})
	}
	f.login(t, "admin@example.com")
	for i := 0; i < 4; i++ {
		_, err := f.svc.Login(ctx, LoginInput{Email: "admin@example.com", Password: "Incorrecta#1", Origin: origin})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestLogin_LegacyBcryptIsUpgraded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	legacy, err := password.HashBcrypt(goodPassword, 4)
	require.NoError(t, err)
	require.NoError(t, f.mem.Principals.UpdatePasswordHash(ctx, f.editor.ID, legacy))

	f.login(t, "editor@example.com")
	p, err := f.mem.Principals.GetByID(ctx, f.editor.ID)
	require.NoError(t, err)
	assert.False(t, password.IsBcrypt(p.PasswordHash))
	f.login(t, "editor@example.com")
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.login(t, "editor@example.com")

	id, err := f.svc.Authenticate(ctx, res.AccessToken, origin)
	require.NoError(t, err)
	assert.Equal(t, f.editor.ID, id.PrincipalID)
	assert.Equal(t, rbac.RoleEditor, id.Role)
	assert.False(t, id.RefreshSuggested)
	assert.True(t, id.Can(rbac.CanEdit))
	assert.False(t, id.Can(rbac.CanApprove))
	assert.False(t, id.Can(rbac.CanManageUsers))

	f.clock.Advance(55 * time.Minute)
	id, err = f.svc.Authenticate(ctx, res.AccessToken, origin)
	require.NoError(t, err)
	assert.True(t, id.RefreshSuggested)

	// vale mientras now < exp
	f.clock.Advance(5 * time.Minute)
	_, err = f.svc.Authenticate(ctx, res.AccessToken, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "expired", jwt.Reason(err))
}

func TestAuthenticate_RejectsGarbageAndForeignSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "not-a-token", origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	other, err := jwt.NewIssuer("another-secret-another-secret-1234", jwt.Options{AccessTTL: time.Hour, Now: f.clock.Now})
	require.NoError(t, err)
	tok, _, err := other.Issue(f.admin.ID, f.admin.Email, "admin", false)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, tok, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "signature", jwt.Reason(err))
}

func TestLogout_RevokesAccessAndSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.login(t, "editor@example.com")

	require.NoError(t, f.svc.Logout(ctx, res.AccessToken, res.RefreshToken, origin))

	_, err := f.svc.Authenticate(ctx, res.AccessToken, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "revoked", jwt.Reason(err))
	f.waitEvents(t, audit.EventSuspiciousActivity, 1)

	_, err = f.svc.Refresh(ctx, res.RefreshToken, false, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// idempotente
	require.NoError(t, f.svc.Logout(ctx, res.AccessToken, res.RefreshToken, origin))
	require.NoError(t, f.svc.Logout(ctx, "", "", origin))
}

func TestRefresh_RotatesAndDetectsReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.login(t, "editor@example.com")

	f.clock.Advance(time.Minute)
	r1, err := f.svc.Refresh(ctx, res.RefreshToken, false, origin)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, r1.RefreshToken)
	assert.Equal(t, res.SessionID, r1.SessionID)

	id, err := f.svc.Authenticate(ctx, r1.AccessToken, origin)
	require.NoError(t, err)
	assert.Equal(t, f.editor.ID, id.PrincipalID)

	_, err = f.svc.Refresh(ctx, res.RefreshToken, false, origin)
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, session.ReasonReplayed, session.Reason(err))
	ev := f.waitEvents(t, audit.EventSuspiciousActivity, 1)
	assert.Equal(t, session.ReasonReplayed, ev[0].Reason)

	// el token nuevo sigue sirviendo
	_, err = f.svc.Refresh(ctx, r1.RefreshToken, false, origin)
	require.NoError(t, err)
}

func TestLogoutAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.login(t, "editor@example.com")
	b := f.login(t, "editor@example.com")

	id, err := f.svc.Authenticate(ctx, a.AccessToken, origin)
	require.NoError(t, err)
	list, err := f.svc.ListSessions(ctx, id)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	n, err := f.svc.LogoutAll(ctx, id, origin)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.svc.Authenticate(ctx, a.AccessToken, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Refresh(ctx, b.RefreshToken, false, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

type downRegistry struct{}

func (downRegistry) Blacklist(context.Context, string, time.Time) error {
	return errors.New("connection refused")
}
func (downRegistry) IsBlacklisted(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}
func (downRegistry) Claim(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("connection refused")
}

func TestAuthenticate_RegistryDownFailsClosed(t *testing.T) {
	f := newFixture(t)
	res := f.login(t, "editor@example.com")
	f.svc.registry = downRegistry{}

	_, err := f.svc.Authenticate(context.Background(), res.AccessToken, origin)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.login(t, "editor@example.com")
	id, err := f.svc.Authenticate(ctx, res.AccessToken, origin)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, id, "Incorrecta#1", "Nueva#Clave99", origin), ErrInvalidCredentials)

	err = f.svc.ChangePassword(ctx, id, goodPassword, "corta", origin)
	require.ErrorIs(t, err, ErrWeakPassword)
	var pe *PolicyError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reasons, password.ReasonTooShort)

	require.NoError(t, f.svc.ChangePassword(ctx, id, goodPassword, "Nueva#Clave99", origin))
	f.waitEvents(t, audit.EventPasswordChange, 1)

	_, err = f.svc.Authenticate(ctx, res.AccessToken, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Refresh(ctx, res.RefreshToken, false, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.svc.Login(ctx, LoginInput{Email: "editor@example.com", Password: goodPassword, Origin: origin})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, LoginInput{Email: "editor@example.com", Password: "Nueva#Clave99", Origin: origin})
	require.NoError(t, err)
}

var tokenRe = regexp.MustCompile(`token=([A-Za-z0-9_.\-]+)`)

func (f *fixture) requestReset(t *testing.T, email string) string {
	t.Helper()
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), email, origin))
	select {
	case <-f.mailer.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("reset email not sent")
	}
	f.mailer.mu.Lock()
	defer f.mailer.mu.Unlock()
	m := tokenRe.FindStringSubmatch(f.mailer.text[len(f.mailer.text)-1])
	require.Len(t, m, 2)
	return m[1]
}

func TestPasswordReset_Flow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.login(t, "editor@example.com")

	token := f.requestReset(t, "editor@example.com")
	assert.Equal(t, []string{"editor@example.com"}, f.mailer.to)

	// un access token normal no sirve como token de reset
	assert.ErrorIs(t, f.svc.ConfirmPasswordReset(ctx, sess.AccessToken, "Nueva#Clave99", origin), ErrUnauthenticated)
	// ni un token de reset como access token
	_, err := f.svc.Authenticate(ctx, token, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.ErrorIs(t, f.svc.ConfirmPasswordReset(ctx, token, "debil", origin), ErrWeakPassword)
	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, token, "Nueva#Clave99", origin))

	// uso único
	assert.ErrorIs(t, f.svc.ConfirmPasswordReset(ctx, token, "Otra#Clave100", origin), ErrUnauthenticated)

	_, err = f.svc.Refresh(ctx, sess.RefreshToken, false, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Login(ctx, LoginInput{Email: "editor@example.com", Password: "Nueva#Clave99", Origin: origin})
	require.NoError(t, err)
	f.waitEvents(t, audit.EventPasswordReset, 2)
}

// slowPrincipals agrega latencia de red a las lecturas por ID.
type slowPrincipals struct {
	repository.PrincipalRepository
	delay time.Duration
}

func (s slowPrincipals) GetByID(ctx context.Context, id string) (*repository.Principal, error) {
	time.Sleep(s.delay)
	return s.PrincipalRepository.GetByID(ctx, id)
}

func TestPasswordReset_ConcurrentConfirmSingleWinner(t *testing.T) {
	f := newFixture(t)
	token := f.requestReset(t, "editor@example.com")
	f.svc.principals = slowPrincipals{PrincipalRepository: f.mem.Principals, delay: 20 * time.Millisecond}

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := Origin{IP: fmt.Sprintf("10.0.1.%d", i)}
			err := f.svc.ConfirmPasswordReset(context.Background(), token, fmt.Sprintf("Nueva#Clave9%d", i), o)
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrUnauthenticated)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	ev := f.waitEvents(t, audit.EventSuspiciousActivity, 7)
	assert.Equal(t, "reset_token_reused", ev[0].Reason)
}

func TestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "nadie@example.com", origin))
	select {
	case <-f.mailer.sent:
		t.Fatal("no email expected")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPasswordReset_RateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, f.svc.RequestPasswordReset(ctx, "nadie@example.com", origin))
	}
	assert.ErrorIs(t, f.svc.RequestPasswordReset(ctx, "nadie@example.com", origin), ErrRateLimited)
}

func TestAdmin_CreatePrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adminID := &Identity{PrincipalID: f.admin.ID, Role: rbac.RoleAdmin}
	editorID := &Identity{PrincipalID: f.editor.ID, Role: rbac.RoleEditor}

	p, err := f.svc.CreatePrincipal(ctx, adminID, CreatePrincipalInput{
		Email: "Nuevo@Example.com", Name: "Nuevo", Password: goodPassword, Role: "viewer",
	}, origin)
	require.NoError(t, err)
	assert.Equal(t, "nuevo@example.com", p.Email)
	assert.NotEqual(t, goodPassword, p.PasswordHash)

	_, err = f.svc.CreatePrincipal(ctx, adminID, CreatePrincipalInput{Email: "nuevo@example.com", Password: goodPassword, Role: "viewer"}, origin)
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = f.svc.CreatePrincipal(ctx, adminID, CreatePrincipalInput{Email: "x@example.com", Password: goodPassword, Role: "root"}, origin)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreatePrincipal(ctx, adminID, CreatePrincipalInput{Email: "x@example.com", Password: "debil", Role: "viewer"}, origin)
	assert.ErrorIs(t, err, ErrWeakPassword)
	_, err = f.svc.CreatePrincipal(ctx, editorID, CreatePrincipalInput{Email: "y@example.com", Password: goodPassword, Role: "viewer"}, origin)
	assert.ErrorIs(t, err, ErrForbidden)

	f.waitEvents(t, audit.EventRegistration, 3)
}

func TestAdmin_SetRoleRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adminID := &Identity{PrincipalID: f.admin.ID, Role: rbac.RoleAdmin}
	res := f.login(t, "editor@example.com")

	assert.ErrorIs(t, f.svc.SetRole(ctx, adminID, f.editor.ID, "superuser", origin), ErrInvalidInput)
	assert.ErrorIs(t, f.svc.SetRole(ctx, adminID, "missing", "viewer", origin), ErrNotFound)
	require.NoError(t, f.svc.SetRole(ctx, adminID, f.editor.ID, "viewer", origin))

	_, err := f.svc.Refresh(ctx, res.RefreshToken, false, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	// el access token con el rol viejo tampoco sirve
	_, err = f.svc.Authenticate(ctx, res.AccessToken, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "revoked", jwt.Reason(err))

	f.clock.Advance(time.Second)
	again := f.login(t, "editor@example.com")
	assert.Equal(t, "viewer", again.Claims.Role)
	id, err := f.svc.Authenticate(ctx, again.AccessToken, origin)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleViewer, id.Role)
	assert.False(t, id.Can(rbac.CanEdit))
	ev := f.waitEvents(t, audit.EventRoleChange, 1)
	assert.Equal(t, "editor", ev[0].Metadata["from"])
}

func TestAdmin_Deactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adminID := &Identity{PrincipalID: f.admin.ID, Role: rbac.RoleAdmin}
	res := f.login(t, "editor@example.com")

	assert.ErrorIs(t, f.svc.Deactivate(ctx, adminID, f.admin.ID, origin), ErrForbidden)
	require.NoError(t, f.svc.Deactivate(ctx, adminID, f.editor.ID, origin))

	_, err := f.svc.Refresh(ctx, res.RefreshToken, false, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Authenticate(ctx, res.AccessToken, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Login(ctx, LoginInput{Email: "editor@example.com", Password: goodPassword, Origin: origin})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_TokenIssuedBeforeCutIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.login(t, "editor@example.com")

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.mem.Principals.SetTokensValidAfter(ctx, f.editor.ID, f.clock.Now().Add(300*time.Millisecond)))
	_, err := f.svc.Authenticate(ctx, old.AccessToken, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// mismo segundo que el corte: afuera
	same := f.login(t, "editor@example.com")
	_, err = f.svc.Authenticate(ctx, same.AccessToken, origin)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	f.clock.Advance(time.Second)
	fresh := f.login(t, "editor@example.com")
	_, err = f.svc.Authenticate(ctx, fresh.AccessToken, origin)
	require.NoError(t, err)
}

func TestAuthenticate_PrincipalStoreDownFailsClosed(t *testing.T) {
	f := newFixture(t)
	res := f.login(t, "editor@example.com")
	f.svc.principals = downPrincipals{f.mem.Principals}

	_, err := f.svc.Authenticate(context.Background(), res.AccessToken, origin)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

type downPrincipals struct{ repository.PrincipalRepository }

func (downPrincipals) GetByID(context.Context, string) (*repository.Principal, error) {
	return nil, repository.ErrUnavailable
}

func TestBootstrapAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.BootstrapAdmin(ctx, "root@example.com", goodPassword)
	require.NoError(t, err)
	assert.False(t, created, "ya existe un admin")

	require.NoError(t, f.mem.Principals.SetActive(ctx, f.admin.ID, false))
	created, err = f.svc.BootstrapAdmin(ctx, "root@example.com", goodPassword)
	require.NoError(t, err)
	assert.True(t, created)

	p, err := f.mem.Principals.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Role)
}

func TestAuthorizeAndRequireRole(t *testing.T) {
	viewer := &Identity{Role: rbac.RoleViewer}
	assert.ErrorIs(t, Authorize(nil, rbac.CanEdit), ErrUnauthenticated)
	assert.ErrorIs(t, Authorize(viewer, rbac.CanEdit), ErrForbidden)
	assert.NoError(t, Authorize(&Identity{Role: rbac.RoleEditor}, rbac.CanEdit))
	assert.ErrorIs(t, RequireRole(viewer, rbac.RoleEditor), ErrForbidden)
	assert.NoError(t, RequireRole(&Identity{Role: rbac.RoleAdmin}, rbac.RoleEditor))
}
