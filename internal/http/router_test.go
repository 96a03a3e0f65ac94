package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/smallbiznis/portal-auth/internal/adapter/cache"
	"github.com/smallbiznis/portal-auth/internal/adapter/oauth"
	"github.com/smallbiznis/portal-auth/internal/config"
	"github.com/smallbiznis/portal-auth/internal/domain"
	"github.com/smallbiznis/portal-auth/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/portal-auth/internal/http/middleware"
	"github.com/smallbiznis/portal-auth/internal/service/identity"
	"github.com/smallbiznis/portal-auth/internal/session"
)

func TestRouter_FullLoginFlow(t *testing.T) {
	h := newRouterHarness(t)

	cookie := h.login(t)

	rec := h.request(t, http.MethodGet, "/api/user", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ada@example.com", body["email"])
	require.Equal(t, "Ada", body["display_name"])
	require.NotContains(t, body, "access_token")
	require.NotContains(t, body, "refresh_token")
	require.Equal(t, 1, h.users.count())
}

func TestRouter_ReLoginUpdatesWithoutDuplicating(t *testing.T) {
	h := newRouterHarness(t)

	_ = h.login(t)

	h.provider.mu.Lock()
	h.provider.profile.Name = "Ada Lovelace"
	h.provider.mu.Unlock()

	cookie := h.login(t)

	rec := h.request(t, http.MethodGet, "/api/user", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Ada Lovelace", body["display_name"])
	require.Equal(t, 1, h.users.count())
}

func TestRouter_ProviderDenialRedirectsWithoutMutation(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.request(t, http.MethodGet, "/auth/google/callback?error=access_denied", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/?error=auth_failed", rec.Header().Get("Location"))
	require.Equal(t, 0, h.users.count())
	require.Empty(t, sessionCookie(rec))
}

func TestRouter_CallbackWithForgedStateFails(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.request(t, http.MethodGet, "/auth/google/callback?code=c&state=forged", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/?error=auth_failed", rec.Header().Get("Location"))
	require.Equal(t, 0, h.users.count())
}

func TestRouter_UnauthenticatedAPIUser(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.request(t, http.MethodGet, "/api/user", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error": "Not authenticated"}`, rec.Body.String())
}

func TestRouter_UnauthenticatedDashboardRedirects(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.request(t, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
}

func TestRouter_DashboardShellNotServedStatically(t *testing.T) {
	h := newRouterHarness(t)

	// The raw file path routes back through the gate instead of the
	// static fallback.
	rec := h.request(t, http.MethodGet, "/dashboard.html", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))

	cookie := h.login(t)
	rec = h.request(t, http.MethodGet, "/dashboard", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "dashboard")
}

func TestRouter_LogoutInvalidatesSession(t *testing.T) {
	h := newRouterHarness(t)

	cookie := h.login(t)

	rec := h.request(t, http.MethodGet, "/logout", cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)

	// The old cookie no longer authenticates.
	rec = h.request(t, http.MethodGet, "/api/user", cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_SessionExpiresWithStoreTTL(t *testing.T) {
	h := newRouterHarness(t)

	cookie := h.login(t)
	h.redis.FastForward(25 * time.Hour)

	rec := h.request(t, http.MethodGet, "/api/user", cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_DeletedIdentityInvalidatesSession(t *testing.T) {
	h := newRouterHarness(t)

	cookie := h.login(t)
	h.users.deleteAll()

	rec := h.request(t, http.MethodGet, "/api/user", cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_StaticFallbackServesIndex(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.request(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "landing")

	rec = h.request(t, http.MethodGet, "/some/spa/route", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "landing")

	rec = h.request(t, http.MethodGet, "/api/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_HealthzReportsDegradedOnPingFailure(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.request(t, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	h.pinger.err = context.DeadlineExceeded
	rec = h.request(t, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ---- Harness ----

type routerHarness struct {
	engine   http.Handler
	provider *fakeProvider
	users    *fakeUserRepo
	pinger   *fakePinger
	redis    *miniredis.Miniredis
}

func newRouterHarness(t *testing.T) *routerHarness {
	t.Helper()

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>landing</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "dashboard.html"), []byte("<html>dashboard</html>"), 0o644))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	users := newFakeUserRepo()
	provider := &fakeProvider{
		profile: oauth.Profile{Subject: "subject-1", Email: "ada@example.com", Name: "Ada", Picture: "https://img/ada"},
		token:   &oauth2.Token{AccessToken: "access-token", RefreshToken: "refresh-token"},
	}

	logger := zap.NewNop()
	reconciler := identity.NewReconciler(users, node, logger)
	flow := identity.NewFlowService(
		oauth.NewRegistry(provider),
		cache.NewRedisStateStore(client),
		reconciler,
		5*time.Minute,
		logger,
	)

	sessions := session.NewRedisStore(client)
	codec := session.NewCodec(users)
	gate := httpmiddleware.NewSessionGate(sessions, codec, logger)

	authHandler := handler.NewAuthHandler(flow, sessions, codec, session.DevelopmentCookieOptions(), 24*time.Hour, logger)
	pinger := &fakePinger{}
	userHandler := handler.NewUserHandler(pinger, logger)

	cfg := config.Config{
		Environment:          "test",
		ServiceName:          "portal-auth-test",
		StaticDir:            staticDir,
		CORSAllowedOrigins:   []string{"*"},
		CORSAllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders:   []string{"Authorization", "Content-Type"},
		CORSAllowCredentials: true,
	}

	engine := NewRouter(cfg, logger, authHandler, userHandler, gate, nil)

	return &routerHarness{engine: engine, provider: provider, users: users, pinger: pinger, redis: mr}
}

// login drives the full flow and returns the session cookie.
func (h *routerHarness) login(t *testing.T) *http.Cookie {
	t.Helper()

	rec := h.request(t, http.MethodGet, "/auth/google", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	redirect, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := redirect.Query().Get("state")
	require.NotEmpty(t, state)

	rec = h.request(t, http.MethodGet, "/auth/google/callback?code=auth-code&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	require.NotEmpty(t, cookie.Value)
	require.True(t, cookie.HttpOnly)
	return cookie
}

func (h *routerHarness) request(t *testing.T, method, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

// ---- Fakes ----

type fakeProvider struct {
	mu      sync.Mutex
	profile oauth.Profile
	token   *oauth2.Token
}

func (f *fakeProvider) Name() string { return "google" }

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeProvider) Exchange(_ context.Context, _ string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeProvider) FetchProfile(_ context.Context, _ *oauth2.Token) (*oauth.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profile
	return &p, nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

type fakeUserRepo struct {
	mu      sync.Mutex
	records map[int64]domain.UserIdentity
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{records: map[int64]domain.UserIdentity{}}
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeUserRepo) deleteAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = map[int64]domain.UserIdentity{}
}

func (f *fakeUserRepo) FindBySubject(_ context.Context, provider, subjectID string) (domain.UserIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.records {
		if u.Provider == provider && u.SubjectID == subjectID {
			return u, nil
		}
	}
	return domain.UserIdentity{}, domain.ErrIdentityNotFound
}

func (f *fakeUserRepo) FindByID(_ context.Context, id int64) (domain.UserIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.records[id]; ok {
		return u, nil
	}
	return domain.UserIdentity{}, domain.ErrIdentityNotFound
}

func (f *fakeUserRepo) Insert(_ context.Context, u domain.UserIdentity) (domain.UserIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.records {
		if existing.Provider == u.Provider && existing.SubjectID == u.SubjectID {
			return domain.UserIdentity{}, domain.ErrConflictingWrite
		}
	}
	f.records[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) Update(_ context.Context, u domain.UserIdentity) (domain.UserIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.records {
		if existing.Provider == u.Provider && existing.SubjectID == u.SubjectID {
			u.ID = id
			u.CreatedAt = existing.CreatedAt
			f.records[id] = u
			return u, nil
		}
	}
	return domain.UserIdentity{}, domain.ErrIdentityNotFound
}
