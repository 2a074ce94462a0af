package session_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/ecofinds/ecofinds-client/internal/apierr"
	"github.com/ecofinds/ecofinds-client/internal/credstore"
	"github.com/ecofinds/ecofinds-client/internal/events"
	"github.com/ecofinds/ecofinds-client/internal/gateway"
	"github.com/ecofinds/ecofinds-client/internal/logging"
	"github.com/ecofinds/ecofinds-client/internal/models"
	"github.com/ecofinds/ecofinds-client/internal/session"
)

// authBackend is a fake EcoFinds auth surface with call counters.
type authBackend struct {
	echo *echo.Echo

	loginCalls   int32
	meCalls      int32
	refreshCalls int32

	user models.User
}

func newAuthBackend() *authBackend {
	b := &authBackend{
		echo: echo.New(),
		user: models.User{ID: 1, Email: "a@b.com", Username: "alice"},
	}
	b.echo.POST("/login", func(c echo.Context) error {
		atomic.AddInt32(&b.loginCalls, 1)
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"msg": "Request body is missing or not JSON"})
		}
		if req.Email != "a@b.com" || req.Password != "secret" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "Invalid email or password"})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"access_token":  "T1",
			"refresh_token": "R1",
			"user":          b.user,
		})
	})
	b.echo.GET("/me", func(c echo.Context) error {
		atomic.AddInt32(&b.meCalls, 1)
		if c.Request().Header.Get("Authorization") != "Bearer T1" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "token expired"})
		}
		return c.JSON(http.StatusOK, b.user)
	})
	b.echo.POST("/refresh", func(c echo.Context) error {
		atomic.AddInt32(&b.refreshCalls, 1)
		if c.Request().Header.Get("Authorization") != "Bearer R1" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "bad refresh token"})
		}
		return c.JSON(http.StatusOK, map[string]string{"access_token": "T1"})
	})
	b.echo.PUT("/profile", func(c echo.Context) error {
		var req struct {
			Username *string `json:"username"`
		}
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"msg": "Request body is missing or not JSON"})
		}
		if req.Username != nil {
			b.user.Username = *req.Username
		}
		return c.JSON(http.StatusOK, b.user)
	})
	return b
}

type fixture struct {
	store   *session.Store
	creds   *credstore.Store
	bus     *events.Bus
	notices *[]events.Notice
}

func newFixture(t *testing.T, baseURL string) *fixture {
	t.Helper()
	creds, err := credstore.OpenMemory()
	require.NoError(t, err)
	bus := events.NewBus()
	var notices []events.Notice
	bus.SubscribeNotices(func(n events.Notice) { notices = append(notices, n) })
	log := logging.New("error", io.Discard)
	gw := gateway.NewClient(baseURL, 5*time.Second, creds, bus, log)
	return &fixture{
		store:   session.New(gw, creds, bus, log),
		creds:   creds,
		bus:     bus,
		notices: &notices,
	}
}

func noticeTitles(notices []events.Notice) []string {
	titles := make([]string, len(notices))
	for i, n := range notices {
		titles[i] = n.Title
	}
	return titles
}

func TestLoginSuccess(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.echo)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	require.NoError(t, f.store.Login(context.Background(), "a@b.com", "secret"))

	require.True(t, f.store.IsAuthenticated())
	user, ok := f.store.CurrentUser()
	require.True(t, ok)
	require.Equal(t, "alice", user.Username)

	access, err := f.creds.AccessToken()
	require.NoError(t, err)
	require.Equal(t, "T1", access)

	cached, err := f.creds.CachedUser()
	require.NoError(t, err)
	require.Equal(t, "alice", cached.Username)

	require.Contains(t, noticeTitles(*f.notices), "Login successful")
}

func TestLoginFailureSurfacesServerMessage(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.echo)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	err := f.store.Login(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)
	require.Equal(t, "Invalid email or password", apierr.Format(err, ""))
	require.False(t, f.store.IsAuthenticated())
	require.Contains(t, noticeTitles(*f.notices), "Login failed")
}

func TestBootstrapWithoutTokenMakesNoNetworkCalls(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.echo)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	require.NoError(t, f.creds.SetCachedUser(&models.User{ID: 9, Username: "stale"}))

	require.NoError(t, f.store.FetchCurrentUser(context.Background()))
	require.False(t, f.store.IsAuthenticated())
	require.EqualValues(t, 0, atomic.LoadInt32(&backend.meCalls))

	cached, err := f.creds.CachedUser()
	require.NoError(t, err)
	require.Nil(t, cached, "stale cached identity is dropped")
}

func TestBootstrapConfirmsStoredSession(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.echo)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	require.NoError(t, f.creds.SetTokens("T1", "R1"))

	require.NoError(t, f.store.FetchCurrentUser(context.Background()))
	require.True(t, f.store.IsAuthenticated())
	user, _ := f.store.CurrentUser()
	require.Equal(t, "alice", user.Username)
}

func TestBootstrapRecoversExpiredAccessToken(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.echo)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	require.NoError(t, f.creds.SetTokens("expired", "R1"))

	require.NoError(t, f.store.FetchCurrentUser(context.Background()))
	require.True(t, f.store.IsAuthenticated())
	require.EqualValues(t, 1, atomic.LoadInt32(&backend.refreshCalls), "exactly one refresh attempt")
	require.EqualValues(t, 2, atomic.LoadInt32(&backend.meCalls), "exactly one retry of /me")
}

func TestBootstrapTearsDownWhenRefreshFails(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.echo)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	require.NoError(t, f.creds.SetTokens("expired", "revoked"))

	err := f.store.FetchCurrentUser(context.Background())
	require.Error(t, err)
	require.False(t, f.store.IsAuthenticated())

	access, aerr := f.creds.AccessToken()
	require.NoError(t, aerr)
	require.Empty(t, access)
	require.Contains(t, noticeTitles(*f.notices), "Session Expired")
}

func TestLogoutIsPureClientSide(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.echo)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	require.NoError(t, f.store.Login(context.Background(), "a@b.com", "secret"))
	calls := atomic.LoadInt32(&backend.loginCalls) + atomic.LoadInt32(&backend.meCalls) + atomic.LoadInt32(&backend.refreshCalls)

	f.store.Logout()

	require.False(t, f.store.IsAuthenticated())
	after := atomic.LoadInt32(&backend.loginCalls) + atomic.LoadInt32(&backend.meCalls) + atomic.LoadInt32(&backend.refreshCalls)
	require.Equal(t, calls, after, "logout never contacts the backend")

	access, err := f.creds.AccessToken()
	require.NoError(t, err)
	require.Empty(t, access)
	require.Contains(t, noticeTitles(*f.notices), "Logged out")
}

func TestUpdateProfile(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.echo)
	defer srv.Close()

	f := newFixture(t, srv.URL)

	// Not authenticated: immediate precondition failure, no network call.
	name := "eco_alice"
	err := f.store.UpdateProfile(context.Background(), session.ProfileUpdate{Username: &name})
	require.ErrorIs(t, err, &apierr.Error{Kind: apierr.KindPrecondition})

	require.NoError(t, f.store.Login(context.Background(), "a@b.com", "secret"))
	require.NoError(t, f.store.UpdateProfile(context.Background(), session.ProfileUpdate{Username: &name}))

	user, _ := f.store.CurrentUser()
	require.Equal(t, "eco_alice", user.Username)
	cached, err := f.creds.CachedUser()
	require.NoError(t, err)
	require.Equal(t, "eco_alice", cached.Username)
}

func TestAuthLostSignalTearsDownSession(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.echo)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	require.NoError(t, f.store.Login(context.Background(), "a@b.com", "secret"))

	f.bus.PublishAuthLost()

	require.False(t, f.store.IsAuthenticated())
	_, ok := f.store.CurrentUser()
	require.False(t, ok)
	require.Contains(t, noticeTitles(*f.notices), "Session Expired")
}
