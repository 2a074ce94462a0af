package wishlist_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
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
	"github.com/ecofinds/ecofinds-client/internal/wishlist"
)

func newBackend() (*echo.Echo, *[]models.Product) {
	wished := []models.Product{}
	catalog := map[int]models.Product{
		5: {ID: 5, Title: "Bamboo Cup", Price: 10},
		7: {ID: 7, Title: "Solar Lamp", Price: 25},
	}

	e := echo.New()
	authorized := func(c echo.Context) bool {
		return c.Request().Header.Get("Authorization") == "Bearer T1"
	}
	e.GET("/me", func(c echo.Context) error {
		if !authorized(c) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "token expired"})
		}
		return c.JSON(http.StatusOK, models.User{ID: 1, Username: "alice"})
	})
	e.GET("/wishlist", func(c echo.Context) error {
		if !authorized(c) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "token expired"})
		}
		return c.JSON(http.StatusOK, wished)
	})
	e.POST("/wishlist/:id", func(c echo.Context) error {
		if !authorized(c) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "token expired"})
		}
		id, _ := strconv.Atoi(c.Param("id"))
		product, ok := catalog[id]
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"msg": "Product not found"})
		}
		for _, p := range wished {
			if p.ID == id {
				return c.JSON(http.StatusConflict, map[string]string{"msg": "Product already in wishlist"})
			}
		}
		wished = append(wished, product)
		return c.JSON(http.StatusCreated, map[string]any{"msg": "Product added to wishlist", "productId": id})
	})
	e.DELETE("/wishlist/:id", func(c echo.Context) error {
		if !authorized(c) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "token expired"})
		}
		id, _ := strconv.Atoi(c.Param("id"))
		for i, p := range wished {
			if p.ID == id {
				wished = append(wished[:i], wished[i+1:]...)
				return c.JSON(http.StatusOK, map[string]any{"msg": "Product removed from wishlist", "productId": id})
			}
		}
		return c.JSON(http.StatusNotFound, map[string]string{"msg": "Product not in wishlist"})
	})
	return e, &wished
}

type fixture struct {
	wishlist *wishlist.Store
	session  *session.Store
	notices  *[]events.Notice
}

func newFixture(t *testing.T, baseURL string, authenticated bool) *fixture {
	t.Helper()
	creds, err := credstore.OpenMemory()
	require.NoError(t, err)
	if authenticated {
		require.NoError(t, creds.SetTokens("T1", "R1"))
	}

	bus := events.NewBus()
	var notices []events.Notice
	bus.SubscribeNotices(func(n events.Notice) { notices = append(notices, n) })

	log := logging.New("error", io.Discard)
	gw := gateway.NewClient(baseURL, 5*time.Second, creds, bus, log)
	sess := session.New(gw, creds, bus, log)
	require.NoError(t, sess.FetchCurrentUser(context.Background()))

	return &fixture{
		wishlist: wishlist.New(gw, sess, bus, log),
		session:  sess,
		notices:  &notices,
	}
}

func TestAddAndRemove(t *testing.T) {
	e, _ := newBackend()
	srv := httptest.NewServer(e)
	defer srv.Close()

	f := newFixture(t, srv.URL, true)

	require.NoError(t, f.wishlist.Add(context.Background(), 5))
	require.True(t, f.wishlist.Contains(5))
	require.False(t, f.wishlist.Contains(7))
	require.Len(t, f.wishlist.Products(), 1)

	require.NoError(t, f.wishlist.Remove(context.Background(), 5))
	require.False(t, f.wishlist.Contains(5))
	require.Empty(t, f.wishlist.Products())
}

func TestDuplicateAddSurfacesServerMessage(t *testing.T) {
	e, _ := newBackend()
	srv := httptest.NewServer(e)
	defer srv.Close()

	f := newFixture(t, srv.URL, true)
	require.NoError(t, f.wishlist.Add(context.Background(), 5))

	err := f.wishlist.Add(context.Background(), 5)
	require.Error(t, err)
	require.Equal(t, "Product already in wishlist", apierr.Format(err, ""))
}

func TestUnauthenticatedOperations(t *testing.T) {
	e, _ := newBackend()
	srv := httptest.NewServer(e)
	defer srv.Close()

	f := newFixture(t, srv.URL, false)

	require.NoError(t, f.wishlist.Fetch(context.Background()))
	require.Empty(t, f.wishlist.Products())

	err := f.wishlist.Add(context.Background(), 5)
	require.ErrorIs(t, err, &apierr.Error{Kind: apierr.KindPrecondition})
}
