// Package wishlist mirrors the authenticated user's wishlist. Like the
// cart, the server is the source of truth: every mutation is followed by a
// re-fetch of the full list.
package wishlist

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ecofinds/ecofinds-client/internal/apierr"
	"github.com/ecofinds/ecofinds-client/internal/events"
	"github.com/ecofinds/ecofinds-client/internal/gateway"
	"github.com/ecofinds/ecofinds-client/internal/models"
	"github.com/ecofinds/ecofinds-client/internal/session"
)

type Store struct {
	gw      *gateway.Client
	session *session.Store
	bus     *events.Bus
	log     *slog.Logger

	mu       sync.Mutex
	products []models.Product

	cancelAuthLost func()
}

func New(gw *gateway.Client, sess *session.Store, bus *events.Bus, log *slog.Logger) *Store {
	s := &Store{gw: gw, session: sess, bus: bus, log: log}
	s.cancelAuthLost = bus.SubscribeAuthLost(s.ClearClientSide)
	return s
}

// Close drops the store's bus subscription.
func (s *Store) Close() {
	if s.cancelAuthLost != nil {
		s.cancelAuthLost()
	}
}

func (s *Store) Products() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *Store) Contains(productID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == productID {
			return true
		}
	}
	return false
}

func (s *Store) Fetch(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		s.setProducts(nil)
		return nil
	}
	var products []models.Product
	err := s.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/wishlist"}, &products)
	if err != nil {
		s.setProducts(nil)
		s.notifyError("Error Fetching Wishlist", apierr.Format(err, "Could not load your wishlist."))
		return err
	}
	s.setProducts(products)
	return nil
}

func (s *Store) Add(ctx context.Context, productID int) error {
	if !s.session.IsAuthenticated() {
		return apierr.Precondition("Please log in to manage your wishlist.")
	}
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/wishlist/%d", productID),
	}, nil)
	if err != nil {
		// "Product already in wishlist" and friends come back verbatim.
		s.notifyError("Wishlist", apierr.Format(err, "Could not add product to wishlist."))
		return err
	}
	return s.Fetch(ctx)
}

func (s *Store) Remove(ctx context.Context, productID int) error {
	if !s.session.IsAuthenticated() {
		return apierr.Precondition("Please log in to manage your wishlist.")
	}
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/wishlist/%d", productID),
	}, nil)
	if err != nil {
		s.notifyError("Wishlist", apierr.Format(err, "Could not remove product from wishlist."))
		return err
	}
	return s.Fetch(ctx)
}

func (s *Store) ClearClientSide() {
	s.setProducts(nil)
}

func (s *Store) setProducts(products []models.Product) {
	s.mu.Lock()
	s.products = products
	s.mu.Unlock()
}

func (s *Store) notifyError(title, description string) {
	s.bus.Notify(events.Notice{Title: title, Description: description, Severity: events.SeverityError})
}
