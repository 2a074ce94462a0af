// Package cart mirrors the server-authoritative cart and purchase history
// for the current session. The client never computes a new cart state
// locally; every mutation ends in a full-state replacement from the server,
// which makes racing mutations last-write-wins and benign.
package cart

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

	// mu guards items and history only; never held across a network call.
	mu      sync.Mutex
	items   []models.CartItem
	history []models.Purchase

	cancelAuthLost func()
}

// mutationResponse is the add/update/remove envelope; remove omits item.
type mutationResponse struct {
	Msg  string            `json:"msg"`
	Item *models.CartItem  `json:"item"`
	Cart []models.CartItem `json:"cart"`
}

type checkoutResponse struct {
	Msg             string                  `json:"msg"`
	PurchaseID      int                     `json:"purchaseId"`
	PurchaseDetails *models.PurchaseReceipt `json:"purchaseDetails"`
}

func New(gw *gateway.Client, sess *session.Store, bus *events.Bus, log *slog.Logger) *Store {
	s := &Store{gw: gw, session: sess, bus: bus, log: log}
	// Losing the session must not leave a stale authenticated user's cart
	// on screen.
	s.cancelAuthLost = bus.SubscribeAuthLost(s.ClearClientSide)
	return s
}

// Close drops the store's bus subscription.
func (s *Store) Close() {
	if s.cancelAuthLost != nil {
		s.cancelAuthLost()
	}
}

// Items returns a snapshot of the current cart.
func (s *Store) Items() []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

// PurchaseHistory returns a snapshot of the purchase history.
func (s *Store) PurchaseHistory() []models.Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Purchase, len(s.history))
	copy(out, s.history)
	return out
}

// CartTotal is the sum of price times quantity across items, recomputed on
// read so it can never drift from the item list.
func (s *Store) CartTotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, item := range s.items {
		if item.Product != nil {
			total += item.Product.Price * float64(item.Quantity)
		}
	}
	return total
}

// CartCount is the sum of quantities across items.
func (s *Store) CartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// FetchCart replaces local state with the server's cart. Skipped silently
// when unauthenticated; a server-reported error resets the cart and raises
// a notice.
func (s *Store) FetchCart(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		s.setItems(nil)
		return nil
	}
	var items []models.CartItem
	err := s.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/cart"}, &items)
	if err != nil {
		s.setItems(nil)
		s.notifyError("Error Fetching Cart", apierr.Format(err, "Could not load your cart."))
		return err
	}
	s.setItems(items)
	return nil
}

// FetchPurchaseHistory mirrors FetchCart for the purchase list.
func (s *Store) FetchPurchaseHistory(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		s.setHistory(nil)
		return nil
	}
	var history []models.Purchase
	err := s.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/purchases"}, &history)
	if err != nil {
		s.setHistory(nil)
		s.notifyError("Error Fetching Purchases", apierr.Format(err, "Could not load purchase history."))
		return err
	}
	s.setHistory(history)
	return nil
}

// AddToCart adds quantity of product. On a confirmed item the full cart is
// re-fetched rather than spliced locally: the backend owns merge semantics
// for products already in the cart.
func (s *Store) AddToCart(ctx context.Context, product models.Product, quantity int) error {
	if !s.session.IsAuthenticated() {
		s.bus.Notify(events.Notice{Title: "Not Logged In", Description: "Please log in to add items to your cart."})
		return apierr.Precondition("Please log in to add items to your cart.")
	}
	if quantity < 1 {
		quantity = 1
	}
	var resp mutationResponse
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/cart",
		Body:   map[string]int{"productId": product.ID, "quantity": quantity},
	}, &resp)
	if err != nil || resp.Item == nil || resp.Item.ProductID == 0 {
		s.notifyError("Error Adding to Cart", apierr.Format(err, "Could not add to cart."))
		if err == nil {
			err = apierr.Decode()
		}
		return err
	}
	if err := s.FetchCart(ctx); err != nil {
		return err
	}
	s.bus.Notify(events.Notice{
		Title:       "Added to cart",
		Description: fmt.Sprintf("%s added to your cart.", product.Title),
	})
	return nil
}

// RemoveFromCart deletes the item. The endpoint returns the full updated
// cart, so no extra round trip is needed.
func (s *Store) RemoveFromCart(ctx context.Context, productID int) error {
	if !s.session.IsAuthenticated() {
		return apierr.Precondition("Not logged in.")
	}
	var resp mutationResponse
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/cart/item/%d", productID),
	}, &resp)
	if err != nil || resp.Cart == nil {
		s.notifyError("Error Removing Item", apierr.Format(err, "Could not remove from cart."))
		if err == nil {
			err = apierr.Decode()
		}
		return err
	}
	s.setItems(resp.Cart)
	s.bus.Notify(events.Notice{Title: "Removed from cart", Description: "Item removed from your cart."})
	return nil
}

// UpdateQuantity sets the item's quantity. A request below 1 is redirected
// to removal; the cart never holds a zero-quantity item.
func (s *Store) UpdateQuantity(ctx context.Context, productID, quantity int) error {
	if !s.session.IsAuthenticated() {
		return apierr.Precondition("Not logged in.")
	}
	if quantity < 1 {
		return s.RemoveFromCart(ctx, productID)
	}
	var resp mutationResponse
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/cart/item/%d", productID),
		Body:   map[string]int{"quantity": quantity},
	}, &resp)
	if err != nil || resp.Cart == nil {
		s.notifyError("Error Updating Quantity", apierr.Format(err, "Could not update quantity."))
		if err == nil {
			err = apierr.Decode()
		}
		return err
	}
	s.setItems(resp.Cart)
	return nil
}

// Checkout converts the cart into a purchase. Empty-cart and
// unauthenticated calls short-circuit before any network traffic; the
// backend remains authoritative for both checks.
func (s *Store) Checkout(ctx context.Context) (*models.PurchaseReceipt, error) {
	if !s.session.IsAuthenticated() {
		return nil, apierr.Precondition("Not logged in.")
	}
	if s.CartCount() == 0 {
		return nil, apierr.Precondition("Cart is empty. Nothing to checkout.")
	}
	var resp checkoutResponse
	err := s.gw.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/cart/checkout"}, &resp)
	if err != nil || resp.PurchaseID == 0 {
		s.notifyError("Checkout failed", apierr.Format(err, "Could not complete checkout."))
		if err == nil {
			err = apierr.Decode()
		}
		return nil, err
	}
	s.bus.Notify(events.Notice{Title: "Checkout complete!", Description: "Thank you for your purchase."})
	if err := s.FetchCart(ctx); err != nil {
		return resp.PurchaseDetails, err
	}
	if err := s.FetchPurchaseHistory(ctx); err != nil {
		return resp.PurchaseDetails, err
	}
	return resp.PurchaseDetails, nil
}

// ClearClientSide resets local state with no network call. Used when
// identity is lost so a stale authenticated user's cart is never shown.
func (s *Store) ClearClientSide() {
	s.mu.Lock()
	s.items = nil
	s.history = nil
	s.mu.Unlock()
}

func (s *Store) setItems(items []models.CartItem) {
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

func (s *Store) setHistory(history []models.Purchase) {
	s.mu.Lock()
	s.history = history
	s.mu.Unlock()
}

func (s *Store) notifyError(title, description string) {
	s.bus.Notify(events.Notice{Title: title, Description: description, Severity: events.SeverityError})
}
