// Command ecofinds is a terminal client for the EcoFinds marketplace. It
// drives the same REST backend as the web UI: browse and search products,
// manage listings, the cart, the wishlist, and purchases.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/ecofinds/ecofinds-client/internal/cart"
	"github.com/ecofinds/ecofinds-client/internal/catalog"
	"github.com/ecofinds/ecofinds-client/internal/config"
	"github.com/ecofinds/ecofinds-client/internal/credstore"
	"github.com/ecofinds/ecofinds-client/internal/events"
	"github.com/ecofinds/ecofinds-client/internal/gateway"
	"github.com/ecofinds/ecofinds-client/internal/logging"
	"github.com/ecofinds/ecofinds-client/internal/session"
	"github.com/ecofinds/ecofinds-client/internal/wishlist"
)

const usage = `Usage: ecofinds <command> [flags]

Account:    register login logout me profile
Browse:     products product
Selling:    sell edit delete listings
Cart:       cart cart-add cart-rm cart-qty checkout purchases
Wishlist:   wishlist wish unwish
`

type app struct {
	logger   *slog.Logger
	session  *session.Store
	cart     *cart.Store
	catalog  *catalog.Client
	wishlist *wishlist.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)

	creds, err := credstore.Open(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	bus := events.NewBus()
	bus.SubscribeNotices(func(n events.Notice) {
		fmt.Fprintf(os.Stderr, "%s: %s\n", n.Title, n.Description)
	})

	gw := gateway.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, creds, bus, logger)
	sess := session.New(gw, creds, bus, logger)

	return &app{
		logger:   logger,
		session:  sess,
		cart:     cart.New(gw, sess, bus, logger),
		catalog:  catalog.NewClient(gw, logger),
		wishlist: wishlist.New(gw, sess, bus, logger),
	}, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	a, err := newApp()
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	ctx := logging.IntoContext(context.Background(), a.logger)
	if err := run(ctx, a, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
