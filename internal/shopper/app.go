// Package shopper wires the storefront components for one CLI invocation and
// implements the shopper-facing modes: catalog, cart, wishlist, login and logout.
package shopper

import (
	"context"
	"fmt"
	"io"

	"bakery-storefront/internal/backend"
	"bakery-storefront/internal/cart"
	"bakery-storefront/internal/catalog"
	"bakery-storefront/internal/localstate"
	"bakery-storefront/internal/notify"
	"bakery-storefront/internal/pricing"
	"bakery-storefront/internal/session"
	"bakery-storefront/internal/wishlist"
	"bakery-storefront/internal/xpkg/config"
	"bakery-storefront/internal/xpkg/logger"
)

// App holds one instance of every component. Nothing in it is package level.
type App struct {
	Cfg      *config.Config
	Local    localstate.IStore
	Sessions *session.Manager
	Client   *backend.Client
	Notifier notify.Notifier
	Pricing  *pricing.Engine
	Catalog  *catalog.Fetcher
	Cart     *cart.Store
	CartSync *cart.Synchronizer
	Wishlist *wishlist.Store
	Out      io.Writer

	mylog logger.Logger
}

// Open builds the components from cfg and loads the persisted session, cart and
// wishlist. Login hooks run cart merge first, then wishlist sync.
func Open(ctx context.Context, cfg *config.Config, out io.Writer, mylog logger.Logger) (*App, error) {
	local, err := localstate.Open(ctx, cfg, mylog)
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	a := &App{
		Cfg:      cfg,
		Local:    local,
		Notifier: notify.NewConsole(out),
		Pricing:  pricing.NewEngine(mylog),
		Out:      out,
		mylog:    mylog,
	}
	a.Sessions = session.NewManager(local, mylog)
	a.Client = backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, mylog, backend.WithTokenSource(a.Sessions))
	a.Catalog = catalog.NewFetcher(a.Client, local, cfg.Backend.DetailTimeout, mylog)
	a.Cart = cart.NewStore(local, a.Client, a.Sessions, a.Notifier, mylog)
	a.CartSync = cart.NewSynchronizer(local, a.Client, a.Cart, a.Notifier, mylog)
	a.Wishlist = wishlist.NewStore(local, a.Client, a.Sessions, a.Notifier, mylog)

	a.Sessions.OnLogin(a.CartSync.OnLogin)
	a.Sessions.OnLogin(a.Wishlist.OnLogin)

	if err := a.Sessions.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load session: %w", err)
	}
	return a, nil
}

// LoadState reads the cart and wishlist for the current mode. A failed server
// read is reported but leaves the app usable.
func (a *App) LoadState(ctx context.Context) {
	if err := a.Cart.Load(ctx); err != nil {
		notify.Failure(a.Notifier, "Couldn't load your cart.", err)
	}
	if err := a.Wishlist.Load(ctx); err != nil {
		notify.Failure(a.Notifier, "Couldn't load your wishlist.", err)
	}
}

func (a *App) Close() {
	if err := a.Local.Close(); err != nil {
		a.mylog.Action("local_state_close_failed").Error("Failed to close local state", err)
	}
}
