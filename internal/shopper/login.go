package shopper

import (
	"context"
	"flag"
	"fmt"
	"time"

	"bakery-storefront/internal/notify"

	apperr "bakery-storefront/internal/xpkg/errors"
)

type loginCmd struct {
	userID string
	token  string
}

func (c *loginCmd) register(fs *flag.FlagSet) {
	fs.StringVar(&c.userID, "user", "", "User id to log in as")
	fs.StringVar(&c.token, "token", "", "Session token; when empty one is requested from the development backend")
}

func (c *loginCmd) validate() error {
	if c.userID == "" {
		return fmt.Errorf("-user is required: %w", apperr.ErrValidation)
	}
	return nil
}

func (c *loginCmd) run(ctx context.Context, a *App) error {
	mylog := a.mylog.Action("login").With("user_id", c.userID)

	token := c.token
	if token == "" {
		var err error
		if token, err = a.Client.IssueDevToken(ctx, c.userID); err != nil {
			notify.Failure(a.Notifier, "Couldn't log you in. Try again.", err)
			return err
		}
	}

	sess, err := a.Sessions.Establish(ctx, c.userID, token, time.Time{})
	if sess.UserID == "" {
		notify.Failure(a.Notifier, "Couldn't log you in. Try again.", err)
		return err
	}
	if err != nil {
		// The session stands; the anonymous cart or wishlist stays on this device
		// and is retried on the next login.
		mylog.Warn("Logged in with sync failures", "reason", err.Error())
	}

	notify.Info(a.Notifier, fmt.Sprintf("Logged in as %s.", sess.UserID))
	fmt.Fprintf(a.Out, "Session valid until %s\n", sess.ExpiresAt.Format(time.RFC1123))
	fmt.Fprintf(a.Out, "Cart: %d items, wishlist: %d saved\n", a.Cart.Count(), a.Wishlist.Count())
	return nil
}

type logoutCmd struct{}

func (c *logoutCmd) register(*flag.FlagSet) {}

func (c *logoutCmd) validate() error { return nil }

func (c *logoutCmd) run(ctx context.Context, a *App) error {
	_, active := a.Sessions.Current()
	if err := a.Sessions.Logout(ctx); err != nil {
		notify.Failure(a.Notifier, "Couldn't log you out. Try again.", err)
		return err
	}
	if !active {
		notify.Info(a.Notifier, "You're not logged in.")
		return nil
	}
	notify.Info(a.Notifier, "Logged out.")
	return nil
}
