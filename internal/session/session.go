// Package session derives authenticated or anonymous mode from the persisted userSession.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bakery-storefront/internal/localstate"
	"bakery-storefront/internal/xpkg/logger"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

type Session struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the session is still usable at now.
func (s Session) Valid(now time.Time) bool {
	return s.UserID != "" && now.Before(s.ExpiresAt)
}

// ID identifies one authentication transition.
func (s Session) ID() string {
	return fmt.Sprintf("%s@%d", s.UserID, s.ExpiresAt.Unix())
}

// LoginHook runs after a session is established, e.g. to merge the anonymous cart.
type LoginHook func(ctx context.Context, s Session) error

type Manager struct {
	store localstate.IStore
	now   func() time.Time
	mylog logger.Logger

	mu      sync.RWMutex
	current Session
	hooks   []LoginHook
}

func NewManager(store localstate.IStore, mylog logger.Logger) *Manager {
	return &Manager{
		store: store,
		now:   time.Now,
		mylog: mylog,
	}
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) OnLogin(hook LoginHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// Load reads the persisted session at startup.
func (m *Manager) Load(ctx context.Context) error {
	var s Session
	ok, err := localstate.GetJSON(ctx, m.store, localstate.KeyUserSession, &s)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if s.UserID == "" {
		var uid string
		if _, err := localstate.GetJSON(ctx, m.store, localstate.KeyUserID, &uid); err != nil {
			return err
		}
		s.UserID = uid
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	if !s.Valid(m.now()) {
		m.mylog.Action("session_expired").Info("Stored session is expired, continuing anonymously", "user_id", s.UserID)
	}
	return nil
}

// Current returns the session if it is valid now.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	s := m.current
	m.mu.RUnlock()
	if !s.Valid(m.now()) {
		return Session{}, false
	}
	return s, true
}

// Token implements backend.TokenSource.
func (m *Manager) Token() string {
	s, ok := m.Current()
	if !ok {
		return ""
	}
	return s.Token
}

// Establish persists a new session and runs the login hooks in registration order.
// A zero expiresAt is read from the token's exp claim. Hook failures are returned
// joined but do not undo the login.
func (m *Manager) Establish(ctx context.Context, userID, token string, expiresAt time.Time) (Session, error) {
	mylog := m.mylog.Action("session_establish")
	if userID == "" {
		return Session{}, fmt.Errorf("user id: %w", apperr.ErrValidation)
	}
	if expiresAt.IsZero() {
		exp, err := TokenExpiry(token)
		if err != nil {
			return Session{}, err
		}
		expiresAt = exp
	}

	s := Session{UserID: userID, Token: token, ExpiresAt: expiresAt}
	if !s.Valid(m.now()) {
		return Session{}, fmt.Errorf("session already expired at %s: %w", expiresAt.Format(time.RFC3339), apperr.ErrValidation)
	}

	if err := localstate.SetJSON(ctx, m.store, localstate.KeyUserSession, s); err != nil {
		return Session{}, err
	}
	if err := localstate.SetJSON(ctx, m.store, localstate.KeyUserID, userID); err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	m.current = s
	hooks := append([]LoginHook(nil), m.hooks...)
	m.mu.Unlock()

	mylog.Info("Session established", "user_id", userID, "expires_at", expiresAt)

	var errs []error
	for _, hook := range hooks {
		if err := hook(ctx, s); err != nil {
			mylog.Error("Login hook failed", err)
			errs = append(errs, err)
		}
	}
	return s, errors.Join(errs...)
}

func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.current = Session{}
	m.mu.Unlock()

	if err := m.store.Delete(ctx, localstate.KeyUserSession, localstate.KeyUserID); err != nil {
		return err
	}
	m.mylog.Action("session_logout").Info("Session cleared")
	return nil
}

// TokenExpiry reads the exp claim without verifying the signature; the backend
// verifies tokens, the client only needs to know when to stop using one.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse session token: %w: %w", apperr.ErrValidation, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("session token has no expiry: %w", apperr.ErrValidation)
	}
	return exp.Time, nil
}
