package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"bakery-storefront/internal/localstate"
	"bakery-storefront/internal/xpkg/logger"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, userID string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userID": userID,
		"exp":    exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestEstablish_ExpiryFromToken(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := localstate.NewMemory()
	m := NewManager(store, logger.Discard())
	m.SetClock(func() time.Time { return now })

	var hooked []string
	m.OnLogin(func(_ context.Context, s Session) error {
		hooked = append(hooked, s.UserID)
		return nil
	})

	token := signToken(t, "u-7", now.Add(2*time.Hour))
	s, err := m.Establish(context.Background(), "u-7", token, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, now.Add(2*time.Hour).Unix(), s.ExpiresAt.Unix())
	assert.Equal(t, []string{"u-7"}, hooked)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "u-7", cur.UserID)
	assert.Equal(t, token, m.Token())

	var uid string
	ok, err = localstate.GetJSON(context.Background(), store, localstate.KeyUserID, &uid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u-7", uid)
}

func TestCurrent_ExpiresWithClock(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(localstate.NewMemory(), logger.Discard())
	m.SetClock(func() time.Time { return now })

	_, err := m.Establish(context.Background(), "u-1", "opaque", now.Add(time.Minute))
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, ok := m.Current()
	assert.False(t, ok, "session must be invalid once now reaches expiry")
	assert.Empty(t, m.Token())
}

func TestLoad_RestoresPersistedSession(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := localstate.NewMemory()
	first := NewManager(store, logger.Discard())
	first.SetClock(func() time.Time { return now })
	_, err := first.Establish(context.Background(), "u-3", "opaque", now.Add(time.Hour))
	require.NoError(t, err)

	second := NewManager(store, logger.Discard())
	second.SetClock(func() time.Time { return now })
	require.NoError(t, second.Load(context.Background()))
	s, ok := second.Current()
	require.True(t, ok)
	assert.Equal(t, "u-3", s.UserID)
}

func TestEstablish_Rejects(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(localstate.NewMemory(), logger.Discard())
	m.SetClock(func() time.Time { return now })

	_, err := m.Establish(context.Background(), "", "x", now.Add(time.Hour))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = m.Establish(context.Background(), "u", "not-a-jwt", time.Time{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = m.Establish(context.Background(), "u", "x", now.Add(-time.Second))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestEstablish_HookFailureKeepsSession(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(localstate.NewMemory(), logger.Discard())
	m.SetClock(func() time.Time { return now })
	boom := errors.New("merge failed")
	m.OnLogin(func(context.Context, Session) error { return boom })

	_, err := m.Establish(context.Background(), "u-9", "x", now.Add(time.Hour))
	assert.ErrorIs(t, err, boom)
	_, ok := m.Current()
	assert.True(t, ok)
}

func TestLogout(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := localstate.NewMemory()
	m := NewManager(store, logger.Discard())
	m.SetClock(func() time.Time { return now })
	_, err := m.Establish(context.Background(), "u-1", "x", now.Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, m.Logout(context.Background()))
	_, ok := m.Current()
	assert.False(t, ok)
	_, found, err := store.Get(context.Background(), localstate.KeyUserSession)
	require.NoError(t, err)
	assert.False(t, found)
}
