package notify

import (
	"bytes"
	"fmt"
	"testing"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	Info(c, "Added to wishlist")
	Failure(c, "", fmt.Errorf("add: %w", apperr.ErrNetwork))
	Failure(c, "Failed to cancel. Try again.", apperr.ErrNetwork)

	assert.Equal(t, "* Added to wishlist\n! Connection problem. Try again.\n! Failed to cancel. Try again.\n", buf.String())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	_, ok := r.Last()
	assert.False(t, ok)

	Info(r, "one")
	Failure(r, "two", nil)
	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, Notice{Level: LevelError, Message: "two"}, last)
	assert.Len(t, r.Notices(), 2)

	Info(nil, "ignored")
}
