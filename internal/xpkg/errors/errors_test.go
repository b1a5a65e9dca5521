package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"auth", fmt.Errorf("add cart item: %w", ErrAuthRequired), "Please log in to continue."},
		{"cancel", ErrCancellationNotAllowed, "This order can no longer be cancelled."},
		{"not found", fmt.Errorf("product 7: %w", ErrNotFound), "We couldn't find that. Try again."},
		{"validation", ErrValidation, "Please check your selection and try again."},
		{"network", fmt.Errorf("get orders: %w", ErrNetwork), "Connection problem. Try again."},
		{"other", errors.New("boom"), "Something went wrong. Try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
