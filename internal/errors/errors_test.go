package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customError struct {
	Msg string
}

func (e customError) Error() string { return e.Msg }

func TestWrap(t *testing.T) {
	t.Run("wrap non-nil error", func(t *testing.T) {
		wrapped := Wrap(ErrConflict, "consent version mismatch")
		require.Error(t, wrapped)
		assert.Equal(t, "consent version mismatch: conflict", wrapped.Error())
		assert.True(t, Is(wrapped, ErrConflict))
	})

	t.Run("wrap nil error", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "ignored"))
	})
}

func TestAs(t *testing.T) {
	wrapped := Wrap(customError{Msg: "boom"}, "context")

	var target customError
	require.True(t, As(wrapped, &target))
	assert.Equal(t, "boom", target.Msg)
}

func TestJoin(t *testing.T) {
	joined := Join(ErrNotFound, nil, ErrForbidden)
	assert.True(t, errors.Is(joined, ErrNotFound))
	assert.True(t, errors.Is(joined, ErrForbidden))
	assert.NoError(t, Join(nil, nil))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrConflict, ErrInvalidInput, ErrUnauthorized, ErrForbidden}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}
