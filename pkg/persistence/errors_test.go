package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateErrorWrapping(t *testing.T) {
	t.Parallel()

	err := NewStateError("StateByThread", "thread-1", ErrStateNotFound)

	assert.ErrorIs(t, err, ErrStateNotFound)
	assert.Contains(t, err.Error(), "StateByThread")
	assert.Contains(t, err.Error(), "thread-1")
}

func TestStateErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("disk full")
	err := NewStateError("SaveState", "thread-1", inner)

	assert.Equal(t, inner, errors.Unwrap(err))
}
