package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))

	err := Wrap(ErrSessionExpired, "refresh access token")
	assert.EqualError(t, err, "refresh access token: session expired")
	assert.True(t, Is(err, ErrSessionExpired))
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.False(t, Is(err, ErrNotFound))
}
