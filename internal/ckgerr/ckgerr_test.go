package ckgerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_WrapsKindAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := New(Backend, "store.save", cause)

	assert.True(t, Is(err, Backend))
	assert.False(t, Is(err, NotFound))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, Backend, KindOf(err))
}

func TestNewf_FormatsCause(t *testing.T) {
	err := Newf(InvalidInput, "registry.create", "dimension %d out of range", 8192)
	assert.True(t, Is(err, InvalidInput))
	assert.Contains(t, err.Error(), "8192")
}

func TestKindOf_UnknownErrorReturnsEmpty(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
