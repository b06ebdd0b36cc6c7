package imerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad input")))
	assert.Equal(t, KindPermission, KindOf(Permission("denied")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	assert.Equal(t, KindStorage, KindOf(Storage("db down", errors.New("conn refused"))))

	// unclassified errors default to storage (retryable)
	assert.Equal(t, KindStorage, KindOf(errors.New("anything")))
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", Permission("denied"))
	assert.Equal(t, KindPermission, KindOf(err))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("conn refused")
	err := Storage("db down", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "db down")
	assert.Contains(t, err.Error(), "conn refused")

	// no cause: message only
	assert.Equal(t, "missing", NotFound("missing").Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, HTTPStatus(Validation("x")))
	assert.Equal(t, 403, HTTPStatus(Permission("x")))
	assert.Equal(t, 404, HTTPStatus(NotFound("x")))
	assert.Equal(t, 500, HTTPStatus(Storage("x", nil)))
	assert.Equal(t, 500, HTTPStatus(errors.New("x")))
}
