package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		Validation:     400,
		Authentication: 401,
		Forbidden:      403,
		NotFound:       404,
		Internal:       500,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.HTTPStatus(), "kind %s", kind)
	}
}

func TestKindWSCode(t *testing.T) {
	cases := map[Kind]string{
		Validation:     "INVALID_PAYLOAD",
		Authentication: "NOT_AUTHENTICATED",
		Forbidden:      "SEND_FAILED",
		NotFound:       "NOT_FOUND",
		Internal:       "SEND_FAILED",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.WSCode(), "kind %s", kind)
	}
}

func TestConstructors(t *testing.T) {
	err := Validationf("BAD_INPUT", "field %s is required", "email")
	assert.Equal(t, Validation, err.Kind)
	assert.Equal(t, "BAD_INPUT", err.Code)
	assert.Equal(t, "field email is required", err.Message)

	assert.Equal(t, NotFound, NotFoundf("X", "missing").Kind)
	assert.Equal(t, Forbidden, Forbiddenf("X", "nope").Kind)
	assert.Equal(t, Authentication, Authf("X", "nope").Kind)
}

func TestInternalfHidesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internalf(cause, "load user")

	assert.Equal(t, Internal, err.Kind)
	assert.Equal(t, "an unexpected error occurred", err.Message, "client-facing message must not leak the cause")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "load user")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAs(t *testing.T) {
	wrapped := Validationf("X", "bad")
	extracted, ok := As(wrapped)
	assert.True(t, ok)
	assert.Same(t, wrapped, extracted)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
