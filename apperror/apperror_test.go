package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewUnauthorizedError("Unauthorized", nil), http.StatusUnauthorized},
		{NewNotFoundError("User not found", nil), http.StatusNotFound},
		{NewBadRequestError("Wrong password", nil), http.StatusBadRequest},
		{NewValidationError("email is required", nil), http.StatusBadRequest},
		{NewUnprocessableError("Invalid image type", nil), http.StatusUnprocessableEntity},
		{NewDatabaseError("db", nil), http.StatusInternalServerError},
		{NewInternalError("boom", nil), http.StatusInternalServerError},
		{NewMigrationError("migrate", nil), http.StatusInternalServerError},
		{New(UnknownError, "?", nil), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.err.StatusCode(), tc.err.Message)
	}
}

func TestToResponse_HidesServerErrors(t *testing.T) {
	err := NewDatabaseError("failed to query users table", errors.New("connection reset"))
	assert.Equal(t, InternalMessage, err.ToResponse().Msg)

	clientErr := NewNotFoundError("User not found", nil)
	assert.Equal(t, "User not found", clientErr.ToResponse().Msg)
}

func TestFromError_Wrapped(t *testing.T) {
	base := NewNotFoundError("Username already exists", nil)
	wrapped := fmt.Errorf("register: %w", base)

	ae, ok := FromError(wrapped)
	require.True(t, ok)
	assert.Same(t, base, ae)
	assert.True(t, Is(wrapped, NotFoundError))
	assert.False(t, Is(wrapped, UnauthorizedError))

	_, ok = FromError(errors.New("plain"))
	assert.False(t, ok)

	_, ok = FromError(nil)
	assert.False(t, ok)
}

func TestError_IncludesCause(t *testing.T) {
	err := NewInternalError("hash password", errors.New("cost out of range"))
	assert.Equal(t, "hash password: cost out of range", err.Error())
	assert.ErrorContains(t, err, "cost out of range")
	assert.True(t, errors.Is(err, err.Err))
}
