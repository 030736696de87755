package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{NotFound("challenge"), http.StatusNotFound},
		{fmt.Errorf("claim: %w", ErrDuplicateClaim), http.StatusConflict},
		{Invalid("period", "unknown period %q", "yearly"), http.StatusBadRequest},
		{Upstream("fcm", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("listing: %w", Invalid("limit", "must be between 1 and 100"))

	assert.True(t, errors.Is(err, ErrValidation))

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "limit", ve.Field)
	assert.Equal(t, "limit: must be between 1 and 100", PublicMessage(err))
}

func TestPublicMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "internal server error", PublicMessage(errors.New("pq: relation missing")))
	assert.Equal(t, "service temporarily unavailable", PublicMessage(Upstream("openai", errors.New("secret detail"))))
	assert.Equal(t, "challenge not found", PublicMessage(NotFound("challenge")))
}
