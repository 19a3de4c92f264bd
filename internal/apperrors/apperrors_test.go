package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", LimitReached(4, 4))

	assert.True(t, errors.Is(err, ErrLimitReached))
	assert.False(t, errors.Is(err, ErrBusy))
	assert.Equal(t, KindLimitReached, KindOf(err))
}

func TestValidationCarriesField(t *testing.T) {
	err := Validation("productDescription")

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "productDescription", e.Field)
	assert.Contains(t, err.Error(), "productDescription")
	assert.Equal(t, "Please fill in the productDescription field.", UserMessage(err))
}

func TestAPITruncatesBody(t *testing.T) {
	err := API(500, strings.Repeat("x", 2000))

	assert.Equal(t, 500, err.Status)
	assert.Len(t, err.Body, maxBodyLen)
}

func TestForeignErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Failed to generate ad. Please try again.", UserMessage(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.True(t, errors.Is(As(err), ErrInternal))
	assert.Nil(t, As(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("productName"), http.StatusBadRequest},
		{Unauthenticated(), http.StatusUnauthorized},
		{LimitReached(4, 4), http.StatusPaymentRequired},
		{Busy(), http.StatusConflict},
		{Network(errors.New("dial")), http.StatusBadGateway},
		{API(429, ""), http.StatusBadGateway},
		{APIKeyMissing("TEXT_API_KEY"), http.StatusServiceUnavailable},
		{ConfigUnavailable(nil), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}
