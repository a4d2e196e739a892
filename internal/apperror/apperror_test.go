package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"invalid input", fmt.Errorf("%w: ticketId is required", ErrInvalidInput), KindValidation, http.StatusBadRequest},
		{"bad signature", ErrInvalidSignature, KindAuthenticity, http.StatusBadRequest},
		{"tampered token", ErrInvalidToken, KindAuthenticity, http.StatusUnauthorized},
		{"expired token", ErrTokenExpired, KindAuthenticity, http.StatusUnauthorized},
		{"expired access", ErrExpired, KindAuthenticity, http.StatusUnauthorized},
		{"refunded", ErrRevoked, KindForbidden, http.StatusForbidden},
		{"wrong event", ErrWrongEvent, KindForbidden, http.StatusForbidden},
		{"missing purchase", ErrPurchaseNotFound, KindNotFound, http.StatusNotFound},
		{"missing ticket", fmt.Errorf("load: %w", ErrTicketNotFound), KindNotFound, http.StatusNotFound},
		{"sold out", ErrSoldOut, KindConflict, http.StatusConflict},
		{"provider down", fmt.Errorf("create session: %w", ErrPaymentProvider), KindCollaborator, http.StatusBadGateway},
		{"unknown", errors.New("disk on fire"), KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, status := Classify(tt.err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestTokenExpiredIsInvalidToken(t *testing.T) {
	assert.True(t, errors.Is(ErrTokenExpired, ErrInvalidToken))
}

func TestWrap_KeepsSentinelAndHidesInternals(t *testing.T) {
	err := Wrap(fmt.Errorf("select purchases: %w", ErrPurchaseNotFound), "authorize playback")

	assert.ErrorIs(t, err, ErrPurchaseNotFound)
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "purchase not found", err.PublicError)
	assert.Contains(t, err.Error(), "select purchases")
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "internal server error", PublicMessage(errors.New("pq: connection refused")))
	assert.Equal(t, "invalid input: email is malformed", PublicMessage(fmt.Errorf("%w: email is malformed", ErrInvalidInput)))
	assert.Equal(t, "ticket sold out", PublicMessage(fmt.Errorf("ticket t-1: %w", ErrSoldOut)))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrPaymentProvider))
	assert.True(t, Retryable(errors.New("timeout")))
	assert.False(t, Retryable(ErrSoldOut))
	assert.False(t, Retryable(ErrInvalidSignature))
}
