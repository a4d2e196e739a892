// Package apperror defines the typed failures shared by the purchase pipeline
// and their mapping onto HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindAuthenticity Kind = "authenticity"
	KindConsistency  Kind = "consistency"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindCollaborator Kind = "collaborator"
	KindInternal     Kind = "internal"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrArtistNotFound    = errors.New("artist not found")
	ErrTicketInactive    = errors.New("ticket is not on sale")
	ErrSoldOut           = errors.New("ticket sold out")
	ErrCheckoutInFlight  = errors.New("checkout already in progress")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrInvalidToken      = errors.New("invalid access token")
	ErrTokenExpired      = fmt.Errorf("%w: token expired", ErrInvalidToken)
	ErrUnauthenticated   = errors.New("authentication required")
	ErrPurchaseNotFound  = errors.New("purchase not found")
	ErrRevoked           = errors.New("purchase is no longer valid")
	ErrExpired           = errors.New("access has expired")
	ErrWrongEvent        = errors.New("ticket is for a different event")
	ErrStreamUnavailable = errors.New("stream is not available")
	ErrInvalidTransition = errors.New("invalid purchase transition")
	ErrPaymentProvider   = errors.New("payment provider unavailable")
)

// Error carries a kind and a public message alongside the wrapped cause.
// InternalError is for logs only.
type Error struct {
	Kind          Kind
	StatusCode    int
	PublicError   string
	InternalError string
	Err           error
}

func (e *Error) Error() string {
	if e.InternalError != "" {
		return e.InternalError
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.PublicError
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap builds an *Error for err, classifying it by its sentinel.
func Wrap(err error, internal string) *Error {
	if err == nil {
		return nil
	}
	kind, status := Classify(err)
	return &Error{
		Kind:          kind,
		StatusCode:    status,
		PublicError:   PublicMessage(err),
		InternalError: fmt.Sprintf("%s: %v", internal, err),
		Err:           err,
	}
}

// Classify returns the kind and HTTP status for err.
func Classify(err error) (Kind, int) {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind, appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindValidation, http.StatusBadRequest
	case errors.Is(err, ErrInvalidSignature):
		return KindAuthenticity, http.StatusBadRequest
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnauthenticated):
		return KindAuthenticity, http.StatusUnauthorized
	case errors.Is(err, ErrExpired):
		return KindAuthenticity, http.StatusUnauthorized
	case errors.Is(err, ErrRevoked), errors.Is(err, ErrWrongEvent):
		return KindForbidden, http.StatusForbidden
	case errors.Is(err, ErrTicketNotFound), errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrArtistNotFound), errors.Is(err, ErrPurchaseNotFound),
		errors.Is(err, ErrStreamUnavailable):
		return KindNotFound, http.StatusNotFound
	case errors.Is(err, ErrSoldOut), errors.Is(err, ErrTicketInactive), errors.Is(err, ErrCheckoutInFlight):
		return KindConflict, http.StatusConflict
	case errors.Is(err, ErrInvalidTransition):
		return KindConsistency, http.StatusConflict
	case errors.Is(err, ErrPaymentProvider):
		return KindCollaborator, http.StatusBadGateway
	default:
		return KindInternal, http.StatusInternalServerError
	}
}

// StatusCode is a shorthand for the status half of Classify.
func StatusCode(err error) int {
	_, status := Classify(err)
	return status
}

// PublicMessage returns text safe to show to a client.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.PublicError != "" {
		return appErr.PublicError
	}
	// validation messages name the offending field and carry no internals
	if errors.Is(err, ErrInvalidInput) {
		return err.Error()
	}

	for _, sentinel := range []error{
		ErrInvalidSignature, ErrTokenExpired, ErrInvalidToken,
		ErrUnauthenticated, ErrExpired, ErrRevoked, ErrWrongEvent,
		ErrTicketNotFound, ErrEventNotFound, ErrArtistNotFound, ErrPurchaseNotFound,
		ErrStreamUnavailable, ErrSoldOut, ErrTicketInactive, ErrCheckoutInFlight,
		ErrInvalidTransition, ErrPaymentProvider,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal server error"
}

// Retryable reports whether the caller may retry the same request later.
func Retryable(err error) bool {
	kind, _ := Classify(err)
	return kind == KindCollaborator || kind == KindInternal
}
