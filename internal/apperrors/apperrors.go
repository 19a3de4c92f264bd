// Package apperrors defines the error kinds surfaced by the ad generation pipeline.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is a stable machine-readable error code.
type Kind string

const (
	KindConfigUnavailable Kind = "CONFIG_UNAVAILABLE"
	KindAPIKeyMissing     Kind = "API_KEY_MISSING"
	KindNetwork           Kind = "NETWORK_ERROR"
	KindAPI               Kind = "API_ERROR"
	KindMalformedResponse Kind = "MALFORMED_RESPONSE"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindUnauthenticated   Kind = "UNAUTHENTICATED"
	KindLimitReached      Kind = "LIMIT_REACHED"
	KindBusy              Kind = "BUSY"
	KindPaymentInvalid    Kind = "PAYMENT_INVALID"
	KindNotFound          Kind = "NOT_FOUND"
	KindInternal          Kind = "INTERNAL"
)

// Error is the single error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	// Status is the upstream HTTP status for KindAPI.
	Status int
	// Body is a truncated upstream response body for KindAPI.
	Body string
	// Field names the offending input for KindValidation.
	Field string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, apperrors.ErrLimitReached).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrConfigUnavailable = &Error{Kind: KindConfigUnavailable}
	ErrAPIKeyMissing     = &Error{Kind: KindAPIKeyMissing}
	ErrNetwork           = &Error{Kind: KindNetwork}
	ErrAPI               = &Error{Kind: KindAPI}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrLimitReached      = &Error{Kind: KindLimitReached}
	ErrBusy              = &Error{Kind: KindBusy}
	ErrPaymentInvalid    = &Error{Kind: KindPaymentInvalid}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInternal          = &Error{Kind: KindInternal}
)

const maxBodyLen = 512

func ConfigUnavailable(err error) *Error {
	return &Error{Kind: KindConfigUnavailable, Message: "runtime configuration was not delivered", Err: err}
}

func APIKeyMissing(name string) *Error {
	return &Error{Kind: KindAPIKeyMissing, Message: name + " is missing or too short"}
}

func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Message: "request failed", Err: err}
}

func API(status int, body string) *Error {
	body = strings.TrimSpace(body)
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen]
	}
	return &Error{Kind: KindAPI, Message: "upstream returned an error", Status: status, Body: body}
}

func MalformedResponse(details string) *Error {
	return &Error{Kind: KindMalformedResponse, Message: details}
}

func Validation(field string) *Error {
	return &Error{Kind: KindValidation, Message: "required field is empty", Field: field}
}

func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "sign in required"}
}

func LimitReached(used, limit int) *Error {
	return &Error{Kind: KindLimitReached, Message: fmt.Sprintf("free plan limit reached (%d/%d)", used, limit)}
}

func Busy() *Error {
	return &Error{Kind: KindBusy, Message: "a generation is already in progress"}
}

func PaymentInvalid(details string) *Error {
	return &Error{Kind: KindPaymentInvalid, Message: details}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "failed to generate ad", Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns err as *Error, wrapping foreign errors as KindInternal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// UserMessage turns err into text fit for an end user.
func UserMessage(err error) string {
	e := As(err)
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindValidation:
		return fmt.Sprintf("Please fill in the %s field.", e.Field)
	case KindAPIKeyMissing, KindConfigUnavailable:
		return "The generator is not configured correctly. Please contact support."
	case KindNetwork, KindAPI, KindMalformedResponse:
		return "The AI service is unavailable right now. Please try again."
	case KindUnauthenticated:
		return "Please sign in to generate ads."
	case KindLimitReached:
		return "You have used all free generations. Upgrade to premium to continue."
	case KindBusy:
		return "Your previous ad is still being generated."
	case KindPaymentInvalid:
		return "Payment could not be verified."
	case KindNotFound:
		return "Not found."
	default:
		return "Failed to generate ad. Please try again."
	}
}

// HTTPStatus maps err to the status code used by the web surface.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindLimitReached:
		return http.StatusPaymentRequired
	case KindBusy:
		return http.StatusConflict
	case KindPaymentInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNetwork, KindAPI, KindMalformedResponse:
		return http.StatusBadGateway
	case KindAPIKeyMissing, KindConfigUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
