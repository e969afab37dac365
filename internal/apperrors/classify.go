package apperrors

import (
	"net/http"
	"strings"
)

// FromStatus classifies a vendor failure by its HTTP status code
func FromStatus(status int, cause error) error {
	if cause == nil {
		return nil
	}
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return Authentication(cause)
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return Transient(cause)
	case status == http.StatusBadRequest,
		status == http.StatusRequestEntityTooLarge,
		status == http.StatusUnsupportedMediaType,
		status == http.StatusUnprocessableEntity,
		status == http.StatusNotFound:
		return InvalidInput(cause)
	}
	return Transient(cause)
}

// FromMessage classifies a vendor failure that only exposes an error string.
// Unrecognized messages are treated as transient.
func FromMessage(cause error) error {
	if cause == nil {
		return nil
	}
	if KindOf(cause) != KindUnknown {
		return cause
	}
	msg := strings.ToLower(cause.Error())
	switch {
	case containsAny(msg, "401", "403", "unauthorized", "forbidden", "invalid api key",
		"invalid credentials", "permission_denied", "unauthenticated", "api key not valid"):
		return Authentication(cause)
	case containsAny(msg, "400", "413", "415", "422", "invalid_argument", "unsupported",
		"too large", "bad request"):
		return InvalidInput(cause)
	}
	return Transient(cause)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
