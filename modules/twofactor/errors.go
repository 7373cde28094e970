package twofactor

import (
	"errors"
	"net/http"

	"github.com/campusmind/twofactor/handler"
	"github.com/campusmind/twofactor/pkg/binder"
	"github.com/campusmind/twofactor/pkg/twofactor"
)

var errorTable = []struct {
	err  error
	resp handler.HTTPError
}{
	{twofactor.ErrTooManyAttempts, handler.NewHTTPError(http.StatusTooManyRequests, "too_many_attempts", "Too many verification attempts, try again later")},
	{twofactor.ErrNotSetUp, handler.NewHTTPError(http.StatusNotFound, "not_set_up", "Two-factor authentication is not set up")},
	{twofactor.ErrAlreadyEnabled, handler.NewHTTPError(http.StatusConflict, "already_enabled", "Two-factor authentication is already enabled")},
	{twofactor.ErrNotEnabled, handler.NewHTTPError(http.StatusConflict, "not_enabled", "Two-factor authentication is not enabled")},
	{twofactor.ErrInvalidCode, handler.NewHTTPError(http.StatusBadRequest, "invalid_code", "Invalid verification code")},
	{twofactor.ErrUnauthorized, handler.NewHTTPError(http.StatusUnauthorized, "unauthorized", "Verification failed")},
	{twofactor.ErrMissingIdentity, handler.NewHTTPError(http.StatusUnauthorized, "missing_identity", "Authentication required")},
	{twofactor.ErrMissingEmail, handler.NewHTTPError(http.StatusBadRequest, "missing_email", "An email address is required to set up two-factor authentication")},
	{twofactor.ErrQRRendererNotConfigured, handler.NewHTTPError(http.StatusNotImplemented, "qr_unavailable", "QR codes are not available")},
	{binder.ErrMissingContentType, handler.NewHTTPError(http.StatusBadRequest, "invalid_request", "Expected a JSON body")},
	{binder.ErrUnsupportedMediaType, handler.NewHTTPError(http.StatusBadRequest, "invalid_request", "Expected a JSON body")},
	{binder.ErrFailedToParseJSON, handler.NewHTTPError(http.StatusBadRequest, "invalid_request", "Malformed JSON body")},
	{binder.ErrBodyTooLarge, handler.NewHTTPError(http.StatusBadRequest, "invalid_request", "Request body too large")},
}

// Classify maps engine and binding errors to HTTP errors for
// handler.NewErrorHandler. Store failures stay unclassified and become 500.
func Classify(err error) (handler.HTTPError, bool) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.resp, true
		}
	}
	return handler.HTTPError{}, false
}
