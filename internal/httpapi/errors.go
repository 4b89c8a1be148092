package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/skillhub/pkg/changerequest"
	"github.com/dmitrymomot/skillhub/pkg/notifications"
)

// HTTPError is an error with a status code and a stable machine-readable key.
type HTTPError struct {
	Code int
	Key  string
}

func (e HTTPError) Error() string {
	return e.Key
}

var (
	ErrBadRequest          = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized        = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrForbidden           = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound            = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrConflict            = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrTooManyRequests     = HTTPError{Code: http.StatusTooManyRequests, Key: "too_many_requests"}
	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_server_error"}
)

// classify maps a domain error onto the status and key sent to the client.
// The message is the domain error text, except for internal errors whose
// text never leaves the process.
func classify(err error) (int, ErrorDetail) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, ErrorDetail{Code: httpErr.Key, Message: http.StatusText(httpErr.Code)}
	}

	switch kind := changerequest.Kind(err); kind {
	case changerequest.KindNotFound:
		return http.StatusNotFound, ErrorDetail{Code: kind.String(), Message: err.Error()}
	case changerequest.KindForbidden:
		return http.StatusForbidden, ErrorDetail{Code: kind.String(), Message: err.Error()}
	case changerequest.KindInvalidState:
		return http.StatusConflict, ErrorDetail{Code: kind.String(), Message: err.Error()}
	case changerequest.KindInvalidInput:
		return http.StatusBadRequest, ErrorDetail{Code: kind.String(), Message: err.Error()}
	}

	if errors.Is(err, notifications.ErrUnknownEventType) {
		return http.StatusBadRequest, ErrorDetail{Code: "unknown_event_type", Message: err.Error()}
	}

	return http.StatusInternalServerError, ErrorDetail{
		Code:    ErrInternalServerError.Key,
		Message: http.StatusText(http.StatusInternalServerError),
	}
}
