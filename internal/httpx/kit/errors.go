package kit

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"player-ticket-gateway/internal/apperr"
	"player-ticket-gateway/internal/logx"
)

var kitLogger = logx.GetScope("httpx")

// APIError is a structured application error with code and message.
type APIError struct {
	HTTPStatus int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

func NewAPIError(httpStatus int, code, msg string, details interface{}) *APIError {
	return &APIError{HTTPStatus: httpStatus, Code: code, Message: msg, Details: details}
}

// Common helpers
func BadRequest(msg string, details interface{}) error {
	return NewAPIError(http.StatusBadRequest, "E_INVALID_PARAM", msg, details)
}
func NotFound(msg string) error { return NewAPIError(http.StatusNotFound, "E_NOT_FOUND", msg, nil) }
func Conflict(code, msg string, details interface{}) error {
	return NewAPIError(http.StatusConflict, code, msg, details)
}
func InternalError(msg string, details interface{}) error {
	return NewAPIError(http.StatusInternalServerError, "E_INTERNAL", msg, details)
}

// StatusOf maps an error code to its HTTP status.
func StatusOf(code apperr.Code) int {
	switch code {
	case apperr.NoCredentials, apperr.MissingFields:
		return http.StatusBadRequest
	case apperr.ReplayDetected:
		return http.StatusConflict
	case apperr.TicketLookupTimeout:
		return http.StatusGatewayTimeout
	case apperr.Internal, "":
		return http.StatusInternalServerError
	}
	if apperr.IsAuth(code) {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// ErrorHandler returns a Fiber error handler that emits the failure envelope.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// Fiber error
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return Fail(c, fe.Code, httpStatusToCode(fe.Code), fe.Message, nil)
		}

		// Application error
		var ae *APIError
		if errors.As(err, &ae) {
			return Fail(c, ae.HTTPStatus, ae.Code, ae.Message, ae.Details)
		}

		// Domain error
		var de *apperr.Error
		if errors.As(err, &de) {
			status := StatusOf(de.Code)
			if status >= http.StatusInternalServerError {
				kitLogger.Sugar().Errorw("request failed", "code", de.Code, "err", err, "request_id", RequestID(c))
				if de.Code == apperr.Internal {
					return Fail(c, status, string(apperr.Internal), "Internal Server Error", nil)
				}
			}
			return Fail(c, status, string(de.Code), de.Message, de.Details)
		}

		// Fallback
		kitLogger.Sugar().Errorw("unhandled error", "err", err, "request_id", RequestID(c))
		return Fail(c, http.StatusInternalServerError, string(apperr.Internal), "Internal Server Error", nil)
	}
}

func httpStatusToCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "E_INVALID_PARAM"
	case http.StatusNotFound:
		return "E_NOT_FOUND"
	case http.StatusUnauthorized:
		return "E_UNAUTHORIZED"
	case http.StatusForbidden:
		return "E_FORBIDDEN"
	case http.StatusTooManyRequests:
		return "E_RATE_LIMITED"
	case http.StatusUpgradeRequired:
		return "E_UPGRADE_REQUIRED"
	default:
		if status >= 500 {
			return "E_INTERNAL"
		}
		return "E_UNKNOWN"
	}
}
