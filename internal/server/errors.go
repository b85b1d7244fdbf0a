package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	orderdomain "github.com/smallbiznis/bookpay/internal/order/domain"
	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
	"github.com/smallbiznis/bookpay/internal/verify"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`

	// CurrentStatus is set for invalid-state failures so the client can
	// tell "not yet verified" from "rejected" or "expired".
	CurrentStatus string `json:"current_status,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

// ErrorHandlingMiddleware maps the last handler error to a JSON response.
// Handlers push errors with AbortWithError and never write failure bodies
// themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var stateErr *orderdomain.InvalidStateError
	if errors.As(err, &stateErr) {
		return http.StatusBadRequest, errorPayload{
			Type:          "invalid_state",
			Message:       stateErr.Error(),
			CurrentStatus: stateErr.Status,
		}
	}

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, verify.ErrChannelDisabled):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "verification channel disabled",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, sessiondomain.ErrMissingName),
		errors.Is(err, sessiondomain.ErrMissingPhone),
		errors.Is(err, sessiondomain.ErrMissingAddress),
		errors.Is(err, sessiondomain.ErrInvalidPricing),
		errors.Is(err, sessiondomain.ErrInvalidTarget),
		errors.Is(err, sessiondomain.ErrInvalidPageToken),
		errors.Is(err, orderdomain.ErrInvalidDeliveryStatus),
		errors.Is(err, verify.ErrUnknownAction),
		errors.Is(err, verify.ErrMalformedPush),
		errors.Is(err, verify.ErrPushNotAccepted):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, sessiondomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
