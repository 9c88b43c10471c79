package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	ingestdomain "github.com/smallbiznis/orderlake/internal/ingest/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrInternal       = errors.New("internal_error")
)

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
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ingestdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "invalid webhook signature",
		}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ingestdomain.ErrInvalidPayload):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "invalid order payload",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ingestdomain.ErrWriteFailed):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "warehouse write failed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds low-cardinality error labels to the request
// logger without exposing raw error strings.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case errors.Is(err, ingestdomain.ErrInvalidSignature):
		return "unauthorized", "invalid_signature"
	case errors.Is(err, ingestdomain.ErrInvalidPayload):
		return "validation_error", "invalid_payload"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited", "rate_limited"
	case errors.Is(err, ingestdomain.ErrWriteFailed):
		return "internal_error", "warehouse_write_failed"
	default:
		return "internal_error", "internal_error"
	}
}
