package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rfq-proxy-app/internal/quote"
	"rfq-proxy-app/internal/shopify"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var verr *quote.ValidationError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, shopify.ErrInvalidSignature):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)

	msg := err.Error()
	switch status {
	case http.StatusUnauthorized:
		// never leak the computed digest
		msg = "Invalid HMAC"
	case http.StatusRequestEntityTooLarge:
		msg = "Request body too large"
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("create draft order failed", "request_id", c.GetString(requestIDKey), "err", err)
	} else {
		h.log.Warn("create draft order rejected", "request_id", c.GetString(requestIDKey), "status", status, "err", err)
	}
	c.JSON(status, gin.H{"error": msg})
}
