package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"skillsync/identity"
	"skillsync/request"
	"skillsync/settle"
)

// writeError maps domain sentinels onto HTTP statuses. Anything
// unmapped is an internal error and gets logged with its cause; the
// client only sees a generic message.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, request.ErrInvalidInput),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, identity.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, identity.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, settle.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient funds"})
	case errors.Is(err, request.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
	case errors.Is(err, request.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
	case errors.Is(err, request.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": "request already claimed"})
	case errors.Is(err, request.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "request is not in a state that allows this"})
	case errors.Is(err, request.ErrRequestExists):
		c.JSON(http.StatusConflict, gin.H{"error": "you already have a live request"})
	case errors.Is(err, identity.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
	default:
		slog.ErrorContext(c.Request.Context(), "unhandled api error",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
