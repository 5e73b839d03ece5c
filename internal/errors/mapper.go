package errors

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Map converts domain/repo/infra errors into an HTTP status code and a public
// message. Keeps handlers clean by centralizing error mapping.
func Map(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var vErr *ValidationError
	var sErr *StorageError
	var tErr *TransportError

	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return http.StatusUnauthorized, ErrAuthenticationRequired.Error()

	case errors.Is(err, ErrSelfInteraction):
		return http.StatusBadRequest, ErrSelfInteraction.Error()

	case errors.Is(err, ErrBlockedInteraction):
		return http.StatusForbidden, ErrBlockedInteraction.Error()

	case errors.Is(err, ErrNotMatched):
		return http.StatusForbidden, ErrNotMatched.Error()

	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Error()

	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "record not found"

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"

	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "request was canceled"

	case errors.As(err, &sErr):
		return http.StatusInternalServerError, "storage failure"

	case errors.As(err, &tErr):
		return http.StatusBadGateway, "chat transport failure"

	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// JSON writes the mapped error response on the gin context.
func JSON(c *gin.Context, err error) {
	status, msg := Map(err)
	c.JSON(status, gin.H{"error": msg})
}
