// Package httpapi is the gin HTTP surface: the perimeter endpoints remote
// hosts and token holders call, and the owner console endpoints guarded by
// the owner session token.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hostvault/hostvault/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

// fail maps domain sentinels onto HTTP statuses. Token and unwrap failures
// collapse into one generic 401 so callers cannot probe which stage failed.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrAccessRevoked),
		errors.Is(err, common.ErrGrantRevoked),
		errors.Is(err, common.ErrKeyUnwrapFailed):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid token"})
	case errors.Is(err, common.ErrPermissionDenied),
		errors.Is(err, common.ErrMasterKeyMismatch),
		errors.Is(err, common.ErrDriveNotGranted):
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, common.ErrMasterKeyRequired),
		errors.Is(err, common.ErrInvalidData),
		errors.Is(err, common.ErrDuplicateID):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
