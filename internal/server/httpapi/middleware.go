package httpapi

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/server/auth"
	"github.com/hostvault/hostvault/internal/server/permissions"
)

const (
	ctxKeyPermissions = "permissionContext"
	ctxKeyMasterKey   = "masterKey"
)

// ownerAuth guards owner console endpoints with the session JWT.
func ownerAuth(jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.OwnerTokenHeaderName)
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}
		if err := auth.ValidateOwnerToken(parts[1], jwtSecret); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid session"})
			return
		}
		c.Next()
	}
}

// clientAuth resolves the client authentication token into a permission
// context scoped to this request. The context is closed, and with it every
// unwrapped key wiped, as soon as the handler chain returns.
func clientAuth(resolver *permissions.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.TryParseAuthToken(c.GetHeader(common.ClientAuthTokenHeaderName))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}
		defer token.Wipe()

		permCtx, err := resolver.Resolve(c.Request.Context(), &token)
		if err != nil {
			fail(c, err)
			return
		}
		defer permCtx.Close()

		c.Set(ctxKeyPermissions, permCtx)
		c.Next()
	}
}

// masterKey pulls the per-request master key out of its header. The key
// only ever lives in this request's scope and is wiped on the way out.
func masterKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := base64.StdEncoding.DecodeString(c.GetHeader(common.MasterKeyHeaderName))
		if err != nil || len(raw) == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "master key required"})
			return
		}
		key := cryptox.NewSensitiveBytes(raw)
		defer key.Wipe()

		c.Set(ctxKeyMasterKey, &key)
		c.Next()
	}
}

func permissionsFrom(c *gin.Context) *permissions.Context {
	return c.MustGet(ctxKeyPermissions).(*permissions.Context)
}

func masterKeyFrom(c *gin.Context) *cryptox.SensitiveBytes {
	return c.MustGet(ctxKeyMasterKey).(*cryptox.SensitiveBytes)
}
