package httpapi

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/auth"
	"github.com/hostvault/hostvault/internal/server/owner"
)

type OwnerHandler struct {
	owner       *owner.Service
	jwtSecret   []byte
	jwtValidity time.Duration
	logger      logging.Logger
}

func NewOwnerHandler(service *owner.Service, jwtSecret []byte, jwtValidity time.Duration, logger logging.Logger) *OwnerHandler {
	return &OwnerHandler{
		owner:       service,
		jwtSecret:   jwtSecret,
		jwtValidity: jwtValidity,
		logger:      logger.With("module", "httpapi.owner"),
	}
}

type passphraseRequest struct {
	Passphrase string `json:"passphrase" binding:"required"`
}

type sessionResponse struct {
	Token string `json:"token"`
	// MasterKey is handed to the owner console once per unlock. It is
	// never persisted server-side; subsequent requests echo it back in
	// the master key header.
	MasterKey string `json:"master_key"`
}

// Provision sets up the tenant profile on first run. It refuses to run
// twice; reprovisioning would orphan every wrapped key.
func (h *OwnerHandler) Provision(c *gin.Context) {
	var req passphraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "passphrase required"})
		return
	}

	masterKey, err := h.owner.Provision(c.Request.Context(), []byte(req.Passphrase))
	if err != nil {
		fail(c, err)
		return
	}
	defer masterKey.Wipe()

	h.respondSession(c, &masterKey)
}

// Login verifies the passphrase against the stored verifier and opens an
// owner session.
func (h *OwnerHandler) Login(c *gin.Context) {
	var req passphraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "passphrase required"})
		return
	}

	masterKey, err := h.owner.Unlock(c.Request.Context(), []byte(req.Passphrase))
	if err != nil {
		h.logger.Warn(c.Request.Context(), "owner login rejected")
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid passphrase"})
		return
	}
	defer masterKey.Wipe()

	h.respondSession(c, &masterKey)
}

func (h *OwnerHandler) respondSession(c *gin.Context, masterKey *cryptox.SensitiveBytes) {
	token, err := auth.GenerateOwnerToken(h.jwtSecret, h.jwtValidity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		Token:     token,
		MasterKey: base64.StdEncoding.EncodeToString(masterKey.Bytes()),
	})
}
