package httpapi

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/auth"
	"github.com/hostvault/hostvault/internal/server/connections"
)

type ConnectionHandler struct {
	connections *connections.Service
	logger      logging.Logger
}

func NewConnectionHandler(service *connections.Service, logger logging.Logger) *ConnectionHandler {
	return &ConnectionHandler{connections: service, logger: logger.With("module", "httpapi.connections")}
}

type connectRequest struct {
	RemoteIdentity string    `json:"remote_identity" binding:"required"`
	TokenID        uuid.UUID `json:"token_id" binding:"required"`
	HalfKey        string    `json:"half_key" binding:"required"`
	SharedSecret   string    `json:"shared_secret" binding:"required"`
}

type connectionResponse struct {
	ID             uuid.UUID `json:"id"`
	RemoteIdentity string    `json:"remote_identity"`
	Connected      bool      `json:"connected"`
	Created        time.Time `json:"created"`
}

// Connect stores the credential a remote host issued to us, completing the
// handshake the two owners performed out of band.
func (h *ConnectionHandler) Connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid connect request"})
		return
	}

	halfKey, err := base64.StdEncoding.DecodeString(req.HalfKey)
	if err != nil || len(halfKey) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid half key"})
		return
	}
	sharedSecret, err := base64.StdEncoding.DecodeString(req.SharedSecret)
	if err != nil || len(sharedSecret) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid shared secret"})
		return
	}

	token := &auth.ClientAccessToken{
		ID:                 req.TokenID,
		AccessTokenHalfKey: cryptox.NewSensitiveBytes(halfKey),
		SharedSecret:       cryptox.NewSensitiveBytes(sharedSecret),
	}
	defer token.Wipe()

	reg, err := h.connections.Connect(c.Request.Context(), req.RemoteIdentity, token)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, connectionResponse{
		ID: reg.ID, RemoteIdentity: reg.RemoteIdentity, Connected: reg.Connected, Created: reg.Created,
	})
}

func (h *ConnectionHandler) List(c *gin.Context) {
	list, err := h.connections.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]connectionResponse, 0, len(list))
	for _, reg := range list {
		out = append(out, connectionResponse{
			ID: reg.ID, RemoteIdentity: reg.RemoteIdentity, Connected: reg.Connected, Created: reg.Created,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	identity := c.Param("identity")
	if identity == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "identity required"})
		return
	}
	if err := h.connections.Disconnect(c.Request.Context(), identity); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
