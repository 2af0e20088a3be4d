package httpapi

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/drives"
	"github.com/hostvault/hostvault/internal/server/grants"
	"github.com/hostvault/hostvault/internal/server/registrations"
)

// GrantHandler covers the owner-side key hierarchy: drives, exchange
// grants and the access tokens minted against them. Every operation that
// touches wrapped keys requires the master key header.
type GrantHandler struct {
	drives        *drives.Service
	grants        *grants.Service
	registrations *registrations.Service
	logger        logging.Logger
}

func NewGrantHandler(d *drives.Service, g *grants.Service, r *registrations.Service, logger logging.Logger) *GrantHandler {
	return &GrantHandler{
		drives:        d,
		grants:        g,
		registrations: r,
		logger:        logger.With("module", "httpapi.grants"),
	}
}

type createDriveRequest struct {
	Name string `json:"name" binding:"required"`
}

type driveResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

func (h *GrantHandler) CreateDrive(c *gin.Context) {
	var req createDriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "name required"})
		return
	}

	drive, err := h.drives.CreateDrive(c.Request.Context(), masterKeyFrom(c), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, driveResponse{ID: drive.ID, Name: drive.Name, Created: drive.Created})
}

func (h *GrantHandler) ListDrives(c *gin.Context) {
	list, err := h.drives.ListDrives(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]driveResponse, 0, len(list))
	for _, d := range list {
		out = append(out, driveResponse{ID: d.ID, Name: d.Name, Created: d.Created})
	}
	c.JSON(http.StatusOK, out)
}

type createGrantRequest struct {
	GranteeType   string      `json:"grantee_type" binding:"required"`
	Grantee       string      `json:"grantee" binding:"required"`
	DriveIDs      []uuid.UUID `json:"drive_ids" binding:"required"`
	PermissionSet uint8       `json:"permission_set"`
}

type grantResponse struct {
	ID            uuid.UUID   `json:"id"`
	GranteeType   string      `json:"grantee_type"`
	Grantee       string      `json:"grantee"`
	PermissionSet uint8       `json:"permission_set"`
	IsRevoked     bool        `json:"is_revoked"`
	DriveIDs      []uuid.UUID `json:"drive_ids"`
	Created       time.Time   `json:"created"`
}

func toGrantResponse(g *grants.ExchangeGrant) grantResponse {
	driveIDs := make([]uuid.UUID, 0, len(g.DriveGrants))
	for _, dg := range g.DriveGrants {
		driveIDs = append(driveIDs, dg.DriveID)
	}
	return grantResponse{
		ID:            g.ID,
		GranteeType:   string(g.GranteeType),
		Grantee:       g.Grantee,
		PermissionSet: uint8(g.PermissionSet),
		IsRevoked:     g.IsRevoked,
		DriveIDs:      driveIDs,
		Created:       g.Created,
	}
}

func (h *GrantHandler) CreateGrant(c *gin.Context) {
	var req createGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid grant request"})
		return
	}

	grant, err := h.grants.CreateGrant(c.Request.Context(), masterKeyFrom(c),
		grants.GranteeType(req.GranteeType), req.Grantee, req.DriveIDs,
		grants.Permission(req.PermissionSet))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toGrantResponse(grant))
}

func (h *GrantHandler) ListGrants(c *gin.Context) {
	list, err := h.grants.ListGrants(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]grantResponse, 0, len(list))
	for _, g := range list {
		out = append(out, toGrantResponse(g))
	}
	c.JSON(http.StatusOK, out)
}

func (h *GrantHandler) RevokeGrant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	if err := h.grants.Revoke(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type issuedTokenResponse struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	// AuthToken is the one-shot bearer credential. It is shown exactly
	// once; the server keeps only the XOR counterpart of its half key.
	AuthToken    string `json:"auth_token"`
	SharedSecret string `json:"shared_secret"`
}

// IssueToken mints an access registration under a grant. The grant key is
// unwrapped with the request's master key, used, and wiped before
// responding.
func (h *GrantHandler) IssueToken(c *gin.Context) {
	grantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}

	grant, err := h.grants.GetGrant(c.Request.Context(), grantID)
	if err != nil {
		fail(c, err)
		return
	}

	grantKey, err := h.grants.UnwrapGrantKey(grant, masterKeyFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	defer grantKey.Wipe()

	reg, token, err := h.registrations.IssueAccessToken(c.Request.Context(), grant, &grantKey)
	if err != nil {
		fail(c, err)
		return
	}
	defer token.Wipe()

	authToken := token.ToAuthToken()
	defer authToken.Wipe()

	c.JSON(http.StatusCreated, issuedTokenResponse{
		RegistrationID: reg.ID,
		AuthToken:      authToken.String(),
		SharedSecret:   base64.StdEncoding.EncodeToString(token.SharedSecret.Bytes()),
	})
}

func (h *GrantHandler) RevokeToken(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	if err := h.registrations.Revoke(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
