package httpapi

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/grants"
	"github.com/hostvault/hostvault/internal/server/inbox"
	"github.com/hostvault/hostvault/internal/server/transit"
)

// TransitHandler serves the perimeter: the host-to-host stream endpoint
// and the key header query for token holders.
type TransitHandler struct {
	receiver *transit.Receiver
	inbox    *inbox.Service
	logger   logging.Logger
}

func NewTransitHandler(receiver *transit.Receiver, inboxService *inbox.Service, logger logging.Logger) *TransitHandler {
	return &TransitHandler{
		receiver: receiver,
		inbox:    inboxService,
		logger:   logger.With("module", "httpapi.transit"),
	}
}

// AcceptStream consumes one multipart transfer. Every part is fed through
// the receiver's state machine; the stream is always read to the end so
// the sender gets a proper response instead of a connection reset. The
// outcome category is reported with 200 regardless of acceptance; only
// authentication and protocol-level failures use error statuses.
func (h *TransitHandler) AcceptStream(c *gin.Context) {
	permCtx := permissionsFrom(c)
	if !permCtx.HasPermission(grants.PermissionWrite) {
		c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	reader, err := c.Request.MultipartReader()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "multipart body required"})
		return
	}

	ctx := c.Request.Context()
	transferID := h.receiver.Begin(ctx, "")

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.logger.Warn(ctx, "stream truncated", "transfer_id", transferID, "error", err)
			break
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			h.logger.Warn(ctx, "part unreadable", "transfer_id", transferID, "error", err)
			break
		}

		// rejected or aborted transfers keep draining; the state
		// machine ignores everything after a final state
		if err := h.receiver.AcceptPart(ctx, transferID, part.FormName(), data); err != nil {
			if errors.Is(err, common.ErrTransferUnknown) {
				c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
				return
			}
		}
	}

	reason, err := h.receiver.Finalize(ctx, transferID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, transit.AcceptDataStreamResponse{Success: reason})
}

type keyHeaderResponse struct {
	KeyHeader string `json:"key_header"`
}

// QueryKeyHeader re-encrypts an inbox entry's key header onto the calling
// token's shared secret.
func (h *TransitHandler) QueryKeyHeader(c *gin.Context) {
	entryID, err := uuid.Parse(c.Query("entry_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid entry_id"})
		return
	}

	transformed, err := h.inbox.QueryKeyHeader(c.Request.Context(), entryID, permissionsFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, keyHeaderResponse{KeyHeader: base64.StdEncoding.EncodeToString(transformed)})
}

// QueryPayload streams back a staged payload blob. The data stays encrypted
// under its file key; only the header query hands out key material.
func (h *TransitHandler) QueryPayload(c *gin.Context) {
	entryID, err := uuid.Parse(c.Query("entry_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid entry_id"})
		return
	}

	data, err := h.inbox.GetPayload(c.Request.Context(), entryID, permissionsFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}
