package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/inbox"
)

// InboxHandler serves the owner's view of received transfers.
type InboxHandler struct {
	inbox  *inbox.Service
	logger logging.Logger
}

func NewInboxHandler(service *inbox.Service, logger logging.Logger) *InboxHandler {
	return &InboxHandler{inbox: service, logger: logger.With("module", "httpapi.inbox")}
}

type inboxEntryResponse struct {
	ID            uuid.UUID `json:"id"`
	FileID        uuid.UUID `json:"file_id"`
	TargetDriveID uuid.UUID `json:"target_drive_id"`
	Sender        string    `json:"sender"`
	Received      time.Time `json:"received"`
	Thumbnails    int       `json:"thumbnails"`
}

func toInboxEntryResponse(e *inbox.InboxEntry) inboxEntryResponse {
	return inboxEntryResponse{
		ID:            e.ID,
		FileID:        e.FileID,
		TargetDriveID: e.TargetDriveID,
		Sender:        e.Sender,
		Received:      e.Received,
		Thumbnails:    len(e.ThumbnailKeys),
	}
}

// List returns received entries, optionally restricted to one drive with
// ?drive_id.
func (h *InboxHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		entries []*inbox.InboxEntry
		err     error
	)
	if raw := c.Query("drive_id"); raw != "" {
		driveID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid drive_id"})
			return
		}
		entries, err = h.inbox.ListByDrive(ctx, driveID)
	} else {
		entries, err = h.inbox.List(ctx)
	}
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]inboxEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toInboxEntryResponse(e))
	}
	c.JSON(http.StatusOK, out)
}

// Delete removes an entry and its staged blobs.
func (h *InboxHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}

	if err := h.inbox.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
