package httpapi

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/outbox"
	"github.com/hostvault/hostvault/internal/server/transit"
)

type OutboxHandler struct {
	outbox    *outbox.Service
	processor *outbox.Processor
	logger    logging.Logger
}

func NewOutboxHandler(service *outbox.Service, processor *outbox.Processor, logger logging.Logger) *OutboxHandler {
	return &OutboxHandler{
		outbox:    service,
		processor: processor,
		logger:    logger.With("module", "httpapi.outbox"),
	}
}

type outboxItemResponse struct {
	ID          uuid.UUID `json:"id"`
	FileID      uuid.UUID `json:"file_id"`
	Recipient   string    `json:"recipient"`
	Priority    int       `json:"priority"`
	Attempts    int       `json:"attempts"`
	State       string    `json:"state"`
	LastFailure string    `json:"last_failure,omitempty"`
	FirstAdded  time.Time `json:"first_added"`
	NextAttempt time.Time `json:"next_attempt"`
}

func toItemResponse(item *outbox.Item) outboxItemResponse {
	return outboxItemResponse{
		ID:          item.ID,
		FileID:      item.FileID,
		Recipient:   item.Recipient,
		Priority:    item.Priority,
		Attempts:    item.Attempts,
		State:       string(item.State),
		LastFailure: item.LastFailure,
		FirstAdded:  item.FirstAdded,
		NextAttempt: item.NextAttempt,
	}
}

func (h *OutboxHandler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	items, err := h.outbox.List(c.Request.Context(), offset, limit)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]outboxItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	c.JSON(http.StatusOK, out)
}

func (h *OutboxHandler) GetItem(c *gin.Context) {
	id, err := uuid.Parse(c.Query("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	item, err := h.outbox.GetItem(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *OutboxHandler) DeleteItem(c *gin.Context) {
	id, err := uuid.Parse(c.Query("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	if err := h.outbox.Remove(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setPriorityRequest struct {
	ID       uuid.UUID `json:"id" binding:"required"`
	Priority int       `json:"priority"`
}

func (h *OutboxHandler) SetPriority(c *gin.Context) {
	var req setPriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid priority request"})
		return
	}
	if err := h.outbox.SetPriority(c.Request.Context(), req.ID, req.Priority); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type enqueueResponse struct {
	Enqueued []uuid.UUID       `json:"enqueued"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// Send accepts a multipart form from the owner console and queues the file
// for every listed recipient. Form fields: file_id, target_drive_id,
// recipients (repeated), key_header (base64); file parts: payload,
// metadata, zero or more thumbnail parts.
func (h *OutboxHandler) Send(c *gin.Context) {
	fileID, err := uuid.Parse(c.PostForm("file_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid file_id"})
		return
	}
	targetDriveID, err := uuid.Parse(c.PostForm("target_drive_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid target_drive_id"})
		return
	}
	recipients := c.PostFormArray("recipients")
	if len(recipients) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "at least one recipient required"})
		return
	}
	headerRaw, err := base64.StdEncoding.DecodeString(c.PostForm("key_header"))
	if err != nil || len(headerRaw) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid key_header"})
		return
	}
	header := cryptox.NewSensitiveBytes(headerRaw)
	defer header.Wipe()

	payload, err := formFile(c, "payload")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "payload part required"})
		return
	}
	metadata, err := formFile(c, "metadata")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "metadata part required"})
		return
	}
	thumbnails, err := formFiles(c, "thumbnail")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unreadable thumbnail part"})
		return
	}

	pkg := &transit.FilePackage{
		FileID:        fileID,
		TargetDriveID: targetDriveID,
		KeyHeader:     &header,
		Payload:       payload,
		Metadata:      metadata,
		Thumbnails:    thumbnails,
	}

	priority, _ := strconv.Atoi(c.PostForm("priority"))
	items, failed, err := h.outbox.Enqueue(c.Request.Context(), pkg, recipients, priority)
	if err != nil {
		fail(c, err)
		return
	}

	resp := enqueueResponse{Failed: make(map[string]string)}
	for _, item := range items {
		resp.Enqueued = append(resp.Enqueued, item.ID)
	}
	for recipient, ferr := range failed {
		resp.Failed[recipient] = ferr.Error()
	}
	c.JSON(http.StatusAccepted, resp)
}

// Process stokes the processor: one immediate drain pass, results returned
// to the caller.
func (h *OutboxHandler) Process(c *gin.Context) {
	results, err := h.processor.Stoke(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if results == nil {
		results = []transit.SendResult{}
	}
	c.JSON(http.StatusOK, results)
}

func formFile(c *gin.Context, name string) ([]byte, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		return nil, err
	}
	return readFormFile(fh)
}

func formFiles(c *gin.Context, name string) ([][]byte, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for _, fh := range form.File[name] {
		b, err := readFormFile(fh)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
