package transit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/auth"
	"github.com/hostvault/hostvault/internal/server/connections"
)

// FilePackage is everything needed to ship one file to remote hosts. The
// payload, metadata and thumbnails are already encrypted under the file's
// own keys; KeyHeader is the plaintext key header, wrapped per recipient
// under that connection's shared secret just before sending.
type FilePackage struct {
	FileID        uuid.UUID
	TargetDriveID uuid.UUID
	KeyHeader     *cryptox.SensitiveBytes
	Metadata      []byte
	Payload       []byte
	Thumbnails    [][]byte
}

const transitStreamPath = "/api/perimeter/transit/host/stream"

// Sender delivers file packages to remote hosts over the multipart transit
// protocol. Each recipient is handled independently; one host being down
// never blocks or fails delivery to the others.
type Sender struct {
	connections   *connections.Service
	client        *http.Client
	localIdentity string
	// scheme is https outside of tests
	scheme     string
	maxRetries uint64
	retryBase  time.Duration
	logger     logging.Logger
}

type SenderOption func(*Sender)

// WithScheme overrides the URL scheme, for plain-HTTP test servers.
func WithScheme(scheme string) SenderOption {
	return func(s *Sender) { s.scheme = scheme }
}

// WithRetryPolicy tunes the short in-call retry loop.
func WithRetryPolicy(maxRetries uint64, base time.Duration) SenderOption {
	return func(s *Sender) {
		s.maxRetries = maxRetries
		s.retryBase = base
	}
}

func NewSender(conns *connections.Service, localIdentity string, logger logging.Logger, opts ...SenderOption) *Sender {
	s := &Sender{
		connections:   conns,
		client:        &http.Client{Timeout: 2 * time.Minute},
		localIdentity: localIdentity,
		scheme:        "https",
		maxRetries:    2,
		retryBase:     500 * time.Millisecond,
		logger:        logger.With("module", "transit.sender"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send fans the package out to every recipient concurrently and returns a
// result per recipient, keyed by identity.
func (s *Sender) Send(ctx context.Context, pkg *FilePackage, recipients []string) map[string]SendResult {
	results := make(map[string]SendResult, len(recipients))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, recipient := range recipients {
		wg.Add(1)
		go func(recipient string) {
			defer wg.Done()
			result := s.sendOne(ctx, pkg, recipient)
			mu.Lock()
			results[recipient] = result
			mu.Unlock()
		}(recipient)
	}
	wg.Wait()

	return results
}

func (s *Sender) sendOne(ctx context.Context, pkg *FilePackage, recipient string) SendResult {
	icr, token, result, ok := s.credential(ctx, recipient)
	if !ok {
		return result
	}
	defer token.Wipe()

	secret := icr.ICRSharedSecret()
	headerEnvelope, err := cryptox.WrapKey(pkg.KeyHeader, &secret)
	secret.Wipe()
	if err != nil {
		result.Status = StatusTransientFailure
		result.FailureReason = fmt.Sprintf("wrapping key header: %v", err)
		return result
	}

	return s.post(ctx, pkg, recipient, &token, headerEnvelope.Marshal(), result)
}

// Deliver ships a package whose key header was already wrapped for this
// recipient, typically an outbox item being retried after the original
// request context is long gone.
func (s *Sender) Deliver(ctx context.Context, pkg *FilePackage, recipient string, keyHeaderCipher []byte) SendResult {
	_, token, result, ok := s.credential(ctx, recipient)
	if !ok {
		return result
	}
	defer token.Wipe()

	return s.post(ctx, pkg, recipient, &token, keyHeaderCipher, result)
}

func (s *Sender) credential(ctx context.Context, recipient string) (*connections.IdentityConnectionRegistration, auth.ClientAuthenticationToken, SendResult, bool) {
	result := SendResult{Recipient: recipient, Timestamp: time.Now()}

	icr, err := s.connections.GetConnectionRegistration(ctx, recipient)
	if err != nil || !icr.IsConnected() {
		result.Status = StatusRecipientNotConnected
		result.FailureReason = "no active connection to recipient"
		return nil, auth.ClientAuthenticationToken{}, result, false
	}

	token, err := icr.CreateClientAuthToken()
	if err != nil {
		result.Status = StatusRecipientNotConnected
		result.FailureReason = "no credential for recipient"
		return nil, auth.ClientAuthenticationToken{}, result, false
	}
	return icr, token, result, true
}

func (s *Sender) post(ctx context.Context, pkg *FilePackage, recipient string, token *auth.ClientAuthenticationToken, keyHeaderCipher []byte, result SendResult) SendResult {
	body, contentType, err := s.buildStream(pkg, keyHeaderCipher)
	if err != nil {
		result.Status = StatusTransientFailure
		result.FailureReason = err.Error()
		return result
	}

	url := fmt.Sprintf("%s://%s%s", s.scheme, recipient, transitStreamPath)

	var resp *http.Response
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(common.ClientAuthTokenHeaderName, token.String())

		resp, err = s.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			return retry.RetryableError(fmt.Errorf("recipient returned %d", resp.StatusCode))
		}
		return nil
	})
	if err != nil {
		result.Status = StatusTransientFailure
		result.ShouldRetry = true
		result.FailureReason = err.Error()
		s.logger.Warn(ctx, "delivery failed", "recipient", recipient, "file_id", pkg.FileID, "error", err)
		return result
	}
	defer resp.Body.Close()

	return s.interpret(ctx, resp, result, pkg.FileID)
}

func (s *Sender) interpret(ctx context.Context, resp *http.Response, result SendResult, fileID uuid.UUID) SendResult {
	result.ResponseCode = resp.StatusCode

	switch {
	case resp.StatusCode == http.StatusOK:
		var body AcceptDataStreamResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
			result.Status = StatusTransientFailure
			result.ShouldRetry = true
			result.FailureReason = "unreadable response body"
			return result
		}
		switch body.Success {
		case AcceptReasonSuccess:
			result.Success = true
			result.Status = StatusDeliveredToInbox
			s.logger.Info(ctx, "delivered", "recipient", result.Recipient, "file_id", fileID)
		case AcceptReasonAborted:
			result.Status = StatusAbortedByRecipient
			result.FailureReason = "recipient aborted the stream"
		default:
			result.Status = StatusQuarantinedByRecipient
			result.FailureReason = "recipient quarantined the stream"
		}
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		result.Status = StatusRecipientForbidden
		result.FailureReason = "recipient rejected our credential"
	default:
		result.Status = StatusRecipientServerError
		result.ShouldRetry = true
		result.FailureReason = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result
}

// buildStream assembles the multipart body: instructions first, then
// metadata, payload and any thumbnails.
func (s *Sender) buildStream(pkg *FilePackage, keyHeaderCipher []byte) ([]byte, string, error) {
	instructions := TransferInstructions{
		FileID:          pkg.FileID,
		TargetDriveID:   pkg.TargetDriveID,
		Sender:          s.localIdentity,
		KeyHeaderCipher: keyHeaderCipher,
	}
	instructionsJSON, err := instructions.Marshal()
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	parts := []struct {
		part FilePart
		data []byte
	}{
		{FilePartInstructions, instructionsJSON},
		{FilePartMetadata, pkg.Metadata},
		{FilePartPayload, pkg.Payload},
	}
	for _, thumbnail := range pkg.Thumbnails {
		parts = append(parts, struct {
			part FilePart
			data []byte
		}{FilePartThumbnail, thumbnail})
	}

	for _, p := range parts {
		fw, err := w.CreateFormField(p.part.String())
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(p.data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
