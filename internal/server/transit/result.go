package transit

import "time"

// TransferStatus is the per-recipient outcome of one delivery attempt.
type TransferStatus string

const (
	StatusDeliveredToInbox       TransferStatus = "delivered_to_inbox"
	StatusDeliveredToTargetDrive TransferStatus = "delivered_to_target_drive"
	StatusQuarantinedByRecipient TransferStatus = "quarantined_by_recipient"
	StatusAbortedByRecipient     TransferStatus = "aborted_by_recipient"
	StatusRecipientForbidden     TransferStatus = "recipient_returned_forbidden"
	StatusRecipientServerError   TransferStatus = "recipient_server_error"
	StatusTransientFailure       TransferStatus = "transient_network_failure"
	StatusRecipientNotConnected  TransferStatus = "recipient_not_connected"
)

// SendResult aggregates one delivery attempt to one recipient. ShouldRetry
// decides whether the outbox reschedules the item or surfaces a permanent
// failure.
type SendResult struct {
	Recipient     string         `json:"recipient"`
	Success       bool           `json:"success"`
	Status        TransferStatus `json:"status"`
	ResponseCode  int            `json:"response_code,omitempty"`
	ShouldRetry   bool           `json:"should_retry"`
	FailureReason string         `json:"failure_reason,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// AcceptDataStreamReason is what the receiving host reports back for an
// inbound stream. The detailed local rejection reason is deliberately not
// part of this; remote senders only learn the category.
type AcceptDataStreamReason string

const (
	AcceptReasonSuccess     AcceptDataStreamReason = "Success"
	AcceptReasonQuarantined AcceptDataStreamReason = "QuarantinedPayload"
	AcceptReasonAborted     AcceptDataStreamReason = "AbortedDangerousPayload"
)

// AcceptDataStreamResponse is the JSON body of the perimeter endpoint.
type AcceptDataStreamResponse struct {
	Success AcceptDataStreamReason `json:"success"`
}
