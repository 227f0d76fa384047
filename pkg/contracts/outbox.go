package contracts

import "time"

// DeliveryMethod identifies the transport collaborator used for one send.
type DeliveryMethod string

const (
	DeliveryMail      DeliveryMethod = "mail"
	DeliveryMessenger DeliveryMethod = "messenger"
	DeliveryDownload  DeliveryMethod = "download"
	DeliveryChat      DeliveryMethod = "chat"
)

// Valid reports whether m is a member of the closed set.
func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryMail, DeliveryMessenger, DeliveryDownload, DeliveryChat:
		return true
	}
	return false
}

// DeliveryStatus is the per-entry delivery state. Transitions only move
// forward; pkg/outbox owns the transition table.
type DeliveryStatus string

const (
	StatusQueued            DeliveryStatus = "queued"
	StatusSending           DeliveryStatus = "sending"
	StatusSent              DeliveryStatus = "sent"
	StatusFailed            DeliveryStatus = "failed"
	StatusPendingUserAction DeliveryStatus = "pending_user_action"
	StatusSentManual        DeliveryStatus = "sent_manual"
	StatusSentChat          DeliveryStatus = "sent_chat"
)

// Valid reports whether s is a member of the closed set.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusSending, StatusSent, StatusFailed,
		StatusPendingUserAction, StatusSentManual, StatusSentChat:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transition except an
// explicit re-queue (failed only).
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case StatusSent, StatusSentManual, StatusSentChat:
		return true
	}
	return false
}

// DeliveryAttempt is one append-only record of a delivery outcome.
type DeliveryAttempt struct {
	At     time.Time      `json:"at"`
	Status DeliveryStatus `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// OutboxEntry tracks delivery of one dispatched package, independent of
// which transport was used. Entries reference envelope and capsule by id,
// never own them. The attempts log is append-only and authoritative for
// audit; status changes always append.
type OutboxEntry struct {
	EntryID     string            `json:"entry_id"`
	EnvelopeRef string            `json:"envelope_ref"`
	CapsuleRef  string            `json:"capsule_ref"`
	Method      DeliveryMethod    `json:"method"`
	Status      DeliveryStatus    `json:"status"`
	ArtifactRef string            `json:"artifact_ref,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Attempts    []DeliveryAttempt `json:"attempts"`
}
