package contracts

import "time"

// CapsuleFormatVersion is the schema format version written to new capsules.
const CapsuleFormatVersion = "1.0.0"

// CapsuleAttachment carries the metadata of one attached file.
//
// Invariant: raw original bytes and raw extracted text never leave capsule
// scope. Transport and envelope scope see refs and hashes only; logging goes
// through the safe projection in pkg/isolation.
type CapsuleAttachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`

	// SemanticContent is extracted text, capsule-bound only. It must never
	// appear in transport-facing text; pkg/isolation enforces that.
	SemanticContent string `json:"semantic_content,omitempty"`
	Extracted       bool   `json:"extracted"`

	// EncryptedRef and EncryptedHash point at the sealed original in blob
	// storage. The original is never embedded raw.
	EncryptedRef  string `json:"encrypted_ref,omitempty"`
	EncryptedHash string `json:"encrypted_hash,omitempty"`

	// PreviewRef and PreviewHash point at rasterized page proofs.
	// Hashes and refs only, never raw image bytes.
	PreviewRef  string `json:"preview_ref,omitempty"`
	PreviewHash string `json:"preview_hash,omitempty"`
}

// CapsuleSessionRef references a session the capsule wants control over.
// EnvelopeSupports is computed against the current or pending capability
// set on every read; it is never persisted.
type CapsuleSessionRef struct {
	SessionID          string          `json:"session_id"`
	SessionName        string          `json:"session_name"`
	RequiredCapability CapabilityClass `json:"required_capability,omitempty"`
	EnvelopeSupports   bool            `json:"-"`
}

// Capsule is the editable task payload bound to an envelope.
//
// Invariant: the capability needs implied by its contents must be a subset
// of the bound envelope's capabilities at commit time. This is the central
// security invariant of the system.
type Capsule struct {
	FormatVersion string              `json:"format_version"`
	CapsuleID     string              `json:"capsule_id"`
	Text          string              `json:"text"`
	Attachments   []CapsuleAttachment `json:"attachments,omitempty"`
	SessionRefs   []CapsuleSessionRef `json:"session_refs,omitempty"`
	DataRequest   string              `json:"data_request,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	Hash          string              `json:"hash,omitempty"`
}
