package contracts

import "time"

// EnvelopeFormatVersion is the schema format version written to new
// envelopes. Readers accept any persisted envelope whose format version is
// semver-compatible with this one.
const EnvelopeFormatVersion = "1.0.0"

// AttestationStatus reflects the hardware attestation state supplied by the
// identity collaborator.
type AttestationStatus string

const (
	AttestationVerified    AttestationStatus = "verified"
	AttestationPending     AttestationStatus = "pending"
	AttestationUnavailable AttestationStatus = "unavailable"
)

// Valid reports whether s is a member of the closed set.
func (s AttestationStatus) Valid() bool {
	switch s {
	case AttestationVerified, AttestationPending, AttestationUnavailable:
		return true
	}
	return false
}

// Envelope is the immutable, capability-declaring consent boundary for one
// send.
//
// Invariants:
//   - Immutable once constructed; regeneration builds a successor with a
//     fresh envelope_id and nonce, it never mutates in place
//   - Capabilities is the authoritative ceiling for everything the bound
//     capsule may request
//   - Nonce is single-use and unique per envelope (replay protection)
//   - CapsuleHash and Signature stay empty until a capsule is bound
type Envelope struct {
	FormatVersion        string            `json:"format_version"`
	EnvelopeID           string            `json:"envelope_id"`
	SenderFingerprint    string            `json:"sender_fingerprint"`
	RecipientFingerprint string            `json:"recipient_fingerprint,omitempty"`
	HandshakeID          string            `json:"handshake_id,omitempty"`
	HardwareAttestation  AttestationStatus `json:"hardware_attestation"`
	CreatedAt            time.Time         `json:"created_at"`
	ValidUntil           time.Time         `json:"valid_until,omitempty"`
	Nonce                string            `json:"nonce"`

	Capabilities       CapabilitySet      `json:"capabilities"`
	NetworkConstraints NetworkConstraints `json:"network_constraints"`

	CapsuleHash        string `json:"capsule_hash,omitempty"`
	Signature          string `json:"signature,omitempty"`
	SignatureAlgorithm string `json:"signature_algorithm,omitempty"`
	SignerID           string `json:"signer_id,omitempty"`
}

// ContentEqual compares two envelopes ignoring the identity fields that are
// fresh on every regeneration (envelope_id, nonce, created_at, and the
// valid_until window derived from created_at) and the binding fields filled
// downstream (capsule_hash, signature). Regenerating twice from unchanged
// inputs yields ContentEqual envelopes.
func (e *Envelope) ContentEqual(other *Envelope) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.FormatVersion != other.FormatVersion ||
		e.SenderFingerprint != other.SenderFingerprint ||
		e.RecipientFingerprint != other.RecipientFingerprint ||
		e.HandshakeID != other.HandshakeID ||
		e.HardwareAttestation != other.HardwareAttestation {
		return false
	}
	if !e.Capabilities.Equal(other.Capabilities) {
		return false
	}
	return networkConstraintsEqual(e.NetworkConstraints, other.NetworkConstraints)
}

func networkConstraintsEqual(a, b NetworkConstraints) bool {
	if a.OfflineOnly != b.OfflineOnly {
		return false
	}
	return stringSlicesEqual(a.AllowedIngress, b.AllowedIngress) &&
		stringSlicesEqual(a.AllowedEgress, b.AllowedEgress)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
