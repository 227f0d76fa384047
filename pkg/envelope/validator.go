package envelope

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/crypto"
)

// ValidationResult carries the outcome of structural envelope validation.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
	Hash   string   `json:"hash,omitempty"`
}

// Validator checks envelopes before they are trusted downstream. It is
// stateless apart from the clock.
type Validator struct {
	clock func() time.Time
}

// NewValidator creates a validator using the wall clock.
func NewValidator() *Validator {
	return &Validator{clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (v *Validator) WithClock(clock func() time.Time) *Validator {
	v.clock = clock
	return v
}

// Validate runs all structural checks and returns the collected errors.
// The content hash is computed even for invalid envelopes so failures can
// be correlated in logs.
func (v *Validator) Validate(e *contracts.Envelope) ValidationResult {
	var errs []string

	if err := checkFormatVersion(e.FormatVersion); err != nil {
		errs = append(errs, err.Error())
	}
	if e.EnvelopeID == "" {
		errs = append(errs, "envelope_id is required")
	}
	if e.Nonce == "" {
		errs = append(errs, "nonce is required")
	}
	if e.SenderFingerprint == "" {
		errs = append(errs, "sender_fingerprint is required")
	}
	if !e.HardwareAttestation.Valid() {
		errs = append(errs, fmt.Sprintf("unknown attestation status %q", e.HardwareAttestation))
	}
	for _, class := range e.Capabilities.List() {
		if !class.Valid() {
			errs = append(errs, fmt.Sprintf("unknown capability class %q", class))
		}
	}
	if e.CreatedAt.IsZero() {
		errs = append(errs, "created_at is required")
	}
	if !e.ValidUntil.IsZero() && !e.ValidUntil.After(e.CreatedAt) {
		errs = append(errs, "valid_until must be after created_at")
	}
	if !e.ValidUntil.IsZero() && v.clock().After(e.ValidUntil) {
		errs = append(errs, fmt.Sprintf("envelope expired at %s", e.ValidUntil.UTC().Format(time.RFC3339)))
	}
	if e.NetworkConstraints.OfflineOnly {
		if len(e.NetworkConstraints.AllowedEgress) > 0 || len(e.NetworkConstraints.AllowedIngress) > 0 {
			errs = append(errs, "offline_only envelope must not carry allowed destinations or sources")
		}
		if e.Capabilities.Has(contracts.CapNetworkEgress) || e.Capabilities.Has(contracts.CapNetworkIngress) {
			errs = append(errs, "offline_only envelope must not grant network capabilities")
		}
	}
	if e.Signature != "" && e.SignatureAlgorithm != crypto.AlgorithmEd25519 {
		errs = append(errs, fmt.Sprintf("unsupported signature algorithm %q", e.SignatureAlgorithm))
	}
	if e.Signature != "" && e.CapsuleHash == "" {
		errs = append(errs, "signed envelope must carry capsule_hash")
	}

	hash, err := ContentHash(e)
	if err != nil {
		errs = append(errs, fmt.Sprintf("content hash failed: %v", err))
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs, Hash: hash}
}

// VerifySignature checks a bound envelope's signature against the signer's
// public key (hex-encoded).
func VerifySignature(e *contracts.Envelope, publicKeyHex string) error {
	if e.Signature == "" {
		return fmt.Errorf("envelope %s is unsigned", e.EnvelopeID)
	}
	hash, err := ContentHash(e)
	if err != nil {
		return fmt.Errorf("content hash failed: %w", err)
	}
	ok, err := crypto.Verify(publicKeyHex, e.Signature, []byte(hash))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("signature verification failed for envelope %s", e.EnvelopeID)
	}
	return nil
}

// checkFormatVersion accepts any version with the same major as ours.
// A major bump means the envelope layout changed incompatibly.
func checkFormatVersion(version string) error {
	if version == "" {
		return fmt.Errorf("format_version is required")
	}
	parsed, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("format_version %q is not valid semver", version)
	}
	ours := semver.MustParse(contracts.EnvelopeFormatVersion)
	if parsed.Major() != ours.Major() {
		return fmt.Errorf("format_version %s is incompatible with %s", version, contracts.EnvelopeFormatVersion)
	}
	return nil
}
