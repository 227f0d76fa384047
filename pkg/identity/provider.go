// Package identity supplies sender identity and hardware attestation for
// envelope generation, plus handshake tokens binding sender and recipient.
//
// The attestation collaborator is external and may be slow or absent;
// envelopes default to attestation "pending" until it confirms otherwise.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/crypto"
)

// Provider supplies the identity inputs of a new envelope.
type Provider interface {
	// SenderFingerprint returns the stable fingerprint of the sending party.
	SenderFingerprint(ctx context.Context) (string, error)
	// Attestation returns the current hardware attestation status.
	// Implementations must return AttestationPending or
	// AttestationUnavailable rather than blocking past the context deadline.
	Attestation(ctx context.Context) contracts.AttestationStatus
}

// SignerProvider derives the sender fingerprint from a signer's public key
// and reports a fixed attestation status. It is the default wiring when no
// external attestation collaborator is configured.
type SignerProvider struct {
	signer crypto.Signer
	status contracts.AttestationStatus
}

// NewSignerProvider builds a provider around the given signer.
func NewSignerProvider(signer crypto.Signer) *SignerProvider {
	return &SignerProvider{signer: signer, status: contracts.AttestationUnavailable}
}

// WithAttestation overrides the reported attestation status.
func (p *SignerProvider) WithAttestation(status contracts.AttestationStatus) *SignerProvider {
	p.status = status
	return p
}

func (p *SignerProvider) SenderFingerprint(ctx context.Context) (string, error) {
	sum := sha256.Sum256([]byte(p.signer.PublicKey()))
	return "fp-" + hex.EncodeToString(sum[:8]), nil
}

func (p *SignerProvider) Attestation(ctx context.Context) contracts.AttestationStatus {
	return p.status
}

// Static is a fixed-value provider for tests and offline operation.
type Static struct {
	Fingerprint string
	Status      contracts.AttestationStatus
	// Delay simulates a slow attestation collaborator.
	Delay time.Duration
}

func (s Static) SenderFingerprint(ctx context.Context) (string, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.Fingerprint, nil
}

func (s Static) Attestation(ctx context.Context) contracts.AttestationStatus {
	if s.Status == "" {
		return contracts.AttestationPending
	}
	return s.Status
}
