package envelope

import (
	"github.com/sealpost/core/pkg/canonicalize"
	"github.com/sealpost/core/pkg/contracts"
)

// ContentHash returns the canonical hash of an envelope's content. The
// signature fields are excluded so the hash can be signed and later
// verified against the same bytes.
func ContentHash(e *contracts.Envelope) (string, error) {
	unsigned := *e
	unsigned.Capabilities = e.Capabilities.Clone()
	unsigned.Signature = ""
	unsigned.SignatureAlgorithm = ""
	unsigned.SignerID = ""
	return canonicalize.CanonicalHash(unsigned)
}
