package dispatch

import (
	"strings"

	"github.com/sealpost/core/pkg/capability"
	"github.com/sealpost/core/pkg/contracts"
)

// BoundaryRequired reports whether this send needs a deliberate boundary
// declaration before dispatch. Pure function of the declared boundary, the
// capsule signals, and whether the user explicitly invoked the boundary
// editor. Plain text to a default boundary needs nothing.
func BoundaryRequired(decl contracts.BoundaryDeclaration, sig capability.CapsuleSignals, explicit bool) bool {
	if explicit {
		return true
	}
	if sig.AttachmentCount > 0 || len(sig.Sessions) > 0 || strings.TrimSpace(sig.DataRequest) != "" {
		return true
	}
	if decl.Ingress.Preset != contracts.IngressCapsuleOnly ||
		len(decl.Ingress.Sources) > 0 || len(decl.Ingress.SessionRefs) > 0 {
		return true
	}
	if decl.Egress.Preset != contracts.EgressNone || len(decl.Egress.Destinations) > 0 {
		return true
	}
	return false
}
