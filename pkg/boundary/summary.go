package boundary

import (
	"fmt"

	"github.com/sealpost/core/pkg/contracts"
)

// SummarizeEgress renders the human-readable egress summary. It is a pure
// function of the declaration fields; identical declarations always render
// identically.
func SummarizeEgress(d contracts.EgressDeclaration) string {
	switch d.Preset {
	case contracts.EgressNone:
		return "No outbound network access"
	case contracts.EgressLocalOnly:
		return "Local network only"
	case contracts.EgressAllowlisted:
		switch n := len(d.Destinations); n {
		case 0:
			return "Allowlisted destinations (none declared)"
		case 1:
			return "1 allowed destination"
		default:
			return fmt.Sprintf("%d allowed destinations", n)
		}
	case contracts.EgressUnrestricted:
		return "Unrestricted (advanced)"
	}
	return string(d.Preset)
}

// SummarizeIngress renders the human-readable ingress summary, a pure
// function of the declaration fields.
func SummarizeIngress(d contracts.IngressDeclaration) string {
	switch d.Preset {
	case contracts.IngressCapsuleOnly:
		return "Capsule content only"
	case contracts.IngressSessionDerived:
		switch n := len(d.SessionRefs); n {
		case 0:
			return "Session-derived (no sessions linked)"
		case 1:
			return "Derived from 1 session"
		default:
			return fmt.Sprintf("Derived from %d sessions", n)
		}
	case contracts.IngressAllowlisted:
		switch n := len(d.Sources); n {
		case 0:
			return "Allowlisted sources (none declared)"
		case 1:
			return "1 allowed source"
		default:
			return fmt.Sprintf("%d allowed sources", n)
		}
	}
	return string(d.Preset)
}
