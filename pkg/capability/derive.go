// Package capability computes the capability set an envelope must carry
// for a given boundary declaration and capsule content.
//
// Derivation is a pure set union: idempotent, order-independent, and free
// of side effects. Re-deriving from identical inputs always yields an
// identical set.
package capability

import (
	"strings"

	"github.com/sealpost/core/pkg/contracts"
)

// CapsuleSignals is the capsule-content input to derivation. It carries
// only the signals that influence capability needs, not the payload itself.
type CapsuleSignals struct {
	AttachmentCount int
	Sessions        []contracts.CapsuleSessionRef
	DataRequest     string
}

// Derive maps boundary state plus capsule signals to the capability set an
// envelope must grant.
func Derive(b contracts.BoundaryDeclaration, sig CapsuleSignals) contracts.CapabilitySet {
	caps := contracts.NewCapabilitySet()

	// Offline-only voids the network grants the presets would imply, the
	// same way it voids the allow-lists in NetworkConstraintsFor. The
	// presets themselves stay declared for when offline mode is lifted.
	if !b.OfflineOnly {
		if b.Egress.Preset != contracts.EgressNone {
			caps.Add(contracts.CapNetworkEgress)
		}
		if b.Ingress.Preset == contracts.IngressAllowlisted {
			caps.Add(contracts.CapNetworkIngress)
		}
	}
	if b.Ingress.Preset == contracts.IngressSessionDerived && len(b.Ingress.SessionRefs) > 0 {
		caps.Add(contracts.CapSessionControl)
	}

	if sig.AttachmentCount > 0 {
		caps.Add(contracts.CapDataAccess)
	}
	for _, s := range sig.Sessions {
		// Selecting a session always needs session_control, even when the
		// session's own capability is already covered.
		caps.Add(contracts.CapSessionControl)
		if s.RequiredCapability == contracts.CapCriticalAutomation {
			caps.Add(contracts.CapCriticalAutomation)
		}
	}
	if strings.TrimSpace(sig.DataRequest) != "" {
		caps.Add(contracts.CapDataAccess)
	}

	return caps
}

// NetworkConstraintsFor projects a boundary declaration onto the network
// constraints an envelope carries. When the boundary is offline-only, both
// allow-lists are void regardless of declared entries.
func NetworkConstraintsFor(b contracts.BoundaryDeclaration) contracts.NetworkConstraints {
	if b.OfflineOnly {
		return contracts.NetworkConstraints{OfflineOnly: true}
	}

	nc := contracts.NetworkConstraints{}
	if b.Egress.Preset == contracts.EgressAllowlisted {
		for _, d := range b.Egress.Destinations {
			nc.AllowedEgress = append(nc.AllowedEgress, d.Destination)
		}
	}
	if b.Ingress.Preset == contracts.IngressAllowlisted {
		for _, s := range b.Ingress.Sources {
			nc.AllowedIngress = append(nc.AllowedIngress, s.Source)
		}
	}
	return nc
}

// SupportsSession recomputes whether the given capability set covers a
// session reference. The result is never persisted; callers recompute on
// every read.
func SupportsSession(caps contracts.CapabilitySet, ref contracts.CapsuleSessionRef) bool {
	if !caps.Has(contracts.CapSessionControl) {
		return false
	}
	if ref.RequiredCapability == "" {
		return true
	}
	return caps.Has(ref.RequiredCapability)
}
