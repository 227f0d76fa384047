package contracts

import "time"

// EgressPreset selects the outbound network posture of a boundary.
type EgressPreset string

const (
	EgressNone         EgressPreset = "none"
	EgressLocalOnly    EgressPreset = "local_only"
	EgressAllowlisted  EgressPreset = "allowlisted"
	EgressUnrestricted EgressPreset = "unrestricted"
)

// Valid reports whether p is a member of the closed set.
func (p EgressPreset) Valid() bool {
	switch p {
	case EgressNone, EgressLocalOnly, EgressAllowlisted, EgressUnrestricted:
		return true
	}
	return false
}

// IngressPreset selects the inbound data posture of a boundary.
type IngressPreset string

const (
	IngressCapsuleOnly    IngressPreset = "capsule_only"
	IngressSessionDerived IngressPreset = "session_derived"
	IngressAllowlisted    IngressPreset = "allowlisted"
)

// Valid reports whether p is a member of the closed set.
func (p IngressPreset) Valid() bool {
	switch p {
	case IngressCapsuleOnly, IngressSessionDerived, IngressAllowlisted:
		return true
	}
	return false
}

// EgressDestination is a typed entry on the egress allow-list.
type EgressDestination struct {
	ID          string `json:"id"`
	Destination string `json:"destination"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// IngressSource is a typed entry on the ingress allow-list.
type IngressSource struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// EgressDeclaration declares the permitted outbound interaction.
// Preset is never absent: a declaration always carries one of the valid
// presets; there is no undeclared state.
type EgressDeclaration struct {
	Preset       EgressPreset        `json:"preset"`
	Destinations []EgressDestination `json:"destinations,omitempty"`
	Summary      string              `json:"summary"`
}

// IngressDeclaration declares the permitted inbound interaction.
type IngressDeclaration struct {
	Preset      IngressPreset   `json:"preset"`
	Sources     []IngressSource `json:"sources,omitempty"`
	SessionRefs []string        `json:"session_refs,omitempty"`
	Summary     string          `json:"summary"`
}

// BoundaryDeclaration is the declared consent boundary: egress and ingress
// posture plus the offline switch. Only these fields persist; editing state
// lives on the owning model, never here.
type BoundaryDeclaration struct {
	Egress       EgressDeclaration  `json:"egress"`
	Ingress      IngressDeclaration `json:"ingress"`
	OfflineOnly  bool               `json:"offline_only"`
	IsDefault    bool               `json:"is_default"`
	LastModified time.Time          `json:"last_modified,omitempty"`
}

// NetworkConstraints is the envelope-facing projection of a boundary.
// If OfflineOnly is set, both allow-lists are void regardless of content;
// derivation enforces that, storage does not.
type NetworkConstraints struct {
	AllowedIngress []string `json:"allowed_ingress,omitempty"`
	AllowedEgress  []string `json:"allowed_egress,omitempty"`
	OfflineOnly    bool     `json:"offline_only"`
}

// NetworkConstraintsPatch is a field-by-field pending overlay. A nil field
// leaves the existing value untouched; merging is last-write-wins per field,
// never whole-object replacement.
type NetworkConstraintsPatch struct {
	AllowedIngress *[]string
	AllowedEgress  *[]string
	OfflineOnly    *bool
}

// Apply merges the patch onto base and returns the result.
func (p NetworkConstraintsPatch) Apply(base NetworkConstraints) NetworkConstraints {
	out := base
	if p.AllowedIngress != nil {
		out.AllowedIngress = append([]string(nil), (*p.AllowedIngress)...)
	}
	if p.AllowedEgress != nil {
		out.AllowedEgress = append([]string(nil), (*p.AllowedEgress)...)
	}
	if p.OfflineOnly != nil {
		out.OfflineOnly = *p.OfflineOnly
	}
	return out
}

// Empty reports whether the patch carries no pending field.
func (p NetworkConstraintsPatch) Empty() bool {
	return p.AllowedIngress == nil && p.AllowedEgress == nil && p.OfflineOnly == nil
}
