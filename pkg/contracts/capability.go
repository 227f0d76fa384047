// Package contracts defines the Consent Envelope and Task Capsule: the
// immutable capability-ceiling contract and the editable payload bound to it.
//
// The envelope is the authoritative consent boundary for one send:
//   - Declares the full capability set the recipient environment may use
//   - Immutable once constructed; any change produces a successor envelope
//   - The bound capsule's derived needs must never exceed the ceiling
package contracts

import (
	"encoding/json"
	"fmt"
	"sort"
)

// CapabilityClass is one of the closed set of permission categories an
// envelope may grant. Capabilities are additive only: nothing removes a
// class from a signed envelope short of generating a successor.
type CapabilityClass string

const (
	CapCriticalAutomation CapabilityClass = "critical_automation"
	CapMonetary           CapabilityClass = "monetary"
	CapUIActions          CapabilityClass = "ui_actions"
	CapDataAccess         CapabilityClass = "data_access"
	CapSessionControl     CapabilityClass = "session_control"
	CapNetworkEgress      CapabilityClass = "network_egress"
	CapNetworkIngress     CapabilityClass = "network_ingress"
)

// AllCapabilityClasses enumerates every valid class, in stable order.
var AllCapabilityClasses = []CapabilityClass{
	CapCriticalAutomation,
	CapMonetary,
	CapUIActions,
	CapDataAccess,
	CapSessionControl,
	CapNetworkEgress,
	CapNetworkIngress,
}

// Valid reports whether c is a member of the closed set.
func (c CapabilityClass) Valid() bool {
	switch c {
	case CapCriticalAutomation, CapMonetary, CapUIActions, CapDataAccess,
		CapSessionControl, CapNetworkEgress, CapNetworkIngress:
		return true
	}
	return false
}

// CapabilitySet is a mathematical set of capability classes. Derivation and
// merging are implemented as set union, so results are idempotent and
// order-independent by construction.
type CapabilitySet map[CapabilityClass]struct{}

// NewCapabilitySet builds a set from the given classes.
func NewCapabilitySet(classes ...CapabilityClass) CapabilitySet {
	s := make(CapabilitySet, len(classes))
	for _, c := range classes {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts a class. Adding an existing member is a no-op.
func (s CapabilitySet) Add(c CapabilityClass) {
	s[c] = struct{}{}
}

// Has reports membership.
func (s CapabilitySet) Has(c CapabilityClass) bool {
	_, ok := s[c]
	return ok
}

// Union returns a new set containing every member of s and other.
// Neither input is modified.
func (s CapabilitySet) Union(other CapabilitySet) CapabilitySet {
	out := make(CapabilitySet, len(s)+len(other))
	for c := range s {
		out[c] = struct{}{}
	}
	for c := range other {
		out[c] = struct{}{}
	}
	return out
}

// SubsetOf reports whether every member of s is present in other.
func (s CapabilitySet) SubsetOf(other CapabilitySet) bool {
	for c := range s {
		if !other.Has(c) {
			return false
		}
	}
	return true
}

// Missing returns the members of s absent from other, in stable order.
func (s CapabilitySet) Missing(other CapabilitySet) []CapabilityClass {
	var out []CapabilityClass
	for _, c := range AllCapabilityClasses {
		if s.Has(c) && !other.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Equal reports whether both sets hold exactly the same members.
func (s CapabilitySet) Equal(other CapabilitySet) bool {
	return len(s) == len(other) && s.SubsetOf(other)
}

// Clone returns an independent copy of s.
func (s CapabilitySet) Clone() CapabilitySet {
	out := make(CapabilitySet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// List returns the members sorted lexicographically. Serialization and
// hashing go through this so identical sets always canonicalize identically.
func (s CapabilitySet) List() []CapabilityClass {
	out := make([]CapabilityClass, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted JSON array.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON decodes a JSON array, rejecting unknown classes.
func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var classes []CapabilityClass
	if err := json.Unmarshal(data, &classes); err != nil {
		return err
	}
	out := make(CapabilitySet, len(classes))
	for _, c := range classes {
		if !c.Valid() {
			return fmt.Errorf("unknown capability class %q", c)
		}
		out[c] = struct{}{}
	}
	*s = out
	return nil
}
