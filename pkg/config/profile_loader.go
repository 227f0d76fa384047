package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sealpost/core/pkg/contracts"
)

// DeliveryProfile is a per-channel configuration profile loaded from YAML.
// Profiles carry the collaborator endpoint, a rate bound, and default
// delivery config for one method.
type DeliveryProfile struct {
	Name     string `yaml:"name" json:"name"`
	Method   string `yaml:"method" json:"method"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	// RatePerMinute bounds sends through this channel; zero means unlimited.
	RatePerMinute int               `yaml:"rate_per_minute,omitempty" json:"rate_per_minute,omitempty"`
	Defaults      map[string]string `yaml:"defaults,omitempty" json:"defaults,omitempty"`
}

// Validate checks the profile's method against the closed set.
func (p *DeliveryProfile) Validate() error {
	if !contracts.DeliveryMethod(p.Method).Valid() {
		return fmt.Errorf("profile %q: unknown delivery method %q", p.Name, p.Method)
	}
	return nil
}

// LoadProfile loads one delivery profile by method name. It reads
// profile_<method>.yaml from the profiles directory.
func LoadProfile(profilesDir, method string) (*DeliveryProfile, error) {
	method = strings.ToLower(method)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", method))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", method, err)
	}

	var profile DeliveryProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", method, err)
	}
	if profile.Method == "" {
		profile.Method = method
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}

// LoadAllProfiles loads every profile_*.yaml in the profiles directory,
// keyed by method.
func LoadAllProfiles(profilesDir string) (map[string]*DeliveryProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*DeliveryProfile, len(matches))
	for _, path := range matches {
		base := strings.TrimSuffix(filepath.Base(path), ".yaml")
		method := strings.TrimPrefix(base, "profile_")
		profile, err := LoadProfile(profilesDir, method)
		if err != nil {
			return nil, err
		}
		profiles[profile.Method] = profile
	}
	return profiles, nil
}
