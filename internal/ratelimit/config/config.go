// Package config holds the named sliding-window policies used by the
// limiters and loads operator overrides from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy names used by the router.
const (
	PolicyContact = "contact"
	PolicyGeneral = "general"
	PolicySignIn  = "signin"
)

// Policy bounds requests per identity within a sliding window.
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

func (p Policy) Validate() error {
	if p.Name == "" {
		return errors.New("policy name is required")
	}
	if p.Window <= 0 {
		return fmt.Errorf("policy %q: window must be positive", p.Name)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("policy %q: max_requests must be positive", p.Name)
	}
	return nil
}

// Defaults returns the built-in policies keyed by name.
func Defaults() map[string]Policy {
	return map[string]Policy{
		PolicyContact: {Name: PolicyContact, Window: 15 * time.Minute, MaxRequests: 3},
		PolicyGeneral: {Name: PolicyGeneral, Window: time.Minute, MaxRequests: 10},
		PolicySignIn:  {Name: PolicySignIn, Window: 15 * time.Minute, MaxRequests: 5},
	}
}

type policyFile struct {
	Policies map[string]policyEntry `yaml:"policies"`
}

type policyEntry struct {
	Window      string `yaml:"window"`
	MaxRequests int    `yaml:"max_requests"`
}

// LoadPolicies returns Defaults overlaid with the policies in path. An empty
// path returns the defaults. Entries may override a single field.
func LoadPolicies(path string) (map[string]Policy, error) {
	policies := Defaults()
	if path == "" {
		return policies, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return mergePolicies(policies, data)
}

func mergePolicies(policies map[string]Policy, data []byte) (map[string]Policy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	for name, entry := range file.Policies {
		p, ok := policies[name]
		if !ok {
			p = Policy{Name: name}
		}
		if entry.Window != "" {
			window, err := time.ParseDuration(entry.Window)
			if err != nil {
				return nil, fmt.Errorf("policy %q: invalid window %q: %w", name, entry.Window, err)
			}
			p.Window = window
		}
		if entry.MaxRequests != 0 {
			p.MaxRequests = entry.MaxRequests
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		policies[name] = p
	}
	return policies, nil
}
