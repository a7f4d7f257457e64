package ratelimit

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Limit types understood by the API.
const (
	LimitUpload  = "cv_upload"
	LimitRefresh = "question_refresh"
)

// KeyPrefix namespaces every rate limit key in the store.
const KeyPrefix = "rate_limit"

// Policy is a named limit: at most Limit requests per Window.
type Policy struct {
	Name        string        `yaml:"-"`
	Limit       int           `yaml:"limit"`
	Window      time.Duration `yaml:"window"`
	Message     string        `yaml:"message"`
	Description string        `yaml:"description"`
	// Scoped policies are keyed per sub-resource, e.g. per analysis.
	Scoped bool `yaml:"scoped"`
}

// Key builds the store key for identity and an optional sub-resource:
// rate_limit:{identity}:{name}[:{subResource}].
func (p Policy) Key(identity, subResource string) string {
	key := KeyPrefix + ":" + identity + ":" + p.Name
	if subResource != "" {
		key += ":" + subResource
	}
	return key
}

// Validate reports whether the policy can be enforced.
func (p Policy) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidPolicy)
	case p.Limit <= 0:
		return fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, p.Name, ErrInvalidLimit)
	case p.Window <= 0:
		return fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, p.Name, ErrInvalidWindow)
	}
	return nil
}

// Policies is a set of policies keyed by name.
type Policies map[string]Policy

// DefaultPolicies returns the built-in limits.
func DefaultPolicies() Policies {
	day := 24 * time.Hour
	return Policies{
		LimitUpload: {
			Name:        LimitUpload,
			Limit:       6,
			Window:      day,
			Message:     "CV upload limit exceeded. Maximum 6 uploads per device per day.",
			Description: "Maximum CV uploads per device per day",
		},
		LimitRefresh: {
			Name:        LimitRefresh,
			Limit:       2,
			Window:      day,
			Message:     "Question refresh limit exceeded. Maximum 2 refreshes per CV per day.",
			Description: "Maximum question refreshes per CV per day",
			Scoped:      true,
		},
	}
}

// Get looks a policy up by name, case-insensitively.
func (ps Policies) Get(name string) (Policy, error) {
	if p, ok := ps[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return Policy{}, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
}

// Names returns policy names in sorted order.
func (ps Policies) Names() []string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type policyFile struct {
	Policies map[string]Policy `yaml:"policies"`
}

// LoadPolicies reads a YAML policy file and overlays it on the defaults.
// Fields left empty in the file keep their default values. An empty path
// returns the defaults.
//
//	policies:
//	  cv_upload:
//	    limit: 10
//	    window: 12h
func LoadPolicies(path string) (Policies, error) {
	policies := DefaultPolicies()
	if path == "" {
		return policies, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidPolicy, err)
	}
	return ParsePolicies(data, policies)
}

// ParsePolicies overlays YAML policy definitions on base.
func ParsePolicies(data []byte, base Policies) (Policies, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Join(ErrInvalidPolicy, err)
	}

	out := make(Policies, len(base)+len(file.Policies))
	for name, p := range base {
		out[name] = p
	}

	for name, override := range file.Policies {
		name = strings.ToLower(strings.TrimSpace(name))
		p := out[name]
		p.Name = name
		if override.Limit != 0 {
			p.Limit = override.Limit
		}
		if override.Window != 0 {
			p.Window = override.Window
		}
		if override.Message != "" {
			p.Message = override.Message
		}
		if override.Description != "" {
			p.Description = override.Description
		}
		if override.Scoped {
			p.Scoped = true
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[name] = p
	}

	return out, nil
}
