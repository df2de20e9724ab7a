// Package entitlements models the identity provider's view of a request:
// who is signed in, which organization is active, and which plans, features
// and permissions that context currently holds.
package entitlements

import (
	"fmt"
	"strings"
)

// Kind is the category of a capability.
type Kind string

const (
	KindPlan       Kind = "plan"
	KindFeature    Kind = "feature"
	KindPermission Kind = "permission"
)

// Requirement names one capability, e.g. plan "laine_pro" or permission
// "org:manage_users".
type Requirement struct {
	Kind Kind
	Key  string
}

// Plan, Feature and Permission are shorthands for building requirements.
func Plan(key string) Requirement       { return Requirement{Kind: KindPlan, Key: key} }
func Feature(key string) Requirement    { return Requirement{Kind: KindFeature, Key: key} }
func Permission(key string) Requirement { return Requirement{Kind: KindPermission, Key: key} }

// String renders the requirement in the "kind:key" form accepted by ParseRequirement.
func (r Requirement) String() string {
	return string(r.Kind) + ":" + r.Key
}

// ParseRequirement parses "plan:laine_lite", "feature:laine_access" or
// "permission:org:manage_users". Only the first colon separates kind from key.
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	kind, key, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(key) == "" {
		return Requirement{}, fmt.Errorf("invalid capability %q: want kind:key", s)
	}
	k := Kind(strings.ToLower(strings.TrimSpace(kind)))
	switch k {
	case KindPlan, KindFeature, KindPermission:
	default:
		return Requirement{}, fmt.Errorf("invalid capability %q: unknown kind %q", s, kind)
	}
	return Requirement{Kind: k, Key: strings.TrimSpace(key)}, nil
}

// ParseRequirements parses a list of alternatives separated by "|" or ",".
// An empty string yields no requirements.
func ParseRequirements(s string) ([]Requirement, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' })
	out := make([]Requirement, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			continue
		}
		req, err := ParseRequirement(f)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}
