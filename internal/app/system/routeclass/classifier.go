package routeclass

import "fmt"

// Class is the category a request path falls into.
type Class int

const (
	Public Class = iota
	AuthBoundary
	Onboarding
	Protected
	Bypass
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case AuthBoundary:
		return "auth-boundary"
	case Onboarding:
		return "onboarding"
	case Protected:
		return "protected"
	case Bypass:
		return "bypass"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Rules lists the source patterns for each class. Operators keep the lists
// disjoint; overlaps are resolved by evaluation order only.
type Rules struct {
	Bypass       []string
	AuthBoundary []string
	Onboarding   []string
	Public       []string
	Protected    []string
}

type classEntry struct {
	class    Class
	patterns []*Pattern
}

// Classifier evaluates bypass, auth-boundary, onboarding, public and
// protected patterns in that order. The first match wins and unmatched
// paths are public.
type Classifier struct {
	entries []classEntry
}

// NewClassifier compiles every rule.
func NewClassifier(r Rules) (*Classifier, error) {
	c := &Classifier{}
	for _, group := range []struct {
		class Class
		srcs  []string
	}{
		{Bypass, r.Bypass},
		{AuthBoundary, r.AuthBoundary},
		{Onboarding, r.Onboarding},
		{Public, r.Public},
		{Protected, r.Protected},
	} {
		ps, err := CompilePatterns(group.srcs)
		if err != nil {
			return nil, fmt.Errorf("%s routes: %w", group.class, err)
		}
		if len(ps) > 0 {
			c.entries = append(c.entries, classEntry{class: group.class, patterns: ps})
		}
	}
	return c, nil
}

// Classify returns the class for path.
func (c *Classifier) Classify(path string) Class {
	for _, e := range c.entries {
		if MatchAny(e.patterns, path) {
			return e.class
		}
	}
	return Public
}
