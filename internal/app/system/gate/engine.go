package gate

import (
	"net/url"
	"strings"

	"github.com/dalemusser/airodental/internal/app/system/entitlements"
	"github.com/dalemusser/airodental/internal/app/system/routeclass"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// Outcome names the branch a decision took.
type Outcome string

const (
	Continue        Outcome = "continue"
	SignIn          Outcome = "sign_in"
	NeedsOnboarding Outcome = "onboarding"
	NoOrganization  Outcome = "no_organization"
	Denied          Outcome = "denied"
	AfterOnboarding Outcome = "after_onboarding"
)

// ReasonNoActiveOrg is the reason query value on organization-selection redirects.
const ReasonNoActiveOrg = "no_active_org"

// Decision is the result of Decide. Location is empty for Continue.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Continues reports whether the request may proceed.
func (d Decision) Continues() bool { return d.Outcome == Continue }

// Rule is a compiled capability rule.
type Rule struct {
	CapabilityRule
	pattern *routeclass.Pattern
}

// Engine evaluates a validated Policy. It is safe for concurrent use.
type Engine struct {
	policy     Policy
	classifier *routeclass.Classifier
	orgSync    *routeclass.OrgSync
	rules      []Rule
	allowed    map[string]struct{}
}

// New validates p and compiles its patterns.
func New(p Policy) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.withDefaults()

	classifier, err := routeclass.NewClassifier(p.Routes)
	if err != nil {
		return nil, err
	}
	orgSync, err := routeclass.NewOrgSync(p.OrganizationPatterns, p.PersonalAccountPatterns)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		policy:     p,
		classifier: classifier,
		orgSync:    orgSync,
		allowed:    map[string]struct{}{},
	}
	for _, c := range p.Capabilities {
		e.rules = append(e.rules, Rule{CapabilityRule: c, pattern: routeclass.MustCompilePattern(c.Pattern)})
	}

	if o := origin(p.PrimaryURL); o != "" {
		e.allowed[o] = struct{}{}
	}
	if d := strings.TrimSpace(p.Domain); d != "" {
		e.allowed["https://"+strings.ToLower(d)] = struct{}{}
		e.allowed["http://"+strings.ToLower(d)] = struct{}{}
	}
	for _, o := range p.AllowedRedirectOrigins {
		if o := origin(o); o != "" {
			e.allowed[o] = struct{}{}
		}
	}
	return e, nil
}

// Policy returns the effective policy with defaults applied.
func (e *Engine) Policy() Policy { return e.policy }

// Classify returns the route class for path.
func (e *Engine) Classify(path string) routeclass.Class {
	return e.classifier.Classify(path)
}

// RuleFor returns the first capability rule matching path, or nil.
func (e *Engine) RuleFor(path string) *Rule {
	for i := range e.rules {
		if e.rules[i].pattern.Matches(path) {
			return &e.rules[i]
		}
	}
	return nil
}

// OrgSelection reports which organization, if any, path names.
func (e *Engine) OrgSelection(path string) routeclass.Selection {
	return e.orgSync.Resolve(path)
}

// Decide applies the checks in order:
//
//  1. bypass routes continue
//  2. onboarding routes need a user; a finished user with an organization
//     moves on to AfterOnboardingURL
//  3. public and auth-boundary routes continue
//  4. protected routes need a user
//  5. then finished onboarding (when required)
//  6. then an active organization (when required)
//  7. then at least one of the rule's capabilities
//
// originalURL is the absolute URL of the request and becomes redirect_url on
// sign-in redirects.
func (e *Engine) Decide(s entitlements.Session, class routeclass.Class, rule *Rule, originalURL string) Decision {
	p := e.policy

	switch class {
	case routeclass.Bypass:
		return Decision{Outcome: Continue}

	case routeclass.Onboarding:
		if !s.SignedIn() {
			return e.signIn(originalURL)
		}
		if p.RequireOnboarding && s.OnboardingComplete() && s.HasOrganization() {
			return Decision{Outcome: AfterOnboarding, Location: e.target(p.AfterOnboardingURL)}
		}
		return Decision{Outcome: Continue}

	case routeclass.Public, routeclass.AuthBoundary:
		return Decision{Outcome: Continue}
	}

	if !s.SignedIn() {
		return e.signIn(originalURL)
	}
	if p.RequireOnboarding && !s.OnboardingComplete() {
		return Decision{Outcome: NeedsOnboarding, Location: e.target(p.OnboardingURL)}
	}
	if p.RequireOrganization && !s.HasOrganization() {
		loc := urlutil.AddOrSetQueryParams(e.target(p.OrgSelectionURL), map[string]string{
			"reason": ReasonNoActiveOrg,
		})
		return Decision{Outcome: NoOrganization, Location: loc}
	}
	if rule != nil && !s.HasAny(rule.Require...) {
		return e.deny(rule)
	}
	return Decision{Outcome: Continue}
}

func (e *Engine) signIn(originalURL string) Decision {
	loc := e.target(e.policy.SignInURL)
	if ret := e.safeReturn(originalURL); ret != "" {
		loc = urlutil.AddOrSetQueryParams(loc, map[string]string{"redirect_url": ret})
	}
	return Decision{Outcome: SignIn, Location: loc}
}

func (e *Engine) deny(rule *Rule) Decision {
	if rule.Deny == DenyUnauthorized {
		return Decision{Outcome: Denied, Location: e.target(e.policy.UnauthorizedURL)}
	}
	loc := e.target(e.policy.BillingURL)
	if m := strings.TrimSpace(rule.UpgradeMarker); m != "" {
		loc = urlutil.AddOrSetQueryParams(loc, map[string]string{"upgrade_for_" + m: "true"})
	}
	return Decision{Outcome: Denied, Location: loc}
}

// target resolves a configured URL. Satellites send everything to the
// primary app; the primary app keeps relative paths.
func (e *Engine) target(ref string) string {
	if e.policy.IsSatellite {
		return resolveAgainst(e.policy.PrimaryURL, ref)
	}
	return ref
}

// safeReturn returns originalURL if its origin may receive users back.
// With no origins configured every origin is accepted.
func (e *Engine) safeReturn(originalURL string) string {
	if originalURL == "" {
		return ""
	}
	u, err := url.Parse(originalURL)
	if err != nil {
		return ""
	}
	if u.Host == "" {
		// Relative: only meaningful on the primary app.
		if e.policy.IsSatellite || !strings.HasPrefix(u.Path, "/") {
			return ""
		}
		return u.RequestURI()
	}
	if len(e.allowed) == 0 {
		return originalURL
	}
	if _, ok := e.allowed[origin(originalURL)]; ok {
		return originalURL
	}
	if e.policy.IsSatellite {
		return ""
	}
	return u.RequestURI()
}
