// Package gate decides, for one request, whether it may continue or must be
// redirected to sign-in, onboarding, organization selection, billing or an
// unauthorized page.
package gate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dalemusser/airodental/internal/app/system/entitlements"
	"github.com/dalemusser/airodental/internal/app/system/routeclass"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// DenyTarget is where a failed capability check sends the user.
type DenyTarget string

const (
	DenyBilling      DenyTarget = "billing"
	DenyUnauthorized DenyTarget = "unauthorized"
)

// CapabilityRule requires at least one of Require for paths matching Pattern.
type CapabilityRule struct {
	Pattern string
	Require []entitlements.Requirement
	Deny    DenyTarget
	// UpgradeMarker, when set, adds upgrade_for_<marker>=true to billing redirects.
	UpgradeMarker string
}

// Policy is the complete gating configuration of one app. Relative URLs are
// resolved against PrimaryURL when IsSatellite is set.
type Policy struct {
	Profile string

	SignInURL   string
	SignUpURL   string
	IsSatellite bool
	Domain      string
	PrimaryURL  string

	// AllowedRedirectOrigins extends the origins a redirect_url may point at.
	// PrimaryURL and Domain are always allowed.
	AllowedRedirectOrigins []string

	OnboardingURL      string
	OrgSelectionURL    string
	AfterOnboardingURL string
	BillingURL         string
	UnauthorizedURL    string

	RequireOnboarding   bool
	RequireOrganization bool

	Routes       routeclass.Rules
	Capabilities []CapabilityRule

	OrganizationPatterns    []string
	PersonalAccountPatterns []string
}

// Defaults for URLs left empty.
const (
	DefaultSignInURL          = "/sign-in"
	DefaultSignUpURL          = "/sign-up"
	DefaultOnboardingURL      = "/onboarding"
	DefaultAfterOnboardingURL = "/dashboard"
	DefaultBillingURL         = "/dashboard/billing"
	DefaultUnauthorizedURL    = "/unauthorized"
)

// ErrInvalidPolicy wraps every validation failure.
var ErrInvalidPolicy = errors.New("invalid gate policy")

// withDefaults fills empty URLs.
func (p Policy) withDefaults() Policy {
	def := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	def(&p.SignInURL, DefaultSignInURL)
	def(&p.SignUpURL, DefaultSignUpURL)
	def(&p.OnboardingURL, DefaultOnboardingURL)
	def(&p.OrgSelectionURL, p.OnboardingURL)
	def(&p.AfterOnboardingURL, DefaultAfterOnboardingURL)
	def(&p.BillingURL, DefaultBillingURL)
	def(&p.UnauthorizedURL, DefaultUnauthorizedURL)
	for i := range p.Capabilities {
		if p.Capabilities[i].Deny == "" {
			p.Capabilities[i].Deny = DenyBilling
		}
	}
	return p
}

// Validate checks the policy after defaults are applied.
func (p Policy) Validate() error {
	p = p.withDefaults()

	if p.IsSatellite {
		if !urlutil.IsValidAbsHTTPURL(p.PrimaryURL) {
			return fmt.Errorf("%w: satellite app requires an absolute primary_url, got %q", ErrInvalidPolicy, p.PrimaryURL)
		}
		if !urlutil.IsValidAbsHTTPURL(resolveAgainst(p.PrimaryURL, p.SignInURL)) {
			return fmt.Errorf("%w: satellite sign-in URL %q does not resolve to an absolute URL", ErrInvalidPolicy, p.SignInURL)
		}
	} else if p.PrimaryURL != "" && !urlutil.IsValidAbsHTTPURL(p.PrimaryURL) {
		return fmt.Errorf("%w: primary_url %q is not an absolute http(s) URL", ErrInvalidPolicy, p.PrimaryURL)
	}

	for _, o := range p.AllowedRedirectOrigins {
		if !urlutil.IsValidAbsHTTPURL(o) {
			return fmt.Errorf("%w: allowed redirect origin %q is not an absolute http(s) URL", ErrInvalidPolicy, o)
		}
	}

	if _, err := routeclass.NewClassifier(p.Routes); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if _, err := routeclass.NewOrgSync(p.OrganizationPatterns, p.PersonalAccountPatterns); err != nil {
		return fmt.Errorf("%w: organization patterns: %v", ErrInvalidPolicy, err)
	}
	for _, c := range p.Capabilities {
		if _, err := routeclass.CompilePattern(c.Pattern); err != nil {
			return fmt.Errorf("%w: capability rule: %v", ErrInvalidPolicy, err)
		}
		if len(c.Require) == 0 {
			return fmt.Errorf("%w: capability rule %q lists no requirements", ErrInvalidPolicy, c.Pattern)
		}
		switch c.Deny {
		case DenyBilling, DenyUnauthorized:
		default:
			return fmt.Errorf("%w: capability rule %q has unknown deny target %q", ErrInvalidPolicy, c.Pattern, c.Deny)
		}
	}
	return nil
}

// resolveAgainst resolves ref against base. An empty base leaves ref as is.
func resolveAgainst(base, ref string) string {
	if base == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// origin returns scheme://host for an absolute URL, or "".
func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
