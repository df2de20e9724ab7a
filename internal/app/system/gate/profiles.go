package gate

import (
	"fmt"
	"strings"

	"github.com/dalemusser/airodental/internal/app/system/entitlements"
	"github.com/dalemusser/airodental/internal/app/system/routeclass"
)

// App profiles. One process serves exactly one.
const (
	ProfileWeb   = "web"
	ProfileLaine = "laine"
	ProfileAdmin = "admin"
	ProfileDocs  = "docs"
)

// DefaultPrimaryURL is the primary app satellites defer to.
const DefaultPrimaryURL = "https://app.airodental.com"

// Operational endpoints every profile serves without a session.
var operationalRoutes = []string{"/health", "/metrics"}

// Preset returns the built-in policy for profile.
func Preset(profile string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(profile)) {
	case ProfileWeb:
		return webPreset(), nil
	case ProfileLaine:
		return lainePreset(), nil
	case ProfileAdmin:
		return permissionPreset(ProfileAdmin, "system:admin:access"), nil
	case ProfileDocs:
		return permissionPreset(ProfileDocs, "system:docs:access"), nil
	}
	return Policy{}, fmt.Errorf("%w: unknown app profile %q", ErrInvalidPolicy, profile)
}

// webPreset is the primary app: dashboard pages need a finished onboarding
// and an active organization. API routes authorize inside their handlers.
func webPreset() Policy {
	return Policy{
		Profile:             ProfileWeb,
		SignInURL:           DefaultSignInURL,
		SignUpURL:           DefaultSignUpURL,
		RequireOnboarding:   true,
		RequireOrganization: true,
		Routes: routeclass.Rules{
			Bypass:       append([]string{"/api/webhooks(.*)"}, operationalRoutes...),
			AuthBoundary: []string{"/sign-in(.*)", "/sign-up(.*)"},
			Onboarding:   []string{"/onboarding(.*)"},
			Public:       []string{"/", "/unauthorized"},
			Protected:    []string{"/dashboard(.*)"},
		},
		OrganizationPatterns: []string{
			"/dashboard/:slug",
			"/dashboard/:slug/(.*)",
			"/dashboard/organization/(.*)",
		},
		PersonalAccountPatterns: []string{"/dashboard/user/(.*)"},
	}
}

// lainePreset is a satellite whose dashboard needs a Laine plan or the
// laine_access feature. Users without one are sent to billing on the
// primary app.
func lainePreset() Policy {
	return Policy{
		Profile:             ProfileLaine,
		IsSatellite:         true,
		PrimaryURL:          DefaultPrimaryURL,
		RequireOrganization: true,
		Routes: routeclass.Rules{
			Bypass:    operationalRoutes,
			Public:    []string{"/"},
			Protected: []string{"/(.*)"},
		},
		Capabilities: []CapabilityRule{{
			Pattern: "/dashboard(.*)",
			Require: []entitlements.Requirement{
				entitlements.Plan("laine_lite"),
				entitlements.Plan("laine_pro"),
				entitlements.Feature("laine_access"),
			},
			Deny: DenyBilling,
		}},
	}
}

// permissionPreset covers satellites where every page needs one
// instance-level permission and failures go to the unauthorized page.
func permissionPreset(profile, permission string) Policy {
	return Policy{
		Profile:     profile,
		IsSatellite: true,
		PrimaryURL:  DefaultPrimaryURL,
		Routes: routeclass.Rules{
			Bypass:    operationalRoutes,
			Protected: []string{"/(.*)"},
		},
		Capabilities: []CapabilityRule{{
			Pattern: "/(.*)",
			Require: []entitlements.Requirement{entitlements.Permission(permission)},
			Deny:    DenyUnauthorized,
		}},
	}
}

// OverrideRequirements replaces the alternatives of every capability rule.
// When the policy has no rule, one is added covering all protected routes
// with a billing denial.
func (p *Policy) OverrideRequirements(reqs []entitlements.Requirement) {
	if len(reqs) == 0 {
		return
	}
	if len(p.Capabilities) == 0 {
		for _, pat := range p.Routes.Protected {
			p.Capabilities = append(p.Capabilities, CapabilityRule{Pattern: pat, Deny: DenyBilling})
		}
	}
	for i := range p.Capabilities {
		p.Capabilities[i].Require = append([]entitlements.Requirement(nil), reqs...)
	}
}

// SetUpgradeMarker sets the billing upgrade marker on every rule.
func (p *Policy) SetUpgradeMarker(marker string) {
	for i := range p.Capabilities {
		p.Capabilities[i].UpgradeMarker = marker
	}
}
