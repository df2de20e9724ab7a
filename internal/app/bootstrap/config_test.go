package bootstrap

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dalemusser/airodental/internal/app/system/entitlements"
	"github.com/dalemusser/airodental/internal/app/system/gate"
)

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example , ,https://b.example,")
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitList = %v, want %v", got, want)
	}
	if splitList("") != nil {
		t.Error("empty value should yield nil")
	}
}

func TestBuildPolicy_Presets(t *testing.T) {
	for _, profile := range []string{gate.ProfileWeb, gate.ProfileLaine, gate.ProfileAdmin, gate.ProfileDocs} {
		t.Run(profile, func(t *testing.T) {
			p, err := buildPolicy(AppConfig{AppProfile: profile})
			if err != nil {
				t.Fatalf("buildPolicy: %v", err)
			}
			if p.Profile != profile {
				t.Errorf("Profile = %q, want %q", p.Profile, profile)
			}
		})
	}
}

func TestBuildPolicy_UnknownProfile(t *testing.T) {
	_, err := buildPolicy(AppConfig{AppProfile: "billing"})
	if !errors.Is(err, gate.ErrInvalidPolicy) {
		t.Errorf("err = %v, want ErrInvalidPolicy", err)
	}
}

func TestBuildPolicy_Overrides(t *testing.T) {
	p, err := buildPolicy(AppConfig{
		AppProfile:             gate.ProfileLaine,
		PrimaryURL:             "https://app.example.com",
		SignInURL:              "https://app.example.com/login",
		AllowedRedirectOrigins: []string{"https://laine.example.com"},
		RequiredCapabilities:   "plan:laine_pro|feature:laine_access",
		UpgradeMarker:          "laine",
	})
	if err != nil {
		t.Fatalf("buildPolicy: %v", err)
	}
	if p.PrimaryURL != "https://app.example.com" || p.SignInURL != "https://app.example.com/login" {
		t.Errorf("URLs not applied: %q %q", p.PrimaryURL, p.SignInURL)
	}
	if len(p.Capabilities) != 1 {
		t.Fatalf("capabilities = %+v", p.Capabilities)
	}
	c := p.Capabilities[0]
	want := []entitlements.Requirement{entitlements.Plan("laine_pro"), entitlements.Feature("laine_access")}
	if !reflect.DeepEqual(c.Require, want) {
		t.Errorf("Require = %v, want %v", c.Require, want)
	}
	if c.UpgradeMarker != "laine" {
		t.Errorf("UpgradeMarker = %q", c.UpgradeMarker)
	}
}

func TestBuildPolicy_CapabilitiesOnWebProfile(t *testing.T) {
	p, err := buildPolicy(AppConfig{AppProfile: gate.ProfileWeb, RequiredCapabilities: "plan:laine_lite"})
	if err != nil {
		t.Fatalf("buildPolicy: %v", err)
	}
	if len(p.Capabilities) == 0 {
		t.Fatal("expected a capability rule over the protected routes")
	}
	for _, c := range p.Capabilities {
		if c.Deny != gate.DenyBilling || len(c.Require) != 1 {
			t.Errorf("rule = %+v", c)
		}
	}
}

func TestBuildPolicy_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  AppConfig
	}{
		{"bad capability", AppConfig{AppProfile: gate.ProfileWeb, RequiredCapabilities: "tier:gold"}},
		{"satellite without primary", AppConfig{AppProfile: gate.ProfileWeb, IsSatellite: true}},
		{"relative redirect origin", AppConfig{AppProfile: gate.ProfileWeb, AllowedRedirectOrigins: []string{"/dashboard"}}},
		{"bad organization pattern", AppConfig{AppProfile: gate.ProfileWeb, OrganizationPatterns: []string{"/orgs/(.*"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildPolicy(tt.cfg); !errors.Is(err, gate.ErrInvalidPolicy) {
				t.Errorf("err = %v, want ErrInvalidPolicy", err)
			}
		})
	}
}
