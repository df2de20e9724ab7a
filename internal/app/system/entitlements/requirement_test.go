package entitlements

import "testing"

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		in      string
		want    Requirement
		wantErr bool
	}{
		{"plan:laine_lite", Plan("laine_lite"), false},
		{" feature:laine_access ", Feature("laine_access"), false},
		{"permission:org:manage_users", Permission("org:manage_users"), false},
		{"PLAN:pro", Plan("pro"), false},
		{"laine_lite", Requirement{}, true},
		{"role:admin", Requirement{}, true},
		{"plan:", Requirement{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseRequirement(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseRequirements_Alternatives(t *testing.T) {
	reqs, err := ParseRequirements("plan:laine_lite|plan:laine_pro, feature:laine_access")
	if err != nil {
		t.Fatalf("ParseRequirements: %v", err)
	}
	want := []Requirement{Plan("laine_lite"), Plan("laine_pro"), Feature("laine_access")}
	if len(reqs) != len(want) {
		t.Fatalf("got %d requirements, want %d", len(reqs), len(want))
	}
	for i := range want {
		if reqs[i] != want[i] {
			t.Errorf("reqs[%d] = %v, want %v", i, reqs[i], want[i])
		}
	}

	empty, err := ParseRequirements("")
	if err != nil || len(empty) != 0 {
		t.Errorf("empty input: got %v, %v", empty, err)
	}
}

func TestRequirement_String(t *testing.T) {
	if got := Permission("org:manage_users").String(); got != "permission:org:manage_users" {
		t.Errorf("String() = %q", got)
	}
}
