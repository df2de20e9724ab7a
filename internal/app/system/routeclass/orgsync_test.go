package routeclass

import "testing"

func TestOrgSync_Resolve(t *testing.T) {
	s, err := NewOrgSync(
		[]string{"/dashboard/:slug", "/dashboard/:slug/(.*)"},
		[]string{"/dashboard/user/(.*)"},
	)
	if err != nil {
		t.Fatalf("NewOrgSync: %v", err)
	}

	tests := []struct {
		path string
		want Selection
	}{
		{"/dashboard/acme", Selection{Matched: true, Organization: "acme"}},
		{"/dashboard/acme/members", Selection{Matched: true, Organization: "acme"}},
		{"/dashboard/user/profile", Selection{Matched: true, Personal: true}},
		{"/pricing", Selection{}},
	}
	for _, tc := range tests {
		if got := s.Resolve(tc.path); got != tc.want {
			t.Errorf("Resolve(%q) = %+v, want %+v", tc.path, got, tc.want)
		}
	}
}

func TestOrgSync_Nil(t *testing.T) {
	var s *OrgSync
	if s.Resolve("/dashboard/acme").Matched {
		t.Error("nil OrgSync should match nothing")
	}
}
