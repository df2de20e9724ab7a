package routeclass

// OrgSync recognises URLs that name an organization (":slug" or ":id") or
// the personal account, so the active context can follow the address bar.
type OrgSync struct {
	organization []*Pattern
	personal     []*Pattern
}

// Selection is what a path selects.
type Selection struct {
	Matched  bool
	Personal bool
	// Organization is the captured slug or id; empty for personal URLs.
	Organization string
}

// NewOrgSync compiles both pattern lists.
func NewOrgSync(organizationPatterns, personalPatterns []string) (*OrgSync, error) {
	org, err := CompilePatterns(organizationPatterns)
	if err != nil {
		return nil, err
	}
	personal, err := CompilePatterns(personalPatterns)
	if err != nil {
		return nil, err
	}
	return &OrgSync{organization: org, personal: personal}, nil
}

// Resolve checks personal patterns first so "/dashboard/user/..." is not
// mistaken for an organization slug.
func (s *OrgSync) Resolve(path string) Selection {
	if s == nil {
		return Selection{}
	}
	if MatchAny(s.personal, path) {
		return Selection{Matched: true, Personal: true}
	}
	for _, p := range s.organization {
		params, ok := p.Params(path)
		if !ok {
			continue
		}
		if v := params["slug"]; v != "" {
			return Selection{Matched: true, Organization: v}
		}
		if v := params["id"]; v != "" {
			return Selection{Matched: true, Organization: v}
		}
		return Selection{Matched: true}
	}
	return Selection{}
}
