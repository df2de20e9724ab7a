package entitlements

import "net/http"

// Session is constructed per request from the identity provider's token and is
// never persisted. The zero value is an anonymous session.
type Session struct {
	UserID         string
	OrganizationID string
	Claims         map[string]any

	has func(Requirement) bool
}

// NewSession builds a session around a capability predicate. A nil predicate
// denies everything.
func NewSession(userID, orgID string, claims map[string]any, has func(Requirement) bool) Session {
	return Session{UserID: userID, OrganizationID: orgID, Claims: claims, has: has}
}

// Grants returns a predicate that holds exactly for the listed requirements.
// Handy for fakes in tests and for static configuration.
func Grants(reqs ...Requirement) func(Requirement) bool {
	set := make(map[Requirement]struct{}, len(reqs))
	for _, r := range reqs {
		set[r] = struct{}{}
	}
	return func(r Requirement) bool {
		_, ok := set[r]
		return ok
	}
}

// SignedIn reports whether the session carries a user.
func (s Session) SignedIn() bool { return s.UserID != "" }

// HasOrganization reports whether an organization is active.
func (s Session) HasOrganization() bool { return s.OrganizationID != "" }

// Has evaluates a single capability against the provider's live state.
func (s Session) Has(r Requirement) bool {
	if !s.SignedIn() || s.has == nil {
		return false
	}
	return s.has(r)
}

// HasAny reports whether at least one alternative holds. An empty list holds.
func (s Session) HasAny(reqs ...Requirement) bool {
	if len(reqs) == 0 {
		return true
	}
	for _, r := range reqs {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// OnboardingComplete is true only when claims.metadata.onboardingComplete is
// the boolean true. Strings such as "true" do not count.
func (s Session) OnboardingComplete() bool {
	md, ok := s.Claims["metadata"].(map[string]any)
	if !ok {
		return false
	}
	done, ok := md["onboardingComplete"].(bool)
	return ok && done
}

// Provider loads the session for a request. Implementations return an
// anonymous session together with the error when the token is unusable.
type Provider interface {
	Load(r *http.Request) (Session, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(r *http.Request) (Session, error)

// Load calls f(r).
func (f ProviderFunc) Load(r *http.Request) (Session, error) { return f(r) }
