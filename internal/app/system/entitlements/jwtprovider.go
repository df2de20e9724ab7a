package entitlements

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCookieName is the cookie the identity provider stores its session token in.
const DefaultCookieName = "__session"

// ErrMalformedClaims is returned when a verified token lacks a usable subject
// or carries claims of the wrong shape.
var ErrMalformedClaims = errors.New("entitlements: malformed session claims")

// JWTProvider verifies RS256 session tokens issued by the identity provider
// and turns their claims into a Session. It performs no network calls.
//
// Recognized claims:
//
//	sub              user id
//	org_id           active organization id
//	org_permissions  permissions within the active organization
//	permissions      instance-level permissions (e.g. system:admin:access)
//	pla / fea        comma lists of plans / features, "o:" org-scoped, "u:" user-scoped
//	metadata         public metadata; metadata.onboardingComplete gates onboarding
type JWTProvider struct {
	key               *rsa.PublicKey
	cookieName        string
	authorizedParties []string
	parser            *jwt.Parser
}

// NewJWTProvider parses the PEM-encoded public key. authorizedParties, when
// non-empty, restricts the token's azp claim to those origins.
func NewJWTProvider(publicKeyPEM, cookieName string, authorizedParties []string) (*JWTProvider, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse session public key: %w", err)
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &JWTProvider{
		key:               key,
		cookieName:        cookieName,
		authorizedParties: authorizedParties,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
	}, nil
}

// Load returns an anonymous session when no token is present. Any
// verification problem also yields an anonymous session, plus the error.
func (p *JWTProvider) Load(r *http.Request) (Session, error) {
	raw := tokenFromRequest(r, p.cookieName)
	if raw == "" {
		return Session{}, nil
	}

	claims := jwt.MapClaims{}
	if _, err := p.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return p.key, nil
	}); err != nil {
		return Session{}, fmt.Errorf("verify session token: %w", err)
	}

	if len(p.authorizedParties) > 0 {
		azp, _ := claims["azp"].(string)
		if azp != "" && !slices.Contains(p.authorizedParties, azp) {
			return Session{}, fmt.Errorf("verify session token: unauthorized party %q", azp)
		}
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Session{}, ErrMalformedClaims
	}
	orgID, err := optionalString(claims, "org_id")
	if err != nil {
		return Session{}, err
	}
	orgPerms, err := stringList(claims, "org_permissions")
	if err != nil {
		return Session{}, err
	}
	perms, err := stringList(claims, "permissions")
	if err != nil {
		return Session{}, err
	}
	plans, err := optionalString(claims, "pla")
	if err != nil {
		return Session{}, err
	}
	features, err := optionalString(claims, "fea")
	if err != nil {
		return Session{}, err
	}
	if md, ok := claims["metadata"]; ok {
		if _, isMap := md.(map[string]any); !isMap {
			return Session{}, ErrMalformedClaims
		}
	}

	g := grantSet{
		plans:       scopedSet(plans, orgID != ""),
		features:    scopedSet(features, orgID != ""),
		permissions: make(map[string]struct{}, len(orgPerms)+len(perms)),
	}
	if orgID != "" {
		for _, perm := range orgPerms {
			g.permissions[perm] = struct{}{}
		}
	}
	for _, perm := range perms {
		g.permissions[perm] = struct{}{}
	}

	return NewSession(sub, orgID, map[string]any(claims), g.has), nil
}

type grantSet struct {
	plans       map[string]struct{}
	features    map[string]struct{}
	permissions map[string]struct{}
}

func (g grantSet) has(r Requirement) bool {
	var set map[string]struct{}
	switch r.Kind {
	case KindPlan:
		set = g.plans
	case KindFeature:
		set = g.features
	case KindPermission:
		set = g.permissions
	}
	_, ok := set[r.Key]
	return ok
}

// scopedSet reads "o:pro,u:free,beta". With an active organization only
// org-scoped and unscoped entries apply, otherwise user-scoped and unscoped.
func scopedSet(list string, orgActive bool) map[string]struct{} {
	out := map[string]struct{}{}
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		scope, key, scoped := strings.Cut(item, ":")
		if !scoped {
			out[item] = struct{}{}
			continue
		}
		if (scope == "o" && orgActive) || (scope == "u" && !orgActive) {
			out[key] = struct{}{}
		}
	}
	return out
}

func optionalString(claims jwt.MapClaims, key string) (string, error) {
	v, ok := claims[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrMalformedClaims
	}
	return s, nil
}

func stringList(claims jwt.MapClaims, key string) ([]string, error) {
	v, ok := claims[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, ErrMalformedClaims
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, ErrMalformedClaims
		}
		out = append(out, s)
	}
	return out, nil
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}
