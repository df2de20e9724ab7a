package entitlements

// Capability names reported to the dashboards.
var (
	CatalogPlans    = []string{"laine_lite", "laine_pro"}
	CatalogFeatures = []string{"data_export", "laine_access", "premium_support"}
	// CatalogPermissions maps the reported name to the provider permission key.
	CatalogPermissions = map[string]string{"manage_users": "org:manage_users"}
)

// Capabilities is a snapshot of the catalog evaluated against a session.
type Capabilities struct {
	Plans       map[string]bool `json:"plans"`
	Features    map[string]bool `json:"features"`
	Permissions map[string]bool `json:"permissions"`
}

// Evaluate checks every catalog entry against s at call time.
func Evaluate(s Session) Capabilities {
	c := Capabilities{
		Plans:       make(map[string]bool, len(CatalogPlans)),
		Features:    make(map[string]bool, len(CatalogFeatures)),
		Permissions: make(map[string]bool, len(CatalogPermissions)),
	}
	for _, p := range CatalogPlans {
		c.Plans[p] = s.Has(Plan(p))
	}
	for _, f := range CatalogFeatures {
		c.Features[f] = s.Has(Feature(f))
	}
	for name, key := range CatalogPermissions {
		c.Permissions[name] = s.Has(Permission(key))
	}
	return c
}
