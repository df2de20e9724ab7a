// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (AIRODENTAL_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// covers ports, TLS, logging and CORS; everything that decides how one
// AiroDental app gates requests and syncs the mirror lives here.
//
// One process serves exactly one app profile (web, laine, admin, docs).
type AppConfig struct {
	// App profile and gate options. Empty values keep the profile preset.
	AppProfile              string
	SignInURL               string
	SignUpURL               string
	IsSatellite             bool
	Domain                  string
	PrimaryURL              string
	AllowedRedirectOrigins  []string
	OrganizationPatterns    []string
	PersonalAccountPatterns []string
	AfterOnboardingURL      string
	RequiredCapabilities    string // e.g. "plan:laine_lite,plan:laine_pro,feature:laine_access"
	UpgradeMarker           string // adds upgrade_for_<marker>=true to billing redirects

	// UpstreamURL receives page requests that pass the gate. Blank serves a placeholder.
	UpstreamURL string

	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Mirror storage: "mongo" (default) or "postgres"
	MirrorBackend string
	PostgresDSN   string

	// Identity provider
	WebhookSigningSecret     string // svix secret (whsec_...); blank turns webhooks into 500s
	ClerkSecretKey           string
	ClerkAPIURL              string
	SessionJWTPublicKey      string // PEM
	SessionCookieName        string
	SessionAuthorizedParties []string

	// Webhook delivery dedup (Redis). Blank address disables dedup.
	RedisAddr   string
	DeliveryTTL time.Duration

	// Plan-change events (Kafka). Blank brokers disables publishing.
	KafkaBrokers string
	KafkaTopic   string

	// ActionRateLimit caps subscribe and onboarding writes per user per minute.
	ActionRateLimit int

	// Dead-letter reconciliation
	ReconcileInterval    time.Duration
	ReconcileMaxAttempts int

	// Request timeouts; zero keeps the default.
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
