// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/airodental/internal/app/system/deliveries"
	"github.com/dalemusser/airodental/internal/app/system/entitlements"
	"github.com/dalemusser/airodental/internal/app/system/gate"
	"github.com/dalemusser/airodental/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Mirror backends.
const (
	MirrorMongo    = "mongo"
	MirrorPostgres = "postgres"
)

// appConfigKeys defines the configuration keys for AiroDental.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: app_profile, mongo_uri, etc.
//   - Environment variables: AIRODENTAL_APP_PROFILE, AIRODENTAL_MONGO_URI, etc.
//   - Command-line flags: --app_profile, --mongo_uri, etc.
//
// List values are comma separated.
var appConfigKeys = []config.AppKey{
	{Name: "app_profile", Default: gate.ProfileWeb, Desc: "App profile served by this process: web, laine, admin or docs"},

	// Gate overrides (blank keeps the profile preset)
	{Name: "sign_in_url", Default: "", Desc: "Sign-in URL (satellites: absolute or relative to primary_url)"},
	{Name: "sign_up_url", Default: "", Desc: "Sign-up URL"},
	{Name: "is_satellite", Default: false, Desc: "Redirect to the primary app instead of local paths"},
	{Name: "domain", Default: "", Desc: "Public origin of this app (e.g. https://laine.airodental.com)"},
	{Name: "primary_url", Default: "", Desc: "Base URL of the primary app"},
	{Name: "allowed_redirect_origins", Default: "", Desc: "Extra origins a redirect_url may point at"},
	{Name: "organization_patterns", Default: "", Desc: "Path patterns that select an organization from the URL (e.g. /orgs/:slug*)"},
	{Name: "personal_account_patterns", Default: "", Desc: "Path patterns that select the personal account"},
	{Name: "after_onboarding_url", Default: "", Desc: "Where finished onboarding lands"},
	{Name: "required_capabilities", Default: "", Desc: "Replaces the preset's capability alternatives (e.g. plan:laine_pro,feature:laine_access)"},
	{Name: "upgrade_marker", Default: "", Desc: "Adds upgrade_for_<marker>=true to billing redirects"},
	{Name: "upstream_url", Default: "", Desc: "UI upstream for gated page requests (blank serves a placeholder)"},

	// MongoDB
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "airodental", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Mirror storage
	{Name: "mirror_backend", Default: MirrorMongo, Desc: "Mirror storage: 'mongo' or 'postgres'"},
	{Name: "postgres_dsn", Default: "", Desc: "Postgres DSN (required when mirror_backend is postgres)"},

	// Identity provider
	{Name: "webhook_signing_secret", Default: "", Desc: "Webhook signing secret (whsec_...)"},
	{Name: "clerk_secret_key", Default: "", Desc: "Identity provider backend API key"},
	{Name: "clerk_api_url", Default: "", Desc: "Identity provider API URL (blank for the default)"},
	{Name: "session_jwt_public_key", Default: "", Desc: "PEM public key that verifies session tokens"},
	{Name: "session_cookie_name", Default: entitlements.DefaultCookieName, Desc: "Session token cookie name"},
	{Name: "session_authorized_parties", Default: "", Desc: "Origins accepted in the session token's azp claim"},

	// Webhook dedup
	{Name: "redis_addr", Default: "", Desc: "Redis address for webhook delivery dedup (blank disables)"},
	{Name: "delivery_ttl", Default: "72h", Desc: "How long processed delivery ids are remembered"},

	// Plan-change events
	{Name: "kafka_brokers", Default: "", Desc: "Kafka brokers for plan-change events (blank disables)"},
	{Name: "kafka_topic", Default: "", Desc: "Kafka topic for plan-change events"},

	// Identity-provider writes per user per minute
	{Name: "action_rate_limit", Default: 10, Desc: "Subscribe/onboarding requests allowed per user per minute"},

	// Dead-letter reconciliation
	{Name: "reconcile_interval", Default: "1m", Desc: "How often dead-lettered memberships are replayed"},
	{Name: "reconcile_max_attempts", Default: workers.DefaultMaxAttempts, Desc: "Replays before a dead letter is abandoned"},

	// Timeouts (blank keeps the default)
	{Name: "timeout_ping", Default: "", Desc: "Health-check timeout"},
	{Name: "timeout_short", Default: "", Desc: "Single-read timeout"},
	{Name: "timeout_medium", Default: "", Desc: "Single-write timeout"},
	{Name: "timeout_long", Default: "", Desc: "Webhook processing timeout"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, AIRODENTAL_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "AIRODENTAL", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		AppProfile:              strings.ToLower(strings.TrimSpace(appValues.String("app_profile"))),
		SignInURL:               appValues.String("sign_in_url"),
		SignUpURL:               appValues.String("sign_up_url"),
		IsSatellite:             appValues.Bool("is_satellite"),
		Domain:                  appValues.String("domain"),
		PrimaryURL:              appValues.String("primary_url"),
		AllowedRedirectOrigins:  splitList(appValues.String("allowed_redirect_origins")),
		OrganizationPatterns:    splitList(appValues.String("organization_patterns")),
		PersonalAccountPatterns: splitList(appValues.String("personal_account_patterns")),
		AfterOnboardingURL:      appValues.String("after_onboarding_url"),
		RequiredCapabilities:    appValues.String("required_capabilities"),
		UpgradeMarker:           appValues.String("upgrade_marker"),
		UpstreamURL:             appValues.String("upstream_url"),

		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		MirrorBackend: strings.ToLower(strings.TrimSpace(appValues.String("mirror_backend"))),
		PostgresDSN:   appValues.String("postgres_dsn"),

		WebhookSigningSecret:     appValues.String("webhook_signing_secret"),
		ClerkSecretKey:           appValues.String("clerk_secret_key"),
		ClerkAPIURL:              appValues.String("clerk_api_url"),
		SessionJWTPublicKey:      appValues.String("session_jwt_public_key"),
		SessionCookieName:        appValues.String("session_cookie_name"),
		SessionAuthorizedParties: splitList(appValues.String("session_authorized_parties")),

		RedisAddr:   appValues.String("redis_addr"),
		DeliveryTTL: appValues.Duration("delivery_ttl", deliveries.DefaultTTL),

		KafkaBrokers: appValues.String("kafka_brokers"),
		KafkaTopic:   appValues.String("kafka_topic"),

		ActionRateLimit: appValues.Int("action_rate_limit"),

		ReconcileInterval:    appValues.Duration("reconcile_interval", time.Minute),
		ReconcileMaxAttempts: appValues.Int("reconcile_max_attempts"),

		TimeoutPing:   appValues.Duration("timeout_ping", 0),
		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
	}
	if appCfg.MirrorBackend == "" {
		appCfg.MirrorBackend = MirrorMongo
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The gate policy is built and validated here so a bad pattern or a
// satellite without an absolute sign-in URL stops startup. A missing webhook
// signing secret is only logged: the webhook endpoint answers 500 until it
// is configured.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.MirrorBackend {
	case MirrorMongo:
	case MirrorPostgres:
		if appCfg.PostgresDSN == "" {
			return fmt.Errorf("mirror_backend postgres requires postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown mirror_backend %q (want mongo or postgres)", appCfg.MirrorBackend)
	}

	if strings.TrimSpace(appCfg.SessionJWTPublicKey) == "" {
		return fmt.Errorf("session_jwt_public_key is required")
	}

	if _, err := buildPolicy(appCfg); err != nil {
		logger.Error("invalid gate configuration", zap.String("profile", appCfg.AppProfile), zap.Error(err))
		return err
	}

	if appCfg.WebhookSigningSecret == "" && appCfg.AppProfile == gate.ProfileWeb {
		logger.Warn("webhook_signing_secret is not set; webhook deliveries will be rejected with 500")
	}
	if appCfg.ClerkSecretKey == "" && appCfg.AppProfile == gate.ProfileWeb {
		logger.Warn("clerk_secret_key is not set; plan metadata and onboarding writes will fail")
	}
	return nil
}

// buildPolicy resolves the profile preset plus configured overrides into
// one validated gate policy.
func buildPolicy(appCfg AppConfig) (gate.Policy, error) {
	p, err := gate.Preset(appCfg.AppProfile)
	if err != nil {
		return gate.Policy{}, err
	}

	setIf := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	setIf(&p.SignInURL, appCfg.SignInURL)
	setIf(&p.SignUpURL, appCfg.SignUpURL)
	setIf(&p.Domain, appCfg.Domain)
	setIf(&p.PrimaryURL, appCfg.PrimaryURL)
	setIf(&p.AfterOnboardingURL, appCfg.AfterOnboardingURL)
	if appCfg.IsSatellite {
		p.IsSatellite = true
	}
	if len(appCfg.AllowedRedirectOrigins) > 0 {
		p.AllowedRedirectOrigins = appCfg.AllowedRedirectOrigins
	}
	if len(appCfg.OrganizationPatterns) > 0 {
		p.OrganizationPatterns = appCfg.OrganizationPatterns
	}
	if len(appCfg.PersonalAccountPatterns) > 0 {
		p.PersonalAccountPatterns = appCfg.PersonalAccountPatterns
	}

	if strings.TrimSpace(appCfg.RequiredCapabilities) != "" {
		reqs, err := entitlements.ParseRequirements(appCfg.RequiredCapabilities)
		if err != nil {
			return gate.Policy{}, fmt.Errorf("%w: required_capabilities: %v", gate.ErrInvalidPolicy, err)
		}
		p.OverrideRequirements(reqs)
	}
	if m := strings.TrimSpace(appCfg.UpgradeMarker); m != "" {
		p.SetUpgradeMarker(m)
	}

	if err := p.Validate(); err != nil {
		return gate.Policy{}, err
	}
	return p, nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
