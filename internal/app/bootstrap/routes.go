// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	billingfeature "github.com/dalemusser/airodental/internal/app/features/billing"
	healthfeature "github.com/dalemusser/airodental/internal/app/features/health"
	onboardingfeature "github.com/dalemusser/airodental/internal/app/features/onboarding"
	organizationsfeature "github.com/dalemusser/airodental/internal/app/features/organizations"
	subscriptionfeature "github.com/dalemusser/airodental/internal/app/features/subscription"
	upstreamfeature "github.com/dalemusser/airodental/internal/app/features/upstream"
	webhooksfeature "github.com/dalemusser/airodental/internal/app/features/webhooks"
	deadletterstore "github.com/dalemusser/airodental/internal/app/store/deadletters"
	"github.com/dalemusser/airodental/internal/app/system/auth"
	"github.com/dalemusser/airodental/internal/app/system/entitlements"
	"github.com/dalemusser/airodental/internal/app/system/gate"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// Every request passes the session loader and then the gate. Requests the
// gate lets through reach the profile's API routes or, for pages, the UI
// upstream. Only the web profile serves the webhook, organization,
// subscription, billing and onboarding endpoints.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.rt == nil || deps.rt.metrics == nil {
		return nil, errors.New("bootstrap: Startup has not run")
	}
	rt := deps.rt

	policy, err := buildPolicy(appCfg)
	if err != nil {
		return nil, err
	}
	engine, err := gate.New(policy)
	if err != nil {
		logger.Error("gate init failed", zap.Error(err))
		return nil, err
	}

	provider, err := entitlements.NewJWTProvider(appCfg.SessionJWTPublicKey, appCfg.SessionCookieName, appCfg.SessionAuthorizedParties)
	if err != nil {
		logger.Error("session provider init failed", zap.Error(err))
		return nil, err
	}

	pages, err := upstreamfeature.NewHandler(appCfg.UpstreamURL, policy.Profile, logger)
	if err != nil {
		logger.Error("upstream init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	// Global middleware: load the session, then gate the request.
	r.Use(auth.NewSessionLoader(provider, logger).Middleware)
	r.Use(gate.NewMiddleware(engine, rt.metrics, logger).Handler)

	// Pages and unmatched paths go upstream. Set before mounting so
	// subrouters inherit it.
	r.NotFound(pages.ServeHTTP)

	// Operational endpoints
	var pg healthfeature.Pinger
	if deps.Postgres != nil {
		pg = deps.Postgres
	}
	healthHandler := healthfeature.NewHandler(deps.MongoClient, pg, policy.Profile, logger)
	if policy.Profile == gate.ProfileWeb {
		healthHandler.DeadLetters = deadletterstore.New(deps.MongoDatabase)
	}
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", rt.metrics.Handler())

	if policy.Profile == gate.ProfileWeb {
		stores := mirrorStores(deps)

		var dedup webhooksfeature.Deduper
		if deps.Deliveries != nil {
			dedup = deps.Deliveries
		}
		webhooksHandler := webhooksfeature.NewHandler(appCfg.WebhookSigningSecret, rt.syncer, dedup, rt.metrics, logger)
		r.Mount("/api/webhooks", webhooksfeature.Routes(webhooksHandler))

		orgHandler := organizationsfeature.NewHandler(stores.Organizations, logger)
		r.Mount("/api/organizations", organizationsfeature.Routes(orgHandler))

		subscriptionfeature.MountRoutes(r, subscriptionfeature.NewHandler())

		// User-triggered writes are rate limited per user. The pages under
		// the same prefixes are not.
		var writeMW []func(http.Handler) http.Handler
		if rt.actions != nil {
			writeMW = append(writeMW, rt.actions.Middleware)
		}

		billingHandler := billingfeature.NewHandler(stores.Organizations, logger)
		r.Mount("/dashboard/billing", billingfeature.Routes(billingHandler, writeMW...))

		onboardingHandler := onboardingfeature.NewHandler(rt.meta, logger)
		r.Mount("/onboarding", onboardingfeature.Routes(onboardingHandler, writeMW...))
	}

	return r, nil
}
