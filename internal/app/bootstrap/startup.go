// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	deadletterstore "github.com/dalemusser/airodental/internal/app/store/deadletters"
	"github.com/dalemusser/airodental/internal/app/system/clerkapi"
	"github.com/dalemusser/airodental/internal/app/system/gate"
	"github.com/dalemusser/airodental/internal/app/system/metrics"
	"github.com/dalemusser/airodental/internal/app/system/mirrorsync"
	"github.com/dalemusser/airodental/internal/app/system/ratelimit"
	"github.com/dalemusser/airodental/internal/app/system/timeouts"
	"github.com/dalemusser/airodental/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// The web profile owns the mirror: it builds the webhook syncer and starts
// the dead-letter reconcile worker. Other profiles only gate requests.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})
	t := timeouts.Current()
	logger.Info("request timeouts",
		zap.Duration("ping", t.Ping),
		zap.Duration("short", t.Short),
		zap.Duration("medium", t.Medium),
		zap.Duration("long", t.Long))

	rt := deps.rt
	rt.metrics = metrics.New()
	rt.meta = clerkapi.New(appCfg.ClerkSecretKey, appCfg.ClerkAPIURL, nil)

	if appCfg.AppProfile != gate.ProfileWeb {
		return nil
	}

	limit := appCfg.ActionRateLimit
	if limit <= 0 {
		limit = 10
	}
	rt.actions = ratelimit.New(limit, time.Minute)

	dead := deadletterstore.New(deps.MongoDatabase)
	rt.syncer = mirrorsync.NewSyncer(mirrorStores(deps), rt.meta, dead, deps.Bus, rt.metrics, logger)
	rt.reconciler = workers.NewReconciler(dead, rt.syncer, rt.metrics, logger, appCfg.ReconcileInterval, appCfg.ReconcileMaxAttempts)
	rt.reconciler.Start()
	return nil
}
