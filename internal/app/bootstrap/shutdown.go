// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops the reconcile worker, then closes backends in reverse
// order of ConnectDB.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.rt != nil && deps.rt.reconciler != nil {
		deps.rt.reconciler.Stop()
	}
	if deps.rt != nil && deps.rt.actions != nil {
		deps.rt.actions.Stop()
	}
	if deps.Bus != nil {
		if err := deps.Bus.Close(); err != nil {
			logger.Warn("event bus close failed", zap.Error(err))
		}
	}
	if err := deps.Deliveries.Close(); err != nil {
		logger.Warn("redis close failed", zap.Error(err))
	}
	if deps.Postgres != nil {
		deps.Postgres.Close()
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
