// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/airodental/internal/app/store/mirror"
	organizationstore "github.com/dalemusser/airodental/internal/app/store/organizations"
	orgmemberstore "github.com/dalemusser/airodental/internal/app/store/orgmembers"
	"github.com/dalemusser/airodental/internal/app/store/pgmirror"
	userstore "github.com/dalemusser/airodental/internal/app/store/users"
	"github.com/dalemusser/airodental/internal/app/system/deliveries"
	"github.com/dalemusser/airodental/internal/app/system/eventbus"
	"github.com/dalemusser/airodental/internal/app/system/indexes"
	"github.com/dalemusser/airodental/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens MongoDB and every optional backend the config names.
//
// MongoDB and (when selected) Postgres are required; a failure aborts
// startup. Redis dedup is best effort: when it cannot be reached the app
// runs without it and relies on idempotent upserts.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
		Bus:           eventbus.Nop{},
		rt:            &runtime{},
	}

	if appCfg.MirrorBackend == MirrorPostgres {
		pg, err := pgmirror.Open(ctx, appCfg.PostgresDSN)
		if err != nil {
			_ = client.Disconnect(ctx)
			return DBDeps{}, err
		}
		deps.Postgres = pg
		logger.Info("mirror stored in Postgres")
	}

	if appCfg.RedisAddr != "" {
		d, err := deliveries.Connect(ctx, appCfg.RedisAddr, appCfg.DeliveryTTL)
		if err != nil {
			logger.Warn("webhook delivery dedup disabled", zap.String("redis_addr", appCfg.RedisAddr), zap.Error(err))
		} else {
			deps.Deliveries = d
		}
	}

	if appCfg.KafkaBrokers != "" {
		deps.Bus = eventbus.NewKafkaPublisher(appCfg.KafkaBrokers, appCfg.KafkaTopic)
		logger.Info("publishing plan changes", zap.String("brokers", appCfg.KafkaBrokers))
	}

	return deps, nil
}

// EnsureSchema creates MongoDB collections, validators and indexes and,
// when selected, the Postgres mirror tables.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	if deps.Postgres != nil {
		if err := deps.Postgres.EnsureSchema(ctx); err != nil {
			logger.Error("ensure postgres schema failed", zap.Error(err))
			return err
		}
	}
	return nil
}

// mirrorStores returns the configured mirror backend.
func mirrorStores(deps DBDeps) mirror.Stores {
	if deps.Postgres != nil {
		return deps.Postgres.Stores()
	}
	return mirror.Stores{
		Organizations: organizationstore.New(deps.MongoDatabase),
		Users:         userstore.New(deps.MongoDatabase),
		Members:       orgmemberstore.New(deps.MongoDatabase),
	}
}
