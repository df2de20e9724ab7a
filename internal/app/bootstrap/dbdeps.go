// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/airodental/internal/app/store/pgmirror"
	"github.com/dalemusser/airodental/internal/app/system/clerkapi"
	"github.com/dalemusser/airodental/internal/app/system/deliveries"
	"github.com/dalemusser/airodental/internal/app/system/eventbus"
	"github.com/dalemusser/airodental/internal/app/system/metrics"
	"github.com/dalemusser/airodental/internal/app/system/mirrorsync"
	"github.com/dalemusser/airodental/internal/app/system/ratelimit"
	"github.com/dalemusser/airodental/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// Optional backends are nil when not configured. WAFFLE passes DBDeps by
// value, so components built in Startup live behind the runtime pointer.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Postgres   *pgmirror.DB        // set when mirror_backend is postgres
	Deliveries *deliveries.Deduper // set when redis_addr is reachable
	Bus        eventbus.Publisher  // Kafka or Nop

	rt *runtime
}

// runtime holds components built in Startup and stopped in Shutdown.
type runtime struct {
	metrics    *metrics.Metrics
	meta       clerkapi.MetadataWriter
	syncer     *mirrorsync.Syncer
	reconciler *workers.Reconciler
	actions    *ratelimit.Limiter
}
