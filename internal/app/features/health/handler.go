package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/airodental/internal/app/system/timeouts"
	"github.com/dalemusser/airodental/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is a secondary store checked alongside MongoDB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DeadLetterCounter reports the membership replay backlog.
type DeadLetterCounter interface {
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// Handler holds dependencies needed for health checks. DeadLetters is set
// only where the webhook receiver runs.
type Handler struct {
	Client      *mongo.Client
	Postgres    Pinger
	DeadLetters DeadLetterCounter
	Profile     string
	Log         *zap.Logger
}

// NewHandler constructs a health Handler with the Mongo client and logger.
// pg may be nil when the mirror lives in MongoDB.
func NewHandler(client *mongo.Client, pg Pinger, profile string, logger *zap.Logger) *Handler {
	return &Handler{
		Client:   client,
		Postgres: pg,
		Profile:  profile,
		Log:      logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Profile  string `json:"profile"`
	Database string `json:"database"`
	Mirror   string `json:"mirror,omitempty"`
	// PendingDeadLetters is informational; a backlog never fails the check.
	PendingDeadLetters *int64 `json:"pendingDeadLetters,omitempty"`
	Message            string `json:"message,omitempty"`
	Error              string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "profile":"web", "database":"connected", "mirror":"connected", "pendingDeadLetters":0 }
//
// On failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Profile:  h.Profile,
		Database: "connected",
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if h.Postgres != nil {
		resp.Mirror = "connected"
		if err := h.Postgres.Ping(ctx); err != nil {
			h.Log.Error("health-check: postgres ping failed", zap.Error(err))
			resp.Status = "error"
			resp.Mirror = "disconnected"
			resp.Message = "Mirror database unavailable"
			resp.Error = err.Error()
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
	}

	if h.DeadLetters != nil {
		n, err := h.DeadLetters.CountByStatus(ctx, models.DeadLetterPending)
		if err != nil {
			h.Log.Warn("health-check: dead letter count failed", zap.Error(err))
		} else {
			resp.PendingDeadLetters = &n
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}
