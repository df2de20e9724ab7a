package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/airodental/internal/app/system/metrics"
	"github.com/dalemusser/airodental/internal/app/system/mirrorsync"
	"github.com/dalemusser/airodental/internal/app/system/respond"
	"github.com/dalemusser/airodental/internal/app/system/timeouts"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"
)

// MaxBodyBytes caps the webhook body read before verification.
const MaxBodyBytes = 1 << 20

// Deduper remembers processed delivery ids.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// Handler receives identity-provider webhooks.
type Handler struct {
	wh      *svix.Webhook
	Sync    *mirrorsync.Syncer
	Dedup   Deduper
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

// NewHandler builds the handler. An empty or malformed secret is logged and
// every delivery is answered with 500 until it is fixed. dedup may be nil.
func NewHandler(secret string, sync *mirrorsync.Syncer, dedup Deduper, m *metrics.Metrics, logger *zap.Logger) *Handler {
	h := &Handler{Sync: sync, Dedup: dedup, Metrics: m, Log: logger}
	if secret == "" {
		logger.Error("webhook signing secret is not set; webhook deliveries will fail")
		return h
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		logger.Error("webhook signing secret is invalid; webhook deliveries will fail", zap.Error(err))
		return h
	}
	h.wh = wh
	return h
}

type receivedResponse struct {
	Received  bool   `json:"received"`
	EventType string `json:"eventType"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// ServeClerk handles POST /api/webhooks/clerk.
//
//	200 {"received":true,"eventType":"…"}
//	400 {"error":"Webhook verification failed","details":"…"}
//	400 {"error":"Missing organization_id"}
//	500 {"error":"Failed to process event …","details":"…"}
func (h *Handler) ServeClerk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.wh == nil {
		h.Log.Error("webhook rejected: signing secret not configured")
		h.Metrics.WebhookEvent("unknown", "misconfigured")
		respond.Error(w, http.StatusInternalServerError, "Internal Server Error: Webhook secret not configured.")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		h.reject(w, err)
		return
	}
	if err := h.wh.Verify(body, r.Header); err != nil {
		h.reject(w, err)
		return
	}
	var evt mirrorsync.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		h.reject(w, err)
		return
	}

	d := mirrorsync.Delivery{
		ID:   r.Header.Get("svix-id"),
		Type: evt.Type,
		At:   eventTime(evt, r.Header, start),
	}
	h.Log.Debug("received verified webhook event",
		zap.String("event_type", d.Type),
		zap.String("delivery_id", d.ID),
		zap.ByteString("data", evt.Data))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if h.Dedup != nil {
		seen, err := h.Dedup.Seen(ctx, d.ID)
		if err != nil {
			h.Log.Warn("delivery dedup lookup failed; processing anyway", zap.Error(err))
		} else if seen {
			h.Log.Info("duplicate webhook delivery acknowledged",
				zap.String("event_type", d.Type), zap.String("delivery_id", d.ID))
			h.Metrics.WebhookEvent(d.Type, "duplicate")
			respond.JSON(w, http.StatusOK, receivedResponse{Received: true, EventType: d.Type, Duplicate: true})
			return
		}
	}

	result, err := h.Sync.Apply(ctx, d, evt.Data)
	h.Metrics.ObserveWebhook(d.Type, time.Since(start).Seconds())
	if err != nil {
		var ee *mirrorsync.EventError
		if errors.As(err, &ee) {
			h.Metrics.WebhookEvent(d.Type, "rejected")
			respond.Error(w, http.StatusBadRequest, ee.Msg)
			return
		}
		h.Log.Error("error processing webhook event",
			zap.String("event_type", d.Type),
			zap.String("delivery_id", d.ID),
			zap.Error(err))
		h.Metrics.WebhookEvent(d.Type, "error")
		respond.ErrorDetails(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to process event %s", d.Type), err.Error())
		return
	}

	if h.Dedup != nil {
		if err := h.Dedup.Mark(ctx, d.ID); err != nil {
			h.Log.Warn("delivery dedup mark failed", zap.String("delivery_id", d.ID), zap.Error(err))
		}
	}
	h.Metrics.WebhookEvent(d.Type, result)
	respond.JSON(w, http.StatusOK, receivedResponse{Received: true, EventType: d.Type})
}

func (h *Handler) reject(w http.ResponseWriter, err error) {
	h.Log.Warn("error verifying webhook", zap.Error(err))
	h.Metrics.WebhookEvent("unknown", "invalid_signature")
	respond.ErrorDetails(w, http.StatusBadRequest, "Webhook verification failed", err.Error())
}

// eventTime prefers the event's own timestamp. The delivery header is
// re-stamped on every retry, so it is only used when the body has none.
func eventTime(evt mirrorsync.Event, hdr http.Header, fallback time.Time) time.Time {
	if evt.Timestamp > 0 {
		return time.UnixMilli(evt.Timestamp).UTC()
	}
	ts := hdr.Get("svix-timestamp")
	if ts == "" {
		ts = hdr.Get("webhook-timestamp")
	}
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fallback.UTC()
	}
	return time.Unix(secs, 0).UTC()
}
