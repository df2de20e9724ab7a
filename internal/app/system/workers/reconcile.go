// internal/app/system/workers/reconcile.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/airodental/internal/app/system/metrics"
	"github.com/dalemusser/airodental/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds replays of a single dead letter.
const DefaultMaxAttempts = 20

// batchSize caps letters replayed per tick.
const batchSize = 100

// DeadLetterQueue is the subset of the dead-letter store the worker uses.
type DeadLetterQueue interface {
	ListPending(ctx context.Context, limit int64) ([]models.DeadLetter, error)
	MarkResolved(ctx context.Context, id primitive.ObjectID) error
	MarkAbandoned(ctx context.Context, id primitive.ObjectID, reason string) error
	IncAttempts(ctx context.Context, id primitive.ObjectID, reason string) (int, error)
}

// Replayer applies a dead-lettered membership payload.
type Replayer interface {
	ReplayMembership(ctx context.Context, payload string, at time.Time) (applied bool, reason string, err error)
}

// Reconciler is a background worker that replays membership events whose
// user or organization had not been mirrored when they arrived.
type Reconciler struct {
	queue       DeadLetterQueue
	replay      Replayer
	metrics     *metrics.Metrics
	log         *zap.Logger
	interval    time.Duration
	maxAttempts int
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewReconciler creates a new dead-letter reconcile worker.
//
// Parameters:
//   - queue: the dead-letter store
//   - replay: applies a stored payload (the webhook syncer)
//   - interval: how often to run (e.g., 1 minute)
//   - maxAttempts: failed replays before a letter is abandoned
func NewReconciler(queue DeadLetterQueue, replay Replayer, m *metrics.Metrics, logger *zap.Logger, interval time.Duration, maxAttempts int) *Reconciler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Reconciler{
		queue:       queue,
		replay:      replay,
		metrics:     m,
		log:         logger,
		interval:    interval,
		maxAttempts: maxAttempts,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the background reconcile loop.
func (w *Reconciler) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("dead-letter reconcile worker started",
		zap.Duration("interval", w.interval),
		zap.Int("max_attempts", w.maxAttempts))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *Reconciler) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("dead-letter reconcile worker stopped")
}

func (w *Reconciler) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			w.RunOnce(ctx)
			cancel()
		}
	}
}

// RunOnce replays one batch of pending letters, oldest first.
func (w *Reconciler) RunOnce(ctx context.Context) {
	pending, err := w.queue.ListPending(ctx, batchSize)
	if err != nil {
		w.log.Error("failed to list pending dead letters", zap.Error(err))
		return
	}

	var resolved, abandoned int
	for _, dl := range pending {
		applied, reason, err := w.replay.ReplayMembership(ctx, dl.Payload, dl.EventAt)
		if err != nil {
			reason = err.Error()
		}
		if applied {
			if err := w.queue.MarkResolved(ctx, dl.ID); err != nil {
				w.log.Error("failed to resolve dead letter", zap.String("id", dl.ID.Hex()), zap.Error(err))
				continue
			}
			w.metrics.DeadLetter(models.DeadLetterResolved)
			resolved++
			continue
		}

		attempts, err := w.queue.IncAttempts(ctx, dl.ID, reason)
		if err != nil {
			w.log.Error("failed to record dead letter attempt", zap.String("id", dl.ID.Hex()), zap.Error(err))
			continue
		}
		if attempts >= w.maxAttempts {
			if err := w.queue.MarkAbandoned(ctx, dl.ID, reason); err != nil {
				w.log.Error("failed to abandon dead letter", zap.String("id", dl.ID.Hex()), zap.Error(err))
				continue
			}
			w.log.Warn("dead letter abandoned",
				zap.String("id", dl.ID.Hex()),
				zap.String("delivery_id", dl.DeliveryID),
				zap.String("event_type", dl.EventType),
				zap.Int("attempts", attempts),
				zap.String("reason", reason))
			w.metrics.DeadLetter(models.DeadLetterAbandoned)
			abandoned++
		}
	}

	if resolved > 0 || abandoned > 0 {
		w.log.Info("dead letters reconciled",
			zap.Int("resolved", resolved),
			zap.Int("abandoned", abandoned),
			zap.Int("pending_seen", len(pending)))
	}
}
