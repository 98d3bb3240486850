package worker

import (
	"context"
	"fmt"
	"time"

	"ivr/internal/amqp"
	"ivr/internal/log"
	"ivr/internal/storage"
)

// CallStore is where the worker writes audit records.
type CallStore interface {
	SaveCall(ctx context.Context, rec storage.CallRecord) error
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditWorker persists call audit messages consumed from AMQP.
type AuditWorker struct {
	store     CallStore
	retention time.Duration
}

// NewAuditWorker creates a worker. A zero retention keeps records forever.
func NewAuditWorker(store CallStore, retention time.Duration) *AuditWorker {
	return &AuditWorker{store: store, retention: retention}
}

// HandleCallAudit stores one message. Returning an error requeues it.
func (w *AuditWorker) HandleCallAudit(ctx context.Context, msg *amqp.CallAuditMessage) error {
	rec := storage.CallRecord{
		ID:         msg.ID,
		RequestID:  msg.RequestID,
		Action:     msg.Action,
		Code:       msg.Code,
		Message:    msg.Message,
		Count:      msg.Count,
		Retried:    msg.Retried,
		Period:     msg.Period,
		DurationMs: msg.DurationMs,
		OccurredAt: msg.Timestamp,
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}

	if err := w.store.SaveCall(ctx, rec); err != nil {
		return fmt.Errorf("save call audit: %w", err)
	}

	log.WithComponent(log.ComponentWorker).DebugContext(ctx, "Stored call audit",
		"id", msg.ID,
		"action", msg.Action,
		"code", msg.Code)
	return nil
}

// Prune removes records past the retention window.
func (w *AuditWorker) Prune(ctx context.Context) error {
	if w.retention <= 0 {
		return nil
	}
	n, err := w.store.PruneBefore(ctx, time.Now().Add(-w.retention))
	if err != nil {
		return fmt.Errorf("prune call audit: %w", err)
	}
	if n > 0 {
		log.WithComponent(log.ComponentWorker).InfoContext(ctx, "Pruned call audit records",
			log.FieldOperation, log.OpPrune,
			"count", n,
			"retention", w.retention)
	}
	return nil
}

// RunPruner prunes on every tick until ctx is done.
func (w *AuditWorker) RunPruner(ctx context.Context, interval time.Duration) {
	if w.retention <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Prune(ctx); err != nil {
				log.WithComponent(log.ComponentWorker).ErrorContext(ctx, "Periodic prune failed",
					log.FieldOperation, log.OpPrune,
					log.FieldError, err)
			}
		}
	}
}
