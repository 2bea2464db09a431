package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskbridge/internal/utils"
	"taskbridge/store"
)

// DefaultBackoffBase is the delay after the first failed delivery attempt.
const DefaultBackoffBase = 30 * time.Second

// DrainStats summarizes one outbox drain.
type DrainStats struct {
	Processed int
	Success   int
	Failed    int
}

// Processor drains the outbox in FIFO creation order, dispatching each
// entry to the pusher and rescheduling failures with exponential backoff
// capped at the idle poll interval.
type Processor struct {
	store        *store.Store
	pusher       *Pusher
	backoffBase  time.Duration
	idleInterval time.Duration
	logger       *utils.Logger
}

// NewProcessor creates an outbox processor. idleInterval caps the backoff so
// a permanently failing entry never retries more often than the idle poll
// cadence nor stalls longer than one idle interval.
func NewProcessor(st *store.Store, pusher *Pusher, backoffBase, idleInterval time.Duration) *Processor {
	if backoffBase <= 0 {
		backoffBase = DefaultBackoffBase
	}
	return &Processor{
		store:        st,
		pusher:       pusher,
		backoffBase:  backoffBase,
		idleInterval: idleInterval,
		logger:       utils.GetLogger(),
	}
}

// Drain processes due unprocessed entries, oldest first, capped at
// batchSize. A failure in one entry never blocks the rest of the batch.
func (pr *Processor) Drain(ctx context.Context, batchSize int) (*DrainStats, error) {
	stats := &DrainStats{}

	entries, err := pr.store.DueOutboxEntries(time.Now(), batchSize)
	if err != nil {
		return stats, err
	}

	for i := range entries {
		entry := &entries[i]
		stats.Processed++

		if err := pr.processEntry(ctx, entry); err != nil {
			stats.Failed++
			nextRetry := time.Now().Add(pr.Backoff(entry.Attempts + 1))
			if rescheduleErr := pr.store.RescheduleOutbox(entry.ID, err.Error(), nextRetry); rescheduleErr != nil {
				return stats, rescheduleErr
			}
			pr.logger.Debug("outbox entry %d failed (attempt %d): %v", entry.ID, entry.Attempts+1, err)
			continue
		}

		stats.Success++
	}

	return stats, nil
}

// processEntry delivers one entry. A nil return means the entry is done and
// marked processed; an error return means it was not marked and the caller
// reschedules it.
func (pr *Processor) processEntry(ctx context.Context, entry *store.OutboxEntry) error {
	if entry.EntityType != store.EntityItem {
		// Unknown entity types are terminal; retrying cannot fix them.
		return pr.store.MarkOutboxProcessed(entry.ID, fmt.Sprintf("unknown entity type %q", entry.EntityType))
	}

	item, err := pr.store.GetItem(entry.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		// An orphaned entry must never retry forever.
		pr.logger.Warn("outbox entry %d references missing item %s, dropping", entry.ID, entry.EntityID)
		return pr.store.MarkOutboxProcessed(entry.ID, "entity not found")
	}
	if err != nil {
		return err
	}

	if _, err := pr.pusher.Push(ctx, item); err != nil {
		return err
	}

	// Push either delivered the mutation or flagged the item conflict; both
	// are terminal for this entry.
	note := ""
	if item.SyncState == store.SyncStateConflict {
		note = "revision precondition failed, item flagged conflict"
	}
	return pr.store.MarkOutboxProcessed(entry.ID, note)
}

// Backoff returns the retry delay after n failed attempts:
// min(base * 2^(n-1), idle poll interval).
func (pr *Processor) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}

	d := pr.backoffBase
	for i := 1; i < n; i++ {
		d *= 2
		if pr.idleInterval > 0 && d >= pr.idleInterval {
			return pr.idleInterval
		}
	}
	if pr.idleInterval > 0 && d > pr.idleInterval {
		return pr.idleInterval
	}
	return d
}
