package sync

import (
	"context"
	"errors"
	"time"

	"taskbridge/internal/utils"
	"taskbridge/provider"
	"taskbridge/store"
)

// Pusher converts a local item's current state into the corresponding
// remote create/update/cancel call.
type Pusher struct {
	store      *store.Store
	client     provider.Client
	calendarID string
	logger     *utils.Logger
}

// NewPusher creates a pusher targeting one remote calendar.
func NewPusher(st *store.Store, client provider.Client, calendarID string) *Pusher {
	return &Pusher{
		store:      st,
		client:     client,
		calendarID: calendarID,
		logger:     utils.GetLogger(),
	}
}

// Push delivers the item's current state to the remote provider.
//
// An item flagged conflict is never pushed; it is returned unchanged. A
// revision-precondition rejection flags the item conflict and returns
// without error: that outcome is terminal and reportable, not retryable.
// Every other provider error propagates to the caller as retryable.
func (p *Pusher) Push(ctx context.Context, item *store.Item) (*store.Item, error) {
	if item.SyncState == store.SyncStateConflict {
		p.logger.Debug("skipping push of item %s: pending conflict", item.ID)
		return item, nil
	}

	if item.Status == store.StatusCancelled && item.HasRemote() {
		return p.pushCancel(ctx, item)
	}
	if !item.HasRemote() {
		if item.Status == store.StatusCancelled {
			// Cancelled before it ever reached the remote; nothing to deliver.
			return p.markDelivered(item)
		}
		return p.pushCreate(ctx, item)
	}
	if item.SyncState == store.SyncStateDirty {
		return p.pushUpdate(ctx, item)
	}

	return item, nil
}

func (p *Pusher) pushCreate(ctx context.Context, item *store.Item) (*store.Item, error) {
	ev, err := p.client.CreateEvent(ctx, p.calendarID, p.payload(item))
	if err != nil {
		return item, p.recordFailure(item, err)
	}

	now := time.Now().UTC()
	updated := ev.Updated.UTC()
	item.RemoteID = ev.ID
	item.RemoteEtag = ev.Etag
	item.RemoteUID = ev.UID
	item.RemoteUpdatedAt = &updated
	item.SyncState = store.SyncStateSynced
	item.SyncStatus = store.SyncStatusSynced
	item.SyncAttempts = 0
	item.LastSyncError = ""
	item.LastSyncedAt = &now

	if err := p.store.UpdateItem(item); err != nil {
		return item, err
	}
	return item, nil
}

func (p *Pusher) pushUpdate(ctx context.Context, item *store.Item) (*store.Item, error) {
	ev, err := p.client.UpdateEvent(ctx, p.calendarID, item.RemoteID, p.payload(item), item.RemoteEtag)
	if err != nil {
		var perr *provider.Error
		if errors.As(err, &perr) && perr.IsConflict() {
			// The remote moved past our remembered revision. Flag instead of
			// overwriting; resolution needs an explicit decision.
			p.logger.Warn("revision mismatch pushing item %s, flagging conflict", item.ID)
			item.SyncState = store.SyncStateConflict
			item.SyncStatus = store.SyncStatusFailed
			item.LastSyncError = perr.Error()
			if updateErr := p.store.UpdateItem(item); updateErr != nil {
				return item, updateErr
			}
			return item, nil
		}
		return item, p.recordFailure(item, err)
	}

	now := time.Now().UTC()
	updated := ev.Updated.UTC()
	item.RemoteEtag = ev.Etag
	item.RemoteUpdatedAt = &updated
	item.SyncState = store.SyncStateSynced
	item.SyncStatus = store.SyncStatusSynced
	item.SyncAttempts = 0
	item.LastSyncError = ""
	item.LastSyncedAt = &now

	if err := p.store.UpdateItem(item); err != nil {
		return item, err
	}
	return item, nil
}

func (p *Pusher) pushCancel(ctx context.Context, item *store.Item) (*store.Item, error) {
	err := p.client.CancelEvent(ctx, p.calendarID, item.RemoteID)
	if err != nil {
		var perr *provider.Error
		if !errors.As(err, &perr) || !perr.IsNotFound() {
			return item, p.recordFailure(item, err)
		}
		// Already gone remotely; treat as cancelled.
	}

	item.RemoteID = ""
	item.RemoteEtag = ""
	item.RemoteUID = ""
	item.RemoteUpdatedAt = nil
	return p.markDelivered(item)
}

func (p *Pusher) markDelivered(item *store.Item) (*store.Item, error) {
	now := time.Now().UTC()
	item.SyncState = store.SyncStateSynced
	item.SyncStatus = store.SyncStatusSynced
	item.SyncAttempts = 0
	item.LastSyncError = ""
	item.LastSyncedAt = &now

	if err := p.store.UpdateItem(item); err != nil {
		return item, err
	}
	return item, nil
}

// recordFailure stamps the failed attempt on the item and returns the
// original error for the outbox to reschedule.
func (p *Pusher) recordFailure(item *store.Item, pushErr error) error {
	item.SyncStatus = store.SyncStatusFailed
	item.SyncAttempts++
	item.LastSyncError = pushErr.Error()
	if err := p.store.UpdateItem(item); err != nil {
		p.logger.Error("failed to record push failure for item %s: %v", item.ID, err)
	}
	return pushErr
}

func (p *Pusher) payload(item *store.Item) provider.EventPayload {
	return provider.EventPayload{
		Title:       item.Title,
		Description: item.Description,
		StartAt:     item.DueAt,
		DurationMin: item.DurationMin,
		UID:         item.RemoteUID,
		LocalRef:    item.ID,
	}
}
