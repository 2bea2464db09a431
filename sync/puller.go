package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskbridge/internal/utils"
	"taskbridge/provider"
	"taskbridge/store"
)

// Default full-resync window around now.
const (
	DefaultWindowBack    = 90 * 24 * time.Hour
	DefaultWindowForward = 365 * 24 * time.Hour
)

// PullStats summarizes one pull pass over a calendar.
type PullStats struct {
	Processed  int
	Created    int
	Updated    int
	Cancelled  int
	Conflicts  int
	TokenReset bool
}

// Puller walks a remote calendar's changed records and reconciles them into
// the local store, deferring to conflict detection when the local item has
// unsynced edits.
type Puller struct {
	store         *store.Store
	client        provider.Client
	source        store.SyncSource
	defaultListID string
	windowBack    time.Duration
	windowForward time.Duration
	logger        *utils.Logger
}

// NewPuller creates a puller. New remote records with no local counterpart
// are materialized under defaultListID.
func NewPuller(st *store.Store, client provider.Client, source store.SyncSource, defaultListID string) *Puller {
	return &Puller{
		store:         st,
		client:        client,
		source:        source,
		defaultListID: defaultListID,
		windowBack:    DefaultWindowBack,
		windowForward: DefaultWindowForward,
		logger:        utils.GetLogger(),
	}
}

// SetWindow overrides the full-resync time window.
func (p *Puller) SetWindow(back, forward time.Duration) {
	p.windowBack = back
	p.windowForward = forward
}

// RunPull performs one pull pass over the calendar. The continuation token
// is replaced only after the whole page sequence succeeds; a failed page
// aborts the pass without advancing the cursor, and the pass is retried on
// the next scheduler tick.
//
// When the provider reports the stored token expired, the token is cleared
// and exactly one full windowed resync runs within the same invocation. A
// second invalidation in the same invocation is a hard failure.
func (p *Puller) RunPull(ctx context.Context, calendarID string) (*PullStats, error) {
	stats := &PullStats{}

	cursor, err := p.store.GetOrCreateCursor(calendarID)
	if err != nil {
		return stats, err
	}

	token := cursor.Token
	for attempt := 0; ; attempt++ {
		err = p.pullPages(ctx, calendarID, token, stats)
		if err == nil {
			break
		}

		var perr *provider.Error
		if errors.As(err, &perr) && perr.IsGone() {
			if attempt > 0 || stats.TokenReset {
				err = fmt.Errorf("sync token invalidated again during full resync: %w", err)
				break
			}
			p.logger.Warn("sync token expired for calendar %s, falling back to full resync", calendarID)
			if clearErr := p.store.ClearCursorToken(calendarID); clearErr != nil {
				return stats, clearErr
			}
			stats.TokenReset = true
			token = ""
			continue
		}
		break
	}

	if err != nil {
		if recErr := p.store.RecordCursorOutcome(calendarID, false, err.Error()); recErr != nil {
			p.logger.Error("failed to record pull outcome for %s: %v", calendarID, recErr)
		}
		return stats, err
	}

	if err := p.store.RecordCursorOutcome(calendarID, true, ""); err != nil {
		return stats, err
	}
	return stats, nil
}

// pullPages walks one page sequence in provider-returned order and applies
// every record. The new continuation token is written only on full success.
func (p *Puller) pullPages(ctx context.Context, calendarID, token string, stats *PullStats) error {
	q := provider.ListQuery{CalendarID: calendarID, SyncToken: token}
	if token == "" {
		now := time.Now().UTC()
		q.WindowStart = now.Add(-p.windowBack)
		q.WindowEnd = now.Add(p.windowForward)
	}

	var nextToken string
	for {
		page, err := p.client.ListEvents(ctx, q)
		if err != nil {
			return err
		}

		for _, ev := range page.Events {
			if err := p.applyEvent(ev, stats); err != nil {
				return err
			}
			stats.Processed++
		}

		if page.NextSyncToken != "" {
			nextToken = page.NextSyncToken
		}
		if page.NextPageToken == "" {
			break
		}
		q.PageToken = page.NextPageToken
	}

	if nextToken != "" {
		if err := p.store.SaveCursorToken(calendarID, nextToken); err != nil {
			return err
		}
	}
	return nil
}

// applyEvent reconciles one remote record with the local store.
func (p *Puller) applyEvent(ev provider.Event, stats *PullStats) error {
	item, err := p.resolveLocal(ev)
	if err != nil {
		return err
	}

	if ev.Cancelled() {
		if item == nil {
			// Cancellation for a record we never tracked.
			return nil
		}
		return p.applyCancellation(item, ev, stats)
	}

	if item == nil {
		return p.materialize(ev, stats)
	}

	patch := PatchFromEvent(ev)
	divs := DetectConflicts(item, patch)

	if item.SyncState == store.SyncStateDirty {
		if !p.remoteChanged(item, ev) {
			// Local edits pending against the revision we already synced; the
			// outbox push delivers them. A full resync replaying the unchanged
			// record must not roll the edits back.
			return nil
		}
		if len(divs) > 0 {
			// Both sides changed: record the divergence and leave the item
			// untouched until an explicit resolution.
			persisted, err := p.store.PersistConflicts(item.ID, p.source, divs, patch.Encode())
			if err != nil {
				return err
			}
			stats.Conflicts += len(persisted)
			p.logger.Debug("conflict on item %s: %d diverging fields", item.ID, len(divs))
			return nil
		}
		// Remote changed but content matches local edits; fall through and
		// refresh the remote bookkeeping.
	}

	if len(divs) == 0 && item.RemoteEtag == ev.Etag && item.SyncState == store.SyncStateSynced {
		// Nothing changed on either side.
		return nil
	}

	ApplyPatch(item, patch)
	p.stampRemote(item, ev)
	if err := p.store.UpdateItem(item); err != nil {
		return err
	}
	stats.Updated++
	return nil
}

func (p *Puller) applyCancellation(item *store.Item, ev provider.Event, stats *PullStats) error {
	if item.Status == store.StatusCancelled && item.SyncState == store.SyncStateSynced {
		return nil
	}
	item.Status = store.StatusCancelled
	p.stampRemote(item, ev)
	if err := p.store.UpdateItem(item); err != nil {
		return err
	}
	stats.Cancelled++
	return nil
}

func (p *Puller) materialize(ev provider.Event, stats *PullStats) error {
	item := &store.Item{
		ListID:      p.defaultListID,
		Title:       ev.Title,
		Description: ev.Description,
		DurationMin: ev.DurationMin,
		Status:      store.StatusScheduled,
	}
	if ev.StartAt != nil {
		due := ev.StartAt.UTC()
		item.DueAt = &due
	}
	p.stampRemote(item, ev)

	if err := p.store.CreateItem(item); err != nil {
		return err
	}
	stats.Created++
	return nil
}

// resolveLocal matches a remote record to a local item by its embedded
// back-reference when present, falling back to the remote event id.
func (p *Puller) resolveLocal(ev provider.Event) (*store.Item, error) {
	if ev.LocalRef != "" {
		item, err := p.store.GetItem(ev.LocalRef)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	item, err := p.store.GetItemByRemoteID(ev.ID)
	if err == nil {
		return item, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return nil, err
}

// remoteChanged reports whether the record moved past the revision we last
// synced. The revision tag is the authoritative signal: modification
// timestamps are persisted at second precision, so two revisions landing in
// the same second are indistinguishable by time alone. Timestamps are
// consulted only when neither side carries a tag.
func (p *Puller) remoteChanged(item *store.Item, ev provider.Event) bool {
	if ev.Etag != "" || item.RemoteEtag != "" {
		return ev.Etag != item.RemoteEtag
	}
	if item.RemoteUpdatedAt == nil {
		return !ev.Updated.IsZero()
	}
	return ev.Updated.Unix() > item.RemoteUpdatedAt.Unix()
}

// stampRemote refreshes the item's remote linkage and marks it synced.
func (p *Puller) stampRemote(item *store.Item, ev provider.Event) {
	now := time.Now().UTC()
	updated := ev.Updated.UTC()

	item.RemoteID = ev.ID
	item.RemoteEtag = ev.Etag
	if ev.UID != "" {
		item.RemoteUID = ev.UID
	}
	item.RemoteUpdatedAt = &updated
	item.SyncState = store.SyncStateSynced
	item.SyncStatus = store.SyncStatusSynced
	item.LastSyncError = ""
	item.LastSyncedAt = &now
}
