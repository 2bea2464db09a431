package sync

import (
	"context"
	"time"

	"taskbridge/internal/utils"
	"taskbridge/provider"
	"taskbridge/store"
)

// Calendar is one configured remote calendar/list to reconcile.
type Calendar struct {
	ID     string
	Source store.SyncSource
}

// Options configures an Engine.
type Options struct {
	Calendars     []Calendar
	DefaultListID string

	ActiveInterval time.Duration
	IdleInterval   time.Duration
	BackoffBase    time.Duration
	BatchSize      int

	WindowBack    time.Duration
	WindowForward time.Duration

	SnapshotPath  string
	SnapshotEvery time.Duration
}

// DefaultBatchSize caps one outbox drain when no batch size is configured.
const DefaultBatchSize = 50

// Engine bundles the sync components over one store and provider client and
// exposes the operations callers drive: pull, push batch, conflict listing
// and resolution, and local mutations that feed the outbox.
type Engine struct {
	store     *store.Store
	client    provider.Client
	opts      Options
	pullers   map[string]*Puller
	pusher    *Pusher
	processor *Processor
	logger    *utils.Logger
}

// NewEngine wires an engine. Outbound pushes target the first configured
// calendar; pulls run against every configured calendar.
func NewEngine(st *store.Store, client provider.Client, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.WindowBack <= 0 {
		opts.WindowBack = DefaultWindowBack
	}
	if opts.WindowForward <= 0 {
		opts.WindowForward = DefaultWindowForward
	}

	e := &Engine{
		store:   st,
		client:  client,
		opts:    opts,
		pullers: make(map[string]*Puller),
		logger:  utils.GetLogger(),
	}

	pushCalendar := ""
	for _, cal := range opts.Calendars {
		puller := NewPuller(st, client, cal.Source, opts.DefaultListID)
		puller.SetWindow(opts.WindowBack, opts.WindowForward)
		e.pullers[cal.ID] = puller
		if pushCalendar == "" {
			pushCalendar = cal.ID
		}
	}

	e.pusher = NewPusher(st, client, pushCalendar)
	e.processor = NewProcessor(st, e.pusher, opts.BackoffBase, opts.IdleInterval)
	return e
}

// Store exposes the underlying store for status reporting.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Calendars returns the configured calendars.
func (e *Engine) Calendars() []Calendar {
	return e.opts.Calendars
}

// RunPull performs one pull pass over the given calendar.
func (e *Engine) RunPull(ctx context.Context, calendarID string) (*PullStats, error) {
	puller, ok := e.pullers[calendarID]
	if !ok {
		return &PullStats{}, &store.StoreError{Op: "RunPull", EntityID: calendarID, Err: store.ErrNotFound}
	}
	return puller.RunPull(ctx, calendarID)
}

// RunPushBatch drains up to batchSize pending outbox entries. A
// non-positive batchSize uses the configured default.
func (e *Engine) RunPushBatch(ctx context.Context, batchSize int) (*DrainStats, error) {
	if batchSize <= 0 {
		batchSize = e.opts.BatchSize
	}
	return e.processor.Drain(ctx, batchSize)
}

// ListOpenConflicts returns open conflicts oldest-first.
func (e *Engine) ListOpenConflicts(limit int) ([]store.Conflict, error) {
	return e.store.ListOpenConflicts(limit)
}

// ResolveConflict applies an explicit resolution choice. keep_local also
// enqueues an outbound upsert so the kept local state is actually
// re-pushed.
func (e *Engine) ResolveConflict(id int64, choice store.ConflictChoice) (*store.Conflict, error) {
	c, err := e.store.ResolveConflict(id, choice)
	if err != nil {
		return nil, err
	}

	if choice == store.ChoiceKeepLocal {
		if err := e.enqueueItem(c.ItemID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CreateItem stores a new locally-created item and queues its delivery.
func (e *Engine) CreateItem(item *store.Item) error {
	if item.ListID == "" {
		item.ListID = e.opts.DefaultListID
	}
	item.SyncState = store.SyncStateDirty
	item.SyncStatus = store.SyncStatusPending

	if err := e.store.CreateItem(item); err != nil {
		return err
	}
	return e.enqueueItem(item.ID)
}

// UpdateItem saves a local edit, marks the item dirty and queues its
// delivery. Items flagged conflict keep that flag until resolved.
func (e *Engine) UpdateItem(item *store.Item) error {
	if item.SyncState != store.SyncStateConflict {
		item.SyncState = store.SyncStateDirty
		item.SyncStatus = store.SyncStatusPending
	}

	if err := e.store.UpdateItem(item); err != nil {
		return err
	}
	return e.enqueueItem(item.ID)
}

// CancelItem marks an item cancelled and queues the remote cancellation.
// Cancellation is a status transition; the row is never removed.
func (e *Engine) CancelItem(id string) error {
	item, err := e.store.GetItem(id)
	if err != nil {
		return err
	}

	item.Status = store.StatusCancelled
	if item.SyncState != store.SyncStateConflict {
		item.SyncState = store.SyncStateDirty
		item.SyncStatus = store.SyncStatusPending
	}

	if err := e.store.UpdateItem(item); err != nil {
		return err
	}
	return e.enqueueItem(id)
}

// MarkActive extends a calendar's active window so the scheduler polls at
// the short cadence until it lapses.
func (e *Engine) MarkActive(calendarID string, until time.Time) error {
	return e.store.SetCursorActiveWindow(calendarID, until)
}

func (e *Engine) enqueueItem(itemID string) error {
	item, err := e.store.GetItem(itemID)
	if err != nil {
		return err
	}

	patch := Patch{
		Title:       &item.Title,
		Description: &item.Description,
		DueAt:       item.DueAt,
		DurationMin: &item.DurationMin,
	}
	return e.store.EnqueueOutbox(store.EntityItem, itemID, store.OpUpsert, patch.Encode())
}

// Stats summarizes the engine's durable state for status reporting.
type Stats struct {
	ItemsByState  map[store.SyncState]int
	OpenConflicts int
	PendingOutbox int
	Cursors       []store.SyncCursor
}

// Stats collects current sync statistics.
func (e *Engine) Stats() (*Stats, error) {
	byState, err := e.store.CountItemsBySyncState()
	if err != nil {
		return nil, err
	}

	conflicts, err := e.store.ListOpenConflicts(0)
	if err != nil {
		return nil, err
	}

	pending, err := e.store.CountPendingOutbox()
	if err != nil {
		return nil, err
	}

	cursors, err := e.store.ListCursors()
	if err != nil {
		return nil, err
	}

	return &Stats{
		ItemsByState:  byState,
		OpenConflicts: len(conflicts),
		PendingOutbox: pending,
		Cursors:       cursors,
	}, nil
}
