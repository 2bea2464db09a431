package store

import "time"

// SyncState tracks whether an item's content agrees with the remote copy.
type SyncState string

const (
	SyncStateSynced   SyncState = "synced"
	SyncStateDirty    SyncState = "dirty"
	SyncStateConflict SyncState = "conflict"
)

// SyncStatus tracks the delivery status of the last outbound attempt.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// ItemStatus is the lifecycle status of an item. Cancellation is a status
// transition, never a row removal.
type ItemStatus string

const (
	StatusScheduled ItemStatus = "scheduled"
	StatusDone      ItemStatus = "done"
	StatusCancelled ItemStatus = "cancelled"
)

// SyncSource identifies the remote channel a change or conflict came from.
// Distinct channels may disagree independently about the same item.
type SyncSource string

const (
	SourceCalendarPull SyncSource = "calendar_pull"
	SourceTaskPull     SyncSource = "task_pull"
	SourceSheetPull    SyncSource = "sheet_pull"
)

// KnownSources lists every valid SyncSource value.
func KnownSources() []SyncSource {
	return []SyncSource{SourceCalendarPull, SourceTaskPull, SourceSheetPull}
}

// Patchable field names. ConflictDetector enumerates exactly these.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDueAt       = "due_at"
	FieldDurationMin = "duration_min"
)

// Item is the locally owned task/meeting entity being synchronized.
// An item with no remote linkage is implicitly "pending create".
type Item struct {
	ID          string
	ListID      string
	Title       string
	Description string
	DueAt       *time.Time
	DurationMin int
	Status      ItemStatus

	// Remote linkage
	RemoteID        string
	RemoteEtag      string
	RemoteUID       string
	RemoteUpdatedAt *time.Time

	// Sync bookkeeping
	SyncState     SyncState
	SyncStatus    SyncStatus
	SyncAttempts  int
	LastSyncError string
	LastSyncedAt  *time.Time

	CreatedAt  time.Time
	ModifiedAt time.Time
}

// HasRemote reports whether the item is linked to a remote event.
func (i *Item) HasRemote() bool {
	return i.RemoteID != ""
}

// SyncCursor holds per-calendar incremental sync state. An empty token
// forces a full windowed resync on the next pull.
type SyncCursor struct {
	CalendarID       string
	Token            string
	ChannelID        string
	ChannelExpiresAt *time.Time
	ActiveUntil      *time.Time
	LastSyncAt       *time.Time
	LastSyncOK       bool
	LastSyncError    string
}

// ActiveAt reports whether the cursor's active window covers the given time.
func (c *SyncCursor) ActiveAt(t time.Time) bool {
	return c.ActiveUntil != nil && c.ActiveUntil.After(t)
}

// ConflictStatus is the lifecycle status of a conflict row.
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
)

// ConflictChoice is an explicit external resolution decision.
type ConflictChoice string

const (
	ChoiceKeepLocal    ConflictChoice = "keep_local"
	ChoiceAcceptRemote ConflictChoice = "accept_remote"
)

// ValidChoice reports whether c is a known resolution choice.
func ValidChoice(c ConflictChoice) bool {
	return c == ChoiceKeepLocal || c == ChoiceAcceptRemote
}

// Conflict records one field-level disagreement between local and remote
// state, awaiting explicit resolution.
type Conflict struct {
	ID          int64
	ItemID      string
	Source      SyncSource
	Field       string
	LocalValue  string
	RemoteValue string
	RemotePatch string
	Status      ConflictStatus
	Resolution  ConflictChoice
	DetectedAt  time.Time
	ResolvedAt  *time.Time
}

// Outbox entity types and operations.
const (
	EntityItem = "item"

	OpUpsert = "upsert"
)

// OutboxEntry is one pending outbound mutation. Entries are kept for audit
// after processing; ProcessedAt is nil while the entry is pending.
type OutboxEntry struct {
	ID          int64
	EntityType  string
	EntityID    string
	Operation   string
	Payload     string
	Attempts    int
	LastError   string
	NextRetryAt *time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
}
