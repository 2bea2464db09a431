package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const itemColumns = `
	id, list_id, title, description, due_at, duration_min, status,
	remote_id, remote_etag, remote_uid, remote_updated_at,
	sync_state, sync_status, sync_attempts, last_sync_error, last_synced_at,
	created_at, modified_at`

// CreateItem inserts a new item. A missing ID is assigned a fresh UUID;
// missing sync fields default to a locally created, not yet pushed item.
func (s *Store) CreateItem(item *Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = StatusScheduled
	}
	if item.SyncState == "" {
		item.SyncState = SyncStateDirty
	}
	if item.SyncStatus == "" {
		item.SyncStatus = SyncStatusPending
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.ModifiedAt = now

	_, err := s.db.Exec(`
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID,
		item.ListID,
		item.Title,
		nullString(item.Description),
		timeToNullInt64(item.DueAt),
		item.DurationMin,
		string(item.Status),
		nullString(item.RemoteID),
		nullString(item.RemoteEtag),
		nullString(item.RemoteUID),
		timeToNullInt64(item.RemoteUpdatedAt),
		string(item.SyncState),
		string(item.SyncStatus),
		item.SyncAttempts,
		nullString(item.LastSyncError),
		timeToNullInt64(item.LastSyncedAt),
		item.CreatedAt.Unix(),
		item.ModifiedAt.Unix(),
	)
	return storeErr("CreateItem", item.ID, err)
}

// UpdateItem writes every mutable column of the item and refreshes its
// modification timestamp. Callers mutate the struct and save it back.
func (s *Store) UpdateItem(item *Item) error {
	item.ModifiedAt = time.Now().UTC()

	res, err := s.db.Exec(`
		UPDATE items
		SET list_id = ?, title = ?, description = ?, due_at = ?, duration_min = ?, status = ?,
		    remote_id = ?, remote_etag = ?, remote_uid = ?, remote_updated_at = ?,
		    sync_state = ?, sync_status = ?, sync_attempts = ?, last_sync_error = ?, last_synced_at = ?,
		    modified_at = ?
		WHERE id = ?
	`,
		item.ListID,
		item.Title,
		nullString(item.Description),
		timeToNullInt64(item.DueAt),
		item.DurationMin,
		string(item.Status),
		nullString(item.RemoteID),
		nullString(item.RemoteEtag),
		nullString(item.RemoteUID),
		timeToNullInt64(item.RemoteUpdatedAt),
		string(item.SyncState),
		string(item.SyncStatus),
		item.SyncAttempts,
		nullString(item.LastSyncError),
		timeToNullInt64(item.LastSyncedAt),
		item.ModifiedAt.Unix(),
		item.ID,
	)
	if err != nil {
		return storeErr("UpdateItem", item.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("UpdateItem", item.ID, err)
	}
	if affected == 0 {
		return storeErr("UpdateItem", item.ID, ErrNotFound)
	}
	return nil
}

// GetItem retrieves an item by its local id. Returns ErrNotFound (wrapped)
// if no such item exists.
func (s *Store) GetItem(id string) (*Item, error) {
	row := s.db.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr("GetItem", id, ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("GetItem", id, err)
	}
	return item, nil
}

// GetItemByRemoteID retrieves an item by its remote event id.
func (s *Store) GetItemByRemoteID(remoteID string) (*Item, error) {
	row := s.db.QueryRow(`SELECT `+itemColumns+` FROM items WHERE remote_id = ?`, remoteID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr("GetItemByRemoteID", remoteID, ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("GetItemByRemoteID", remoteID, err)
	}
	return item, nil
}

// ListItems returns all items ordered by due date then creation time.
func (s *Store) ListItems() ([]Item, error) {
	rows, err := s.db.Query(`SELECT ` + itemColumns + ` FROM items ORDER BY due_at IS NULL, due_at ASC, created_at ASC`)
	if err != nil {
		return nil, storeErr("ListItems", "", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storeErr("ListItems", "", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("ListItems", "", err)
	}
	return items, nil
}

// CountItemsBySyncState returns item counts keyed by sync state.
func (s *Store) CountItemsBySyncState() (map[SyncState]int, error) {
	rows, err := s.db.Query(`SELECT sync_state, COUNT(*) FROM items GROUP BY sync_state`)
	if err != nil {
		return nil, storeErr("CountItemsBySyncState", "", err)
	}
	defer rows.Close()

	counts := make(map[SyncState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, storeErr("CountItemsBySyncState", "", err)
		}
		counts[SyncState(state)] = n
	}
	return counts, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanItem.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	var description, remoteID, remoteEtag, remoteUID, lastSyncError sql.NullString
	var dueAt, remoteUpdatedAt, lastSyncedAt, createdAt, modifiedAt sql.NullInt64
	var status, syncState, syncStatus string

	err := row.Scan(
		&item.ID,
		&item.ListID,
		&item.Title,
		&description,
		&dueAt,
		&item.DurationMin,
		&status,
		&remoteID,
		&remoteEtag,
		&remoteUID,
		&remoteUpdatedAt,
		&syncState,
		&syncStatus,
		&item.SyncAttempts,
		&lastSyncError,
		&lastSyncedAt,
		&createdAt,
		&modifiedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Description = stringValue(description)
	item.DueAt = timeFromNull(dueAt)
	item.Status = ItemStatus(status)
	item.RemoteID = stringValue(remoteID)
	item.RemoteEtag = stringValue(remoteEtag)
	item.RemoteUID = stringValue(remoteUID)
	item.RemoteUpdatedAt = timeFromNull(remoteUpdatedAt)
	item.SyncState = SyncState(syncState)
	item.SyncStatus = SyncStatus(syncStatus)
	item.LastSyncError = stringValue(lastSyncError)
	item.LastSyncedAt = timeFromNull(lastSyncedAt)
	item.CreatedAt = timeValueFromNull(createdAt)
	item.ModifiedAt = timeValueFromNull(modifiedAt)

	return &item, nil
}
