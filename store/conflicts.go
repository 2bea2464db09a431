package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// FieldDivergence is one detected field-level disagreement between local and
// remote state. Values are normalized snapshots: timestamps as RFC3339 UTC,
// durations as decimal minutes, strings verbatim.
type FieldDivergence struct {
	Field       string
	LocalValue  string
	RemoteValue string
}

const conflictColumns = `
	id, item_id, source, field, local_value, remote_value, remote_patch,
	status, resolution, detected_at, resolved_at`

// PersistConflicts records the given divergences for an item, deduplicating
// against existing open conflicts with an identical (item, source, field,
// local, remote) tuple. Repeated detection of an unchanged divergence
// returns the existing row instead of inserting a duplicate.
func (s *Store) PersistConflicts(itemID string, source SyncSource, divs []FieldDivergence, remotePatch string) ([]Conflict, error) {
	var out []Conflict

	for _, d := range divs {
		existing, err := s.findOpenConflict(itemID, source, d)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			out = append(out, *existing)
			continue
		}

		detectedAt := time.Now().UTC()
		res, err := s.db.Exec(`
			INSERT INTO conflicts (item_id, source, field, local_value, remote_value, remote_patch, status, detected_at)
			VALUES (?, ?, ?, ?, ?, ?, 'open', ?)
		`, itemID, string(source), d.Field, nullString(d.LocalValue), nullString(d.RemoteValue),
			nullString(remotePatch), detectedAt.Unix())
		if err != nil {
			return nil, storeErr("PersistConflicts", itemID, err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return nil, storeErr("PersistConflicts", itemID, err)
		}

		out = append(out, Conflict{
			ID:          id,
			ItemID:      itemID,
			Source:      source,
			Field:       d.Field,
			LocalValue:  d.LocalValue,
			RemoteValue: d.RemoteValue,
			RemotePatch: remotePatch,
			Status:      ConflictOpen,
			DetectedAt:  detectedAt,
		})
	}

	return out, nil
}

func (s *Store) findOpenConflict(itemID string, source SyncSource, d FieldDivergence) (*Conflict, error) {
	row := s.db.QueryRow(`
		SELECT `+conflictColumns+`
		FROM conflicts
		WHERE status = 'open' AND item_id = ? AND source = ? AND field = ?
		  AND COALESCE(local_value, '') = ? AND COALESCE(remote_value, '') = ?
	`, itemID, string(source), d.Field, d.LocalValue, d.RemoteValue)

	c, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("findOpenConflict", itemID, err)
	}
	return c, nil
}

// GetConflict retrieves a conflict by id.
func (s *Store) GetConflict(id int64) (*Conflict, error) {
	row := s.db.QueryRow(`SELECT `+conflictColumns+` FROM conflicts WHERE id = ?`, id)
	c, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr("GetConflict", strconv.FormatInt(id, 10), ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("GetConflict", strconv.FormatInt(id, 10), err)
	}
	return c, nil
}

// ListOpenConflicts returns open conflicts oldest-first, capped at limit.
// A non-positive limit returns all open conflicts.
func (s *Store) ListOpenConflicts(limit int) ([]Conflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM conflicts WHERE status = 'open' ORDER BY detected_at ASC, id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, storeErr("ListOpenConflicts", "", err)
	}
	defer rows.Close()

	var conflicts []Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, storeErr("ListOpenConflicts", "", err)
		}
		conflicts = append(conflicts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("ListOpenConflicts", "", err)
	}
	return conflicts, nil
}

// ResolveConflict applies an explicit resolution choice to an open conflict.
//
// accept_remote parses the remote value per field type, writes it onto the
// item, and stamps the item synced. keep_local marks the item dirty so it
// will be re-pushed, without touching its content. Resolving an already
// resolved conflict is a no-op returning the existing row.
func (s *Store) ResolveConflict(id int64, choice ConflictChoice) (*Conflict, error) {
	if !ValidChoice(choice) {
		return nil, storeErr("ResolveConflict", strconv.FormatInt(id, 10), ErrInvalidChoice)
	}

	c, err := s.GetConflict(id)
	if err != nil {
		return nil, err
	}
	if c.Status == ConflictResolved {
		return c, nil
	}

	item, err := s.GetItem(c.ItemID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	switch choice {
	case ChoiceAcceptRemote:
		if err := applyRemoteValue(item, c.Field, c.RemoteValue); err != nil {
			return nil, storeErr("ResolveConflict", c.ItemID, err)
		}
		item.SyncState = SyncStateSynced
		item.SyncStatus = SyncStatusSynced
		item.SyncAttempts = 0
		item.LastSyncError = ""
		item.LastSyncedAt = &now
	case ChoiceKeepLocal:
		item.SyncState = SyncStateDirty
		item.SyncStatus = SyncStatusPending
		// The remote revision moved past the one we remember. The decision to
		// keep local is explicit, so the re-push must not trip the revision
		// precondition; an empty etag makes it unconditional.
		item.RemoteEtag = ""
	}

	if err := s.UpdateItem(item); err != nil {
		return nil, err
	}

	_, err = s.db.Exec(`
		UPDATE conflicts SET status = 'resolved', resolution = ?, resolved_at = ? WHERE id = ?
	`, string(choice), now.Unix(), id)
	if err != nil {
		return nil, storeErr("ResolveConflict", c.ItemID, err)
	}

	c.Status = ConflictResolved
	c.Resolution = choice
	c.ResolvedAt = &now
	return c, nil
}

// applyRemoteValue parses a normalized remote value snapshot back into the
// item field it belongs to. Unknown fields are rejected.
func applyRemoteValue(item *Item, field, value string) error {
	switch field {
	case FieldTitle:
		item.Title = value
	case FieldDescription:
		item.Description = value
	case FieldDueAt:
		if value == "" {
			item.DueAt = nil
			return nil
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("invalid due_at value %q: %w", value, err)
		}
		t = t.UTC()
		item.DueAt = &t
	case FieldDurationMin:
		if value == "" {
			item.DurationMin = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid duration_min value %q: %w", value, err)
		}
		item.DurationMin = n
	default:
		return fmt.Errorf("unknown conflict field %q", field)
	}
	return nil
}

func scanConflict(row rowScanner) (*Conflict, error) {
	var c Conflict
	var localValue, remoteValue, remotePatch, resolution sql.NullString
	var detectedAt, resolvedAt sql.NullInt64
	var source, status string

	err := row.Scan(&c.ID, &c.ItemID, &source, &c.Field, &localValue, &remoteValue,
		&remotePatch, &status, &resolution, &detectedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	c.Source = SyncSource(source)
	c.Status = ConflictStatus(status)
	c.LocalValue = stringValue(localValue)
	c.RemoteValue = stringValue(remoteValue)
	c.RemotePatch = stringValue(remotePatch)
	c.Resolution = ConflictChoice(stringValue(resolution))
	c.DetectedAt = timeValueFromNull(detectedAt)
	c.ResolvedAt = timeFromNull(resolvedAt)

	return &c, nil
}
