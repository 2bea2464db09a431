package store

import (
	"database/sql"
	"errors"
	"time"
)

// GetOrCreateCursor loads the sync cursor for a calendar, creating an empty
// one (token-less, which forces a full windowed resync) on first use.
func (s *Store) GetOrCreateCursor(calendarID string) (*SyncCursor, error) {
	cur, err := s.getCursor(calendarID)
	if err == nil {
		return cur, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	_, err = s.db.Exec(`
		INSERT INTO sync_cursors (calendar_id, last_sync_ok) VALUES (?, 1)
	`, calendarID)
	if err != nil {
		return nil, storeErr("GetOrCreateCursor", calendarID, err)
	}

	return &SyncCursor{CalendarID: calendarID, LastSyncOK: true}, nil
}

func (s *Store) getCursor(calendarID string) (*SyncCursor, error) {
	row := s.db.QueryRow(`
		SELECT calendar_id, token, channel_id, channel_expires_at, active_until,
		       last_sync_at, last_sync_ok, last_sync_error
		FROM sync_cursors
		WHERE calendar_id = ?
	`, calendarID)

	var cur SyncCursor
	var token, channelID, lastErr sql.NullString
	var channelExpires, activeUntil, lastSyncAt sql.NullInt64
	var lastOK int

	err := row.Scan(&cur.CalendarID, &token, &channelID, &channelExpires,
		&activeUntil, &lastSyncAt, &lastOK, &lastErr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr("GetCursor", calendarID, ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("GetCursor", calendarID, err)
	}

	cur.Token = stringValue(token)
	cur.ChannelID = stringValue(channelID)
	cur.ChannelExpiresAt = timeFromNull(channelExpires)
	cur.ActiveUntil = timeFromNull(activeUntil)
	cur.LastSyncAt = timeFromNull(lastSyncAt)
	cur.LastSyncOK = lastOK == 1
	cur.LastSyncError = stringValue(lastErr)

	return &cur, nil
}

// SaveCursorToken replaces the continuation token. Called only after a page
// sequence completed with no failures.
func (s *Store) SaveCursorToken(calendarID, token string) error {
	_, err := s.db.Exec(`
		UPDATE sync_cursors SET token = ? WHERE calendar_id = ?
	`, nullString(token), calendarID)
	return storeErr("SaveCursorToken", calendarID, err)
}

// ClearCursorToken drops the continuation token, forcing a full windowed
// resync on the next pull. Used when the provider reports the token
// expired or invalid.
func (s *Store) ClearCursorToken(calendarID string) error {
	_, err := s.db.Exec(`
		UPDATE sync_cursors SET token = NULL WHERE calendar_id = ?
	`, calendarID)
	return storeErr("ClearCursorToken", calendarID, err)
}

// RecordCursorOutcome stamps the result of the last pull pass.
func (s *Store) RecordCursorOutcome(calendarID string, ok bool, errText string) error {
	okInt := 0
	if ok {
		okInt = 1
	}
	_, err := s.db.Exec(`
		UPDATE sync_cursors
		SET last_sync_at = ?, last_sync_ok = ?, last_sync_error = ?
		WHERE calendar_id = ?
	`, time.Now().Unix(), okInt, nullString(errText), calendarID)
	return storeErr("RecordCursorOutcome", calendarID, err)
}

// SetCursorActiveWindow extends the cursor's active window. While the window
// covers the current time the scheduler polls at the short active cadence.
func (s *Store) SetCursorActiveWindow(calendarID string, until time.Time) error {
	if _, err := s.GetOrCreateCursor(calendarID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		UPDATE sync_cursors SET active_until = ? WHERE calendar_id = ?
	`, until.Unix(), calendarID)
	return storeErr("SetCursorActiveWindow", calendarID, err)
}

// SetCursorChannel records the webhook channel identity and expiry for a
// calendar, when the provider supports push notifications.
func (s *Store) SetCursorChannel(calendarID, channelID string, expiresAt *time.Time) error {
	_, err := s.db.Exec(`
		UPDATE sync_cursors SET channel_id = ?, channel_expires_at = ? WHERE calendar_id = ?
	`, nullString(channelID), timeToNullInt64(expiresAt), calendarID)
	return storeErr("SetCursorChannel", calendarID, err)
}

// AnyCursorActiveAt reports whether any calendar's active window covers t.
func (s *Store) AnyCursorActiveAt(t time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sync_cursors WHERE active_until IS NOT NULL AND active_until > ?
	`, t.Unix()).Scan(&n)
	if err != nil {
		return false, storeErr("AnyCursorActiveAt", "", err)
	}
	return n > 0, nil
}

// ListCursors returns all cursors, for status reporting.
func (s *Store) ListCursors() ([]SyncCursor, error) {
	rows, err := s.db.Query(`SELECT calendar_id FROM sync_cursors ORDER BY calendar_id`)
	if err != nil {
		return nil, storeErr("ListCursors", "", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("ListCursors", "", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("ListCursors", "", err)
	}

	var cursors []SyncCursor
	for _, id := range ids {
		cur, err := s.getCursor(id)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, *cur)
	}
	return cursors, nil
}
