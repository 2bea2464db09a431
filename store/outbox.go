package store

import (
	"database/sql"
	"errors"
	"strconv"
	"time"
)

const outboxColumns = `
	id, entity_type, entity_id, operation, payload, attempts, last_error,
	next_retry_at, processed_at, created_at`

// EnqueueOutbox records a pending outbound mutation. A second identical
// pending mutation for the same (entity_type, entity_id, operation)
// coalesces into the existing entry: the payload snapshot is replaced while
// creation time, attempt count and backoff schedule are preserved.
func (s *Store) EnqueueOutbox(entityType, entityID, operation, payload string) error {
	_, err := s.db.Exec(`
		INSERT INTO outbox (entity_type, entity_id, operation, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id, operation) WHERE processed_at IS NULL
		DO UPDATE SET payload = excluded.payload
	`, entityType, entityID, operation, nullString(payload), time.Now().Unix())
	return storeErr("EnqueueOutbox", entityID, err)
}

// DueOutboxEntries returns unprocessed entries whose next_retry_at is NULL
// or has passed, in FIFO creation order, capped at limit.
func (s *Store) DueOutboxEntries(now time.Time, limit int) ([]OutboxEntry, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox
		WHERE processed_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at ASC, id ASC`
	args := []any{now.Unix()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, storeErr("DueOutboxEntries", "", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		e, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, storeErr("DueOutboxEntries", "", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("DueOutboxEntries", "", err)
	}
	return entries, nil
}

// GetOutboxEntry retrieves an outbox entry by id.
func (s *Store) GetOutboxEntry(id int64) (*OutboxEntry, error) {
	row := s.db.QueryRow(`SELECT `+outboxColumns+` FROM outbox WHERE id = ?`, id)
	e, err := scanOutboxEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr("GetOutboxEntry", strconv.FormatInt(id, 10), ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("GetOutboxEntry", strconv.FormatInt(id, 10), err)
	}
	return e, nil
}

// MarkOutboxProcessed stamps an entry processed, recording an optional
// terminal error text. Processed entries are kept for audit.
func (s *Store) MarkOutboxProcessed(id int64, errText string) error {
	_, err := s.db.Exec(`
		UPDATE outbox
		SET processed_at = ?, last_error = ?, next_retry_at = NULL
		WHERE id = ?
	`, time.Now().Unix(), nullString(errText), id)
	return storeErr("MarkOutboxProcessed", strconv.FormatInt(id, 10), err)
}

// RescheduleOutbox records a failed delivery attempt: increments the attempt
// counter, stores the error, and sets the next retry time.
func (s *Store) RescheduleOutbox(id int64, errText string, nextRetryAt time.Time) error {
	_, err := s.db.Exec(`
		UPDATE outbox
		SET attempts = attempts + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?
	`, nullString(errText), nextRetryAt.Unix(), id)
	return storeErr("RescheduleOutbox", strconv.FormatInt(id, 10), err)
}

// CountPendingOutbox returns the number of unprocessed entries.
func (s *Store) CountPendingOutbox() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM outbox WHERE processed_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, storeErr("CountPendingOutbox", "", err)
	}
	return n, nil
}

func scanOutboxEntry(row rowScanner) (*OutboxEntry, error) {
	var e OutboxEntry
	var payload, lastError sql.NullString
	var nextRetryAt, processedAt, createdAt sql.NullInt64

	err := row.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Operation, &payload,
		&e.Attempts, &lastError, &nextRetryAt, &processedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	e.Payload = stringValue(payload)
	e.LastError = stringValue(lastError)
	e.NextRetryAt = timeFromNull(nextRetryAt)
	e.ProcessedAt = timeFromNull(processedAt)
	e.CreatedAt = timeValueFromNull(createdAt)

	return &e, nil
}
