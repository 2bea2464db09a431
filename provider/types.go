package provider

import "time"

// Event statuses as reported by the remote provider.
const (
	EventConfirmed = "confirmed"
	EventCancelled = "cancelled"
)

// Event is one remote calendar/task record as returned by a provider.
type Event struct {
	ID          string    // provider-assigned stable id
	UID         string    // iCalendar-style stable UID
	Etag        string    // opaque revision tag for optimistic concurrency
	Title       string
	Description string
	StartAt     *time.Time
	DurationMin int
	Status      string    // EventConfirmed or EventCancelled
	Updated     time.Time // remote last-modified timestamp
	LocalRef    string    // back-reference to the local item id, if the record was created by us
}

// Cancelled reports whether the record is a cancellation.
func (e *Event) Cancelled() bool {
	return e.Status == EventCancelled
}

// EventPage is one page of a listing. NextSyncToken is only populated on the
// final page of a sequence.
type EventPage struct {
	Events        []Event
	NextPageToken string
	NextSyncToken string
}

// ListQuery selects either incremental listing (SyncToken set) or a full
// windowed listing (WindowStart/WindowEnd set, SyncToken empty).
type ListQuery struct {
	CalendarID  string
	SyncToken   string
	PageToken   string
	WindowStart time.Time
	WindowEnd   time.Time
}

// EventPayload is the outbound representation of a local item.
type EventPayload struct {
	Title       string
	Description string
	StartAt     *time.Time
	DurationMin int
	UID         string
	LocalRef    string
}
