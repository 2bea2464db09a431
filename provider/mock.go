package provider

// This file contains a shared in-memory provider used across sync tests.
// It models the remote contract the engine depends on: paginated listings,
// incremental sync tokens, etag preconditions and cancellation records.

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MockClient implements Client against in-memory state.
type MockClient struct {
	mu sync.Mutex

	// Now supplies timestamps for created/updated events. Defaults to
	// time.Now; tests may pin it.
	Now func() time.Time

	// PageSize caps events per listing page. 0 means everything in one page.
	PageSize int

	// FailOnListCall makes the Nth ListEvents call (1-based, counting from
	// the last reset) fail with a 500. 0 disables.
	FailOnListCall int

	// InvalidateToken makes the next token-based listing fail with 410 Gone,
	// then clears itself.
	InvalidateToken bool

	// Forced errors for outbound calls. Checked before any state change.
	CreateErr error
	UpdateErr error
	CancelErr error

	events  map[string][]*Event // calendarID -> events in creation order
	journal map[string][]string // calendarID -> event ids in change order
	idSeq   int
	etagSeq int
	lists   int
}

func init() {
	// Registered so the CLI can run end-to-end without a real backend.
	Register("mock", func(settings map[string]string) (Client, error) {
		return NewMockClient(), nil
	})
}

// NewMockClient creates an empty mock provider.
func NewMockClient() *MockClient {
	return &MockClient{
		Now:     time.Now,
		events:  make(map[string][]*Event),
		journal: make(map[string][]string),
	}
}

// ResetListCalls restarts the ListEvents call counter used by FailOnListCall.
func (m *MockClient) ResetListCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = 0
	m.FailOnListCall = 0
}

// AddRemoteEvent seeds an event as if it had been created remotely, and
// returns a snapshot of the stored record.
func (m *MockClient) AddRemoteEvent(calendarID string, ev Event) Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := ev
	if stored.ID == "" {
		stored.ID = m.nextID()
	}
	if stored.UID == "" {
		stored.UID = stored.ID + "-uid"
	}
	if stored.Etag == "" {
		stored.Etag = m.nextEtag()
	}
	if stored.Status == "" {
		stored.Status = EventConfirmed
	}
	if stored.Updated.IsZero() {
		stored.Updated = m.Now().UTC()
	}

	m.events[calendarID] = append(m.events[calendarID], &stored)
	m.journal[calendarID] = append(m.journal[calendarID], stored.ID)
	return stored
}

// MutateRemoteEvent applies an out-of-band remote edit: the mutation runs on
// the stored record, then the etag and updated timestamp advance and the
// change is journaled for incremental listings.
func (m *MockClient) MutateRemoteEvent(calendarID, eventID string, mutate func(*Event)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := m.find(calendarID, eventID)
	if ev == nil {
		return NewError("MutateRemoteEvent", 404, "event not found").WithEventID(eventID)
	}

	mutate(ev)
	ev.Etag = m.nextEtag()
	ev.Updated = m.Now().UTC()
	m.journal[calendarID] = append(m.journal[calendarID], eventID)
	return nil
}

// RemoteEvent returns a snapshot of a stored event.
func (m *MockClient) RemoteEvent(calendarID, eventID string) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := m.find(calendarID, eventID)
	if ev == nil {
		return Event{}, false
	}
	return *ev, true
}

// ListEvents implements Client.
func (m *MockClient) ListEvents(ctx context.Context, q ListQuery) (*EventPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lists++
	if m.FailOnListCall > 0 && m.lists == m.FailOnListCall {
		return nil, NewError("ListEvents", 500, "injected list failure")
	}

	var ids []string
	if q.SyncToken != "" {
		if m.InvalidateToken {
			m.InvalidateToken = false
			return nil, NewError("ListEvents", 410, "sync token expired")
		}

		offset, err := parseToken(q.SyncToken)
		if err != nil || offset > len(m.journal[q.CalendarID]) {
			return nil, NewError("ListEvents", 410, "sync token invalid")
		}

		seen := make(map[string]bool)
		for _, id := range m.journal[q.CalendarID][offset:] {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	} else {
		for _, ev := range m.events[q.CalendarID] {
			if ev.StartAt != nil && !q.WindowStart.IsZero() &&
				(ev.StartAt.Before(q.WindowStart) || ev.StartAt.After(q.WindowEnd)) {
				continue
			}
			ids = append(ids, ev.ID)
		}
	}

	page := &EventPage{}
	start := 0
	if q.PageToken != "" {
		n, err := strconv.Atoi(q.PageToken)
		if err != nil {
			return nil, NewError("ListEvents", 400, "bad page token")
		}
		start = n
	}

	end := len(ids)
	if m.PageSize > 0 && start+m.PageSize < end {
		end = start + m.PageSize
	}

	for _, id := range ids[start:end] {
		if ev := m.find(q.CalendarID, id); ev != nil {
			page.Events = append(page.Events, *ev)
		}
	}

	if end < len(ids) {
		page.NextPageToken = strconv.Itoa(end)
	} else {
		page.NextSyncToken = fmt.Sprintf("tok-%d", len(m.journal[q.CalendarID]))
	}
	return page, nil
}

// CreateEvent implements Client.
func (m *MockClient) CreateEvent(ctx context.Context, calendarID string, p EventPayload) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	ev := &Event{
		ID:          m.nextID(),
		UID:         p.UID,
		Etag:        m.nextEtag(),
		Title:       p.Title,
		Description: p.Description,
		StartAt:     p.StartAt,
		DurationMin: p.DurationMin,
		Status:      EventConfirmed,
		Updated:     m.Now().UTC(),
		LocalRef:    p.LocalRef,
	}
	if ev.UID == "" {
		ev.UID = ev.ID + "-uid"
	}

	m.events[calendarID] = append(m.events[calendarID], ev)
	m.journal[calendarID] = append(m.journal[calendarID], ev.ID)

	snapshot := *ev
	return &snapshot, nil
}

// UpdateEvent implements Client. The update is rejected with a 412 when the
// supplied etag does not match the stored revision.
func (m *MockClient) UpdateEvent(ctx context.Context, calendarID, eventID string, p EventPayload, etag string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}

	ev := m.find(calendarID, eventID)
	if ev == nil {
		return nil, NewError("UpdateEvent", 404, "event not found").WithEventID(eventID)
	}
	if etag != "" && etag != ev.Etag {
		return nil, NewError("UpdateEvent", 412, "revision precondition failed").WithEventID(eventID)
	}

	ev.Title = p.Title
	ev.Description = p.Description
	ev.StartAt = p.StartAt
	ev.DurationMin = p.DurationMin
	if p.LocalRef != "" {
		ev.LocalRef = p.LocalRef
	}
	ev.Etag = m.nextEtag()
	ev.Updated = m.Now().UTC()
	m.journal[calendarID] = append(m.journal[calendarID], eventID)

	snapshot := *ev
	return &snapshot, nil
}

// CancelEvent implements Client.
func (m *MockClient) CancelEvent(ctx context.Context, calendarID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CancelErr != nil {
		return m.CancelErr
	}

	ev := m.find(calendarID, eventID)
	if ev == nil {
		return NewError("CancelEvent", 404, "event not found").WithEventID(eventID)
	}
	if ev.Status == EventCancelled {
		return nil
	}

	ev.Status = EventCancelled
	ev.Etag = m.nextEtag()
	ev.Updated = m.Now().UTC()
	m.journal[calendarID] = append(m.journal[calendarID], eventID)
	return nil
}

func (m *MockClient) find(calendarID, eventID string) *Event {
	for _, ev := range m.events[calendarID] {
		if ev.ID == eventID {
			return ev
		}
	}
	return nil
}

func (m *MockClient) nextID() string {
	m.idSeq++
	return fmt.Sprintf("evt-%d", m.idSeq)
}

func (m *MockClient) nextEtag() string {
	m.etagSeq++
	return fmt.Sprintf("r%d", m.etagSeq)
}

func parseToken(token string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(token, "tok-%d", &n); err != nil {
		return 0, err
	}
	return n, nil
}
