package sync

import (
	"context"
	"testing"
	"time"

	"taskbridge/provider"
	"taskbridge/store"
)

// Helper function to create a store, mock provider and processor for tests
func createProcessorTest(t *testing.T) (*store.Store, *provider.MockClient, *Processor) {
	t.Helper()

	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	mock := provider.NewMockClient()
	pusher := NewPusher(s, mock, testCalendar)
	processor := NewProcessor(s, pusher, 30*time.Second, 15*time.Minute)
	return s, mock, processor
}

func enqueueItem(t *testing.T, s *store.Store, item *store.Item) {
	t.Helper()
	if err := s.EnqueueOutbox(store.EntityItem, item.ID, store.OpUpsert, "{}"); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
}

// TestDrainDelivers tests draining a pending local creation
func TestDrainDelivers(t *testing.T) {
	s, mock, processor := createProcessorTest(t)

	item := createDirtyItem(t, s, "queued")
	enqueueItem(t, s, item)

	stats, err := processor.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if stats.Processed != 1 || stats.Success != 1 || stats.Failed != 0 {
		t.Errorf("Unexpected drain stats: %+v", stats)
	}

	got, _ := s.GetItem(item.ID)
	if !got.HasRemote() || got.SyncState != store.SyncStateSynced {
		t.Errorf("Expected item delivered, got %+v", got)
	}
	if _, ok := mock.RemoteEvent(testCalendar, got.RemoteID); !ok {
		t.Error("Expected remote event created")
	}

	n, _ := s.CountPendingOutbox()
	if n != 0 {
		t.Errorf("Expected empty outbox, got %d pending", n)
	}
}

// TestDrainOrphanIsTerminal tests that an entry referencing a missing item
// is marked processed instead of retrying forever
func TestDrainOrphanIsTerminal(t *testing.T) {
	s, _, processor := createProcessorTest(t)

	if err := s.EnqueueOutbox(store.EntityItem, "no-such-item", store.OpUpsert, "{}"); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	stats, err := processor.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if stats.Processed != 1 || stats.Failed != 0 {
		t.Errorf("Expected the orphan handled without a failure, got %+v", stats)
	}

	n, _ := s.CountPendingOutbox()
	if n != 0 {
		t.Errorf("Expected orphan entry terminal, got %d pending", n)
	}
}

// TestDrainUnknownEntityIsTerminal tests the unknown entity type path
func TestDrainUnknownEntityIsTerminal(t *testing.T) {
	s, _, processor := createProcessorTest(t)

	if err := s.EnqueueOutbox("widget", "w-1", store.OpUpsert, "{}"); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	if _, err := processor.Drain(context.Background(), 10); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	n, _ := s.CountPendingOutbox()
	if n != 0 {
		t.Errorf("Expected unknown entity entry terminal, got %d pending", n)
	}
}

// TestDrainReschedulesFailures tests backoff scheduling on transient errors
func TestDrainReschedulesFailures(t *testing.T) {
	s, mock, processor := createProcessorTest(t)
	mock.CreateErr = provider.NewError("CreateEvent", 503, "remote down")

	item := createDirtyItem(t, s, "unlucky")
	enqueueItem(t, s, item)

	stats, err := processor.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if stats.Failed != 1 || stats.Success != 0 {
		t.Errorf("Expected 1 failure, got %+v", stats)
	}

	// entry still pending, scheduled for the future
	n, _ := s.CountPendingOutbox()
	if n != 1 {
		t.Fatalf("Expected entry still pending, got %d", n)
	}
	due, _ := s.DueOutboxEntries(time.Now(), 10)
	if len(due) != 0 {
		t.Error("Expected entry held back by backoff")
	}

	// once the backoff passes and the remote recovers, delivery succeeds
	mock.CreateErr = nil
	due, _ = s.DueOutboxEntries(time.Now().Add(time.Minute), 10)
	if len(due) != 1 || due[0].Attempts != 1 {
		t.Fatalf("Expected 1 due entry with 1 attempt, got %v", due)
	}
}

// TestDrainFailureIsolation tests that one failing entry does not block the
// rest of the batch
func TestDrainFailureIsolation(t *testing.T) {
	s, mock, processor := createProcessorTest(t)

	// the first entry targets an update that will fail, the second a create
	// that will succeed
	failing := &store.Item{
		Title:      "failing",
		RemoteID:   "evt-x",
		RemoteEtag: "r1",
		SyncState:  store.SyncStateDirty,
	}
	if err := s.CreateItem(failing); err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}
	enqueueItem(t, s, failing)
	mock.UpdateErr = provider.NewError("UpdateEvent", 503, "remote down")

	healthy := createDirtyItem(t, s, "healthy")
	enqueueItem(t, s, healthy)

	stats, err := processor.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if stats.Processed != 2 || stats.Failed != 1 || stats.Success != 1 {
		t.Errorf("Unexpected drain stats: %+v", stats)
	}

	got, _ := s.GetItem(healthy.ID)
	if !got.HasRemote() {
		t.Error("Expected the healthy item delivered despite the earlier failure")
	}
}

// TestDrainConflictEntryIsTerminal tests that a revision-precondition
// rejection consumes the entry rather than retrying it
func TestDrainConflictEntryIsTerminal(t *testing.T) {
	s, mock, processor := createProcessorTest(t)

	item := createDirtyItem(t, s, "contested")
	enqueueItem(t, s, item)
	if _, err := processor.Drain(context.Background(), 10); err != nil {
		t.Fatalf("Initial drain failed: %v", err)
	}

	// remote moves on; then a local edit queues another push
	delivered, _ := s.GetItem(item.ID)
	if err := mock.MutateRemoteEvent(testCalendar, delivered.RemoteID, func(e *provider.Event) {
		e.Title = "contested (remote)"
	}); err != nil {
		t.Fatalf("Failed to mutate remote event: %v", err)
	}

	delivered.Title = "contested (local)"
	delivered.SyncState = store.SyncStateDirty
	if err := s.UpdateItem(delivered); err != nil {
		t.Fatalf("Failed to edit item: %v", err)
	}
	enqueueItem(t, s, delivered)

	stats, err := processor.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if stats.Failed != 0 {
		t.Errorf("Expected the precondition rejection not counted as retryable, got %+v", stats)
	}

	got, _ := s.GetItem(item.ID)
	if got.SyncState != store.SyncStateConflict {
		t.Errorf("Expected item flagged conflict, got %s", got.SyncState)
	}
	n, _ := s.CountPendingOutbox()
	if n != 0 {
		t.Errorf("Expected entry consumed, got %d pending", n)
	}
}

// TestDrainBatchLimit tests the batch size cap
func TestDrainBatchLimit(t *testing.T) {
	s, _, processor := createProcessorTest(t)

	for _, title := range []string{"a", "b", "c"} {
		item := createDirtyItem(t, s, title)
		enqueueItem(t, s, item)
	}

	stats, err := processor.Drain(context.Background(), 2)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if stats.Processed != 2 {
		t.Errorf("Expected batch capped at 2, got %d", stats.Processed)
	}

	n, _ := s.CountPendingOutbox()
	if n != 1 {
		t.Errorf("Expected 1 entry left, got %d", n)
	}
}

// TestBackoffGrowth tests the exponential schedule and its cap
func TestBackoffGrowth(t *testing.T) {
	_, _, processor := createProcessorTest(t)

	expected := []time.Duration{
		30 * time.Second,
		time.Minute,
		2 * time.Minute,
		4 * time.Minute,
		8 * time.Minute,
		15 * time.Minute, // capped at the idle interval
		15 * time.Minute,
	}
	prev := time.Duration(0)
	for i, want := range expected {
		got := processor.Backoff(i + 1)
		if got != want {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, want)
		}
		if got < prev {
			t.Errorf("Backoff decreased at attempt %d: %v < %v", i+1, got, prev)
		}
		prev = got
	}

	// degenerate input clamps to the first attempt
	if processor.Backoff(0) != 30*time.Second {
		t.Errorf("Backoff(0) = %v, want base", processor.Backoff(0))
	}
}
