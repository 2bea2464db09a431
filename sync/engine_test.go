package sync

import (
	"context"
	"testing"
	"time"

	"taskbridge/provider"
	"taskbridge/store"
)

// Helper function to create an engine over a fresh store and mock provider
func createEngineTest(t *testing.T) (*store.Store, *provider.MockClient, *Engine) {
	t.Helper()

	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	mock := provider.NewMockClient()
	engine := NewEngine(s, mock, Options{
		Calendars:     []Calendar{{ID: testCalendar, Source: store.SourceCalendarPull}},
		DefaultListID: "inbox",
		BackoffBase:   30 * time.Second,
		IdleInterval:  15 * time.Minute,
	})
	return s, mock, engine
}

// TestEngineCreateItemQueuesDelivery tests the create-then-push round trip
func TestEngineCreateItemQueuesDelivery(t *testing.T) {
	s, mock, engine := createEngineTest(t)

	due := time.Now().UTC().Add(2 * time.Hour)
	item := &store.Item{Title: "planning", DueAt: &due, DurationMin: 60}
	if err := engine.CreateItem(item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	if item.ListID != "inbox" {
		t.Errorf("Expected default list assigned, got %q", item.ListID)
	}
	n, _ := s.CountPendingOutbox()
	if n != 1 {
		t.Fatalf("Expected 1 queued entry, got %d", n)
	}

	stats, err := engine.RunPushBatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("Push batch failed: %v", err)
	}
	if stats.Success != 1 {
		t.Errorf("Expected 1 delivery, got %+v", stats)
	}

	got, _ := s.GetItem(item.ID)
	if !got.HasRemote() {
		t.Error("Expected item delivered to remote")
	}
	if _, ok := mock.RemoteEvent(testCalendar, got.RemoteID); !ok {
		t.Error("Expected remote event created")
	}
}

// TestEngineUpdateCoalesces tests that rapid edits collapse into one
// outbox entry carrying the newest state
func TestEngineUpdateCoalesces(t *testing.T) {
	s, mock, engine := createEngineTest(t)

	item := &store.Item{Title: "v1"}
	if err := engine.CreateItem(item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	item.Title = "v2"
	if err := engine.UpdateItem(item); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	item.Title = "v3"
	if err := engine.UpdateItem(item); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}

	n, _ := s.CountPendingOutbox()
	if n != 1 {
		t.Fatalf("Expected edits coalesced into 1 entry, got %d", n)
	}

	stats, err := engine.RunPushBatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("Push batch failed: %v", err)
	}
	if stats.Success != 1 {
		t.Errorf("Expected 1 delivery, got %+v", stats)
	}

	got, _ := s.GetItem(item.ID)
	ev, _ := mock.RemoteEvent(testCalendar, got.RemoteID)
	if ev.Title != "v3" {
		t.Errorf("Expected the newest state delivered, got %q", ev.Title)
	}
}

// TestEngineCancelItem tests the cancel round trip
func TestEngineCancelItem(t *testing.T) {
	s, mock, engine := createEngineTest(t)

	item := &store.Item{Title: "doomed"}
	if err := engine.CreateItem(item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	if _, err := engine.RunPushBatch(context.Background(), 0); err != nil {
		t.Fatalf("Push batch failed: %v", err)
	}

	delivered, _ := s.GetItem(item.ID)
	remoteID := delivered.RemoteID

	if err := engine.CancelItem(item.ID); err != nil {
		t.Fatalf("CancelItem failed: %v", err)
	}
	if _, err := engine.RunPushBatch(context.Background(), 0); err != nil {
		t.Fatalf("Push batch failed: %v", err)
	}

	ev, ok := mock.RemoteEvent(testCalendar, remoteID)
	if !ok || ev.Status != provider.EventCancelled {
		t.Errorf("Expected remote event cancelled, got %+v", ev)
	}

	got, _ := s.GetItem(item.ID)
	if got.Status != store.StatusCancelled {
		t.Errorf("Expected local item cancelled, got %s", got.Status)
	}
}

// TestEngineResolveKeepLocalRepushes tests the end-to-end conflict story:
// concurrent edits, detection on pull, explicit keep-local, re-push
func TestEngineResolveKeepLocalRepushes(t *testing.T) {
	s, mock, engine := createEngineTest(t)

	item := &store.Item{Title: "original"}
	if err := engine.CreateItem(item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	if _, err := engine.RunPushBatch(context.Background(), 0); err != nil {
		t.Fatalf("Push batch failed: %v", err)
	}
	delivered, _ := s.GetItem(item.ID)

	// both sides edit the title
	if err := mock.MutateRemoteEvent(testCalendar, delivered.RemoteID, func(e *provider.Event) {
		e.Title = "remote edit"
	}); err != nil {
		t.Fatalf("Failed to mutate remote event: %v", err)
	}
	delivered.Title = "local edit"
	if err := engine.UpdateItem(delivered); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}

	pullStats, err := engine.RunPull(context.Background(), testCalendar)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if pullStats.Conflicts != 1 {
		t.Fatalf("Expected 1 conflict, got %+v", pullStats)
	}

	conflicts, err := engine.ListOpenConflicts(0)
	if err != nil || len(conflicts) != 1 {
		t.Fatalf("Expected 1 open conflict, got %v (%v)", conflicts, err)
	}

	if _, err := engine.ResolveConflict(conflicts[0].ID, store.ChoiceKeepLocal); err != nil {
		t.Fatalf("ResolveConflict failed: %v", err)
	}

	// the resolution queued a re-push; drain it
	if _, err := engine.RunPushBatch(context.Background(), 0); err != nil {
		t.Fatalf("Push batch failed: %v", err)
	}

	ev, _ := mock.RemoteEvent(testCalendar, delivered.RemoteID)
	if ev.Title != "local edit" {
		t.Errorf("Expected local edit pushed after keep_local, got %q", ev.Title)
	}

	got, _ := s.GetItem(item.ID)
	if got.SyncState != store.SyncStateSynced {
		t.Errorf("Expected item synced after re-push, got %s", got.SyncState)
	}
}

// TestEngineResolveAcceptRemote tests accepting the remote side of a conflict
func TestEngineResolveAcceptRemote(t *testing.T) {
	s, mock, engine := createEngineTest(t)

	item := &store.Item{Title: "original"}
	if err := engine.CreateItem(item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	if _, err := engine.RunPushBatch(context.Background(), 0); err != nil {
		t.Fatalf("Push batch failed: %v", err)
	}
	delivered, _ := s.GetItem(item.ID)

	if err := mock.MutateRemoteEvent(testCalendar, delivered.RemoteID, func(e *provider.Event) {
		e.Title = "remote edit"
	}); err != nil {
		t.Fatalf("Failed to mutate remote event: %v", err)
	}
	delivered.Title = "local edit"
	if err := engine.UpdateItem(delivered); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}

	if _, err := engine.RunPull(context.Background(), testCalendar); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	conflicts, _ := engine.ListOpenConflicts(0)
	if len(conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(conflicts))
	}

	if _, err := engine.ResolveConflict(conflicts[0].ID, store.ChoiceAcceptRemote); err != nil {
		t.Fatalf("ResolveConflict failed: %v", err)
	}

	got, _ := s.GetItem(item.ID)
	if got.Title != "remote edit" {
		t.Errorf("Expected remote value applied, got %q", got.Title)
	}
	if got.SyncState != store.SyncStateSynced {
		t.Errorf("Expected item synced, got %s", got.SyncState)
	}
}

// TestEngineRunPullUnknownCalendar tests pulling an unconfigured calendar
func TestEngineRunPullUnknownCalendar(t *testing.T) {
	_, _, engine := createEngineTest(t)

	if _, err := engine.RunPull(context.Background(), "nope"); err == nil {
		t.Error("Expected error for unknown calendar")
	}
}

// TestEngineStats tests the status summary
func TestEngineStats(t *testing.T) {
	_, mock, engine := createEngineTest(t)

	start := time.Now().UTC().Add(time.Hour)
	mock.AddRemoteEvent(testCalendar, provider.Event{Title: "remote", StartAt: &start})
	if _, err := engine.RunPull(context.Background(), testCalendar); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if err := engine.CreateItem(&store.Item{Title: "local"}); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	stats, err := engine.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.ItemsByState[store.SyncStateSynced] != 1 || stats.ItemsByState[store.SyncStateDirty] != 1 {
		t.Errorf("Unexpected item counts: %v", stats.ItemsByState)
	}
	if stats.PendingOutbox != 1 {
		t.Errorf("Expected 1 pending outbox entry, got %d", stats.PendingOutbox)
	}
	if len(stats.Cursors) != 1 {
		t.Errorf("Expected 1 cursor, got %d", len(stats.Cursors))
	}
}
