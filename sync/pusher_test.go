package sync

import (
	"context"
	"testing"
	"time"

	"taskbridge/provider"
	"taskbridge/store"
)

// Helper function to create a store, mock provider and pusher for tests
func createPusherTest(t *testing.T) (*store.Store, *provider.MockClient, *Pusher) {
	t.Helper()

	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	mock := provider.NewMockClient()
	pusher := NewPusher(s, mock, testCalendar)
	return s, mock, pusher
}

func createDirtyItem(t *testing.T, s *store.Store, title string) *store.Item {
	t.Helper()

	due := time.Now().UTC().Add(time.Hour)
	item := &store.Item{Title: title, DueAt: &due, DurationMin: 30}
	if err := s.CreateItem(item); err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}
	return item
}

// TestPushCreate tests first delivery of a locally created item
func TestPushCreate(t *testing.T) {
	s, mock, pusher := createPusherTest(t)
	item := createDirtyItem(t, s, "new meeting")

	pushed, err := pusher.Push(context.Background(), item)
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if !pushed.HasRemote() {
		t.Fatal("Expected remote linkage after create")
	}
	if pushed.SyncState != store.SyncStateSynced || pushed.SyncStatus != store.SyncStatusSynced {
		t.Errorf("Expected synced item, got %s/%s", pushed.SyncState, pushed.SyncStatus)
	}

	// remote record carries the local back-reference
	ev, ok := mock.RemoteEvent(testCalendar, pushed.RemoteID)
	if !ok {
		t.Fatal("Expected remote event to exist")
	}
	if ev.LocalRef != item.ID || ev.Title != "new meeting" {
		t.Errorf("Unexpected remote record: %+v", ev)
	}

	// the write is persisted
	got, _ := s.GetItem(item.ID)
	if got.RemoteID != pushed.RemoteID || got.RemoteEtag != pushed.RemoteEtag {
		t.Errorf("Linkage not persisted: %+v", got)
	}
}

// TestPushUpdate tests delivering a local edit with a matching revision
func TestPushUpdate(t *testing.T) {
	s, mock, pusher := createPusherTest(t)
	item := createDirtyItem(t, s, "meeting")

	if _, err := pusher.Push(context.Background(), item); err != nil {
		t.Fatalf("Create push failed: %v", err)
	}
	firstEtag := item.RemoteEtag

	item.Title = "meeting (edited)"
	item.SyncState = store.SyncStateDirty
	item.SyncStatus = store.SyncStatusPending
	if err := s.UpdateItem(item); err != nil {
		t.Fatalf("Failed to mark item dirty: %v", err)
	}

	pushed, err := pusher.Push(context.Background(), item)
	if err != nil {
		t.Fatalf("Update push failed: %v", err)
	}
	if pushed.RemoteEtag == firstEtag {
		t.Error("Expected etag to advance after the update")
	}
	if pushed.SyncState != store.SyncStateSynced {
		t.Errorf("Expected synced, got %s", pushed.SyncState)
	}

	ev, _ := mock.RemoteEvent(testCalendar, pushed.RemoteID)
	if ev.Title != "meeting (edited)" {
		t.Errorf("Expected remote updated, got %q", ev.Title)
	}
}

// TestPushPreconditionFlagsConflict tests that a stale revision flags the
// item conflict instead of overwriting or erroring
func TestPushPreconditionFlagsConflict(t *testing.T) {
	s, mock, pusher := createPusherTest(t)
	item := createDirtyItem(t, s, "meeting")

	if _, err := pusher.Push(context.Background(), item); err != nil {
		t.Fatalf("Create push failed: %v", err)
	}

	// the remote moves on behind our back
	if err := mock.MutateRemoteEvent(testCalendar, item.RemoteID, func(e *provider.Event) {
		e.Title = "meeting (remote)"
	}); err != nil {
		t.Fatalf("Failed to mutate remote event: %v", err)
	}

	item.Title = "meeting (local)"
	item.SyncState = store.SyncStateDirty
	if err := s.UpdateItem(item); err != nil {
		t.Fatalf("Failed to mark item dirty: %v", err)
	}

	pushed, err := pusher.Push(context.Background(), item)
	if err != nil {
		t.Fatalf("Expected no error from a precondition rejection, got %v", err)
	}
	if pushed.SyncState != store.SyncStateConflict || pushed.SyncStatus != store.SyncStatusFailed {
		t.Errorf("Expected conflict flag, got %s/%s", pushed.SyncState, pushed.SyncStatus)
	}

	// the remote record was not overwritten
	ev, _ := mock.RemoteEvent(testCalendar, item.RemoteID)
	if ev.Title != "meeting (remote)" {
		t.Errorf("Remote record was overwritten: %q", ev.Title)
	}
}

// TestPushSkipsConflictedItem tests that conflicted items are never pushed
func TestPushSkipsConflictedItem(t *testing.T) {
	s, mock, pusher := createPusherTest(t)
	item := createDirtyItem(t, s, "contested")
	item.SyncState = store.SyncStateConflict
	if err := s.UpdateItem(item); err != nil {
		t.Fatalf("Failed to flag item: %v", err)
	}

	pushed, err := pusher.Push(context.Background(), item)
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if pushed.SyncState != store.SyncStateConflict {
		t.Errorf("Expected conflict state preserved, got %s", pushed.SyncState)
	}

	// nothing reached the remote
	if _, ok := mock.RemoteEvent(testCalendar, "evt-1"); ok {
		t.Error("Expected no remote event created")
	}
}

// TestPushCancel tests remote cancellation of a linked item
func TestPushCancel(t *testing.T) {
	s, mock, pusher := createPusherTest(t)
	item := createDirtyItem(t, s, "meeting")

	if _, err := pusher.Push(context.Background(), item); err != nil {
		t.Fatalf("Create push failed: %v", err)
	}
	remoteID := item.RemoteID

	item.Status = store.StatusCancelled
	item.SyncState = store.SyncStateDirty
	if err := s.UpdateItem(item); err != nil {
		t.Fatalf("Failed to cancel item: %v", err)
	}

	pushed, err := pusher.Push(context.Background(), item)
	if err != nil {
		t.Fatalf("Cancel push failed: %v", err)
	}
	if pushed.HasRemote() {
		t.Error("Expected remote linkage cleared after cancellation")
	}
	if pushed.SyncState != store.SyncStateSynced {
		t.Errorf("Expected synced after delivery, got %s", pushed.SyncState)
	}

	ev, ok := mock.RemoteEvent(testCalendar, remoteID)
	if !ok {
		t.Fatal("Expected remote event to still exist")
	}
	if ev.Status != provider.EventCancelled {
		t.Errorf("Expected remote event cancelled, got %s", ev.Status)
	}
}

// TestPushCancelNeverDelivered tests cancelling an item that never reached
// the remote
func TestPushCancelNeverDelivered(t *testing.T) {
	s, mock, pusher := createPusherTest(t)
	item := createDirtyItem(t, s, "abandoned")
	item.Status = store.StatusCancelled
	if err := s.UpdateItem(item); err != nil {
		t.Fatalf("Failed to cancel item: %v", err)
	}

	pushed, err := pusher.Push(context.Background(), item)
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if pushed.SyncState != store.SyncStateSynced {
		t.Errorf("Expected delivered without a remote call, got %s", pushed.SyncState)
	}
	if _, ok := mock.RemoteEvent(testCalendar, "evt-1"); ok {
		t.Error("Expected no remote event created for a dead item")
	}
}

// TestPushCancelRemoteAlreadyGone tests tolerance of a 404 on cancellation
func TestPushCancelRemoteAlreadyGone(t *testing.T) {
	s, _, pusher := createPusherTest(t)

	item := &store.Item{
		Title:      "ghost",
		Status:     store.StatusCancelled,
		RemoteID:   "evt-missing",
		RemoteEtag: "r1",
		SyncState:  store.SyncStateDirty,
	}
	if err := s.CreateItem(item); err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}

	pushed, err := pusher.Push(context.Background(), item)
	if err != nil {
		t.Fatalf("Expected 404 tolerated, got %v", err)
	}
	if pushed.SyncState != store.SyncStateSynced || pushed.HasRemote() {
		t.Errorf("Expected delivered and unlinked, got %+v", pushed)
	}
}

// TestPushFailureIsRetryable tests that transient errors propagate with the
// attempt recorded
func TestPushFailureIsRetryable(t *testing.T) {
	s, mock, pusher := createPusherTest(t)
	mock.CreateErr = provider.NewError("CreateEvent", 503, "remote down")

	item := createDirtyItem(t, s, "unlucky")

	_, err := pusher.Push(context.Background(), item)
	if err == nil {
		t.Fatal("Expected push to fail")
	}

	got, _ := s.GetItem(item.ID)
	if got.SyncStatus != store.SyncStatusFailed {
		t.Errorf("Expected failed status, got %s", got.SyncStatus)
	}
	if got.SyncAttempts != 1 {
		t.Errorf("Expected 1 recorded attempt, got %d", got.SyncAttempts)
	}
	if got.LastSyncError == "" {
		t.Error("Expected error recorded")
	}

	// recovery resets the failure bookkeeping
	mock.CreateErr = nil
	pushed, err := pusher.Push(context.Background(), got)
	if err != nil {
		t.Fatalf("Retry push failed: %v", err)
	}
	if pushed.SyncAttempts != 0 || pushed.LastSyncError != "" {
		t.Errorf("Expected failure bookkeeping cleared, got %+v", pushed)
	}
}
