package sync

import (
	"testing"
	"time"

	"taskbridge/provider"
	"taskbridge/store"
)

func strPtr(s string) *string        { return &s }
func intPtr(n int) *int              { return &n }
func timePtr(t time.Time) *time.Time { return &t }

// TestDetectConflictsNoDivergence tests that matching values produce nothing
func TestDetectConflictsNoDivergence(t *testing.T) {
	due := time.Date(2026, 9, 3, 14, 0, 0, 0, time.UTC)
	item := &store.Item{Title: "same", Description: "d", DueAt: &due, DurationMin: 30}

	divs := DetectConflicts(item, Patch{
		Title:       strPtr("same"),
		Description: strPtr("d"),
		DueAt:       &due,
		DurationMin: intPtr(30),
	})
	if len(divs) != 0 {
		t.Errorf("Expected no divergences, got %v", divs)
	}
}

// TestDetectConflictsFields tests per-field divergence reporting
func TestDetectConflictsFields(t *testing.T) {
	item := &store.Item{Title: "local", DurationMin: 30}

	divs := DetectConflicts(item, Patch{
		Title:       strPtr("remote"),
		DurationMin: intPtr(45),
	})
	if len(divs) != 2 {
		t.Fatalf("Expected 2 divergences, got %d", len(divs))
	}

	if divs[0].Field != store.FieldTitle || divs[0].LocalValue != "local" || divs[0].RemoteValue != "remote" {
		t.Errorf("Unexpected title divergence: %+v", divs[0])
	}
	if divs[1].Field != store.FieldDurationMin || divs[1].LocalValue != "30" || divs[1].RemoteValue != "45" {
		t.Errorf("Unexpected duration divergence: %+v", divs[1])
	}
}

// TestDetectConflictsAbsentFields tests that nil patch fields are skipped
func TestDetectConflictsAbsentFields(t *testing.T) {
	due := time.Date(2026, 9, 3, 14, 0, 0, 0, time.UTC)
	item := &store.Item{Title: "local", Description: "notes", DueAt: &due, DurationMin: 30}

	// only the title is present in the patch
	divs := DetectConflicts(item, Patch{Title: strPtr("remote")})
	if len(divs) != 1 || divs[0].Field != store.FieldTitle {
		t.Errorf("Expected only a title divergence, got %v", divs)
	}
}

// TestDetectConflictsTimeNormalization tests timezone-insensitive comparison
func TestDetectConflictsTimeNormalization(t *testing.T) {
	zone := time.FixedZone("CEST", 2*3600)
	local := time.Date(2026, 9, 3, 14, 0, 0, 0, time.UTC)
	item := &store.Item{DueAt: &local}

	// same instant, different zone representation
	divs := DetectConflicts(item, Patch{DueAt: timePtr(time.Date(2026, 9, 3, 16, 0, 0, 0, zone))})
	if len(divs) != 0 {
		t.Errorf("Expected no divergence for the same instant, got %v", divs)
	}

	// genuinely different instant
	divs = DetectConflicts(item, Patch{DueAt: timePtr(time.Date(2026, 9, 3, 17, 0, 0, 0, zone))})
	if len(divs) != 1 {
		t.Fatalf("Expected 1 divergence, got %d", len(divs))
	}
	if divs[0].LocalValue != "2026-09-03T14:00:00Z" || divs[0].RemoteValue != "2026-09-03T15:00:00Z" {
		t.Errorf("Expected normalized UTC values, got %+v", divs[0])
	}
}

// TestDetectConflictsClearedDue tests an absent local due against a set remote due
func TestDetectConflictsClearedDue(t *testing.T) {
	item := &store.Item{}
	remote := time.Date(2026, 9, 3, 14, 0, 0, 0, time.UTC)

	divs := DetectConflicts(item, Patch{DueAt: &remote})
	if len(divs) != 1 {
		t.Fatalf("Expected 1 divergence, got %d", len(divs))
	}
	if divs[0].LocalValue != "" || divs[0].RemoteValue != "2026-09-03T14:00:00Z" {
		t.Errorf("Expected empty local snapshot, got %+v", divs[0])
	}
}

// TestApplyPatch tests writing patch fields onto an item
func TestApplyPatch(t *testing.T) {
	due := time.Date(2026, 9, 3, 14, 0, 0, 0, time.UTC)
	item := &store.Item{Title: "old", Description: "old", DueAt: &due, DurationMin: 30}

	newDue := time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC)
	ApplyPatch(item, Patch{
		Title:       strPtr("new"),
		DueAt:       &newDue,
		DurationMin: intPtr(60),
	})

	if item.Title != "new" || item.Description != "old" {
		t.Errorf("Unexpected fields after patch: %+v", item)
	}
	if item.DueAt == nil || !item.DueAt.Equal(newDue) {
		t.Errorf("Expected due %v, got %v", newDue, item.DueAt)
	}
	if item.DurationMin != 60 {
		t.Errorf("Expected duration 60, got %d", item.DurationMin)
	}

	// a zero-time due pointer clears the field
	var zero time.Time
	ApplyPatch(item, Patch{DueAt: &zero})
	if item.DueAt != nil {
		t.Errorf("Expected due cleared, got %v", item.DueAt)
	}
}

// TestPatchFromEvent tests event-to-patch conversion
func TestPatchFromEvent(t *testing.T) {
	start := time.Date(2026, 9, 3, 14, 0, 0, 0, time.UTC)
	p := PatchFromEvent(provider.Event{
		Title:       "meeting",
		Description: "agenda",
		StartAt:     &start,
		DurationMin: 45,
	})

	if p.Title == nil || *p.Title != "meeting" {
		t.Errorf("Unexpected title: %v", p.Title)
	}
	if p.DueAt == nil || !p.DueAt.Equal(start) {
		t.Errorf("Unexpected due: %v", p.DueAt)
	}
	if p.DurationMin == nil || *p.DurationMin != 45 {
		t.Errorf("Unexpected duration: %v", p.DurationMin)
	}

	// a dateless event carries an explicit zero due, meaning "clear"
	p = PatchFromEvent(provider.Event{Title: "undated"})
	if p.DueAt == nil || !p.DueAt.IsZero() {
		t.Errorf("Expected zero due pointer for dateless event, got %v", p.DueAt)
	}
}
