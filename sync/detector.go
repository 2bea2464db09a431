package sync

import (
	"encoding/json"
	"strconv"
	"time"

	"taskbridge/provider"
	"taskbridge/store"
)

// Patch is an incoming remote change, restricted to the patchable item
// fields. A nil field is absent from the patch and is never compared.
type Patch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	DurationMin *int       `json:"duration_min,omitempty"`
}

// PatchFromEvent converts a remote event into a full patch over the
// patchable fields.
func PatchFromEvent(ev provider.Event) Patch {
	title := ev.Title
	description := ev.Description
	duration := ev.DurationMin

	p := Patch{
		Title:       &title,
		Description: &description,
		DurationMin: &duration,
	}
	if ev.StartAt != nil {
		due := ev.StartAt.UTC()
		p.DueAt = &due
	} else {
		var zero time.Time
		p.DueAt = &zero
	}
	return p
}

// Encode serializes the patch for storage alongside a conflict row, so the
// full remote state can be re-applied later.
func (p Patch) Encode() string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

// DetectConflicts compares each field present in the patch against the
// item's current value and returns the subset that actually differ.
// Datetimes are compared on a UTC second baseline, strings verbatim. Fields
// whose normalized values are equal are dropped silently. Pure; no side
// effects.
func DetectConflicts(item *store.Item, patch Patch) []store.FieldDivergence {
	var divs []store.FieldDivergence

	if patch.Title != nil && *patch.Title != item.Title {
		divs = append(divs, store.FieldDivergence{
			Field:       store.FieldTitle,
			LocalValue:  item.Title,
			RemoteValue: *patch.Title,
		})
	}

	if patch.Description != nil && *patch.Description != item.Description {
		divs = append(divs, store.FieldDivergence{
			Field:       store.FieldDescription,
			LocalValue:  item.Description,
			RemoteValue: *patch.Description,
		})
	}

	if patch.DueAt != nil {
		local := normalizeTime(item.DueAt)
		remote := normalizeTimeValue(*patch.DueAt)
		if local != remote {
			divs = append(divs, store.FieldDivergence{
				Field:       store.FieldDueAt,
				LocalValue:  local,
				RemoteValue: remote,
			})
		}
	}

	if patch.DurationMin != nil && *patch.DurationMin != item.DurationMin {
		divs = append(divs, store.FieldDivergence{
			Field:       store.FieldDurationMin,
			LocalValue:  strconv.Itoa(item.DurationMin),
			RemoteValue: strconv.Itoa(*patch.DurationMin),
		})
	}

	return divs
}

// ApplyPatch writes every field present in the patch onto the item.
func ApplyPatch(item *store.Item, patch Patch) {
	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.DueAt != nil {
		if patch.DueAt.IsZero() {
			item.DueAt = nil
		} else {
			due := patch.DueAt.UTC()
			item.DueAt = &due
		}
	}
	if patch.DurationMin != nil {
		item.DurationMin = *patch.DurationMin
	}
}

// normalizeTime renders an optional timestamp on the shared comparison
// baseline: RFC3339 in UTC, second precision, "" for absent.
func normalizeTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return normalizeTimeValue(*t)
}

func normalizeTimeValue(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
