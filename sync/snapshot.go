package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"taskbridge/internal/utils"
	"taskbridge/store"
)

// Snapshotter periodically exports every item to a JSON file, giving the
// excluded read layers a cheap consistent view without querying the store.
type Snapshotter struct {
	store  *store.Store
	path   string
	every  time.Duration
	last   time.Time
	logger *utils.Logger
}

// NewSnapshotter creates a snapshotter. An empty path disables exporting.
func NewSnapshotter(st *store.Store, path string, every time.Duration) *Snapshotter {
	return &Snapshotter{
		store:  st,
		path:   path,
		every:  every,
		logger: utils.GetLogger(),
	}
}

type snapshotItem struct {
	ID          string     `json:"id"`
	ListID      string     `json:"list_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	DurationMin int        `json:"duration_min,omitempty"`
	Status      string     `json:"status"`
	SyncState   string     `json:"sync_state"`
	RemoteID    string     `json:"remote_id,omitempty"`
}

type snapshotFile struct {
	ExportedAt time.Time      `json:"exported_at"`
	Items      []snapshotItem `json:"items"`
}

// MaybeExport writes a snapshot if one is due. Rate-limited to at most one
// export per configured interval.
func (sn *Snapshotter) MaybeExport(now time.Time) error {
	if sn.path == "" {
		return nil
	}
	if !sn.last.IsZero() && now.Sub(sn.last) < sn.every {
		return nil
	}

	items, err := sn.store.ListItems()
	if err != nil {
		return err
	}

	out := snapshotFile{ExportedAt: now.UTC(), Items: make([]snapshotItem, 0, len(items))}
	for _, item := range items {
		out.Items = append(out.Items, snapshotItem{
			ID:          item.ID,
			ListID:      item.ListID,
			Title:       item.Title,
			Description: item.Description,
			DueAt:       item.DueAt,
			DurationMin: item.DurationMin,
			Status:      string(item.Status),
			SyncState:   string(item.SyncState),
			RemoteID:    item.RemoteID,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	// Write-then-rename so readers never see a partial file.
	tmp := sn.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(sn.path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, sn.path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	sn.last = now
	sn.logger.Debug("exported %d items to %s", len(out.Items), sn.path)
	return nil
}
