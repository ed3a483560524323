package field

import (
	"fmt"
	"time"

	"github.com/radiant-data/gaussnerf/internal/monitoring"
)

// Snapshot is a point-in-time copy of the field's trainable state, sufficient
// to rebuild the density pipeline byte for byte.
type Snapshot struct {
	RunID      string
	TakenAt    time.Time
	Resolution int
	Sigma      float64
	Alpha      float64
	Reason     string
	Config     *Config
	Grid       []float64
}

// SnapshotStore persists field snapshots. Implemented by checkpoint.Store.
type SnapshotStore interface {
	InsertFieldSnapshot(snap *Snapshot) (int64, error)
}

// Snapshot captures the current grid and sharpness under the read lock.
func (f *Field) Snapshot(reason string) *Snapshot {
	f.mu.RLock()
	grid := make([]float64, len(f.grid.Data))
	copy(grid, f.grid.Data)
	f.mu.RUnlock()

	return &Snapshot{
		RunID:      f.runID,
		TakenAt:    time.Now(),
		Resolution: f.Resolution(),
		Sigma:      f.sigma,
		Alpha:      f.Sharpness(),
		Reason:     reason,
		Config:     f.cfg,
		Grid:       grid,
	}
}

// Persist writes a snapshot through the store and returns its row id.
func (f *Field) Persist(store SnapshotStore, reason string) (int64, error) {
	snap := f.Snapshot(reason)
	id, err := store.InsertFieldSnapshot(snap)
	if err != nil {
		return 0, fmt.Errorf("field: persist snapshot: %w", err)
	}
	monitoring.Logf("[Field] persisted grid snapshot id=%d run=%s resolution=%d reason=%q",
		id, snap.RunID, snap.Resolution, reason)
	return id, nil
}

// RestoreSnapshot loads a snapshot's grid and sharpness into the field. The
// snapshot must match the field's resolution; the grid contents are copied in
// place so parameter slices handed to optimizers stay valid.
func (f *Field) RestoreSnapshot(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("field: nil snapshot")
	}
	want := f.Resolution() * f.Resolution() * f.Resolution()
	if len(snap.Grid) != want {
		return fmt.Errorf("field: snapshot grid has %d values, field expects %d", len(snap.Grid), want)
	}
	f.mu.Lock()
	copy(f.grid.Data, snap.Grid)
	f.mu.Unlock()
	f.SetSharpness(snap.Alpha)
	if snap.RunID != "" {
		f.runID = snap.RunID
	}
	return nil
}
