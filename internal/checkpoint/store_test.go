package checkpoint

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/radiant-data/gaussnerf/internal/field"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
func sptr(v string) *string   { return &v }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newSnapshotField(t *testing.T) *field.Field {
	t.Helper()
	cfg := &field.Config{
		Sigma:          fptr(1),
		FInit:          sptr("rand"),
		GridResolution: iptr(6),
		GAlpha:         fptr(4),
	}
	f, err := field.New(cfg, field.UnitAABB(), nil)
	if err != nil {
		t.Fatalf("field.New failed: %v", err)
	}
	return f
}

func TestOpenMigratesSchema(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"field_snapshots", "training_metrics", "backbone_weights", "schema_migrations"} {
		var n int
		if err := s.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil {
			t.Fatalf("query sqlite_master for %s: %v", table, err)
		}
		if n != 1 {
			t.Errorf("table %s missing after migration", table)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
}

func TestOpenUnreachablePath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing-dir", "x.db")); err == nil {
		t.Fatal("expected error for unreachable database path")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	f := newSnapshotField(t)

	id, err := f.Persist(s, "unit-test")
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Persist returned zero row id")
	}

	got, err := s.LatestSnapshot(f.RunID())
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	want := f.Snapshot("unit-test")
	if got.RunID != want.RunID {
		t.Errorf("RunID = %q, want %q", got.RunID, want.RunID)
	}
	if got.Resolution != want.Resolution || got.Sigma != want.Sigma || got.Alpha != want.Alpha {
		t.Errorf("metadata = (%d, %v, %v), want (%d, %v, %v)",
			got.Resolution, got.Sigma, got.Alpha, want.Resolution, want.Sigma, want.Alpha)
	}
	if got.Reason != "unit-test" {
		t.Errorf("Reason = %q, want %q", got.Reason, "unit-test")
	}
	if got.TakenAt.IsZero() {
		t.Error("TakenAt not restored")
	}
	if diff := cmp.Diff(want.Grid, got.Grid); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}
	if got.Config == nil || got.Config.GetGridResolution() != 6 {
		t.Errorf("config not restored: %+v", got.Config)
	}

	// A second field restored from the stored snapshot reproduces the grid
	// and adopts the run id.
	f2 := newSnapshotField(t)
	if err := f2.RestoreSnapshot(got); err != nil {
		t.Fatalf("RestoreSnapshot failed: %v", err)
	}
	if diff := cmp.Diff(f.Snapshot("x").Grid, f2.Snapshot("x").Grid); diff != "" {
		t.Errorf("restored grid mismatch (-want +got):\n%s", diff)
	}
	if f2.RunID() != f.RunID() {
		t.Errorf("restored run id = %q, want %q", f2.RunID(), f.RunID())
	}
}

func TestLatestSnapshotPicksNewest(t *testing.T) {
	s := openTestStore(t)
	f := newSnapshotField(t)

	if _, err := f.Persist(s, "first"); err != nil {
		t.Fatalf("first Persist failed: %v", err)
	}
	f.SetSharpness(9)
	if _, err := f.Persist(s, "second"); err != nil {
		t.Fatalf("second Persist failed: %v", err)
	}

	got, err := s.LatestSnapshot(f.RunID())
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if got.Reason != "second" || got.Alpha != 9 {
		t.Errorf("latest snapshot = (%q, alpha=%v), want (\"second\", alpha=9)", got.Reason, got.Alpha)
	}
}

func TestSnapshotByID(t *testing.T) {
	s := openTestStore(t)
	f := newSnapshotField(t)

	id, err := f.Persist(s, "first")
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	got, err := s.SnapshotByID(id)
	if err != nil {
		t.Fatalf("SnapshotByID failed: %v", err)
	}
	if got.Reason != "first" {
		t.Errorf("Reason = %q, want %q", got.Reason, "first")
	}

	if _, err := s.SnapshotByID(99999); !errors.Is(err, ErrNotFound) {
		t.Errorf("SnapshotByID(99999) error = %v, want ErrNotFound", err)
	}
	if _, err := s.LatestSnapshot("no-such-run"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestSnapshot(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestInsertFieldSnapshotNil(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.InsertFieldSnapshot(nil); err == nil {
		t.Fatal("expected error for nil snapshot")
	}
}

func TestRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	insert := func(runID string, ns int64) {
		t.Helper()
		snap := &field.Snapshot{
			RunID:      runID,
			TakenAt:    time.Unix(0, ns),
			Resolution: 2,
			Sigma:      1,
			Alpha:      4,
			Grid:       make([]float64, 8),
		}
		if _, err := s.InsertFieldSnapshot(snap); err != nil {
			t.Fatalf("InsertFieldSnapshot(%s) failed: %v", runID, err)
		}
	}
	insert("run-a", 1000)
	insert("run-b", 3000)
	insert("run-a", 2000)

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if diff := cmp.Diff([]string{"run-b", "run-a"}, runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
}

func TestBackboneWeights(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.InsertBackboneWeights("run-a", nil); err == nil {
		t.Fatal("expected error for empty weights blob")
	}

	if _, err := s.InsertBackboneWeights("run-a", []byte{1, 2, 3}); err != nil {
		t.Fatalf("InsertBackboneWeights failed: %v", err)
	}
	if _, err := s.InsertBackboneWeights("run-a", []byte{4, 5}); err != nil {
		t.Fatalf("second InsertBackboneWeights failed: %v", err)
	}

	blob, err := s.LatestBackboneWeights("run-a")
	if err != nil {
		t.Fatalf("LatestBackboneWeights failed: %v", err)
	}
	if diff := cmp.Diff([]byte{4, 5}, blob); diff != "" {
		t.Errorf("weights mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.LatestBackboneWeights("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestBackboneWeights(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestMetricSeries(t *testing.T) {
	s := openTestStore(t)

	for step, v := range []float64{1, 0.5, 0.25} {
		if err := s.RecordMetric("run-a", step, "rgb_loss", v); err != nil {
			t.Fatalf("RecordMetric failed: %v", err)
		}
	}
	if err := s.RecordMetrics("run-a", 3, map[string]float64{"rgb_loss": 0.125, "psnr": 30}); err != nil {
		t.Fatalf("RecordMetrics failed: %v", err)
	}

	series, err := s.MetricSeries("run-a", "rgb_loss")
	if err != nil {
		t.Fatalf("MetricSeries failed: %v", err)
	}
	want := []MetricPoint{{0, 1}, {1, 0.5}, {2, 0.25}, {3, 0.125}}
	if diff := cmp.Diff(want, series); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}

	names, err := s.MetricNames("run-a")
	if err != nil {
		t.Fatalf("MetricNames failed: %v", err)
	}
	if diff := cmp.Diff([]string{"psnr", "rgb_loss"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	empty, err := s.MetricSeries("run-a", "unknown")
	if err != nil {
		t.Fatalf("MetricSeries(unknown) failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown metric returned %d points", len(empty))
	}
}

func TestGridBlobRoundTrip(t *testing.T) {
	grid := []float64{0, 1, 0.5, -2.25, 1e-7, 80}
	blob, err := encodeGrid(grid)
	if err != nil {
		t.Fatalf("encodeGrid failed: %v", err)
	}
	got, err := decodeGrid(blob)
	if err != nil {
		t.Fatalf("decodeGrid failed: %v", err)
	}
	if diff := cmp.Diff(grid, got); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}

	if _, err := decodeGrid(nil); err == nil {
		t.Error("expected error for empty blob")
	}
	if _, err := decodeGrid([]byte("junk")); err == nil {
		t.Error("expected error for corrupt blob")
	}
}
