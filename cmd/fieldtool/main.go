// Command fieldtool inspects checkpoint databases written during training:
// it reconstructs a field from a stored snapshot and emits certified-radius
// heatmaps, an occupancy STL mesh, grid statistics, and the HTML training
// report.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/radiant-data/gaussnerf/internal/backbone"
	"github.com/radiant-data/gaussnerf/internal/checkpoint"
	"github.com/radiant-data/gaussnerf/internal/config"
	"github.com/radiant-data/gaussnerf/internal/field"
	"github.com/radiant-data/gaussnerf/internal/version"
	"github.com/radiant-data/gaussnerf/internal/viz"
)

func main() {
	dbPath := flag.String("db", "checkpoints.db", "Path to the checkpoint database")
	runID := flag.String("run", "", "Run id to inspect (defaults to the most recent run)")
	snapshotID := flag.Int64("snapshot", 0, "Snapshot row id (defaults to the newest snapshot of the run)")
	configPath := flag.String("config", "", "JSON config overriding the snapshot's stored field config")
	outDir := flag.String("out", "fieldtool-out", "Output directory for artifacts")
	slices := flag.Bool("slices", false, "Write certified-radius midplane heatmaps")
	stl := flag.Bool("stl", false, "Write the occupancy isosurface as STL")
	stlThreshold := flag.Float64("stl-threshold", 0.5, "Occupancy threshold for the STL isosurface")
	report := flag.Bool("report", false, "Write the HTML training report")
	stats := flag.Bool("stats", false, "Print grid statistics as JSON")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	store, err := checkpoint.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open checkpoint store: %v", err)
	}
	defer store.Close()

	run := *runID
	if run == "" {
		runs, err := store.Runs()
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		if len(runs) == 0 {
			log.Fatalf("No snapshots found in %s", *dbPath)
		}
		run = runs[0]
		log.Printf("Using most recent run %s", run)
	}

	var snap *field.Snapshot
	if *snapshotID != 0 {
		snap, err = store.SnapshotByID(*snapshotID)
	} else {
		snap, err = store.LatestSnapshot(run)
	}
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}

	var override *field.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		override = loaded.GetField()
	}

	f, err := rebuildField(snap, override)
	if err != nil {
		log.Fatalf("Failed to rebuild field from snapshot: %v", err)
	}
	log.Printf("Loaded snapshot run=%s resolution=%d sigma=%v alpha=%v reason=%q",
		snap.RunID, snap.Resolution, snap.Sigma, snap.Alpha, snap.Reason)

	// With no artifact flags, print statistics.
	if !*slices && !*stl && !*report && !*stats {
		*stats = true
	}

	if *slices || *stl || *report {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			log.Fatalf("Failed to create output directory %s: %v", *outDir, err)
		}
	}

	if *stats {
		if err := printStats(f, store, run); err != nil {
			log.Fatalf("Failed to print statistics: %v", err)
		}
	}

	if *slices {
		res, err := f.CertifiedRadius()
		if err != nil {
			log.Fatalf("Certified radius unavailable: %v", err)
		}
		paths, err := viz.SaveRadiusHeatmaps(res, f.Sigma(), *outDir)
		if err != nil {
			log.Fatalf("Failed to write radius heatmaps: %v", err)
		}
		log.Printf("Wrote %d radius heatmaps (eikonal loss %.6f)", len(paths), res.EikonalLoss)
	}

	if *stl {
		out := filepath.Join(*outDir, "occupancy.stl")
		if err := viz.ExportOccupancySTL(f.Transitioned(), *stlThreshold, out); err != nil {
			log.Fatalf("Failed to export STL: %v", err)
		}
		log.Printf("Wrote %s", out)
	}

	if *report {
		if err := writeReport(store, run, *outDir); err != nil {
			log.Fatalf("Failed to write training report: %v", err)
		}
	}
}

// rebuildField reconstructs a field from a stored snapshot. An explicit
// override wins over the snapshot's own configuration; the restore still
// fails if the grid resolutions disagree.
func rebuildField(snap *field.Snapshot, override *field.Config) (*field.Field, error) {
	cfg := override
	if cfg == nil {
		cfg = snap.Config
	}
	if cfg == nil {
		cfg = &field.Config{GridResolution: &snap.Resolution, Sigma: &snap.Sigma}
	}
	f, err := field.New(cfg, field.UnitAABB(), nil)
	if err != nil {
		return nil, err
	}
	if err := f.RestoreSnapshot(snap); err != nil {
		return nil, err
	}
	return f, nil
}

func printStats(f *field.Field, store *checkpoint.Store, run string) error {
	s := f.Stats()
	out := struct {
		RunID          string  `json:"run_id"`
		Resolution     int     `json:"resolution"`
		Sigma          float64 `json:"sigma"`
		Alpha          float64 `json:"alpha_value"`
		FMin           float64 `json:"f_min"`
		FMax           float64 `json:"f_max"`
		FMean          float64 `json:"f_mean"`
		FStd           float64 `json:"f_std"`
		BackboneParams int     `json:"backbone_params,omitempty"`
	}{
		RunID:          f.RunID(),
		Resolution:     f.Resolution(),
		Sigma:          f.Sigma(),
		Alpha:          f.Sharpness(),
		FMin:           s.Min,
		FMax:           s.Max,
		FMean:          s.Mean,
		FStd:           s.Std,
		BackboneParams: backboneParamCount(store, run, f.Config()),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// backboneParamCount loads the run's newest backbone weights and counts the
// trainable parameters, returning 0 when the run stored none or the weights
// no longer match the configured architecture.
func backboneParamCount(store *checkpoint.Store, run string, cfg *field.Config) int {
	blob, err := store.LatestBackboneWeights(run)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return 0
	}
	if err != nil {
		log.Printf("Backbone weights unavailable for run %s: %v", run, err)
		return 0
	}
	net, err := backbone.New(cfg)
	if err == nil {
		err = net.Load(bytes.NewReader(blob))
	}
	if err != nil {
		log.Printf("Backbone weights for run %s do not match the config: %v", run, err)
		return 0
	}
	var total int
	for _, p := range net.Parameters() {
		total += len(p.Data)
	}
	return total
}

func writeReport(store *checkpoint.Store, run, outDir string) error {
	names, err := store.MetricNames(run)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		log.Printf("No metrics recorded for run %s; skipping report", run)
		return nil
	}

	series := make(map[string][]checkpoint.MetricPoint, len(names))
	for _, name := range names {
		pts, err := store.MetricSeries(run, name)
		if err != nil {
			return err
		}
		series[name] = pts
	}

	out := filepath.Join(outDir, "training_report.html")
	fh, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := viz.WriteTrainingReport(fh, run, series); err != nil {
		fh.Close()
		return err
	}
	if err := fh.Close(); err != nil {
		return err
	}
	log.Printf("Wrote %s", out)

	plots, err := viz.SaveMetricPlots(series, outDir)
	if err != nil {
		return err
	}
	log.Printf("Wrote %d metric plots to %s", len(plots), outDir)
	return nil
}
