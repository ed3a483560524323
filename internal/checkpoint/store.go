package checkpoint

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/radiant-data/gaussnerf/internal/field"
	"github.com/radiant-data/gaussnerf/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound reports that no row matched the query.
var ErrNotFound = errors.New("checkpoint: not found")

// pragmas applied once per database on Open.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Store is the sqlite-backed checkpoint database.
type Store struct {
	*sql.DB
}

var _ field.SnapshotStore = (*Store)(nil)

// Open opens the checkpoint database at path, creating it if needed, applies
// the session pragmas, and migrates the schema to the latest version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("checkpoint: %s: %w", pragma, err)
		}
	}
	s := &Store{DB: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrateUp runs all pending embedded migrations. The migrate instance is
// not closed; closing it would close the underlying database connection.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("checkpoint: load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("checkpoint: sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("checkpoint: create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("checkpoint: migrate up: %w", err)
	}
	return nil
}

// migrateLogger routes migrate output through the package logger.
type migrateLogger struct{}

var migrateLogf = monitoring.Scoped("migrate")

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	migrateLogf(format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// InsertFieldSnapshot persists one field snapshot and returns its row id.
func (s *Store) InsertFieldSnapshot(snap *field.Snapshot) (int64, error) {
	if snap == nil {
		return 0, fmt.Errorf("checkpoint: nil snapshot")
	}
	blob, err := encodeGrid(snap.Grid)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: encode grid: %w", err)
	}
	cfgJSON := "{}"
	if snap.Config != nil {
		raw, err := json.Marshal(snap.Config)
		if err != nil {
			return 0, fmt.Errorf("checkpoint: encode config: %w", err)
		}
		cfgJSON = string(raw)
	}
	res, err := s.Exec(`INSERT INTO field_snapshots (run_id, taken_at_ns, resolution, sigma, alpha, reason, config_json, grid_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID, snap.TakenAt.UnixNano(), snap.Resolution, snap.Sigma, snap.Alpha, snap.Reason, cfgJSON, blob)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

const snapshotColumns = `run_id, taken_at_ns, resolution, sigma, alpha, reason, config_json, grid_blob`

// LatestSnapshot returns the newest snapshot for a run.
func (s *Store) LatestSnapshot(runID string) (*field.Snapshot, error) {
	row := s.QueryRow(`SELECT `+snapshotColumns+` FROM field_snapshots
		WHERE run_id = ? ORDER BY taken_at_ns DESC, id DESC LIMIT 1`, runID)
	return scanSnapshot(row)
}

// SnapshotByID returns one snapshot by row id.
func (s *Store) SnapshotByID(id int64) (*field.Snapshot, error) {
	row := s.QueryRow(`SELECT `+snapshotColumns+` FROM field_snapshots WHERE id = ?`, id)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*field.Snapshot, error) {
	var (
		snap    field.Snapshot
		takenNS int64
		cfgJSON string
		blob    []byte
	)
	err := row.Scan(&snap.RunID, &takenNS, &snap.Resolution, &snap.Sigma, &snap.Alpha, &snap.Reason, &cfgJSON, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: scan snapshot: %w", err)
	}
	snap.TakenAt = time.Unix(0, takenNS)
	if cfgJSON != "" {
		snap.Config = &field.Config{}
		if err := json.Unmarshal([]byte(cfgJSON), snap.Config); err != nil {
			return nil, fmt.Errorf("checkpoint: decode snapshot config: %w", err)
		}
	}
	snap.Grid, err = decodeGrid(blob)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Runs lists the run ids with at least one snapshot, newest first.
func (s *Store) Runs() ([]string, error) {
	rows, err := s.Query(`SELECT run_id FROM field_snapshots GROUP BY run_id ORDER BY MAX(taken_at_ns) DESC`)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("checkpoint: scan run id: %w", err)
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

// InsertBackboneWeights stores a backbone weight blob for a run.
func (s *Store) InsertBackboneWeights(runID string, blob []byte) (int64, error) {
	if len(blob) == 0 {
		return 0, fmt.Errorf("checkpoint: empty weights blob")
	}
	res, err := s.Exec(`INSERT INTO backbone_weights (run_id, taken_at_ns, weights_blob) VALUES (?, ?, ?)`,
		runID, time.Now().UnixNano(), blob)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: insert backbone weights: %w", err)
	}
	return res.LastInsertId()
}

// LatestBackboneWeights returns the newest weights blob for a run.
func (s *Store) LatestBackboneWeights(runID string) ([]byte, error) {
	row := s.QueryRow(`SELECT weights_blob FROM backbone_weights
		WHERE run_id = ? ORDER BY taken_at_ns DESC, id DESC LIMIT 1`, runID)
	var blob []byte
	err := row.Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: scan backbone weights: %w", err)
	}
	return blob, nil
}

// MetricPoint is one recorded scalar at a training step.
type MetricPoint struct {
	Step  int
	Value float64
}

// RecordMetric appends one scalar sample to a run's metric series.
func (s *Store) RecordMetric(runID string, step int, name string, value float64) error {
	_, err := s.Exec(`INSERT INTO training_metrics (run_id, step, name, value, recorded_at_ns)
		VALUES (?, ?, ?, ?, ?)`, runID, step, name, value, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("checkpoint: record metric %s: %w", name, err)
	}
	return nil
}

// RecordMetrics writes a whole metrics map at one step in a single
// transaction.
func (s *Store) RecordMetrics(runID string, step int, metrics map[string]float64) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("checkpoint: begin metrics tx: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO training_metrics (run_id, step, name, value, recorded_at_ns)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("checkpoint: prepare metrics insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for name, value := range metrics {
		if _, err := stmt.Exec(runID, step, name, value, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("checkpoint: record metric %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// MetricSeries returns one metric's samples for a run in step order.
func (s *Store) MetricSeries(runID, name string) ([]MetricPoint, error) {
	rows, err := s.Query(`SELECT step, value FROM training_metrics
		WHERE run_id = ? AND name = ? ORDER BY step ASC, id ASC`, runID, name)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: query metric %s: %w", name, err)
	}
	defer rows.Close()

	var series []MetricPoint
	for rows.Next() {
		var p MetricPoint
		if err := rows.Scan(&p.Step, &p.Value); err != nil {
			return nil, fmt.Errorf("checkpoint: scan metric point: %w", err)
		}
		series = append(series, p)
	}
	return series, rows.Err()
}

// MetricNames lists the distinct metric names recorded for a run.
func (s *Store) MetricNames(runID string) ([]string, error) {
	rows, err := s.Query(`SELECT DISTINCT name FROM training_metrics WHERE run_id = ? ORDER BY name ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list metric names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("checkpoint: scan metric name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
