package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/canopy-data/clearcut.report/internal/timeutil"
)

// PipelineRun is one persisted invocation of the compositing + event
// extraction pipeline, with its parameters for reproducibility.
type PipelineRun struct {
	RunID             string          `json:"run_id"`
	CreatedUnixNanos  int64           `json:"created_unix_nanos"`
	AOI               string          `json:"aoi"`
	SpectralIndex     string          `json:"spectral_index"`
	StartYear         int             `json:"start_year"`
	EndYear           int             `json:"end_year"`
	ParamsJSON        json.RawMessage `json:"params_json,omitempty"`
	Status            string          `json:"status"`
	FinishedUnixNanos *int64          `json:"finished_unix_nanos,omitempty"`
}

// Run lifecycle states.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// DataErrorRecord is a persisted per-year data problem for a run.
type DataErrorRecord struct {
	RunID   string `json:"run_id"`
	Year    int    `json:"year"`
	Message string `json:"message"`
}

// RunStore provides persistence for pipeline runs.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore backed by the given database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db, clock: timeutil.RealClock{}}
}

// NewRunStoreWithClock creates a RunStore with an injected clock.
func NewRunStoreWithClock(db *sql.DB, clock timeutil.Clock) *RunStore {
	return &RunStore{db: db, clock: clock}
}

// Insert persists a new run. If RunID is empty, a UUID is generated.
func (s *RunStore) Insert(run *PipelineRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedUnixNanos == 0 {
		run.CreatedUnixNanos = s.clock.Now().UnixNano()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	params := "{}"
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO pipeline_runs (
				run_id, created_unix_nanos, aoi, spectral_index,
				start_year, end_year, params_json, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.CreatedUnixNanos, run.AOI, run.SpectralIndex,
			run.StartYear, run.EndYear, params, run.Status)
		return err
	})
}

// Finish marks a run complete or failed.
func (s *RunStore) Finish(runID, status string) error {
	now := s.clock.Now().UnixNano()
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`
			UPDATE pipeline_runs SET status = ?, finished_unix_nanos = ?
			WHERE run_id = ?`, status, now, runID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
}

// Get returns one run by ID.
func (s *RunStore) Get(runID string) (*PipelineRun, error) {
	row := s.db.QueryRow(`
		SELECT run_id, created_unix_nanos, aoi, spectral_index,
		       start_year, end_year, params_json, status, finished_unix_nanos
		FROM pipeline_runs WHERE run_id = ?`, runID)

	var run PipelineRun
	var params string
	if err := row.Scan(&run.RunID, &run.CreatedUnixNanos, &run.AOI, &run.SpectralIndex,
		&run.StartYear, &run.EndYear, &params, &run.Status, &run.FinishedUnixNanos); err != nil {
		return nil, err
	}
	run.ParamsJSON = json.RawMessage(params)
	return &run, nil
}

// List returns all runs, newest first.
func (s *RunStore) List() ([]*PipelineRun, error) {
	rows, err := s.db.Query(`
		SELECT run_id, created_unix_nanos, aoi, spectral_index,
		       start_year, end_year, params_json, status, finished_unix_nanos
		FROM pipeline_runs ORDER BY created_unix_nanos DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*PipelineRun
	for rows.Next() {
		var run PipelineRun
		var params string
		if err := rows.Scan(&run.RunID, &run.CreatedUnixNanos, &run.AOI, &run.SpectralIndex,
			&run.StartYear, &run.EndYear, &params, &run.Status, &run.FinishedUnixNanos); err != nil {
			return nil, err
		}
		run.ParamsJSON = json.RawMessage(params)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// InsertDataError records a per-year data problem for a run.
func (s *RunStore) InsertDataError(rec *DataErrorRecord) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO run_data_errors (run_id, year, message) VALUES (?, ?, ?)`,
			rec.RunID, rec.Year, rec.Message)
		return err
	})
}

// DataErrors returns the recorded data problems for a run, by year.
func (s *RunStore) DataErrors(runID string) ([]*DataErrorRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, year, message FROM run_data_errors
		WHERE run_id = ? ORDER BY year`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*DataErrorRecord
	for rows.Next() {
		var rec DataErrorRecord
		if err := rows.Scan(&rec.RunID, &rec.Year, &rec.Message); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}
