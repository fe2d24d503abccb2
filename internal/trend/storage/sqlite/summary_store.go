package sqlite

import (
	"database/sql"
	"math"
)

// YearSummary is the persisted per-year composite summary: coverage plus
// index distribution statistics. Statistic fields are nullable because an
// all-no-data year has no distribution.
type YearSummary struct {
	RunID       string   `json:"run_id"`
	Year        int      `json:"year"`
	ValidPixels int      `json:"valid_pixels"`
	TotalPixels int      `json:"total_pixels"`
	IndexMean   *float64 `json:"index_mean,omitempty"`
	IndexStdDev *float64 `json:"index_stddev,omitempty"`
	IndexP05    *float64 `json:"index_p05,omitempty"`
	IndexP50    *float64 `json:"index_p50,omitempty"`
	IndexP95    *float64 `json:"index_p95,omitempty"`
}

// SummaryStore provides persistence for per-year composite summaries.
type SummaryStore struct {
	db *sql.DB
}

// NewSummaryStore creates a SummaryStore backed by the given database.
func NewSummaryStore(db *sql.DB) *SummaryStore {
	return &SummaryStore{db: db}
}

// Insert persists one year's summary.
func (s *SummaryStore) Insert(sum *YearSummary) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO composite_years (
				run_id, year, valid_pixels, total_pixels,
				index_mean, index_stddev, index_p05, index_p50, index_p95
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.RunID, sum.Year, sum.ValidPixels, sum.TotalPixels,
			nullablePtr(sum.IndexMean), nullablePtr(sum.IndexStdDev),
			nullablePtr(sum.IndexP05), nullablePtr(sum.IndexP50), nullablePtr(sum.IndexP95))
		return err
	})
}

// ByRun returns a run's summaries ordered by year.
func (s *SummaryStore) ByRun(runID string) ([]*YearSummary, error) {
	rows, err := s.db.Query(`
		SELECT run_id, year, valid_pixels, total_pixels,
		       index_mean, index_stddev, index_p05, index_p50, index_p95
		FROM composite_years WHERE run_id = ? ORDER BY year`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []*YearSummary
	for rows.Next() {
		var sum YearSummary
		if err := rows.Scan(&sum.RunID, &sum.Year, &sum.ValidPixels, &sum.TotalPixels,
			&sum.IndexMean, &sum.IndexStdDev, &sum.IndexP05, &sum.IndexP50, &sum.IndexP95); err != nil {
			return nil, err
		}
		sums = append(sums, &sum)
	}
	return sums, rows.Err()
}

// nullablePtr maps nil or NaN-valued pointers to NULL.
func nullablePtr(v *float64) interface{} {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	return *v
}
