package sqlite

import (
	"database/sql"
	"math"

	"github.com/canopy-data/clearcut.report/internal/trend"
)

// EventRecord is one pixel's selected disturbance event. Rate and DSNR are
// nullable: NaN channels persist as NULL.
type EventRecord struct {
	RunID    string   `json:"run_id"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
	YOD      int      `json:"yod"`
	EndYear  int      `json:"end_yr"`
	StartVal float64  `json:"start_val"`
	EndVal   float64  `json:"end_val"`
	Mag      float64  `json:"mag"`
	Dur      int      `json:"dur"`
	Rate     *float64 `json:"rate,omitempty"`
	DSNR     *float64 `json:"dsnr,omitempty"`
}

// EventStore provides persistence for selected disturbance events.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates an EventStore backed by the given database.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// InsertImage persists every detected pixel of an event raster in one
// transaction. No-data pixels (NaN detection year) are skipped: absence of
// a row is the no-data representation.
func (s *EventStore) InsertImage(runID string, im *trend.EventImage) (int, error) {
	inserted := 0
	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO disturbance_events (
				run_id, x, y, yod, end_yr, start_val, end_val, mag, dur, rate, dsnr
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		inserted = 0
		for y := 0; y < im.Height; y++ {
			for x := 0; x < im.Width; x++ {
				i := im.Idx(x, y)
				yod := im.Channels[trend.ChYearOfDetection][i]
				if math.IsNaN(yod) {
					continue
				}
				if _, err := stmt.Exec(
					runID, x, y,
					int(yod),
					int(im.Channels[trend.ChEndYear][i]),
					im.Channels[trend.ChStartVal][i],
					im.Channels[trend.ChEndVal][i],
					im.Channels[trend.ChMagnitude][i],
					int(im.Channels[trend.ChDuration][i]),
					nullable(im.Channels[trend.ChRate][i]),
					nullable(im.Channels[trend.ChDSNR][i]),
				); err != nil {
					return err
				}
				inserted++
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// nullable maps NaN to NULL for persistence.
func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// Pixel returns the event at (x, y) for a run, or sql.ErrNoRows when the
// pixel has no qualifying event.
func (s *EventStore) Pixel(runID string, x, y int) (*EventRecord, error) {
	row := s.db.QueryRow(`
		SELECT run_id, x, y, yod, end_yr, start_val, end_val, mag, dur, rate, dsnr
		FROM disturbance_events WHERE run_id = ? AND x = ? AND y = ?`, runID, x, y)
	return scanEvent(row)
}

// ByYear returns all events of a run detected in the given year.
func (s *EventStore) ByYear(runID string, yod int) ([]*EventRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, x, y, yod, end_yr, start_val, end_val, mag, dur, rate, dsnr
		FROM disturbance_events WHERE run_id = ? AND yod = ? ORDER BY y, x`, runID, yod)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*EventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CountByYear returns the number of detected events per detection year.
func (s *EventStore) CountByYear(runID string) (map[int]int, error) {
	rows, err := s.db.Query(`
		SELECT yod, COUNT(*) FROM disturbance_events
		WHERE run_id = ? GROUP BY yod ORDER BY yod`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var yod, n int
		if err := rows.Scan(&yod, &n); err != nil {
			return nil, err
		}
		counts[yod] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*EventRecord, error) {
	var rec EventRecord
	if err := row.Scan(&rec.RunID, &rec.X, &rec.Y, &rec.YOD, &rec.EndYear,
		&rec.StartVal, &rec.EndVal, &rec.Mag, &rec.Dur, &rec.Rate, &rec.DSNR); err != nil {
		return nil, err
	}
	return &rec, nil
}
