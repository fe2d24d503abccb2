// Package sqlite caches raw Landsat acquisitions in a local database so
// repeated pipeline runs over the same area avoid refetching. The store
// satisfies the archive provider boundary.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/canopy-data/clearcut.report/internal/landsat"
)

// ArchiveStore persists raw acquisitions and serves them back as an
// ordered time series per area, sensor, and date range.
type ArchiveStore struct {
	db *sql.DB
}

// NewArchiveStore creates an ArchiveStore backed by the given database.
func NewArchiveStore(db *sql.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

var _ landsat.Provider = (*ArchiveStore)(nil)

// Put caches one raw acquisition for an area of interest.
func (s *ArchiveStore) Put(aoi string, raw *landsat.RawImage) error {
	if raw.Width <= 0 || raw.Height <= 0 {
		return fmt.Errorf("archive put %s: invalid shape %dx%d", raw.SensorID, raw.Width, raw.Height)
	}
	n := raw.Width * raw.Height
	if len(raw.QA) != n {
		return fmt.Errorf("archive put %s: QA grid length %d does not match %dx%d",
			raw.SensorID, len(raw.QA), raw.Width, raw.Height)
	}

	// Bands are stored as one concatenated little-endian int16 blob, in the
	// sorted order recorded by band_names.
	names := make([]string, 0, len(raw.Bands))
	for name, grid := range raw.Bands {
		if len(grid) != n {
			return fmt.Errorf("archive put %s: band %s length %d does not match %dx%d",
				raw.SensorID, name, len(grid), raw.Width, raw.Height)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	bands := make([]byte, 0, 2*n*len(names))
	for _, name := range names {
		bands = appendInt16Grid(bands, raw.Bands[name])
	}
	qa := appendUint16Grid(make([]byte, 0, 2*n), raw.QA)

	return s.insert(&acquisitionRow{
		ID:        uuid.New().String(),
		AOI:       aoi,
		SensorID:  raw.SensorID,
		UnixNanos: raw.Time.UnixNano(),
		Width:     raw.Width,
		Height:    raw.Height,
		BandNames: strings.Join(names, ","),
		Bands:     bands,
		QA:        qa,
	})
}

// Acquisitions returns the cached acquisitions for the area, sensor, and
// inclusive date range, ordered by acquisition time.
func (s *ArchiveStore) Acquisitions(ctx context.Context, aoi string, start, end time.Time, sensorID string) ([]*landsat.RawImage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sensor_id, acquired_unix_nanos, width, height, band_names, bands, qa
		FROM landsat_acquisitions
		WHERE aoi = ? AND sensor_id = ? AND acquired_unix_nanos BETWEEN ? AND ?
		ORDER BY acquired_unix_nanos`,
		aoi, sensorID, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*landsat.RawImage
	for rows.Next() {
		var row acquisitionRow
		if err := rows.Scan(&row.SensorID, &row.UnixNanos, &row.Width, &row.Height,
			&row.BandNames, &row.Bands, &row.QA); err != nil {
			return nil, err
		}
		raw, err := decodeAcquisition(&row)
		if err != nil {
			return nil, err
		}
		images = append(images, raw)
	}
	return images, rows.Err()
}

// Count returns the number of cached acquisitions for an area.
func (s *ArchiveStore) Count(aoi string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM landsat_acquisitions WHERE aoi = ?`, aoi).Scan(&n)
	return n, err
}

type acquisitionRow struct {
	ID        string
	AOI       string
	SensorID  string
	UnixNanos int64
	Width     int
	Height    int
	BandNames string
	Bands     []byte
	QA        []byte
}

func (s *ArchiveStore) insert(row *acquisitionRow) error {
	_, err := s.db.Exec(`
		INSERT INTO landsat_acquisitions (
			acquisition_id, aoi, sensor_id, acquired_unix_nanos,
			width, height, band_names, bands, qa
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.AOI, row.SensorID, row.UnixNanos,
		row.Width, row.Height, row.BandNames, row.Bands, row.QA)
	return err
}

func decodeAcquisition(row *acquisitionRow) (*landsat.RawImage, error) {
	n := row.Width * row.Height
	names := strings.Split(row.BandNames, ",")
	if len(row.Bands) != 2*n*len(names) {
		return nil, fmt.Errorf("archive decode %s: bands blob length %d does not match %d bands of %dx%d",
			row.SensorID, len(row.Bands), len(names), row.Width, row.Height)
	}
	if len(row.QA) != 2*n {
		return nil, fmt.Errorf("archive decode %s: qa blob length %d does not match %dx%d",
			row.SensorID, len(row.QA), row.Width, row.Height)
	}

	raw := &landsat.RawImage{
		SensorID: row.SensorID,
		Time:     time.Unix(0, row.UnixNanos).UTC(),
		Width:    row.Width,
		Height:   row.Height,
		Bands:    make(map[string][]int16, len(names)),
		QA:       decodeUint16Grid(row.QA, n),
	}
	for i, name := range names {
		raw.Bands[name] = decodeInt16Grid(row.Bands[2*n*i:2*n*(i+1)], n)
	}
	return raw, nil
}

func appendInt16Grid(buf []byte, grid []int16) []byte {
	for _, v := range grid {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
	}
	return buf
}

func appendUint16Grid(buf []byte, grid []uint16) []byte {
	for _, v := range grid {
		buf = binary.LittleEndian.AppendUint16(buf, v)
	}
	return buf
}

func decodeInt16Grid(buf []byte, n int) []int16 {
	grid := make([]int16, n)
	for i := 0; i < n; i++ {
		grid[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return grid
}

func decodeUint16Grid(buf []byte, n int) []uint16 {
	grid := make([]uint16, n)
	for i := 0; i < n; i++ {
		grid[i] = binary.LittleEndian.Uint16(buf[2*i:])
	}
	return grid
}
