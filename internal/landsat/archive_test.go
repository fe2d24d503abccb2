package landsat

import (
	"testing"
	"time"
)

// makeObs builds a 1x1 image whose six bands all hold v.
func makeObs(t *testing.T, sensorID string, at time.Time, v int16) *Image {
	t.Helper()
	im := NewImage(sensorID, at, 1, 1)
	for b := 0; b < NumBands; b++ {
		im.Bands[b][0] = v
	}
	return im
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMerge_OrdersByTimestamp(t *testing.T) {
	tm5 := TimeSeries{Images: []*Image{
		makeObs(t, "LT05", day(1999, 7, 1), 1),
		makeObs(t, "LT05", day(2001, 7, 1), 2),
	}}
	tm7 := TimeSeries{Images: []*Image{
		makeObs(t, "LE07", day(2000, 7, 1), 3),
	}}

	merged := Merge(tm5, tm7)
	if len(merged.Images) != 3 {
		t.Fatalf("merged length = %d, want 3", len(merged.Images))
	}
	for i := 1; i < len(merged.Images); i++ {
		if merged.Images[i].Time.Before(merged.Images[i-1].Time) {
			t.Fatalf("images out of order at %d: %v before %v",
				i, merged.Images[i].Time, merged.Images[i-1].Time)
		}
	}
}

func TestMerge_KeepsDuplicateDates(t *testing.T) {
	same := day(2000, 8, 15)
	a := TimeSeries{Images: []*Image{makeObs(t, "LE07", same, 1)}}
	b := TimeSeries{Images: []*Image{makeObs(t, "LC08", same, 2)}}

	merged := Merge(a, b)
	if len(merged.Images) != 2 {
		t.Fatalf("merged length = %d, want 2 (no dedup)", len(merged.Images))
	}
	// Stable: input order preserved for equal timestamps.
	if merged.Images[0].SensorID != "LE07" || merged.Images[1].SensorID != "LC08" {
		t.Errorf("equal-timestamp order = %s, %s; want LE07, LC08",
			merged.Images[0].SensorID, merged.Images[1].SensorID)
	}
}

func TestYears_DistinctSorted(t *testing.T) {
	ts := TimeSeries{Images: []*Image{
		makeObs(t, "LT05", day(2003, 7, 1), 1),
		makeObs(t, "LT05", day(1999, 7, 1), 1),
		makeObs(t, "LT05", day(2003, 8, 1), 1),
	}}
	years := ts.Years()
	want := []int{1999, 2003}
	if len(years) != len(want) {
		t.Fatalf("years = %v, want %v", years, want)
	}
	for i := range want {
		if years[i] != want[i] {
			t.Fatalf("years = %v, want %v", years, want)
		}
	}
}
