package landsat

import (
	"context"
	"sort"
	"time"
)

// TimeSeries is an ordered-by-timestamp sequence of harmonized images over
// one area of interest. After merging it may span multiple sensors;
// duplicate timestamps are permitted and never deduplicated.
type TimeSeries struct {
	Images []*Image
}

// Merge concatenates independently harmonized per-sensor series into one
// series ordered by acquisition time. The sort is stable so observations
// sharing a timestamp keep their input order, and overlapping sensors are
// retained as independent observations.
func Merge(series ...TimeSeries) TimeSeries {
	var merged TimeSeries
	for _, s := range series {
		merged.Images = append(merged.Images, s.Images...)
	}
	sort.SliceStable(merged.Images, func(i, j int) bool {
		return merged.Images[i].Time.Before(merged.Images[j].Time)
	})
	return merged
}

// Years enumerates the distinct calendar years present in the series,
// ascending. Year enumeration is global: it depends on which acquisition
// dates exist anywhere in the archive, not on any one pixel.
func (ts TimeSeries) Years() []int {
	seen := make(map[int]bool)
	var years []int
	for _, im := range ts.Images {
		y := im.Time.Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

// Provider is the archive boundary: given an area of interest, a date
// range, and a sensor identifier, it returns the ordered raw acquisitions.
// Fetching and any retry policy live behind this interface; errors are
// propagated to the caller unchanged.
type Provider interface {
	Acquisitions(ctx context.Context, aoi string, start, end time.Time, sensorID string) ([]*RawImage, error)
}
