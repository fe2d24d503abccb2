// Package report computes per-year composite statistics and renders
// time-series plots of a pipeline run.
package report

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/canopy-data/clearcut.report/internal/landsat"
)

// YearStats summarizes one yearly composite's index band: coverage counts
// and the distribution of valid values. Statistics are NaN when the year
// has no valid pixels.
type YearStats struct {
	Year        int
	ValidPixels int
	TotalPixels int
	Mean        float64
	StdDev      float64
	P05         float64
	P50         float64
	P95         float64
}

// Summarize computes YearStats for each composite in the series, in input
// order. Quantiles are empirical, over valid (non-NaN) index values only.
func Summarize(series []*landsat.IndexImage) []YearStats {
	out := make([]YearStats, 0, len(series))
	for _, im := range series {
		out = append(out, summarizeImage(im))
	}
	return out
}

func summarizeImage(im *landsat.IndexImage) YearStats {
	st := YearStats{
		Year:        im.Time.Year(),
		TotalPixels: im.Width * im.Height,
		Mean:        math.NaN(),
		StdDev:      math.NaN(),
		P05:         math.NaN(),
		P50:         math.NaN(),
		P95:         math.NaN(),
	}

	valid := make([]float64, 0, st.TotalPixels)
	for _, v := range im.Index {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	st.ValidPixels = len(valid)
	if len(valid) == 0 {
		return st
	}

	sort.Float64s(valid)
	st.Mean = stat.Mean(valid, nil)
	st.StdDev = stat.StdDev(valid, nil)
	if math.IsNaN(st.StdDev) {
		// Single observation: spread is zero, not undefined.
		st.StdDev = 0
	}
	st.P05 = stat.Quantile(0.05, stat.Empirical, valid, nil)
	st.P50 = stat.Quantile(0.50, stat.Empirical, valid, nil)
	st.P95 = stat.Quantile(0.95, stat.Empirical, valid, nil)
	return st
}
