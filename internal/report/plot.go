package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotRunCharts renders PNG charts for a run into outputDir: the per-year
// index distribution and coverage, plus a disturbance histogram when event
// counts are provided. Returns the number of plots written.
func PlotRunCharts(outputDir, indexName string, stats []YearStats, eventsByYear map[int]int) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	plots := 0
	if err := plotIndexSeries(filepath.Join(outputDir, "index_series.png"), indexName, stats); err != nil {
		return plots, err
	}
	plots++

	if err := plotCoverage(filepath.Join(outputDir, "coverage.png"), stats); err != nil {
		return plots, err
	}
	plots++

	if len(eventsByYear) > 0 {
		if err := plotEventHistogram(filepath.Join(outputDir, "events_by_year.png"), eventsByYear); err != nil {
			return plots, err
		}
		plots++
	}
	return plots, nil
}

// plotIndexSeries draws the yearly mean with the p05..p95 envelope.
func plotIndexSeries(path, indexName string, stats []YearStats) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Yearly %s Composite", indexName)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = fmt.Sprintf("%s x1000 (disturbance-oriented)", indexName)

	meanPts := make(plotter.XYs, 0, len(stats))
	loPts := make(plotter.XYs, 0, len(stats))
	hiPts := make(plotter.XYs, 0, len(stats))
	for _, st := range stats {
		// Empty years leave a gap rather than plotting at zero.
		if math.IsNaN(st.Mean) {
			continue
		}
		meanPts = append(meanPts, plotter.XY{X: float64(st.Year), Y: st.Mean})
		loPts = append(loPts, plotter.XY{X: float64(st.Year), Y: st.P05})
		hiPts = append(hiPts, plotter.XY{X: float64(st.Year), Y: st.P95})
	}

	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return err
	}
	meanLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	meanLine.Width = vg.Points(2)
	p.Add(meanLine)
	p.Legend.Add("mean", meanLine)

	for _, band := range []struct {
		name string
		pts  plotter.XYs
	}{{"p05", loPts}, {"p95", hiPts}} {
		line, err := plotter.NewLine(band.pts)
		if err != nil {
			return err
		}
		line.Color = color.RGBA{R: 150, G: 150, B: 150, A: 255}
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add(band.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}

// plotCoverage draws the fraction of valid pixels per year.
func plotCoverage(path string, stats []YearStats) error {
	p := plot.New()
	p.Title.Text = "Composite Coverage"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Valid pixel fraction"
	p.Y.Min = 0
	p.Y.Max = 1

	pts := make(plotter.XYs, 0, len(stats))
	for _, st := range stats {
		frac := 0.0
		if st.TotalPixels > 0 {
			frac = float64(st.ValidPixels) / float64(st.TotalPixels)
		}
		pts = append(pts, plotter.XY{X: float64(st.Year), Y: frac})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	line.Width = vg.Points(1.5)
	p.Add(line)
	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}

// plotEventHistogram draws detected disturbance counts per detection year.
func plotEventHistogram(path string, eventsByYear map[int]int) error {
	years := make([]int, 0, len(eventsByYear))
	for y := range eventsByYear {
		years = append(years, y)
	}
	sort.Ints(years)

	vals := make(plotter.Values, 0, len(years))
	labels := make([]string, 0, len(years))
	for _, y := range years {
		vals = append(vals, float64(eventsByYear[y]))
		labels = append(labels, fmt.Sprintf("%d", y))
	}

	p := plot.New()
	p.Title.Text = "Disturbance Events by Detection Year"
	p.X.Label.Text = "Detection year"
	p.Y.Label.Text = "Pixels"

	bars, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil {
		return err
	}
	bars.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(labels...)
	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir builds a timestamped per-run plot directory under baseDir.
func MakePlotOutputDir(baseDir, runID string) string {
	return filepath.Join(baseDir, runID, FormatTimestamp(time.Now()))
}
