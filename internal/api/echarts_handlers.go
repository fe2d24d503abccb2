package api

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleIndexChart renders an HTML line chart of a run's yearly index
// distribution using go-echarts. This is a debugging-only endpoint (no
// auth) to eyeball the composite series without a frontend.
// Query params:
//   - run_id (required)
func (s *Server) handleIndexChart(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run_id' parameter")
		return
	}

	run, err := s.runs.Get(runID)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run: %v", err))
		return
	}

	years, err := s.summaries.ByRun(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve summaries: %v", err))
		return
	}
	if len(years) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "No summaries for run")
		return
	}

	xAxis := make([]string, 0, len(years))
	mean := make([]opts.LineData, 0, len(years))
	p05 := make([]opts.LineData, 0, len(years))
	p95 := make([]opts.LineData, 0, len(years))
	for _, y := range years {
		xAxis = append(xAxis, fmt.Sprintf("%d", y.Year))
		// Empty years render as gaps: nil values break the line.
		mean = append(mean, opts.LineData{Value: nullableValue(y.IndexMean)})
		p05 = append(p05, opts.LineData{Value: nullableValue(y.IndexP05)})
		p95 = append(p95, opts.LineData{Value: nullableValue(y.IndexP95)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Yearly Index Distribution",
			Theme:     "dark",
			Width:     "1100px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s composite, %s", run.SpectralIndex, run.AOI),
			Subtitle: fmt.Sprintf("run=%s years=%d..%d", run.RunID, run.StartYear, run.EndYear),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Year"}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("%s x1000", run.SpectralIndex)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("mean", mean)
	line.AddSeries("p05", p05)
	line.AddSeries("p95", p95)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func nullableValue(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
