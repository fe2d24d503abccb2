// Package pipeline wires the full disturbance-mapping run: acquisition,
// harmonization, archive merging, yearly medoid compositing, index
// derivation, trend fitting, and event selection, with optional persistence
// of run records, per-year summaries, and detected events.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/canopy-data/clearcut.report/internal/config"
	"github.com/canopy-data/clearcut.report/internal/landsat"
	"github.com/canopy-data/clearcut.report/internal/monitoring"
	"github.com/canopy-data/clearcut.report/internal/report"
	"github.com/canopy-data/clearcut.report/internal/trend"
	trendstore "github.com/canopy-data/clearcut.report/internal/trend/storage/sqlite"
)

// Params are the resolved parameters of one run.
type Params struct {
	AOI     string   `json:"aoi"`
	Sensors []string `json:"sensors"`

	StartYear int               `json:"start_year"`
	EndYear   int               `json:"end_year"`
	Window    landsat.DayWindow `json:"-"`

	TargetWidth  int `json:"target_width"`
	TargetHeight int `json:"target_height"`

	Index    landsat.Index  `json:"-"`
	FTVBands []landsat.Band `json:"-"`

	EventStartYear int     `json:"event_start_year"`
	EventEndYear   int     `json:"event_end_year"`
	DSNRThreshold  float64 `json:"dsnr_threshold"`

	Workers int `json:"workers"`
}

// ParamsFromConfig resolves run parameters from a loaded pipeline config.
func ParamsFromConfig(cfg *config.PipelineConfig, aoi string, sensors []string) (Params, error) {
	window, err := landsat.ParseDayWindow(cfg.GetStartDay(), cfg.GetEndDay())
	if err != nil {
		return Params{}, fmt.Errorf("pipeline params: %w", err)
	}
	ix, err := landsat.ParseIndex(cfg.GetIndex())
	if err != nil {
		return Params{}, fmt.Errorf("pipeline params: %w", err)
	}
	var ftv []landsat.Band
	for _, name := range cfg.GetFTVBands() {
		b, err := landsat.ParseBand(name)
		if err != nil {
			return Params{}, fmt.Errorf("pipeline params: %w", err)
		}
		ftv = append(ftv, b)
	}
	return Params{
		AOI:            aoi,
		Sensors:        sensors,
		StartYear:      cfg.GetStartYear(),
		EndYear:        cfg.GetEndYear(),
		Window:         window,
		TargetWidth:    cfg.GetTargetWidth(),
		TargetHeight:   cfg.GetTargetHeight(),
		Index:          ix,
		FTVBands:       ftv,
		EventStartYear: cfg.GetEventStartYear(),
		EventEndYear:   cfg.GetEventEndYear(),
		DSNRThreshold:  cfg.GetDSNRThreshold(),
		Workers:        cfg.GetWorkers(),
	}, nil
}

func (p Params) validate() error {
	if p.AOI == "" {
		return fmt.Errorf("pipeline: area of interest is required")
	}
	if len(p.Sensors) == 0 {
		return fmt.Errorf("pipeline: at least one sensor is required")
	}
	if p.StartYear > p.EndYear {
		return fmt.Errorf("pipeline: start year %d after end year %d", p.StartYear, p.EndYear)
	}
	return nil
}

// Stores collects the optional persistence sinks of a run. Nil fields are
// skipped, so the runner works without a database.
type Stores struct {
	Runs      *trendstore.RunStore
	Summaries *trendstore.SummaryStore
	Events    *trendstore.EventStore
}

// Runner executes disturbance-mapping runs against an archive provider.
// The trend fitter is optional: without one the run stops after the
// composite summaries.
type Runner struct {
	provider landsat.Provider
	fitter   trend.Fitter
	stores   Stores
}

// NewRunner creates a Runner.
func NewRunner(provider landsat.Provider, fitter trend.Fitter, stores Stores) *Runner {
	return &Runner{provider: provider, fitter: fitter, stores: stores}
}

// Result is the in-memory outcome of one run.
type Result struct {
	RunID      string
	Years      []int
	Stats      []report.YearStats
	DataErrors []*landsat.DataError
	Events     *trend.EventImage
	EventCount int
}

// Run executes the pipeline once. Per-year data problems degrade the output
// and are reported in the result; they never fail the run. A cancelled
// context fails the run and marks the persisted record failed.
func (r *Runner) Run(ctx context.Context, p Params) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if r.provider == nil {
		return nil, fmt.Errorf("pipeline: no archive provider configured")
	}

	runID, err := r.insertRun(p)
	if err != nil {
		return nil, err
	}

	res, err := r.run(ctx, runID, p)
	if r.stores.Runs != nil && runID != "" {
		status := trendstore.RunStatusComplete
		if err != nil {
			status = trendstore.RunStatusFailed
		}
		if ferr := r.stores.Runs.Finish(runID, status); ferr != nil {
			monitoring.Logf("pipeline: failed to finish run %s: %v", runID, ferr)
		}
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, runID string, p Params) (*Result, error) {
	start := time.Date(p.StartYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(p.EndYear, time.December, 31, 23, 59, 59, 0, time.UTC)
	harmonizer := landsat.NewHarmonizer(landsat.HarmonizerConfig{
		TargetWidth:  p.TargetWidth,
		TargetHeight: p.TargetHeight,
	})

	var series []landsat.TimeSeries
	for _, sensorID := range p.Sensors {
		family, err := landsat.FamilyForSensor(sensorID)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		raws, err := r.provider.Acquisitions(ctx, p.AOI, start, end, sensorID)
		if err != nil {
			return nil, fmt.Errorf("pipeline: acquisitions for %s: %w", sensorID, err)
		}

		var ts landsat.TimeSeries
		for _, raw := range raws {
			im, err := harmonizer.Harmonize(raw, family)
			if err != nil {
				return nil, fmt.Errorf("pipeline: %w", err)
			}
			ts.Images = append(ts.Images, im)
		}
		monitoring.Debugf("pipeline: %s: harmonized %d acquisitions for %s", sensorID, len(ts.Images), p.AOI)
		series = append(series, ts)
	}

	merged := landsat.Merge(series...)
	if len(merged.Images) == 0 {
		return nil, fmt.Errorf("pipeline: no acquisitions for %s in %d..%d", p.AOI, p.StartYear, p.EndYear)
	}

	compositor := landsat.NewCompositor(landsat.CompositorConfig{Window: p.Window, Workers: p.Workers})
	composites, dataErrs, err := compositor.Composite(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("pipeline: composite: %w", err)
	}
	for _, de := range dataErrs {
		monitoring.Logf("pipeline: %s: data error: %v", p.AOI, de)
		if r.stores.Runs != nil && runID != "" {
			rec := &trendstore.DataErrorRecord{RunID: runID, Year: de.Year, Message: de.Msg}
			if err := r.stores.Runs.InsertDataError(rec); err != nil {
				monitoring.Logf("pipeline: failed to record data error: %v", err)
			}
		}
	}

	idxSeries, err := landsat.BuildIndexSeries(composites, p.Index, p.FTVBands)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	stats := report.Summarize(idxSeries)
	if err := r.insertSummaries(runID, stats); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:      runID,
		Years:      merged.Years(),
		Stats:      stats,
		DataErrors: dataErrs,
	}
	if r.fitter == nil {
		return res, nil
	}

	fit, err := r.fitter.FitTrend(ctx, idxSeries)
	if err != nil {
		return nil, fmt.Errorf("pipeline: trend fit: %w", err)
	}
	segs, err := trend.ExtractSegmentImage(fit, p.Index.Direction(), p.Workers)
	if err != nil {
		return nil, fmt.Errorf("pipeline: segments: %w", err)
	}
	events := trend.SelectEvents(segs, trend.SelectorConfig{
		StartYear:     p.EventStartYear,
		EndYear:       p.EventEndYear,
		DSNRThreshold: p.DSNRThreshold,
		Workers:       p.Workers,
	})
	res.Events = events

	if r.stores.Events != nil && runID != "" {
		n, err := r.stores.Events.InsertImage(runID, events)
		if err != nil {
			return nil, fmt.Errorf("pipeline: persist events: %w", err)
		}
		res.EventCount = n
		monitoring.Debugf("pipeline: run %s: persisted %d events", runID, n)
	} else {
		res.EventCount = countDetected(events)
	}
	return res, nil
}

func (r *Runner) insertRun(p Params) (string, error) {
	if r.stores.Runs == nil {
		return "", nil
	}
	ftv := make([]string, 0, len(p.FTVBands))
	for _, b := range p.FTVBands {
		ftv = append(ftv, b.String())
	}
	params, err := json.Marshal(struct {
		Params
		Index       string   `json:"index"`
		WindowStart string   `json:"start_day"`
		WindowEnd   string   `json:"end_day"`
		FTVBands    []string `json:"ftv_bands"`
	}{
		Params:      p,
		Index:       p.Index.String(),
		WindowStart: fmt.Sprintf("%02d-%02d", int(p.Window.StartMonth), p.Window.StartDay),
		WindowEnd:   fmt.Sprintf("%02d-%02d", int(p.Window.EndMonth), p.Window.EndDay),
		FTVBands:    ftv,
	})
	if err != nil {
		return "", fmt.Errorf("pipeline: encode params: %w", err)
	}
	run := &trendstore.PipelineRun{
		AOI:           p.AOI,
		SpectralIndex: p.Index.String(),
		StartYear:     p.StartYear,
		EndYear:       p.EndYear,
		ParamsJSON:    params,
	}
	if err := r.stores.Runs.Insert(run); err != nil {
		return "", fmt.Errorf("pipeline: insert run: %w", err)
	}
	monitoring.Logf("pipeline: run %s started for %s (%s %d..%d)",
		run.RunID, p.AOI, p.Index, p.StartYear, p.EndYear)
	return run.RunID, nil
}

func (r *Runner) insertSummaries(runID string, stats []report.YearStats) error {
	if r.stores.Summaries == nil || runID == "" {
		return nil
	}
	for _, st := range stats {
		sum := &trendstore.YearSummary{
			RunID:       runID,
			Year:        st.Year,
			ValidPixels: st.ValidPixels,
			TotalPixels: st.TotalPixels,
		}
		if st.ValidPixels > 0 {
			mean, stddev, p05, p50, p95 := st.Mean, st.StdDev, st.P05, st.P50, st.P95
			sum.IndexMean = &mean
			sum.IndexStdDev = &stddev
			sum.IndexP05 = &p05
			sum.IndexP50 = &p50
			sum.IndexP95 = &p95
		}
		if err := r.stores.Summaries.Insert(sum); err != nil {
			return fmt.Errorf("pipeline: persist summary for %d: %w", st.Year, err)
		}
	}
	return nil
}

func countDetected(im *trend.EventImage) int {
	n := 0
	for _, yod := range im.Channels[trend.ChYearOfDetection] {
		if !math.IsNaN(yod) {
			n++
		}
	}
	return n
}
