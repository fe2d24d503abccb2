package landsat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DayWindow is an inclusive within-year day window, e.g. 06-20 .. 09-10.
// Year-wrapping windows are not supported.
type DayWindow struct {
	StartMonth time.Month
	StartDay   int
	EndMonth   time.Month
	EndDay     int
}

// ParseDayWindow parses "mm-dd" start and end days into a DayWindow.
func ParseDayWindow(startDay, endDay string) (DayWindow, error) {
	var w DayWindow
	sm, sd, err := parseMonthDay(startDay)
	if err != nil {
		return w, fmt.Errorf("start day: %w", err)
	}
	em, ed, err := parseMonthDay(endDay)
	if err != nil {
		return w, fmt.Errorf("end day: %w", err)
	}
	w = DayWindow{StartMonth: sm, StartDay: sd, EndMonth: em, EndDay: ed}
	if em < sm || (em == sm && ed < sd) {
		return w, fmt.Errorf("day window %s..%s wraps the year boundary", startDay, endDay)
	}
	return w, nil
}

func parseMonthDay(s string) (time.Month, int, error) {
	var m, d int
	if _, err := fmt.Sscanf(s, "%d-%d", &m, &d); err != nil {
		return 0, 0, fmt.Errorf("invalid month-day %q: %w", s, err)
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return 0, 0, fmt.Errorf("invalid month-day %q", s)
	}
	return time.Month(m), d, nil
}

// Bounds returns the half-open [start, end) time range the window covers in
// year y. The end day is inclusive, so the exclusive bound is one day past it.
func (w DayWindow) Bounds(y int) (start, end time.Time) {
	start = time.Date(y, w.StartMonth, w.StartDay, 0, 0, 0, 0, time.UTC)
	end = time.Date(y, w.EndMonth, w.EndDay, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return start, end
}

// DataError reports a per-year data problem that degrades output rather
// than failing the invocation, e.g. a compositing year with no usable
// observations.
type DataError struct {
	Year int
	Msg  string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("year %d: %s", e.Year, e.Msg)
}

// CompositorConfig tunes the yearly medoid compositor.
type CompositorConfig struct {
	Window DayWindow
	// Workers bounds the pixel-parallel fan-out. Zero or negative means
	// a single worker.
	Workers int
}

// Compositor reduces a merged time series to one composite image per
// calendar year by per-pixel medoid selection.
type Compositor struct {
	cfg CompositorConfig
}

// NewCompositor creates a Compositor.
func NewCompositor(cfg CompositorConfig) *Compositor {
	return &Compositor{cfg: cfg}
}

// Composite produces one image per year present in the series, ascending.
// Every composite pixel is the exact band vector of one contributing
// observation (the medoid), never an averaged value. Years whose filtered
// observation set is empty yield an all-no-data image and a DataError in
// the returned slice; processing continues. The context is checked at year
// granularity, so a cancelled run keeps the composites already produced.
func (c *Compositor) Composite(ctx context.Context, ts TimeSeries) ([]*Image, []*DataError, error) {
	if len(ts.Images) == 0 {
		return nil, nil, nil
	}
	width, height := ts.Images[0].Width, ts.Images[0].Height
	for _, im := range ts.Images {
		if im.Width != width || im.Height != height {
			return nil, nil, fmt.Errorf("composite: image %s at %s has shape %dx%d, want %dx%d",
				im.SensorID, im.Time.Format("2006-01-02"), im.Width, im.Height, width, height)
		}
	}

	years := ts.Years()
	composites := make([]*Image, 0, len(years))
	var dataErrs []*DataError

	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return composites, dataErrs, err
		}

		start, end := c.cfg.Window.Bounds(year)
		var filtered []*Image
		for _, im := range ts.Images {
			if !im.Time.Before(start) && im.Time.Before(end) {
				filtered = append(filtered, im)
			}
		}
		// Keep the filtered set in acquisition order so the strict
		// minimum below resolves distance ties to the earliest timestamp.
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Time.Before(filtered[j].Time)
		})

		out := NewImage("medoid", time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), width, height)
		if len(filtered) == 0 {
			dataErrs = append(dataErrs, &DataError{Year: year, Msg: "no observations in compositing window"})
			composites = append(composites, out)
			continue
		}

		c.compositeYear(filtered, out)
		composites = append(composites, out)
	}
	return composites, dataErrs, nil
}

// compositeYear fills out with the per-pixel medoid of the filtered
// observations. Pixels are independent, so rows fan out across workers.
func (c *Compositor) compositeYear(filtered []*Image, out *Image) {
	workers := c.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > out.Height {
		workers = out.Height
	}

	rows := make(chan int, out.Height)
	for y := 0; y < out.Height; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scratch := make([]float64, 0, len(filtered))
			for y := range rows {
				for x := 0; x < out.Width; x++ {
					compositePixel(filtered, out, out.Idx(x, y), scratch)
				}
			}
		}()
	}
	wg.Wait()
}

// compositePixel selects the medoid observation for one pixel. The scratch
// slice is reused across pixels to avoid per-pixel allocation.
func compositePixel(filtered []*Image, out *Image, i int, scratch []float64) {
	// Per-band median across unmasked values. With whole-pixel masking the
	// contributing set matches the candidate set, but the reduction is
	// still per band: j masked out of k observations leaves k-j values.
	var median [NumBands]float64
	var medianOK [NumBands]bool
	for b := 0; b < NumBands; b++ {
		scratch = scratch[:0]
		for _, im := range filtered {
			if v := im.Bands[b][i]; v != NoData {
				scratch = append(scratch, float64(v))
			}
		}
		if len(scratch) == 0 {
			continue
		}
		median[b] = medianOf(scratch)
		medianOK[b] = true
	}

	// An observation competes only as a complete 6-band vector: any masked
	// band at this pixel removes it from candidacy outright.
	bestDist := 0.0
	var best *Image
	for _, im := range filtered {
		if !im.Valid(i) {
			continue
		}
		dist := 0.0
		for b := 0; b < NumBands; b++ {
			if !medianOK[b] {
				// Unreachable when a valid candidate exists, since its
				// own values contribute to every band's median.
				continue
			}
			d := float64(im.Bands[b][i]) - median[b]
			dist += d * d
		}
		// Strict less keeps the earliest acquisition on ties: filtered is
		// in chronological order.
		if best == nil || dist < bestDist {
			best, bestDist = im, dist
		}
	}
	if best == nil {
		return // fully masked pixel stays no-data
	}
	for b := 0; b < NumBands; b++ {
		out.Bands[b][i] = best.Bands[b][i]
	}
}

// medianOf returns the median of values, averaging the two middle values
// for even counts. values is sorted in place.
func medianOf(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
