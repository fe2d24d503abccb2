package trend

import (
	"fmt"
	"math"
	"sync"
)

// Segment holds the derived features of the interval between two
// consecutive vertices. Rate and DSNR are NaN when their denominator is
// zero; that is degraded data, not an error.
type Segment struct {
	StartYear int     // first full year after the starting vertex
	EndYear   int     // ending vertex year
	StartVal  float64 // starting vertex value, orientation applied
	EndVal    float64 // ending vertex value, orientation applied
	Magnitude float64
	Duration  int
	Rate      float64
	DSNR      float64 // magnitude over the model's residual error
}

// SegmentImage carries the per-pixel segment sequences for a grid.
type SegmentImage struct {
	Width    int
	Height   int
	Segments [][]Segment
}

// Idx returns the row-major index for pixel (x, y).
func (s *SegmentImage) Idx(x, y int) int { return y*s.Width + x }

// ExtractSegments derives the N-1 segments of one pixel's N-vertex
// sequence. dir is the orientation multiplier: the index's disturbance
// direction when the caller wants loss segments to slope upward, else +1.
//
// The order of operations is deliberate: dir is applied to the endpoint
// values first and again to the magnitude. The two applications are
// algebraically redundant for the magnitude's sign but the endpoint values
// must be reported in oriented form, so both happen.
func ExtractSegments(vertices []Vertex, rmse float64, dir int) []Segment {
	if len(vertices) < 2 {
		return nil
	}
	d := float64(dir)
	segments := make([]Segment, 0, len(vertices)-1)
	for i := 0; i+1 < len(vertices); i++ {
		left, right := vertices[i], vertices[i+1]
		seg := Segment{
			StartYear: left.Year + 1,
			EndYear:   right.Year,
			StartVal:  left.Value * d,
			EndVal:    right.Value * d,
		}
		seg.Duration = seg.EndYear - seg.StartYear
		seg.Magnitude = (seg.EndVal - seg.StartVal) * d
		if seg.Duration == 0 {
			seg.Rate = math.NaN()
		} else {
			seg.Rate = seg.Magnitude / float64(seg.Duration)
		}
		if rmse == 0 {
			seg.DSNR = math.NaN()
		} else {
			seg.DSNR = seg.Magnitude / rmse
		}
		segments = append(segments, seg)
	}
	return segments
}

// ExtractSegmentImage runs ExtractSegments across a whole fitted grid,
// fanning rows out over workers. Vertex years must be strictly increasing
// per pixel: adjacent vertices one year apart already produce the minimum
// duration of zero, and anything tighter would go negative, so a
// non-increasing sequence fails the invocation.
func ExtractSegmentImage(fit *FitImage, dir int, workers int) (*SegmentImage, error) {
	n := fit.Width * fit.Height
	if len(fit.Vertices) != n || len(fit.RMSE) != n {
		return nil, fmt.Errorf("extract segments: fit grids have length %d/%d, want %d",
			len(fit.Vertices), len(fit.RMSE), n)
	}
	for i, vs := range fit.Vertices {
		for j := 1; j < len(vs); j++ {
			if vs[j].Year <= vs[j-1].Year {
				return nil, fmt.Errorf("extract segments: pixel %d has non-increasing vertex years %d -> %d",
					i, vs[j-1].Year, vs[j].Year)
			}
		}
	}

	if workers < 1 {
		workers = 1
	}
	if workers > fit.Height {
		workers = fit.Height
	}

	out := &SegmentImage{
		Width:    fit.Width,
		Height:   fit.Height,
		Segments: make([][]Segment, n),
	}

	rows := make(chan int, fit.Height)
	for y := 0; y < fit.Height; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				for x := 0; x < fit.Width; x++ {
					i := fit.Idx(x, y)
					out.Segments[i] = ExtractSegments(fit.Vertices[i], fit.RMSE[i], dir)
				}
			}
		}()
	}
	wg.Wait()
	return out, nil
}
