// Package trend turns an externally fitted piecewise-linear trend model
// into per-pixel segment features and filtered disturbance events.
//
// The fitting algorithm itself is an external collaborator: this package
// consumes its finished per-pixel breakpoint output and never reimplements
// the vertex search.
package trend

import (
	"context"

	"github.com/canopy-data/clearcut.report/internal/landsat"
)

// Vertex is one breakpoint of the fitted trend: the fitted index value at
// a given year. Per-pixel vertex sequences are ordered by year.
type Vertex struct {
	Year  int
	Value float64
}

// FitImage is the trend fitter's per-pixel output over a grid: a vertex
// sequence and a residual (rmse) scalar per pixel, row-major. Pixels the
// fitter could not model carry an empty vertex slice.
type FitImage struct {
	Width    int
	Height   int
	Vertices [][]Vertex
	RMSE     []float64
}

// Idx returns the row-major index for pixel (x, y).
func (f *FitImage) Idx(x, y int) int { return y*f.Width + x }

// Fitter is the external trend-model boundary. It receives the index/feature
// series produced by the compositing side and returns the fitted breakpoint
// model. Implementations own their timeout and retry policy.
type Fitter interface {
	FitTrend(ctx context.Context, series []*landsat.IndexImage) (*FitImage, error)
}
