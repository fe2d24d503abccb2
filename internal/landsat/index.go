package landsat

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors for spectral index resolution. Callers can distinguish
// an index we know about but have not implemented from a name that is not
// a spectral index at all.
var (
	ErrIndexUnimplemented = errors.New("spectral index not implemented")
	ErrIndexUnknown       = errors.New("unrecognized spectral index")
)

// Index is the closed set of supported spectral change indices. Each index
// carries its normalized-difference band pair and the sign that orients
// increasing values toward vegetation loss.
type Index int

const (
	// NDVI is the normalized difference vegetation index, (B4-B3)/(B4+B3).
	NDVI Index = iota
	// NBR is the normalized burn ratio, (B4-B7)/(B4+B7).
	NBR
)

// recognizedIndices are standard spectral indices the reference tooling
// names but this pipeline does not support yet. Requesting one is an
// ErrIndexUnimplemented, not an ErrIndexUnknown.
var recognizedIndices = map[string]bool{
	"NDSI": true, "NDMI": true, "TCB": true, "TCG": true, "TCW": true, "TCA": true, "NBR2": true,
}

// ParseIndex resolves an index name. Unsupported-but-recognized names wrap
// ErrIndexUnimplemented; anything else wraps ErrIndexUnknown.
func ParseIndex(name string) (Index, error) {
	switch name {
	case "NDVI":
		return NDVI, nil
	case "NBR":
		return NBR, nil
	}
	if recognizedIndices[name] {
		return 0, fmt.Errorf("%w: %q (supported: NDVI, NBR)", ErrIndexUnimplemented, name)
	}
	return 0, fmt.Errorf("%w: %q", ErrIndexUnknown, name)
}

func (ix Index) String() string {
	switch ix {
	case NDVI:
		return "NDVI"
	case NBR:
		return "NBR"
	}
	return fmt.Sprintf("Index(%d)", int(ix))
}

// BandPair returns the (p, q) bands of the normalized difference (p-q)/(p+q).
func (ix Index) BandPair() (Band, Band) {
	if ix == NBR {
		return B4, B7
	}
	return B4, B3
}

// Direction returns the disturbance direction sign for the index: -1 means
// the raw index decreases on vegetation loss and is flipped so that fitted
// disturbance segments slope upward.
func (ix Index) Direction() int {
	return -1
}

// IndexImage is one composite converted for the trend fitter: a leading
// index band scaled by direction x 1000, plus carried-through feature
// ("ftv") bands. NaN marks no-data in the index band.
type IndexImage struct {
	Time         time.Time
	Width        int
	Height       int
	Index        []float64
	FeatureNames []string
	Features     [][]int16
}

// BuildIndexSeries derives the trend-fitter input from a composite series.
// ftvBands selects which canonical bands are carried through unchanged
// under ftv_ names.
func BuildIndexSeries(composites []*Image, ix Index, ftvBands []Band) ([]*IndexImage, error) {
	for _, b := range ftvBands {
		if b < 0 || b >= NumBands {
			return nil, fmt.Errorf("build index series: invalid feature band %d", int(b))
		}
	}

	out := make([]*IndexImage, 0, len(composites))
	for _, im := range composites {
		out = append(out, buildIndexImage(im, ix, ftvBands))
	}
	return out, nil
}

func buildIndexImage(im *Image, ix Index, ftvBands []Band) *IndexImage {
	p, q := ix.BandPair()
	dir := float64(ix.Direction())
	n := im.Width * im.Height

	idx := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b := im.Bands[p][i], im.Bands[q][i]
		sum := float64(a) + float64(b)
		if a == NoData || b == NoData || sum == 0 {
			idx[i] = math.NaN()
			continue
		}
		idx[i] = (float64(a) - float64(b)) / sum * dir * 1000
	}

	out := &IndexImage{
		Time:   im.Time,
		Width:  im.Width,
		Height: im.Height,
		Index:  idx,
	}
	for _, b := range ftvBands {
		grid := make([]int16, n)
		copy(grid, im.Bands[b])
		out.FeatureNames = append(out.FeatureNames, "ftv_"+b.String())
		out.Features = append(out.Features, grid)
	}
	return out
}
