package landsat

import "time"

// RawImage is one acquisition as delivered by an archive provider: named
// band grids plus the pixel QA grid, all row-major with the same shape.
// Band naming follows the source sensor (TM: B1..B5,B7; OLI: B2..B7).
type RawImage struct {
	SensorID string
	Time     time.Time
	Width    int
	Height   int
	Bands    map[string][]int16
	QA       []uint16
}

// Idx returns the row-major index for pixel (x, y).
func (im *RawImage) Idx(x, y int) int { return y*im.Width + x }

// Image is a harmonized acquisition: the canonical 6-band vector per pixel.
// Masked pixels hold NoData in every band. Bands are stored as parallel
// row-major grids so per-band reductions stay cache friendly.
type Image struct {
	SensorID string
	Time     time.Time
	Width    int
	Height   int
	Bands    [NumBands][]int16
}

// NewImage allocates an all-NoData image of the given shape.
func NewImage(sensorID string, t time.Time, width, height int) *Image {
	im := &Image{
		SensorID: sensorID,
		Time:     t,
		Width:    width,
		Height:   height,
	}
	n := width * height
	for b := 0; b < NumBands; b++ {
		px := make([]int16, n)
		for i := range px {
			px[i] = NoData
		}
		im.Bands[b] = px
	}
	return im
}

// Idx returns the row-major index for pixel (x, y).
func (im *Image) Idx(x, y int) int { return y*im.Width + x }

// Vector copies the 6-band vector at pixel index i.
func (im *Image) Vector(i int) [NumBands]int16 {
	var v [NumBands]int16
	for b := 0; b < NumBands; b++ {
		v[b] = im.Bands[b][i]
	}
	return v
}

// Valid reports whether pixel index i carries a complete band vector.
// Masking is whole-pixel: either all six bands are present or none are.
func (im *Image) Valid(i int) bool {
	for b := 0; b < NumBands; b++ {
		if im.Bands[b][i] == NoData {
			return false
		}
	}
	return true
}

// MaskPixel marks pixel index i as no-data in every band.
func (im *Image) MaskPixel(i int) {
	for b := 0; b < NumBands; b++ {
		im.Bands[b][i] = NoData
	}
}
