// Package landsat implements the surface-reflectance side of the disturbance
// mapping pipeline: sensor harmonization into a canonical 6-band
// representation, archive merging, and yearly medoid compositing.
package landsat

import "fmt"

// Band indexes one of the six canonical TM-equivalent spectral bands.
// All sensor families are normalized into this ordering before compositing.
type Band int

const (
	B1 Band = iota // blue
	B2             // green
	B3             // red
	B4             // near infrared
	B5             // shortwave infrared 1
	B7             // shortwave infrared 2

	// NumBands is the length of the canonical band vector.
	NumBands = 6
)

// BandNames gives the canonical name for each Band, in order.
var BandNames = [NumBands]string{"B1", "B2", "B3", "B4", "B5", "B7"}

func (b Band) String() string {
	if b < 0 || b >= NumBands {
		return "B?"
	}
	return BandNames[b]
}

// ParseBand resolves a canonical band name.
func ParseBand(name string) (Band, error) {
	for b, n := range BandNames {
		if n == name {
			return Band(b), nil
		}
	}
	return 0, fmt.Errorf("unknown band %q", name)
}

// NoData is the sentinel for a masked or missing band value. Surface
// reflectance values are scaled into [0, 10000] so the int16 minimum can
// never occur as real data.
const NoData int16 = -32768
