package landsat

import (
	"fmt"
	"strings"
)

// SensorFamily selects the band layout of a raw acquisition.
type SensorFamily int

const (
	// FamilyTM covers the Thematic Mapper instruments (Landsat 5 TM and
	// Landsat 7 ETM+). Canonical bands map 1:1; the thermal band 6 is dropped.
	FamilyTM SensorFamily = iota
	// FamilyOLI covers the Operational Land Imager (Landsat 8). Bands 2..7
	// map to B1..B5,B7 and a linear recalibration converts OLI reflectance
	// to TM-equivalent values.
	FamilyOLI
)

func (f SensorFamily) String() string {
	switch f {
	case FamilyTM:
		return "TM"
	case FamilyOLI:
		return "OLI"
	}
	return "unknown"
}

// FamilyForSensor resolves a sensor identifier to its band-layout family.
// Identifiers follow the Landsat product convention ("LT05", "LE07", "LC08").
func FamilyForSensor(sensorID string) (SensorFamily, error) {
	switch {
	case strings.HasPrefix(sensorID, "LT04"), strings.HasPrefix(sensorID, "LT05"), strings.HasPrefix(sensorID, "LE07"):
		return FamilyTM, nil
	case strings.HasPrefix(sensorID, "LC08"), strings.HasPrefix(sensorID, "LC09"):
		return FamilyOLI, nil
	}
	return 0, fmt.Errorf("unknown sensor %q", sensorID)
}

// InputBands returns the source band names feeding the canonical vector,
// in canonical order.
func (f SensorFamily) InputBands() [NumBands]string {
	if f == FamilyOLI {
		return [NumBands]string{"B2", "B3", "B4", "B5", "B6", "B7"}
	}
	return [NumBands]string{"B1", "B2", "B3", "B4", "B5", "B7"}
}

// QA bit positions in the pixel_qa grid. A pixel is valid only when all
// four bits are clear.
const (
	qaWaterBit       = 1 << 2
	qaCloudShadowBit = 1 << 3
	qaSnowBit        = 1 << 4
	qaCloudBit       = 1 << 5
)

// Roy et al. OLI-to-ETM+ harmonization coefficients, per canonical band.
// Output = (input - intercept*10000) / slope, truncated toward zero.
var (
	oliSlopes     = [NumBands]float64{0.9785, 0.9542, 0.9825, 1.0073, 1.0171, 0.9949}
	oliIntercepts = [NumBands]float64{-0.0095, -0.0016, -0.0022, -0.0021, -0.0030, 0.0029}
)

// HarmonizerConfig controls geometric alignment of raw acquisitions.
// Interpolation is fixed to bilinear; only the target shape is tunable.
// A zero target keeps the source shape.
type HarmonizerConfig struct {
	TargetWidth  int
	TargetHeight int
}

// Harmonizer normalizes raw per-sensor acquisitions into canonical
// 6-band, QA-masked images.
type Harmonizer struct {
	cfg HarmonizerConfig
}

// NewHarmonizer creates a Harmonizer with the given alignment config.
func NewHarmonizer(cfg HarmonizerConfig) *Harmonizer {
	return &Harmonizer{cfg: cfg}
}

// Harmonize converts one raw acquisition into the canonical representation:
// bilinear resample to the common alignment, QA masking, band selection and
// renaming, and (for OLI) the Roy recalibration. The acquisition timestamp
// is carried through unchanged.
func (h *Harmonizer) Harmonize(raw *RawImage, family SensorFamily) (*Image, error) {
	if raw.Width <= 0 || raw.Height <= 0 {
		return nil, fmt.Errorf("harmonize %s: invalid shape %dx%d", raw.SensorID, raw.Width, raw.Height)
	}
	if len(raw.QA) != raw.Width*raw.Height {
		return nil, fmt.Errorf("harmonize %s: QA grid length %d does not match %dx%d",
			raw.SensorID, len(raw.QA), raw.Width, raw.Height)
	}

	inputs := family.InputBands()
	for _, name := range inputs {
		grid, ok := raw.Bands[name]
		if !ok {
			return nil, fmt.Errorf("harmonize %s: missing band %s", raw.SensorID, name)
		}
		if len(grid) != raw.Width*raw.Height {
			return nil, fmt.Errorf("harmonize %s: band %s length %d does not match %dx%d",
				raw.SensorID, name, len(grid), raw.Width, raw.Height)
		}
	}

	dstW, dstH := h.cfg.TargetWidth, h.cfg.TargetHeight
	if dstW == 0 || dstH == 0 {
		dstW, dstH = raw.Width, raw.Height
	}

	out := &Image{
		SensorID: raw.SensorID,
		Time:     raw.Time,
		Width:    dstW,
		Height:   dstH,
	}
	for b := 0; b < NumBands; b++ {
		out.Bands[b] = resampleBilinear(raw.Bands[inputs[b]], raw.Width, raw.Height, dstW, dstH)
	}
	// QA flags are categorical, so the alignment step samples them
	// nearest-neighbour rather than interpolating bit patterns.
	qa := resampleNearest(raw.QA, raw.Width, raw.Height, dstW, dstH)

	n := dstW * dstH
	for i := 0; i < n; i++ {
		if qa[i]&(qaWaterBit|qaCloudShadowBit|qaSnowBit|qaCloudBit) != 0 {
			out.MaskPixel(i)
		}
	}

	if family == FamilyOLI {
		applyRoyRecalibration(out)
	}
	return out, nil
}

// applyRoyRecalibration rescales every unmasked band value in place.
// Truncation toward zero (plain int16 conversion) reproduces the reference
// toShort behaviour; downstream medoid distances are sensitive to it.
func applyRoyRecalibration(im *Image) {
	for b := 0; b < NumBands; b++ {
		slope := oliSlopes[b]
		intercept := oliIntercepts[b] * 10000
		px := im.Bands[b]
		for i, v := range px {
			if v == NoData {
				continue
			}
			px[i] = int16((float64(v) - intercept) / slope)
		}
	}
}
