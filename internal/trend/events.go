package trend

import (
	"math"
	"sort"
	"sync"
)

// Event channel layout: the selected segment's eight fields flattened into
// independent named rasters.
const (
	ChYearOfDetection = iota
	ChEndYear
	ChStartVal
	ChEndVal
	ChMagnitude
	ChDuration
	ChRate
	ChDSNR

	NumEventChannels = 8
)

// EventChannelNames names the flattened output channels, in order.
var EventChannelNames = [NumEventChannels]string{
	"yod", "endYr", "startVal", "endVal", "mag", "dur", "rate", "dsnr",
}

// EventImage is the per-pixel disturbance event raster: at most one
// qualifying segment per pixel, flattened to NumEventChannels float64
// grids. Pixels with no qualifying segment are NaN in every channel.
type EventImage struct {
	Width    int
	Height   int
	Channels [NumEventChannels][]float64
}

// Idx returns the row-major index for pixel (x, y).
func (e *EventImage) Idx(x, y int) int { return y*e.Width + x }

// SelectorConfig filters candidate segments and bounds the fan-out.
type SelectorConfig struct {
	StartYear     int     // inclusive lower bound on segment start year
	EndYear       int     // inclusive upper bound on segment end year
	DSNRThreshold float64 // minimum disturbance signal-to-noise ratio
	Workers       int
}

// SelectEvents picks, per pixel, the most recent segment that starts at or
// after the lower year bound, ends at or before the upper bound, and meets
// the DSNR threshold. Segments with NaN DSNR (zero-rmse models) never
// qualify. Pixels with no qualifying segment degrade to no-data; that is
// never an error.
func SelectEvents(segs *SegmentImage, cfg SelectorConfig) *EventImage {
	out := &EventImage{Width: segs.Width, Height: segs.Height}
	n := segs.Width * segs.Height
	for c := 0; c < NumEventChannels; c++ {
		ch := make([]float64, n)
		for i := range ch {
			ch[i] = math.NaN()
		}
		out.Channels[c] = ch
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > segs.Height {
		workers = segs.Height
	}

	rows := make(chan int, segs.Height)
	for y := 0; y < segs.Height; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var candidates []Segment
			for y := range rows {
				for x := 0; x < segs.Width; x++ {
					i := segs.Idx(x, y)
					candidates = candidates[:0]
					for _, s := range segs.Segments[i] {
						if s.StartYear >= cfg.StartYear && s.EndYear <= cfg.EndYear && s.DSNR >= cfg.DSNRThreshold {
							candidates = append(candidates, s)
						}
					}
					if len(candidates) == 0 {
						continue
					}
					// Most recent start year first. Stable, so segments
					// sharing a start year keep their original order.
					sort.SliceStable(candidates, func(a, b int) bool {
						return candidates[a].StartYear > candidates[b].StartYear
					})
					flatten(out, i, candidates[0])
				}
			}
		}()
	}
	wg.Wait()
	return out
}

func flatten(out *EventImage, i int, s Segment) {
	out.Channels[ChYearOfDetection][i] = float64(s.StartYear)
	out.Channels[ChEndYear][i] = float64(s.EndYear)
	out.Channels[ChStartVal][i] = s.StartVal
	out.Channels[ChEndVal][i] = s.EndVal
	out.Channels[ChMagnitude][i] = s.Magnitude
	out.Channels[ChDuration][i] = float64(s.Duration)
	out.Channels[ChRate][i] = s.Rate
	out.Channels[ChDSNR][i] = s.DSNR
}
