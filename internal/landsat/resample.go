package landsat

import "math"

// resampleBilinear resizes a row-major int16 grid to the destination shape
// using bilinear interpolation with clamped (replicated) edge lookups.
// Identity shapes return a copy so callers can mutate freely.
func resampleBilinear(src []int16, srcW, srcH, dstW, dstH int) []int16 {
	if srcW == dstW && srcH == dstH {
		out := make([]int16, len(src))
		copy(out, src)
		return out
	}

	clampX := func(x int) int {
		if x < 0 {
			return 0
		}
		if x >= srcW {
			return srcW - 1
		}
		return x
	}
	clampY := func(y int) int {
		if y < 0 {
			return 0
		}
		if y >= srcH {
			return srcH - 1
		}
		return y
	}
	px := func(x, y int) float64 {
		return float64(src[clampY(y)*srcW+clampX(x)])
	}

	// Pixel-centre mapping keeps the grid corners aligned between shapes.
	scaleX := float64(srcW) / float64(dstW)
	scaleY := float64(srcH) / float64(dstH)

	out := make([]int16, dstW*dstH)
	for y := 0; y < dstH; y++ {
		sy := (float64(y)+0.5)*scaleY - 0.5
		y0 := int(math.Floor(sy))
		fy := sy - float64(y0)
		for x := 0; x < dstW; x++ {
			sx := (float64(x)+0.5)*scaleX - 0.5
			x0 := int(math.Floor(sx))
			fx := sx - float64(x0)

			top := px(x0, y0)*(1-fx) + px(x0+1, y0)*fx
			bot := px(x0, y0+1)*(1-fx) + px(x0+1, y0+1)*fx
			out[y*dstW+x] = int16(top*(1-fy) + bot*fy)
		}
	}
	return out
}

// resampleNearest resizes a row-major uint16 grid by nearest-neighbour
// sampling. Used for the categorical QA grid where interpolated bit
// patterns would be meaningless.
func resampleNearest(src []uint16, srcW, srcH, dstW, dstH int) []uint16 {
	if srcW == dstW && srcH == dstH {
		out := make([]uint16, len(src))
		copy(out, src)
		return out
	}

	out := make([]uint16, dstW*dstH)
	for y := 0; y < dstH; y++ {
		sy := y * srcH / dstH
		for x := 0; x < dstW; x++ {
			sx := x * srcW / dstW
			out[y*dstW+x] = src[sy*srcW+sx]
		}
	}
	return out
}
