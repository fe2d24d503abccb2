package landsat

import "testing"

func TestResampleBilinear_IdentityCopies(t *testing.T) {
	src := []int16{1, 2, 3, 4}
	out := resampleBilinear(src, 2, 2, 2, 2)
	for i := range src {
		if out[i] != src[i] {
			t.Fatalf("pixel %d = %d, want %d", i, out[i], src[i])
		}
	}
	out[0] = 99
	if src[0] != 1 {
		t.Error("identity resample must copy, not alias, the source")
	}
}

func TestResampleBilinear_ConstantGridStaysConstant(t *testing.T) {
	src := make([]int16, 16)
	for i := range src {
		src[i] = 7
	}
	out := resampleBilinear(src, 4, 4, 3, 5)
	for i, v := range out {
		if v != 7 {
			t.Fatalf("pixel %d = %d, want 7", i, v)
		}
	}
}

func TestResampleBilinear_Downsample2x(t *testing.T) {
	// 2x2 blocks of constant value: downsampling by 2 with pixel-centre
	// mapping lands exactly between the four identical samples.
	src := []int16{
		10, 10, 20, 20,
		10, 10, 20, 20,
		30, 30, 40, 40,
		30, 30, 40, 40,
	}
	out := resampleBilinear(src, 4, 4, 2, 2)
	want := []int16{10, 20, 30, 40}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("pixel %d = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestResampleNearest_PreservesQABits(t *testing.T) {
	src := []uint16{
		1 << 2, 0,
		0, 1 << 5,
	}
	out := resampleNearest(src, 2, 2, 4, 4)
	// Every output value must be one of the source values, bit-exact.
	for i, v := range out {
		if v != 0 && v != 1<<2 && v != 1<<5 {
			t.Fatalf("pixel %d = %#x, not a source QA value", i, v)
		}
	}
	if out[0] != 1<<2 {
		t.Errorf("top-left = %#x, want water bit", out[0])
	}
}
