package audio

import (
	"math"
	"testing"
)

func TestDownmixAverages(t *testing.T) {
	stereo := []float32{0.2, 0.4, -0.6, -0.2}
	mono := Downmix(stereo, 2)
	if len(mono) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(mono))
	}
	if !closeTo(mono[0], 0.3) || !closeTo(mono[1], -0.4) {
		t.Fatalf("unexpected downmix result: %v", mono)
	}
}

func TestDownmixMonoPassthrough(t *testing.T) {
	in := []float32{0.1, 0.2}
	out := Downmix(in, 1)
	if &out[0] != &in[0] {
		t.Fatal("expected mono input returned unchanged")
	}
}

func TestDownmixDropsIncompleteFrame(t *testing.T) {
	out := Downmix([]float32{0.2, 0.4, 0.9}, 2)
	if len(out) != 1 {
		t.Fatalf("expected trailing partial frame dropped, got %d frames", len(out))
	}
}

func TestResampleIdentityAtEqualRates(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	if &out[0] != &in[0] {
		t.Fatal("expected identity resample to return input")
	}
}

func TestResampleHalvesLength(t *testing.T) {
	in := make([]float32, 32000)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 50))
	}
	out := Resample(in, 32000, 16000)
	if len(out) < 15990 || len(out) > 16000 {
		t.Fatalf("expected about 16000 output samples, got %d", len(out))
	}
}

func TestResampleInterpolatesLinearly(t *testing.T) {
	// Doubling the rate should place midpoints between neighbors.
	in := []float32{0, 1}
	out := Resample(in, 8000, 16000)
	if len(out) < 2 {
		t.Fatalf("expected at least 2 samples, got %d", len(out))
	}
	if !closeTo(out[0], 0) || !closeTo(out[1], 0.5) {
		t.Fatalf("expected linear interpolation, got %v", out)
	}
}

func TestNormalizeScalesPeak(t *testing.T) {
	out := Normalize([]float32{0.1, -0.4, 0.2})
	if !closeTo(Peak(out), 0.8) {
		t.Fatalf("expected peak 0.8, got %v", Peak(out))
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	once := Normalize([]float32{0.1, -0.4, 0.2})
	twice := Normalize(once)
	for i := range once {
		if math.Abs(float64(once[i]-twice[i])) > 1e-6 {
			t.Fatalf("normalize not idempotent at %d: %v vs %v", i, once[i], twice[i])
		}
	}
}

func TestNormalizeSilencePassthrough(t *testing.T) {
	in := []float32{1e-8, -1e-8}
	out := Normalize(in)
	for i := range in {
		if out[i] != in[i] {
			t.Fatal("expected near-silent input unchanged")
		}
	}
}

func closeTo(got float32, want float64) bool {
	return math.Abs(float64(got)-want) < 1e-5
}
