package hdr

import (
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestHistogramOfCountsEveryPixel(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "flat.png")

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.NRGBA{0, 0, 0, 255})
		}
	}
	writePNG(t, name, img)

	h, err := HistogramOf(name)
	if err != nil {
		t.Fatalf("HistogramOf: %v", err)
	}
	if h[0] != 16 {
		t.Errorf("black frame: want 16 pixels in bucket 0, got %d", h[0])
	}
	total := 0
	for _, v := range h {
		total += v
	}
	if total != 16 {
		t.Errorf("histogram total %d, want 16", total)
	}
}

func TestHistogramOfMissingFile(t *testing.T) {
	if _, err := HistogramOf(filepath.Join(t.TempDir(), "nope.tif")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestSmoothDropsNoiseFloor(t *testing.T) {
	// A broadly even exposure with a handful of near-empty buckets:
	// the kind of histogram where the noise floor sits well below
	// mean minus two standard deviations.
	h := Histogram{}
	for i := range h {
		h[i] = 1000
	}
	for i := 50; i < 60; i++ {
		h[i] = 2
	}

	smoothed := h.Smooth()
	if smoothed[10] != 1000 || smoothed[200] != 1000 {
		t.Error("smoothing should keep the dominant buckets")
	}
	for i := 50; i < 60; i++ {
		if smoothed[i] != 0 {
			t.Fatalf("bucket %d: tiny count %d survived smoothing", i, smoothed[i])
		}
	}
}

func TestSmoothIsIdempotent(t *testing.T) {
	// Zeroing the noise floor pulls the mean down and spreads the
	// counts out, so the second pass's threshold never climbs above
	// the first's and nothing further is dropped. Exercised across a
	// pile of histograms mixing near-empty, midrange, and dominant
	// buckets.
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 500; trial++ {
		h := Histogram{}
		for i := range h {
			switch rng.Intn(4) {
			case 0:
				// empty bucket
			case 1:
				h[i] = rng.Intn(5)
			case 2:
				h[i] = 500 + rng.Intn(2000)
			case 3:
				h[i] = 50000 + rng.Intn(100000)
			}
		}

		once := h.Smooth()
		if twice := once.Smooth(); twice != once {
			t.Fatalf("trial %d: smoothing an already-smoothed histogram changed it\nonce:  %v\ntwice: %v", trial, once, twice)
		}
	}
}

func TestSmoothNeverInventsCounts(t *testing.T) {
	h := Histogram{}
	h[0] = 500
	h[128] = 42000
	h[255] = 17
	for i := 30; i < 40; i++ {
		h[i] = i
	}

	smoothed := h.Smooth()
	for i, v := range smoothed {
		if v != 0 && v != h[i] {
			t.Fatalf("bucket %d: smoothing changed %d to %d; buckets only get kept or zeroed", i, h[i], v)
		}
	}
}

func TestSmoothEmptyHistogram(t *testing.T) {
	// A fully black frame gives an all-zero histogram; the stddev of a
	// constant is zero and smoothing must not blow up on it.
	h := Histogram{}
	if got := h.Smooth(); got != (Histogram{}) {
		t.Error("smoothing an empty histogram should leave it empty")
	}
}

func TestEdgeClippingDuality(t *testing.T) {
	h := Histogram{}
	h[3] = 900
	h[77] = 123
	h[130] = 4000
	h[250] = 55555

	rev := Histogram{}
	for i, v := range h {
		rev[len(h)-1-i] = v
	}

	for _, width := range []int{16, 144} {
		if h.RightEdgeClipping(width) != rev.LeftEdgeClipping(width) {
			t.Errorf("width %d: right-edge test is not the mirror of the left-edge test", width)
		}
		if h.LeftEdgeClipping(width) != rev.RightEdgeClipping(width) {
			t.Errorf("width %d: left-edge test is not the mirror of the right-edge test", width)
		}
	}
}

func TestEdgeClippingInclusiveBoundary(t *testing.T) {
	// Exactly half the mass inside the edge zone counts as clipped.
	h := Histogram{}
	h[250] = 1000 // inside the top 16 buckets
	h[100] = 1000 // outside

	if !h.RightEdgeClipping(16) {
		t.Error("half the mass at the right edge should read as clipped")
	}

	h[100] = 1001
	if h.RightEdgeClipping(16) {
		t.Error("less than half the mass at the right edge should not read as clipped")
	}
}

func TestEdgeClippingCleanMidtones(t *testing.T) {
	h := Histogram{}
	h[128] = 100000

	if h.RightEdgeClipping(16) || h.LeftEdgeClipping(16) {
		t.Error("a midtone spike should not clip at either edge")
	}
}

func writePNG(t *testing.T, name string, img image.Image) {
	t.Helper()
	f, err := os.Create(name)
	if err != nil {
		t.Fatalf("create '%s': %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode '%s': %v", name, err)
	}
}
