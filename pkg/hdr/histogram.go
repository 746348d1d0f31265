package hdr

import(
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/stat"
)

// A Histogram counts pixels at each of the 256 brightness levels of a
// grayscale rendering, from 0 (pure black) to 255 (pure white).
type Histogram [256]int

// HistogramOf decodes an image file, converts it to grayscale, and
// buckets its pixels by brightness.
func HistogramOf(filename string) (Histogram, error) {
	var img image.Image

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff":
		// dcraw output; decode with the tiff package directly, since
		// its 16-bit output trips up the generic path.
		if reader, err := os.Open(filename); err != nil {
			return Histogram{}, fmt.Errorf("open+r '%s': %v", filename, err)
		} else {
			defer reader.Close()
			if im, err := tiff.Decode(reader); err != nil {
				return Histogram{}, fmt.Errorf("tiff decode '%s': %v", filename, err)
			} else {
				img = im
			}
		}
	default:
		if im, err := imaging.Open(filename); err != nil {
			return Histogram{}, fmt.Errorf("image open '%s': %v", filename, err)
		} else {
			img = im
		}
	}

	return histogramOfImage(img), nil
}

func histogramOfImage(img image.Image) Histogram {
	h := Histogram{}
	gray := imaging.Grayscale(img)

	// Grayscale output is NRGBA with R==G==B, so the R byte is the
	// brightness level.
	for i := 0; i < len(gray.Pix); i += 4 {
		h[gray.Pix[i]]++
	}
	return h
}

// Smooth drops noise-floor buckets to zero: anything below two
// standard deviations under the mean bucket count goes away. The sum
// of a smoothed histogram is therefore often noticeably smaller than
// the pixel count of the source image. Note the threshold goes
// negative when a couple of spikes dominate the histogram, in which
// case nothing is dropped. Smoothing an already-smoothed histogram is
// a no-op: zeroing buckets only ever lowers the next threshold.
func (h Histogram)Smooth() Histogram {
	counts := make([]float64, len(h))
	for i, v := range h {
		counts[i] = float64(v)
	}

	mean := stat.Mean(counts, nil)
	stddev := stat.StdDev(counts, nil)  // sample stddev; 0 for a constant histogram

	threshold := mean - 2*stddev

	out := Histogram{}
	for i, v := range h {
		if float64(v) > threshold {
			out[i] = v
		}
	}
	return out
}

// RightEdgeClipping reports whether at least half the histogram's mass
// sits within the brightest WIDTH buckets. The comparison is
// inclusive: exactly half counts as clipped.
func (h Histogram)RightEdgeClipping(width int) bool {
	split := len(h) - width
	return sumOf(h[split:]) >= sumOf(h[:split])
}

// LeftEdgeClipping is the symmetric test on the darkest WIDTH buckets.
func (h Histogram)LeftEdgeClipping(width int) bool {
	return sumOf(h[:width]) >= sumOf(h[width:])
}

// SmoothedHistogramOf is the analyzer entry point the bracket selector
// uses: decode, grayscale, bucket, smooth.
func SmoothedHistogramOf(filename string) (Histogram, error) {
	h, err := HistogramOf(filename)
	if err != nil {
		return h, err
	}
	return h.Smooth(), nil
}

func sumOf(buckets []int) int {
	n := 0
	for _, v := range buckets {
		n += v
	}
	return n
}
