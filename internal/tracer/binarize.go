package tracer

import (
	"image"

	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// Mask is a binary raster in row-major order. Pix holds 1 for foreground and
// 0 for background.
type Mask struct {
	W, H int
	Pix  []uint8
}

// NewMask allocates an empty mask.
func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Pix: make([]uint8, w*h)}
}

// At reports whether (x, y) is foreground. Points outside the mask are
// background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Pix[y*m.W+x] != 0
}

// Set marks (x, y) as foreground or background.
func (m *Mask) Set(x, y int, on bool) {
	var v uint8
	if on {
		v = 1
	}
	m.Pix[y*m.W+x] = v
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// BinarizeOptions controls Binarize.
type BinarizeOptions struct {
	// Threshold is the gray level above which a pixel is foreground. A
	// negative value selects Otsu's threshold.
	Threshold int
	// Invert swaps foreground and background after thresholding, for dark
	// silhouettes on a light background.
	Invert bool
}

// DefaultBinarizeOptions selects Otsu's threshold without inversion.
func DefaultBinarizeOptions() BinarizeOptions {
	return BinarizeOptions{Threshold: -1}
}

// Binarize converts img to gray, thresholds it and returns the mask along with
// the threshold used.
func Binarize(img image.Image, opts BinarizeOptions) (*Mask, uint8) {
	gray := imaging.Grayscale(img)
	// Alpha is ignored: transparent pixels are judged by their color.
	for i := 3; i < len(gray.Pix); i += 4 {
		gray.Pix[i] = 0xff
	}
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	var t uint8
	if opts.Threshold < 0 {
		t = OtsuThreshold(Histogram(gray))
	} else {
		t = uint8(min(opts.Threshold, 255))
	}

	mask := NewMask(w, h)
	var bin image.Image
	if t < 255 {
		// segment.Threshold keeps levels >= its argument.
		bin = segment.Threshold(gray, t+1)
	} else {
		bin = image.NewGray(image.Rect(0, 0, w, h))
	}
	if opts.Invert {
		bin = imaging.Invert(bin)
	}

	bb := bin.Bounds()
	for y := range h {
		for x := range w {
			r, _, _, _ := bin.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			if r >= 0x8000 {
				mask.Pix[y*w+x] = 1
			}
		}
	}
	return mask, t
}

// Histogram counts the gray levels of img, reading the red channel of the
// already gray image.
func Histogram(img *image.NRGBA) [256]int {
	var hist [256]int
	b := img.Bounds()
	for y := range b.Dy() {
		row := img.Pix[y*img.Stride:]
		for x := range b.Dx() {
			hist[row[x*4]]++
		}
	}
	return hist
}

// OtsuThreshold returns the level that maximizes the between-class variance
// of the histogram. Pixels above the level form the upper class.
func OtsuThreshold(hist [256]int) uint8 {
	total := 0
	var sum float64
	for i, n := range hist {
		total += n
		sum += float64(i) * float64(n)
	}
	if total == 0 {
		return 0
	}

	var maxVariance, sumB float64
	best := 0
	wB := 0
	for t, n := range hist {
		wB += n
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(n)
		meanB := sumB / float64(wB)
		meanF := (sum - sumB) / float64(wF)

		// Between-class variance
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return uint8(best)
}
