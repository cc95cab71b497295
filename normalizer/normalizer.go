// Package normalizer prepares raw image bytes for fingerprinting and
// feature extraction: it decodes them, corrects EXIF orientation, and
// conservatively strips padding and letterboxing that different image
// producers add around what is otherwise the same photo.
package normalizer

import (
	"errors"
	"image"
	"image/draw"
	"math"
)

// ErrUnreadable is returned when the payload cannot be decoded as an
// image. Callers treat it as "cannot fingerprint", not a hard failure.
var ErrUnreadable = errors.New("unreadable image data")

const (
	// MinDimension is the smallest usable width/height; trimming never
	// reduces an image below this, and smaller images skip trimming.
	MinDimension = 32

	// edgeStdDevThreshold is the maximum per-row/column intensity standard
	// deviation for an edge to count as a solid bar.
	edgeStdDevThreshold = 2.0

	// maxTrimRatio caps how much of each dimension may be trimmed per side
	// by the solid-edge pass.
	maxTrimRatio = 0.45

	// backgroundTolerance absorbs compression noise when comparing pixels
	// against the presumed background color.
	backgroundTolerance = 8
)

var defaultRegistry = NewDecoderRegistry()

// Normalize decodes the payload, applies orientation correction, and
// trims incidental borders. It is a pure function from bytes to an
// upright grayscale pixel grid anchored at (0,0).
func Normalize(data []byte) (*image.Gray, error) {
	if len(data) == 0 {
		return nil, ErrUnreadable
	}

	img, err := defaultRegistry.Decode(data)
	if err != nil {
		return nil, ErrUnreadable
	}

	gray := toGray(img)
	gray = trimSolidEdges(gray)
	gray = trimUniformBackground(gray)
	return gray, nil
}

// toGray projects any decoded image onto a zero-anchored grayscale grid.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}

	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// trimSolidEdges iteratively strips the outermost row or column while its
// intensity standard deviation stays below the threshold, removing solid
// padding bars (white margins, black letterboxing). Trimming is capped per
// side and aborts entirely if the remaining region would become unusably
// small, in which case the original image is returned.
func trimSolidEdges(g *image.Gray) *image.Gray {
	h := g.Bounds().Dy()
	w := g.Bounds().Dx()
	if h < MinDimension || w < MinDimension {
		return g
	}

	maxTrimH := int(float64(h) * maxTrimRatio)
	maxTrimW := int(float64(w) * maxTrimRatio)
	top, bottom, left, right := 0, h-1, 0, w-1

	for {
		changed := false

		if top < bottom && top < maxTrimH && rowStdDev(g, top, left, right) <= edgeStdDevThreshold {
			top++
			changed = true
		}
		if top < bottom && (h-1-bottom) < maxTrimH && rowStdDev(g, bottom, left, right) <= edgeStdDevThreshold {
			bottom--
			changed = true
		}
		if left < right && left < maxTrimW && colStdDev(g, left, top, bottom) <= edgeStdDevThreshold {
			left++
			changed = true
		}
		if left < right && (w-1-right) < maxTrimW && colStdDev(g, right, top, bottom) <= edgeStdDevThreshold {
			right--
			changed = true
		}

		if !changed {
			break
		}

		// Abort rather than shrink below the usable minimum.
		if (bottom-top+1) < MinDimension || (right-left+1) < MinDimension {
			return g
		}
	}

	if top == 0 && bottom == h-1 && left == 0 && right == w-1 {
		return g
	}

	return cropGray(g, image.Rect(left, top, right+1, bottom+1))
}

// trimUniformBackground treats the top-left pixel as the background color
// and crops to the bounding box of pixels that differ from it by more than
// the tolerance. The crop is rejected if the result would be smaller than
// the usable minimum.
func trimUniformBackground(g *image.Gray) *image.Gray {
	h := g.Bounds().Dy()
	w := g.Bounds().Dx()
	if h == 0 || w == 0 {
		return g
	}

	bg := int(g.GrayAt(0, 0).Y)

	minX, minY := w, h
	maxX, maxY := -1, -1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			diff := int(g.GrayAt(x, y).Y) - bg
			if diff < 0 {
				diff = -diff
			}
			// Differences within the tolerance are compression noise,
			// not content.
			if diff <= backgroundTolerance {
				continue
			}
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < 0 {
		// Nothing but background; leave the image alone.
		return g
	}

	cw := maxX - minX + 1
	ch := maxY - minY + 1
	if cw < MinDimension || ch < MinDimension {
		return g
	}
	if minX == 0 && minY == 0 && cw == w && ch == h {
		return g
	}

	return cropGray(g, image.Rect(minX, minY, maxX+1, maxY+1))
}

// rowStdDev computes the population standard deviation of row y between
// columns x0 and x1 inclusive.
func rowStdDev(g *image.Gray, y, x0, x1 int) float64 {
	var sum, sumSq float64
	n := float64(x1 - x0 + 1)
	for x := x0; x <= x1; x++ {
		v := float64(g.GrayAt(x, y).Y)
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// colStdDev computes the population standard deviation of column x between
// rows y0 and y1 inclusive.
func colStdDev(g *image.Gray, x, y0, y1 int) float64 {
	var sum, sumSq float64
	n := float64(y1 - y0 + 1)
	for y := y0; y <= y1; y++ {
		v := float64(g.GrayAt(x, y).Y)
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// cropGray copies the rectangle into a fresh zero-anchored grayscale image.
func cropGray(g *image.Gray, r image.Rectangle) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		srcOff := g.PixOffset(r.Min.X, r.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+r.Dx()], g.Pix[srcOff:srcOff+r.Dx()])
	}
	return out
}
