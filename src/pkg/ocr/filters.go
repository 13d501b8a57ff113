package ocr

import (
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"

	"bookreader-ocr/src/pkg/util"
)

/*
This file holds the grayscale filter kit the preprocessing profiles are
assembled from. Every filter is a pure function from an *image.NRGBA to a
new *image.NRGBA; inputs are never written to.

All filters assume the image has already been through imaging.Grayscale, so
every pixel has equal channels and the red channel is a valid brightness
proxy.
*/

// adjustContrast scales contrast by a multiplicative factor (1.0 = no-op).
// imaging speaks percentages in (-100, 100], so the factor is translated
// and clamped.
func adjustContrast(img *image.NRGBA, factor float64) *image.NRGBA {
	percentage := util.Clamp((factor-1.0)*100.0, -100.0, 100.0)
	return imaging.AdjustContrast(img, percentage)
}

// sharpen applies the library's mild gaussian-difference sharpening.
func sharpen(img *image.NRGBA) *image.NRGBA {
	return imaging.Sharpen(img, 1.0)
}

/*
autoContrast stretches brightness so the darkest/brightest clipPercent of
pixels saturate, then maps the rest linearly onto the full range. Clipping
the outlier tails keeps a single stray white speck or ink blot from pinning
the histogram.
*/
func autoContrast(img *image.NRGBA, clipPercent float64) *image.NRGBA {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return imaging.Clone(img)
	}

	var histogram [256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		offset := img.PixOffset(bounds.Min.X, y)
		for x := 0; x < bounds.Dx(); x++ {
			histogram[img.Pix[offset+x*4]]++
		}
	}

	clip := int(float64(total) * clipPercent / 100.0)

	low, cumulative := 0, 0
	for v := 0; v < 256; v++ {
		cumulative += histogram[v]
		if cumulative > clip {
			low = v
			break
		}
	}
	high, cumulative := 255, 0
	for v := 255; v >= 0; v-- {
		cumulative += histogram[v]
		if cumulative > clip {
			high = v
			break
		}
	}

	if high <= low {
		return imaging.Clone(img)
	}

	scale := 255.0 / float64(high-low)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := clamp8(int(float64(int(c.R)-low) * scale))
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	})
}

/*
unsharpMask sharpens edges by adding back the difference between the image
and a gaussian-blurred copy of it: out = orig + amount * (orig - blurred).

Pixels whose difference is below the threshold are left untouched, which
keeps flat paper texture from being amplified into noise.
*/
func unsharpMask(img *image.NRGBA, radius float64, amountPercent int, threshold int) *image.NRGBA {
	blurred := imaging.Blur(img, radius)

	bounds := img.Bounds()
	out := imaging.Clone(img)
	for y := 0; y < bounds.Dy(); y++ {
		row := out.PixOffset(out.Bounds().Min.X, out.Bounds().Min.Y+y)
		blurredRow := blurred.PixOffset(blurred.Bounds().Min.X, blurred.Bounds().Min.Y+y)
		for x := 0; x < bounds.Dx(); x++ {
			original := int(out.Pix[row+x*4])
			difference := original - int(blurred.Pix[blurredRow+x*4])
			if difference < threshold && difference > -threshold {
				continue
			}
			v := clamp8(original + difference*amountPercent/100)
			out.Pix[row+x*4+0] = v
			out.Pix[row+x*4+1] = v
			out.Pix[row+x*4+2] = v
		}
	}
	return out
}

// medianDenoise replaces each pixel with the median of the window×window
// neighborhood around it (edges clamp). window must be odd.
func medianDenoise(img *image.NRGBA, window int) *image.NRGBA {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	radius := window / 2

	out := imaging.Clone(img)
	neighborhood := make([]int, 0, window*window)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			neighborhood = neighborhood[:0]
			for dy := -radius; dy <= radius; dy++ {
				ny := util.Clamp(y+dy, 0, height-1)
				row := img.PixOffset(bounds.Min.X, bounds.Min.Y+ny)
				for dx := -radius; dx <= radius; dx++ {
					nx := util.Clamp(x+dx, 0, width-1)
					neighborhood = append(neighborhood, int(img.Pix[row+nx*4]))
				}
			}
			sort.Ints(neighborhood)
			v := uint8(neighborhood[len(neighborhood)/2])

			offset := out.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			out.Pix[offset+0] = v
			out.Pix[offset+1] = v
			out.Pix[offset+2] = v
		}
	}
	return out
}

// hardThreshold binarizes against a single global value: strictly brighter
// pixels become white, everything else black.
func hardThreshold(img *image.NRGBA, value uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if c.R > value {
			return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	})
}

/*
adaptiveBinarize binarizes against the mean brightness of the window×window
neighborhood of each pixel instead of one global value, which tolerates
uneven panel lighting. A pixel stays white only if it exceeds its local
mean minus the offset, so a negative offset demands the pixel outshine its
neighborhood by that margin.

The local mean comes from a prefix-sum (integral) image, so the per-pixel
lookup is O(1) regardless of window size.
*/
func adaptiveBinarize(img *image.NRGBA, window int, offset float64) *image.NRGBA {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return imaging.Clone(img)
	}
	radius := window / 2

	// integral[y][x] = sum of brightness over the rectangle [0,x) × [0,y).
	integral := make([][]int64, height+1)
	integral[0] = make([]int64, width+1)
	for y := 0; y < height; y++ {
		integral[y+1] = make([]int64, width+1)
		row := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		var rowSum int64
		for x := 0; x < width; x++ {
			rowSum += int64(img.Pix[row+x*4])
			integral[y+1][x+1] = integral[y][x+1] + rowSum
		}
	}

	out := imaging.Clone(img)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			x0 := util.Clamp(x-radius, 0, width-1)
			x1 := util.Clamp(x+radius, 0, width-1) + 1
			y0 := util.Clamp(y-radius, 0, height-1)
			y1 := util.Clamp(y+radius, 0, height-1) + 1

			area := int64(x1-x0) * int64(y1-y0)
			sum := integral[y1][x1] - integral[y0][x1] - integral[y1][x0] + integral[y0][x0]
			localMean := float64(sum) / float64(area)

			offsetInPix := out.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			var v uint8
			if float64(out.Pix[offsetInPix]) > localMean-offset {
				v = 255
			}
			out.Pix[offsetInPix+0] = v
			out.Pix[offsetInPix+1] = v
			out.Pix[offsetInPix+2] = v
			out.Pix[offsetInPix+3] = 255
		}
	}
	return out
}

/*
flattenAlpha composites the image over a white background and returns a
fully opaque NRGBA copy. The polygon engine chokes on alpha channels, so
every image headed its way passes through here first.
*/
func flattenAlpha(img image.Image) *image.NRGBA {
	clone := imaging.Clone(img)
	for i := 0; i < len(clone.Pix); i += 4 {
		alpha := int(clone.Pix[i+3])
		if alpha == 255 {
			continue
		}
		for channel := 0; channel < 3; channel++ {
			c := int(clone.Pix[i+channel])
			clone.Pix[i+channel] = uint8((c*alpha + 255*(255-alpha)) / 255)
		}
		clone.Pix[i+3] = 255
	}
	return clone
}

func clamp8(v int) uint8 {
	return uint8(util.Clamp(v, 0, 255))
}
