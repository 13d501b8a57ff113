package ocr

import (
	"image"

	"github.com/disintegration/imaging"

	"bookreader-ocr/src/pkg/util"
)

/*
Region cropping for sub-rectangle requests.

The requested rectangle is clamped to the image bounds before cropping, and
every box an adapter returns for the crop is shifted by the clamp origin so
all responses are expressed in original-image coordinates. A rectangle that
lands entirely outside the image clamps to zero extent; callers treat that
as a valid empty result, not a fault.
*/

// ClampRegion clamps the rectangle to [0, width) × [0, height). The result
// may have zero extent; check IsDegenerate before cropping.
func ClampRegion(region BBox, width, height int) BBox {
	x0 := util.Clamp(region.X, 0, width)
	y0 := util.Clamp(region.Y, 0, height)
	x1 := util.Clamp(region.X+region.Width, x0, width)
	y1 := util.Clamp(region.Y+region.Height, y0, height)

	return BBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// IsDegenerate reports a zero-or-negative-extent rectangle.
func IsDegenerate(region BBox) bool {
	return region.Width <= 0 || region.Height <= 0
}

// CropToRegion cuts the clamped rectangle out of the image.
func CropToRegion(img image.Image, region BBox) *image.NRGBA {
	return imaging.Crop(img, image.Rect(
		region.X, region.Y,
		region.X+region.Width, region.Y+region.Height,
	))
}

/*
OffsetRegions shifts crop-local detections back into full-image coordinates.
Regions are immutable values, so this builds fresh copies rather than
editing in place.
*/
func OffsetRegions(regions []TextRegion, dx, dy int) []TextRegion {
	if dx == 0 && dy == 0 {
		return regions
	}

	shifted := make([]TextRegion, 0, len(regions))
	for _, region := range regions {
		moved := region
		moved.BBox.X += dx
		moved.BBox.Y += dy
		shifted = append(shifted, moved)
	}
	return shifted
}
