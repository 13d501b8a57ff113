package ocr

import (
	"image"

	"github.com/disintegration/imaging"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

/*
A preprocessing profile is an ordered sequence of named, parameterized steps
over the grayscale representation of the page. Each profile is deterministic
and side-effect free: the same input image always yields byte-identical
output.

Profiles apply only ahead of the pattern-match (tesseract) path. The polygon
engine always receives the raw image; its adapter only strips alpha.
*/

type preprocessStep struct {
	name  string
	apply func(*image.NRGBA) *image.NRGBA
}

// profilePipelines is the full profile table. Every pipeline starts from the
// grayscale conversion done by Preprocess itself, so the steps listed here
// are the ones that follow it.
var profilePipelines = map[ProfileName][]preprocessStep{
	ProfileNone: {},
	ProfileMinimal: {
		{"contrast_1.2", func(img *image.NRGBA) *image.NRGBA { return adjustContrast(img, 1.2) }},
	},
	ProfileDefault: {
		{"auto_contrast_clip1", func(img *image.NRGBA) *image.NRGBA { return autoContrast(img, 1.0) }},
		{"contrast_1.4", func(img *image.NRGBA) *image.NRGBA { return adjustContrast(img, 1.4) }},
		{"unsharp_r1.5_a160_t3", func(img *image.NRGBA) *image.NRGBA { return unsharpMask(img, 1.5, 160, 3) }},
	},
	ProfileAdaptive: {
		{"contrast_1.8", func(img *image.NRGBA) *image.NRGBA { return adjustContrast(img, 1.8) }},
		{"adaptive_binarize_w15_o-10", func(img *image.NRGBA) *image.NRGBA { return adaptiveBinarize(img, 15, -10) }},
		{"median_3", func(img *image.NRGBA) *image.NRGBA { return medianDenoise(img, 3) }},
	},
	ProfileHighContrast: {
		{"contrast_2.5", func(img *image.NRGBA) *image.NRGBA { return adjustContrast(img, 2.5) }},
		{"sharpen", sharpen},
		{"threshold_170", func(img *image.NRGBA) *image.NRGBA { return hardThreshold(img, 170) }},
		{"median_3", func(img *image.NRGBA) *image.NRGBA { return medianDenoise(img, 3) }},
	},
	ProfileLowContrast: {
		{"contrast_1.25", func(img *image.NRGBA) *image.NRGBA { return adjustContrast(img, 1.25) }},
		{"unsharp_r1.2_a150_t3", func(img *image.NRGBA) *image.NRGBA { return unsharpMask(img, 1.2, 150, 3) }},
	},
	ProfileDenoised: {
		{"contrast_2.0", func(img *image.NRGBA) *image.NRGBA { return adjustContrast(img, 2.0) }},
		{"median_5", func(img *image.NRGBA) *image.NRGBA { return medianDenoise(img, 5) }},
		{"sharpen", sharpen},
		{"threshold_180", func(img *image.NRGBA) *image.NRGBA { return hardThreshold(img, 180) }},
	},
}

/*
NormalizeProfile maps a caller-supplied profile name onto a known profile.
Unknown names get the default pipeline; callers selected something, so the
general-purpose treatment beats failing the request.
*/
func NormalizeProfile(name ProfileName) ProfileName {
	if _, known := profilePipelines[name]; known {
		return name
	}
	tl.Log(
		tl.Warning, palette.Yellow, "Unknown preprocessing profile '%s', using '%s'",
		string(name), string(ProfileDefault),
	)
	return ProfileDefault
}

/*
Preprocess runs the named profile over the image and returns the transformed
grayscale copy. The observer receives the final image and a per-step event
trail unconditionally; whether that goes anywhere is the caller's wiring.
*/
func Preprocess(img image.Image, profile ProfileName, observer Observer) *image.NRGBA {
	profile = NormalizeProfile(profile)

	current := imaging.Grayscale(img)
	observer.Stage("preprocess", "profile '%s': grayscale %dx%d", string(profile),
		current.Bounds().Dx(), current.Bounds().Dy())

	for _, step := range profilePipelines[profile] {
		current = step.apply(current)
		observer.Stage("preprocess", "profile '%s': applied step '%s'", string(profile), step.name)
	}

	observer.Image("preprocessed-"+string(profile), current)
	return current
}
