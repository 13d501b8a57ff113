package ocr

import (
	"bytes"
	"image"
	"os/exec"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

// Raw word confidences below this floor (0–100 scale) are discarded; they
// are overwhelmingly speckle misreads on comic pages.
const tesseractConfidenceFloor = 15.0

/*
TesseractEngine adapts the pattern-match backend. The native library is
invoked per word: each detection arrives as a word string, a 0–100
confidence, and an axis-aligned rectangle, so normalization is only a /100
on the score. Empty words and sub-floor confidences are discarded but still
counted in the pre-filter total.
*/
type TesseractEngine struct {
	language string
}

// NewTesseractEngine verifies the native binary is reachable and binds the
// language. The actual client is created per call; gosseract clients are
// not safe for concurrent use and are cheap next to the OCR itself.
func NewTesseractEngine(language string) (engine *TesseractEngine, e *xerr.Error) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		e = xerr.NewError(err, "locate tesseract binary", language)
		return
	}
	return &TesseractEngine{language: language}, nil
}

func (t *TesseractEngine) Name() EngineName {
	return EngineTesseract
}

func (t *TesseractEngine) Close() error {
	return nil
}

func (t *TesseractEngine) Extract(img image.Image, layout LayoutMode) (regions []TextRegion, totalDetected int, e *xerr.Error) {
	client := gosseract.NewClient()
	defer func() {
		_ = client.Close()
	}()

	if err := client.SetLanguage(t.language); err != nil {
		e = xerr.NewError(err, "set tesseract language", t.language)
		return
	}

	// Keep word spacing intact; comic lettering leans on it heavily.
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		e = xerr.NewError(err, "set preserve_interword_spaces", t.language)
		return
	}

	if err := client.SetPageSegMode(pageSegModeFor(layout)); err != nil {
		e = xerr.NewError(err, "set tesseract page segmentation mode", string(layout))
		return
	}

	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, img, imaging.PNG); err != nil {
		e = xerr.NewError(err, "encode image for tesseract", t.language)
		return
	}
	if err := client.SetImageFromBytes(encoded.Bytes()); err != nil {
		e = xerr.NewError(err, "set tesseract image", t.language)
		return
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		e = xerr.NewError(err, "run tesseract word extraction", t.language)
		return
	}

	totalDetected = len(boxes)
	for _, box := range boxes {
		region, keep := tesseractRegion(box.Word, box.Confidence, box.Box)
		if !keep {
			continue
		}
		regions = append(regions, region)
	}

	tl.Log(
		tl.Info1, palette.Green, "Tesseract extracted '%d' regions ('%d' raw words)",
		len(regions), totalDetected,
	)
	return regions, totalDetected, nil
}

// tesseractRegion converts one raw word detection, applying the text and
// confidence filters. The rectangle is already axis-aligned.
func tesseractRegion(word string, confidence float64, rect image.Rectangle) (TextRegion, bool) {
	region := newTextRegion(word, BBox{
		X:      rect.Min.X,
		Y:      rect.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
	}, confidence/100.0)

	if region.Text == "" || confidence < tesseractConfidenceFloor {
		return TextRegion{}, false
	}
	return region, true
}

// pageSegModeFor maps the layout hint onto the native segmentation mode.
func pageSegModeFor(layout LayoutMode) gosseract.PageSegMode {
	switch layout {
	case LayoutDense:
		return gosseract.PSM_SINGLE_BLOCK
	case LayoutAuto:
		return gosseract.PSM_AUTO
	case LayoutVertical:
		return gosseract.PSM_SINGLE_BLOCK_VERT_TEXT
	default:
		// Sparse is the full-page default: comic panels scatter short
		// bursts of text across large art areas.
		return gosseract.PSM_SPARSE_TEXT
	}
}

// probeTesseract checks the native binary once at startup.
func probeTesseract() bool {
	if _, err := exec.LookPath("tesseract"); err != nil {
		tl.Log(tl.Notice, palette.Yellow, "Tesseract binary not found: '%s'", err)
		return false
	}
	return true
}
