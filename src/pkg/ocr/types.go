package ocr

// EngineName identifies one of the canonical OCR backends this service can
// actually execute. Every other requested name (aliases like "hybrid",
// "trocr", "easyocr", or anything unrecognized) is remapped by Resolve
// before dispatch and never executes directly.
type EngineName string

const (
	EngineTesseract EngineName = "tesseract"
	EnginePaddle    EngineName = "paddleocr"
)

// ConfidenceTier is the coarse bucket derived from a numeric confidence
// score, used for UI feedback and debugging.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// LayoutMode is the page-segmentation hint passed to the pattern-match
// engine. The polygon engine ignores it.
type LayoutMode string

const (
	LayoutSparse   LayoutMode = "sparse"
	LayoutDense    LayoutMode = "dense"
	LayoutAuto     LayoutMode = "auto"
	LayoutVertical LayoutMode = "vertical"
)

// ProfileName selects a named preprocessing pipeline.
type ProfileName string

const (
	ProfileNone         ProfileName = "none"
	ProfileMinimal      ProfileName = "minimal"
	ProfileDefault      ProfileName = "default"
	ProfileAdaptive     ProfileName = "adaptive"
	ProfileHighContrast ProfileName = "high_contrast"
	ProfileLowContrast  ProfileName = "low_contrast"
	ProfileDenoised     ProfileName = "denoised"
)

// BBox is an axis-aligned bounding box in pixel coordinates, always
// expressed relative to the original (uncropped) image.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

/*
TextRegion is one confidence-scored text detection.

It is an immutable value: adapters produce it once per detection via
newTextRegion (which clamps the confidence and derives the tier) and nothing
mutates it afterwards. The cropper builds fresh copies when re-mapping
coordinates.
*/
type TextRegion struct {
	Text           string         `json:"text"`
	BBox           BBox           `json:"bbox"`
	Confidence     float64        `json:"confidence"`
	ConfidenceTier ConfidenceTier `json:"confidence_tier"`
}

/*
Request describes one extraction call, full page or sub-region.

Exactly one of ImagePath / ImageData must be set. Region is optional; when
present the image is cropped to the clamped rectangle before OCR and result
boxes are shifted back into full-image coordinates. Engine carries the
caller's raw request string so alias resolution can report it verbatim.
*/
type Request struct {
	ImagePath string
	ImageData []byte
	Region    *BBox
	Language  string
	Profile   ProfileName
	Layout    LayoutMode
	Engine    string
}

// Result is the assembled outcome of one extraction call.
type Result struct {
	Regions         []TextRegion `json:"regions"`
	EngineRequested string       `json:"engine_requested"`
	EngineUsed      EngineName   `json:"engine_used"`
	// FallbackReason is empty when the requested engine ran directly.
	FallbackReason string          `json:"fallback_reason,omitempty"`
	Stats          ConfidenceStats `json:"confidence_stats"`
	Profile        ProfileName     `json:"preprocessing"`
	Layout         LayoutMode      `json:"psm"`
	// TotalDetected counts raw engine detections before confidence and
	// empty-text filtering, so callers can compute how much was discarded.
	TotalDetected int `json:"total_detected"`
}

// FilteredOut reports how many raw detections the adapter discarded.
func (r *Result) FilteredOut() int {
	return r.TotalDetected - len(r.Regions)
}
