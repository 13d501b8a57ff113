package ocr

import (
	"image"

	"github.com/tuumbleweed/xerr"
)

/*
Engine is the single polymorphic operation every OCR backend adapts to.

Extract runs native OCR over the image and returns the canonical region
list (already filtered by the adapter's confidence floor) plus the raw
pre-filter detection count. The language is fixed per instance: the
Registry constructs one engine per (backend, language) pair.

Engine selection never branches on engine names outside the router; code
holding an Engine treats all backends identically.
*/
type Engine interface {
	Name() EngineName
	Extract(img image.Image, layout LayoutMode) (regions []TextRegion, totalDetected int, e *xerr.Error)
	Close() error
}

// Availability captures which canonical engines are installed. It is probed
// once at startup and treated as immutable per process; an engine dying
// mid-flight surfaces as a runtime failure, not an availability change.
type Availability struct {
	Tesseract bool
	Paddle    bool
}

func (a Availability) Has(name EngineName) bool {
	switch name {
	case EngineTesseract:
		return a.Tesseract
	case EnginePaddle:
		return a.Paddle
	default:
		return false
	}
}

// Any reports whether at least one canonical engine is installed.
func (a Availability) Any() bool {
	return a.Tesseract || a.Paddle
}

// ProbeAvailability checks both backends once. Expensive paddle probing
// (python import or sidecar ping) happens here, not per request.
func ProbeAvailability(paddleConfig PaddleConfig) Availability {
	return Availability{
		Tesseract: probeTesseract(),
		Paddle:    probePaddle(paddleConfig),
	}
}
