package ocr

import (
	"bytes"
	"image"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/tuumbleweed/xerr"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, width, height)), imaging.PNG); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

// fakeService builds a Service whose registry hands out the given engines.
func fakeService(t *testing.T, avail Availability, engines map[EngineName]*fakeEngine) *Service {
	t.Helper()
	registry := NewRegistry(func(name EngineName, language string) (Engine, *xerr.Error) {
		engine, exists := engines[name]
		if !exists {
			t.Fatalf("factory asked for unexpected engine %q", name)
		}
		return engine, nil
	})
	return NewService(registry, avail, NewPool(2), NopObserver{})
}

func TestExtractFullPage(t *testing.T) {
	engines := map[EngineName]*fakeEngine{
		EnginePaddle: {
			name: EnginePaddle,
			regions: []TextRegion{
				newTextRegion("HELLO", BBox{10, 20, 100, 30}, 0.9),
			},
			total: 3,
		},
	}
	service := fakeService(t, Availability{Paddle: true}, engines)

	result, e := service.Extract(Request{
		ImageData: pngBytes(t, 200, 150),
		Language:  "eng",
		Profile:   ProfileDefault,
		Layout:    LayoutSparse,
		Engine:    "paddleocr",
	})
	if e != nil {
		t.Fatalf("Extract failed: %v", e)
	}

	if result.EngineUsed != EnginePaddle || result.FallbackReason != "" {
		t.Errorf("engine_used = %q, fallback = %q", result.EngineUsed, result.FallbackReason)
	}
	if len(result.Regions) != 1 || result.Regions[0].Text != "HELLO" {
		t.Fatalf("regions = %+v", result.Regions)
	}
	if result.TotalDetected != 3 || result.FilteredOut() != 2 {
		t.Errorf("total = %d, filtered = %d, want 3/2", result.TotalDetected, result.FilteredOut())
	}
	if result.Stats.Count != 1 || result.Stats.Max != 0.9 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

// Region requests crop before OCR and shift boxes back afterwards, so the
// caller always sees full-image coordinates.
func TestExtractRegionOffsetsBoxes(t *testing.T) {
	engines := map[EngineName]*fakeEngine{
		EnginePaddle: {
			name: EnginePaddle,
			regions: []TextRegion{
				newTextRegion("bubble", BBox{2, 3, 4, 5}, 0.8),
			},
			total: 1,
		},
	}
	service := fakeService(t, Availability{Paddle: true}, engines)

	region := BBox{X: 10, Y: 20, Width: 30, Height: 30}
	result, e := service.Extract(Request{
		ImageData: pngBytes(t, 100, 80),
		Region:    &region,
		Language:  "eng",
		Profile:   ProfileMinimal,
		Layout:    LayoutDense,
		Engine:    "paddleocr",
	})
	if e != nil {
		t.Fatalf("Extract failed: %v", e)
	}

	want := BBox{X: 12, Y: 23, Width: 4, Height: 5}
	if result.Regions[0].BBox != want {
		t.Errorf("bbox = %+v, want %+v (crop offset applied)", result.Regions[0].BBox, want)
	}
}

// A region with no overlap is a valid empty result, and the engine is still
// resolved so the response names what would have run.
func TestExtractDegenerateRegion(t *testing.T) {
	service := fakeService(t, Availability{Tesseract: true}, map[EngineName]*fakeEngine{})

	region := BBox{X: 500, Y: 500, Width: 50, Height: 50}
	result, e := service.Extract(Request{
		ImageData: pngBytes(t, 100, 80),
		Region:    &region,
		Language:  "eng",
		Engine:    "tesseract",
	})
	if e != nil {
		t.Fatalf("Extract failed: %v", e)
	}

	if len(result.Regions) != 0 || result.TotalDetected != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.EngineUsed != EngineTesseract {
		t.Errorf("engine_used = %q, want tesseract", result.EngineUsed)
	}
	if result.Stats.Count != 0 {
		t.Errorf("stats = %+v, want zeros", result.Stats)
	}
}

func TestExtractRuntimeFallback(t *testing.T) {
	engines := map[EngineName]*fakeEngine{
		EngineTesseract: {name: EngineTesseract, fail: true},
		EnginePaddle: {
			name: EnginePaddle,
			regions: []TextRegion{
				newTextRegion("rescued", BBox{0, 0, 10, 10}, 0.7),
			},
			total: 1,
		},
	}
	service := fakeService(t, Availability{Tesseract: true, Paddle: true}, engines)

	result, e := service.Extract(Request{
		ImageData: pngBytes(t, 50, 50),
		Language:  "eng",
		Engine:    "tesseract",
	})
	if e != nil {
		t.Fatalf("Extract failed: %v", e)
	}

	if result.EngineUsed != EnginePaddle {
		t.Errorf("engine_used = %q, want paddleocr after fallback", result.EngineUsed)
	}
	if !strings.Contains(result.FallbackReason, "tesseract") || !strings.Contains(result.FallbackReason, "failed") {
		t.Errorf("fallback reason %q does not name the failed engine", result.FallbackReason)
	}
	if len(result.Regions) != 1 || result.Regions[0].Text != "rescued" {
		t.Errorf("regions = %+v", result.Regions)
	}
}

// One hop, never two: when both engines fail at runtime the request errors.
func TestExtractBothEnginesFail(t *testing.T) {
	engines := map[EngineName]*fakeEngine{
		EngineTesseract: {name: EngineTesseract, fail: true},
		EnginePaddle:    {name: EnginePaddle, fail: true},
	}
	service := fakeService(t, Availability{Tesseract: true, Paddle: true}, engines)

	if _, e := service.Extract(Request{
		ImageData: pngBytes(t, 50, 50),
		Language:  "eng",
		Engine:    "tesseract",
	}); e == nil {
		t.Fatal("expected error when both engines fail")
	}
}

func TestExtractNoFallbackWhenAlternateUnavailable(t *testing.T) {
	engines := map[EngineName]*fakeEngine{
		EngineTesseract: {name: EngineTesseract, fail: true},
	}
	service := fakeService(t, Availability{Tesseract: true}, engines)

	if _, e := service.Extract(Request{
		ImageData: pngBytes(t, 50, 50),
		Language:  "eng",
		Engine:    "tesseract",
	}); e == nil {
		t.Fatal("expected error when only engine fails and no alternate exists")
	}
}

func TestExtractMissingImageReference(t *testing.T) {
	service := fakeService(t, Availability{Paddle: true}, map[EngineName]*fakeEngine{})

	if _, e := service.Extract(Request{Language: "eng", Engine: "paddleocr"}); e == nil {
		t.Fatal("expected error for request without image reference")
	}
}

func TestExtractUndecodableImage(t *testing.T) {
	service := fakeService(t, Availability{Paddle: true}, map[EngineName]*fakeEngine{})

	if _, e := service.Extract(Request{
		ImageData: []byte("definitely not a png"),
		Language:  "eng",
		Engine:    "paddleocr",
	}); e == nil {
		t.Fatal("expected error for undecodable image")
	}
}

// Alias requests resolve before any engine runs; the fake factory only knows
// the canonical names.
func TestExtractAliasRequest(t *testing.T) {
	engines := map[EngineName]*fakeEngine{
		EnginePaddle: {name: EnginePaddle, total: 0},
	}
	service := fakeService(t, Availability{Tesseract: true, Paddle: true}, engines)

	result, e := service.Extract(Request{
		ImageData: pngBytes(t, 40, 40),
		Language:  "eng",
		Engine:    "hybrid",
	})
	if e != nil {
		t.Fatalf("Extract failed: %v", e)
	}

	if result.EngineRequested != "hybrid" {
		t.Errorf("engine_requested = %q, want the caller's verbatim string", result.EngineRequested)
	}
	if result.EngineUsed != EnginePaddle {
		t.Errorf("engine_used = %q, want paddleocr", result.EngineUsed)
	}
	if result.FallbackReason == "" {
		t.Error("alias resolution should set a fallback reason")
	}
}
