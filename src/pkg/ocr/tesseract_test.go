package ocr

import (
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"
)

func TestTesseractRegion(t *testing.T) {
	rect := image.Rect(10, 20, 110, 50)

	region, keep := tesseractRegion("HELLO", 87.0, rect)
	if !keep {
		t.Fatal("valid word should be kept")
	}
	if region.Text != "HELLO" {
		t.Errorf("text = %q", region.Text)
	}
	if region.Confidence != 0.87 {
		t.Errorf("confidence = %v, want 0.87", region.Confidence)
	}
	if region.BBox != (BBox{X: 10, Y: 20, Width: 100, Height: 30}) {
		t.Errorf("bbox = %+v", region.BBox)
	}
	if region.ConfidenceTier != TierHigh {
		t.Errorf("tier = %q, want high", region.ConfidenceTier)
	}
}

func TestTesseractRegionFilters(t *testing.T) {
	rect := image.Rect(0, 0, 10, 10)

	if _, keep := tesseractRegion("   ", 90.0, rect); keep {
		t.Error("whitespace-only word should be dropped")
	}
	if _, keep := tesseractRegion("ok", 14.9, rect); keep {
		t.Error("sub-floor confidence should be dropped")
	}
	if _, keep := tesseractRegion("ok", 15.0, rect); !keep {
		t.Error("floor confidence should be kept")
	}
}

func TestPageSegModeFor(t *testing.T) {
	tests := []struct {
		layout LayoutMode
		want   gosseract.PageSegMode
	}{
		{LayoutSparse, gosseract.PSM_SPARSE_TEXT},
		{LayoutDense, gosseract.PSM_SINGLE_BLOCK},
		{LayoutAuto, gosseract.PSM_AUTO},
		{LayoutVertical, gosseract.PSM_SINGLE_BLOCK_VERT_TEXT},
		{"", gosseract.PSM_SPARSE_TEXT},
		{"something-else", gosseract.PSM_SPARSE_TEXT},
	}

	for _, tt := range tests {
		if got := pageSegModeFor(tt.layout); got != tt.want {
			t.Errorf("pageSegModeFor(%q) = %v, want %v", tt.layout, got, tt.want)
		}
	}
}
