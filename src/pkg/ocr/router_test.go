package ocr

import (
	"strings"
	"testing"
)

func TestResolveCanonicalDirect(t *testing.T) {
	avail := Availability{Tesseract: true, Paddle: true}

	for _, name := range []string{"tesseract", "paddleocr", "PaddleOCR", " Tesseract "} {
		resolution, e := Resolve(name, avail)
		if e != nil {
			t.Fatalf("Resolve(%q) error = %v", name, e)
		}
		normalized := strings.ToLower(strings.TrimSpace(name))
		if string(resolution.Engine) != normalized {
			t.Errorf("Resolve(%q) engine = %q, want %q", name, resolution.Engine, normalized)
		}
		if resolution.FallbackReason != "" {
			t.Errorf("Resolve(%q) unexpected fallback reason %q", name, resolution.FallbackReason)
		}
	}
}

func TestResolveFallbackTable(t *testing.T) {
	tests := []struct {
		name       string
		requested  string
		avail      Availability
		wantEngine EngineName
		wantErr    bool
		// substrings the fallback reason must mention
		reasonMentions []string
	}{
		{
			name:       "paddle unavailable falls back to tesseract",
			requested:  "paddleocr",
			avail:      Availability{Tesseract: true},
			wantEngine: EngineTesseract,
			reasonMentions: []string{"paddleocr", "tesseract"},
		},
		{
			name:       "tesseract unavailable falls back to paddle",
			requested:  "tesseract",
			avail:      Availability{Paddle: true},
			wantEngine: EnginePaddle,
			reasonMentions: []string{"tesseract", "paddleocr"},
		},
		{
			name:       "alias prefers paddle",
			requested:  "hybrid",
			avail:      Availability{Tesseract: true, Paddle: true},
			wantEngine: EnginePaddle,
			reasonMentions: []string{"hybrid", "paddleocr"},
		},
		{
			name:       "trocr with only tesseract",
			requested:  "trocr",
			avail:      Availability{Tesseract: true},
			wantEngine: EngineTesseract,
			reasonMentions: []string{"trocr", "tesseract"},
		},
		{
			name:       "unknown name treated like alias",
			requested:  "some-future-engine",
			avail:      Availability{Tesseract: true, Paddle: true},
			wantEngine: EnginePaddle,
			reasonMentions: []string{"some-future-engine", "paddleocr"},
		},
		{
			name:      "nothing installed",
			requested: "easyocr",
			avail:     Availability{},
			wantErr:   true,
		},
		{
			name:      "canonical request with nothing installed",
			requested: "tesseract",
			avail:     Availability{},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolution, e := Resolve(tt.requested, tt.avail)
			if tt.wantErr {
				if e == nil {
					t.Fatalf("Resolve(%q) expected error, got engine %q", tt.requested, resolution.Engine)
				}
				if !strings.Contains(e.Error(), "OCR not available") {
					t.Errorf("error %q does not mention OCR not available", e.Error())
				}
				return
			}
			if e != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.requested, e)
			}
			if resolution.Engine != tt.wantEngine {
				t.Errorf("engine = %q, want %q", resolution.Engine, tt.wantEngine)
			}
			for _, mention := range tt.reasonMentions {
				if !strings.Contains(resolution.FallbackReason, mention) {
					t.Errorf("fallback reason %q does not mention %q", resolution.FallbackReason, mention)
				}
			}
		})
	}
}

// Resolution must be a pure function of (requested, availability).
func TestResolveDeterministic(t *testing.T) {
	avail := Availability{Tesseract: true}

	first, e1 := Resolve("trocr", avail)
	second, e2 := Resolve("trocr", avail)

	if e1 != nil || e2 != nil {
		t.Fatalf("unexpected errors: %v, %v", e1, e2)
	}
	if first != second {
		t.Errorf("resolution not deterministic: %+v vs %+v", first, second)
	}
}

func TestAlternate(t *testing.T) {
	if Alternate(EngineTesseract) != EnginePaddle {
		t.Error("Alternate(tesseract) should be paddleocr")
	}
	if Alternate(EnginePaddle) != EngineTesseract {
		t.Error("Alternate(paddleocr) should be tesseract")
	}
}

func TestIsAlias(t *testing.T) {
	for _, alias := range []string{"hybrid", "trocr", "easyocr", "TrOCR"} {
		if !IsAlias(alias) {
			t.Errorf("IsAlias(%q) = false, want true", alias)
		}
	}
	for _, name := range []string{"tesseract", "paddleocr", "nonsense"} {
		if IsAlias(name) {
			t.Errorf("IsAlias(%q) = true, want false", name)
		}
	}
}
