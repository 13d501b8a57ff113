package ocr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/disintegration/imaging"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

// Detections scored below this floor are discarded (but still counted in
// the pre-filter total).
const paddleConfidenceFloor = 0.15

// PaddleConfig carries the wiring for the out-of-process backend.
type PaddleConfig struct {
	// PythonPath overrides interpreter discovery for direct mode.
	PythonPath string
	// ScriptDir is where the helper script is written; empty means the
	// OS temp directory.
	ScriptDir string
	// ServerURL, when set, switches to a long-lived HTTP sidecar instead
	// of one interpreter run per call.
	ServerURL string
}

/*
PaddleEngine adapts the polygon-based backend, which runs out of process:
either one helper-script invocation per call, or a long-lived local HTTP
sidecar when ServerURL is configured.

The backend is invoked once for the whole image and its output shape is not
stable across versions: newer builds emit parallel texts/scores/polygons
arrays, older ones a nested list of [polygon, (text, score)] entries, and
the geometry itself may be a 4-point polygon, a 2-point rectangle, or a
flat 4-number rectangle. The adapter normalizes all of it into axis-aligned
boxes; see parsePaddleOutput.
*/
type PaddleEngine struct {
	language   string
	pythonPath string
	scriptPath string
	serverURL  string
	httpClient *http.Client
}

func NewPaddleEngine(language string, config PaddleConfig) (engine *PaddleEngine, e *xerr.Error) {
	engine = &PaddleEngine{
		language:  language,
		serverURL: config.ServerURL,
		httpClient: &http.Client{
			// Model loading on the sidecar's first request can be slow;
			// OCR itself is bounded by the worker pool, not by us.
			Timeout: 120 * time.Second,
		},
	}

	if engine.serverURL != "" {
		return engine, nil
	}

	pythonPath, e := findPython(config.PythonPath)
	if e != nil {
		return nil, e
	}
	engine.pythonPath = pythonPath

	scriptPath, e := writePaddleScript(config.ScriptDir)
	if e != nil {
		return nil, e
	}
	engine.scriptPath = scriptPath

	return engine, nil
}

func (p *PaddleEngine) Name() EngineName {
	return EnginePaddle
}

func (p *PaddleEngine) Close() error {
	return nil
}

func (p *PaddleEngine) Extract(img image.Image, _ LayoutMode) (regions []TextRegion, totalDetected int, e *xerr.Error) {
	// The backend cannot consume an alpha channel; flatten first.
	flattened := flattenAlpha(img)

	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, flattened, imaging.PNG); err != nil {
		e = xerr.NewError(err, "encode image for paddleocr", p.language)
		return
	}

	payload, marshalErr := json.Marshal(map[string]string{
		"image_base64": base64.StdEncoding.EncodeToString(encoded.Bytes()),
		"language":     p.language,
	})
	if marshalErr != nil {
		e = xerr.NewError(marshalErr, "marshal paddleocr request", p.language)
		return
	}

	var output []byte
	if p.serverURL != "" {
		output, e = p.callSidecar(payload)
	} else {
		output, e = p.runScript(payload)
	}
	if e != nil {
		return
	}

	detections, totalDetected, parseErr := parsePaddleOutput(output)
	if parseErr != nil {
		e = xerr.NewError(parseErr, "parse paddleocr output", p.language)
		return
	}

	for _, detection := range detections {
		region := newTextRegion(detection.text, detection.bbox, detection.confidence)
		if region.Text == "" || detection.confidence < paddleConfidenceFloor {
			continue
		}
		regions = append(regions, region)
	}

	tl.Log(
		tl.Info1, palette.Green, "PaddleOCR extracted '%d' regions ('%d' raw detections)",
		len(regions), totalDetected,
	)
	return regions, totalDetected, nil
}

// runScript feeds the request into one helper-script invocation.
func (p *PaddleEngine) runScript(payload []byte) (output []byte, e *xerr.Error) {
	cmd := exec.Command(p.pythonPath, p.scriptPath)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		runErr := fmt.Errorf("%v (stderr: %s)", err, stderr.String())
		e = xerr.NewError(runErr, "run paddleocr helper script", p.scriptPath)
		return
	}
	return stdout.Bytes(), nil
}

// callSidecar posts the request to the long-lived sidecar. Responses may be
// brotli-compressed; we advertise and unwrap that transparently.
func (p *PaddleEngine) callSidecar(payload []byte) (output []byte, e *xerr.Error) {
	request, err := http.NewRequest(http.MethodPost, p.serverURL+"/ocr", bytes.NewReader(payload))
	if err != nil {
		e = xerr.NewError(err, "build paddleocr sidecar request", p.serverURL)
		return
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept-Encoding", "br")

	response, err := p.httpClient.Do(request)
	if err != nil {
		e = xerr.NewError(err, "call paddleocr sidecar", p.serverURL)
		return
	}
	defer func() {
		_ = response.Body.Close()
	}()

	reader := io.Reader(response.Body)
	if response.Header.Get("Content-Encoding") == "br" {
		reader = brotli.NewReader(response.Body) // no Close needed on the brotli wrapper
	}

	output, err = io.ReadAll(reader)
	if err != nil {
		e = xerr.NewError(err, "read paddleocr sidecar response", p.serverURL)
		return
	}
	if response.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("sidecar returned %s: %s", response.Status, output)
		e = xerr.NewError(statusErr, "paddleocr sidecar request failed", p.serverURL)
		return
	}
	return output, nil
}

// paddleDetection is one raw detection after geometry normalization but
// before the confidence/empty-text filter.
type paddleDetection struct {
	text       string
	confidence float64
	bbox       BBox
}

/*
parsePaddleOutput normalizes both output shapes into a flat detection list.

Shape (a), legacy: a list of [polygon_points, (text, confidence)] entries,
optionally wrapped in one extra per-image list level.
Shape (b), structured: an object with parallel texts/scores/polygons arrays
(and an optional error string).

total counts every detection entry encountered, including entries that were
skipped as malformed; a single bad entry never aborts the request.
*/
func parsePaddleOutput(data []byte) (detections []paddleDetection, total int, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, 0, fmt.Errorf("empty engine output")
	}

	if trimmed[0] == '{' {
		return parsePaddleStructured(trimmed)
	}
	return parsePaddleLegacy(trimmed)
}

func parsePaddleStructured(data []byte) (detections []paddleDetection, total int, err error) {
	var structured struct {
		Texts    []string          `json:"texts"`
		Scores   []float64         `json:"scores"`
		Polygons []json.RawMessage `json:"polygons"`
		Error    string            `json:"error"`
	}
	if unmarshalErr := json.Unmarshal(data, &structured); unmarshalErr != nil {
		return nil, 0, unmarshalErr
	}
	if structured.Error != "" {
		return nil, 0, fmt.Errorf("engine error: %s", structured.Error)
	}

	total = len(structured.Texts)
	for i, text := range structured.Texts {
		if i >= len(structured.Scores) || i >= len(structured.Polygons) {
			// Ragged parallel arrays; skip the tail entries.
			break
		}
		bbox, boxErr := bboxFromRawPoints(structured.Polygons[i])
		if boxErr != nil {
			tl.Log(tl.Warning, palette.Yellow, "Skipping malformed paddleocr polygon #%d: '%s'", i, boxErr)
			continue
		}
		detections = append(detections, paddleDetection{
			text:       text,
			confidence: structured.Scores[i],
			bbox:       bbox,
		})
	}
	return detections, total, nil
}

func parsePaddleLegacy(data []byte) (detections []paddleDetection, total int, err error) {
	var entries []json.RawMessage
	if unmarshalErr := json.Unmarshal(data, &entries); unmarshalErr != nil {
		return nil, 0, unmarshalErr
	}

	for _, entry := range entries {
		detection, entryErr := parseLegacyEntry(entry)
		if entryErr == nil {
			total++
			detections = append(detections, detection)
			continue
		}

		// Not a detection entry; it may be the extra per-image nesting
		// level, in which case each inner element is a detection.
		var inner []json.RawMessage
		if json.Unmarshal(entry, &inner) != nil {
			total++
			tl.Log(tl.Warning, palette.Yellow, "Skipping malformed paddleocr entry: '%s'", entryErr)
			continue
		}

		innerDetections, skipped := parseLegacyEntries(inner)
		if len(inner) > 0 && len(innerDetections) == 0 {
			// A malformed entry that merely happens to be a list is not
			// the nesting level. One bad entry, one count.
			total++
			tl.Log(tl.Warning, palette.Yellow, "Skipping malformed paddleocr entry: '%s'", entryErr)
			continue
		}

		total += len(inner)
		for _, innerErr := range skipped {
			tl.Log(tl.Warning, palette.Yellow, "Skipping malformed paddleocr entry: '%s'", innerErr)
		}
		detections = append(detections, innerDetections...)
	}
	return detections, total, nil
}

// parseLegacyEntries decodes each element of a nesting level as a
// detection, returning the successes and the errors of skipped elements.
func parseLegacyEntries(entries []json.RawMessage) (detections []paddleDetection, skipped []error) {
	for _, entry := range entries {
		detection, err := parseLegacyEntry(entry)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		detections = append(detections, detection)
	}
	return detections, skipped
}

// parseLegacyEntry decodes one [polygon_points, (text, confidence)] pair.
func parseLegacyEntry(entry json.RawMessage) (paddleDetection, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(entry, &parts); err != nil {
		return paddleDetection{}, err
	}
	if len(parts) != 2 {
		return paddleDetection{}, fmt.Errorf("expected [points, (text, score)], got %d elements", len(parts))
	}

	bbox, err := bboxFromRawPoints(parts[0])
	if err != nil {
		return paddleDetection{}, err
	}

	var recognition []json.RawMessage
	if err := json.Unmarshal(parts[1], &recognition); err != nil {
		return paddleDetection{}, fmt.Errorf("recognition tuple: %w", err)
	}
	if len(recognition) != 2 {
		return paddleDetection{}, fmt.Errorf("recognition tuple has %d elements", len(recognition))
	}

	var detection paddleDetection
	if err := json.Unmarshal(recognition[0], &detection.text); err != nil {
		return paddleDetection{}, fmt.Errorf("recognition text: %w", err)
	}
	if err := json.Unmarshal(recognition[1], &detection.confidence); err != nil {
		return paddleDetection{}, fmt.Errorf("recognition score: %w", err)
	}
	detection.bbox = bbox
	return detection, nil
}

/*
bboxFromRawPoints reduces any of the backend's geometry encodings to an
axis-aligned box by taking min/max over the x and y coordinates:

  - 4-point polygon   [[x,y],[x,y],[x,y],[x,y]]
  - 2-point rectangle [[x1,y1],[x2,y2]]
  - flat rectangle    [x1,y1,x2,y2]
*/
func bboxFromRawPoints(raw json.RawMessage) (BBox, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return BBox{}, err
	}
	if len(elements) == 0 {
		return BBox{}, fmt.Errorf("empty point list")
	}

	var points [][2]float64

	if bytes.HasPrefix(bytes.TrimSpace(elements[0]), []byte("[")) {
		// Point-pair form.
		for _, element := range elements {
			var point [2]float64
			if err := json.Unmarshal(element, &point); err != nil {
				return BBox{}, fmt.Errorf("point pair: %w", err)
			}
			points = append(points, point)
		}
	} else {
		// Flat-number form; must be x1,y1,x2,y2.
		var flat []float64
		if err := json.Unmarshal(raw, &flat); err != nil {
			return BBox{}, err
		}
		if len(flat) != 4 {
			return BBox{}, fmt.Errorf("flat rectangle has %d numbers", len(flat))
		}
		points = [][2]float64{{flat[0], flat[1]}, {flat[2], flat[3]}}
	}

	minX, minY := points[0][0], points[0][1]
	maxX, maxY := minX, minY
	for _, point := range points[1:] {
		minX = math.Min(minX, point[0])
		maxX = math.Max(maxX, point[0])
		minY = math.Min(minY, point[1])
		maxY = math.Max(maxY, point[1])
	}

	x0, y0 := int(math.Floor(minX)), int(math.Floor(minY))
	x1, y1 := int(math.Ceil(maxX)), int(math.Ceil(maxY))
	return BBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, nil
}

// findPython locates the interpreter for direct mode.
func findPython(override string) (string, *xerr.Error) {
	candidates := []string{"python3", "python"}
	if override != "" {
		candidates = []string{override}
	}

	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	err := fmt.Errorf("no python interpreter found (tried %v)", candidates)
	return "", xerr.NewError(err, "locate python for paddleocr", override)
}

// paddleHelperScript reads one JSON request on stdin and writes the OCR
// result JSON on stdout. Newer paddleocr builds get the structured shape,
// older ones fall back to dumping the legacy nested list; the Go side
// accepts both.
const paddleHelperScript = `#!/usr/bin/env python3
import base64
import io
import json
import sys

try:
    from paddleocr import PaddleOCR
except ImportError:
    print(json.dumps({"error": "paddleocr is not installed"}))
    sys.exit(0)

import numpy as np
from PIL import Image

request = json.load(sys.stdin)
image = Image.open(io.BytesIO(base64.b64decode(request["image_base64"]))).convert("RGB")
engine = PaddleOCR(lang=request.get("language", "en"), show_log=False)

if hasattr(engine, "predict"):
    result = engine.predict(np.array(image))
    page = result[0]
    print(json.dumps({
        "texts": list(page.get("rec_texts", [])),
        "scores": [float(s) for s in page.get("rec_scores", [])],
        "polygons": [np.asarray(p).tolist() for p in page.get("rec_polys", [])],
    }))
else:
    result = engine.ocr(np.array(image), cls=False)
    print(json.dumps(result if result is not None else []))
`

// writePaddleScript materializes the helper script once per engine.
func writePaddleScript(scriptDir string) (scriptPath string, e *xerr.Error) {
	if scriptDir == "" {
		scriptDir = os.TempDir()
	}
	if err := os.MkdirAll(scriptDir, 0o755); err != nil {
		e = xerr.NewError(err, "create paddleocr script directory", scriptDir)
		return
	}

	scriptPath = filepath.Join(scriptDir, "paddleocr-helper.py")
	if err := os.WriteFile(scriptPath, []byte(paddleHelperScript), 0o755); err != nil {
		e = xerr.NewError(err, "write paddleocr helper script", scriptPath)
		return
	}
	return scriptPath, nil
}

// probePaddle checks the backend once at startup: a responding sidecar, or
// an interpreter that can import paddleocr.
func probePaddle(config PaddleConfig) bool {
	if config.ServerURL != "" {
		client := &http.Client{Timeout: 3 * time.Second}
		response, err := client.Get(config.ServerURL + "/health")
		if err != nil {
			tl.Log(tl.Notice, palette.Yellow, "PaddleOCR sidecar unreachable at '%s': '%s'", config.ServerURL, err)
			return false
		}
		_ = response.Body.Close()
		return response.StatusCode == http.StatusOK
	}

	pythonPath, e := findPython(config.PythonPath)
	if e != nil {
		tl.Log(tl.Notice, palette.Yellow, "PaddleOCR unavailable: '%s'", e)
		return false
	}

	cmd := exec.Command(pythonPath, "-c", "import paddleocr")
	if err := cmd.Run(); err != nil {
		tl.Log(tl.Notice, palette.Yellow, "PaddleOCR not importable via '%s': '%s'", pythonPath, err)
		return false
	}
	return true
}
