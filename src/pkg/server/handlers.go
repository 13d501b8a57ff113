// Package server exposes the OCR extraction service over HTTP.
package server

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"bookreader-ocr/src/pkg/ocr"
)

const Version = "1.0.0"

/*
Handlers binds the echo routes to one extraction Service.

Error contract, both extraction endpoints: terminal failures come back as
HTTP 200 with success=false and a string error. Nothing raises past this
boundary; a degenerate region is a success with zero regions, not an error.
*/
type Handlers struct {
	Service         *ocr.Service
	DefaultLanguage string
}

// RegisterRoutes wires the endpoints. The extra middleware (e.g. bearer
// auth) applies to the /api group only; /health stays open for probes.
func (h *Handlers) RegisterRoutes(e *echo.Echo, apiMiddleware ...echo.MiddlewareFunc) {
	e.GET("/health", h.handleHealth)

	api := e.Group("/api", apiMiddleware...)
	api.GET("/ocr/engines", h.handleEngines)
	api.POST("/ocr", h.handleExtract)
	api.POST("/ocr/region", h.handleExtractRegion)
}

type extractRequest struct {
	ImagePath     string `json:"image_path,omitempty"`
	ImageBase64   string `json:"image_base64,omitempty"`
	Language      string `json:"language,omitempty"`
	Preprocessing string `json:"preprocessing,omitempty"`
	Psm           string `json:"psm,omitempty"`
	Engine        string `json:"engine,omitempty"`
	Region        []int  `json:"region,omitempty"`
}

type extractMetadata struct {
	ConfidenceStats ocr.ConfidenceStats `json:"confidence_stats"`
	EngineRequested string              `json:"engine_requested"`
	EngineUsed      string              `json:"engine_used"`
	FallbackReason  *string             `json:"fallback_reason"`
	Preprocessing   string              `json:"preprocessing"`
	Psm             string              `json:"psm"`
	TotalDetected   int                 `json:"total_detected"`
	Filtered        int                 `json:"filtered"`
	FilteredOut     int                 `json:"filtered_out"`
}

type extractResponse struct {
	Success  bool             `json:"success"`
	Regions  []ocr.TextRegion `json:"regions"`
	Metadata *extractMetadata `json:"metadata,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (h *Handlers) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

// handleEngines reports which canonical engines are installed and which one
// unqualified requests will land on.
func (h *Handlers) handleEngines(c echo.Context) error {
	avail := h.Service.Availability()

	defaultEngine := ""
	if resolution, e := ocr.Resolve("", avail); e == nil {
		defaultEngine = string(resolution.Engine)
	}

	return c.JSON(http.StatusOK, map[string]any{
		string(ocr.EngineTesseract): map[string]bool{"available": avail.Tesseract},
		string(ocr.EnginePaddle):    map[string]bool{"available": avail.Paddle},
		"default_engine":            defaultEngine,
	})
}

// handleExtract is full-page extraction: default profile, sparse layout.
func (h *Handlers) handleExtract(c echo.Context) error {
	var body extractRequest
	if err := c.Bind(&body); err != nil {
		return failure(c, xerr.NewError(err, "parse extraction request body", c.Path()))
	}

	request, e := h.buildRequest(body, ocr.ProfileDefault, ocr.LayoutSparse)
	if e != nil {
		return failure(c, e)
	}
	return h.extract(c, request)
}

/*
handleExtractRegion extracts a caller-selected sub-rectangle. Small crops
respond poorly to aggressive binarization and sparse-layout assumptions, so
the defaults flip to the minimal profile and dense layout. An out-of-bounds
or zero-extent rectangle is a successful empty result.
*/
func (h *Handlers) handleExtractRegion(c echo.Context) error {
	var body extractRequest
	if err := c.Bind(&body); err != nil {
		return failure(c, xerr.NewError(err, "parse region extraction request body", c.Path()))
	}

	if len(body.Region) != 4 {
		err := fmt.Errorf("region must be [x, y, width, height], got %d values", len(body.Region))
		return failure(c, xerr.NewError(err, "validate region rectangle", c.Path()))
	}

	request, e := h.buildRequest(body, ocr.ProfileMinimal, ocr.LayoutDense)
	if e != nil {
		return failure(c, e)
	}
	request.Region = &ocr.BBox{
		X:      body.Region[0],
		Y:      body.Region[1],
		Width:  body.Region[2],
		Height: body.Region[3],
	}
	return h.extract(c, request)
}

func (h *Handlers) extract(c echo.Context, request ocr.Request) error {
	result, e := h.Service.Extract(request)
	if e != nil {
		return failure(c, e)
	}

	var fallbackReason *string
	if result.FallbackReason != "" {
		fallbackReason = &result.FallbackReason
	}

	regions := result.Regions
	if regions == nil {
		regions = []ocr.TextRegion{}
	}

	return c.JSON(http.StatusOK, extractResponse{
		Success: true,
		Regions: regions,
		Metadata: &extractMetadata{
			ConfidenceStats: result.Stats,
			EngineRequested: result.EngineRequested,
			EngineUsed:      string(result.EngineUsed),
			FallbackReason:  fallbackReason,
			Preprocessing:   string(result.Profile),
			Psm:             string(result.Layout),
			TotalDetected:   result.TotalDetected,
			Filtered:        len(result.Regions),
			FilteredOut:     result.FilteredOut(),
		},
	})
}

// buildRequest merges endpoint defaults into the request body.
func (h *Handlers) buildRequest(body extractRequest, defaultProfile ocr.ProfileName, defaultLayout ocr.LayoutMode) (request ocr.Request, e *xerr.Error) {
	if body.ImagePath == "" && body.ImageBase64 == "" {
		err := fmt.Errorf("either image_path or image_base64 is required")
		e = xerr.NewError(err, "validate image reference", "")
		return
	}

	request = ocr.Request{
		ImagePath: body.ImagePath,
		Language:  body.Language,
		Profile:   ocr.ProfileName(body.Preprocessing),
		Layout:    ocr.LayoutMode(body.Psm),
		Engine:    body.Engine,
	}

	if body.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(body.ImageBase64)
		if err != nil {
			e = xerr.NewError(err, "decode image_base64", "")
			return
		}
		request.ImageData = decoded
	}

	if request.Language == "" {
		request.Language = h.DefaultLanguage
	}
	if request.Profile == "" {
		request.Profile = defaultProfile
	}
	if request.Layout == "" {
		request.Layout = defaultLayout
	}
	if request.Engine == "" {
		request.Engine = string(ocr.EnginePaddle)
	}
	return request, nil
}

// failure reports a terminal error as a structured body, never a panic or
// a bare 500.
func failure(c echo.Context, e *xerr.Error) error {
	tl.Log(tl.Warning, palette.Yellow, "Extraction request failed: '%s'", e)
	return c.JSON(http.StatusOK, extractResponse{
		Success: false,
		Regions: []ocr.TextRegion{},
		Error:   e.Error(),
	})
}
