package ocr

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

/*
Service ties the subsystem together: router, registry, cropper,
preprocessing, adapters, classifier. One Service handles all requests;
per-request state lives on the stack, the only shared mutable state is the
registry's engine cache.
*/
type Service struct {
	registry *Registry
	avail    Availability
	pool     *Pool
	observer Observer
}

// NewService wires a Service. A nil observer falls back to the logging
// sink, not to silence; the observer contract is "always called".
func NewService(registry *Registry, avail Availability, pool *Pool, observer Observer) *Service {
	if observer == nil {
		observer = LogObserver{}
	}
	return &Service{
		registry: registry,
		avail:    avail,
		pool:     pool,
		observer: observer,
	}
}

// Availability exposes the startup probe result (for the engines endpoint).
func (s *Service) Availability() Availability {
	return s.avail
}

/*
Extract runs one full extraction request, page or sub-region.

Flow: load image → resolve engine (aliases, availability fallback) → clamp
and crop when a region is present → preprocess (pattern-match path only) →
adapter → offset boxes back to original coordinates → classify and
aggregate. A runtime engine failure is retried exactly once on the other
canonical engine when one is available; the failure text becomes the
fallback reason.
*/
func (s *Service) Extract(request Request) (result *Result, e *xerr.Error) {
	img, e := s.loadImage(request)
	if e != nil {
		return nil, e
	}

	resolution, e := Resolve(request.Engine, s.avail)
	if e != nil {
		return nil, e
	}

	profile := NormalizeProfile(request.Profile)
	result = &Result{
		EngineRequested: request.Engine,
		EngineUsed:      resolution.Engine,
		FallbackReason:  resolution.FallbackReason,
		Profile:         profile,
		Layout:          request.Layout,
	}

	offsetX, offsetY := 0, 0
	if request.Region != nil {
		bounds := img.Bounds()
		clamped := ClampRegion(*request.Region, bounds.Dx(), bounds.Dy())
		if IsDegenerate(clamped) {
			// A caller-selected region entirely outside the image is a
			// valid empty result, not a fault.
			tl.Log(
				tl.Warning, palette.Yellow, "Region [%d, %d, %d, %d] has no overlap with %dx%d image",
				request.Region.X, request.Region.Y, request.Region.Width, request.Region.Height,
				bounds.Dx(), bounds.Dy(),
			)
			result.Stats = ComputeStats(nil)
			return result, nil
		}

		s.observer.Stage("crop", "clamped region to [%d, %d, %d, %d]",
			clamped.X, clamped.Y, clamped.Width, clamped.Height)
		img = CropToRegion(img, clamped)
		offsetX, offsetY = clamped.X, clamped.Y
	}

	regions, total, e := s.runEngine(resolution.Engine, img, request, profile)
	if e != nil {
		// Single fallback hop: retry the whole operation on the other
		// canonical engine if one is installed, recording the failure
		// text as the reason. Never more than one hop per request.
		alternate := Alternate(resolution.Engine)
		if !s.avail.Has(alternate) {
			return nil, e
		}

		tl.Log(
			tl.Warning, palette.PurpleBold, "Engine '%s' failed ('%s'), retrying on '%s'",
			string(resolution.Engine), e, string(alternate),
		)
		result.EngineUsed = alternate
		result.FallbackReason = fmt.Sprintf("engine '%s' failed: %s", string(resolution.Engine), e)

		regions, total, e = s.runEngine(alternate, img, request, profile)
		if e != nil {
			return nil, e
		}
	}

	result.Regions = OffsetRegions(regions, offsetX, offsetY)
	result.TotalDetected = total
	result.Stats = ComputeStats(result.Regions)

	tl.Log(
		tl.Info1, palette.Green, "Extraction finished: engine '%s', '%d' regions kept of '%d' detected",
		string(result.EngineUsed), len(result.Regions), total,
	)
	return result, nil
}

// runEngine executes one extraction attempt on one canonical engine,
// applying the engine-appropriate preprocessing and holding the native call
// to a worker-pool slot.
func (s *Service) runEngine(name EngineName, img image.Image, request Request, profile ProfileName) (regions []TextRegion, total int, e *xerr.Error) {
	engine, e := s.registry.Engine(name, request.Language)
	if e != nil {
		return nil, 0, e
	}

	input := img
	if name == EngineTesseract {
		input = Preprocess(img, profile, s.observer)
	}

	s.observer.Stage("extract", "running engine '%s' (language '%s', layout '%s')",
		string(name), request.Language, string(request.Layout))

	s.pool.Do(func() {
		regions, total, e = engine.Extract(input, request.Layout)
	})
	return regions, total, e
}

// loadImage materializes the request's image reference. A missing file or
// undecodable buffer is terminal; no engine is invoked.
func (s *Service) loadImage(request Request) (image.Image, *xerr.Error) {
	if len(request.ImageData) > 0 {
		img, err := imaging.Decode(bytes.NewReader(request.ImageData))
		if err != nil {
			return nil, xerr.NewError(err, "decode in-memory image", request.Language)
		}
		return img, nil
	}

	if request.ImagePath == "" {
		err := fmt.Errorf("no image reference provided")
		return nil, xerr.NewError(err, "load request image", "")
	}

	img, err := imaging.Open(request.ImagePath)
	if err != nil {
		return nil, xerr.NewError(err, "open request image", request.ImagePath)
	}
	return img, nil
}
