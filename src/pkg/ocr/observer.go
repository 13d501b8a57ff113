package ocr

import (
	"fmt"
	"image"
	"path/filepath"
	"sync/atomic"

	"github.com/disintegration/imaging"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

/*
Observer is the injected debug sink the extraction core reports into. The
core calls it unconditionally at every stage; whether the calls do anything
is decided by whichever implementation the caller wired in, never by a
branch inside the core.
*/
type Observer interface {
	// Stage records a progress event for one pipeline stage.
	Stage(stage string, format string, args ...any)
	// Image hands over an intermediate image (e.g. a preprocessed page).
	Image(label string, img image.Image)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) Stage(string, string, ...any) {}
func (NopObserver) Image(string, image.Image)    {}

// LogObserver forwards stage events to tintlog at Verbose and only logs the
// dimensions of intermediate images.
type LogObserver struct{}

func (LogObserver) Stage(stage string, format string, args ...any) {
	tl.Log(tl.Verbose, palette.CyanDim, "[%s] "+format, append([]any{stage}, args...)...)
}

func (LogObserver) Image(label string, img image.Image) {
	bounds := img.Bounds()
	tl.Log(tl.Verbose, palette.CyanDim, "[image] '%s' %dx%d", label, bounds.Dx(), bounds.Dy())
}

/*
DumpObserver behaves like LogObserver but additionally writes every
intermediate image into Dir as a numbered PNG, for eyeballing what a
preprocessing profile actually did to a page.
*/
type DumpObserver struct {
	Dir string

	sequence atomic.Uint64
}

func (d *DumpObserver) Stage(stage string, format string, args ...any) {
	LogObserver{}.Stage(stage, format, args...)
}

func (d *DumpObserver) Image(label string, img image.Image) {
	n := d.sequence.Add(1)
	dumpPath := filepath.Join(d.Dir, fmt.Sprintf("%04d-%s.png", n, label))

	if err := imaging.Save(img, dumpPath); err != nil {
		tl.Log(tl.Warning, palette.Yellow, "Unable to dump debug image to '%s': '%s'", dumpPath, err)
		return
	}
	tl.Log(tl.Verbose, palette.CyanDim, "[image] dumped '%s' to '%s'", label, dumpPath)
}
