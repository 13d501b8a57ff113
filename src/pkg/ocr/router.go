package ocr

import (
	"fmt"
	"strings"

	"github.com/tuumbleweed/xerr"
)

/*
Engine routing. Resolution is a pure function of (requested name, available
engine set): it holds no state, performs no I/O, and running it twice with
identical inputs yields identical outcomes, which is what makes the
fallback behavior testable as data.

Canonical names execute directly when installed. The alias set (hybrid,
trocr, easyocr) and any unrecognized name never execute; they are remapped
onto whichever canonical engine is preferred and available, with a
human-readable reason naming both the original request and the choice.
*/

// engineAliases are requested names we accept but do not implement.
var engineAliases = map[string]bool{
	"hybrid":  true,
	"trocr":   true,
	"easyocr": true,
}

// resolutionTable gives, per request class, the order in which canonical
// engines are tried. Unknown/alias requests share the paddle-first row.
var resolutionTable = map[EngineName][2]EngineName{
	EngineTesseract: {EngineTesseract, EnginePaddle},
	EnginePaddle:    {EnginePaddle, EngineTesseract},
	engineOther:     {EnginePaddle, EngineTesseract},
}

// engineOther is the table key for every non-canonical request.
const engineOther EngineName = "*"

// Resolution is the routing outcome for one request.
type Resolution struct {
	// Requested is the caller's engine string, verbatim.
	Requested string
	// Engine is the canonical engine that will run.
	Engine EngineName
	// FallbackReason is empty when Engine is exactly what was requested.
	FallbackReason string
}

/*
Resolve picks the engine that actually runs for a requested name.

Resolution order:
 1. normalize to lower case;
 2. aliases and unknown names take the preferred available canonical engine;
 3. an unavailable canonical engine falls back to the other one;
 4. no engine installed is a terminal "OCR not available" error.
*/
func Resolve(requested string, avail Availability) (resolution Resolution, e *xerr.Error) {
	resolution.Requested = requested
	normalized := strings.ToLower(strings.TrimSpace(requested))

	key := EngineName(normalized)
	canonical := key == EngineTesseract || key == EnginePaddle
	if !canonical {
		key = engineOther
	}

	for _, candidate := range resolutionTable[key] {
		if !avail.Has(candidate) {
			continue
		}

		resolution.Engine = candidate
		switch {
		case canonical && candidate == EngineName(normalized):
			// Direct hit, no reason to record.
		case canonical:
			resolution.FallbackReason = fmt.Sprintf(
				"requested engine '%s' is not available, falling back to '%s'",
				requested, candidate,
			)
		default:
			resolution.FallbackReason = fmt.Sprintf(
				"requested engine '%s' is not implemented, using '%s' instead",
				requested, candidate,
			)
		}
		return resolution, nil
	}

	err := fmt.Errorf("OCR not available: no OCR engine is installed")
	e = xerr.NewError(err, "resolve OCR engine", requested)
	return resolution, e
}

// Alternate returns the other canonical engine, used for the single
// runtime-failure retry hop. The router never loops further than this.
func Alternate(name EngineName) EngineName {
	if name == EngineTesseract {
		return EnginePaddle
	}
	return EngineTesseract
}

// IsAlias reports whether the name belongs to the known alias set (as
// opposed to being canonical or entirely unknown).
func IsAlias(name string) bool {
	return engineAliases[strings.ToLower(strings.TrimSpace(name))]
}
