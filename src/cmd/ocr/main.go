package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"bookreader-ocr/src/pkg/config"
	"bookreader-ocr/src/pkg/ocr"
	"bookreader-ocr/src/pkg/util"
)

/*
main runs one extraction from the command line and prints the result as
pretty JSON on stdout, for poking at pages and preprocessing profiles
without standing up the server.
*/
func main() {
	config.CheckIfEnvVarsPresent()

	// Common flags.
	configPath := flag.String("config", "./cfg/config.json", "Path to your configuration file.")

	// Program-specific flags.
	imagePath := flag.String("image", "", "Path to the page image to process.")
	regionFlag := flag.String("region", "", "Optional sub-rectangle as 'x,y,width,height'.")
	language := flag.String("language", "", "OCR language code. eng, jpn, jpn_vert etc. \"tesseract --list-langs\"")
	engine := flag.String("engine", string(ocr.EnginePaddle), "Requested OCR engine (tesseract, paddleocr, or an alias).")
	profile := flag.String("profile", string(ocr.ProfileDefault), "Preprocessing profile (none, minimal, default, adaptive, high_contrast, low_contrast, denoised).")
	layout := flag.String("psm", string(ocr.LayoutSparse), "Layout hint (sparse, dense, auto, vertical).")

	// Parse and initialize config.
	flag.Parse()
	util.RequiredFlag(imagePath, "image")
	util.EnsureFlags()
	config.InitializeConfig(*configPath)

	if *language == "" {
		*language = config.Cfg.DefaultLanguage
	}

	paddleConfig := ocr.PaddleConfig{
		PythonPath: config.Cfg.PaddlePythonPath,
		ScriptDir:  config.Cfg.PaddleScriptDir,
		ServerURL:  config.Cfg.PaddleServerURL,
	}

	registry := ocr.NewRegistry(ocr.DefaultFactory(paddleConfig))
	defer registry.Close()

	service := ocr.NewService(
		registry,
		ocr.ProbeAvailability(paddleConfig),
		ocr.NewPool(1),
		ocr.LogObserver{},
	)

	request := ocr.Request{
		ImagePath: *imagePath,
		Language:  *language,
		Profile:   ocr.ProfileName(*profile),
		Layout:    ocr.LayoutMode(*layout),
		Engine:    *engine,
	}

	if *regionFlag != "" {
		region, e := parseRegionFlag(*regionFlag)
		e.QuitIf("error")
		request.Region = region
	}

	tl.Log(
		tl.Notice, palette.BlueBold, "%s '%s' (engine '%s', profile '%s')",
		"Extracting text regions from", *imagePath, *engine, *profile,
	)

	result, e := service.Extract(request)
	e.QuitIf("error")

	jsonBytes, marshalErr := json.MarshalIndent(result, "", "  ")
	xerr.QuitIfError(marshalErr, "Unable to marshal extraction result")
	fmt.Println(string(jsonBytes))

	tl.Log(
		tl.Notice1, palette.GreenBold, "Extraction completed: '%d' regions via '%s'",
		len(result.Regions), string(result.EngineUsed),
	)
}

// parseRegionFlag parses 'x,y,width,height' into a rectangle.
func parseRegionFlag(value string) (region *ocr.BBox, e *xerr.Error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		err := fmt.Errorf("expected 'x,y,width,height', got '%s'", value)
		e = xerr.NewError(err, "parse -region flag", value)
		return
	}

	numbers := make([]int, 4)
	for i, part := range parts {
		n, convErr := strconv.Atoi(strings.TrimSpace(part))
		if convErr != nil {
			e = xerr.NewError(convErr, "parse -region flag component", part)
			return
		}
		numbers[i] = n
	}

	return &ocr.BBox{X: numbers[0], Y: numbers[1], Width: numbers[2], Height: numbers[3]}, nil
}
