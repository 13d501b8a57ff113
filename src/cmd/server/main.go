package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"bookreader-ocr/src/pkg/config"
	echomw "bookreader-ocr/src/pkg/echo-middleware"
	"bookreader-ocr/src/pkg/ocr"
	"bookreader-ocr/src/pkg/server"
)

/*
main starts the OCR extraction HTTP server.

It probes engine availability once, builds the engine registry and worker
pool, and serves the extraction API until the process is stopped. A machine
with no OCR engine installed still starts (health checks keep passing);
extraction requests then fail with a descriptive error.
*/
func main() {
	config.CheckIfEnvVarsPresent()

	// Common flags.
	configPath := flag.String("config", "./cfg/config.json", "Path to your configuration file.")

	// Program-specific flags.
	address := flag.String("address", "", "Listen address override (default from config).")
	port := flag.Int("port", 0, "Listen port override (default from config).")
	workers := flag.Int("workers", 0, "OCR worker pool size override (default from config, 0 = NumCPU).")

	flag.Parse()
	config.InitializeConfig(*configPath)
	echomw.InitializeConfig(loadMiddlewareConfig(*configPath))

	if *address != "" {
		echomw.Cfg.Address = *address
	}
	if *port != 0 {
		echomw.Cfg.Port = *port
	}
	poolSize := config.Cfg.WorkerPoolSize
	if *workers != 0 {
		poolSize = *workers
	}

	paddleConfig := ocr.PaddleConfig{
		PythonPath: config.Cfg.PaddlePythonPath,
		ScriptDir:  config.Cfg.PaddleScriptDir,
		ServerURL:  config.Cfg.PaddleServerURL,
	}

	avail := ocr.ProbeAvailability(paddleConfig)
	tl.Log(
		tl.Notice, palette.BlueBold, "Engine availability: tesseract='%v', paddleocr='%v'",
		avail.Tesseract, avail.Paddle,
	)
	if !avail.Any() {
		tl.Log(
			tl.Warning, palette.PurpleBold, "%s",
			"No OCR engine is installed; extraction requests will fail until one is",
		)
	}

	registry := ocr.NewRegistry(ocr.DefaultFactory(paddleConfig))
	defer registry.Close()

	pool := ocr.NewPool(poolSize)
	tl.Log(tl.Info1, palette.Cyan, "OCR worker pool size: '%d'", pool.Size())

	var observer ocr.Observer = ocr.LogObserver{}
	if config.Cfg.DebugDumpDir != "" {
		if err := os.MkdirAll(config.Cfg.DebugDumpDir, 0o755); err != nil {
			tl.Log(tl.Error, palette.RedBold, "Unable to create debug dump directory '%s': '%s'", config.Cfg.DebugDumpDir, err)
			os.Exit(1)
		}
		observer = &ocr.DumpObserver{Dir: config.Cfg.DebugDumpDir}
		tl.Log(tl.Info1, palette.Cyan, "Dumping debug images to '%s'", config.Cfg.DebugDumpDir)
	}

	service := ocr.NewService(registry, avail, pool, observer)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	echomw.UptdateRateLimits(echomw.Cfg.MiddlewareRateLimit, echomw.Cfg.MiddlewareBurst)
	e.Use(echomw.RouteAccessLoggerMiddleware)
	e.Use(echomw.RateLimiterMiddleware)

	handlers := &server.Handlers{
		Service:         service,
		DefaultLanguage: config.Cfg.DefaultLanguage,
	}

	// Bearer auth only when a token is configured.
	var apiMiddleware []echo.MiddlewareFunc
	if os.Getenv(echomw.EnvOcrBearerToken) != "" {
		apiMiddleware = append(apiMiddleware, echomw.RequireBearerToken)
		tl.Log(tl.Info1, palette.Cyan, "%s", "Bearer-token auth enabled for /api routes")
	}
	handlers.RegisterRoutes(e, apiMiddleware...)

	listenAddress := fmt.Sprintf("%s:%d", echomw.Cfg.Address, echomw.Cfg.Port)
	tl.Log(tl.Notice, palette.GreenBold, "Starting OCR server on '%s'", listenAddress)

	if err := e.Start(listenAddress); err != nil {
		tl.Log(tl.Error, palette.RedBold, "Server stopped: '%s'", err)
		os.Exit(1)
	}
}

/*
loadMiddlewareConfig reads the echo_middleware section out of the same
config file the rest of the service uses. A missing file or section means
defaults, which InitializeConfig handles with a nil input.
*/
func loadMiddlewareConfig(configPath string) *echomw.Config {
	contents, err := os.ReadFile(configPath)
	if err != nil {
		return nil
	}

	var wrapper struct {
		EchoMiddleware *echomw.Config `json:"echo_middleware,omitempty"`
	}
	if err := json.Unmarshal(contents, &wrapper); err != nil {
		tl.Log(tl.Warning, palette.Yellow, "Unable to parse echo_middleware section of '%s': '%s'", configPath, err)
		return nil
	}
	return wrapper.EchoMiddleware
}
