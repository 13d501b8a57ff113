// Package config loads the service's JSON configuration file and keeps the
// merged result available as a package-level Cfg.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

type Config struct {
	// WorkerPoolSize caps concurrent native OCR calls; 0 means NumCPU.
	WorkerPoolSize int `json:"worker_pool_size,omitempty"`

	// DefaultLanguage applies when a request carries no language code.
	DefaultLanguage string `json:"default_language,omitempty"`

	// PaddleOCR wiring; see ocr.PaddleConfig.
	PaddlePythonPath string `json:"paddle_python_path,omitempty"`
	PaddleScriptDir  string `json:"paddle_script_dir,omitempty"`
	PaddleServerURL  string `json:"paddle_server_url,omitempty"`

	// DebugDumpDir enables the image-dumping observer when non-empty.
	DebugDumpDir string `json:"debug_dump_dir,omitempty"`
}

func DefaultValueConfig() Config {
	return Config{
		WorkerPoolSize:  0,
		DefaultLanguage: "eng",
	}
}

// create config with default values before config gets initialized
var Cfg Config = DefaultValueConfig() // this one we use to access config values from anywhere

/*
InitializeConfig reads the JSON config file at the given path into Cfg,
filling any missing fields with defaults. A missing file is not an error:
the defaults simply stay in effect (and a Verbose log says so).
*/
func InitializeConfig(configPath string) {
	contents, readErr := os.ReadFile(configPath)
	if readErr != nil {
		tl.Log(
			tl.Info, palette.Purple, "Config file '%s' %s, keeping %s",
			configPath, "not readable", "default configuration",
		)
		return
	}

	if err := json.Unmarshal(contents, &Cfg); err != nil {
		tl.Log(tl.Error, palette.RedBold, "Unable to parse config file '%s': '%s'", configPath, err)
		os.Exit(1)
	}

	defaultConfig := DefaultValueConfig()
	tl.ApplyDefaults(&Cfg, defaultConfig, func(field string, defVal any) {
		tl.Log(
			tl.Info, palette.Purple,
			"%s field is %s in %s configuration. Using default value: %v",
			field, "missing", GetPackageName(), tl.PrettyForStderr(defVal),
		)
	})

	tl.Log(tl.Info, palette.Green, "%s config was %s from '%s'", GetPackageName(), "loaded", configPath)
	tl.LogJSON(tl.Verbose, palette.CyanDim, fmt.Sprintf("%s configuration", GetPackageName()), Cfg)
}

/*
CheckIfEnvVarsPresent logs every missing environment variable from the
given list and exits(1) if any were missing. Call it first thing in main so
a misconfigured deployment fails loudly instead of midway through a request.
*/
func CheckIfEnvVarsPresent(names ...string) {
	missing := false
	for _, name := range names {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			tl.Log(tl.Error, palette.RedBold, "Required environment variable '%s' is not set", name)
			missing = true
		}
	}
	if missing {
		os.Exit(1)
	}
}

// GetPackageName returns the package name of the caller, for use in log
// messages that identify whose configuration is being talked about.
func GetPackageName() string {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return "unknown"
	}

	// runtime gives "module/path/pkg.Func"; keep the path element before
	// the last dot-separated function name.
	full := runtime.FuncForPC(pc).Name()
	if slash := strings.LastIndex(full, "/"); slash >= 0 {
		full = full[slash+1:]
	}
	if dot := strings.Index(full, "."); dot >= 0 {
		return full[:dot]
	}
	return full
}
