/*
Package settings controls reading configuration from environment and assigning defaults
*/
package settings

import (
	"log" // cannot use zerolog as log options not initialised
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

var Settings *SGSettings
var Gate *SGGate

type SGGate struct {
	// Path to the YAML pipeline definition
	PipelineConfig string `koanf:"pipeline_config"`
	// Directory that evicted and closed sketches are written under
	DataDir string `koanf:"data_dir"`
}

type SGRun struct {
	// Where accepted records are written, empty for stdout
	OutputPath string `koanf:"output_path"`
	// Log a summary line every N records, 0 to disable
	ProgressEvery int64 `koanf:"progress_every"`
}

type SGSettings struct {
	// restapi server will listen for connections from this address
	ListenAddr string `koanf:"listen_addr"`
	// for custom log files, the folder to place these file in
	LogPath string `koanf:"log_path"`
	Gate    SGGate `koanf:"gate"`
	Run     SGRun  `koanf:"run"`
}

var defaults = SGSettings{
	ListenAddr: ":8141",
	LogPath:    "/tmp/logs/streamgate/",
	Gate: SGGate{
		PipelineConfig: "/etc/streamgate/pipeline.yaml",
		DataDir:        "/tmp/streamgate/sketches",
	},
	Run: SGRun{
		OutputPath:    "",
		ProgressEvery: 0,
	},
}

// ParseSettings layers environment variables over the defaults struct.
// Variables are prefixed SG_ and nest with a double underscore, e.g.
// SG_GATE__DATA_DIR overrides gate.data_dir.
func ParseSettings(def SGSettings, prefix string) *SGSettings {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(def, "koanf"), nil); err != nil {
		log.Fatalf("could not load default settings: %s", err.Error())
	}
	envProv := env.Provider(prefix+"_", ".", func(s string) string {
		s = strings.TrimPrefix(s, prefix+"_")
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProv, nil); err != nil {
		log.Fatalf("could not load settings from environment: %s", err.Error())
	}
	out := SGSettings{}
	err := k.UnmarshalWithConf("", &out, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			WeaklyTypedInput: true,
			Result:           &out,
		},
	})
	if err != nil {
		log.Fatalf("could not parse settings: %s", err.Error())
	}
	return &out
}

func setupLoggers(settings *SGSettings) {
	if _, err := os.Stat(settings.LogPath); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(settings.LogPath, 0770); err != nil {
				log.Fatalf("The log path '%s' could not be created with error: %s", settings.LogPath, err.Error())
			}
		} else {
			log.Fatalf("The log path '%s' exists but there is an error: %s", settings.LogPath, err.Error())
		}
	}
	createFileLoggers(settings.LogPath)
}

func ResetSettings() {
	Settings = ParseSettings(defaults, "SG")
	setupLoggers(Settings)
	Gate = &Settings.Gate
}
