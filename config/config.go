package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the process-wide configuration, loaded once at startup from the
// environment (UPCOMARR_* variables) and passed into constructors explicitly.
type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8686"`

	TMDBAPIKey string `envconfig:"TMDB_API_KEY" required:"true"`
	Language   string `envconfig:"LANGUAGE" default:"en-US"`

	// Release-date selection policy: only provider entries matching both of
	// these qualify. Release type codes follow the TMDB enumeration
	// (1 premiere, 2 limited theatrical, 3 theatrical, 4 digital, 5 physical, 6 TV).
	ReleaseCountry string `envconfig:"RELEASE_COUNTRY" default:"US"`
	ReleaseType    int    `envconfig:"RELEASE_TYPE" default:"5"`

	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"168h"`

	StagingRoot      string `envconfig:"UPCOMING_DIR" default:"Upcoming Movies"`
	ReleaseStorePath string `envconfig:"MOVIES_FILE" default:"movies.json"`
	OverlayPath      string `envconfig:"OVERLAY_FILE" default:"kometa_config/upcoming_overlays.yml"`
	FramePath        string `envconfig:"FRAME_PATH" default:"kometa_config/overlays/red_frame.png"`

	LogFile string `envconfig:"LOG_FILE"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("upcomarr", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.SweepInterval < time.Minute {
		return Config{}, fmt.Errorf("load config: sweep interval %s is below the 1m minimum", cfg.SweepInterval)
	}
	return cfg, nil
}
