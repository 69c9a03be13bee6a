// Package config loads settings from an optional YAML file and the
// environment using Viper. Environment variables use the PANACEA_ prefix
// with dots replaced by underscores (screening.horizon becomes
// PANACEA_SCREENING_HORIZON). Space-Track credentials are read from
// SPACETRACK_USER and SPACETRACK_PASS.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Screening ScreeningConfig `mapstructure:"screening"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Crossref  CrossrefConfig  `mapstructure:"crossref"`
	Classify  ClassifyConfig  `mapstructure:"classify"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Output    OutputConfig    `mapstructure:"output"`
}

// ScreeningConfig controls the counterfactual screening core.
type ScreeningConfig struct {
	CollisionThresholdKm float64       `mapstructure:"collision_threshold_km"`
	AltitudeBandKm       float64       `mapstructure:"altitude_band_km"`
	RAANBandDeg          float64       `mapstructure:"raan_band_deg"`
	Horizon              time.Duration `mapstructure:"horizon"`
	Cadence              time.Duration `mapstructure:"cadence"`
	Workers              int           `mapstructure:"workers"`
	Concurrency          int           `mapstructure:"concurrency"`
	Model                string        `mapstructure:"model"`
}

// CatalogConfig locates the orbital catalog. Path wins over SourceURL.
type CatalogConfig struct {
	SourceURL string   `mapstructure:"source_url"`
	ExtraURLs []string `mapstructure:"extra_urls"`
	Path      string   `mapstructure:"path"`
}

// CrossrefConfig controls Space-Track CDM lookups. Lookups are disabled
// unless both credentials are set.
type CrossrefConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	Lookback   time.Duration `mapstructure:"lookback"`
	MinPc      float64       `mapstructure:"min_pc"`
	BatchSize  int           `mapstructure:"batch_size"`
	Pacing     time.Duration `mapstructure:"pacing"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	CacheDir   string        `mapstructure:"cache_dir"`
	CacheFiles int           `mapstructure:"cache_files"`
}

// Enabled reports whether credentials are present.
func (c CrossrefConfig) Enabled() bool {
	return c.User != "" && c.Password != ""
}

// ClassifyConfig points at an optional constellation rules file.
type ClassifyConfig struct {
	RulesPath string `mapstructure:"rules_path"`
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AuthToken       string        `mapstructure:"auth_token"`
	MaxPairs        int           `mapstructure:"max_pairs"`
	MaxPerIP        int           `mapstructure:"max_concurrent_per_ip"`
	TrustProxy      bool          `mapstructure:"trust_proxy"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CatalogRefresh  time.Duration `mapstructure:"catalog_refresh"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig selects result sinks.
type OutputConfig struct {
	JSONLPath        string `mapstructure:"jsonl_path"`
	Pretty           bool   `mapstructure:"pretty"`
	GreptimeEndpoint string `mapstructure:"greptime_endpoint"`
	GreptimeDatabase string `mapstructure:"greptime_database"`
	GreptimeTable    string `mapstructure:"greptime_table"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("screening.collision_threshold_km", 1.0)
	v.SetDefault("screening.altitude_band_km", 50.0)
	v.SetDefault("screening.raan_band_deg", 30.0)
	v.SetDefault("screening.horizon", "24h")
	v.SetDefault("screening.cadence", "10m")
	v.SetDefault("screening.workers", runtime.NumCPU())
	v.SetDefault("screening.concurrency", 4)
	v.SetDefault("screening.model", "sgp4")

	v.SetDefault("catalog.source_url", "https://celestrak.org/NORAD/elements/gp.php?GROUP=active&FORMAT=json")
	v.SetDefault("catalog.extra_urls", []string{})
	v.SetDefault("catalog.path", "")

	v.SetDefault("crossref.base_url", "https://www.space-track.org")
	v.SetDefault("crossref.user", "")
	v.SetDefault("crossref.password", "")
	v.SetDefault("crossref.lookback", "168h")
	v.SetDefault("crossref.min_pc", 1e-7)
	v.SetDefault("crossref.batch_size", 100)
	v.SetDefault("crossref.pacing", "2s")
	v.SetDefault("crossref.cache_ttl", "168h")
	v.SetDefault("crossref.cache_dir", "")
	v.SetDefault("crossref.cache_files", 5)

	v.SetDefault("classify.rules_path", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.max_pairs", 2_000_000)
	v.SetDefault("server.max_concurrent_per_ip", 4)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.catalog_refresh", "0s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("output.jsonl_path", "")
	v.SetDefault("output.pretty", false)
	v.SetDefault("output.greptime_endpoint", "")
	v.SetDefault("output.greptime_database", "public")
	v.SetDefault("output.greptime_table", "counterfactual_screenings")
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PANACEA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("crossref.user", "SPACETRACK_USER")
	_ = v.BindEnv("crossref.password", "SPACETRACK_PASS")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the screening core cannot run with.
func (c *Config) Validate() error {
	s := c.Screening
	var errs []error
	if s.CollisionThresholdKm <= 0 {
		errs = append(errs, errors.New("screening.collision_threshold_km must be positive"))
	}
	if s.AltitudeBandKm <= 0 {
		errs = append(errs, errors.New("screening.altitude_band_km must be positive"))
	}
	if s.RAANBandDeg <= 0 {
		errs = append(errs, errors.New("screening.raan_band_deg must be positive"))
	}
	if s.Horizon <= 0 {
		errs = append(errs, errors.New("screening.horizon must be positive"))
	}
	if s.Cadence <= 0 {
		errs = append(errs, errors.New("screening.cadence must be positive"))
	} else if s.Cadence > s.Horizon {
		errs = append(errs, errors.New("screening.cadence must not exceed screening.horizon"))
	} else if s.Cadence%time.Second != 0 {
		errs = append(errs, fmt.Errorf("screening.cadence %s must be a whole number of seconds", s.Cadence))
	}
	if s.Workers < 1 {
		errs = append(errs, errors.New("screening.workers must be at least 1"))
	}
	switch s.Model {
	case "sgp4", "kepler":
	default:
		errs = append(errs, fmt.Errorf("screening.model %q is not one of sgp4, kepler", s.Model))
	}
	if c.Crossref.BatchSize < 1 {
		errs = append(errs, errors.New("crossref.batch_size must be at least 1"))
	}
	if c.Crossref.MinPc < 0 || c.Crossref.MinPc > 1 {
		errs = append(errs, errors.New("crossref.min_pc must be within [0,1]"))
	}
	if c.Server.MaxPairs < 1 {
		errs = append(errs, errors.New("server.max_pairs must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
