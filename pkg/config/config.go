package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Thresholds the funnel was calibrated with.
const (
	DarkThreshold  = 30
	Threshold      = 26
	PixelThreshold = 0.76
	NDVILow        = -1
	NDVIHigh       = 0.1
	NDVIThreshold  = 32.2
	OtsuThreshold  = 40
)

// Raspberry Pi HQ camera, 5mm lens.
const (
	SensorWidthMM  = 6.2928
	SensorHeightMM = 4.712
	FocalLengthMM  = 4.735
)

const (
	CloudMethodThreshold = "threshold"
	CloudMethodOtsu      = "otsu"

	MissingRegionFail = "fail"
	MissingRegionSkip = "skip"

	GeometryPinhole   = "pinhole"
	GeometrySpherical = "spherical"
)

// NominalAltitudeM is the ISS altitude assumed when neither a TLE nor a
// lookup is configured.
const NominalAltitudeM = 420e3

type Config struct {
	OutDir           string
	LogFile          string
	LogLevel         string
	Workers          int
	MaxDimension     int
	KeepIntermediate bool
	CloudMethod      string

	DarkThreshold  float64
	CloudThreshold float64
	PixelThreshold float64
	OtsuThreshold  float64
	NDVILow        float64
	NDVIHigh       float64
	NDVIThreshold  float64

	// VCI aggregation; skipped when History is empty.
	History         []string
	MissingRegion   string
	ContrastStretch bool
	RegionPrefix    int

	ResultFile   string
	SnapshotFile string
	MetricsFile  string
	Catalog      string
	Archive      string

	// AltitudeTLE is a two or three line element file; it wins over the
	// lookup.
	AltitudeTLE     string
	AltitudeLookup  bool
	AltitudeURL     string
	AltitudeRetries int
	AltitudeTimeout time.Duration
	AltitudeNominal float64

	// Downlink announces survivors to a ground station; off when empty.
	DownlinkURL     string
	DownlinkRetries int
	DownlinkTimeout time.Duration

	SensorWidthMM  float64
	SensorHeightMM float64
	FocalLengthMM  float64
	GeometryModel  string
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("out_dir", "out")
	v.SetDefault("log_file", "filter.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("workers", 0)
	v.SetDefault("max_dimension", 0)
	v.SetDefault("keep_intermediate", false)
	v.SetDefault("cloud_method", CloudMethodThreshold)

	v.SetDefault("dark.threshold", DarkThreshold)
	v.SetDefault("cloud.threshold", Threshold)
	v.SetDefault("cloud.pixel_threshold", PixelThreshold)
	v.SetDefault("otsu.threshold", OtsuThreshold)
	v.SetDefault("ndvi.low", NDVILow)
	v.SetDefault("ndvi.high", NDVIHigh)
	v.SetDefault("ndvi.threshold", NDVIThreshold)

	v.SetDefault("vci.history", []string{})
	v.SetDefault("vci.missing_region", MissingRegionFail)
	v.SetDefault("vci.contrast_stretch", false)
	v.SetDefault("vci.region_prefix", -1)

	v.SetDefault("output.result", "result.txt")
	v.SetDefault("output.snapshot", "")
	v.SetDefault("output.metrics", "")
	v.SetDefault("output.catalog", "")
	v.SetDefault("output.archive", "")

	v.SetDefault("altitude.tle", "")
	v.SetDefault("altitude.lookup", false)
	v.SetDefault("altitude.url", "https://api.wheretheiss.at/v1/satellites/25544")
	v.SetDefault("altitude.retries", 3)
	v.SetDefault("altitude.timeout", "10s")
	v.SetDefault("altitude.nominal_m", NominalAltitudeM)

	v.SetDefault("downlink.url", "")
	v.SetDefault("downlink.retries", 3)
	v.SetDefault("downlink.timeout", "30s")

	v.SetDefault("camera.sensor_width_mm", SensorWidthMM)
	v.SetDefault("camera.sensor_height_mm", SensorHeightMM)
	v.SetDefault("camera.focal_length_mm", FocalLengthMM)
	v.SetDefault("geometry.model", GeometryPinhole)
}

// New builds a viper instance with defaults, an optional .env file, ORBIT_*
// environment variables and a config file. An empty cfgFile looks for
// ~/.orbit.yaml and carries on without it.
func New(cfgFile string) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not load .env: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("ORBIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config %s: %w", cfgFile, err)
		}
		return v, nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return v, nil
	}

	v.AddConfigPath(home)
	v.SetConfigName(".orbit")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	return v, nil
}

// Load reads the settings out of v and validates them.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		OutDir:           v.GetString("out_dir"),
		LogFile:          v.GetString("log_file"),
		LogLevel:         v.GetString("log_level"),
		Workers:          v.GetInt("workers"),
		MaxDimension:     v.GetInt("max_dimension"),
		KeepIntermediate: v.GetBool("keep_intermediate"),
		CloudMethod:      strings.ToLower(v.GetString("cloud_method")),

		DarkThreshold:  v.GetFloat64("dark.threshold"),
		CloudThreshold: v.GetFloat64("cloud.threshold"),
		PixelThreshold: v.GetFloat64("cloud.pixel_threshold"),
		OtsuThreshold:  v.GetFloat64("otsu.threshold"),
		NDVILow:        v.GetFloat64("ndvi.low"),
		NDVIHigh:       v.GetFloat64("ndvi.high"),
		NDVIThreshold:  v.GetFloat64("ndvi.threshold"),

		History:         v.GetStringSlice("vci.history"),
		MissingRegion:   strings.ToLower(v.GetString("vci.missing_region")),
		ContrastStretch: v.GetBool("vci.contrast_stretch"),
		RegionPrefix:    v.GetInt("vci.region_prefix"),

		ResultFile:   v.GetString("output.result"),
		SnapshotFile: v.GetString("output.snapshot"),
		MetricsFile:  v.GetString("output.metrics"),
		Catalog:      v.GetString("output.catalog"),
		Archive:      v.GetString("output.archive"),

		AltitudeTLE:     v.GetString("altitude.tle"),
		AltitudeLookup:  v.GetBool("altitude.lookup"),
		AltitudeURL:     v.GetString("altitude.url"),
		AltitudeRetries: v.GetInt("altitude.retries"),
		AltitudeTimeout: v.GetDuration("altitude.timeout"),
		AltitudeNominal: v.GetFloat64("altitude.nominal_m"),

		DownlinkURL:     v.GetString("downlink.url"),
		DownlinkRetries: v.GetInt("downlink.retries"),
		DownlinkTimeout: v.GetDuration("downlink.timeout"),

		SensorWidthMM:  v.GetFloat64("camera.sensor_width_mm"),
		SensorHeightMM: v.GetFloat64("camera.sensor_height_mm"),
		FocalLengthMM:  v.GetFloat64("camera.focal_length_mm"),
		GeometryModel:  strings.ToLower(v.GetString("geometry.model")),
	}

	if cfg.OutDir == "" {
		return nil, errors.New("out_dir is required")
	}
	if cfg.Workers < 0 {
		return nil, errors.New("workers must not be negative")
	}
	if cfg.MaxDimension < 0 {
		return nil, errors.New("max_dimension must not be negative")
	}
	if cfg.CloudMethod != CloudMethodThreshold && cfg.CloudMethod != CloudMethodOtsu {
		return nil, fmt.Errorf("invalid cloud_method %q", cfg.CloudMethod)
	}
	if cfg.PixelThreshold < 0 || cfg.PixelThreshold > 1 {
		return nil, fmt.Errorf("cloud.pixel_threshold must be within [0,1], got %v", cfg.PixelThreshold)
	}
	if cfg.NDVILow >= cfg.NDVIHigh {
		return nil, fmt.Errorf("ndvi.low (%v) must be below ndvi.high (%v)", cfg.NDVILow, cfg.NDVIHigh)
	}
	if cfg.MissingRegion != MissingRegionFail && cfg.MissingRegion != MissingRegionSkip {
		return nil, fmt.Errorf("invalid vci.missing_region %q", cfg.MissingRegion)
	}
	if cfg.AltitudeLookup && cfg.AltitudeTimeout <= 0 {
		return nil, errors.New("altitude.timeout must be positive")
	}
	if cfg.AltitudeNominal <= 0 {
		return nil, errors.New("altitude.nominal_m must be positive")
	}
	if cfg.DownlinkURL != "" && cfg.DownlinkTimeout <= 0 {
		return nil, errors.New("downlink.timeout must be positive")
	}
	if cfg.FocalLengthMM <= 0 {
		return nil, errors.New("camera.focal_length_mm must be positive")
	}
	if cfg.GeometryModel != GeometryPinhole && cfg.GeometryModel != GeometrySpherical {
		return nil, fmt.Errorf("invalid geometry.model %q", cfg.GeometryModel)
	}

	return cfg, nil
}
