package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Identity
	EmbedderURL        string        `envconfig:"EMBEDDER_URL" default:"http://localhost:5005"`
	EmbedderModel      string        `envconfig:"EMBEDDER_MODEL" default:"Facenet512"`
	EmbedderDetector   string        `envconfig:"EMBEDDER_DETECTOR" default:"retinaface"`
	FaceMatchThreshold float64       `envconfig:"FACE_MATCH_THRESHOLD" default:"0.6"`
	IdentityTimeout    time.Duration `envconfig:"IDENTITY_TIMEOUT" default:"10s"`

	// Liveness
	LivenessEnabled   bool    `envconfig:"LIVENESS_ENABLED" default:"true"`
	LivenessThreshold float64 `envconfig:"LIVENESS_THRESHOLD" default:"0.5"`
	LivenessMinFrames int     `envconfig:"LIVENESS_MIN_FRAMES" default:"3"`
	LivenessMaxFrames int     `envconfig:"LIVENESS_MAX_FRAMES" default:"5"`

	// Frame quality
	QualityMinWidth      int     `envconfig:"QUALITY_MIN_WIDTH" default:"640"`
	QualityMinHeight     int     `envconfig:"QUALITY_MIN_HEIGHT" default:"480"`
	QualityBrightnessMin float64 `envconfig:"QUALITY_BRIGHTNESS_MIN" default:"40"`
	QualityBrightnessMax float64 `envconfig:"QUALITY_BRIGHTNESS_MAX" default:"220"`
	QualityMinSharpness  float64 `envconfig:"QUALITY_MIN_SHARPNESS" default:"100"`

	// Geofencing
	GeoValidationEnabled bool `envconfig:"GEO_VALIDATION_ENABLED" default:"true"`

	// Fraud detection
	MaxReasonableSpeedKmh         float64 `envconfig:"MAX_REASONABLE_SPEED_KMH" default:"80"`
	ImpossibleTravelWindowMinutes int     `envconfig:"IMPOSSIBLE_TRAVEL_WINDOW_MINUTES" default:"60"`
	LocationAnomalyLookbackDays   int     `envconfig:"LOCATION_ANOMALY_LOOKBACK_DAYS" default:"30"`
	ZScoreThreshold               float64 `envconfig:"ZSCORE_THRESHOLD" default:"3.0"`
	DeviceAnomalyLookbackDays     int     `envconfig:"DEVICE_ANOMALY_LOOKBACK_DAYS" default:"30"`
	DeviceCountThreshold          int     `envconfig:"DEVICE_COUNT_THRESHOLD" default:"3"`
	ConcurrentWindowMinutes       int     `envconfig:"CONCURRENT_WINDOW_MINUTES" default:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
