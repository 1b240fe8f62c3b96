package liveness

import (
	"fmt"
	"strings"
)

// QualityConfig holds the image quality gates applied to every frame before
// liveness scoring.
type QualityConfig struct {
	MinWidth      int
	MinHeight     int
	BrightnessMin float64
	BrightnessMax float64
	MinSharpness  float64
}

// DefaultQualityConfig returns thresholds tuned for webcam capture.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		MinWidth:      640,
		MinHeight:     480,
		BrightnessMin: 40,  // avoid too dark
		BrightnessMax: 220, // avoid overexposed
		MinSharpness:  100, // Laplacian variance threshold
	}
}

// QualityReport is the result of validating one frame.
type QualityReport struct {
	IsValid        bool    `json:"is_valid"`
	ResolutionOK   bool    `json:"resolution_ok"`
	BrightnessOK   bool    `json:"brightness_ok"`
	SharpnessOK    bool    `json:"sharpness_ok"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	AvgBrightness  float64 `json:"avg_brightness"`
	SharpnessScore float64 `json:"sharpness_score"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// QualityValidator checks resolution, brightness and sharpness of decoded
// frames. A failing frame is never an error in the Go sense; the report says
// which checks failed and why.
type QualityValidator struct {
	cfg QualityConfig
}

func NewQualityValidator(cfg QualityConfig) *QualityValidator {
	return &QualityValidator{cfg: cfg}
}

// Validate runs all three quality checks on one frame.
func (v *QualityValidator) Validate(f *Frame) QualityReport {
	report := QualityReport{Width: f.Width, Height: f.Height}

	report.ResolutionOK = f.Width >= v.cfg.MinWidth && f.Height >= v.cfg.MinHeight

	lum := luminance(f)
	mean, _ := meanVariance(lum)
	report.AvgBrightness = mean
	report.BrightnessOK = mean >= v.cfg.BrightnessMin && mean <= v.cfg.BrightnessMax

	edges := findEdges(lum, f.Width, f.Height)
	_, edgeVar := meanVariance(edges)
	report.SharpnessScore = edgeVar
	report.SharpnessOK = edgeVar >= v.cfg.MinSharpness

	report.IsValid = report.ResolutionOK && report.BrightnessOK && report.SharpnessOK

	if !report.IsValid {
		var parts []string
		if !report.ResolutionOK {
			parts = append(parts, fmt.Sprintf("resolution too low: %dx%d (min %dx%d)",
				f.Width, f.Height, v.cfg.MinWidth, v.cfg.MinHeight))
		}
		if !report.BrightnessOK {
			parts = append(parts, fmt.Sprintf("brightness out of range: %.1f (range %.0f-%.0f)",
				mean, v.cfg.BrightnessMin, v.cfg.BrightnessMax))
		}
		if !report.SharpnessOK {
			parts = append(parts, fmt.Sprintf("image too blurry: %.1f (min %.0f)",
				edgeVar, v.cfg.MinSharpness))
		}
		report.ErrorMessage = strings.Join(parts, "; ")
	}

	return report
}
