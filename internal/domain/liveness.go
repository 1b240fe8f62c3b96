package domain

// FrameQualitySummary is the per-frame quality digest attached to a
// liveness result, keyed "frame_0", "frame_1", ...
type FrameQualitySummary struct {
	IsValid    bool    `json:"is_valid"`
	Resolution string  `json:"resolution"`
	Brightness float64 `json:"brightness"`
	Sharpness  float64 `json:"sharpness"`
}

// LivenessResult is the outcome of multi-frame anti-spoofing analysis.
type LivenessResult struct {
	IsReal         bool      `json:"is_real"`
	AvgScore       float64   `json:"avg_score"`
	FrameScores    []float64 `json:"frame_scores"`
	BestFrameIndex int       `json:"best_frame_index"`

	// Confidence is how far the average sits from the decision threshold,
	// normalized to [0,1].
	Confidence float64 `json:"confidence"`

	QualityChecks map[string]FrameQualitySummary `json:"quality_checks,omitempty"`
	ErrorMessage  string                         `json:"error_message,omitempty"`
}
