package liveness

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Empirical normalization constants for the per-frame signals. Derived from
// typical value ranges of the edge/color variances on webcam captures.
const (
	textureNorm      = 2000.0
	colorNorm        = 5000.0
	edgeVarianceNorm = 1000.0
	edgeThreshold    = 50
)

// Signal weights. Texture carries the most anti-spoofing information.
const (
	textureWeight = 0.5
	colorWeight   = 0.3
	edgeWeight    = 0.2
)

// Config controls the multi-frame liveness decision.
type Config struct {
	// Enabled=false bypasses scoring entirely and returns a neutral pass.
	// Escape hatch for deployments without adequate capture hardware.
	Enabled   bool
	Threshold float64
	MinFrames int
	MaxFrames int
	Quality   QualityConfig
}

func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Threshold: 0.5,
		MinFrames: 3,
		MaxFrames: 5,
		Quality:   DefaultQualityConfig(),
	}
}

// Scorer decides, from 3-5 frames captured moments apart, whether the
// capture shows a live person rather than a printed photo or screen replay.
//
// Detection combines three texture heuristics per frame:
//  1. Texture: real skin has high-frequency micro-texture; prints flatten it.
//  2. Color distribution: screens produce abnormal channel variance.
//  3. Edge patterns: flat media produce uniform edges, 3D faces do not.
type Scorer struct {
	cfg     Config
	quality *QualityValidator
}

func NewScorer(cfg Config) *Scorer {
	return &Scorer{
		cfg:     cfg,
		quality: NewQualityValidator(cfg.Quality),
	}
}

// Verify runs the full multi-frame analysis over base64-encoded frames.
//
// Any frame failing a quality gate fails the whole attempt with that frame's
// error. Fewer than MinFrames is an input error; frames beyond MaxFrames are
// truncated. Scoring is data-parallel per frame with a sequential reduction,
// so the first failing frame (in input order) always wins.
func (s *Scorer) Verify(ctx context.Context, frames []string) (*domain.LivenessResult, error) {
	if !s.cfg.Enabled {
		return &domain.LivenessResult{
			IsReal:         true,
			AvgScore:       0.5,
			BestFrameIndex: 0,
		}, nil
	}

	if len(frames) < s.cfg.MinFrames {
		return nil, domain.ErrInsufficientFrames.WithMessage(fmt.Sprintf(
			"Need at least %d frames for liveness detection, got %d", s.cfg.MinFrames, len(frames)))
	}
	if len(frames) > s.cfg.MaxFrames {
		frames = frames[:s.cfg.MaxFrames]
	}

	scores := make([]float64, len(frames))
	reports := make([]QualityReport, len(frames))
	decodeErrs := make([]error, len(frames))

	g, ctx := errgroup.WithContext(ctx)
	for i, encoded := range frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			frame, err := DecodeFrame(encoded)
			if err != nil {
				decodeErrs[i] = err
				return nil
			}
			reports[i] = s.quality.Validate(frame)
			if reports[i].IsValid {
				scores[i] = s.scoreFrame(frame)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	quality := make(map[string]domain.FrameQualitySummary, len(frames))
	for i := range frames {
		if decodeErrs[i] != nil {
			return nil, domain.ErrInvalidImage.
				WithMessage(fmt.Sprintf("Frame %d could not be decoded", i)).
				WithError(decodeErrs[i])
		}

		quality[fmt.Sprintf("frame_%d", i)] = domain.FrameQualitySummary{
			IsValid:    reports[i].IsValid,
			Resolution: fmt.Sprintf("%dx%d", reports[i].Width, reports[i].Height),
			Brightness: reports[i].AvgBrightness,
			Sharpness:  reports[i].SharpnessScore,
		}

		if !reports[i].IsValid {
			return &domain.LivenessResult{
				IsReal:         false,
				BestFrameIndex: -1,
				QualityChecks:  quality,
				ErrorMessage:   fmt.Sprintf("Frame %d quality check failed: %s", i, reports[i].ErrorMessage),
			}, nil
		}
	}

	var sum float64
	best := 0
	for i, score := range scores {
		sum += score
		if score > scores[best] {
			best = i
		}
	}
	avg := sum / float64(len(scores))

	confidence := math.Abs(avg-s.cfg.Threshold) / s.cfg.Threshold
	if confidence > 1 {
		confidence = 1
	}

	return &domain.LivenessResult{
		IsReal:         avg >= s.cfg.Threshold,
		AvgScore:       avg,
		FrameScores:    scores,
		BestFrameIndex: best,
		Confidence:     confidence,
		QualityChecks:  quality,
	}, nil
}

// scoreFrame combines the three signals for a single frame into [0,1].
func (s *Scorer) scoreFrame(f *Frame) float64 {
	lum := luminance(f)
	edges := findEdges(lum, f.Width, f.Height)

	return textureWeight*textureScore(edges) +
		colorWeight*colorScore(f) +
		edgeWeight*edgePatternScore(edges)
}

// textureScore measures micro-texture complexity as the variance of the
// edge-filtered luminance, normalized against textureNorm.
func textureScore(edges []uint8) float64 {
	_, variance := meanVariance(edges)
	return clamp01(variance / textureNorm)
}

// colorScore measures how natural the per-channel color variance looks.
func colorScore(f *Frame) float64 {
	avg := (channelVariance(f, 0) + channelVariance(f, 1) + channelVariance(f, 2)) / 3.0
	return clamp01(avg / colorNorm)
}

// edgePatternScore combines edge-pixel density and edge variance. Real 3D
// faces yield irregular edges; flat reproductions yield uniform ones.
func edgePatternScore(edges []uint8) float64 {
	if len(edges) == 0 {
		return 0
	}

	strong := 0
	for _, v := range edges {
		if v > edgeThreshold {
			strong++
		}
	}
	density := float64(strong) / float64(len(edges))

	_, variance := meanVariance(edges)

	return clamp01((density*5 + variance/edgeVarianceNorm) / 2.0)
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
