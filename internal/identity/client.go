package identity

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// ClientConfig configures the HTTP embedding client.
type ClientConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Model    string
	Detector string

	// MinFaceSize is the minimum face width/height in pixels.
	MinFaceSize int
	// CenterTolerance is how far from the image center the face may sit,
	// as a fraction of each dimension.
	CenterTolerance float64
}

// DefaultClientConfig returns sensible defaults for a deepface-compatible
// embedding service.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:         "http://localhost:5005",
		Timeout:         30 * time.Second,
		Model:           "Facenet512",
		Detector:        "retinaface",
		MinFaceSize:     100,
		CenterTolerance: 0.3,
	}
}

// Client extracts face embeddings from frames through an external
// deepface-compatible HTTP service, validating the detected face geometry
// before accepting the embedding. Retries are deliberately left to the
// calling infrastructure; a request is bounded by the context and the
// client timeout only.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

type representRequest struct {
	Img      string `json:"img"`
	Model    string `json:"model"`
	Detector string `json:"detector"`
}

type representResponse struct {
	Results []representResult `json:"results"`
}

type representResult struct {
	Embedding  []float64  `json:"embedding"`
	FacialArea facialArea `json:"facial_area"`
}

type facialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Embed implements Embedder. It fails with the matching domain error when
// the frame holds no face, several faces, a face too small, or a face too
// far off-center.
func (c *Client) Embed(ctx context.Context, frame string) ([]float64, error) {
	reqBody, err := json.Marshal(representRequest{
		Img:      frame,
		Model:    c.cfg.Model,
		Detector: c.cfg.Detector,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal represent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/represent", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create represent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read represent response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed representResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode represent response: %w", err)
	}

	if len(parsed.Results) == 0 {
		return nil, domain.ErrNoFaceDetected
	}
	if len(parsed.Results) > 1 {
		return nil, domain.ErrMultipleFaces.WithMessage(fmt.Sprintf(
			"Multiple faces detected (%d). Please ensure only one person is in frame", len(parsed.Results)))
	}

	result := parsed.Results[0]
	if err := c.validateFaceGeometry(frame, result.FacialArea); err != nil {
		return nil, err
	}

	if len(result.Embedding) == 0 {
		return nil, domain.ErrEncodingFailed
	}

	return result.Embedding, nil
}

// validateFaceGeometry enforces minimum face size and centering against the
// frame dimensions.
func (c *Client) validateFaceGeometry(frame string, area facialArea) error {
	if area.W < c.cfg.MinFaceSize || area.H < c.cfg.MinFaceSize {
		return domain.ErrFaceTooSmall.WithMessage(fmt.Sprintf(
			"Face too small: %dx%d (min %dx%d). Please move closer to the camera",
			area.W, area.H, c.cfg.MinFaceSize, c.cfg.MinFaceSize))
	}

	width, height, err := frameDimensions(frame)
	if err != nil {
		// Geometry check is best-effort; a frame that reached this point
		// already decoded upstream.
		return nil
	}

	faceCenterX := float64(area.X) + float64(area.W)/2
	faceCenterY := float64(area.Y) + float64(area.H)/2

	if math.Abs(faceCenterX-float64(width)/2) > c.cfg.CenterTolerance*float64(width) ||
		math.Abs(faceCenterY-float64(height)/2) > c.cfg.CenterTolerance*float64(height) {
		return domain.ErrFaceNotCentered
	}

	return nil
}

// frameDimensions reads just the image header of a base64 payload.
func frameDimensions(frame string) (width, height int, err error) {
	if i := strings.IndexByte(frame, ','); i >= 0 {
		frame = frame[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(frame))
	if err != nil {
		return 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
