package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRoboflowBaseURL = "https://detect.roboflow.com"
	defaultRoboflowOverlap = 30
	maxErrorBodyBytes      = 512
)

// RoboflowConfig configures the hosted Roboflow inference endpoint.
type RoboflowConfig struct {
	APIKey            string
	Project           string
	Version           int
	Overlap           int
	BaseURL           string
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// RoboflowClient calls a hosted Roboflow object-detection model.
type RoboflowClient struct {
	cfg        RoboflowConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewRoboflowClient validates cfg and creates a client.
func NewRoboflowClient(cfg RoboflowConfig) (*RoboflowClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("roboflow api key is required")
	}
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, fmt.Errorf("roboflow project is required")
	}
	if cfg.Version <= 0 {
		cfg.Version = 1
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = defaultRoboflowOverlap
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultRoboflowBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &RoboflowClient{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

// Name identifies the backend in logs and metrics.
func (c *RoboflowClient) Name() string {
	return "roboflow"
}

type roboflowResponse struct {
	Predictions []roboflowPrediction `json:"predictions"`
}

type roboflowPrediction struct {
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Confidence float64     `json:"confidence"`
	ClassName  interface{} `json:"class_name"`
	Class      interface{} `json:"class"`
	Label      interface{} `json:"label"`
}

// Detect posts the base64-encoded image and returns the raw predictions.
func (c *RoboflowClient) Detect(ctx context.Context, image []byte, threshold float64) ([]Prediction, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("roboflow rate limit: %w", err)
	}

	endpoint := c.endpoint(threshold)
	body := base64.StdEncoding.EncodeToString(image)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("create roboflow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roboflow request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("roboflow returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed roboflowResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode roboflow response: %w", err)
	}

	predictions := make([]Prediction, 0, len(parsed.Predictions))
	for _, p := range parsed.Predictions {
		predictions = append(predictions, Prediction{
			ClassLabel: firstLabel(p.ClassName, p.Class, p.Label),
			Confidence: p.Confidence,
			X:          p.X,
			Y:          p.Y,
			Width:      p.Width,
			Height:     p.Height,
		})
	}
	return predictions, nil
}

func (c *RoboflowClient) endpoint(threshold float64) string {
	q := url.Values{}
	q.Set("api_key", c.cfg.APIKey)
	q.Set("confidence", strconv.Itoa(int(math.Round(threshold*100))))
	q.Set("overlap", strconv.Itoa(c.cfg.Overlap))
	return fmt.Sprintf("%s/%s/%d?%s", c.cfg.BaseURL, url.PathEscape(c.cfg.Project), c.cfg.Version, q.Encode())
}

// firstLabel returns the first non-empty candidate, stringifying numeric class ids.
func firstLabel(candidates ...interface{}) string {
	for _, c := range candidates {
		switch v := c.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return DefaultDefectType
}

var _ Detector = (*RoboflowClient)(nil)
