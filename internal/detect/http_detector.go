package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"time"
)

// HTTPDetector talks to an object-detection model service over HTTP.
// The service accepts a JPEG frame as multipart form data and returns
// detected objects as JSON.
type HTTPDetector struct {
	endpoint   string
	client     *http.Client
	mu         sync.RWMutex
	healthy    bool
	lastHealth time.Time
}

// HTTPDetectorConfig holds configuration for the detection service client.
type HTTPDetectorConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// detectResponse is the wire format of the model service.
type detectResponse struct {
	Objects         []Object `json:"objects"`
	Count           int      `json:"count"`
	InferenceTimeMs float64  `json:"inference_time_ms"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewHTTPDetector creates a new detection service client.
func NewHTTPDetector(config HTTPDetectorConfig) *HTTPDetector {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPDetector{
		endpoint: config.Endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsHealthy returns whether the service passed its last health check.
func (d *HTTPDetector) IsHealthy() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.healthy
}

// CheckHealth checks if the detection service is available.
func (d *HTTPDetector) CheckHealth() error {
	url := fmt.Sprintf("%s/health", d.endpoint)
	resp, err := d.client.Get(url)
	if err != nil {
		d.setHealthy(false)
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.setHealthy(false)
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		d.setHealthy(false)
		return fmt.Errorf("failed to decode health response: %w", err)
	}

	ok := health.Status == "healthy" && health.ModelLoaded
	d.setHealthy(ok)
	if !ok {
		return fmt.Errorf("service unhealthy: status=%s, model_loaded=%v", health.Status, health.ModelLoaded)
	}
	return nil
}

func (d *HTTPDetector) setHealthy(healthy bool) {
	d.mu.Lock()
	d.healthy = healthy
	d.lastHealth = time.Now()
	d.mu.Unlock()
}

// Detect sends a frame to the model service and returns all detected objects.
func (d *HTTPDetector) Detect(ctx context.Context, frame image.Image) ([]Object, error) {
	var imgBuf bytes.Buffer
	if err := jpeg.Encode(&imgBuf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	body, err := d.sendImageRequest(ctx, fmt.Sprintf("%s/detect", d.endpoint), imgBuf.Bytes())
	if err != nil {
		return nil, err
	}

	var result detectResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode detect response: %w", err)
	}

	return result.Objects, nil
}

// sendImageRequest posts a JPEG image to a model service endpoint.
func (d *HTTPDetector) sendImageRequest(ctx context.Context, url string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Ensure HTTPDetector implements Detector
var _ Detector = (*HTTPDetector)(nil)
