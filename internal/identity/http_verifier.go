package identity

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

// HTTPVerifier talks to a face-verification model service over HTTP.
// The service accepts a probe and a reference image as multipart form data
// and returns a match verdict with a distance score.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
	mu       sync.RWMutex
	healthy  bool
}

// HTTPVerifierConfig holds configuration for the verification service client.
type HTTPVerifierConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// NewHTTPVerifier creates a new verification service client.
func NewHTTPVerifier(config HTTPVerifierConfig) *HTTPVerifier {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPVerifier{
		endpoint: config.Endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsHealthy returns whether the service passed its last health check.
func (v *HTTPVerifier) IsHealthy() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.healthy
}

// CheckHealth checks if the verification service is available.
func (v *HTTPVerifier) CheckHealth() error {
	resp, err := v.client.Get(fmt.Sprintf("%s/health", v.endpoint))
	if err != nil {
		v.setHealthy(false)
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.setHealthy(false)
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	v.setHealthy(true)
	return nil
}

func (v *HTTPVerifier) setHealthy(healthy bool) {
	v.mu.Lock()
	v.healthy = healthy
	v.mu.Unlock()
}

// Verify posts the probe and reference images to the model service.
func (v *HTTPVerifier) Verify(ctx context.Context, probe, reference image.Image) (Verification, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writeImagePart(writer, "probe", probe); err != nil {
		return Verification{}, err
	}
	if err := writeImagePart(writer, "reference", reference); err != nil {
		return Verification{}, err
	}
	if err := writer.Close(); err != nil {
		return Verification{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := fmt.Sprintf("%s/verify", v.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return Verification{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := v.client.Do(req)
	if err != nil {
		return Verification{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Verification{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Verification{}, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result Verification
	if err := json.Unmarshal(body, &result); err != nil {
		return Verification{}, fmt.Errorf("failed to decode verify response: %w", err)
	}
	return result, nil
}

func writeImagePart(writer *multipart.Writer, field string, img image.Image) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="%s.jpg"`, field, field))
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("failed to encode %s image: %w", field, err)
	}
	return nil
}

// Ensure HTTPVerifier implements Verifier
var _ Verifier = (*HTTPVerifier)(nil)
