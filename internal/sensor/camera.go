package sensor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"
)

const maxSnapshotBytes = 8 << 20

var _ FrameSource = (*HTTPCamera)(nil)

// HTTPCamera fetches still frames from a camera's snapshot endpoint, such as
// the /shot.jpg URL exposed by most IP and phone webcams.
type HTTPCamera struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

// CameraOption configures an HTTPCamera.
type CameraOption func(*HTTPCamera)

// WithCameraHTTPClient replaces the HTTP client.
func WithCameraHTTPClient(c *http.Client) CameraOption {
	return func(h *HTTPCamera) { h.httpClient = c }
}

// WithCameraClock overrides the timestamp source for frames.
func WithCameraClock(now func() time.Time) CameraOption {
	return func(h *HTTPCamera) { h.now = now }
}

// NewHTTPCamera returns a camera that polls url for JPEG or PNG snapshots.
func NewHTTPCamera(url string, opts ...CameraOption) (*HTTPCamera, error) {
	if url == "" {
		return nil, errors.New("sensor: camera snapshot url must not be empty")
	}
	c := &HTTPCamera{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Snapshot implements FrameSource.
func (c *HTTPCamera) Snapshot(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("sensor: snapshot request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("sensor: snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return Frame{}, ErrNoFrame
	case resp.StatusCode != http.StatusOK:
		return Frame{}, fmt.Errorf("sensor: snapshot: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return Frame{}, fmt.Errorf("sensor: read snapshot: %w", err)
	}
	if len(data) == 0 {
		return Frame{}, ErrNoFrame
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("sensor: decode snapshot: %w", err)
	}
	return Frame{At: c.now(), JPEG: data, Image: img}, nil
}
