package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// RemoteOption configures a remote detector client.
type RemoteOption func(*remote)

// WithRemoteHTTPClient replaces the HTTP client.
func WithRemoteHTTPClient(c *http.Client) RemoteOption {
	return func(r *remote) { r.httpClient = c }
}

// WithRemoteAPIKey sends key as a bearer token.
func WithRemoteAPIKey(key string) RemoteOption {
	return func(r *remote) { r.apiKey = key }
}

// WithMinConfidence drops results scored below c.
func WithMinConfidence(c float64) RemoteOption {
	return func(r *remote) { r.minConfidence = c }
}

// remote posts a frame as image/jpeg to an inference endpoint and decodes the
// JSON answer.
type remote struct {
	endpoint      string
	apiKey        string
	minConfidence float64
	httpClient    *http.Client
}

func newRemote(endpoint string, opts []RemoteOption) (*remote, error) {
	if endpoint == "" {
		return nil, errors.New("endpoint must not be empty")
	}
	r := &remote{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

func (r *remote) post(ctx context.Context, path string, frame Frame, out any) error {
	body := frame.JPEG
	if len(body) == 0 {
		if frame.Image == nil {
			return ErrNoFrame
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("encode frame: %w", err)
		}
		body = buf.Bytes()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ FaceRecognizer = (*RemoteFaces)(nil)

// RemoteFaces is a FaceRecognizer backed by an HTTP face recognition
// service. The service answers POST {endpoint}/recognize with
//
//	{"faces": [{"name": "nuba", "confidence": 0.93}]}
//
// where an empty or "Unknown" name marks an unrecognized face.
type RemoteFaces struct {
	r *remote
}

// NewRemoteFaces returns a client for the service at endpoint.
func NewRemoteFaces(endpoint string, opts ...RemoteOption) (*RemoteFaces, error) {
	r, err := newRemote(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("sensor: faces: %w", err)
	}
	return &RemoteFaces{r: r}, nil
}

// Recognize implements FaceRecognizer.
func (f *RemoteFaces) Recognize(ctx context.Context, frame Frame) ([]types.FaceEvent, error) {
	var resp struct {
		Faces []struct {
			Name       string  `json:"name"`
			Confidence float64 `json:"confidence"`
		} `json:"faces"`
	}
	if err := f.r.post(ctx, "/recognize", frame, &resp); err != nil {
		return nil, fmt.Errorf("sensor: faces: %w", err)
	}

	events := make([]types.FaceEvent, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		id := strings.ToLower(strings.TrimSpace(face.Name))
		if id == "" || strings.EqualFold(id, types.UnknownIdentity) ||
			(face.Confidence > 0 && face.Confidence < f.r.minConfidence) {
			id = types.UnknownIdentity
		}
		events = append(events, types.FaceEvent{At: frame.At, Identity: id})
	}
	return events, nil
}

var _ ObjectDetector = (*RemoteObjects)(nil)

// RemoteObjects is an ObjectDetector backed by an HTTP detection service.
// The service answers POST {endpoint}/detect with
//
//	{"detections": [{"label": "teddy bear", "confidence": 0.71}]}
type RemoteObjects struct {
	r *remote
}

// NewRemoteObjects returns a client for the service at endpoint. Results
// below 0.5 confidence are dropped unless [WithMinConfidence] says otherwise.
func NewRemoteObjects(endpoint string, opts ...RemoteOption) (*RemoteObjects, error) {
	opts = append([]RemoteOption{WithMinConfidence(0.5)}, opts...)
	r, err := newRemote(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("sensor: objects: %w", err)
	}
	return &RemoteObjects{r: r}, nil
}

// DetectObjects implements ObjectDetector.
func (o *RemoteObjects) DetectObjects(ctx context.Context, frame Frame) ([]types.Detection, error) {
	var resp struct {
		Detections []types.Detection `json:"detections"`
	}
	if err := o.r.post(ctx, "/detect", frame, &resp); err != nil {
		return nil, fmt.Errorf("sensor: objects: %w", err)
	}
	out := resp.Detections[:0]
	for _, d := range resp.Detections {
		if d.Label != "" && d.Confidence >= o.r.minConfidence {
			out = append(out, d)
		}
	}
	return out, nil
}
