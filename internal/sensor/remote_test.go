package sensor

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat(16, 16, 128), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRemoteFaces(t *testing.T) {
	var gotType, gotAuth string
	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recognize" {
			http.NotFound(w, r)
			return
		}
		gotType, gotAuth = r.Header.Get("Content-Type"), r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotLen = len(b)
		_, _ = io.WriteString(w, `{"faces":[{"name":"Nuba","confidence":0.9},{"name":"Unknown"},{"name":"dada","confidence":0.2}]}`)
	}))
	defer srv.Close()

	f, err := NewRemoteFaces(srv.URL+"/", WithRemoteAPIKey("k"), WithMinConfidence(0.4))
	if err != nil {
		t.Fatal(err)
	}
	at := time.Unix(5, 0)
	events, err := f.Recognize(context.Background(), Frame{At: at, JPEG: jpegBytes(t)})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	want := []string{"nuba", types.UnknownIdentity, types.UnknownIdentity}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.Identity != want[i] || !e.At.Equal(at) {
			t.Errorf("event %d = %+v, want identity %q", i, e, want[i])
		}
	}
	if gotType != "image/jpeg" || gotAuth != "Bearer k" || gotLen == 0 {
		t.Errorf("request: type=%q auth=%q len=%d", gotType, gotAuth, gotLen)
	}
}

func TestRemoteObjects_FiltersLowConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"detections":[{"label":"teddy bear","confidence":0.8},{"label":"cup","confidence":0.1}]}`)
	}))
	defer srv.Close()

	o, err := NewRemoteObjects(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	// No JPEG bytes: the decoded image is re-encoded.
	dets, err := o.DetectObjects(context.Background(), Frame{Image: flat(8, 8, 0)})
	if err != nil {
		t.Fatalf("DetectObjects: %v", err)
	}
	if got := Labels(dets); len(got) != 1 || got[0] != "teddy bear" {
		t.Errorf("labels = %v", got)
	}
}

func TestRemote_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, _ := NewRemoteFaces(srv.URL)
	if _, err := f.Recognize(context.Background(), Frame{JPEG: []byte{1}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRemote_NoFrame(t *testing.T) {
	f, _ := NewRemoteFaces("http://127.0.0.1:1")
	if _, err := f.Recognize(context.Background(), Frame{}); err == nil {
		t.Fatal("expected error for empty frame")
	}
}

func TestHTTPCamera(t *testing.T) {
	data := jpegBytes(t)
	var empty atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if empty.Load() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	at := time.Unix(42, 0)
	cam, err := NewHTTPCamera(srv.URL, WithCameraClock(func() time.Time { return at }))
	if err != nil {
		t.Fatal(err)
	}
	frame, err := cam.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if frame.Image.Bounds() != image.Rect(0, 0, 16, 16) || !frame.At.Equal(at) {
		t.Errorf("frame bounds=%v at=%v", frame.Image.Bounds(), frame.At)
	}

	empty.Store(true)
	if _, err := cam.Snapshot(context.Background()); err != ErrNoFrame {
		t.Errorf("err = %v, want ErrNoFrame", err)
	}
}

func TestLabels_Dedup(t *testing.T) {
	got := Labels([]types.Detection{{Label: "cup"}, {Label: ""}, {Label: "bed"}, {Label: "cup"}})
	if len(got) != 2 || got[0] != "cup" || got[1] != "bed" {
		t.Errorf("Labels = %v", got)
	}
}
